package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/rdeploy/internal/config"
	"github.com/rileyhilliard/rdeploy/internal/errors"
	"github.com/rileyhilliard/rdeploy/internal/remote"
	"github.com/rileyhilliard/rdeploy/internal/ui"
	"github.com/rileyhilliard/rdeploy/pkg/sshutil"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// initProbeTimeout bounds the optional login test before saving.
const initProbeTimeout = 10 * time.Second

// configHeader is written above the generated YAML.
const configHeader = `# rdeploy configuration
# Run 'rdeploy' in this directory to build, sync and deploy.
# Run 'rdeploy doctor' to check the target before the first deploy.

`

// InitOptions holds options for the init command.
type InitOptions struct {
	Path           string   // Where to write; defaults to config.FileName
	User           string   // target_username
	Host           string   // target_host
	Location       string   // target_location
	Command        string   // target_command
	PreCommands    []string // pre_command entries
	Overwrite      bool     // Overwrite existing config without asking
	NonInteractive bool     // Skip prompts; missing values fall back to defaults

	// Dial, when set, is used to test the login before saving.
	Dial   sshutil.Dialer
	Stdout io.Writer

	// SSHConfigPath supplies host suggestions for the interactive prompt.
	SSHConfigPath string
}

var initOpts InitOptions

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config.yaml in the current directory",
	Long: `Create a config.yaml deployment file in the current directory.

Prompts for the target login, remote directory, deploy command and any local
pre-commands, tests the SSH login, then writes the file.

Examples:
  rdeploy init
  rdeploy init --host example.com --user deploy
  rdeploy init --non-interactive --host example.com --user deploy \
    --location app --command ./restart.sh --pre-command "make build"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(cmd.Context(), initOpts, initSkipCheck)
	},
}

var initSkipCheck bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initOpts.User, "user", "", "remote login user (target_username)")
	initCmd.Flags().StringVar(&initOpts.Host, "host", "", "remote host or SSH config alias (target_host)")
	initCmd.Flags().StringVar(&initOpts.Location, "location", "", "remote directory under the user's home (target_location)")
	initCmd.Flags().StringVar(&initOpts.Command, "command", "", "command run inside the remote directory (target_command)")
	initCmd.Flags().StringArrayVar(&initOpts.PreCommands, "pre-command", nil, "local command run before syncing (repeatable)")
	initCmd.Flags().BoolVarP(&initOpts.Overwrite, "force", "f", false, "overwrite an existing config.yaml")
	initCmd.Flags().BoolVar(&initOpts.NonInteractive, "non-interactive", false, "don't prompt; use flags and defaults")
	initCmd.Flags().BoolVar(&initSkipCheck, "skip-check", false, "don't test the SSH login before saving")
}

// initCommand is the implementation called by the cobra command.
func initCommand(ctx context.Context, opts InitOptions, skipCheck bool) error {
	if !skipCheck {
		opts.Dial = sshutil.NewDialer(sshutil.DialOptions{})
		defer sshutil.CloseAgent()
	}
	return Init(ctx, opts)
}

// getInitDefaults returns the values offered when a flag is not given.
func getInitDefaults() InitOptions {
	defaults := InitOptions{
		Command:        "./deploy.sh",
		NonInteractive: os.Getenv("CI") != "",
	}
	if u, err := user.Current(); err == nil {
		defaults.User = u.Username
	}
	if wd, err := os.Getwd(); err == nil {
		defaults.Location = filepath.Base(wd)
	}
	return defaults
}

// mergeInitOptions fills empty options from getInitDefaults.
func mergeInitOptions(opts InitOptions) InitOptions {
	defaults := getInitDefaults()

	if opts.Path == "" {
		opts.Path = config.FileName
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.User == "" {
		opts.User = defaults.User
	}
	if opts.Location == "" {
		opts.Location = defaults.Location
	}
	if opts.Command == "" && opts.NonInteractive {
		opts.Command = defaults.Command
	}
	if defaults.NonInteractive {
		opts.NonInteractive = true
	}
	return opts
}

// Init creates a new config.yaml.
func Init(ctx context.Context, opts InitOptions) error {
	opts = mergeInitOptions(opts)
	out := opts.Stdout

	// Check for existing config
	if _, err := os.Stat(opts.Path); err == nil && !opts.Overwrite {
		if opts.NonInteractive {
			return errors.New(errors.ErrConfigIO,
				fmt.Sprintf("Config file already exists: %s", opts.Path),
				"Use --force to overwrite")
		}

		var overwrite bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Config file '%s' already exists. Overwrite?", opts.Path)).
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfigIO,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	if !opts.NonInteractive {
		if err := promptInitOptions(&opts); err != nil {
			return err
		}
	}

	cfg := &config.Config{
		PreCommands:    cleanPreCommands(opts.PreCommands),
		TargetUsername: strings.TrimSpace(opts.User),
		TargetHost:     strings.TrimSpace(opts.Host),
		TargetLocation: strings.TrimSpace(opts.Location),
		TargetCommand:  strings.TrimSpace(opts.Command),
	}
	if err := config.Validate(cfg, opts.Path); err != nil {
		return err
	}

	if opts.Dial != nil {
		if err := testLogin(ctx, out, opts, cfg); err != nil {
			return err
		}
	}

	data, err := renderConfig(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(opts.Path, data, 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfigIO,
			fmt.Sprintf("Failed to write config file: %s", opts.Path),
			"Check directory permissions")
	}

	fmt.Fprintf(out, "%s Created %s\n\n", ui.MarkOK, opts.Path)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  rdeploy doctor  - Check the target is ready")
	fmt.Fprintln(out, "  rdeploy         - Build, sync and deploy")

	return nil
}

// promptInitOptions asks for every value, offering the flags and defaults
// as starting points.
func promptInitOptions(opts *InitOptions) error {
	hostHelp := "Hostname, IP address, or SSH config alias"
	var suggestions []string
	hosts, _ := sshutil.ListHosts(sshConfigPathOrDefault(opts.SSHConfigPath))
	for i, h := range hosts {
		suggestions = append(suggestions, h.Alias)
		if i < 3 {
			hostHelp += fmt.Sprintf("\n  %s: %s", h.Alias, h.Summary())
		}
	}

	preCommands := strings.Join(opts.PreCommands, "\n")

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("SSH host").
				Description(hostHelp).
				Placeholder("example.com").
				Suggestions(suggestions).
				Value(&opts.Host).
				Validate(required("SSH host")),
			huh.NewInput().
				Title("Remote user").
				Description("The login is verified with whoami before deploying").
				Value(&opts.User).
				Validate(required("remote user")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Remote directory").
				Description("Relative to the remote user's home; files are mirrored here with --delete").
				Placeholder("app").
				Value(&opts.Location).
				Validate(required("remote directory")),
			huh.NewInput().
				Title("Deploy command").
				Description("Runs inside the remote directory after the sync").
				Placeholder("./deploy.sh").
				Value(&opts.Command).
				Validate(required("deploy command")),
		),
		huh.NewGroup(
			huh.NewText().
				Title("Local pre-commands (optional)").
				Description("One per line, run in order before syncing").
				Placeholder("make build").
				Value(&preCommands),
		),
	)

	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfigIO,
			"Failed to get user input",
			"Check terminal compatibility or use --non-interactive flag")
	}

	opts.PreCommands = strings.Split(preCommands, "\n")
	return nil
}

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

// testLogin checks the login before saving. A failure can still be saved
// when running interactively.
func testLogin(ctx context.Context, out io.Writer, opts InitOptions, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, initProbeTimeout)
	defer cancel()

	latency, err := remote.Probe(ctx, opts.Dial, cfg.TargetUsername, cfg.TargetHost)
	if err == nil {
		fmt.Fprintf(out, "%s Logged in to %s %s\n\n", ui.MarkOK, cfg.Login(), ui.FormatDuration(latency))
		return nil
	}

	loginErr := errors.WrapWithCode(err, errors.ErrSSH,
		fmt.Sprintf("Couldn't log in to %s", cfg.Login()),
		"Run 'rdeploy doctor' after saving, or retry with --skip-check")

	if opts.NonInteractive {
		return loginErr
	}

	fmt.Fprintf(out, "\n%s Login to '%s' failed: %v\n\n", ui.MarkFail, cfg.Login(), err)

	var saveAnyway bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save config anyway? (You can fix the connection later)").
				Value(&saveAnyway),
		),
	)
	if formErr := form.Run(); formErr != nil || !saveAnyway {
		return loginErr
	}
	return nil
}

// renderConfig marshals cfg with the header comment.
func renderConfig(cfg *config.Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfigParse,
			"Failed to generate config",
			"This shouldn't happen - please report this bug")
	}
	return append([]byte(configHeader), data...), nil
}

// cleanPreCommands drops blank entries and surrounding whitespace.
func cleanPreCommands(cmds []string) []string {
	var out []string
	for _, c := range cmds {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func sshConfigPathOrDefault(path string) string {
	if path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", "config")
}
