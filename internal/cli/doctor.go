package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/rdeploy/internal/config"
	"github.com/rileyhilliard/rdeploy/internal/doctor"
	"github.com/rileyhilliard/rdeploy/internal/errors"
	"github.com/rileyhilliard/rdeploy/internal/logger"
	"github.com/rileyhilliard/rdeploy/internal/ui"
	"github.com/rileyhilliard/rdeploy/pkg/sshutil"
	"github.com/spf13/cobra"
)

var doctorJSON bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that a deployment can run",
	Long: `Run preflight checks for the deployment in config.yaml without changing anything.

Local checks cover the config file, rsync and SSH keys. When the config
loads, the target is checked too: known_hosts entry, login and whoami,
rsync on the remote, the target directory and the deploy command.

Examples:
  rdeploy doctor
  rdeploy doctor --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorCommand(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output in JSON format")
}

// DoctorOptions configures Doctor.
type DoctorOptions struct {
	ConfigPath     string // Defaults to config.FileName
	JSON           bool
	Dial           sshutil.Dialer
	KnownHostsPath string
	SSHConfigPath  string
	KeyFiles       []string
	Stdout         io.Writer
	Printer        *ui.Printer
}

// DoctorOutput represents the JSON output for doctor command.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput represents a category of check results.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput summarizes the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	AllClear bool `json:"all_clear"`
}

// doctorCommand implements the doctor command logic.
func doctorCommand(ctx context.Context) error {
	log := logger.NewEnvLogger("[doctor]")
	defer sshutil.CloseAgent()

	return Doctor(ctx, DoctorOptions{
		JSON:    doctorJSON,
		Dial:    sshutil.NewDialer(sshutil.DialOptions{Logger: log}),
		Printer: ui.NewPrinter(os.Stdout, !doctorJSON && ui.ShouldColor(os.Stdout, noColor)),
	})
}

// Doctor runs the preflight checks and reports them. It returns an
// *errors.ExitError when any check fails, after the report is written.
func Doctor(ctx context.Context, opts DoctorOptions) error {
	if opts.ConfigPath == "" {
		opts.ConfigPath = config.FileName
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Printer == nil {
		opts.Printer = ui.NewPrinter(opts.Stdout, false)
	}

	suite := doctor.SuiteOptions{
		ConfigPath:     opts.ConfigPath,
		Dial:           opts.Dial,
		KnownHostsPath: opts.KnownHostsPath,
		SSHConfigPath:  opts.SSHConfigPath,
		KeyFiles:       opts.KeyFiles,
	}

	checks := doctor.LocalChecks(suite)

	// Target checks need a loadable config; the config checks report why not.
	if cfg, err := config.Load(opts.ConfigPath); err == nil && opts.Dial != nil {
		session := doctor.NewRemoteSession(opts.Dial, cfg.TargetUsername, cfg.TargetHost)
		defer session.Close()
		checks = append(checks, doctor.TargetChecks(cfg, session, suite)...)
	}

	results := doctor.RunAll(ctx, checks)

	var err error
	if opts.JSON {
		err = outputDoctorJSON(opts.Stdout, results)
	} else {
		outputDoctorText(opts.Printer, results)
	}
	if err != nil {
		return err
	}

	if doctor.Count(results).Fail > 0 {
		return errors.NewExitError(1)
	}
	return nil
}

// buildDoctorOutput groups results by category, in check order.
func buildDoctorOutput(results []doctor.CheckResult) DoctorOutput {
	output := DoctorOutput{}
	for _, cat := range doctor.Categories(results) {
		co := CategoryOutput{Name: cat}
		for _, r := range results {
			if r.Category == cat {
				co.Results = append(co.Results, r)
			}
		}
		output.Categories = append(output.Categories, co)
	}

	tally := doctor.Count(results)
	output.Summary = SummaryOutput{
		Pass:     tally.Pass,
		Warn:     tally.Warn,
		Fail:     tally.Fail,
		AllClear: tally.Worst() == doctor.StatusPass,
	}
	return output
}

// outputDoctorJSON outputs results in JSON format.
func outputDoctorJSON(w io.Writer, results []doctor.CheckResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(buildDoctorOutput(results)); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfigIO,
			"Failed to write doctor report",
			"Check that stdout is writable")
	}
	return nil
}

// outputDoctorText outputs results in human-readable format.
func outputDoctorText(p *ui.Printer, results []doctor.CheckResult) {
	w := p.Writer()

	fmt.Fprintln(w)
	p.Header("rdeploy Diagnostic Report")
	fmt.Fprintln(w)

	for _, cat := range buildDoctorOutput(results).Categories {
		p.Header(cat.Name)
		for _, r := range cat.Results {
			symbol, color := statusStyle(r.Status)
			p.Check(symbol, color, r.Name, r.Message)
			if r.Suggestion != "" && r.Status != doctor.StatusPass {
				p.Hint(r.Suggestion)
			}
		}
		fmt.Fprintln(w)
	}

	p.Divider()
	fmt.Fprintln(w)

	tally := doctor.Count(results)
	symbol, color := statusStyle(tally.Worst())
	fmt.Fprintf(w, "%s %s\n\n", p.Paint(color, symbol), tally.Summary())
}

func statusStyle(s doctor.CheckStatus) (string, lipgloss.Color) {
	switch s {
	case doctor.StatusPass:
		return ui.MarkOK, ui.ColorOK
	case doctor.StatusWarn:
		return ui.MarkWarn, ui.ColorWarn
	default:
		return ui.MarkFail, ui.ColorFail
	}
}
