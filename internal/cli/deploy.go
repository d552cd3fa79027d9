package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rileyhilliard/rdeploy/internal/config"
	"github.com/rileyhilliard/rdeploy/internal/exec"
	"github.com/rileyhilliard/rdeploy/internal/logger"
	"github.com/rileyhilliard/rdeploy/internal/remote"
	"github.com/rileyhilliard/rdeploy/internal/sync"
	"github.com/rileyhilliard/rdeploy/internal/ui"
	"github.com/rileyhilliard/rdeploy/pkg/sshutil"
)

// DeployOptions configures a deployment.
type DeployOptions struct {
	ConfigPath string // Defaults to config.FileName
	LocalDir   string // Directory to sync; defaults to "."

	// Overrides for the optional config keys. Zero values keep the file's setting.
	Split   string
	Timeout time.Duration

	// IgnoreSyncFailure carries on to the remote phase after a failed rsync.
	IgnoreSyncFailure bool

	Syncer  sync.Syncer    // Defaults to sync.Rsync
	Dial    sshutil.Dialer // Defaults to sshutil.NewDialer with default options
	Stdout  io.Writer
	Stderr  io.Writer
	Printer *ui.Printer
	Logger  logger.Logger
}

func (o DeployOptions) withDefaults() DeployOptions {
	if o.ConfigPath == "" {
		o.ConfigPath = config.FileName
	}
	if o.LocalDir == "" {
		o.LocalDir = "."
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Printer == nil {
		o.Printer = ui.NewPrinter(o.Stdout, false)
	}
	if o.Logger == nil {
		o.Logger = logger.Noop()
	}
	if o.Syncer == nil {
		o.Syncer = sync.Rsync{}
	}
	if o.Dial == nil {
		o.Dial = sshutil.NewDialer(sshutil.DialOptions{Logger: o.Logger})
	}
	return o
}

// Deploy runs a full deployment: load config, run pre-commands, sync, then
// run the target command remotely. Phases run strictly in order and the
// first error stops the sequence; nothing already done is rolled back.
func Deploy(ctx context.Context, opts DeployOptions) error {
	opts = opts.withDefaults()
	start := time.Now()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	applyOverrides(cfg, opts)
	opts.Logger.Debug("loaded %s: destination=%s split=%s timeout=%s",
		opts.ConfigPath, cfg.Destination(), cfg.SplitMode(), cfg.Timeout)

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	env, err := exec.LoadEnvFile(cfg.EnvFile)
	if err != nil {
		return err
	}

	// Phase 1: Pre-commands
	err = exec.RunPreCommands(ctx, cfg.PreCommands, exec.PreCommandOptions{
		Split:   exec.SplitterFor(cfg.SplitMode()),
		Env:     env,
		Stdout:  opts.Stdout,
		Stderr:  opts.Stderr,
		Printer: opts.Printer,
		Logger:  opts.Logger,
	})
	if err != nil {
		return err
	}

	// Phase 2: Sync
	result, err := opts.Syncer.Sync(ctx, cfg.Destination(), sync.Options{
		LocalDir:      opts.LocalDir,
		Port:          cfg.Port(),
		IgnoreFailure: opts.IgnoreSyncFailure,
		Stdout:        opts.Stdout,
		Stderr:        opts.Stderr,
		Printer:       opts.Printer,
		Logger:        opts.Logger,
	})
	if err != nil {
		return err
	}
	if !result.OK() {
		opts.Logger.Debug("continuing after rsync exit %d", result.ExitCode)
	}

	// Phase 3: Remote command
	err = remote.Run(ctx, opts.Dial, cfg, remote.Options{
		Stdout:  opts.Stdout,
		Stderr:  opts.Stderr,
		Printer: opts.Printer,
		Logger:  opts.Logger,
	})
	if err != nil {
		return err
	}

	opts.Printer.Phase("Deployed", time.Since(start))
	return nil
}

// applyOverrides lets flags win over the optional config keys.
func applyOverrides(cfg *config.Config, opts DeployOptions) {
	if opts.Split != "" {
		cfg.Split = opts.Split
	}
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
}

// deployCommand is the implementation called by the root command.
func deployCommand(ctx context.Context, flags DeployFlags) error {
	timeout, err := ParseTimeout(flags.Timeout)
	if err != nil {
		return err
	}
	if err := ValidateSplit(flags.Split); err != nil {
		return err
	}

	log := logger.NewEnvLogger("[rdeploy]")
	defer sshutil.CloseAgent()

	return Deploy(ctx, DeployOptions{
		Split:             flags.Split,
		Timeout:           timeout,
		IgnoreSyncFailure: flags.IgnoreSyncFailure,
		Syncer:            sync.Rsync{},
		Dial:              sshutil.NewDialer(sshutil.DialOptions{Logger: log}),
		Printer:           ui.NewPrinter(os.Stdout, ui.ShouldColor(os.Stdout, noColor)),
		Logger:            log,
	})
}
