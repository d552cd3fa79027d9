package exec

import (
	"context"
	"io"
	"os"

	"github.com/rileyhilliard/rdeploy/internal/errors"
	"github.com/rileyhilliard/rdeploy/internal/logger"
	"github.com/rileyhilliard/rdeploy/internal/ui"
)

// PreCommandOptions configures RunPreCommands.
type PreCommandOptions struct {
	Split   Splitter      // Defaults to SplitSpaces
	Env     []string      // Child environment; nil inherits the parent's
	Stdout  io.Writer     // Defaults to os.Stdout
	Stderr  io.Writer     // Defaults to os.Stderr
	Printer *ui.Printer   // Status lines; defaults to plain output on Stdout
	Logger  logger.Logger // Debug output; defaults to a no-op logger
}

// RunPreCommands runs each command in order, waiting for one to exit before
// starting the next.
//
// A non-zero exit code is reported and the sequence continues. Only a
// command that can't be split, can't be started, or ends without an exit
// code stops the sequence; that error is returned and the caller is
// expected to abort. Commands already run are not undone.
func RunPreCommands(ctx context.Context, commands []string, opts PreCommandOptions) error {
	if opts.Split == nil {
		opts.Split = SplitSpaces
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Printer == nil {
		opts.Printer = ui.NewPrinter(opts.Stdout, false)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Noop()
	}

	for i, cmd := range commands {
		opts.Printer.Running(cmd)

		argv, err := opts.Split(cmd)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrSpawn,
				"Couldn't parse pre-command",
				"Check the quoting in pre_command.")
		}
		opts.Logger.Debug("pre-command %d/%d argv=%q", i+1, len(commands), argv)

		exitCode, err := RunLocal(ctx, argv, opts.Env, opts.Stdout, opts.Stderr)
		if err != nil {
			return err
		}

		opts.Printer.ExitCode(exitCode)
		if exitCode != 0 {
			opts.Logger.Warn("pre-command %q exited with code %d; continuing", cmd, exitCode)
		}
	}

	return nil
}
