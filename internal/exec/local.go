package exec

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/rileyhilliard/rdeploy/internal/errors"
)

// RunLocal starts argv[0] with the remaining arguments, streams its output
// to stdout/stderr, and waits for it. No shell is involved.
//
// A command that ran and exited returns its exit code with a nil error,
// whatever the code. Failing to start returns an ErrSpawn error; a child
// that ends without an exit code (killed by a signal or by ctx) returns
// an ErrWait error.
func RunLocal(ctx context.Context, argv []string, env []string, stdout, stderr io.Writer) (exitCode int, err error) {
	if len(argv) == 0 || argv[0] == "" {
		return -1, errors.New(errors.ErrSpawn,
			"Pre-command has no program to run",
			"Remove empty entries and leading spaces from pre_command.")
	}

	command := exec.CommandContext(ctx, argv[0], argv[1:]...)
	command.Env = env
	command.Stdout = stdout
	command.Stderr = stderr

	if err := command.Start(); err != nil {
		suggestion := "Make sure the command exists and is executable."
		if stderrors.Is(err, exec.ErrNotFound) {
			suggestion = fmt.Sprintf("'%s' isn't in PATH. Install it or use an absolute path.", argv[0])
		}
		return -1, errors.WrapWithCode(err, errors.ErrSpawn,
			fmt.Sprintf("Couldn't start '%s'", argv[0]),
			suggestion)
	}

	waitErr := command.Wait()
	if waitErr == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if stderrors.As(waitErr, &exitErr) && exitErr.ExitCode() >= 0 && ctx.Err() == nil {
		return exitErr.ExitCode(), nil
	}

	if ctx.Err() != nil {
		return -1, errors.WrapWithCode(ctx.Err(), errors.ErrWait,
			fmt.Sprintf("'%s' was stopped before it finished", argv[0]),
			"The deployment deadline passed or was interrupted. Raise --timeout if it needs longer.")
	}

	return -1, errors.WrapWithCode(waitErr, errors.ErrWait,
		fmt.Sprintf("'%s' ended without an exit code", argv[0]),
		"It was probably killed by a signal. Check the output above.")
}
