package sync

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rileyhilliard/rdeploy/internal/errors"
	"github.com/rileyhilliard/rdeploy/internal/logger"
	"github.com/rileyhilliard/rdeploy/internal/ui"
)

// sshTransport is the remote shell rsync uses. BatchMode stops ssh from
// prompting (there is no terminal to answer) and host keys must already be
// in known_hosts, matching the embedded SSH client's policy.
const sshTransport = "ssh -o BatchMode=yes -o StrictHostKeyChecking=yes"

// Options configures a sync run.
type Options struct {
	// LocalDir is the source directory. Defaults to ".".
	LocalDir string

	// IgnoreFailure reports a non-zero rsync exit but still returns a nil
	// error, so the deployment carries on.
	IgnoreFailure bool

	// Port is the SSH port for rsync's transport. Empty leaves it to ssh
	// and ~/.ssh/config.
	Port string

	// RsyncPath overrides the rsync binary. Empty means look it up in PATH.
	RsyncPath string

	Stdout  io.Writer
	Stderr  io.Writer
	Printer *ui.Printer
	Logger  logger.Logger
}

// Result is the outcome of a sync that ran to completion.
type Result struct {
	ExitCode int
	Reason   string // Human description of a non-zero ExitCode
}

// OK reports whether rsync exited with status 0.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Syncer mirrors a local directory to a remote destination.
type Syncer interface {
	Sync(ctx context.Context, destination string, opts Options) (Result, error)
}

// Rsync is the Syncer backed by the rsync binary.
type Rsync struct{}

// Sync implements Syncer.
func (Rsync) Sync(ctx context.Context, destination string, opts Options) (Result, error) {
	return Sync(ctx, destination, opts)
}

// Sync mirrors opts.LocalDir to destination (user@host:~/path) with rsync,
// deleting remote files that no longer exist locally. rsync's output goes
// straight to Stdout/Stderr.
//
// A zero exit prints "rsync successful!". A non-zero exit prints
// "rsync failure!" and returns an ErrSync error, unless IgnoreFailure is
// set, in which case the Result is returned with a nil error. Failing to
// start rsync is always an error.
func Sync(ctx context.Context, destination string, opts Options) (Result, error) {
	opts = withDefaults(opts)

	rsyncPath := opts.RsyncPath
	if rsyncPath == "" {
		var err error
		rsyncPath, err = LocateRsync()
		if err != nil {
			return Result{ExitCode: -1}, err
		}
	}

	args := BuildArgs(opts.LocalDir, destination, opts.Port)
	opts.Logger.Debug("%s %s", rsyncPath, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, rsyncPath, args...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, errors.WrapWithCode(err, errors.ErrSpawn,
			"Couldn't start rsync",
			"Make sure rsync is installed and executable.")
	}

	exitCode, err := waitExitCode(ctx, cmd)
	if err != nil {
		return Result{ExitCode: -1}, err
	}

	result := Result{ExitCode: exitCode}
	if result.OK() {
		opts.Printer.SyncSucceeded()
		return result, nil
	}

	msg, suggestion := describeExit(exitCode, hostOf(destination))
	result.Reason = msg
	opts.Printer.SyncFailed(msg)

	if opts.IgnoreFailure {
		opts.Logger.Warn("rsync exited with code %d; continuing because sync failures are ignored", exitCode)
		return result, nil
	}

	return result, errors.WrapWithCode(errors.NewExitError(exitCode), errors.ErrSync, msg, suggestion)
}

// BuildArgs constructs the rsync command arguments. A non-empty port is
// passed to ssh, since rsync's host:path syntax has no room for one.
// Exported for testing command construction without running rsync.
func BuildArgs(localDir, destination, port string) []string {
	if localDir == "" {
		localDir = "."
	}

	transport := sshTransport
	if port != "" {
		transport += " -p " + port
	}

	return []string{
		"-rzP",     // recursive, compress, partial + progress
		"--delete", // delete files on remote not in source
		"-e", transport,
		localDir,
		destination,
	}
}

func withDefaults(opts Options) Options {
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
	return opts
}

// waitExitCode waits for cmd and returns its exit code. A process that
// ends without one (signal, or killed because ctx ended) is an ErrWait error.
func waitExitCode(ctx context.Context, cmd *exec.Cmd) (int, error) {
	err := cmd.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) && exitErr.ExitCode() >= 0 && ctx.Err() == nil {
		return exitErr.ExitCode(), nil
	}

	if ctx.Err() != nil {
		return -1, errors.WrapWithCode(ctx.Err(), errors.ErrWait,
			"rsync was stopped before it finished",
			"The deployment deadline passed or was interrupted. Raise --timeout if it needs longer.")
	}
	return -1, errors.WrapWithCode(err, errors.ErrWait,
		"rsync ended without an exit code",
		"It was probably killed by a signal. Check the output above.")
}

// hostOf extracts "user@host" from "user@host:path". A bracketed IPv6
// host keeps its brackets.
func hostOf(destination string) string {
	start := 0
	if idx := strings.Index(destination, "]"); idx != -1 {
		start = idx
	}
	if idx := strings.Index(destination[start:], ":"); idx != -1 {
		return destination[:start+idx]
	}
	return destination
}

// describeExit maps rsync exit codes to a message and a suggestion.
// See: https://download.samba.org/pub/rsync/rsync.1
func describeExit(exitCode int, hostName string) (msg, suggestion string) {
	switch exitCode {
	case 1:
		return "rsync syntax or usage error", "Check your rsync installation supports -rzP and --delete"
	case 2:
		return "rsync protocol incompatibility", "Ensure rsync versions are compatible on local and remote"
	case 3:
		return "File selection error", "Check that source paths exist and are readable"
	case 5:
		return "Error starting client-server protocol", "Check SSH connection and remote rsync installation"
	case 10:
		return "Error in socket I/O", "Check network connectivity to the remote host"
	case 11:
		return "Error in file I/O", "Check disk space and file permissions on both local and remote"
	case 12:
		return "Error in rsync protocol data stream", "This may indicate a corrupted transfer, try again"
	case 23:
		return "Partial transfer due to error", "Some files may have permission issues, check the output above"
	case 24:
		return "Partial transfer due to vanished source files", "Files were modified during sync, this is usually harmless"
	case 255:
		return fmt.Sprintf("SSH connection to '%s' failed", hostName),
			"Check that the host is reachable and in known_hosts: ssh " + hostName
	default:
		return fmt.Sprintf("rsync exited with code %d", exitCode), "Check the output above for specific error details"
	}
}
