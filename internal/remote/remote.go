package remote

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rileyhilliard/rdeploy/internal/config"
	"github.com/rileyhilliard/rdeploy/internal/errors"
	"github.com/rileyhilliard/rdeploy/internal/logger"
	"github.com/rileyhilliard/rdeploy/internal/ui"
	"github.com/rileyhilliard/rdeploy/pkg/sshutil"
)

// stderrTailSize bounds how much remote stderr is kept for diagnosis.
const stderrTailSize = 4096

// Options controls where remote output goes.
type Options struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Printer *ui.Printer
	Logger  logger.Logger
}

func (o Options) withDefaults() Options {
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
	return o
}

// Run logs in to cfg.TargetHost as cfg.TargetUsername, verifies the login
// identity, then runs "cd <location> && <command>" with output streamed to
// opts.Stdout and opts.Stderr. The connection is closed on every path.
//
// A non-zero exit from the remote command is an ErrRemoteCommand error
// carrying the exit code.
func Run(ctx context.Context, dial sshutil.Dialer, cfg *config.Config, opts Options) error {
	opts = opts.withDefaults()

	opts.Logger.Debug("connecting to %s", cfg.Login())
	client, err := dial(ctx, cfg.TargetUsername, cfg.TargetHost)
	if err != nil {
		return errors.Ensure(err, errors.ErrSSH, fmt.Sprintf("Couldn't log in to %s", cfg.Login()),
			"Check that you can run: "+SSHCommand(cfg.TargetUsername, cfg.TargetHost))
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			opts.Logger.Debug("closing SSH connection: %v", cerr)
		}
	}()

	if err := VerifyIdentity(ctx, client, cfg.TargetUsername); err != nil {
		return err
	}
	opts.Printer.LoginSucceeded()

	cmd := cfg.RemoteCommand()
	opts.Logger.Debug("running on %s: %s", cfg.TargetHost, cmd)

	tail := newTailBuffer(stderrTailSize)
	exitCode, err := client.ExecStream(ctx, cmd, opts.Stdout, io.MultiWriter(opts.Stderr, tail))
	if err != nil {
		return errors.Ensure(err, errors.ErrRemoteCommand, fmt.Sprintf("Lost the session while running: %s", cmd),
			"Check the connection to the remote host and try again.")
	}

	if exitCode != 0 {
		if explained := diagnose(cfg.TargetLocation, cmd, tail.String(), exitCode); explained != nil {
			return explained
		}
		return errors.WrapWithCode(errors.NewExitError(exitCode), errors.ErrRemoteCommand,
			fmt.Sprintf("Remote command exited with code %d: %s", exitCode, cmd),
			"Check the output above for details.")
	}

	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}

// SSHCommand is the plain ssh invocation that reaches user at a
// target_host, which may carry a port. An empty user leaves it to ssh.
func SSHCommand(user, targetHost string) string {
	cfg := config.Config{TargetUsername: user, TargetHost: targetHost}
	dest := cfg.Host()
	if user != "" {
		dest = user + "@" + dest
	}
	if port := cfg.Port(); port != "" {
		return fmt.Sprintf("ssh -p %s %s", port, dest)
	}
	return "ssh " + dest
}
