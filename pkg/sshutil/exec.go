package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/rileyhilliard/rdeploy/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Exec runs a command on the remote host and returns the output.
// Exit code is -1 if the command couldn't be executed at all.
func (c *Client) Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode, err = c.run(ctx, cmd, &stdoutBuf, &stderrBuf)
	if err != nil {
		return nil, nil, exitCode, err
	}
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// ExecStream runs a command and streams output to the provided writers.
// Exit code is -1 if the command couldn't be executed at all.
func (c *Client) ExecStream(ctx context.Context, cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	return c.run(ctx, cmd, stdout, stderr)
}

// run executes cmd in a fresh session. Cancelling ctx closes the session
// and the connection under it; a channel close alone waits on the server.
func (c *Client) run(ctx context.Context, cmd string, stdout, stderr io.Writer) (int, error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr

	stop := context.AfterFunc(ctx, func() {
		session.Close()
		c.Client.Close()
	})
	defer stop()

	err = session.Run(cmd)
	if err == nil {
		return 0, nil
	}

	if ctx.Err() != nil {
		return -1, errors.WrapWithCode(ctx.Err(), errors.ErrRemoteCommand,
			fmt.Sprintf("Remote command was stopped: %s", cmd),
			"The deployment deadline passed or was interrupted. Raise --timeout if it needs longer.")
	}

	var exitErr *ssh.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil // Command ran, just had non-zero exit
	}

	var missing *ssh.ExitMissingError
	if stderrors.As(err, &missing) {
		return -1, errors.WrapWithCode(err, errors.ErrRemoteCommand,
			fmt.Sprintf("Remote command ended without an exit status: %s", cmd),
			"The connection may have dropped or the process was killed by a signal.")
	}

	return -1, errors.WrapWithCode(err, errors.ErrRemoteCommand,
		fmt.Sprintf("Failed to execute command: %s", cmd),
		"Check the SSH connection to the remote host.")
}
