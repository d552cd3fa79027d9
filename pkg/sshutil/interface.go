package sshutil

import (
	"context"
	"io"
)

// SSHClient defines the interface for SSH command execution.
// Both the real Client and mock implementations satisfy this interface.
type SSHClient interface {
	// Exec runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	// A non-zero exit code with nil error means the command ran but failed.
	Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error)

	// ExecStream runs a command and streams output to the provided writers.
	// Returns the exit code and any error.
	ExecStream(ctx context.Context, cmd string, stdout, stderr io.Writer) (exitCode int, err error)

	// Close closes the SSH connection.
	Close() error

	// GetHost returns the host used to connect.
	GetHost() string

	// GetAddress returns the resolved host:port address.
	GetAddress() string
}

// Dialer opens an SSHClient for user@host.
type Dialer func(ctx context.Context, user, host string) (SSHClient, error)

// NewDialer returns a Dialer backed by Dial with the given options.
func NewDialer(opts DialOptions) Dialer {
	return func(ctx context.Context, user, host string) (SSHClient, error) {
		client, err := Dial(ctx, user, host, opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

var _ SSHClient = (*Client)(nil)
