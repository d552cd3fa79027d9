package sshutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"path/filepath"
	"time"

	"github.com/rileyhilliard/rdeploy/internal/errors"
	"github.com/rileyhilliard/rdeploy/internal/logger"
	"golang.org/x/crypto/ssh"
)

// DefaultConnectTimeout bounds the TCP connect and handshake when the
// context carries no earlier deadline.
const DefaultConnectTimeout = 10 * time.Second

// Client is an authenticated connection to one deployment target.
type Client struct {
	*ssh.Client
	Host    string // as written in config.yaml
	Address string // host:port actually dialed
}

// DialOptions tunes how Dial finds keys and host configuration.
// The zero value uses the current user's ~/.ssh directory.
type DialOptions struct {
	// SSHConfigPath is read for HostName, Port and IdentityFile.
	SSHConfigPath string

	// KnownHostsPath is the only source of trusted host keys.
	// It is never created or written.
	KnownHostsPath string

	// IdentityFiles replaces the default key files when set.
	IdentityFiles []string

	// DisableAgent skips ssh-agent even if SSH_AUTH_SOCK is set.
	DisableAgent bool

	Logger logger.Logger
}

func (o DialOptions) withDefaults() DialOptions {
	if o.SSHConfigPath == "" {
		o.SSHConfigPath = filepath.Join(sshDir(), "config")
	}
	if o.KnownHostsPath == "" {
		o.KnownHostsPath = DefaultKnownHostsPath()
	}
	if o.IdentityFiles == nil {
		o.IdentityFiles = DefaultKeyFiles()
	}
	if o.Logger == nil {
		o.Logger = logger.Noop()
	}
	return o
}

// Dial logs in to host as user.
//
// HostName, Port and IdentityFile come from the SSH config when it has an
// entry for host; user always comes from the caller. The server's key must
// already be in known_hosts. Unknown and changed keys are refused and the
// file is left untouched.
func Dial(ctx context.Context, user, host string, opts DialOptions) (*Client, error) {
	opts = opts.withDefaults()

	t := resolveTarget(host, opts.SSHConfigPath, opts.Logger)
	t.user = user

	config, encrypted, err := clientConfig(t, opts)
	if err != nil {
		return nil, err
	}

	address := t.address()
	opts.Logger.Debug("dialing %s@%s (%s)", user, host, address)

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultConnectTimeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s' at %s", host, address), dialHint(err))
	}

	sshConn, chans, reqs, err := handshake(ctx, conn, address, config)
	if err != nil {
		return nil, handshakeError(ctx, err, user, host, encrypted)
	}

	return &Client{Client: ssh.NewClient(sshConn, chans, reqs), Host: host, Address: address}, nil
}

// handshake runs the SSH handshake over conn. ssh.NewClientConn takes no
// context, so conn is closed out from under it when ctx ends.
func handshake(ctx context.Context, conn net.Conn, address string, config *ssh.ClientConfig) (ssh.Conn, <-chan ssh.NewChannel, <-chan *ssh.Request, error) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	c, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if !stop() {
		if err == nil {
			c.Close()
		}
		return nil, nil, nil, ctx.Err()
	}
	if err != nil {
		conn.Close()
		return nil, nil, nil, err
	}
	return c, chans, reqs, nil
}

// suggester is implemented by host key errors that know how to be fixed.
type suggester interface {
	error
	Suggestion() string
}

func handshakeError(ctx context.Context, err error, user, host string, encrypted []string) error {
	if ctx.Err() != nil && stderrors.Is(err, ctx.Err()) {
		return errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("SSH handshake with '%s' was cut short", host),
			"It took too long or was interrupted. Try: ssh "+user+"@"+host)
	}

	var s suggester
	if stderrors.As(err, &s) {
		return errors.New(errors.ErrSSH, s.Error(), s.Suggestion())
	}

	return errors.WrapWithCode(err, errors.ErrSSH,
		fmt.Sprintf("SSH handshake with '%s' didn't go through", host),
		handshakeHint(err, encrypted))
}

// Close closes the connection. Safe on a zero Client.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

func (c *Client) GetHost() string {
	return c.Host
}

func (c *Client) GetAddress() string {
	return c.Address
}
