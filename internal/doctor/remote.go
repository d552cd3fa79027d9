package doctor

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/rdeploy/internal/remote"
	"github.com/rileyhilliard/rdeploy/internal/ui"
	"github.com/rileyhilliard/rdeploy/internal/util"
	"github.com/rileyhilliard/rdeploy/pkg/sshutil"
)

// RemoteSession dials the target once and shares the connection
// between the remote checks. Call Close when done.
type RemoteSession struct {
	User string
	Host string

	dial   sshutil.Dialer
	once   sync.Once
	client sshutil.SSHClient
	err    error
}

// NewRemoteSession creates a session that dials lazily on first use.
func NewRemoteSession(dial sshutil.Dialer, user, host string) *RemoteSession {
	return &RemoteSession{User: user, Host: host, dial: dial}
}

// Client returns the shared connection, dialing it on first call.
func (s *RemoteSession) Client(ctx context.Context) (sshutil.SSHClient, error) {
	s.once.Do(func() {
		s.client, s.err = s.dial(ctx, s.User, s.Host)
	})
	return s.client, s.err
}

// Close closes the connection if one was opened.
func (s *RemoteSession) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// LoginCheck logs in and verifies whoami, the same way a deploy does.
type LoginCheck struct {
	Dial sshutil.Dialer
	User string
	Host string
}

func (c *LoginCheck) Name() string     { return "login" }
func (c *LoginCheck) Category() string { return "REMOTE" }

func (c *LoginCheck) Run(ctx context.Context) CheckResult {
	latency, err := remote.Probe(ctx, c.Dial, c.User, c.Host)
	if err != nil {
		return fail(fmt.Sprintf("Can't log in to %s@%s: %s", c.User, c.Host, probeReason(err)),
			loginSuggestion(err, c.User, c.Host))
	}
	return pass(fmt.Sprintf("Logged in as %s (%s)", c.User, ui.FormatDuration(latency.Round(time.Millisecond))))
}

func probeReason(err error) string {
	var probeErr *remote.ProbeError
	if stderrors.As(err, &probeErr) {
		return string(probeErr.Failure)
	}
	return err.Error()
}

func loginSuggestion(err error, user, host string) string {
	var probeErr *remote.ProbeError
	if stderrors.As(err, &probeErr) {
		return probeErr.Suggestion()
	}
	return "Try: " + remote.SSHCommand(user, host)
}

// TargetDirCheck reports whether target_location already exists.
// A missing directory is only a warning; rsync creates it.
type TargetDirCheck struct {
	Session  *RemoteSession
	Location string
}

func (c *TargetDirCheck) Name() string     { return "target_dir" }
func (c *TargetDirCheck) Category() string { return "REMOTE" }

func (c *TargetDirCheck) Run(ctx context.Context) CheckResult {
	client, err := c.Session.Client(ctx)
	if err != nil {
		return fail("target_location: no connection", "See the login check above")
	}

	_, _, code, err := client.Exec(ctx, fmt.Sprintf("cd %s", c.Location))
	if err != nil {
		return fail(fmt.Sprintf("Couldn't check ~/%s", c.Location), err.Error())
	}
	if code != 0 {
		return warn(fmt.Sprintf("~/%s doesn't exist yet", c.Location), "rsync will create it on the first deploy")
	}
	return pass(fmt.Sprintf("~/%s exists", c.Location))
}

// CommandCheck reports whether the first word of target_command resolves
// on the remote host. Commands run through a non-interactive shell, so a
// tool available in an interactive session may still be missing here.
type CommandCheck struct {
	Session  *RemoteSession
	Location string
	Command  string
}

func (c *CommandCheck) Name() string     { return "target_command" }
func (c *CommandCheck) Category() string { return "REMOTE" }

func (c *CommandCheck) Run(ctx context.Context) CheckResult {
	client, err := c.Session.Client(ctx)
	if err != nil {
		return fail("target_command: no connection", "See the login check above")
	}

	fields := strings.Fields(c.Command)
	if len(fields) == 0 {
		return fail("target_command is empty", "")
	}
	name := fields[0]

	// Relative paths only resolve after cd; scripts there may not be synced yet.
	if strings.Contains(name, "/") && !strings.HasPrefix(name, "/") {
		return pass(fmt.Sprintf("%s runs from ~/%s after sync", name, c.Location))
	}

	_, _, code, err := client.Exec(ctx, "command -v "+util.ShellQuote(name))
	if err != nil {
		return fail(fmt.Sprintf("Couldn't look up %s", name), err.Error())
	}
	if code != 0 {
		return warn(fmt.Sprintf("'%s' not found in the remote PATH", name),
			fmt.Sprintf("Install it, or call it by absolute path in target_command:\n  %s \"which %s\"",
				remote.SSHCommand(c.Session.User, c.Session.Host), name))
	}
	return pass(fmt.Sprintf("%s found on %s", name, c.Session.Host))
}
