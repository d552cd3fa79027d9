package remote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/rdeploy/pkg/sshutil"
)

// ProbeFailure is why a login probe didn't succeed, worded for humans.
type ProbeFailure string

const (
	FailureUnknown     ProbeFailure = "unknown error"
	FailureTimeout     ProbeFailure = "connection timed out"
	FailureRefused     ProbeFailure = "connection refused"
	FailureUnreachable ProbeFailure = "host unreachable"
	FailureAuth        ProbeFailure = "authentication failed"
	FailureHostKey     ProbeFailure = "host key not trusted"
	FailureIdentity    ProbeFailure = "logged in as the wrong user"
)

// failureSignatures is checked in order; timeouts come first since a
// timed-out dial can mention any of the later phrases.
var failureSignatures = []struct {
	failure   ProbeFailure
	fragments []string
}{
	{FailureTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{FailureRefused, []string{"connection refused"}},
	{FailureUnreachable, []string{"no route to host", "network is unreachable", "host is down", "no such host"}},
	{FailureAuth, []string{"unable to authenticate", "no supported methods", "no ssh auth methods", "encrypted", "permission denied"}},
	{FailureHostKey, []string{"host key", "known_hosts"}},
}

// ProbeError is a failed login probe.
type ProbeError struct {
	User    string
	Host    string
	Failure ProbeFailure
	Cause   error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("login probe %s@%s: %s", e.User, e.Host, e.Failure)
}

func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// Suggestion is the next thing to try for this kind of failure.
func (e *ProbeError) Suggestion() string {
	plainSSH := SSHCommand(e.User, e.Host)
	switch e.Failure {
	case FailureAuth:
		return "Check your keys are loaded: ssh-add -l"
	case FailureHostKey:
		return "Verify the host key by connecting once: " + plainSSH
	case FailureIdentity:
		return "Check target_username and any login scripts that switch users"
	case FailureRefused:
		return "Nothing is accepting SSH there. Is sshd running?"
	case FailureTimeout, FailureUnreachable:
		return "Check the host is online and reachable from here"
	}
	return "Try: " + plainSSH
}

// Probe logs in, checks whoami, and disconnects without running anything
// else. On success it returns how long that took.
func Probe(ctx context.Context, dial sshutil.Dialer, user, host string) (time.Duration, error) {
	start := time.Now()

	client, err := dial(ctx, user, host)
	if err != nil {
		return 0, &ProbeError{User: user, Host: host, Failure: classifyDialError(err), Cause: err}
	}
	defer client.Close()

	if err := VerifyIdentity(ctx, client, user); err != nil {
		return 0, &ProbeError{User: user, Host: host, Failure: FailureIdentity, Cause: err}
	}
	return time.Since(start), nil
}

func classifyDialError(err error) ProbeFailure {
	msg := strings.ToLower(err.Error())
	for _, sig := range failureSignatures {
		for _, f := range sig.fragments {
			if strings.Contains(msg, f) {
				return sig.failure
			}
		}
	}
	return FailureUnknown
}
