package sshutil

import (
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/rileyhilliard/rdeploy/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// strictHostKeys accepts only keys already recorded in knownHostsPath.
// A missing file is an error; it is never created.
func strictHostKeys(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(knownHostsPath); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't read known_hosts at %s", knownHostsPath),
			"Connect once with plain ssh to verify the host key, then run rdeploy again.")
	}

	check, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't parse %s", knownHostsPath),
			"Look for corrupted lines with: ssh-keygen -l -f "+knownHostsPath)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if !stderrors.As(err, &keyErr) {
			return err
		}
		if len(keyErr.Want) == 0 {
			return &UnknownHostError{Hostname: hostname, KnownHosts: knownHostsPath}
		}
		return &HostKeyMismatchError{
			Hostname:     hostname,
			ReceivedType: key.Type(),
			KnownHosts:   knownHostsPath,
			Want:         keyErr.Want,
		}
	}, nil
}

// UnknownHostError means known_hosts has no entry for the server.
type UnknownHostError struct {
	Hostname   string
	KnownHosts string
}

func (e *UnknownHostError) Error() string {
	return fmt.Sprintf("%s isn't in %s", e.Hostname, e.KnownHosts)
}

func (e *UnknownHostError) Suggestion() string {
	host := hostOnly(e.Hostname)
	return "Host keys are never trusted automatically. Check the fingerprint and record it:\n" +
		"    ssh " + host + "\n" +
		"  or\n" +
		"    ssh-keyscan " + host + " >> " + e.KnownHosts
}

// HostKeyMismatchError means the server presented a key other than the
// recorded one.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

func (e *HostKeyMismatchError) Suggestion() string {
	recorded := make([]string, 0, len(e.Want))
	for _, k := range e.Want {
		recorded = append(recorded, fmt.Sprintf("%s (%s:%d)", k.Key.Type(), k.Filename, k.Line))
	}
	if len(recorded) == 0 {
		recorded = append(recorded, "unknown")
	}

	return fmt.Sprintf("Recorded: %s\n  Received: %s\n\n"+
		"  If the server was rebuilt on purpose, drop the old entry and reconnect:\n"+
		"    ssh-keygen -R %s",
		strings.Join(recorded, ", "), e.ReceivedType, hostOnly(e.Hostname))
}

func hostOnly(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}
