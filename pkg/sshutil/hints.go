package sshutil

import "strings"

// hint pairs error text fragments with advice. The first matching hint wins.
type hint struct {
	fragments []string
	advice    string
}

var dialHints = []hint{
	{[]string{"connection refused"}, "Nothing accepted the connection. Check sshd is running and the port is right."},
	{[]string{"no route to host", "network is unreachable"}, "No network route to the host. Check your connection or VPN."},
	{[]string{"no such host"}, "The hostname didn't resolve. Check target_host in config.yaml."},
	{[]string{"timeout", "deadline exceeded"}, "Connection timed out. The host may be down or behind a firewall."},
}

var handshakeHints = []hint{
	{[]string{"unable to authenticate", "no supported methods"}, "The server rejected every key offered. List loaded keys with: ssh-add -l"},
	{[]string{"host key"}, "Connect once with plain ssh to check the host key: ssh <host>"},
}

func pickHint(err error, hints []hint, fallback string) string {
	msg := err.Error()
	for _, h := range hints {
		for _, f := range h.fragments {
			if strings.Contains(msg, f) {
				return h.advice
			}
		}
	}
	return fallback
}

func dialHint(err error) string {
	return pickHint(err, dialHints, "Check the host is reachable: ssh <host>")
}

// handshakeHint prefers ssh-add instructions when auth failed and some keys
// were skipped for needing a passphrase.
func handshakeHint(err error, encrypted []string) string {
	advice := pickHint(err, handshakeHints, "Try the same login by hand: ssh <host>")
	if advice == handshakeHints[0].advice && len(encrypted) > 0 {
		return sshAddHint("Your key(s) need a passphrase. Add them to the agent:", encrypted)
	}
	return advice
}
