package sshutil

import (
	"crypto/ed25519"
	"crypto/rand"
	stderrors "errors"
	"net"
	"os"
	"sort"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// HostAlias is a concrete Host entry from an SSH config file.
type HostAlias struct {
	Alias        string
	Hostname     string
	User         string
	Port         string
	IdentityFile string
}

// Summary describes where the alias points, e.g. "10.0.0.10, user: deploy".
// Values equal to the defaults are left out.
func (h HostAlias) Summary() string {
	var parts []string
	if h.Hostname != "" && h.Hostname != h.Alias {
		parts = append(parts, h.Hostname)
	}
	if h.User != "" {
		parts = append(parts, "user: "+h.User)
	}
	if h.Port != "" && h.Port != "22" {
		parts = append(parts, "port: "+h.Port)
	}
	if parts == nil {
		return h.Alias
	}
	return strings.Join(parts, ", ")
}

// ListHosts returns the concrete aliases in the SSH config at configPath,
// sorted, with wildcard patterns left out. A missing file has no hosts.
func ListHosts(configPath string) ([]HostAlias, error) {
	cfg, _, err := loadSSHConfig(configPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	byAlias := make(map[string]HostAlias)
	for _, host := range cfg.Hosts {
		for _, pattern := range host.Patterns {
			alias := pattern.String()
			if _, dup := byAlias[alias]; dup || strings.ContainsAny(alias, "*?!") {
				continue
			}
			get := func(key string) string {
				v, _ := cfg.Get(alias, key)
				return v
			}
			entry := HostAlias{Alias: alias, Hostname: get("HostName"), User: get("User"), Port: get("Port")}
			if identity := get("IdentityFile"); identity != "" {
				entry.IdentityFile = expandPath(identity)
			}
			byAlias[alias] = entry
		}
	}

	hosts := make([]HostAlias, 0, len(byAlias))
	for _, h := range byAlias {
		hosts = append(hosts, h)
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Alias < hosts[j].Alias })
	return hosts, nil
}

// ResolveAddress returns the host:port Dial would connect to for host,
// after applying the SSH config at configPath.
func ResolveAddress(host, configPath string) string {
	return resolveTarget(host, configPath, nil).address()
}

// IsKnownHost reports whether known_hosts has an entry for address
// (host:port), hashed entries included. It never modifies the file.
func IsKnownHost(knownHostsPath, address string) (bool, error) {
	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return false, err
	}

	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, "22")
	}

	// Probe with a throwaway key: a known host reports a mismatch listing
	// the keys it expects, an unknown one reports no expected keys.
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return false, err
	}
	probe, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return false, err
	}

	err = callback(address, &net.TCPAddr{IP: net.IPv4zero}, probe.PublicKey())
	var keyErr *knownhosts.KeyError
	if stderrors.As(err, &keyErr) {
		return len(keyErr.Want) > 0, nil
	}
	var revoked *knownhosts.RevokedError
	if stderrors.As(err, &revoked) {
		return true, nil
	}
	return err == nil, err
}
