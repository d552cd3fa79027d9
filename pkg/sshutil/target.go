package sshutil

import (
	"bufio"
	"bytes"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kevinburke/ssh_config"
	"github.com/rileyhilliard/rdeploy/internal/logger"
)

// target is where and as whom Dial connects once ~/.ssh/config is applied.
type target struct {
	hostname string
	port     string
	user     string
	identity string // IdentityFile for this host, ~ expanded
}

func (t target) address() string {
	return net.JoinHostPort(t.hostname, t.port)
}

// splitHostSpec breaks "[user@]host[:port]" apart. IPv6 literals need brackets
// to carry a port.
func splitHostSpec(spec string) (login, host, port string) {
	if i := strings.Index(spec, "@"); i >= 0 {
		login, spec = spec[:i], spec[i+1:]
	}
	if h, p, err := net.SplitHostPort(spec); err == nil {
		if _, convErr := strconv.Atoi(p); convErr == nil {
			return login, h, p
		}
	}
	return login, strings.TrimSuffix(strings.TrimPrefix(spec, "["), "]"), ""
}

var matchNotice sync.Once

// resolveTarget applies the SSH config at sshConfigPath to spec. An
// unreadable config is skipped; a port in spec wins over the config's Port.
func resolveTarget(spec, sshConfigPath string, log logger.Logger) target {
	if log == nil {
		log = logger.Noop()
	}

	login, host, port := splitHostSpec(spec)
	t := target{hostname: host, port: "22", user: currentUser()}
	if login != "" {
		t.user = login
	}
	if port != "" {
		t.port = port
	}

	cfg, matchLine, err := loadSSHConfig(sshConfigPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug("ignoring SSH config %s: %v", sshConfigPath, err)
		}
		return t
	}

	matched := false
	get := func(key string) string {
		v, _ := cfg.Get(host, key)
		matched = matched || v != ""
		return v
	}

	if v := get("HostName"); v != "" {
		t.hostname = v
	}
	if v := get("Port"); v != "" && port == "" {
		t.port = v
	}
	if v := get("IdentityFile"); v != "" {
		t.identity = expandPath(v)
	}

	if matchLine > 0 && !matched {
		matchNotice.Do(func() {
			log.Warn("'%s' has no entry before the Match block at line %d of %s; entries after it are not read",
				host, matchLine, sshConfigPath)
		})
	}
	return t
}

// loadSSHConfig decodes the SSH config at path. ssh_config has no Match
// support, so decoding stops at the first Match line, whose 1-based number
// is returned (0 when there is none).
func loadSSHConfig(path string) (*ssh_config.Config, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var kept bytes.Buffer
	matchLine := 0
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if fields := strings.Fields(line); len(fields) > 0 && strings.EqualFold(fields[0], "match") {
			matchLine = n
			break
		}
		kept.WriteString(line)
		kept.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, 0, err
	}

	cfg, err := ssh_config.Decode(&kept)
	if err != nil {
		return nil, matchLine, err
	}
	return cfg, matchLine, nil
}

// DefaultKeyFiles lists the private keys tried when no identity is configured.
func DefaultKeyFiles() []string {
	dir := sshDir()
	return []string{
		filepath.Join(dir, "id_ed25519"),
		filepath.Join(dir, "id_ecdsa"),
		filepath.Join(dir, "id_rsa"),
	}
}

// DefaultKnownHostsPath returns ~/.ssh/known_hosts.
func DefaultKnownHostsPath() string {
	return filepath.Join(sshDir(), "known_hosts")
}

func sshDir() string {
	return filepath.Join(homeDir(), ".ssh")
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.Getenv("HOME")
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

func expandPath(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(homeDir(), rest)
	}
	return path
}
