package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rileyhilliard/rdeploy/internal/remote"
	"github.com/rileyhilliard/rdeploy/internal/util"
	"github.com/rileyhilliard/rdeploy/pkg/sshutil"
)

// SSHKeyCheck verifies at least one private key file exists.
type SSHKeyCheck struct {
	KeyFiles []string // Defaults to sshutil.DefaultKeyFiles
}

func (c *SSHKeyCheck) Name() string     { return "ssh_key" }
func (c *SSHKeyCheck) Category() string { return "SSH" }

func (c *SSHKeyCheck) Run(context.Context) CheckResult {
	keys := c.KeyFiles
	if keys == nil {
		keys = sshutil.DefaultKeyFiles()
	}

	for _, keyPath := range keys {
		if _, err := os.Stat(keyPath); err == nil {
			return pass(fmt.Sprintf("SSH key found: %s", filepath.Base(keyPath)))
		}
	}

	if sshutil.AgentKeyCount() > 0 {
		return pass("No key files, but ssh-agent has keys")
	}

	return fail("No SSH key found", "Generate a key with: ssh-keygen -t ed25519")
}

// SSHAgentCheck reports whether ssh-agent is reachable and holds keys.
// A missing agent is only a warning since key files also work.
type SSHAgentCheck struct{}

func (c *SSHAgentCheck) Name() string     { return "ssh_agent" }
func (c *SSHAgentCheck) Category() string { return "SSH" }

func (c *SSHAgentCheck) Run(context.Context) CheckResult {
	if os.Getenv("SSH_AUTH_SOCK") == "" {
		return warn("SSH agent not running", "Start one with: eval $(ssh-agent) && ssh-add")
	}

	n := sshutil.AgentKeyCount()
	if n == 0 {
		return warn("SSH agent running but no keys loaded", "Add a key with: ssh-add")
	}
	return pass(fmt.Sprintf("SSH agent has %d %s", n, util.Pluralize(n, "key", "keys")))
}

// KnownHostCheck verifies the target host already has a known_hosts entry.
// rdeploy never trusts a new host key on its own.
type KnownHostCheck struct {
	Host           string
	KnownHostsPath string // Defaults to ~/.ssh/known_hosts
	SSHConfigPath  string // Defaults to ~/.ssh/config
}

func (c *KnownHostCheck) Name() string     { return "known_host" }
func (c *KnownHostCheck) Category() string { return "SSH" }

func (c *KnownHostCheck) Run(context.Context) CheckResult {
	knownHosts := c.KnownHostsPath
	if knownHosts == "" {
		knownHosts = sshutil.DefaultKnownHostsPath()
	}
	sshConfig := c.SSHConfigPath
	if sshConfig == "" {
		home, _ := os.UserHomeDir()
		sshConfig = filepath.Join(home, ".ssh", "config")
	}

	address := sshutil.ResolveAddress(c.Host, sshConfig)
	known, err := sshutil.IsKnownHost(knownHosts, address)
	if os.IsNotExist(err) {
		return fail(fmt.Sprintf("%s doesn't exist", knownHosts),
			fmt.Sprintf("Connect once with plain ssh to verify the host key: %s", remote.SSHCommand("", c.Host)))
	}
	if err != nil {
		return fail(fmt.Sprintf("Can't read %s: %v", knownHosts, err), "")
	}
	if !known {
		return fail(fmt.Sprintf("%s isn't in known_hosts", address),
			fmt.Sprintf("Verify the host key by connecting once: %s", remote.SSHCommand("", c.Host)))
	}
	return pass(fmt.Sprintf("Host key on file for %s", address))
}
