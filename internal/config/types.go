package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Split modes for pre-commands.
const (
	// SplitSpace splits on single spaces with no quoting support.
	SplitSpace = "space"
	// SplitShell tokenizes with shell quoting rules.
	SplitShell = "shell"
)

// Config represents the config.yaml deployment file.
// It is loaded once and not modified afterwards.
type Config struct {
	// PreCommands run locally, in order, before syncing.
	PreCommands []string `yaml:"pre_command,omitempty" mapstructure:"pre_command"`

	// TargetUsername is the remote login user.
	TargetUsername string `yaml:"target_username" mapstructure:"target_username" validate:"required"`

	// TargetHost is the remote hostname, address, or SSH config alias,
	// optionally with a port: "example.com:2222", "[2001:db8::1]:2222".
	TargetHost string `yaml:"target_host" mapstructure:"target_host" validate:"required,hostspec"`

	// TargetLocation is the remote directory, relative to the user's home.
	TargetLocation string `yaml:"target_location" mapstructure:"target_location" validate:"required"`

	// TargetCommand runs inside TargetLocation after the sync.
	TargetCommand string `yaml:"target_command" mapstructure:"target_command" validate:"required"`

	// EnvFile is an optional dotenv file exported to every pre-command.
	EnvFile string `yaml:"env_file,omitempty" mapstructure:"env_file" validate:"omitempty,file"`

	// Split selects the pre-command tokenizer: "space" (default) or "shell".
	Split string `yaml:"split,omitempty" mapstructure:"split" validate:"omitempty,oneof=space shell"`

	// Timeout bounds the whole deployment. Zero means no deadline.
	Timeout time.Duration `yaml:"-" mapstructure:"-"`
}

// Host returns TargetHost without its port or IPv6 brackets.
func (c *Config) Host() string {
	host, _ := splitHostSpec(c.TargetHost)
	return host
}

// Port returns the port written in TargetHost, or "" to use the SSH default.
func (c *Config) Port() string {
	_, port := splitHostSpec(c.TargetHost)
	return port
}

// Login returns the user@host string used for rsync and in messages. IPv6
// literals are bracketed so the result can be followed by ":path".
func (c *Config) Login() string {
	host := c.Host()
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("%s@%s", c.TargetUsername, host)
}

// Destination returns the rsync destination, rooted at the remote home directory.
func (c *Config) Destination() string {
	return fmt.Sprintf("%s:~/%s", c.Login(), c.TargetLocation)
}

// RemoteCommand returns the shell line run on the remote host.
func (c *Config) RemoteCommand() string {
	return fmt.Sprintf("cd %s && %s", c.TargetLocation, c.TargetCommand)
}

// SplitMode returns the configured tokenizer, defaulting to SplitSpace.
func (c *Config) SplitMode() string {
	if c.Split == "" {
		return SplitSpace
	}
	return c.Split
}

// splitHostSpec breaks "host[:port]" apart. An IPv6 literal carries a port
// only in brackets; a bare one is all host.
func splitHostSpec(spec string) (host, port string) {
	if h, p, err := net.SplitHostPort(spec); err == nil {
		return h, p
	}
	return strings.TrimSuffix(strings.TrimPrefix(spec, "["), "]"), ""
}
