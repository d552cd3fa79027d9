package doctor

import (
	"github.com/rileyhilliard/rdeploy/internal/config"
	"github.com/rileyhilliard/rdeploy/pkg/sshutil"
)

// SuiteOptions configures the full set of preflight checks.
type SuiteOptions struct {
	ConfigPath     string
	Dial           sshutil.Dialer
	KnownHostsPath string
	SSHConfigPath  string
	KeyFiles       []string
}

// LocalChecks returns the checks that need nothing but this machine.
func LocalChecks(opts SuiteOptions) []Check {
	return []Check{
		&ConfigFileCheck{Path: opts.ConfigPath},
		&ConfigSchemaCheck{Path: opts.ConfigPath},
		&RsyncLocalCheck{},
		&SSHKeyCheck{KeyFiles: opts.KeyFiles},
		&SSHAgentCheck{},
	}
}

// TargetChecks returns the checks that talk to the deployment target.
// They share session, which the caller must close.
func TargetChecks(cfg *config.Config, session *RemoteSession, opts SuiteOptions) []Check {
	return []Check{
		&KnownHostCheck{
			Host:           cfg.TargetHost,
			KnownHostsPath: opts.KnownHostsPath,
			SSHConfigPath:  opts.SSHConfigPath,
		},
		&LoginCheck{Dial: opts.Dial, User: cfg.TargetUsername, Host: cfg.TargetHost},
		&RsyncRemoteCheck{Session: session},
		&TargetDirCheck{Session: session, Location: cfg.TargetLocation},
		&CommandCheck{Session: session, Location: cfg.TargetLocation, Command: cfg.TargetCommand},
	}
}
