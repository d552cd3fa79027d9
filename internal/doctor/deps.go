package doctor

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/rdeploy/internal/sync"
)

// minProtocol is rsync 3.0 and later.
const minProtocol = 30

// RsyncLocalCheck verifies rsync is installed locally.
type RsyncLocalCheck struct{}

func (c *RsyncLocalCheck) Name() string     { return "rsync_local" }
func (c *RsyncLocalCheck) Category() string { return "DEPENDENCIES" }

func (c *RsyncLocalCheck) Run(ctx context.Context) CheckResult {
	bin, err := sync.Inspect(ctx)
	switch {
	case bin.Path == "":
		return fail("rsync not found locally",
			"Install rsync: brew install rsync (macOS) or apt install rsync (Linux)")
	case err != nil:
		return pass(fmt.Sprintf("rsync at %s (version unknown)", bin.Path))
	case bin.Protocol < minProtocol:
		return warn(fmt.Sprintf("%s is old", bin),
			"Deploys should still work, but a newer rsync is faster and handles --delete better")
	}
	return pass(bin.String())
}

// RsyncRemoteCheck verifies rsync is installed on the target host.
type RsyncRemoteCheck struct {
	Session *RemoteSession
}

func (c *RsyncRemoteCheck) Name() string     { return "rsync_remote" }
func (c *RsyncRemoteCheck) Category() string { return "DEPENDENCIES" }

func (c *RsyncRemoteCheck) Run(ctx context.Context) CheckResult {
	client, err := c.Session.Client(ctx)
	if err != nil {
		return fail(fmt.Sprintf("rsync (%s): no connection", c.Session.Host), "See the login check below")
	}

	if err := sync.RemoteHasRsync(ctx, client); err != nil {
		return fail(fmt.Sprintf("rsync not found on %s", c.Session.Host),
			"Install it on the remote: apt install rsync (Debian/Ubuntu) or yum install rsync (RHEL)")
	}
	return pass(fmt.Sprintf("rsync available on %s", c.Session.Host))
}
