package sync

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/rileyhilliard/rdeploy/internal/errors"
	"github.com/rileyhilliard/rdeploy/pkg/sshutil"
)

const installHint = "Install rsync: brew install rsync (macOS) or apt install rsync (Debian/Ubuntu)"

// Binary describes an rsync found on PATH.
type Binary struct {
	Path     string
	Version  string // e.g. "3.2.7"; "openrsync" builds report none
	Protocol int
}

func (b Binary) String() string {
	if b.Version == "" {
		return fmt.Sprintf("rsync at %s (protocol %d)", b.Path, b.Protocol)
	}
	return fmt.Sprintf("rsync %s (protocol %d)", b.Version, b.Protocol)
}

// LocateRsync returns the path of the local rsync.
func LocateRsync() (string, error) {
	path, err := exec.LookPath("rsync")
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrSpawn, "rsync isn't installed locally", installHint)
	}
	return path, nil
}

// Inspect locates rsync and asks it for its version.
func Inspect(ctx context.Context) (Binary, error) {
	path, err := LocateRsync()
	if err != nil {
		return Binary{}, err
	}

	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return Binary{Path: path}, errors.WrapWithCode(err, errors.ErrSpawn,
			fmt.Sprintf("%s --version failed", path), installHint)
	}

	version, protocol, ok := parseVersion(string(out))
	if !ok {
		return Binary{Path: path}, errors.New(errors.ErrSpawn,
			"Couldn't read the rsync version", "Run 'rsync --version' to check the install.")
	}
	return Binary{Path: path, Version: version, Protocol: protocol}, nil
}

var (
	versionRe  = regexp.MustCompile(`rsync\s+version\s+v?(\d+(?:\.\d+)*)`)
	protocolRe = regexp.MustCompile(`protocol version (\d+)`)
)

// parseVersion reads the banner of `rsync --version`, e.g.
// "rsync  version 3.2.7  protocol version 31" or "openrsync: protocol version 29".
func parseVersion(banner string) (string, int, bool) {
	m := protocolRe.FindStringSubmatch(banner)
	if m == nil {
		return "", 0, false
	}
	protocol, err := strconv.Atoi(m[1])
	if err != nil {
		return "", 0, false
	}

	var version string
	if v := versionRe.FindStringSubmatch(banner); v != nil {
		version = v[1]
	}
	return version, protocol, true
}

// RemoteHasRsync checks that the receiving side can run rsync.
func RemoteHasRsync(ctx context.Context, client sshutil.SSHClient) error {
	_, stderr, exitCode, err := client.Exec(ctx, "command -v rsync")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't look for rsync on %s", client.GetHost()), "Check the SSH connection.")
	}
	if exitCode == 0 {
		return nil
	}
	msg := fmt.Sprintf("rsync isn't installed on %s", client.GetHost())
	if detail := strings.TrimSpace(string(stderr)); detail != "" {
		msg += ": " + detail
	}
	return errors.New(errors.ErrSync, msg,
		"Install it on the remote: apt install rsync (Debian/Ubuntu) or dnf install rsync (Fedora/RHEL)")
}
