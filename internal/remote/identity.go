package remote

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/rdeploy/internal/errors"
	"github.com/rileyhilliard/rdeploy/pkg/sshutil"
)

// VerifyIdentity runs whoami and requires its output to be exactly
// user followed by a single newline. Anything else, including extra
// whitespace or a non-zero exit, is an identity mismatch.
func VerifyIdentity(ctx context.Context, client sshutil.SSHClient, user string) error {
	stdout, _, exitCode, err := client.Exec(ctx, "whoami")
	if err != nil {
		return errors.Ensure(err, errors.ErrSSH, "Couldn't run whoami on the remote host",
			"The login went through but no command could run. Check the account's shell.")
	}

	expected := user + "\n"
	got := string(stdout)
	if exitCode == 0 && got == expected {
		return nil
	}

	return errors.WrapWithCode(&errors.IdentityMismatchError{Expected: expected, Got: got}, errors.ErrIdentity,
		fmt.Sprintf("Logged in to %s but the session isn't '%s'", client.GetHost(), user),
		"Check target_username and any ForceCommand or login scripts on the remote that change the user.")
}
