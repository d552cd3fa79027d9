package doctor

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/rileyhilliard/rdeploy/internal/config"
	"github.com/rileyhilliard/rdeploy/pkg/sshutil"
	sshtest "github.com/rileyhilliard/rdeploy/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingDialer always hands out client and counts dials.
func countingDialer(client *sshtest.MockClient, dials *int) sshutil.Dialer {
	return func(context.Context, string, string) (sshutil.SSHClient, error) {
		*dials++
		return client, nil
	}
}

func failingDialer(err error) sshutil.Dialer {
	return func(context.Context, string, string) (sshutil.SSHClient, error) {
		return nil, err
	}
}

func TestRemoteSession_DialsOnce(t *testing.T) {
	client := sshtest.NewMockClient("example.com", "bob")
	var dials int
	session := NewRemoteSession(countingDialer(client, &dials), "bob", "example.com")

	for i := 0; i < 3; i++ {
		c, err := session.Client(context.Background())
		require.NoError(t, err)
		assert.Same(t, client, c)
	}
	assert.Equal(t, 1, dials)

	require.NoError(t, session.Close())
	assert.True(t, client.IsClosed())
}

func TestRemoteSession_CloseWithoutDial(t *testing.T) {
	session := NewRemoteSession(failingDialer(stderrors.New("unused")), "bob", "example.com")
	assert.NoError(t, session.Close())
}

func TestLoginCheck(t *testing.T) {
	client := sshtest.NewMockClient("example.com", "bob")
	var dials int

	r := (&LoginCheck{Dial: countingDialer(client, &dials), User: "bob", Host: "example.com"}).Run(context.Background())
	assert.Equal(t, StatusPass, r.Status)
	assert.Contains(t, r.Message, "Logged in as bob")
}

func TestLoginCheck_Failures(t *testing.T) {
	tests := []struct {
		name       string
		dial       sshutil.Dialer
		wantReason string
		wantFix    string
	}{
		{
			name:       "auth",
			dial:       failingDialer(stderrors.New("ssh: unable to authenticate")),
			wantReason: "authentication failed",
			wantFix:    "ssh-add -l",
		},
		{
			name:       "refused",
			dial:       failingDialer(stderrors.New("connect: connection refused")),
			wantReason: "connection refused",
			wantFix:    "sshd running",
		},
		{
			name: "identity",
			dial: func(context.Context, string, string) (sshutil.SSHClient, error) {
				c := sshtest.NewMockClient("example.com", "bob")
				c.SetWhoami("root\n")
				return c, nil
			},
			wantReason: "wrong user",
			wantFix:    "target_username",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := (&LoginCheck{Dial: tt.dial, User: "bob", Host: "example.com"}).Run(context.Background())
			assert.Equal(t, StatusFail, r.Status)
			assert.Contains(t, r.Message, tt.wantReason)
			assert.Contains(t, r.Suggestion, tt.wantFix)
		})
	}
}

func TestRsyncRemoteCheck(t *testing.T) {
	client := sshtest.NewMockClient("example.com", "bob")
	var dials int
	session := NewRemoteSession(countingDialer(client, &dials), "bob", "example.com")

	r := (&RsyncRemoteCheck{Session: session}).Run(context.Background())
	assert.Equal(t, StatusPass, r.Status)

	client.Uninstall("rsync")
	r = (&RsyncRemoteCheck{Session: session}).Run(context.Background())
	assert.Equal(t, StatusFail, r.Status)
	assert.Contains(t, r.Suggestion, "apt install rsync")
}

func TestTargetDirCheck(t *testing.T) {
	client := sshtest.NewMockClient("example.com", "bob")
	var dials int
	session := NewRemoteSession(countingDialer(client, &dials), "bob", "example.com")
	check := &TargetDirCheck{Session: session, Location: "app"}

	r := check.Run(context.Background())
	assert.Equal(t, StatusWarn, r.Status)
	assert.Contains(t, r.Suggestion, "rsync will create it")

	client.Mkdir("app")
	r = check.Run(context.Background())
	assert.Equal(t, StatusPass, r.Status)
	assert.Equal(t, "~/app exists", r.Message)
}

func TestCommandCheck(t *testing.T) {
	client := sshtest.NewMockClient("example.com", "bob")
	var dials int
	session := NewRemoteSession(countingDialer(client, &dials), "bob", "example.com")

	tests := []struct {
		command string
		want    CheckStatus
	}{
		{"./deploy.sh", StatusPass},
		{"bash deploy.sh", StatusPass},
		{"docker compose up -d", StatusWarn},
		{"", StatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			r := (&CommandCheck{Session: session, Location: "app", Command: tt.command}).Run(context.Background())
			assert.Equal(t, tt.want, r.Status, r.Message)
		})
	}
}

func TestRemoteChecks_NoConnection(t *testing.T) {
	session := NewRemoteSession(failingDialer(stderrors.New("connection refused")), "bob", "example.com")
	ctx := context.Background()

	for _, check := range []Check{
		&RsyncRemoteCheck{Session: session},
		&TargetDirCheck{Session: session, Location: "app"},
		&CommandCheck{Session: session, Location: "app", Command: "make"},
	} {
		r := check.Run(ctx)
		assert.Equal(t, StatusFail, r.Status, check.Name())
		assert.Contains(t, r.Message, "no connection", check.Name())
	}
}

func TestTargetChecks(t *testing.T) {
	cfg := &config.Config{
		TargetUsername: "bob",
		TargetHost:     "example.com",
		TargetLocation: "app",
		TargetCommand:  "./deploy.sh",
	}
	session := NewRemoteSession(failingDialer(stderrors.New("unused")), "bob", "example.com")

	checks := TargetChecks(cfg, session, SuiteOptions{})
	var names []string
	for _, c := range checks {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"known_host", "login", "rsync_remote", "target_dir", "target_command"}, names)

	local := LocalChecks(SuiteOptions{ConfigPath: "config.yaml"})
	assert.Len(t, local, 5)
}
