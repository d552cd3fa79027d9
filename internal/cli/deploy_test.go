package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rileyhilliard/rdeploy/internal/config"
	"github.com/rileyhilliard/rdeploy/internal/errors"
	"github.com/rileyhilliard/rdeploy/internal/logger"
	synctest "github.com/rileyhilliard/rdeploy/internal/sync/testing"
	"github.com/rileyhilliard/rdeploy/internal/ui"
	"github.com/rileyhilliard/rdeploy/pkg/sshutil"
	sshtest "github.com/rileyhilliard/rdeploy/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockDialer records dials and hands out a scripted client.
type mockDialer struct {
	mock.Mock
}

func (m *mockDialer) Dial(_ context.Context, user, host string) (sshutil.SSHClient, error) {
	args := m.Called(user, host)
	client, _ := args.Get(0).(sshutil.SSHClient)
	return client, args.Error(1)
}

const exampleConfig = `
pre_command:
  - echo hi
target_username: bob
target_host: example.com
target_location: app
target_command: ./deploy.sh
`

// deployCommandPattern matches the target command once the mock has
// resolved the leading cd.
const deployCommandPattern = `\./deploy\.sh`

func writeProject(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

type deployHarness struct {
	opts   DeployOptions
	syncer *synctest.FakeSyncer
	client *sshtest.MockClient
	dialer *mockDialer
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newDeployHarness(t *testing.T, content string) *deployHarness {
	t.Helper()

	h := &deployHarness{
		syncer: synctest.NewFakeSyncer(),
		client: sshtest.NewMockClient("example.com", "bob"),
		dialer: &mockDialer{},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	h.client.Mkdir("app")
	h.client.SetCommandResponse(deployCommandPattern, sshtest.CommandResponse{Stdout: []byte("deployed\n")})

	h.opts = DeployOptions{
		ConfigPath: writeProject(t, content),
		Syncer:     h.syncer,
		Dial:       h.dialer.Dial,
		Stdout:     h.stdout,
		Stderr:     h.stderr,
		Printer:    ui.NewPrinter(h.stdout, false),
		Logger:     logger.NewBufferLogger(),
	}
	return h
}

func (h *deployHarness) expectDial() {
	h.dialer.On("Dial", "bob", "example.com").Return(h.client, nil).Once()
}

func TestDeploy_EndToEnd(t *testing.T) {
	h := newDeployHarness(t, exampleConfig)
	h.expectDial()

	err := Deploy(context.Background(), h.opts)
	require.NoError(t, err)

	want := "[RUNNING] echo hi\n" +
		"hi\n" +
		"[SUCCESS] exit code: 0\n" +
		"rsync successful!\n" +
		"SSH login successful!\n" +
		"deployed\n"
	assert.True(t, strings.HasPrefix(h.stdout.String(), want), "got:\n%s", h.stdout.String())
	assert.Contains(t, h.stdout.String(), ui.MarkDone+" Deployed")

	require.Equal(t, 1, h.syncer.CallCount())
	call, _ := h.syncer.LastCall()
	assert.Equal(t, "bob@example.com:~/app", call.Destination)
	assert.Equal(t, ".", call.LocalDir)
	assert.False(t, call.IgnoreFailure)

	assert.Equal(t, []string{"whoami", "cd app && ./deploy.sh"}, h.client.Calls())
	assert.Equal(t, 1, h.client.CloseCount())
	h.dialer.AssertExpectations(t)
}

func TestDeploy_NoPreCommands(t *testing.T) {
	content := strings.Replace(exampleConfig, "pre_command:\n  - echo hi\n", "", 1)
	h := newDeployHarness(t, content)
	h.expectDial()

	require.NoError(t, Deploy(context.Background(), h.opts))

	assert.True(t, strings.HasPrefix(h.stdout.String(), "rsync successful!\n"))
	assert.NotContains(t, h.stdout.String(), "[RUNNING]")
}

func TestDeploy_ConfigErrorStopsEverything(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    string
	}{
		{
			name:    "missing field",
			content: "target_username: bob\ntarget_host: example.com\ntarget_location: app\n",
			code:    errors.ErrConfigMissing,
		},
		{
			name:    "malformed yaml",
			content: "target_username: [bob\n",
			code:    errors.ErrConfigParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newDeployHarness(t, tt.content)

			err := Deploy(context.Background(), h.opts)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)

			assert.Empty(t, h.stdout.String())
			assert.Zero(t, h.syncer.CallCount())
			h.dialer.AssertNotCalled(t, "Dial", mock.Anything, mock.Anything)
		})
	}
}

func TestDeploy_ConfigFileMissing(t *testing.T) {
	h := newDeployHarness(t, exampleConfig)
	h.opts.ConfigPath = filepath.Join(t.TempDir(), "config.yaml")

	err := Deploy(context.Background(), h.opts)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfigIO))
	assert.Zero(t, h.syncer.CallCount())
}

func TestDeploy_PreCommandNonZeroContinues(t *testing.T) {
	content := strings.Replace(exampleConfig, "  - echo hi\n", "  - sh -c \"exit 3\"\n  - \"false\"\n  - echo after\n", 1) +
		"split: shell\n"
	h := newDeployHarness(t, content)
	h.expectDial()

	require.NoError(t, Deploy(context.Background(), h.opts))

	out := h.stdout.String()
	assert.Contains(t, out, "[RUNNING] sh -c \"exit 3\"\n[SUCCESS] exit code: 3\n")
	assert.Contains(t, out, "[RUNNING] false\n[SUCCESS] exit code: 1\n")
	assert.Contains(t, out, "[RUNNING] echo after\nafter\n[SUCCESS] exit code: 0\n")
	assert.Contains(t, out, "SSH login successful!\ndeployed\n")
	assert.Equal(t, 1, h.syncer.CallCount())
	h.dialer.AssertExpectations(t)
}

func TestDeploy_TargetHostWithPort(t *testing.T) {
	content := strings.Replace(exampleConfig, "target_host: example.com", "target_host: example.com:2222", 1)
	h := newDeployHarness(t, content)
	h.dialer.On("Dial", "bob", "example.com:2222").Return(h.client, nil).Once()

	require.NoError(t, Deploy(context.Background(), h.opts))

	call, ok := h.syncer.LastCall()
	require.True(t, ok)
	assert.Equal(t, "bob@example.com:~/app", call.Destination)
	assert.Equal(t, "2222", call.Port)
	assert.Equal(t, []string{"whoami", "cd app && ./deploy.sh"}, h.client.Calls())
	h.dialer.AssertExpectations(t)
}

func TestDeploy_TargetHostWithUserRejected(t *testing.T) {
	content := strings.Replace(exampleConfig, "target_host: example.com", "target_host: alice@example.com", 1)
	h := newDeployHarness(t, content)

	err := Deploy(context.Background(), h.opts)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfigParse), "got %v", err)
	assert.Zero(t, h.syncer.CallCount())
	h.dialer.AssertNotCalled(t, "Dial", mock.Anything, mock.Anything)
}

func TestDeploy_PreCommandSpawnFailureAborts(t *testing.T) {
	content := strings.Replace(exampleConfig, "  - echo hi\n", "  - rdeploy-no-such-program --flag\n  - echo never\n", 1)
	h := newDeployHarness(t, content)

	err := Deploy(context.Background(), h.opts)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSpawn))

	assert.NotContains(t, h.stdout.String(), "echo never")
	assert.Zero(t, h.syncer.CallCount())
	h.dialer.AssertNotCalled(t, "Dial", mock.Anything, mock.Anything)
}

func TestDeploy_SyncFailure(t *testing.T) {
	t.Run("stops by default", func(t *testing.T) {
		h := newDeployHarness(t, exampleConfig)
		h.syncer.SetExitCode(23)

		err := Deploy(context.Background(), h.opts)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrSync))
		code, ok := errors.GetExitCode(err)
		require.True(t, ok)
		assert.Equal(t, 23, code)

		assert.Contains(t, h.stdout.String(), "rsync failure!")
		assert.NotContains(t, h.stdout.String(), "SSH login successful!")
		h.dialer.AssertNotCalled(t, "Dial", mock.Anything, mock.Anything)
	})

	t.Run("continues with IgnoreSyncFailure", func(t *testing.T) {
		h := newDeployHarness(t, exampleConfig)
		h.syncer.SetExitCode(23)
		h.opts.IgnoreSyncFailure = true
		h.expectDial()

		require.NoError(t, Deploy(context.Background(), h.opts))

		out := h.stdout.String()
		assert.Contains(t, out, "rsync failure!")
		assert.Contains(t, out, "SSH login successful!\ndeployed\n")

		call, _ := h.syncer.LastCall()
		assert.True(t, call.IgnoreFailure)
	})
}

func TestDeploy_SyncSpawnFailureAlwaysStops(t *testing.T) {
	h := newDeployHarness(t, exampleConfig)
	h.opts.IgnoreSyncFailure = true
	h.syncer.SetSpawnError(errors.New(errors.ErrSpawn, "Couldn't start rsync", ""))

	err := Deploy(context.Background(), h.opts)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSpawn))
	h.dialer.AssertNotCalled(t, "Dial", mock.Anything, mock.Anything)
}

func TestDeploy_DialFailure(t *testing.T) {
	h := newDeployHarness(t, exampleConfig)
	h.dialer.On("Dial", "bob", "example.com").
		Return(nil, errors.New(errors.ErrSSH, "Auth failed", "")).Once()

	err := Deploy(context.Background(), h.opts)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSSH))
	assert.NotContains(t, h.stdout.String(), "SSH login successful!")
}

func TestDeploy_IdentityMismatchHalts(t *testing.T) {
	h := newDeployHarness(t, exampleConfig)
	h.client.SetWhoami("root\n")
	h.expectDial()

	err := Deploy(context.Background(), h.opts)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrIdentity))

	assert.NotContains(t, h.stdout.String(), "SSH login successful!")
	assert.Equal(t, []string{"whoami"}, h.client.Calls(), "target command must not run")
	assert.True(t, h.client.IsClosed())
}

func TestDeploy_RemoteCommandFailure(t *testing.T) {
	h := newDeployHarness(t, exampleConfig)
	h.client.SetCommandResponse(deployCommandPattern, sshtest.CommandResponse{
		Stderr:   []byte("migration failed\n"),
		ExitCode: 3,
	})
	h.expectDial()

	err := Deploy(context.Background(), h.opts)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRemoteCommand))
	code, ok := errors.GetExitCode(err)
	require.True(t, ok)
	assert.Equal(t, 3, code)

	assert.Equal(t, "migration failed\n", h.stderr.String())
	assert.NotContains(t, h.stdout.String(), "Deployed")
	assert.True(t, h.client.IsClosed())
}

func TestDeploy_MissingRemoteLocation(t *testing.T) {
	content := strings.Replace(exampleConfig, "target_location: app", "target_location: releases", 1)
	h := newDeployHarness(t, content)
	h.expectDial()

	err := Deploy(context.Background(), h.opts)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRemoteCommand))
	assert.Contains(t, h.stderr.String(), "can't cd to releases")
}

func TestDeploy_SplitOverride(t *testing.T) {
	content := strings.Replace(exampleConfig, "  - echo hi\n", "  - sh -c 'echo quoted words'\n", 1)

	t.Run("space splitting passes quotes through", func(t *testing.T) {
		h := newDeployHarness(t, content)
		h.expectDial()

		require.NoError(t, Deploy(context.Background(), h.opts))
		assert.NotContains(t, h.stdout.String(), "\nquoted words\n")
	})

	t.Run("shell splitting honors quotes", func(t *testing.T) {
		h := newDeployHarness(t, content)
		h.opts.Split = "shell"
		h.expectDial()

		require.NoError(t, Deploy(context.Background(), h.opts))
		assert.Contains(t, h.stdout.String(), "\nquoted words\n")
	})
}

func TestDeploy_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "deploy.env")
	require.NoError(t, os.WriteFile(envPath, []byte("RDEPLOY_TEST_GREETING=hello-from-env\n"), 0644))

	content := strings.Replace(exampleConfig, "  - echo hi\n", "  - printenv RDEPLOY_TEST_GREETING\n", 1) +
		"env_file: " + envPath + "\n"
	h := newDeployHarness(t, content)
	h.expectDial()

	require.NoError(t, Deploy(context.Background(), h.opts))
	assert.Contains(t, h.stdout.String(), "hello-from-env\n")
}

func TestDeploy_TimeoutStopsPreCommand(t *testing.T) {
	content := strings.Replace(exampleConfig, "  - echo hi\n", "  - sleep 5\n", 1)
	h := newDeployHarness(t, content)
	h.opts.Timeout = 100 * time.Millisecond

	start := time.Now()
	err := Deploy(context.Background(), h.opts)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrWait), "got %v", err)
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Zero(t, h.syncer.CallCount())
}

func TestDeploy_CancelledContext(t *testing.T) {
	content := strings.Replace(exampleConfig, "  - echo hi\n", "  - sleep 5\n", 1)
	h := newDeployHarness(t, content)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	err := Deploy(ctx, h.opts)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrWait), "got %v", err)
}

func loadTestConfig(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := config.Load(writeProject(t, content))
	require.NoError(t, err)
	return cfg
}

func TestApplyOverrides(t *testing.T) {
	tests := []struct {
		name        string
		opts        DeployOptions
		wantSplit   string
		wantTimeout time.Duration
	}{
		{
			name:        "config values kept without flags",
			opts:        DeployOptions{},
			wantSplit:   "shell",
			wantTimeout: time.Minute,
		},
		{
			name:        "flags win",
			opts:        DeployOptions{Split: "space", Timeout: 10 * time.Minute},
			wantSplit:   "space",
			wantTimeout: 10 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadTestConfig(t, exampleConfig+"split: shell\ntimeout: 1m\n")
			applyOverrides(cfg, tt.opts)
			assert.Equal(t, tt.wantSplit, cfg.SplitMode())
			assert.Equal(t, tt.wantTimeout, cfg.Timeout)
		})
	}
}
