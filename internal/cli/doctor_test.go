package cli

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rileyhilliard/rdeploy/internal/doctor"
	"github.com/rileyhilliard/rdeploy/internal/errors"
	sshtest "github.com/rileyhilliard/rdeploy/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh/knownhosts"
)

type doctorHarness struct {
	opts   DoctorOptions
	dialer *mockDialer
	stdout *bytes.Buffer
}

func newDoctorHarness(t *testing.T, configContent string) *doctorHarness {
	t.Helper()
	dir := t.TempDir()

	keyPath := filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, []byte("not checked"), 0600))

	knownHostsPath := filepath.Join(dir, "known_hosts")
	line := knownhosts.Line([]string{"example.com"}, sshtest.NewHostKey(t))
	require.NoError(t, os.WriteFile(knownHostsPath, []byte(line+"\n"), 0600))

	configPath := filepath.Join(dir, "config.yaml")
	if configContent != "" {
		require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))
	}

	h := &doctorHarness{dialer: &mockDialer{}, stdout: &bytes.Buffer{}}
	h.opts = DoctorOptions{
		ConfigPath:     configPath,
		Dial:           h.dialer.Dial,
		KnownHostsPath: knownHostsPath,
		SSHConfigPath:  filepath.Join(dir, "ssh_config"),
		KeyFiles:       []string{keyPath},
		Stdout:         h.stdout,
	}
	return h
}

// expectLogins hands out a fresh client per dial: the login check closes
// its own connection before the shared session opens another.
func (h *doctorHarness) expectLogins(dirs ...string) {
	for i := 0; i < 2; i++ {
		client := sshtest.NewMockClient("example.com", "bob")
		client.Mkdir(dirs...)
		h.dialer.On("Dial", "bob", "example.com").Return(client, nil).Once()
	}
}

func resultsByName(t *testing.T, raw []byte) map[string]map[string]interface{} {
	t.Helper()
	var out struct {
		Categories []struct {
			Name    string                   `json:"name"`
			Results []map[string]interface{} `json:"results"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))

	byName := map[string]map[string]interface{}{}
	for _, cat := range out.Categories {
		for _, r := range cat.Results {
			byName[r["name"].(string)] = r
		}
	}
	return byName
}

func TestDoctor_NoConfig(t *testing.T) {
	h := newDoctorHarness(t, "")

	err := Doctor(context.Background(), h.opts)
	require.Error(t, err)
	var exitErr *errors.ExitError
	assert.True(t, stderrors.As(err, &exitErr), "failures are reported, not printed again")

	out := h.stdout.String()
	assert.Contains(t, out, "rdeploy Diagnostic Report")
	assert.Contains(t, out, "CONFIG")
	assert.Contains(t, out, "Run 'rdeploy init' to create one")
	assert.NotContains(t, out, "REMOTE")
	h.dialer.AssertNotCalled(t, "Dial", mock.Anything, mock.Anything)
}

func TestDoctor_TargetChecksJSON(t *testing.T) {
	h := newDoctorHarness(t, exampleConfig)
	h.opts.JSON = true
	h.expectLogins("app")

	_ = Doctor(context.Background(), h.opts)

	results := resultsByName(t, h.stdout.Bytes())
	for _, name := range []string{"config_file", "config_schema", "ssh_key", "known_host", "login", "rsync_remote", "target_dir", "target_command"} {
		r, ok := results[name]
		require.True(t, ok, "missing %s", name)
		assert.Equal(t, "pass", r["status"], "%s: %v", name, r["message"])
	}
	assert.Contains(t, results, "rsync_local")
	assert.Equal(t, "REMOTE", results["login"]["category"])
	h.dialer.AssertExpectations(t)
}

func TestDoctor_MissingTargetDirWarns(t *testing.T) {
	h := newDoctorHarness(t, exampleConfig)
	h.opts.JSON = true
	h.expectLogins()

	_ = Doctor(context.Background(), h.opts)

	results := resultsByName(t, h.stdout.Bytes())
	assert.Equal(t, "warn", results["target_dir"]["status"])
	assert.Equal(t, "pass", results["login"]["status"])
}

func TestDoctor_UnknownHostFails(t *testing.T) {
	h := newDoctorHarness(t, `
target_username: bob
target_host: unknown.example.org
target_location: app
target_command: ./deploy.sh
`)
	h.opts.JSON = true
	h.dialer.On("Dial", "bob", "unknown.example.org").
		Return(nil, errors.New(errors.ErrSSH, "unknown.example.org isn't in known_hosts", ""))

	err := Doctor(context.Background(), h.opts)
	require.Error(t, err)

	results := resultsByName(t, h.stdout.Bytes())
	assert.Equal(t, "fail", results["known_host"]["status"])
	assert.Equal(t, "fail", results["login"]["status"])
}

func TestBuildDoctorOutput(t *testing.T) {
	results := []doctor.CheckResult{
		{Name: "config_file", Category: "CONFIG", Status: doctor.StatusPass},
		{Name: "ssh_agent", Category: "SSH", Status: doctor.StatusWarn},
		{Name: "config_schema", Category: "CONFIG", Status: doctor.StatusPass},
	}

	out := buildDoctorOutput(results)
	require.Len(t, out.Categories, 2)
	assert.Equal(t, "CONFIG", out.Categories[0].Name)
	assert.Len(t, out.Categories[0].Results, 2)
	assert.Equal(t, "SSH", out.Categories[1].Name)

	assert.Equal(t, 2, out.Summary.Pass)
	assert.Equal(t, 1, out.Summary.Warn)
	assert.False(t, out.Summary.AllClear)
}
