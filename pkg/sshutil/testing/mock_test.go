package testing

import (
	"bytes"
	"context"
	"errors"
	gotesting "testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_Whoami(t *gotesting.T) {
	client := NewMockClient("example.com", "bob")

	stdout, _, code, err := client.Exec(context.Background(), "whoami")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "bob\n", string(stdout))
}

func TestMockClient_SetWhoami(t *gotesting.T) {
	client := NewMockClient("example.com", "bob")
	client.SetWhoami("root\n")

	stdout, _, _, err := client.Exec(context.Background(), "whoami")
	require.NoError(t, err)
	assert.Equal(t, "root\n", string(stdout))
}

func TestMockClient_Cd(t *gotesting.T) {
	client := NewMockClient("example.com", "bob")
	client.SetCommandResponse("./deploy.sh", CommandResponse{Stdout: []byte("deployed\n")})

	var stdout, stderr bytes.Buffer
	code, err := client.ExecStream(context.Background(), "cd app && ./deploy.sh", &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 2, code, "app doesn't exist yet")
	assert.Contains(t, stderr.String(), "can't cd to app")

	client.Mkdir("~/app")
	stdout.Reset()
	code, err = client.ExecStream(context.Background(), "cd app && ./deploy.sh", &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "deployed\n", stdout.String())
}

func TestMockClient_CommandV(t *gotesting.T) {
	client := NewMockClient("example.com", "bob")

	stdout, _, code, err := client.Exec(context.Background(), "command -v rsync")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "/usr/bin/rsync\n", string(stdout))

	_, _, code, err = client.Exec(context.Background(), "command -v 'bash'")
	require.NoError(t, err)
	assert.Equal(t, 0, code, "quoted names resolve too")

	client.Uninstall("rsync")
	_, _, code, err = client.Exec(context.Background(), "command -v rsync")
	require.NoError(t, err)
	assert.Equal(t, 1, code)
}

func TestMockClient_PatternResponse(t *gotesting.T) {
	client := NewMockClient("example.com", "bob")
	client.SetCommandResponse(`^make .*`, CommandResponse{ExitCode: 2, Stderr: []byte("no rule\n")})

	_, stderr, code, err := client.Exec(context.Background(), "make deploy")
	require.NoError(t, err)
	assert.Equal(t, 2, code)
	assert.Equal(t, "no rule\n", string(stderr))
}

func TestMockClient_RulesMatchWholeCommand(t *gotesting.T) {
	client := NewMockClient("example.com", "bob")
	client.SetCommandResponse(`make .*`, CommandResponse{ExitCode: 2})
	client.SetCommandResponse(`make deploy`, CommandResponse{Stdout: []byte("ok\n")})

	stdout, _, code, err := client.Exec(context.Background(), "make deploy")
	require.NoError(t, err)
	assert.Equal(t, 0, code, "the later rule wins")
	assert.Equal(t, "ok\n", string(stdout))

	_, _, code, _ = client.Exec(context.Background(), "make build")
	assert.Equal(t, 2, code)

	_, _, code, _ = client.Exec(context.Background(), "sudo make build")
	assert.Equal(t, 0, code, "a rule never matches part of a command")
}

func TestMockClient_ErrorResponse(t *gotesting.T) {
	client := NewMockClient("example.com", "bob")
	boom := errors.New("session dropped")
	client.SetCommandResponse("whoami", CommandResponse{Error: boom})

	_, _, _, err := client.Exec(context.Background(), "whoami")
	assert.Equal(t, boom, err)

	code, err := client.ExecStream(context.Background(), "whoami", nil, nil)
	assert.Equal(t, -1, code)
	assert.Equal(t, boom, err)
}

func TestMockClient_CallsAndClose(t *gotesting.T) {
	client := NewMockClient("example.com", "bob")

	_, _, _, _ = client.Exec(context.Background(), "whoami")
	_, _ = client.ExecStream(context.Background(), "cd . && true", nil, nil)
	assert.Equal(t, []string{"whoami", "cd . && true"}, client.Calls())

	assert.False(t, client.IsClosed())
	require.NoError(t, client.Close())
	assert.True(t, client.IsClosed())
	assert.Equal(t, 1, client.CloseCount())

	_, _, _, err := client.Exec(context.Background(), "whoami")
	assert.Error(t, err)
}

func TestMockClient_CancelledContext(t *gotesting.T) {
	client := NewMockClient("example.com", "bob")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, code, err := client.Exec(ctx, "whoami")
	assert.Equal(t, -1, code)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, client.Calls())
}

func TestMockFS(t *gotesting.T) {
	fs := NewMockFS()
	assert.True(t, fs.IsDir("~"))
	assert.True(t, fs.IsDir("."))
	assert.False(t, fs.Exists("app"))

	require.NoError(t, fs.MkdirAll("~/app/releases"))
	assert.True(t, fs.IsDir("app"))
	assert.True(t, fs.IsDir("app/releases"))

	require.NoError(t, fs.WriteFile("site/index.html", []byte("<h1>hi</h1>")))
	assert.True(t, fs.IsDir("site"))
	assert.True(t, fs.Exists("~/site/index.html"))
	assert.False(t, fs.IsDir("site/index.html"))

	assert.Error(t, fs.MkdirAll("site/index.html"))
	assert.Error(t, fs.WriteFile("site/index.html/x", nil))
	assert.Error(t, fs.WriteFile("app", nil))

	data, err := fs.ReadFile("./site/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<h1>hi</h1>", string(data))
	_, err = fs.ReadFile("app")
	assert.Error(t, err)
}

func TestMockClient_Seed(t *gotesting.T) {
	client := NewMockClient("example.com", "bob")
	client.Seed(map[string]string{"app/deploy.sh": "#!/bin/sh\n"})

	assert.True(t, client.GetFS().IsDir("app"))
	assert.True(t, client.GetFS().Exists("app/deploy.sh"))
}
