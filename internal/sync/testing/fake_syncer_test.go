package testing

import (
	"bytes"
	"context"
	"testing"

	"github.com/rileyhilliard/rdeploy/internal/errors"
	rsync "github.com/rileyhilliard/rdeploy/internal/sync"
	"github.com/rileyhilliard/rdeploy/internal/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeSyncer_Success(t *testing.T) {
	syncer := NewFakeSyncer()
	var out bytes.Buffer

	result, err := syncer.Sync(context.Background(), "bob@example.com:~/app", rsync.Options{
		LocalDir: ".",
		Printer:  ui.NewPrinter(&out, false),
	})

	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, 1, syncer.CallCount())
	assert.Equal(t, "rsync successful!\n", out.String())

	call, ok := syncer.LastCall()
	require.True(t, ok)
	assert.Equal(t, "bob@example.com:~/app", call.Destination)
}

func TestFakeSyncer_Failure(t *testing.T) {
	syncer := NewFakeSyncer().SetExitCode(12)

	_, err := syncer.Sync(context.Background(), "bob@example.com:~/app", rsync.Options{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSync))
}

func TestFakeSyncer_IgnoreFailure(t *testing.T) {
	syncer := NewFakeSyncer().SetExitCode(12)

	result, err := syncer.Sync(context.Background(), "bob@example.com:~/app", rsync.Options{IgnoreFailure: true})
	require.NoError(t, err)
	assert.Equal(t, 12, result.ExitCode)
}

func TestFakeSyncer_SpawnError(t *testing.T) {
	spawnErr := errors.New(errors.ErrSpawn, "rsync isn't installed locally", "")
	syncer := NewFakeSyncer().SetSpawnError(spawnErr)

	_, err := syncer.Sync(context.Background(), "bob@example.com:~/app", rsync.Options{IgnoreFailure: true})
	assert.Equal(t, spawnErr, err)
}

func TestFakeSyncer_Output(t *testing.T) {
	syncer := NewFakeSyncer().SetOutput("sending incremental file list", "sent 1024 bytes")
	var out bytes.Buffer

	_, err := syncer.Sync(context.Background(), "bob@example.com:~/app", rsync.Options{Stdout: &out})
	require.NoError(t, err)
	assert.Equal(t, "sending incremental file list\nsent 1024 bytes\n", out.String())
}
