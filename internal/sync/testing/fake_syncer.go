// Package testing provides test doubles for the sync package.
package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/rileyhilliard/rdeploy/internal/errors"
	rsync "github.com/rileyhilliard/rdeploy/internal/sync"
)

// SyncCall records a call to the syncer.
type SyncCall struct {
	Destination   string
	Port          string
	LocalDir      string
	IgnoreFailure bool
}

// FakeSyncer simulates rsync runs for testing.
// It records calls and behaves like the real syncer for the configured
// exit code: status lines are printed and IgnoreFailure is honored.
type FakeSyncer struct {
	mu sync.Mutex

	// Configuration
	ExitCode   int
	SpawnError error
	Output     []string // Lines written to Stdout before exiting

	// Call tracking
	Calls []SyncCall
}

// NewFakeSyncer creates a new fake syncer that succeeds by default.
func NewFakeSyncer() *FakeSyncer {
	return &FakeSyncer{}
}

// Sync implements rsync.Syncer.
func (f *FakeSyncer) Sync(_ context.Context, destination string, opts rsync.Options) (rsync.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, SyncCall{
		Destination:   destination,
		Port:          opts.Port,
		LocalDir:      opts.LocalDir,
		IgnoreFailure: opts.IgnoreFailure,
	})

	if f.SpawnError != nil {
		return rsync.Result{ExitCode: -1}, f.SpawnError
	}

	if opts.Stdout != nil {
		for _, line := range f.Output {
			fmt.Fprintln(opts.Stdout, line)
		}
	}

	result := rsync.Result{ExitCode: f.ExitCode}
	if result.OK() {
		if opts.Printer != nil {
			opts.Printer.SyncSucceeded()
		}
		return result, nil
	}

	result.Reason = fmt.Sprintf("rsync exited with code %d", f.ExitCode)
	if opts.Printer != nil {
		opts.Printer.SyncFailed(result.Reason)
	}
	if opts.IgnoreFailure {
		return result, nil
	}
	return result, errors.WrapWithCode(errors.NewExitError(f.ExitCode), errors.ErrSync, result.Reason, "")
}

// SetExitCode configures the exit code rsync "returns".
func (f *FakeSyncer) SetExitCode(code int) *FakeSyncer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ExitCode = code
	return f
}

// SetSpawnError makes the syncer fail as if rsync could not be started.
func (f *FakeSyncer) SetSpawnError(err error) *FakeSyncer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SpawnError = err
	return f
}

// SetOutput configures lines to emit during sync.
func (f *FakeSyncer) SetOutput(lines ...string) *FakeSyncer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Output = lines
	return f
}

// CallCount returns how many times Sync was called.
func (f *FakeSyncer) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// LastCall returns the most recent call, or false if there were none.
func (f *FakeSyncer) LastCall() (SyncCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Calls) == 0 {
		return SyncCall{}, false
	}
	return f.Calls[len(f.Calls)-1], true
}

var _ rsync.Syncer = (*FakeSyncer)(nil)
