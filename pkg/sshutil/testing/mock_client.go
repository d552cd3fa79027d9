// Package testing provides SSH test doubles: a scripted MockClient that
// simulates a remote login, and an in-process Server for exercising the
// real client end to end.
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/rileyhilliard/rdeploy/pkg/sshutil"
)

// CommandResponse is what the mock answers for a matching command.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

type rule struct {
	re   *regexp.Regexp
	resp CommandResponse
}

// MockClient plays a remote login shell.
//
// whoami names the login user, `command -v` consults a small simulated
// PATH, and `cd <dir> && <rest>` checks dir against an in-memory home
// directory before running rest. Scripted responses take precedence over
// all of that.
type MockClient struct {
	mu         sync.Mutex
	host       string
	user       string
	fs         *MockFS
	rules      []rule
	path       map[string]string // command name -> location
	calls      []string
	closed     bool
	closeCount int
}

// NewMockClient returns a client logged in to host as user, with an empty
// home directory and rsync, sh and bash on the PATH.
func NewMockClient(host, user string) *MockClient {
	return &MockClient{
		host: host,
		user: user,
		fs:   NewMockFS(),
		path: map[string]string{
			"rsync": "/usr/bin/rsync",
			"sh":    "/bin/sh",
			"bash":  "/bin/bash",
		},
	}
}

// SetCommandResponse scripts the answer for commands matching pattern. The
// pattern is a regular expression that has to match the whole command; a
// literal string works as long as it has no regexp metacharacters that
// matter. Later calls take precedence over earlier ones.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		re = regexp.MustCompile(`^` + regexp.QuoteMeta(pattern) + `$`)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule{re: re, resp: resp})
}

// SetWhoami makes whoami print output instead of the login user.
func (m *MockClient) SetWhoami(output string) {
	m.SetCommandResponse("whoami", CommandResponse{Stdout: []byte(output)})
}

// Uninstall takes name off the simulated PATH.
func (m *MockClient) Uninstall(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.path, name)
}

// Mkdir creates directories in the simulated home, parents included.
func (m *MockClient) Mkdir(dirs ...string) *MockClient {
	for _, dir := range dirs {
		_ = m.fs.MkdirAll(dir)
	}
	return m
}

// Seed writes files into the simulated home, keyed by path.
func (m *MockClient) Seed(files map[string]string) *MockClient {
	for path, content := range files {
		_ = m.fs.WriteFile(path, []byte(content))
	}
	return m
}

func (m *MockClient) GetFS() *MockFS {
	return m.fs
}

// Exec records cmd and answers it. A cancelled context fails before
// anything is recorded.
func (m *MockClient) Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, -1, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, cmd)
	if m.closed {
		return nil, nil, -1, errors.New("connection closed")
	}
	resp := m.respond(strings.TrimSpace(cmd))
	if resp.Error != nil {
		return nil, nil, -1, resp.Error
	}
	return resp.Stdout, resp.Stderr, resp.ExitCode, nil
}

// ExecStream is Exec with the output copied to stdout and stderr.
func (m *MockClient) ExecStream(ctx context.Context, cmd string, stdout, stderr io.Writer) (int, error) {
	out, errOut, code, err := m.Exec(ctx, cmd)
	if err != nil {
		return -1, err
	}
	for _, pipe := range []struct {
		w    io.Writer
		data []byte
	}{{stdout, out}, {stderr, errOut}} {
		if pipe.w != nil && len(pipe.data) > 0 {
			pipe.w.Write(pipe.data)
		}
	}
	return code, nil
}

// respond is the simulated shell. Callers hold m.mu.
func (m *MockClient) respond(cmd string) CommandResponse {
	for i := len(m.rules) - 1; i >= 0; i-- {
		if m.rules[i].re.MatchString(cmd) {
			return m.rules[i].resp
		}
	}

	switch {
	case cmd == "whoami":
		return CommandResponse{Stdout: []byte(m.user + "\n")}

	case strings.HasPrefix(cmd, "command -v "):
		name := strings.Trim(strings.TrimSpace(strings.TrimPrefix(cmd, "command -v ")), "'")
		if loc, ok := m.path[name]; ok {
			return CommandResponse{Stdout: []byte(loc + "\n")}
		}
		return CommandResponse{ExitCode: 1}

	case strings.HasPrefix(cmd, "cd "):
		dir, rest, _ := strings.Cut(strings.TrimPrefix(cmd, "cd "), "&&")
		dir = strings.TrimSpace(dir)
		if !m.fs.IsDir(dir) {
			return CommandResponse{Stderr: []byte(fmt.Sprintf("sh: 1: cd: can't cd to %s\n", dir)), ExitCode: 2}
		}
		if rest = strings.TrimSpace(rest); rest != "" {
			return m.respond(rest)
		}
	}

	// Anything else succeeds silently.
	return CommandResponse{}
}

func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.closeCount++
	return nil
}

func (m *MockClient) GetHost() string {
	return m.host
}

func (m *MockClient) GetAddress() string {
	return m.host + ":22"
}

// Calls returns every command received so far, in order.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockClient) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCount
}

func (m *MockClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ sshutil.SSHClient = (*MockClient)(nil)
