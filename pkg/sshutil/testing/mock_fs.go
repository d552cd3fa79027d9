package testing

import (
	"fmt"
	"path"
	"strings"
	"sync"
)

// node is one entry in the simulated tree. A nil data slice with dir set
// is a directory; everything else is a file.
type node struct {
	dir  bool
	data []byte
}

// MockFS is an in-memory stand-in for the login user's home directory.
// "app", "./app" and "~/app" all name the same entry; "~" and "." are home.
type MockFS struct {
	mu    sync.RWMutex
	nodes map[string]node
}

func NewMockFS() *MockFS {
	return &MockFS{nodes: map[string]node{".": {dir: true}}}
}

// key maps a remote path to its entry name, relative to home.
func key(p string) string {
	if p == "~" {
		return "."
	}
	return path.Clean(strings.TrimPrefix(p, "~/"))
}

// ancestors lists p's parents from the top down, excluding home.
func ancestors(p string) []string {
	var out []string
	for d := path.Dir(p); d != "." && d != "/"; d = path.Dir(d) {
		out = append([]string{d}, out...)
	}
	return out
}

// MkdirAll behaves like `mkdir -p`.
func (fs *MockFS) MkdirAll(p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	k := key(p)
	for _, d := range append(ancestors(k), k) {
		if n, ok := fs.nodes[d]; ok && !n.dir {
			return fmt.Errorf("mkdir %s: not a directory", d)
		}
		fs.nodes[d] = node{dir: true}
	}
	return nil
}

// WriteFile stores content at p, creating missing parents.
func (fs *MockFS) WriteFile(p string, content []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	k := key(p)
	for _, d := range ancestors(k) {
		if n, ok := fs.nodes[d]; ok && !n.dir {
			return fmt.Errorf("write %s: %s is a file", p, d)
		}
		fs.nodes[d] = node{dir: true}
	}
	if n, ok := fs.nodes[k]; ok && n.dir {
		return fmt.Errorf("write %s: is a directory", p)
	}
	fs.nodes[k] = node{data: append([]byte(nil), content...)}
	return nil
}

func (fs *MockFS) lookup(p string) (node, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	n, ok := fs.nodes[key(p)]
	return n, ok
}

// Exists reports whether p names a file or directory.
func (fs *MockFS) Exists(p string) bool {
	_, ok := fs.lookup(p)
	return ok
}

// IsDir reports whether p names a directory.
func (fs *MockFS) IsDir(p string) bool {
	n, ok := fs.lookup(p)
	return ok && n.dir
}

// ReadFile returns a copy of the file at p.
func (fs *MockFS) ReadFile(p string) ([]byte, error) {
	n, ok := fs.lookup(p)
	if !ok || n.dir {
		return nil, fmt.Errorf("read %s: no such file", p)
	}
	return append([]byte(nil), n.data...), nil
}
