package testing

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	gotesting "testing"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Handler runs one exec request. It receives the login user and the raw
// command line and returns the exit status.
type Handler func(user, cmd string, stdout, stderr io.Writer) int

// Server is an in-process SSH server on 127.0.0.1 that accepts one client
// key. It writes a matching private key and known_hosts file to a temp dir.
type Server struct {
	Addr           string
	Host           string // 127.0.0.1
	Port           string
	KeyPath        string // Private key the server accepts
	KnownHostsPath string // Contains the server's host key
	HostKey        ssh.PublicKey

	listener net.Listener
	handler  Handler
	wg       sync.WaitGroup
}

// NewServer starts a server and registers its shutdown with t.Cleanup.
func NewServer(t gotesting.TB, handler Handler) *Server {
	t.Helper()
	dir := t.TempDir()

	hostSigner := newSigner(t, nil)
	clientPriv := newPrivateKey(t)
	clientSigner, err := ssh.NewSignerFromKey(clientPriv)
	if err != nil {
		t.Fatalf("client signer: %v", err)
	}

	block, err := ssh.MarshalPrivateKey(clientPriv, "")
	if err != nil {
		t.Fatalf("marshal client key: %v", err)
	}
	keyPath := filepath.Join(dir, "id_ed25519")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("write client key: %v", err)
	}

	authorized := string(clientSigner.PublicKey().Marshal())
	config := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if string(key.Marshal()) == authorized {
				return &ssh.Permissions{}, nil
			}
			return nil, ssh.ErrNoAuth
		},
	}
	config.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	host, port, _ := net.SplitHostPort(listener.Addr().String())
	knownHostsPath := filepath.Join(dir, "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize(listener.Addr().String())}, hostSigner.PublicKey())
	if err := os.WriteFile(knownHostsPath, []byte(line+"\n"), 0600); err != nil {
		t.Fatalf("write known_hosts: %v", err)
	}

	s := &Server{
		Addr:           listener.Addr().String(),
		Host:           host,
		Port:           port,
		KeyPath:        keyPath,
		KnownHostsPath: knownHostsPath,
		HostKey:        hostSigner.PublicKey(),
		listener:       listener,
		handler:        handler,
	}

	s.wg.Add(1)
	go s.serve(config)

	t.Cleanup(func() {
		listener.Close()
		s.wg.Wait()
	})
	return s
}

// WriteKnownHosts writes a known_hosts file in dir trusting key for this
// server's address and returns its path.
func (s *Server) WriteKnownHosts(t gotesting.TB, dir string, key ssh.PublicKey) string {
	t.Helper()
	path := filepath.Join(dir, "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize(s.Addr)}, key)
	if err := os.WriteFile(path, []byte(line+"\n"), 0600); err != nil {
		t.Fatalf("write known_hosts: %v", err)
	}
	return path
}

// NewHostKey returns a fresh public key that doesn't belong to any server.
func NewHostKey(t gotesting.TB) ssh.PublicKey {
	t.Helper()
	return newSigner(t, nil).PublicKey()
}

func newPrivateKey(t gotesting.TB) ed25519.PrivateKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv
}

func newSigner(t gotesting.TB, priv ed25519.PrivateKey) ssh.Signer {
	t.Helper()
	if priv == nil {
		priv = newPrivateKey(t)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return signer
}

func (s *Server) serve(config *ssh.ServerConfig) {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn, config)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn, config *ssh.ServerConfig) {
	defer conn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "only sessions are supported")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(sshConn.User(), ch, chReqs)
	}
}

func (s *Server) handleSession(user string, ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()

	for req := range reqs {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}

		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			return
		}
		_ = req.Reply(true, nil)

		status := s.handler(user, payload.Command, ch, ch.Stderr())
		_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(status)}))
		return
	}
}
