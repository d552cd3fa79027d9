package sshutil

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/rileyhilliard/rdeploy/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// agentLink is the process-wide ssh-agent connection, opened on first use.
var agentLink struct {
	once   sync.Once
	conn   net.Conn
	client agent.ExtendedAgent
}

// agentSigners returns the agent's keys, or nil without a usable agent.
func agentSigners() []ssh.Signer {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil
	}
	agentLink.once.Do(func() {
		conn, err := net.Dial("unix", sock)
		if err != nil {
			return
		}
		agentLink.conn = conn
		agentLink.client = agent.NewClient(conn)
	})
	if agentLink.client == nil {
		return nil
	}
	signers, err := agentLink.client.Signers()
	if err != nil {
		return nil
	}
	return signers
}

// AgentKeyCount reports how many keys the running ssh-agent holds.
func AgentKeyCount() int {
	return len(agentSigners())
}

// CloseAgent closes the ssh-agent connection if one was opened.
func CloseAgent() {
	if agentLink.conn != nil {
		agentLink.conn.Close()
	}
}

// EncryptedKeyError marks a key file that needs a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// loadSigner reads a private key file. Keys needing a passphrase come back
// as *EncryptedKeyError since there is no one to ask for it.
func loadSigner(path string) (ssh.Signer, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err == nil {
		return signer, nil
	}
	var missing *ssh.PassphraseMissingError
	if stderrors.As(err, &missing) || bytes.Contains(pem, []byte("ENCRYPTED")) {
		return nil, &EncryptedKeyError{Path: path}
	}
	return nil, err
}

// authMethods offers agent keys first, then the host's IdentityFile, then
// the remaining key files. An empty agent is left out: it would use up an
// auth attempt for nothing.
func authMethods(t target, opts DialOptions) (methods []ssh.AuthMethod, encrypted []string) {
	if !opts.DisableAgent && len(agentSigners()) > 0 {
		methods = append(methods, ssh.PublicKeysCallback(agentLink.client.Signers))
	}

	files := opts.IdentityFiles
	if t.identity != "" {
		files = append([]string{t.identity}, files...)
	}

	tried := make(map[string]bool)
	for _, path := range files {
		if tried[path] {
			continue
		}
		tried[path] = true

		signer, err := loadSigner(path)
		var encErr *EncryptedKeyError
		switch {
		case err == nil:
			methods = append(methods, ssh.PublicKeys(signer))
		case stderrors.As(err, &encErr):
			encrypted = append(encrypted, path)
		}
	}
	return methods, encrypted
}

// clientConfig assembles auth and strict host key checking for t. The
// encrypted keys it skipped are returned for later hints.
func clientConfig(t target, opts DialOptions) (*ssh.ClientConfig, []string, error) {
	methods, encrypted := authMethods(t, opts)
	if len(methods) == 0 {
		if len(encrypted) > 0 {
			return nil, encrypted, errors.New(errors.ErrSSH,
				"Found SSH key(s) but they're encrypted: "+strings.Join(encrypted, ", "),
				sshAddHint("Add them to the agent:", encrypted))
		}
		return nil, nil, errors.New(errors.ErrSSH,
			"No SSH auth methods available",
			"Load a key into ssh-agent (ssh-add -l lists them) or set IdentityFile in ~/.ssh/config.")
	}

	hostKeys, err := strictHostKeys(opts.KnownHostsPath)
	if err != nil {
		return nil, encrypted, err
	}

	return &ssh.ClientConfig{
		User:            t.user,
		Auth:            methods,
		HostKeyCallback: hostKeys,
		Timeout:         DefaultConnectTimeout,
	}, encrypted, nil
}

func sshAddHint(header string, keys []string) string {
	add := "ssh-add "
	if runtime.GOOS == "darwin" {
		add = "ssh-add --apple-use-keychain "
	}
	lines := []string{header}
	for _, key := range keys {
		lines = append(lines, "  "+add+key)
	}
	lines = append(lines, "", "Not sure which key? Check with: ssh -v <host>")
	return strings.Join(lines, "\n")
}
