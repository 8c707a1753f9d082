package sshutil

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/rileyhilliard/pxd/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

var (
	agentOnce   sync.Once
	agentConn   net.Conn
	agentClient agent.ExtendedAgent
)

// authMethods collects, in order: agent keys, the configured IdentityFile,
// then the default key files. Encrypted keys are reported back so the error
// can tell the user to ssh-add them.
func authMethods(s *settings) ([]ssh.AuthMethod, []string) {
	var methods []ssh.AuthMethod
	var encrypted []string

	if m := agentAuth(); m != nil {
		methods = append(methods, m)
	}

	tried := make(map[string]bool)
	tryKey := func(path string) {
		if path == "" || tried[path] {
			return
		}
		tried[path] = true

		m, err := keyFileAuth(path)
		var encErr *EncryptedKeyError
		switch {
		case err == nil:
			methods = append(methods, m)
		case stderrors.As(err, &encErr):
			encrypted = append(encrypted, path)
		}
	}

	tryKey(s.identityFile)
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		tryKey(filepath.Join(homeDir(), ".ssh", name))
	}

	return methods, encrypted
}

// agentAuth uses SSH_AUTH_SOCK when the agent holds at least one key.
// An empty agent placed first makes servers give up before trying key files.
func agentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})
	if agentClient == nil {
		return nil
	}

	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}
	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent releases the shared agent connection. Call on shutdown.
func CloseAgent() {
	if agentConn != nil {
		_ = agentConn.Close()
	}
}

func keyFileAuth(path string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || isEncryptedPEM(key) {
			return nil, &EncryptedKeyError{Path: path}
		}
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED"))
}

// noAuthError explains why there is nothing to authenticate with.
func noAuthError(encrypted []string) error {
	if len(encrypted) == 0 {
		return errors.New(errors.ErrLaunch,
			"No SSH auth methods available",
			"Check your keys are loaded: ssh-add -l")
	}
	return errors.New(errors.ErrLaunch,
		fmt.Sprintf("Found SSH key(s) but they're encrypted: %s", strings.Join(encrypted, ", ")),
		addKeysSuggestion(encrypted))
}

func addKeysSuggestion(keys []string) string {
	var sb strings.Builder
	sb.WriteString("Add your key(s) to the agent:\n")
	for _, key := range keys {
		if runtime.GOOS == "darwin" {
			fmt.Fprintf(&sb, "  ssh-add --apple-use-keychain %s\n", key)
		} else {
			fmt.Fprintf(&sb, "  ssh-add %s\n", key)
		}
	}
	return sb.String()
}

// hostKeyCallback verifies against known_hosts, or skips verification when
// strict checking is off.
func hostKeyCallback(strict bool) (ssh.HostKeyCallback, error) {
	if !strict {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // explicitly disabled in config
	}

	path := filepath.Join(homeDir(), ".ssh", "known_hosts")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create .ssh directory: %w", err)
		}
		if err := os.WriteFile(path, nil, 0600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	check, err := knownhosts.New(path)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if err != nil && stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
			return &HostKeyMismatchError{
				Hostname:     hostname,
				ReceivedType: key.Type(),
				KnownHosts:   path,
				Want:         keyErr.Want,
			}
		}
		return err
	}, nil
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// HostKeyMismatchError is a known_hosts failure with enough context to fix it.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion tells the user how to refresh known_hosts.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	known := make([]string, 0, len(e.Want))
	for _, k := range e.Want {
		known = append(known, k.Key.Type())
	}
	if len(known) == 0 {
		known = append(known, "unknown")
	}

	return fmt.Sprintf("Known types: %s, server sent: %s.\n"+
		"  If the host was reinstalled, drop the old entry:\n"+
		"    ssh-keygen -f %s -R %s",
		strings.Join(known, ", "), e.ReceivedType, e.KnownHosts, host)
}

func suggestionForDialError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "Is SSH running on that box? Try: ssh <host>"
	case strings.Contains(msg, "no route to host"), strings.Contains(msg, "network is unreachable"):
		return "Can't route to the host. Check your network connection."
	case strings.Contains(msg, "timeout"):
		return "Connection timed out. Host might be offline or blocked by a firewall."
	case strings.Contains(msg, "no such host"):
		return "The name doesn't resolve. Check the alias in ~/.ssh/config."
	default:
		return "Make sure the host is reachable: ssh <host>"
	}
}

func suggestionForHandshakeError(err error, encrypted []string) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unable to authenticate"), strings.Contains(msg, "no supported methods"):
		if len(encrypted) > 0 {
			return addKeysSuggestion(encrypted)
		}
		return "Auth failed. Check your keys are loaded: ssh-add -l"
	case strings.Contains(msg, "host key"):
		return "Host key issue. Try connecting manually first: ssh <host>"
	default:
		return "Something went wrong during SSH setup. Try: ssh <host>"
	}
}
