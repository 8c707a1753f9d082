// Package testing provides an in-memory SSHClient for tests.
package testing

import (
	"context"
	"errors"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/rileyhilliard/pxd/pkg/sshutil"
)

// CommandResponse is a canned reply for commands matching a pattern.
type CommandResponse struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Error    error

	// Delay holds the reply back; a context that ends first yields a timed-out
	// result with PartialStdout.
	Delay         time.Duration
	PartialStdout string
}

type rule struct {
	pattern *regexp.Regexp
	resp    CommandResponse
}

// MockClient answers commands from canned responses. Rules are checked in
// registration order and the first match wins; unmatched commands exit 127.
type MockClient struct {
	mu       sync.Mutex
	host     string
	closed   bool
	dead     bool
	rules    []rule
	commands []string
	stdin    map[string]string
}

// NewMockClient creates a mock for host with no rules.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:  host,
		stdin: make(map[string]string),
	}
}

// On registers resp for commands matching the regular expression pattern.
func (m *MockClient) On(pattern string, resp CommandResponse) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule{pattern: regexp.MustCompile(pattern), resp: resp})
	return m
}

// ExecContext replies from the first matching rule.
func (m *MockClient) ExecContext(ctx context.Context, cmd string, stdin io.Reader) (sshutil.ExecResult, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return sshutil.ExecResult{ExitCode: -1}, errors.New("connection closed")
	}
	m.commands = append(m.commands, cmd)
	resp, ok := m.match(cmd)
	m.mu.Unlock()

	if stdin != nil {
		data, _ := io.ReadAll(stdin)
		m.mu.Lock()
		m.stdin[cmd] = string(data)
		m.mu.Unlock()
	}

	if !ok {
		return sshutil.ExecResult{Stderr: []byte("command not found"), ExitCode: 127}, nil
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Done():
			return sshutil.ExecResult{Stdout: []byte(resp.PartialStdout), ExitCode: -1, TimedOut: true}, nil
		}
	}

	if resp.Error != nil {
		return sshutil.ExecResult{ExitCode: -1}, resp.Error
	}
	return sshutil.ExecResult{
		Stdout:   []byte(resp.Stdout),
		Stderr:   []byte(resp.Stderr),
		ExitCode: resp.ExitCode,
	}, nil
}

func (m *MockClient) match(cmd string) (CommandResponse, bool) {
	for _, r := range m.rules {
		if r.pattern.MatchString(cmd) {
			return r.resp, true
		}
	}
	return CommandResponse{}, false
}

// Commands returns every command run so far, in order.
func (m *MockClient) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

// Stdin returns what was streamed to cmd's stdin.
func (m *MockClient) Stdin(cmd string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stdin[cmd]
}

// Kill makes Alive report false, as if the connection dropped.
func (m *MockClient) Kill() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dead = true
}

// Alive reports false after Kill or Close.
func (m *MockClient) Alive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && !m.dead
}

// Close marks the connection closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

var _ sshutil.SSHClient = (*MockClient)(nil)
