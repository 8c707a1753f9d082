package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rileyhilliard/pxd/internal/errors"
	"golang.org/x/crypto/ssh"
)

// ExecResult is what a remote command produced.
// ExitCode is -1 when the command never reported a status.
type ExecResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	TimedOut bool
}

// killGrace is how long to wait for a killed session to wind down.
const killGrace = 2 * time.Second

// ExecContext runs cmd in a new session. stdin, if non-nil, is streamed to the
// remote command and closed at EOF.
//
// When ctx ends first the session is sent SIGKILL and closed, and the result
// carries TimedOut plus whatever output arrived. A non-zero exit is not an
// error; errors mean the command could not be attempted.
func (c *Client) ExecContext(ctx context.Context, cmd string, stdin io.Reader) (ExecResult, error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return ExecResult{ExitCode: -1}, errors.WrapWithCode(err, errors.ErrLaunch,
			fmt.Sprintf("Failed to open an SSH session on '%s'", c.Host),
			"The connection may have dropped. Try again.")
	}
	defer session.Close()

	var stdout, stderr lockedBuffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != nil {
		session.Stdin = stdin
	}

	if err := session.Start(cmd); err != nil {
		return ExecResult{ExitCode: -1}, errors.WrapWithCode(err, errors.ErrLaunch,
			fmt.Sprintf("Failed to start command on '%s'", c.Host),
			"The remote host refused the exec request.")
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		select {
		case <-done:
		case <-time.After(killGrace):
		}
		return ExecResult{
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
			ExitCode: -1,
			TimedOut: true,
		}, nil
	}

	res := ExecResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}

	var exitErr *ssh.ExitError
	if stderrors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitStatus()
		return res, nil
	}
	var missing *ssh.ExitMissingError
	if stderrors.As(err, &missing) {
		res.ExitCode = -1
		return res, nil
	}

	return ExecResult{ExitCode: -1}, errors.WrapWithCode(err, errors.ErrLaunch,
		fmt.Sprintf("Lost the session on '%s' mid-command", c.Host),
		"The connection may have dropped. Try again.")
}

// lockedBuffer lets the session goroutines write while a timeout reads.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}
