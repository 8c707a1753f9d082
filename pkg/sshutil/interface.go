package sshutil

import (
	"context"
	"io"
)

// SSHClient is the part of a connection the remote executor needs.
// *Client and the mock in sshutil/testing both satisfy it.
type SSHClient interface {
	// ExecContext runs cmd. A non-zero exit is reported in the result, not as
	// an error; an error means the command could not be attempted.
	ExecContext(ctx context.Context, cmd string, stdin io.Reader) (ExecResult, error)

	// Alive reports whether the connection still answers.
	Alive() bool

	// Close closes the connection.
	Close() error

	// GetHost returns the alias used to connect.
	GetHost() string
}

var _ SSHClient = (*Client)(nil)
