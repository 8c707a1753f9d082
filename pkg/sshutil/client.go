package sshutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"time"

	"github.com/rileyhilliard/pxd/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Client wraps an SSH connection with the alias it was dialed for.
type Client struct {
	*ssh.Client
	Host    string // alias as given to Dial
	Address string // resolved host:port
}

// DialOptions controls a single Dial.
type DialOptions struct {
	// Timeout bounds TCP connect plus handshake. Zero means 10s.
	Timeout time.Duration

	// StrictHostKeyChecking verifies the server key against ~/.ssh/known_hosts.
	StrictHostKeyChecking bool

	// Warn receives non-fatal notes about the SSH config, if set.
	Warn func(message string)
}

// Dial connects to host. The host can be an ~/.ssh/config alias, a hostname,
// user@hostname or hostname:port.
func Dial(ctx context.Context, host string, opts DialOptions) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	s := resolveSettings(host)
	if s.matchLine > 0 && !s.found && opts.Warn != nil {
		opts.Warn(fmt.Sprintf("Host '%s' not found in SSH config; a Match block at line %d may hide later entries", host, s.matchLine))
	}

	methods, encrypted := authMethods(s)
	if len(methods) == 0 {
		return nil, noAuthError(encrypted)
	}

	callback, err := hostKeyCallback(opts.StrictHostKeyChecking)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrLaunch,
			"Couldn't load ~/.ssh/known_hosts",
			"Check the file permissions, or set ssh.strict_host_key_checking: false")
	}

	config := &ssh.ClientConfig{
		User:            s.user,
		Auth:            methods,
		HostKeyCallback: callback,
		Timeout:         opts.Timeout,
	}

	dialCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	address := s.address()
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrLaunch,
			fmt.Sprintf("Can't reach '%s' at %s", host, address),
			suggestionForDialError(err))
	}

	// The handshake has no context of its own; bound it with a deadline.
	if deadline, ok := dialCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		_ = conn.Close()

		var mismatch *HostKeyMismatchError
		if stderrors.As(err, &mismatch) {
			return nil, errors.New(errors.ErrLaunch, mismatch.Error(), mismatch.Suggestion())
		}
		return nil, errors.WrapWithCode(err, errors.ErrLaunch,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", host),
			suggestionForHandshakeError(err, encrypted))
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    host,
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetHost returns the alias used to connect.
func (c *Client) GetHost() string {
	return c.Host
}

// Alive sends a keepalive global request. Cheaper than opening a session.
func (c *Client) Alive() bool {
	if c.Client == nil {
		return false
	}
	_, _, err := c.Client.SendRequest("keepalive@openssh.com", true, nil)
	return err == nil
}
