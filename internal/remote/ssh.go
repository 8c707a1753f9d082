package remote

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/target"
)

// SSHExecutor runs commands over pooled x/crypto/ssh connections.
type SSHExecutor struct {
	pool *Pool
}

// NewSSHExecutor creates an executor on top of pool.
func NewSSHExecutor(pool *Pool) *SSHExecutor {
	return &SSHExecutor{pool: pool}
}

// Run implements Executor.
func (e *SSHExecutor) Run(ctx context.Context, dest target.Destination, cmd Command, timeout time.Duration) (Result, error) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	client, err := e.pool.Get(ctx, dest.Alias)
	if err != nil {
		return Result{}, asLaunchError(err, dest)
	}

	var stdin io.Reader
	if data, ok := cmd.Stdin(); ok {
		stdin = strings.NewReader(data)
	}

	res, err := client.ExecContext(ctx, wrapLine(dest, cmd), stdin)
	if err != nil {
		// A rejected session (MaxSessions) leaves the connection usable for
		// the calls already running on it; only a dead one is dropped.
		if !client.Alive() {
			e.pool.Drop(dest.Alias, client)
		}
		return Result{}, asLaunchError(err, dest)
	}

	return newResult(res.Stdout, res.Stderr, res.ExitCode, res.TimedOut, time.Since(start)), nil
}

// asLaunchError makes sure err carries the LAUNCH code.
func asLaunchError(err error, dest target.Destination) error {
	if errors.CodeOf(err) != "" {
		return err
	}
	return errors.WrapWithCode(err, errors.ErrLaunch,
		fmt.Sprintf("Couldn't run a command on '%s'", dest.Alias),
		"Check the host is reachable: ssh "+dest.Alias)
}
