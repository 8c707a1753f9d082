package remote

import (
	"context"
	"time"

	"github.com/rileyhilliard/pxd/internal/target"
)

// Executor runs one command at a destination.
//
// A returned error means the command could not be attempted (LAUNCH).
// A command that ran and failed, or ran out of time, comes back as a Result
// with Succeeded false and a nil error. Implementations never retry.
type Executor interface {
	Run(ctx context.Context, dest target.Destination, cmd Command, timeout time.Duration) (Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, dest target.Destination, cmd Command, timeout time.Duration) (Result, error)

// Run calls f.
func (f ExecutorFunc) Run(ctx context.Context, dest target.Destination, cmd Command, timeout time.Duration) (Result, error) {
	return f(ctx, dest, cmd, timeout)
}

// withTimeout applies timeout to ctx when positive.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}
