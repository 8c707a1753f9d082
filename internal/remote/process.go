package remote

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/target"
)

// sshClientFailure is the status the ssh client exits with for its own errors.
const sshClientFailure = 255

// killGrace bounds how long Wait may block on output pipes after a kill.
const killGrace = 2 * time.Second

// ProcessExecutor runs each command by spawning the local ssh client.
type ProcessExecutor struct {
	Binary                string
	ConnectTimeout        time.Duration
	StrictHostKeyChecking bool
}

// NewProcessExecutor creates an executor that spawns binary (usually "ssh").
func NewProcessExecutor(binary string, connectTimeout time.Duration, strict bool) *ProcessExecutor {
	return &ProcessExecutor{
		Binary:                binary,
		ConnectTimeout:        connectTimeout,
		StrictHostKeyChecking: strict,
	}
}

// args builds the ssh argument list. BatchMode keeps ssh from prompting.
func (e *ProcessExecutor) args(alias, line string) []string {
	args := []string{"-o", "BatchMode=yes"}
	if e.ConnectTimeout > 0 {
		secs := int(e.ConnectTimeout.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		args = append(args, "-o", fmt.Sprintf("ConnectTimeout=%d", secs))
	}
	if !e.StrictHostKeyChecking {
		args = append(args, "-o", "StrictHostKeyChecking=no")
	}
	return append(args, alias, line)
}

// Run implements Executor. Exit status 255 is the ssh client failing to
// connect and is reported as a LAUNCH error.
func (e *ProcessExecutor) Run(ctx context.Context, dest target.Destination, cmd Command, timeout time.Duration) (Result, error) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	proc := exec.CommandContext(ctx, e.Binary, e.args(dest.Alias, wrapLine(dest, cmd))...)
	proc.WaitDelay = killGrace

	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr
	if data, ok := cmd.Stdin(); ok {
		proc.Stdin = strings.NewReader(data)
	}

	start := time.Now()
	if err := proc.Start(); err != nil {
		return Result{}, errors.WrapWithCode(err, errors.ErrLaunch,
			fmt.Sprintf("Couldn't start %s", e.Binary),
			"Install an OpenSSH client or set ssh.binary in .pxd.yaml.")
	}
	err := proc.Wait()
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		return newResult(stdout.Bytes(), stderr.Bytes(), -1, true, elapsed), nil
	}
	if err == nil {
		return newResult(stdout.Bytes(), stderr.Bytes(), 0, false, elapsed), nil
	}

	var exitErr *exec.ExitError
	if !stderrors.As(err, &exitErr) {
		return Result{}, errors.WrapWithCode(err, errors.ErrLaunch,
			fmt.Sprintf("%s didn't finish cleanly", e.Binary),
			"Check the ssh client works: ssh "+dest.Alias+" true")
	}

	code := exitErr.ExitCode()
	if code == sshClientFailure {
		return Result{}, errors.WrapWithCode(stderrors.New(strings.TrimSpace(stderr.String())), errors.ErrLaunch,
			fmt.Sprintf("Can't reach '%s'", dest.Alias),
			"Check the host is reachable: ssh "+dest.Alias)
	}
	return newResult(stdout.Bytes(), stderr.Bytes(), code, false, elapsed), nil
}
