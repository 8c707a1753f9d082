// Package remote runs commands on the virtualization host and inside its
// containers and VMs.
package remote

import (
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/target"
	"github.com/rileyhilliard/pxd/internal/util"
)

// Command is a remote command line, optionally with data for its stdin.
type Command struct {
	line     string
	stdin    string
	hasStdin bool
}

// Argv builds a command from arguments, each quoted for the remote shell.
func Argv(args ...string) Command {
	quoted := make([]string, len(args))
	for i, a := range args {
		if isPlainWord(a) {
			quoted[i] = a
		} else {
			quoted[i] = util.ShellQuote(a)
		}
	}
	return Command{line: strings.Join(quoted, " ")}
}

// Shell uses line verbatim, for pipelines and redirects. Callers quote any
// untrusted parts themselves.
func Shell(line string) Command {
	return Command{line: line}
}

// WithStdin returns a copy of c that streams data to the remote stdin.
func (c Command) WithStdin(data string) Command {
	c.stdin = data
	c.hasStdin = true
	return c
}

// Line is the command as the remote shell sees it.
func (c Command) Line() string { return c.line }

// Stdin returns the stdin payload, if any.
func (c Command) Stdin() (string, bool) { return c.stdin, c.hasStdin }

func (c Command) String() string { return c.line }

// isPlainWord reports whether s needs no quoting.
func isPlainWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("-_./=:,+@%", r):
		default:
			return false
		}
	}
	return true
}

// wrapLine places cmd at dest: container prefixes run it through sh -c so
// pipelines execute inside the container rather than on the host.
func wrapLine(dest target.Destination, cmd Command) string {
	if dest.Prefix == "" {
		return cmd.Line()
	}
	return dest.Prefix + " sh -c " + util.ShellQuote(cmd.Line())
}

// Result is the outcome of one remote call. It is a value and is never
// modified after Run returns it.
type Result struct {
	Succeeded bool
	ExitCode  int // -1 when no status was reported (timeout, lost session)
	Stdout    string
	Stderr    string
	TimedOut  bool
	Duration  time.Duration
}

func newResult(stdout, stderr []byte, exitCode int, timedOut bool, d time.Duration) Result {
	return Result{
		Succeeded: !timedOut && exitCode == 0,
		ExitCode:  exitCode,
		Stdout:    string(stdout),
		Stderr:    string(stderr),
		TimedOut:  timedOut,
		Duration:  d,
	}
}

// Err converts a failed result into a REMOTE error described by what.
// It returns nil for a successful result.
func (r Result) Err(what string) error {
	if r.Succeeded {
		return nil
	}
	if r.TimedOut {
		return errors.New(errors.ErrRemote,
			fmt.Sprintf("%s: timed out after %s", what, r.Duration.Round(time.Millisecond)),
			"The host may be busy. Try again, or raise timeouts.command.")
	}
	stderr := r.Stderr
	if strings.TrimSpace(stderr) == "" {
		stderr = fmt.Sprintf("exit status %d", r.ExitCode)
	}
	return errors.NewRemoteFailure(what, stderr)
}

// outcome labels a call for metrics and logs.
func outcome(r Result, err error) string {
	switch {
	case err != nil:
		return "launch_error"
	case r.TimedOut:
		return "timeout"
	case r.Succeeded:
		return "ok"
	default:
		return "failed"
	}
}
