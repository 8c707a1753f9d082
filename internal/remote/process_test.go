package remote

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSSH stands in for the ssh client: it drops -o options, fails like ssh
// for the alias "unreachable", and otherwise runs the command locally.
const fakeSSH = `#!/bin/sh
while [ "$1" = "-o" ]; do shift 2; done
alias="$1"; shift
if [ "$alias" = "unreachable" ]; then
  echo "ssh: connect to host unreachable port 22: Connection refused" >&2
  exit 255
fi
exec sh -c "$1"
`

func newFakeProcessExecutor(t *testing.T) *ProcessExecutor {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	bin := filepath.Join(t.TempDir(), "ssh")
	require.NoError(t, os.WriteFile(bin, []byte(fakeSSH), 0755))
	return NewProcessExecutor(bin, 5*time.Second, true)
}

func TestProcessExecutor_Args(t *testing.T) {
	e := NewProcessExecutor("ssh", 10*time.Second, false)
	assert.Equal(t, []string{
		"-o", "BatchMode=yes",
		"-o", "ConnectTimeout=10",
		"-o", "StrictHostKeyChecking=no",
		"proxmox", "pct list",
	}, e.args("proxmox", "pct list"))

	strict := NewProcessExecutor("ssh", 0, true)
	assert.Equal(t, []string{"-o", "BatchMode=yes", "proxmox", "true"}, strict.args("proxmox", "true"))
}

func TestProcessExecutor_Run(t *testing.T) {
	e := newFakeProcessExecutor(t)
	host := target.Destination{Alias: "proxmox"}

	t.Run("success", func(t *testing.T) {
		res, err := e.Run(context.Background(), host, Shell("echo hello"), 5*time.Second)
		require.NoError(t, err)
		assert.True(t, res.Succeeded)
		assert.Equal(t, "hello\n", res.Stdout)
	})

	t.Run("remote failure", func(t *testing.T) {
		res, err := e.Run(context.Background(), host, Shell("echo oops >&2; exit 3"), 5*time.Second)
		require.NoError(t, err)
		assert.False(t, res.Succeeded)
		assert.Equal(t, 3, res.ExitCode)
		assert.Equal(t, "oops\n", res.Stderr)
	})

	t.Run("stdin", func(t *testing.T) {
		res, err := e.Run(context.Background(), host, Shell("cat").WithStdin("piped"), 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "piped", res.Stdout)
	})

	t.Run("exit 255 is a launch failure", func(t *testing.T) {
		_, err := e.Run(context.Background(), target.Destination{Alias: "unreachable"}, Shell("true"), 5*time.Second)
		require.Error(t, err)
		assert.True(t, errors.IsLaunchFailure(err))
		assert.Contains(t, err.Error(), "Connection refused")
	})

	t.Run("timeout kills the process and keeps partial output", func(t *testing.T) {
		start := time.Now()
		res, err := e.Run(context.Background(), host, Shell("echo partial; exec sleep 30"), 300*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, res.TimedOut)
		assert.False(t, res.Succeeded)
		assert.Equal(t, "partial\n", res.Stdout)
		assert.Less(t, time.Since(start), 10*time.Second)
	})
}

func TestProcessExecutor_MissingBinary(t *testing.T) {
	e := NewProcessExecutor(filepath.Join(t.TempDir(), "no-such-ssh"), time.Second, true)
	_, err := e.Run(context.Background(), target.Destination{Alias: "proxmox"}, Shell("true"), time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsLaunchFailure(err))
}
