package remote

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/logger"
	"github.com/rileyhilliard/pxd/internal/target"
	"github.com/rileyhilliard/pxd/pkg/sshutil"
	sshtest "github.com/rileyhilliard/pxd/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDialer hands out the mock registered for an alias and counts dials.
type mockDialer struct {
	mu      sync.Mutex
	clients map[string]*sshtest.MockClient
	dials   atomic.Int32
	fail    error
}

func (d *mockDialer) dial(_ context.Context, alias string) (sshutil.SSHClient, error) {
	d.dials.Add(1)
	if d.fail != nil {
		return nil, d.fail
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clients[alias], nil
}

func TestSSHExecutor_Run(t *testing.T) {
	mock := sshtest.NewMockClient("proxmox").
		On(`^pct status 214$`, sshtest.CommandResponse{Stdout: "status: running\n"}).
		On(`^pct start 999$`, sshtest.CommandResponse{Stderr: "CT 999 does not exist\n", ExitCode: 2}).
		On(`^cat > `, sshtest.CommandResponse{})
	d := &mockDialer{clients: map[string]*sshtest.MockClient{"proxmox": mock}}
	exec := NewSSHExecutor(NewPool(d.dial, logger.Noop()))
	host := target.Destination{Alias: "proxmox"}

	t.Run("success", func(t *testing.T) {
		res, err := exec.Run(context.Background(), host, Shell("pct status 214"), time.Second)
		require.NoError(t, err)
		assert.True(t, res.Succeeded)
		assert.Equal(t, "status: running\n", res.Stdout)
	})

	t.Run("non-zero exit is a failed result, not an error", func(t *testing.T) {
		res, err := exec.Run(context.Background(), host, Shell("pct start 999"), time.Second)
		require.NoError(t, err)
		assert.False(t, res.Succeeded)
		assert.Equal(t, 2, res.ExitCode)
		assert.True(t, errors.IsRemoteFailure(res.Err("start")))
	})

	t.Run("stdin is streamed", func(t *testing.T) {
		_, err := exec.Run(context.Background(), host, Shell("cat > /etc/x.conf").WithStdin("k=v\n"), time.Second)
		require.NoError(t, err)
		assert.Equal(t, "k=v\n", mock.Stdin("cat > /etc/x.conf"))
	})

	assert.Equal(t, int32(1), d.dials.Load(), "one connection per alias")
}

func TestSSHExecutor_Timeout(t *testing.T) {
	mock := sshtest.NewMockClient("proxmox").
		On(`sleep`, sshtest.CommandResponse{Delay: time.Minute, PartialStdout: "first line\n"})
	d := &mockDialer{clients: map[string]*sshtest.MockClient{"proxmox": mock}}
	exec := NewSSHExecutor(NewPool(d.dial, logger.Noop()))

	start := time.Now()
	res, err := exec.Run(context.Background(), target.Destination{Alias: "proxmox"}, Shell("sleep 60"), 20*time.Millisecond)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, res.Succeeded)
	assert.True(t, res.TimedOut)
	assert.Equal(t, "first line\n", res.Stdout)
}

func TestSSHExecutor_DialFailureIsLaunchError(t *testing.T) {
	d := &mockDialer{fail: stderrors.New("dial tcp: connection refused")}
	exec := NewSSHExecutor(NewPool(d.dial, logger.Noop()))

	_, err := exec.Run(context.Background(), target.Destination{Alias: "proxmox"}, Shell("true"), time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsLaunchFailure(err))
}

func TestSSHExecutor_SessionErrors(t *testing.T) {
	tests := []struct {
		name     string
		kill     bool
		wantSize int
	}{
		{name: "rejected session keeps a live connection", kill: false, wantSize: 1},
		{name: "dead connection is dropped", kill: true, wantSize: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := sshtest.NewMockClient("proxmox").
				On(`.*`, sshtest.CommandResponse{Error: stderrors.New("ssh: rejected: administratively prohibited (open failed)")})
			if tt.kill {
				mock.Kill()
			}
			d := &mockDialer{clients: map[string]*sshtest.MockClient{"proxmox": mock}}
			pool := NewPool(d.dial, logger.Noop())
			exec := NewSSHExecutor(pool)

			_, err := exec.Run(context.Background(), target.Destination{Alias: "proxmox"}, Shell("true"), time.Second)
			assert.True(t, errors.IsLaunchFailure(err))
			assert.Equal(t, tt.wantSize, pool.Size())
			assert.Equal(t, tt.kill, mock.Closed())
		})
	}
}

func TestSSHExecutor_ContainerPrefix(t *testing.T) {
	mock := sshtest.NewMockClient("proxmox").
		On(`^pct exec 214 -- sh -c 'systemctl is-active nginx'$`, sshtest.CommandResponse{Stdout: "active\n"})
	d := &mockDialer{clients: map[string]*sshtest.MockClient{"proxmox": mock}}
	exec := NewSSHExecutor(NewPool(d.dial, logger.Noop()))

	dest := target.Destination{Alias: "proxmox", Prefix: "pct exec 214 --"}
	res, err := exec.Run(context.Background(), dest, Argv("systemctl", "is-active", "nginx"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "active\n", res.Stdout)
}

func TestPool_RedialsStaleConnection(t *testing.T) {
	first := sshtest.NewMockClient("proxmox")
	second := sshtest.NewMockClient("proxmox")
	d := &mockDialer{clients: map[string]*sshtest.MockClient{"proxmox": first}}

	now := time.Now()
	pool := NewPool(d.dial, logger.Noop())
	pool.now = func() time.Time { return now }

	c, err := pool.Get(context.Background(), "proxmox")
	require.NoError(t, err)
	assert.Same(t, first, c)

	// Recently used connections are handed out without a liveness check.
	first.Kill()
	c, err = pool.Get(context.Background(), "proxmox")
	require.NoError(t, err)
	assert.Same(t, first, c)

	// After sitting idle the dead connection is noticed and replaced.
	now = now.Add(time.Minute)
	d.mu.Lock()
	d.clients["proxmox"] = second
	d.mu.Unlock()

	c, err = pool.Get(context.Background(), "proxmox")
	require.NoError(t, err)
	assert.Same(t, second, c)
	assert.True(t, first.Closed())
	assert.Equal(t, int32(2), d.dials.Load())
}

func TestPool_ConcurrentGetDialsOnce(t *testing.T) {
	mock := sshtest.NewMockClient("proxmox")
	d := &mockDialer{clients: map[string]*sshtest.MockClient{"proxmox": mock}}
	pool := NewPool(d.dial, logger.Noop())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pool.Get(context.Background(), "proxmox")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, d.dials.Load(), int32(16))
	assert.Equal(t, 1, pool.Size())

	pool.Close()
	assert.Equal(t, 0, pool.Size())
	assert.True(t, mock.Closed())
}
