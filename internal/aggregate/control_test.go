package aggregate

import (
	"context"
	"testing"

	"github.com/rileyhilliard/pxd/internal/cache"
	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/remote"
	"github.com/rileyhilliard/pxd/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlTarget(t *testing.T) {
	tests := []struct {
		name    string
		target  target.Target
		op      remote.Op
		line    string
		message string
	}{
		{name: "start container", target: target.Container(214), op: remote.Start, line: "pct start 214", message: "Container 214 started successfully"},
		{name: "restart container reboots", target: target.Container(214), op: remote.Restart, line: "pct reboot 214", message: "Container 214 restarted successfully"},
		{name: "shutdown vm", target: target.VM(611), op: remote.Shutdown, line: "qm shutdown 611", message: "VM 611 shut down successfully"},
		{name: "reset vm", target: target.VM(611), op: remote.Reset, line: "qm reset 611", message: "VM 611 reset successfully"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := newFakeExec().on(hostDest, "^"+tt.line+"$", ok(""))
			h := newHarness(t, fe, testOptions())
			h.cache.Put(cache.KeySystemOverview, SystemOverview{})
			h.cache.Put(tt.target.CacheKey(), StatusRecord{})

			res, err := h.agg.ControlTarget(context.Background(), tt.target, tt.op)
			require.NoError(t, err)
			assert.Equal(t, tt.message, res.Message)
			assert.Equal(t, string(tt.op.Kind), res.Action)
			assert.Equal(t, tt.target, res.Target)
			assert.Equal(t, 1, fe.count("^"+tt.line+"$"))

			_, cached := h.cache.Get(cache.KeySystemOverview)
			assert.False(t, cached, "overview should be invalidated")
			_, cached = h.cache.Get(tt.target.CacheKey())
			assert.False(t, cached, "target status should be invalidated")
		})
	}
}

func TestControlTarget_Failures(t *testing.T) {
	t.Run("remote failure keeps cache", func(t *testing.T) {
		fe := newFakeExec().on(hostDest, `^pct start 214$`, exit(255, "", "CT 214 already running"))
		h := newHarness(t, fe, testOptions())
		h.cache.Put(cache.KeySystemOverview, SystemOverview{})

		_, err := h.agg.ControlTarget(context.Background(), target.Container(214), remote.Start)
		require.Error(t, err)
		assert.True(t, errors.IsRemoteFailure(err))
		assert.Contains(t, err.Error(), "Failed to start container 214")
		assert.Contains(t, err.Error(), "already running")

		_, cached := h.cache.Get(cache.KeySystemOverview)
		assert.True(t, cached)
	})

	t.Run("launch failure", func(t *testing.T) {
		fe := newFakeExec().fail(hostDest, `^qm stop 500$`, errors.New(errors.ErrLaunch, "ssh missing", ""))
		h := newHarness(t, fe, testOptions())

		_, err := h.agg.ControlTarget(context.Background(), target.VM(500), remote.Stop)
		assert.True(t, errors.IsLaunchFailure(err))
	})

	t.Run("reset is vm only", func(t *testing.T) {
		fe := newFakeExec()
		h := newHarness(t, fe, testOptions())

		_, err := h.agg.ControlTarget(context.Background(), target.Container(214), remote.Reset)
		assert.True(t, errors.IsCode(err, errors.ErrInput))
		assert.Zero(t, fe.count(`.`))
	})

	t.Run("non power op", func(t *testing.T) {
		h := newHarness(t, newFakeExec(), testOptions())
		_, err := h.agg.ControlTarget(context.Background(), target.Container(214), remote.Status)
		assert.True(t, errors.IsCode(err, errors.ErrInput))
	})
}

func TestServiceStatus(t *testing.T) {
	active := "● nginx.service - A high performance web server\n   Loaded: loaded\n   Active: active (running) since Mon\n"
	inactive := "○ sonarr.service\n   Active: inactive (dead)\n"

	t.Run("active and enabled on host", func(t *testing.T) {
		fe := newFakeExec().
			on(hostDest, `^systemctl status --no-pager nginx$`, ok(active)).
			on(hostDest, `^systemctl is-enabled nginx$`, ok("enabled\n"))
		h := newHarness(t, fe, testOptions())

		rec, err := h.agg.ServiceStatus(context.Background(), target.Host(), "nginx")
		require.NoError(t, err)
		assert.Equal(t, ServiceRecord{
			Name:        "nginx",
			Status:      ServiceActive,
			Active:      true,
			Enabled:     true,
			Description: "Service: nginx",
			Target:      target.Host(),
		}, rec)
	})

	t.Run("inactive unit exits non-zero but is not an error", func(t *testing.T) {
		fe := newFakeExec().
			on(ctDest("214"), `^systemctl status --no-pager sonarr$`, exit(3, inactive, "")).
			on(ctDest("214"), `^systemctl is-enabled sonarr$`, exit(1, "disabled\n", ""))
		h := newHarness(t, fe, testOptions())

		rec, err := h.agg.ServiceStatus(context.Background(), target.Container(214), "sonarr")
		require.NoError(t, err)
		assert.Equal(t, ServiceInactive, rec.Status)
		assert.False(t, rec.Active)
		assert.False(t, rec.Enabled)
	})

	t.Run("launch failure", func(t *testing.T) {
		fe := newFakeExec().fail("", `systemctl`, errors.New(errors.ErrLaunch, "no route", ""))
		h := newHarness(t, fe, testOptions())

		_, err := h.agg.ServiceStatus(context.Background(), target.Host(), "nginx")
		assert.True(t, errors.IsLaunchFailure(err))
	})

	t.Run("invalid unit name", func(t *testing.T) {
		fe := newFakeExec()
		h := newHarness(t, fe, testOptions())

		_, err := h.agg.ServiceStatus(context.Background(), target.Host(), "nginx; reboot")
		assert.True(t, errors.IsCode(err, errors.ErrInput))
		assert.Zero(t, fe.count(`.`))
	})
}

func TestControlService(t *testing.T) {
	t.Run("success invalidates maintenance", func(t *testing.T) {
		fe := newFakeExec().on(hostDest, `^systemctl restart getty@tty1$`, ok(""))
		h := newHarness(t, fe, testOptions())
		h.cache.Put(cache.KeyMaintenance, MaintenanceOverview{})

		msg, err := h.agg.ControlService(context.Background(), target.Host(), "getty@tty1", "Restart")
		require.NoError(t, err)
		assert.Equal(t, "Service getty@tty1 restarted successfully", msg)

		_, cached := h.cache.Get(cache.KeyMaintenance)
		assert.False(t, cached)
	})

	t.Run("failure carries stderr", func(t *testing.T) {
		fe := newFakeExec().on(hostDest, `^systemctl start nope$`, exit(5, "", "Unit nope.service not found."))
		h := newHarness(t, fe, testOptions())

		_, err := h.agg.ControlService(context.Background(), target.Host(), "nope", "start")
		require.Error(t, err)
		assert.True(t, errors.IsRemoteFailure(err))
		assert.Contains(t, err.Error(), "Failed to start service nope")
		assert.Contains(t, err.Error(), "Unit nope.service not found.")
	})

	t.Run("unknown action", func(t *testing.T) {
		h := newHarness(t, newFakeExec(), testOptions())
		_, err := h.agg.ControlService(context.Background(), target.Host(), "nginx", "mask")
		assert.True(t, errors.IsCode(err, errors.ErrInput))
	})
}
