package doctor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/logger"
	"github.com/rileyhilliard/pxd/internal/remote"
	"github.com/rileyhilliard/pxd/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status   CheckStatus
		expected string
	}{
		{StatusPass, "pass"},
		{StatusWarn, "warn"},
		{StatusFail, "fail"},
		{CheckStatus(99), "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.status.String())
			text, err := tc.status.MarshalText()
			require.NoError(t, err)
			assert.Equal(t, tc.expected, string(text))
		})
	}
}

// stubCheck is a test implementation of Check.
type stubCheck struct {
	name   string
	result CheckResult
	delay  time.Duration
}

func (s *stubCheck) Name() string     { return s.name }
func (s *stubCheck) Category() string { return "TEST" }
func (s *stubCheck) Run(context.Context) CheckResult {
	time.Sleep(s.delay)
	return s.result
}

func TestRunAll_KeepsOrder(t *testing.T) {
	checks := []Check{
		&stubCheck{name: "slow", delay: 20 * time.Millisecond, result: CheckResult{Status: StatusFail}},
		&stubCheck{name: "fast", result: CheckResult{Status: StatusPass}},
		&stubCheck{name: "meh", result: CheckResult{Status: StatusWarn}},
	}

	results := RunAll(context.Background(), checks)
	require.Len(t, results, 3)
	assert.Equal(t, "slow", results[0].Name)
	assert.Equal(t, "TEST", results[0].Category)
	assert.Equal(t, "fast", results[1].Name)

	counts := CountByStatus(results)
	assert.Equal(t, 1, counts[StatusPass])
	assert.Equal(t, 1, counts[StatusWarn])
	assert.Equal(t, 1, counts[StatusFail])
	assert.True(t, HasFailures(results))
	assert.False(t, HasFailures(results[1:]))
}

func TestConfigCheck(t *testing.T) {
	tests := []struct {
		name   string
		check  ConfigCheck
		status CheckStatus
		msg    string
	}{
		{name: "loaded", check: ConfigCheck{Path: "/home/me/.pxd.yaml"}, status: StatusPass, msg: "/home/me/.pxd.yaml"},
		{name: "defaults", check: ConfigCheck{}, status: StatusWarn, msg: "using defaults"},
		{
			name:   "invalid",
			check:  ConfigCheck{Err: errors.New(errors.ErrConfig, "workers must be at least 1, got 0", "Set workers to 4.")},
			status: StatusFail,
			msg:    "workers must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.check.Run(context.Background())
			assert.Equal(t, tt.status, r.Status)
			assert.Contains(t, r.Message, tt.msg)
		})
	}
}

func TestCatalogCheck(t *testing.T) {
	r := (&CatalogCheck{}).Run(context.Background())
	assert.Equal(t, StatusPass, r.Status)
	assert.Contains(t, r.Message, "built-in catalog")

	bad := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("containers: [oops"), 0o644))
	r = (&CatalogCheck{Path: bad}).Run(context.Background())
	assert.Equal(t, StatusFail, r.Status)
	assert.NotEmpty(t, r.Suggestion)
}

func runnerFor(fn remote.ExecutorFunc) *remote.Runner {
	addr := target.NewAddresser("proxmox", map[uint32]string{611: "alexa"}, "pct exec {id} --")
	return remote.NewRunner(fn, addr, logger.Noop(), nil)
}

func TestReachCheck(t *testing.T) {
	var aliases []string
	runner := runnerFor(func(_ context.Context, dest target.Destination, cmd remote.Command, _ time.Duration) (remote.Result, error) {
		aliases = append(aliases, dest.Alias)
		if dest.Alias == "alexa" {
			return remote.Result{}, errors.New(errors.ErrLaunch, "Can't connect to alexa", "")
		}
		return remote.Result{Succeeded: true, Duration: 12 * time.Millisecond}, nil
	})

	host := (&ReachCheck{Runner: runner, Target: target.Host(), Timeout: time.Second}).Run(context.Background())
	assert.Equal(t, StatusPass, host.Status)
	assert.Contains(t, host.Message, "Host (proxmox) answered in 12ms")

	vm := (&ReachCheck{Runner: runner, Target: target.VM(611), Timeout: time.Second}).Run(context.Background())
	assert.Equal(t, StatusFail, vm.Status)
	assert.Contains(t, vm.Message, "VM 611 (alexa)")
	assert.Contains(t, vm.Suggestion, "ssh alexa true")

	assert.Equal(t, []string{"proxmox", "alexa"}, aliases)
	assert.Equal(t, "reach_vm:611", (&ReachCheck{Target: target.VM(611)}).Name())
}

func TestToolsCheck(t *testing.T) {
	tests := []struct {
		name   string
		res    remote.Result
		err    error
		status CheckStatus
		msg    string
	}{
		{
			name:   "all present",
			res:    remote.Result{Succeeded: true, Stdout: "/usr/sbin/pct\n/usr/sbin/qm\n/usr/sbin/pvesm\n/usr/bin/pveversion\n"},
			status: StatusPass,
			msg:    "Host has pct, qm, pvesm, pveversion",
		},
		{
			name:   "some missing",
			res:    remote.Result{ExitCode: 1, Stdout: "/usr/sbin/pct\n"},
			status: StatusFail,
			msg:    "Missing on host: pvesm, pveversion, qm",
		},
		{
			name:   "launch failure",
			err:    errors.New(errors.ErrLaunch, "Can't connect to proxmox", ""),
			status: StatusFail,
			msg:    "Can't check host tools",
		},
		{
			name:   "timeout",
			res:    remote.Result{ExitCode: -1, TimedOut: true},
			status: StatusFail,
			msg:    "timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var line string
			runner := runnerFor(func(_ context.Context, _ target.Destination, cmd remote.Command, _ time.Duration) (remote.Result, error) {
				line = cmd.Line()
				return tt.res, tt.err
			})
			r := (&ToolsCheck{Runner: runner, Timeout: time.Second}).Run(context.Background())
			assert.Equal(t, tt.status, r.Status)
			assert.Contains(t, r.Message, tt.msg)
			assert.Equal(t, "command -v pct qm pvesm pveversion", line)
		})
	}
}

func TestSuggestCheck(t *testing.T) {
	assert.Equal(t, StatusWarn, (&SuggestCheck{}).Run(context.Background()).Status)
	r := (&SuggestCheck{Endpoint: "http://localhost:11434/api/generate"}).Run(context.Background())
	assert.Equal(t, StatusPass, r.Status)
}
