package aggregate

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rileyhilliard/pxd/internal/cache"
	"github.com/rileyhilliard/pxd/internal/catalog"
	"github.com/rileyhilliard/pxd/internal/logger"
	"github.com/rileyhilliard/pxd/internal/remote"
	"github.com/rileyhilliard/pxd/internal/target"
	"github.com/stretchr/testify/require"
)

const (
	hostDest = "proxmox"
	haDest   = "homeassistant"
)

func ctDest(id string) string { return "proxmox pct exec " + id + " --" }

type rule struct {
	dest    string
	pattern *regexp.Regexp
	res     remote.Result
	err     error
	delay   time.Duration
}

type call struct {
	dest  string
	line  string
	stdin string
}

// fakeExec answers commands from rules. The first rule whose destination
// and pattern match wins; anything else exits 127.
type fakeExec struct {
	mu    sync.Mutex
	rules []rule
	calls []call

	inFlight atomic.Int32
	peak     atomic.Int32
}

func newFakeExec() *fakeExec { return &fakeExec{} }

func (f *fakeExec) on(dest, pattern string, res remote.Result) *fakeExec {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{dest: dest, pattern: regexp.MustCompile(pattern), res: res})
	return f
}

func (f *fakeExec) slow(dest, pattern string, res remote.Result, delay time.Duration) *fakeExec {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{dest: dest, pattern: regexp.MustCompile(pattern), res: res, delay: delay})
	return f
}

func (f *fakeExec) fail(dest, pattern string, err error) *fakeExec {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{dest: dest, pattern: regexp.MustCompile(pattern), err: err})
	return f
}

func (f *fakeExec) Run(ctx context.Context, dest target.Destination, cmd remote.Command, timeout time.Duration) (remote.Result, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	stdin, _ := cmd.Stdin()
	f.mu.Lock()
	f.calls = append(f.calls, call{dest: dest.String(), line: cmd.Line(), stdin: stdin})
	var matched *rule
	for i := range f.rules {
		r := &f.rules[i]
		if (r.dest == "" || r.dest == dest.String()) && r.pattern.MatchString(cmd.Line()) {
			matched = r
			break
		}
	}
	f.mu.Unlock()

	if matched == nil {
		return remote.Result{ExitCode: 127, Stderr: "sh: command not found"}, nil
	}
	if matched.delay > 0 {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		select {
		case <-time.After(matched.delay):
		case <-ctx.Done():
			return remote.Result{ExitCode: -1, TimedOut: true, Duration: matched.delay}, nil
		}
	}
	return matched.res, matched.err
}

// count returns how many calls matched pattern.
func (f *fakeExec) count(pattern string) int {
	re := regexp.MustCompile(pattern)
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if re.MatchString(c.line) {
			n++
		}
	}
	return n
}

func (f *fakeExec) find(pattern string) (call, bool) {
	re := regexp.MustCompile(pattern)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if re.MatchString(c.line) {
			return c, true
		}
	}
	return call{}, false
}

func ok(stdout string) remote.Result {
	return remote.Result{Succeeded: true, Stdout: stdout}
}

func remoteTimeout() remote.Result {
	return remote.Result{ExitCode: -1, TimedOut: true, Duration: time.Second}
}

func exit(code int, stdout, stderr string) remote.Result {
	return remote.Result{ExitCode: code, Stdout: stdout, Stderr: stderr}
}

// A catalog whose ranges leave 214 uncovered and which knows 215 and 500.
const testCatalog = `
categories:
  - { name: Core Infrastructure, from: 100, to: 199 }
  - { name: Media Servers, from: 230, to: 239 }
containers:
  - { id: 100, name: WireGuard, description: VPN access and secure tunneling, category: Core Infrastructure }
  - { id: 215, name: Radarr, description: Movie management, category: Essential Media Services, web_ui: "http://radarr.lan:7878" }
vms:
  - { id: 500, name: Home Assistant, description: Home automation platform }
checks:
  services:
    - { name: nginx, target: host }
    - { name: sonarr, target: "ct:214" }
  binaries:
    - { name: docker, target: host }
    - { name: sonarr, target: "ct:214" }
  configs:
    - { path: /etc/nginx/nginx.conf, target: host }
`

type harness struct {
	exec  *fakeExec
	cache *cache.Cache
	agg   *Aggregator
	log   *logger.BufferLogger
}

func testOptions() Options {
	return Options{
		Workers:           4,
		CommandTimeout:    time.Second,
		EnrichmentTimeout: time.Second,
		PassDeadline:      5 * time.Second,
		BinarySearchDirs:  []string{"/opt/*/bin", "/usr/local/sbin"},
	}
}

func newHarness(t *testing.T, fe *fakeExec, opts Options) *harness {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)

	addr := target.NewAddresser("proxmox", map[uint32]string{500: "homeassistant"}, "pct exec {id} --")
	log := logger.NewBufferLogger()
	runner := remote.NewRunner(fe, addr, log, nil)
	c := cache.New(cache.TTLs{
		Default:        time.Minute,
		SystemOverview: time.Minute,
		Target:         time.Minute,
		HostInfo:       time.Minute,
		Maintenance:    time.Minute,
		Performance:    time.Minute,
	})

	agg := New(runner, c, cat, opts, log, nil)
	agg.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return &harness{exec: fe, cache: c, agg: agg, log: log}
}
