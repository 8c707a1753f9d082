// Package scripts runs the local maintenance scripts named in the config.
// Only configured ids can be run; callers never pass a path or arguments.
package scripts

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rileyhilliard/pxd/internal/config"
	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/logger"
	"github.com/rileyhilliard/pxd/internal/metrics"
	"github.com/rileyhilliard/pxd/internal/util"
	"github.com/shirou/gopsutil/v4/mem"
)

// DefaultTimeout applies to scripts without their own timeout.
const DefaultTimeout = 5 * time.Minute

// Result describes one script run. MemoryBefore and MemoryAfter are the
// bytes of memory in use on this machine around the run, 0 when unknown.
type Result struct {
	RunID        string    `json:"run_id"`
	ScriptID     string    `json:"script_id"`
	Output       string    `json:"output"`
	ExitCode     int       `json:"exit_code"`
	Success      bool      `json:"success"`
	DurationMS   int64     `json:"duration_ms"`
	MemoryBefore uint64    `json:"memory_before"`
	MemoryAfter  uint64    `json:"memory_after"`
	StartedAt    time.Time `json:"started_at"`
}

// Info is the public view of a configured script.
type Info struct {
	ID          string        `json:"id"`
	Description string        `json:"description"`
	Path        string        `json:"path"`
	Timeout     time.Duration `json:"timeout"`
}

// Runner runs configured scripts. It is safe for concurrent use.
type Runner struct {
	scripts map[string]config.ScriptConfig
	log     logger.Logger
	metrics *metrics.Metrics
	memUsed func(ctx context.Context) (uint64, error)
	now     func() time.Time
}

// NewRunner creates a Runner for the given scripts. m may be nil.
func NewRunner(scripts map[string]config.ScriptConfig, log logger.Logger, m *metrics.Metrics) *Runner {
	copied := make(map[string]config.ScriptConfig, len(scripts))
	for id, s := range scripts {
		copied[id] = s
	}
	return &Runner{
		scripts: copied,
		log:     logger.Named(log, "scripts"),
		metrics: m,
		memUsed: usedMemory,
		now:     time.Now,
	}
}

func usedMemory(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.Used, nil
}

// List returns the configured scripts ordered by id.
func (r *Runner) List() []Info {
	out := make([]Info, 0, len(r.scripts))
	for id, s := range r.scripts {
		out = append(out, Info{ID: id, Description: s.Description, Path: s.Path, Timeout: timeoutFor(s)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func timeoutFor(s config.ScriptConfig) time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}

// Run executes the script with the given id and captures its combined
// output. A script that exits non-zero is a result with Success false, not
// an error. Unknown ids are NOT_FOUND; scripts that can't start or that
// time out are SCRIPT errors.
func (r *Runner) Run(ctx context.Context, id string) (Result, error) {
	s, ok := r.scripts[id]
	if !ok {
		suggestion := "List the configured scripts with: pxd script --list"
		ids := make([]string, 0, len(r.scripts))
		for known := range r.scripts {
			ids = append(ids, known)
		}
		if similar := util.SuggestSimilar(id, ids, 3); len(similar) > 0 {
			suggestion = fmt.Sprintf("Did you mean '%s'? %s", similar[0], suggestion)
		}
		return Result{}, errors.New(errors.ErrNotFound, fmt.Sprintf("No script named '%s'", id), suggestion)
	}

	timeout := timeoutFor(s)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := Result{
		RunID:     uuid.NewString(),
		ScriptID:  id,
		StartedAt: r.now(),
	}
	res.MemoryBefore = r.sampleMemory(ctx)

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, s.Path, s.Args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = time.Second

	r.log.Info("run %s: %s (%s)", res.RunID, id, s.Path)
	start := time.Now()
	runErr := cmd.Run()
	res.DurationMS = time.Since(start).Milliseconds()
	res.Output = out.String()

	if ctx.Err() == context.DeadlineExceeded {
		r.metrics.ScriptRun(id, false)
		return Result{}, errors.WrapWithCode(ctx.Err(), errors.ErrScript,
			fmt.Sprintf("Script '%s' timed out after %s", id, timeout),
			"Raise the script's timeout in .pxd.yaml.")
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		res.ExitCode = 0
	case stderrors.As(runErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		r.metrics.ScriptRun(id, false)
		return Result{}, errors.WrapWithCode(runErr, errors.ErrScript,
			fmt.Sprintf("Couldn't start script '%s'", id),
			"Make sure "+s.Path+" exists and is executable.")
	}

	res.Success = res.ExitCode == 0
	res.MemoryAfter = r.sampleMemory(context.WithoutCancel(ctx))
	r.metrics.ScriptRun(id, res.Success)
	r.log.Info("run %s: %s exited %d after %dms", res.RunID, id, res.ExitCode, res.DurationMS)
	return res, nil
}

func (r *Runner) sampleMemory(ctx context.Context) uint64 {
	used, err := r.memUsed(ctx)
	if err != nil {
		r.log.Debug("memory sample: %v", err)
		return 0
	}
	return used
}
