// Package aggregate composes remote queries into the records and overviews
// the dashboard shows.
//
// Single-target operations are strict: they return LAUNCH, REMOTE or INPUT
// errors. Overviews are lenient: a target or check that fails is dropped and
// explained in the overview's warnings, and the overview itself never fails
// because of a remote problem. A pass whose caller cancelled it fails instead,
// so an incomplete overview is never cached.
package aggregate

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/rileyhilliard/pxd/internal/cache"
	"github.com/rileyhilliard/pxd/internal/catalog"
	"github.com/rileyhilliard/pxd/internal/config"
	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/logger"
	"github.com/rileyhilliard/pxd/internal/metrics"
	"github.com/rileyhilliard/pxd/internal/parse"
	"github.com/rileyhilliard/pxd/internal/remote"
	"github.com/rileyhilliard/pxd/internal/target"
)

// Options tunes fan-out and time limits.
type Options struct {
	// Workers bounds concurrent remote calls within one pass.
	Workers int

	// CommandTimeout bounds each primary remote call.
	CommandTimeout time.Duration

	// EnrichmentTimeout bounds each best-effort call (uptime, OS name,
	// version probes).
	EnrichmentTimeout time.Duration

	// PassDeadline bounds a whole overview pass.
	PassDeadline time.Duration

	// BinarySearchDirs are probed in order when a binary isn't on $PATH.
	BinarySearchDirs []string
}

// OptionsFromConfig reads Options out of the loaded config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Workers:           cfg.Workers,
		CommandTimeout:    cfg.Timeouts.Command,
		EnrichmentTimeout: cfg.Timeouts.Enrichment,
		PassDeadline:      cfg.Timeouts.PassDeadline,
		BinarySearchDirs:  append([]string(nil), cfg.BinarySearchDirs...),
	}
}

// Aggregator is safe for concurrent use. The cache is its only mutable state.
type Aggregator struct {
	runner  *remote.Runner
	cache   *cache.Cache
	catalog *catalog.Catalog
	opts    Options
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates an Aggregator. m may be nil.
func New(runner *remote.Runner, c *cache.Cache, cat *catalog.Catalog, opts Options, log logger.Logger, m *metrics.Metrics) *Aggregator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Aggregator{
		runner:  runner,
		cache:   c,
		catalog: cat,
		opts:    opts,
		log:     logger.Named(log, "aggregate"),
		metrics: m,
		now:     time.Now,
	}
}

// Catalog returns the catalog used for metadata and checks.
func (a *Aggregator) Catalog() *catalog.Catalog { return a.catalog }

// Invalidate drops cached results so the next request recomputes them.
func (a *Aggregator) Invalidate(keys ...string) {
	a.cache.Invalidate(keys...)
}

// exec runs a shell line inside t.
func (a *Aggregator) exec(ctx context.Context, t target.Target, cmd remote.Command, timeout time.Duration) (remote.Result, error) {
	return a.runner.Do(ctx, t, remote.Exec(cmd), timeout)
}

// prober adapts exec to parse.Prober for best-effort probes at t.
func (a *Aggregator) prober(t target.Target, timeout time.Duration) parse.Prober {
	return parse.ProberFunc(func(ctx context.Context, line string) (string, bool) {
		res, err := a.exec(ctx, t, remote.Shell(line), timeout)
		if err != nil {
			return "", false
		}
		return res.Stdout, res.Succeeded
	})
}

// passContext applies the pass deadline.
func (a *Aggregator) passContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.opts.PassDeadline > 0 {
		return context.WithTimeout(ctx, a.opts.PassDeadline)
	}
	return context.WithCancel(ctx)
}

// warnings collects problems from concurrent workers.
type warnings struct {
	mu   sync.Mutex
	list []string
}

func (w *warnings) add(subject string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.list = append(w.list, subject+": "+detail(err))
}

func (w *warnings) all() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string{}, w.list...)
}

// detail renders err on one line for warnings.
func detail(err error) string {
	var pxErr *errors.Error
	if stderrors.As(err, &pxErr) {
		return pxErr.Detail()
	}
	switch {
	case stderrors.Is(err, context.Canceled):
		return "request cancelled"
	case stderrors.Is(err, context.DeadlineExceeded):
		return "pass deadline exceeded"
	}
	return err.Error()
}

// skippedErr reports a call skipped because the pass context ended, either
// at the pass deadline or because the request was cancelled.
func skippedErr(ctx context.Context, what string) error {
	if stderrors.Is(ctx.Err(), context.Canceled) {
		return errors.WrapWithCode(ctx.Err(), errors.ErrRemote, what+": request cancelled", "")
	}
	return errors.WrapWithCode(ctx.Err(), errors.ErrRemote,
		what+": pass deadline exceeded",
		"Raise timeouts.pass_deadline or lower the number of targets.")
}

// cancelledPass reports a pass whose context was cancelled rather than
// timed out. Its partial result must not be cached.
func cancelledPass(ctx context.Context, what string) error {
	if !stderrors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return errors.WrapWithCode(ctx.Err(), errors.ErrRemote, what+" cancelled", "Try again.")
}
