package aggregate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/pxd/internal/cache"
	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/parse"
	"github.com/rileyhilliard/pxd/internal/remote"
	"github.com/rileyhilliard/pxd/internal/target"
	"golang.org/x/sync/errgroup"
)

// SystemOverview returns the status of every container and VM on the host.
// A cached overview is returned while fresh.
func (a *Aggregator) SystemOverview(ctx context.Context) (SystemOverview, error) {
	return cache.Load(ctx, a.cache, cache.KeySystemOverview, a.buildSystemOverview)
}

func (a *Aggregator) buildSystemOverview(ctx context.Context) (SystemOverview, error) {
	start := a.now()
	ctx, cancel := a.passContext(ctx)
	defer cancel()

	w := &warnings{}

	var containerIDs, vmIDs []uint32
	var g errgroup.Group
	g.SetLimit(a.opts.Workers)
	g.Go(func() error {
		containerIDs = a.discover(ctx, target.KindContainer, w)
		return nil
	})
	g.Go(func() error {
		vmIDs = a.discover(ctx, target.KindVM, w)
		return nil
	})
	_ = g.Wait()

	targets := make([]target.Target, 0, len(containerIDs)+len(vmIDs))
	for _, id := range containerIDs {
		targets = append(targets, target.Container(id))
	}
	for _, id := range vmIDs {
		targets = append(targets, target.VM(id))
	}

	records := a.fetchStatuses(ctx, targets, w)
	if err := cancelledPass(ctx, "System overview"); err != nil {
		return SystemOverview{}, err
	}

	ov := SystemOverview{
		Containers: []StatusRecord{},
		VMs:        []StatusRecord{},
	}
	for _, rec := range records {
		if rec == nil {
			continue
		}
		running := rec.Status == parse.Running
		if rec.Kind == target.KindContainer {
			ov.Containers = append(ov.Containers, *rec)
			if running {
				ov.RunningContainers++
			}
		} else {
			ov.VMs = append(ov.VMs, *rec)
			if running {
				ov.RunningVMs++
			}
		}
	}
	ov.TotalContainers = len(ov.Containers)
	ov.TotalVMs = len(ov.VMs)
	ov.Warnings = w.all()
	ov.GeneratedAt = a.now()

	a.metrics.ObservePass("system", a.now().Sub(start), len(ov.Warnings))
	if len(ov.Warnings) > 0 {
		a.log.Warn("system overview: %s", strings.Join(ov.Warnings, "; "))
	}
	return ov, nil
}

// discover lists guest ids of kind. Failure yields no ids and a warning.
func (a *Aggregator) discover(ctx context.Context, kind target.Kind, w *warnings) []uint32 {
	res, err := a.runner.Do(ctx, target.Host(), remote.List(kind), a.opts.CommandTimeout)
	if err == nil {
		err = res.Err(fmt.Sprintf("Failed to list %ss", kind))
	}
	if err != nil {
		w.add("discover "+string(kind)+"s", err)
		return []uint32{}
	}
	return parse.ParseIDListing(res.Stdout)
}

// fetchStatuses fans out over targets with at most Workers calls in flight.
// The result is indexed like targets; failed targets are nil.
func (a *Aggregator) fetchStatuses(ctx context.Context, targets []target.Target, w *warnings) []*StatusRecord {
	records := make([]*StatusRecord, len(targets))

	var g errgroup.Group
	g.SetLimit(a.opts.Workers)
	for i, t := range targets {
		g.Go(func() error {
			if ctx.Err() != nil {
				w.add(t.String(), skippedErr(ctx, "Skipped "+t.Title()))
				return nil
			}
			rec, err := a.fetchStatus(ctx, t)
			if err != nil {
				w.add(t.String(), err)
				return nil
			}
			records[i] = &rec
			return nil
		})
	}
	_ = g.Wait()
	return records
}

// TargetStatus returns the record for one container or VM, cached per target.
func (a *Aggregator) TargetStatus(ctx context.Context, t target.Target) (StatusRecord, error) {
	if t.IsHost() {
		return StatusRecord{}, errors.NewInvalidInput("status needs a container_id or vm_id")
	}
	return cache.Load(ctx, a.cache, t.CacheKey(), func(ctx context.Context) (StatusRecord, error) {
		return a.fetchStatus(ctx, t)
	})
}

// fetchStatus builds a record: primary status first, then best-effort
// enrichment, then catalog metadata. The record is complete when returned.
func (a *Aggregator) fetchStatus(ctx context.Context, t target.Target) (StatusRecord, error) {
	res, err := a.runner.Do(ctx, t, remote.Status, a.opts.CommandTimeout)
	if err != nil {
		return StatusRecord{}, err
	}
	if err := res.Err(fmt.Sprintf("Failed to get status of %s", t.Title())); err != nil {
		return StatusRecord{}, err
	}
	state := parse.ParseRunningState(res.Stdout)

	e := a.enrich(ctx, t, state)
	meta, _ := a.catalog.Describe(t)

	return StatusRecord{
		ID:          t.ID,
		Kind:        t.Kind,
		Name:        meta.Name,
		Status:      state,
		Uptime:      e.uptime,
		CPUUsage:    e.cpu,
		MemoryUsage: e.memory,
		MemoryMB:    e.memoryMB,
		Cores:       e.cores,
		Category:    meta.Category,
		Description: meta.Description,
		WebUI:       meta.WebUI,
		OSInfo:      e.osInfo,
	}, nil
}

// enrichment holds the best-effort fields of a StatusRecord.
type enrichment struct {
	uptime   string
	cpu      float64
	memory   float64
	memoryMB int64
	cores    int
	osInfo   string
}

// enrich runs the secondary queries for t one after another, so a worker
// never has more than one remote call in flight. Each is bounded by the
// enrichment timeout and any failure leaves its fields at sentinels.
func (a *Aggregator) enrich(ctx context.Context, t target.Target, state parse.State) enrichment {
	e := enrichment{uptime: string(parse.Unknown)}
	timeout := a.opts.EnrichmentTimeout

	var verbose map[string]string
	var osRelease string
	if state == parse.Running {
		verbose = a.keyValues(ctx, t, remote.StatusVerbose, timeout)
		if t.Kind == target.KindContainer || a.runner.Addresser().HasDedicatedAccess(t) {
			res, err := a.exec(ctx, t, remote.Shell("cat /etc/os-release 2>/dev/null"), timeout)
			if err == nil && res.Succeeded {
				osRelease = res.Stdout
			}
		}
	}
	conf := a.keyValues(ctx, t, remote.Config, timeout)

	if verbose != nil {
		if secs := parse.Int(verbose, "uptime"); secs > 0 {
			e.uptime = parse.FormatUptime(secs)
		}
		// cpu is a fraction of the guest's cores
		e.cpu = round1(parse.Float(verbose, "cpu") * 100)
		if maxMem := parse.Float(verbose, "maxmem"); maxMem > 0 {
			e.memory = round1(parse.Float(verbose, "mem") / maxMem * 100)
		}
		e.cores = int(parse.Int(verbose, "cpus"))
	}
	if conf != nil {
		e.memoryMB = parse.Int(conf, "memory")
		if cores := int(parse.Int(conf, "cores")); cores > 0 {
			e.cores = cores
		}
	}
	if osRelease != "" {
		kv := parse.ParseKeyValueBlock(osRelease, "=")
		e.osInfo = kv["PRETTY_NAME"]
		if e.osInfo == "" {
			e.osInfo = strings.TrimSpace(kv["NAME"] + " " + kv["VERSION"])
		}
	}
	return e
}

// keyValues runs a management op whose output is "key: value" lines.
// Any failure returns nil.
func (a *Aggregator) keyValues(ctx context.Context, t target.Target, op remote.Op, timeout time.Duration) map[string]string {
	res, err := a.runner.Do(ctx, t, op, timeout)
	if err != nil || !res.Succeeded {
		a.log.Debug("%s %s: enrichment skipped", t, op)
		return nil
	}
	return parse.ParseKeyValueBlock(res.Stdout, ":")
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
