package aggregate

import (
	"context"

	"github.com/rileyhilliard/pxd/internal/cache"
	"golang.org/x/sync/errgroup"
)

// MaintenanceOverview runs every service, binary and config check in the
// catalog plus the host health query. Failed checks are dropped with a
// warning; the order of the catalog is kept.
func (a *Aggregator) MaintenanceOverview(ctx context.Context) (MaintenanceOverview, error) {
	return cache.Load(ctx, a.cache, cache.KeyMaintenance, a.buildMaintenance)
}

func (a *Aggregator) buildMaintenance(ctx context.Context) (MaintenanceOverview, error) {
	start := a.now()
	ctx, cancel := a.passContext(ctx)
	defer cancel()

	checks := a.catalog.Checks()
	w := &warnings{}

	services := make([]*ServiceRecord, len(checks.Services))
	binaries := make([]*BinaryRecord, len(checks.Binaries))
	configs := make([]*ConfigRecord, len(checks.Configs))
	var health HostInfo

	var g errgroup.Group
	g.SetLimit(a.opts.Workers)

	g.Go(func() error {
		health = a.HostInfo(ctx)
		return nil
	})
	for i, c := range checks.Services {
		g.Go(func() error {
			rec, err := a.ServiceStatus(ctx, c.Target, c.Name)
			if err != nil {
				w.add("service "+c.Name+" on "+c.Target.String(), err)
				return nil
			}
			services[i] = &rec
			return nil
		})
	}
	for i, c := range checks.Binaries {
		g.Go(func() error {
			rec, err := a.CheckBinary(ctx, c.Target, c.Name)
			if err != nil {
				w.add("binary "+c.Name+" on "+c.Target.String(), err)
				return nil
			}
			binaries[i] = &rec
			return nil
		})
	}
	for i, c := range checks.Configs {
		g.Go(func() error {
			rec, err := a.CheckConfig(ctx, c.Target, c.Path)
			if err != nil {
				w.add("config "+c.Path+" on "+c.Target.String(), err)
				return nil
			}
			configs[i] = &rec
			return nil
		})
	}
	_ = g.Wait()
	if err := cancelledPass(ctx, "Maintenance overview"); err != nil {
		return MaintenanceOverview{}, err
	}

	ov := MaintenanceOverview{
		Services:     compact(services),
		Binaries:     compact(binaries),
		Configs:      compact(configs),
		SystemHealth: health,
		Warnings:     w.all(),
		GeneratedAt:  a.now(),
	}
	a.metrics.ObservePass("maintenance", a.now().Sub(start), len(ov.Warnings))
	if n := len(ov.Warnings); n > 0 {
		a.log.Warn("maintenance overview: %d checks dropped", n)
	}
	return ov, nil
}

// compact drops nil entries and keeps order.
func compact[T any](in []*T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}
