package aggregate

import (
	"context"
	"strings"

	"github.com/rileyhilliard/pxd/internal/cache"
	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/parse"
	"github.com/rileyhilliard/pxd/internal/remote"
	"github.com/rileyhilliard/pxd/internal/target"
)

// hostInfoCommand gathers host health in one round trip.
// Sections: 0=df, 1=meminfo, 2=loadavg, 3=uptime, 4=pveversion.
const hostInfoCommand = `df -P / 2>/dev/null; echo "---"; ` +
	`cat /proc/meminfo; echo "---"; ` +
	`cat /proc/loadavg; echo "---"; ` +
	`cat /proc/uptime; echo "---"; ` +
	`pveversion 2>/dev/null || true`

// performanceCommand samples /proc/stat twice to get current CPU usage.
// Sections: 0=stat, 1=stat, 2=loadavg, 3=meminfo, 4=net/dev, 5=pvesm.
const performanceCommand = `cat /proc/stat; echo "---"; ` +
	`sleep 0.5; cat /proc/stat; echo "---"; ` +
	`cat /proc/loadavg; echo "---"; ` +
	`cat /proc/meminfo; echo "---"; ` +
	`cat /proc/net/dev; echo "---"; ` +
	`pvesm status 2>/dev/null || true`

// HostInfo returns host health. It never fails: when the host can't be
// read the result holds zeros and "Unknown", and is not cached.
func (a *Aggregator) HostInfo(ctx context.Context) HostInfo {
	info, err := cache.Load(ctx, a.cache, cache.KeyHostInfo, a.fetchHostInfo)
	if err != nil {
		a.log.Warn("host info unavailable: %s", detail(err))
		return unknownHostInfo(a.now())
	}
	return info
}

func (a *Aggregator) fetchHostInfo(ctx context.Context) (HostInfo, error) {
	res, err := a.exec(ctx, target.Host(), remote.Shell(hostInfoCommand), a.opts.CommandTimeout)
	if err != nil {
		return HostInfo{}, err
	}
	if err := res.Err("Failed to read host info"); err != nil {
		return HostInfo{}, err
	}
	if strings.TrimSpace(res.Stdout) == "" {
		return HostInfo{}, errors.NewRemoteFailure("Failed to read host info", "no output")
	}

	sections := parse.SplitSections(res.Stdout)
	info := unknownHostInfo(a.now())
	info.NetworkStatus = NetworkConnected
	info.DiskUsage = parse.ParseDiskUsagePercent(parse.Section(sections, 0))

	if mem, err := parse.ParseLinuxMemory(parse.Section(sections, 1)); err == nil {
		info.MemoryUsage = round1(mem.UsedPercent())
	}
	if load, err := parse.ParseLoadAvg(parse.Section(sections, 2)); err == nil {
		info.CPULoad = load[0]
	}
	if secs, err := parse.ParseUptimeSeconds(parse.Section(sections, 3)); err == nil {
		info.Uptime = parse.FormatUptime(secs)
	}
	if v := strings.TrimSpace(parse.FirstLine(parse.Section(sections, 4))); v != "" {
		info.PVEVersion = v
	}
	return info, nil
}

// Performance returns a resource snapshot of the host, cached briefly.
// Unlike HostInfo it is strict: an unreachable host is an error.
func (a *Aggregator) Performance(ctx context.Context) (Performance, error) {
	return cache.Load(ctx, a.cache, cache.KeyPerformance, a.fetchPerformance)
}

func (a *Aggregator) fetchPerformance(ctx context.Context) (Performance, error) {
	res, err := a.exec(ctx, target.Host(), remote.Shell(performanceCommand), a.opts.CommandTimeout)
	if err != nil {
		return Performance{}, err
	}
	if err := res.Err("Failed to read performance metrics"); err != nil {
		return Performance{}, err
	}

	sections := parse.SplitSections(res.Stdout)
	perf := Performance{
		Network:     []parse.NetworkInterface{},
		Storage:     parse.ParseStorageListing(parse.Section(sections, 5)),
		GeneratedAt: a.now(),
	}

	if cpu, err := parse.ParseCPUDelta(parse.Section(sections, 0), parse.Section(sections, 1), parse.Section(sections, 2)); err == nil {
		perf.CPU = *cpu
	} else {
		a.log.Debug("cpu: %v", err)
	}
	if mem, err := parse.ParseLinuxMemory(parse.Section(sections, 3)); err == nil {
		perf.Memory = *mem
	} else {
		a.log.Debug("memory: %v", err)
	}
	if ifaces, err := parse.ParseLinuxNetwork(parse.Section(sections, 4)); err == nil {
		for _, iface := range ifaces {
			if iface.Name != "lo" {
				perf.Network = append(perf.Network, iface)
			}
		}
	} else {
		a.log.Debug("network: %v", err)
	}
	return perf, nil
}
