package cli

import (
	"context"
	"time"

	"github.com/rileyhilliard/pxd/internal/aggregate"
	"github.com/rileyhilliard/pxd/internal/cache"
	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/ui"
	"github.com/spf13/cobra"
)

var (
	perfWatch   string
	perfSamples int
)

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Summaries across every container and VM",
}

var overviewSystemCmd = &cobra.Command{
	Use:   "system",
	Short: "Status of every container and VM",
	Long: `List every container and VM with its run state, uptime, CPU and memory
usage, and catalog metadata.

Targets whose status can't be read are left out and listed as warnings.

Examples:
  pxd overview system
  pxd overview system --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			o, err := a.agg.SystemOverview(ctx)
			if err != nil {
				return err
			}
			return emit(cmd, o, func() string { return ui.SystemOverview(o) })
		})
	},
}

var overviewMaintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Catalog service, binary and config checks plus host health",
	Long: `Run the maintenance checks listed in the catalog: systemd services,
binaries and config files on their targets, plus the host health summary.

Examples:
  pxd overview maintenance
  pxd catalog --dump   # see which checks run`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			m, err := a.agg.MaintenanceOverview(ctx)
			if err != nil {
				return err
			}
			return emit(cmd, m, func() string { return ui.Maintenance(m) })
		})
	},
}

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Health summary of the Proxmox host",
	Long: `Show disk and memory usage, load, network reachability, uptime and the
Proxmox version of the host. Values that can't be read show as Unknown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			h := a.agg.HostInfo(ctx)
			return emit(cmd, h, func() string { return ui.HostInfo(h) })
		})
	},
}

var perfCmd = &cobra.Command{
	Use:   "perf",
	Short: "CPU, memory, network and storage snapshot of the host",
	Long: `Sample the host's CPU, memory, network interfaces and storage pools.

With --watch the snapshot is retaken on every interval and a CPU
sparkline tracks the recent samples. Press Ctrl+C to stop.

Examples:
  pxd perf
  pxd perf --watch 5s
  pxd perf --watch 2s --samples 10`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, err := parseInterval(perfWatch)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if interval == 0 {
				p, err := a.agg.Performance(ctx)
				if err != nil {
					return err
				}
				return emit(cmd, p, func() string { return ui.Performance(p) })
			}
			return watchPerformance(ctx, cmd, a, interval, perfSamples)
		})
	},
}

// parseInterval parses --watch. Empty means no watching.
func parseInterval(flag string) (time.Duration, error) {
	if flag == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(flag)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrInput,
			"'"+flag+"' doesn't look like a valid interval",
			"Try something like 5s or 1m.")
	}
	if d < time.Second {
		return 0, errors.New(errors.ErrInput,
			"Interval too short",
			"Use at least 1s so the host isn't polled constantly.")
	}
	return d, nil
}

// watchPerformance re-samples every interval until ctx is done or samples
// snapshots were printed (0 means unlimited).
func watchPerformance(ctx context.Context, cmd *cobra.Command, a *app, interval time.Duration, samples int) error {
	history := ui.NewHistory(30)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 1; ; n++ {
		a.agg.Invalidate(cache.KeyPerformance)
		p, err := a.agg.Performance(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		history.Add(p.CPU.Percent)
		if err := emit(cmd, p, func() string { return renderWatch(p, history) }); err != nil {
			return err
		}
		if samples > 0 && n >= samples {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func renderWatch(p aggregate.Performance, history *ui.History) string {
	return ui.MutedStyle().Render("cpu history ") + ui.Sparkline(history.Values(), 30) + "\n" + ui.Performance(p) + "\n"
}

func init() {
	perfCmd.Flags().StringVar(&perfWatch, "watch", "", "re-sample on this interval (e.g. 5s)")
	perfCmd.Flags().IntVar(&perfSamples, "samples", 0, "stop watching after this many samples (0 = until Ctrl+C)")

	overviewCmd.AddCommand(overviewSystemCmd)
	overviewCmd.AddCommand(overviewMaintenanceCmd)
	rootCmd.AddCommand(overviewCmd)
	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(perfCmd)
}
