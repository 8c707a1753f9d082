package cli

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/rileyhilliard/pxd/internal/config"
	"github.com/rileyhilliard/pxd/internal/doctor"
	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/logger"
	"github.com/rileyhilliard/pxd/internal/remote"
	"github.com/rileyhilliard/pxd/internal/target"
	"github.com/rileyhilliard/pxd/internal/ui"
	"github.com/rileyhilliard/pxd/internal/util"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check config, SSH reachability and host tools",
	Long: `Run diagnostics: load the config and catalog, reach the host and every
VM alias over SSH, and confirm the host has the Proxmox tools pxd drives.

Exits non-zero when any check fails.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		checks, closeAll := doctorChecks()
		defer closeAll()

		results := doctor.RunAll(ctx, checks)
		if err := emit(cmd, results, func() string { return renderDoctor(results) }); err != nil {
			return err
		}
		if doctor.HasFailures(results) {
			counts := doctor.CountByStatus(results)
			err := errors.New(errors.ErrConfig,
				fmt.Sprintf("%d of %d checks failed", counts[doctor.StatusFail], len(results)),
				"Fix the failed checks above and run 'pxd doctor' again.")
			if jsonOutput {
				return shownError{err}
			}
			return err
		}
		return nil
	},
}

// doctorChecks builds the check list. An invalid config is reported as a
// failed check and the remaining checks run against defaults.
func doctorChecks() ([]doctor.Check, func()) {
	cfg, path, err := config.LoadOrDefault(cfgFile)
	if err == nil {
		err = config.Validate(cfg)
	}
	checks := []doctor.Check{&doctor.ConfigCheck{Path: path, Err: err}}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	exec, closeExec := executorFor(cfg, logger.Noop())
	addr := target.NewAddresser(cfg.Host, cfg.VMAliases, cfg.ContainerExec)
	runner := remote.NewRunner(exec, addr, logger.Noop(), nil)

	checks = append(checks,
		&doctor.CatalogCheck{Path: cfg.Catalog},
		&doctor.SuggestCheck{Endpoint: cfg.Suggest.Endpoint},
		&doctor.ReachCheck{Runner: runner, Target: target.Host(), Timeout: cfg.Timeouts.Command},
	)

	ids := make([]uint32, 0, len(cfg.VMAliases))
	for id := range cfg.VMAliases {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		checks = append(checks, &doctor.ReachCheck{Runner: runner, Target: target.VM(id), Timeout: cfg.Timeouts.Command})
	}

	checks = append(checks, &doctor.ToolsCheck{Runner: runner, Timeout: cfg.Timeouts.Command})
	return checks, closeExec
}

func renderDoctor(results []doctor.CheckResult) string {
	rows := make([][]string, 0, len(results))
	var hints []string
	for _, r := range results {
		rows = append(rows, []string{doctorSymbol(r.Status), r.Category, r.Message})
		if r.Status != doctor.StatusPass && r.Suggestion != "" {
			hints = append(hints, r.Suggestion)
		}
	}

	var b strings.Builder
	b.WriteString(ui.Table([]string{"", "Category", "Result"}, rows))
	b.WriteString("\n")
	for _, h := range hints {
		b.WriteString(ui.MutedStyle().Render("  "+h) + "\n")
	}

	counts := doctor.CountByStatus(results)
	warns := counts[doctor.StatusWarn]
	fmt.Fprintf(&b, "%d passed, %d %s, %d failed\n",
		counts[doctor.StatusPass], warns, util.Pluralize(warns, "warning", "warnings"), counts[doctor.StatusFail])
	return b.String()
}

func doctorSymbol(s doctor.CheckStatus) string {
	switch s {
	case doctor.StatusPass:
		return ui.SymbolSuccess
	case doctor.StatusWarn:
		return ui.SymbolWarning
	default:
		return ui.SymbolFail
	}
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
