package cli

import (
	"fmt"

	"github.com/rileyhilliard/pxd/internal/catalog"
	"github.com/rileyhilliard/pxd/internal/ui"
	"github.com/rileyhilliard/pxd/internal/util"
	"github.com/spf13/cobra"
)

var catalogDump bool

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Show the maintenance checks in the active catalog",
	Long: `List the services, binaries and config files that 'pxd overview
maintenance' checks. With --dump, print the built-in catalog YAML as a
starting point for your own (point 'catalog' in .pxd.yaml at it).

Examples:
  pxd catalog
  pxd catalog --dump > ~/.config/pxd/catalog.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if catalogDump {
			_, err := cmd.OutOrStdout().Write(catalog.Dump())
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cat, err := catalog.Load(cfg.Catalog)
		if err != nil {
			return err
		}
		checks := cat.Checks()
		return emit(cmd, checks, func() string { return renderChecks(checks) })
	},
}

func renderChecks(c catalog.Checks) string {
	rows := make([][]string, 0, len(c.Services)+len(c.Binaries)+len(c.Configs))
	for _, s := range c.Services {
		rows = append(rows, []string{"service", s.Name, s.Target.String()})
	}
	for _, b := range c.Binaries {
		rows = append(rows, []string{"binary", b.Name, b.Target.String()})
	}
	for _, f := range c.Configs {
		rows = append(rows, []string{"config", f.Path, f.Target.String()})
	}
	if len(rows) == 0 {
		return ui.MutedStyle().Render("The catalog has no checks") + "\n"
	}
	return ui.Table([]string{"Check", "Subject", "Target"}, rows) + "\n" +
		ui.MutedStyle().Render(fmt.Sprintf("%d %s", len(rows), util.Pluralize(len(rows), "check", "checks"))) + "\n"
}

func init() {
	catalogCmd.Flags().BoolVar(&catalogDump, "dump", false, "print the built-in catalog YAML")
	rootCmd.AddCommand(catalogCmd)
}
