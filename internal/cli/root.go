package cli

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/rileyhilliard/pxd/internal/api"
	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/ui"
	"github.com/spf13/cobra"
)

// Global flags
var (
	cfgFile     string
	jsonOutput  bool
	noColor     bool
	debugOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "pxd",
	Short: "Status, maintenance checks and control for a Proxmox host",
	Long: `pxd inspects and controls the containers and VMs on a Proxmox host
over SSH. It runs one-off queries from the command line or serves them
as an HTTP API with websocket push.

Configuration is read from ./.pxd.yaml, then ~/.config/pxd/config.yaml.
Every key can be overridden with a PXD_ environment variable, for
example PXD_HOST or PXD_TIMEOUTS_COMMAND.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor || !ui.ColorsWanted(os.Stdout) {
			ui.DisableColors()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./.pxd.yaml, then ~/.config/pxd/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as a JSON envelope")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debugOutput, "debug", false, "log remote calls and cache activity to stderr")
}

// Execute runs the root command. It exits the process on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		reportError(rootCmd, err)
		os.Exit(exitCode(err))
	}
}

// reportError prints err as a JSON envelope on stdout in --json mode,
// otherwise styled on stderr.
func reportError(cmd *cobra.Command, err error) {
	var shown shownError
	if stderrors.As(err, &shown) {
		return
	}
	if jsonOutput {
		_ = api.WriteError(cmd.OutOrStdout(), err)
		return
	}
	msg := err.Error()
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(cmd.ErrOrStderr(), ui.ErrorStyle().Render(msg))
}

// shownError marks an error whose output the command already wrote.
type shownError struct{ error }

func (e shownError) Unwrap() error { return e.error }

// exitCode is 2 for bad input, 1 for everything else.
func exitCode(err error) int {
	if errors.IsCode(err, errors.ErrInput) {
		return 2
	}
	return 1
}
