package cli

import (
	"context"
	"io"
	"os"

	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/remote"
	"github.com/rileyhilliard/pxd/internal/ui"
	"github.com/spf13/cobra"
)

var configWriteFile string

var statusCmd = &cobra.Command{
	Use:   "status <target>",
	Short: "Status of one container or VM",
	Long: `Show the run state, resource usage and catalog metadata of one
container or VM.

Examples:
  pxd status ct:214
  pxd status vm:611 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTarget(args[0], false)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			r, err := a.agg.TargetStatus(ctx, t)
			if err != nil {
				return err
			}
			return emit(cmd, r, func() string { return ui.Status(r) })
		})
	},
}

var controlCmd = &cobra.Command{
	Use:   "control <target> <start|stop|restart|shutdown|reset>",
	Short: "Change the power state of a container or VM",
	Long: `Start, stop, restart or shut down a container or VM. Reset is a hard
reset and only applies to VMs.

Examples:
  pxd control ct:214 restart
  pxd control vm:611 shutdown`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"start", "stop", "restart", "shutdown", "reset"},
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTarget(args[0], false)
		if err != nil {
			return err
		}
		op, err := remote.ParseAction(args[1])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			res, err := a.agg.ControlTarget(ctx, t, op)
			if err != nil {
				return err
			}
			return emit(cmd, res, func() string { return ui.Check(true) + " " + res.Message + "\n" })
		})
	},
}

var serviceCmd = &cobra.Command{
	Use:   "service <target> <name> [start|stop|restart|reload|enable|disable]",
	Short: "Status or control of a systemd service",
	Long: `Without an action, show whether a systemd unit is active and enabled.
With one, run systemctl <action> on the target.

Examples:
  pxd service ct:214 sonarr
  pxd service host pveproxy restart`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTarget(args[0], true)
		if err != nil {
			return err
		}
		name := args[1]
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if len(args) == 3 {
				msg, err := a.agg.ControlService(ctx, t, name, args[2])
				if err != nil {
					return err
				}
				data := map[string]string{"message": msg}
				return emit(cmd, data, func() string { return ui.Check(true) + " " + msg + "\n" })
			}
			s, err := a.agg.ServiceStatus(ctx, t, name)
			if err != nil {
				return err
			}
			return emit(cmd, s, func() string { return ui.Service(s) })
		})
	},
}

var binaryCmd = &cobra.Command{
	Use:   "binary <target> <name>",
	Short: "Locate a binary and report its version",
	Long: `Look for an executable on the target's $PATH, then in the configured
binary_search_dirs, and report the first version string it prints.

Examples:
  pxd binary ct:214 sonarr
  pxd binary host pveversion`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTarget(args[0], true)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			b, err := a.agg.CheckBinary(ctx, t, args[1])
			if err != nil {
				return err
			}
			return emit(cmd, b, func() string { return ui.Binary(b) })
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit config files on a target",
}

var configCheckCmd = &cobra.Command{
	Use:   "check <target> <path>",
	Short: "Existence, permissions, size and age of a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTarget(args[0], true)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			c, err := a.agg.CheckConfig(ctx, t, args[1])
			if err != nil {
				return err
			}
			return emit(cmd, c, func() string { return ui.Config(c) })
		})
	},
}

var configReadCmd = &cobra.Command{
	Use:   "read <target> <path>",
	Short: "Print a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTarget(args[0], true)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			content, err := a.agg.ReadConfig(ctx, t, args[1])
			if err != nil {
				return err
			}
			data := map[string]interface{}{"path": args[1], "target": t, "content": content}
			return emit(cmd, data, func() string { return content })
		})
	},
}

var configWriteCmd = &cobra.Command{
	Use:   "write <target> <path>",
	Short: "Replace a file, keeping a timestamped backup",
	Long: `Replace a file on the target with new content. The previous version is
copied to <path>.<YYYYMMDD-HHMMSS>.bak first.

Content comes from --file, or stdin when --file is not set.

Examples:
  pxd config write ct:214 /etc/sonarr/config.xml --file config.xml
  cat interfaces | pxd config write host /etc/network/interfaces`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTarget(args[0], true)
		if err != nil {
			return err
		}
		content, err := readContent(cmd.InOrStdin(), configWriteFile)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			res, err := a.agg.WriteConfig(ctx, t, args[1], content)
			if err != nil {
				return err
			}
			return emit(cmd, res, func() string {
				out := ui.Check(true) + " " + res.Message + "\n"
				if res.Backup != "" {
					out += ui.MutedStyle().Render("backup: "+res.Backup) + "\n"
				}
				return out
			})
		})
	},
}

// readContent reads the new file content from path, or from stdin when
// path is empty.
func readContent(stdin io.Reader, path string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", errors.WrapWithCode(err, errors.ErrInput,
				"Can't read "+path,
				"Check the --file path.")
		}
		return string(data), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrInput,
			"Can't read content from stdin",
			"Pipe the new content in, or pass --file.")
	}
	return string(data), nil
}

func init() {
	configWriteCmd.Flags().StringVarP(&configWriteFile, "file", "f", "", "read the new content from this local file")

	configCmd.AddCommand(configCheckCmd)
	configCmd.AddCommand(configReadCmd)
	configCmd.AddCommand(configWriteCmd)

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(controlCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(binaryCmd)
	rootCmd.AddCommand(configCmd)
}
