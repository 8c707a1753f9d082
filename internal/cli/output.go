package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rileyhilliard/pxd/internal/api"
	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/target"
	"github.com/spf13/cobra"
)

// emit writes data as a JSON envelope with --json, otherwise the text
// render produces.
func emit(cmd *cobra.Command, data interface{}, render func() string) error {
	if jsonOutput {
		return api.WriteSuccess(cmd.OutOrStdout(), data)
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), render())
	return err
}

// withApp opens the app for the duration of fn. The context is cancelled
// on SIGINT or SIGTERM.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, a)
}

// parseTarget parses a positional target argument, rejecting the host
// where only containers and VMs make sense.
func parseTarget(arg string, allowHost bool) (target.Target, error) {
	t, err := target.Parse(arg)
	if err != nil {
		return target.Target{}, err
	}
	if t.IsHost() && !allowHost {
		return target.Target{}, errors.New(errors.ErrInput,
			"This command needs a container or VM, not the host",
			"Pass a target like ct:214 or vm:611.")
	}
	return t, nil
}
