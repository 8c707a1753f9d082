package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/scripts"
	"github.com/rileyhilliard/pxd/internal/suggest"
	"github.com/rileyhilliard/pxd/internal/ui"
	"github.com/spf13/cobra"
)

var (
	scriptList     bool
	suggestContext string
)

var scriptCmd = &cobra.Command{
	Use:   "script [id]",
	Short: "Run a local maintenance script",
	Long: `Run one of the scripts configured under 'scripts' in .pxd.yaml on this
machine. Output is captured and printed when the script finishes.

Examples:
  pxd script --list
  pxd script backup-configs`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !scriptList && len(args) == 0 {
			return errors.New(errors.ErrInput,
				"Which script?",
				"Pass a script id, or list them with: pxd script --list")
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if scriptList {
				list := a.scripts.List()
				return emit(cmd, list, func() string { return renderScripts(list) })
			}
			res, err := a.scripts.Run(ctx, args[0])
			if err != nil {
				return err
			}
			if err := emit(cmd, res, func() string { return renderScriptResult(res) }); err != nil {
				return err
			}
			if !res.Success {
				return errors.New(errors.ErrScript,
					fmt.Sprintf("Script %s exited with status %d", res.ScriptID, res.ExitCode),
					"See the output above.")
			}
			return nil
		})
	},
}

func renderScripts(list []scripts.Info) string {
	if len(list) == 0 {
		return ui.MutedStyle().Render("No scripts configured") + "\n"
	}
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		rows = append(rows, []string{s.ID, s.Description, s.Path, s.Timeout.String()})
	}
	return ui.Table([]string{"ID", "Description", "Path", "Timeout"}, rows) + "\n"
}

func renderScriptResult(r scripts.Result) string {
	var sb strings.Builder
	sb.WriteString(r.Output)
	if r.Output != "" && !strings.HasSuffix(r.Output, "\n") {
		sb.WriteString("\n")
	}
	took := time.Duration(r.DurationMS) * time.Millisecond
	summary := fmt.Sprintf("%s %s exited %d in %s", ui.Check(r.Success), r.ScriptID, r.ExitCode, took)
	sb.WriteString(summary + "\n")
	if r.MemoryBefore > 0 && r.MemoryAfter > 0 {
		sb.WriteString(ui.MutedStyle().Render(fmt.Sprintf("memory in use: %s before, %s after",
			humanize.IBytes(r.MemoryBefore), humanize.IBytes(r.MemoryAfter))) + "\n")
	}
	return sb.String()
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <topic>",
	Short: "Ask the suggestion endpoint about a topic",
	Long: `Send a topic, and optional context, to the text-generation endpoint set
in suggest.endpoint and print what it returns.

Examples:
  pxd suggest "sonarr keeps restarting"
  pxd suggest "disk almost full" --context "$(pxd host --json)"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := suggest.Request{Topic: strings.Join(args, " "), Context: suggestContext}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			s, err := a.suggest.Suggest(ctx, req)
			if err != nil {
				return err
			}
			return emit(cmd, s, func() string { return renderSuggestions(s) })
		})
	},
}

func renderSuggestions(s suggest.Suggestions) string {
	var sb strings.Builder
	for _, item := range s.Items {
		sb.WriteString(ui.TitleStyle().Render(item.Title) + "\n")
		sb.WriteString(strings.TrimRight(item.Body, "\n") + "\n")
		sb.WriteString(ui.MutedStyle().Render("source: "+item.Source) + "\n")
	}
	return sb.String()
}

func init() {
	scriptCmd.Flags().BoolVar(&scriptList, "list", false, "list configured scripts")
	suggestCmd.Flags().StringVar(&suggestContext, "context", "", "extra context sent with the topic")

	rootCmd.AddCommand(scriptCmd)
	rootCmd.AddCommand(suggestCmd)
}
