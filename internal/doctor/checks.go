package doctor

import (
	"context"
	stderrors "errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rileyhilliard/pxd/internal/catalog"
	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/remote"
	"github.com/rileyhilliard/pxd/internal/target"
)

// ConfigCheck reports how the config was loaded. Err is the load or
// validation error, if any.
type ConfigCheck struct {
	Path string
	Err  error
}

func (c *ConfigCheck) Name() string     { return "config" }
func (c *ConfigCheck) Category() string { return "CONFIG" }

func (c *ConfigCheck) Run(context.Context) CheckResult {
	if c.Err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    "Config is invalid: " + detail(c.Err),
			Suggestion: suggestion(c.Err),
		}
	}
	if c.Path == "" {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "No config file found, using defaults",
			Suggestion: "Create .pxd.yaml to set your host alias and VM aliases.",
		}
	}
	return CheckResult{Status: StatusPass, Message: "Config loaded from " + c.Path}
}

// CatalogCheck loads the catalog at Path, the built-in one when empty.
type CatalogCheck struct {
	Path string
}

func (c *CatalogCheck) Name() string     { return "catalog" }
func (c *CatalogCheck) Category() string { return "CONFIG" }

func (c *CatalogCheck) Run(context.Context) CheckResult {
	cat, err := catalog.Load(c.Path)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: detail(err), Suggestion: suggestion(err)}
	}
	checks := cat.Checks()
	source := "built-in catalog"
	if c.Path != "" {
		source = "catalog " + c.Path
	}
	return CheckResult{
		Status: StatusPass,
		Message: fmt.Sprintf("%s: %d services, %d binaries, %d configs",
			source, len(checks.Services), len(checks.Binaries), len(checks.Configs)),
	}
}

// ReachCheck runs a no-op command on Target to prove the remote channel
// works end to end.
type ReachCheck struct {
	Runner  *remote.Runner
	Target  target.Target
	Timeout time.Duration
}

func (c *ReachCheck) Name() string     { return "reach_" + c.Target.String() }
func (c *ReachCheck) Category() string { return "SSH" }

func (c *ReachCheck) Run(ctx context.Context) CheckResult {
	dest := c.Runner.Addresser().Resolve(c.Target)
	res, err := c.Runner.Do(ctx, c.Target, remote.Exec(remote.Argv("true")), c.Timeout)
	if err == nil {
		err = res.Err("No answer from " + dest.Alias)
	}
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("%s (%s): %s", c.Target.Title(), dest.Alias, detail(err)),
			Suggestion: "Check that 'ssh " + dest.Alias + " true' works from this machine.",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s (%s) answered in %s", c.Target.Title(), dest.Alias, res.Duration.Round(time.Millisecond)),
	}
}

// HostTools are the management commands pxd runs on the host.
var HostTools = []string{"pct", "qm", "pvesm", "pveversion"}

// ToolsCheck verifies the host has the management tools pxd drives.
type ToolsCheck struct {
	Runner  *remote.Runner
	Timeout time.Duration
}

func (c *ToolsCheck) Name() string     { return "host_tools" }
func (c *ToolsCheck) Category() string { return "HOST" }

func (c *ToolsCheck) Run(ctx context.Context) CheckResult {
	// command -v exits non-zero when any name is missing, so only a launch
	// failure is fatal here; the output says which ones were found.
	res, err := c.Runner.Do(ctx, target.Host(), remote.Exec(remote.Argv(append([]string{"command", "-v"}, HostTools...)...)), c.Timeout)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: "Can't check host tools: " + detail(err)}
	}
	if res.TimedOut {
		return CheckResult{Status: StatusFail, Message: "Can't check host tools: timed out"}
	}

	found := make(map[string]bool)
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			found[path.Base(line)] = true
		}
	}
	var missing []string
	for _, tool := range HostTools {
		if !found[tool] {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return CheckResult{
			Status:     StatusFail,
			Message:    "Missing on host: " + strings.Join(missing, ", "),
			Suggestion: "Point 'host' at the Proxmox node itself, logged in as root.",
		}
	}
	return CheckResult{Status: StatusPass, Message: "Host has " + strings.Join(HostTools, ", ")}
}

// SuggestCheck reports whether the suggestion endpoint is configured.
type SuggestCheck struct {
	Endpoint string
}

func (c *SuggestCheck) Name() string     { return "suggest_endpoint" }
func (c *SuggestCheck) Category() string { return "CONFIG" }

func (c *SuggestCheck) Run(context.Context) CheckResult {
	if c.Endpoint == "" {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "Suggestions are off",
			Suggestion: "Set suggest.endpoint to a text-generation API to enable 'pxd suggest'.",
		}
	}
	return CheckResult{Status: StatusPass, Message: "Suggestions use " + c.Endpoint}
}

func detail(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Detail()
	}
	return err.Error()
}

func suggestion(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Suggestion
	}
	return ""
}
