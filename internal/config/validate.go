package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rileyhilliard/pxd/internal/errors"
)

// scriptIDPattern restricts script ids to something safe in URLs and argv.
var scriptIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but pxd only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Grab the latest pxd release.")
	}

	if err := validateAlias("host", cfg.Host); err != nil {
		return err
	}
	for id, alias := range cfg.VMAliases {
		if err := validateAlias(fmt.Sprintf("vm_aliases.%d", id), alias); err != nil {
			return err
		}
	}

	if !strings.Contains(cfg.ContainerExec, "{id}") {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("container_exec %q has no {id} placeholder", cfg.ContainerExec),
			"Use something like 'pct exec {id} --'.")
	}

	switch cfg.Executor {
	case ExecutorSSH, ExecutorProcess:
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown executor %q", cfg.Executor),
			"Use 'ssh' (built-in client) or 'process' (spawns the ssh binary).")
	}
	if cfg.Executor == ExecutorProcess && strings.TrimSpace(cfg.SSH.Binary) == "" {
		return errors.New(errors.ErrConfig,
			"ssh.binary is empty",
			"The process executor needs an ssh client, usually just 'ssh'.")
	}

	if cfg.Workers < 1 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("workers must be at least 1, got %d", cfg.Workers),
			"Set workers to a small number like 4.")
	}

	if err := validateTimeouts(cfg.Timeouts); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'timeouts' section in your .pxd.yaml.")
	}

	if err := validateCache(cfg.Cache); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'cache' section in your .pxd.yaml.")
	}

	for id, script := range cfg.Scripts {
		if err := validateScript(id, script); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'scripts' section in your .pxd.yaml.")
		}
	}

	if err := validateServer(cfg.Server); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'server' section in your .pxd.yaml.")
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "", "console", "json":
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown log format %q", cfg.Log.Format),
			"Use 'console' or 'json'.")
	}

	return nil
}

// validateAlias checks that an SSH alias is usable as a single ssh argument.
func validateAlias(field, alias string) error {
	if strings.TrimSpace(alias) == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("%s is empty", field),
			"Set it to an SSH alias from ~/.ssh/config or user@host.")
	}
	if strings.ContainsAny(alias, " \t\n'\";|&") {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("%s '%s' contains whitespace or shell characters", field, alias),
			"Use a plain SSH alias like 'proxmox' or 'root@10.0.0.2'.")
	}
	return nil
}

func validateTimeouts(t TimeoutConfig) error {
	if t.Command <= 0 {
		return fmt.Errorf("timeouts.command must be positive, got %s", t.Command)
	}
	if t.Enrichment <= 0 {
		return fmt.Errorf("timeouts.enrichment must be positive, got %s", t.Enrichment)
	}
	if t.PassDeadline < t.Command {
		return fmt.Errorf("timeouts.pass_deadline (%s) can't be shorter than timeouts.command (%s)", t.PassDeadline, t.Command)
	}
	return nil
}

func validateCache(c CacheConfig) error {
	ttls := map[string]time.Duration{
		"default_ttl":         c.DefaultTTL,
		"system_overview_ttl": c.SystemOverviewTTL,
		"target_ttl":          c.TargetTTL,
		"host_info_ttl":       c.HostInfoTTL,
		"maintenance_ttl":     c.MaintenanceTTL,
		"performance_ttl":     c.PerformanceTTL,
	}
	for name, d := range ttls {
		if d < 0 {
			return fmt.Errorf("cache.%s can't be negative, got %s", name, d)
		}
	}
	if c.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries can't be negative, got %d", c.MaxEntries)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("cache.sweep_interval can't be negative, got %s", c.SweepInterval)
	}
	return nil
}

func validateScript(id string, s ScriptConfig) error {
	if !scriptIDPattern.MatchString(id) {
		return fmt.Errorf("script id '%s' should be lowercase letters, digits, '-' or '_'", id)
	}
	if strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("script '%s' needs a 'path'", id)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("script '%s' has a negative timeout", id)
	}
	return nil
}

func validateServer(s ServerConfig) error {
	if s.Listen == "" {
		return fmt.Errorf("server.listen is empty")
	}
	if s.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit can't be negative")
	}
	if s.RateLimit > 0 && s.Burst < 1 {
		return fmt.Errorf("server.burst must be at least 1 when rate limiting is on")
	}
	if s.PushInterval <= 0 {
		return fmt.Errorf("server.push_interval must be positive, got %s", s.PushInterval)
	}
	return nil
}
