package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".pxd.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/pxd"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. PXD_HOST or PXD_TIMEOUTS_COMMAND.
	EnvPrefix = "PXD"
)

// Load reads config from the specified path. Environment variables override
// values from the file.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Create "+ConfigFileName+" or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .pxd.yaml in current directory
// 3. ~/.config/pxd/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	if home, _ := os.UserHomeDir(); home != "" {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// LoadOrDefault loads config from the given or found path. With no config
// file anywhere it returns defaults with environment overrides applied.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}

	if path == "" {
		cfg, err := parseConfig(newViper(), "environment")
		return cfg, "", err
	}

	cfg, err := Load(path)
	return cfg, path, err
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, source string) (*Config, error) {
	cfg := DefaultConfig()

	// Lists and maps named in the file replace the defaults rather than merge.
	if v.InConfig("vm_aliases") {
		cfg.VMAliases = make(map[uint32]string)
	}
	if v.InConfig("binary_search_dirs") {
		cfg.BinarySearchDirs = nil
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+source)
	}

	cfg.Catalog = expandHome(cfg.Catalog)
	for id, script := range cfg.Scripts {
		script.Path = expandHome(script.Path)
		cfg.Scripts[id] = script
	}

	return cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("host", d.Host)
	v.SetDefault("container_exec", d.ContainerExec)
	v.SetDefault("executor", d.Executor)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("catalog", d.Catalog)

	v.SetDefault("ssh.binary", d.SSH.Binary)
	v.SetDefault("ssh.connect_timeout", d.SSH.ConnectTimeout)
	v.SetDefault("ssh.strict_host_key_checking", d.SSH.StrictHostKeyChecking)

	v.SetDefault("timeouts.command", d.Timeouts.Command)
	v.SetDefault("timeouts.enrichment", d.Timeouts.Enrichment)
	v.SetDefault("timeouts.pass_deadline", d.Timeouts.PassDeadline)

	v.SetDefault("cache.default_ttl", d.Cache.DefaultTTL)
	v.SetDefault("cache.system_overview_ttl", d.Cache.SystemOverviewTTL)
	v.SetDefault("cache.target_ttl", d.Cache.TargetTTL)
	v.SetDefault("cache.host_info_ttl", d.Cache.HostInfoTTL)
	v.SetDefault("cache.maintenance_ttl", d.Cache.MaintenanceTTL)
	v.SetDefault("cache.performance_ttl", d.Cache.PerformanceTTL)
	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	v.SetDefault("cache.sweep_interval", d.Cache.SweepInterval)

	v.SetDefault("suggest.endpoint", d.Suggest.Endpoint)
	v.SetDefault("suggest.model", d.Suggest.Model)
	v.SetDefault("suggest.timeout", d.Suggest.Timeout)

	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.burst", d.Server.Burst)
	v.SetDefault("server.push_interval", d.Server.PushInterval)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// expandHome replaces a leading ~ with the local home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
