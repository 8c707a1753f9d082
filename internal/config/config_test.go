package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, "proxmox", cfg.Host)
	assert.Equal(t, map[uint32]string{500: "homeassistant", 611: "alexa", 900: "ai-system"}, cfg.VMAliases)
	assert.Equal(t, "pct exec {id} --", cfg.ContainerExec)
	assert.Equal(t, ExecutorSSH, cfg.Executor)
	assert.Equal(t, 15*time.Second, cfg.Timeouts.Command)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Enrichment)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, DefaultBinarySearchDirs, cfg.BinarySearchDirs)
	assert.NotNil(t, cfg.Scripts)

	require.NoError(t, Validate(cfg))
}

func TestDefaultConfig_DoesNotShareSearchDirs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BinarySearchDirs[0] = "/changed"
	assert.Equal(t, "/opt/*/bin", DefaultBinarySearchDirs[0])
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)

	content := `
version: 1
host: pve-lab
vm_aliases:
  501: hass
container_exec: "lxc-attach -n {id} --"
executor: process
ssh:
  binary: /usr/bin/ssh
  connect_timeout: 4s
timeouts:
  command: 8s
  enrichment: 2s
  pass_deadline: 12s
workers: 8
cache:
  target_ttl: 3s
binary_search_dirs:
  - /srv/*/bin
scripts:
  backup:
    description: Nightly backup
    path: /usr/local/bin/backup.sh
    args: [--all]
    timeout: 10m
server:
  listen: 0.0.0.0:9000
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "pve-lab", cfg.Host)
	assert.Equal(t, map[uint32]string{501: "hass"}, cfg.VMAliases)
	assert.Equal(t, "lxc-attach -n {id} --", cfg.ContainerExec)
	assert.Equal(t, ExecutorProcess, cfg.Executor)
	assert.Equal(t, "/usr/bin/ssh", cfg.SSH.Binary)
	assert.Equal(t, 4*time.Second, cfg.SSH.ConnectTimeout)
	assert.Equal(t, 8*time.Second, cfg.Timeouts.Command)
	assert.Equal(t, 12*time.Second, cfg.Timeouts.PassDeadline)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 3*time.Second, cfg.Cache.TargetTTL)
	// untouched keys keep their defaults
	assert.Equal(t, 60*time.Second, cfg.Cache.HostInfoTTL)
	assert.Equal(t, []string{"/srv/*/bin"}, cfg.BinarySearchDirs)
	require.Contains(t, cfg.Scripts, "backup")
	assert.Equal(t, []string{"--all"}, cfg.Scripts["backup"].Args)
	assert.Equal(t, 10*time.Minute, cfg.Scripts["backup"].Timeout)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Listen)
	assert.Equal(t, 20, cfg.Server.Burst)

	require.NoError(t, Validate(cfg))
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte("host: from-file\n"), 0644))

	t.Setenv("PXD_HOST", "from-env")
	t.Setenv("PXD_TIMEOUTS_COMMAND", "30s")

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Host)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Command)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/.pxd.yaml")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte("host: [unterminated\n"), 0644))

	_, err := Load(configPath)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestFind(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T) string
		wantErr  bool
		wantFile string
	}{
		{
			name: "explicit path exists",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "custom.yaml")
				require.NoError(t, os.WriteFile(path, []byte("version: 1"), 0644))
				return path
			},
			wantFile: "custom.yaml",
		},
		{
			name: "explicit path not found",
			setup: func(t *testing.T) string {
				return "/nonexistent/config.yaml"
			},
			wantErr: true,
		},
		{
			name: "current directory has config",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("version: 1"), 0644))
				t.Chdir(dir)
				return ""
			},
			wantFile: ConfigFileName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			explicit := tt.setup(t)

			path, err := Find(explicit)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFile, filepath.Base(path))
		})
	}
}

func TestFind_GlobalConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	global := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(global), 0755))
	require.NoError(t, os.WriteFile(global, []byte("version: 1"), 0644))

	path, err := Find("")
	require.NoError(t, err)
	assert.Equal(t, global, path)
}

func TestLoadOrDefault_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("PXD_WORKERS", "2")

	cfg, path, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, "proxmox", cfg.Host)
	assert.Equal(t, 2, cfg.Workers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{
			name:    "future version",
			mutate:  func(c *Config) { c.Version = CurrentConfigVersion + 1 },
			wantErr: "from the future",
		},
		{
			name:    "empty host",
			mutate:  func(c *Config) { c.Host = "" },
			wantErr: "host is empty",
		},
		{
			name:    "host with shell characters",
			mutate:  func(c *Config) { c.Host = "proxmox; rm -rf /" },
			wantErr: "shell characters",
		},
		{
			name:    "bad vm alias",
			mutate:  func(c *Config) { c.VMAliases[611] = "" },
			wantErr: "vm_aliases.611",
		},
		{
			name:    "container exec without placeholder",
			mutate:  func(c *Config) { c.ContainerExec = "pct exec --" },
			wantErr: "{id}",
		},
		{
			name:    "unknown executor",
			mutate:  func(c *Config) { c.Executor = "telnet" },
			wantErr: "Unknown executor",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Workers = 0 },
			wantErr: "workers must be at least 1",
		},
		{
			name:    "pass deadline shorter than command timeout",
			mutate:  func(c *Config) { c.Timeouts.PassDeadline = time.Second },
			wantErr: "pass_deadline",
		},
		{
			name:    "negative ttl",
			mutate:  func(c *Config) { c.Cache.TargetTTL = -time.Second },
			wantErr: "target_ttl",
		},
		{
			name: "script without path",
			mutate: func(c *Config) {
				c.Scripts["cleanup"] = ScriptConfig{Description: "no path"}
			},
			wantErr: "needs a 'path'",
		},
		{
			name: "script with bad id",
			mutate: func(c *Config) {
				c.Scripts["Bad Id"] = ScriptConfig{Path: "/bin/true"}
			},
			wantErr: "script id",
		},
		{
			name:    "rate limit without burst",
			mutate:  func(c *Config) { c.Server.Burst = 0 },
			wantErr: "server.burst",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
		})
	}
}
