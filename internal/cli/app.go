package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rileyhilliard/pxd/internal/aggregate"
	"github.com/rileyhilliard/pxd/internal/cache"
	"github.com/rileyhilliard/pxd/internal/catalog"
	"github.com/rileyhilliard/pxd/internal/config"
	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/logger"
	"github.com/rileyhilliard/pxd/internal/metrics"
	"github.com/rileyhilliard/pxd/internal/remote"
	"github.com/rileyhilliard/pxd/internal/scripts"
	"github.com/rileyhilliard/pxd/internal/suggest"
	"github.com/rileyhilliard/pxd/internal/target"
	"github.com/rileyhilliard/pxd/pkg/sshutil"
)

// app is the component graph shared by every command.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	cache    *cache.Cache
	agg      *aggregate.Aggregator
	scripts  *scripts.Runner
	suggest  *suggest.Client
	closers  []func()
}

// executorFor builds the remote executor for cfg. Tests swap it for a fake.
var executorFor = buildExecutor

func buildExecutor(cfg *config.Config, log logger.Logger) (remote.Executor, func()) {
	if cfg.Executor == config.ExecutorProcess {
		return remote.NewProcessExecutor(cfg.SSH.Binary, cfg.SSH.ConnectTimeout, cfg.SSH.StrictHostKeyChecking), func() {}
	}

	pool := remote.NewPool(remote.SSHDialer(sshutil.DialOptions{
		Timeout:               cfg.SSH.ConnectTimeout,
		StrictHostKeyChecking: cfg.SSH.StrictHostKeyChecking,
		Warn:                  func(msg string) { log.Warn("%s", msg) },
	}), log)
	return remote.NewSSHExecutor(pool), func() {
		pool.Close()
		sshutil.CloseAgent()
	}
}

// loadConfig finds, loads and validates the config. --debug forces the
// debug log level.
func loadConfig() (*config.Config, error) {
	cfg, _, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if debugOutput {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// openApp loads the config and builds the components. Call Close when done.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't set up logging",
			"Check log.level in your .pxd.yaml: debug, info, warn or error.")
	}

	exec, closeExec := executorFor(cfg, log)
	a, err := newApp(cfg, log, exec)
	if err != nil {
		closeExec()
		return nil, err
	}
	a.closers = append(a.closers, closeExec)
	return a, nil
}

// newApp wires the components around exec.
func newApp(cfg *config.Config, log logger.Logger, exec remote.Executor) (*app, error) {
	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	c := cache.NewFromConfig(cfg.Cache, cache.WithMetrics(m), cache.WithLogger(log))
	addr := target.NewAddresser(cfg.Host, cfg.VMAliases, cfg.ContainerExec)
	runner := remote.NewRunner(exec, addr, log, m)

	return &app{
		cfg:      cfg,
		log:      log,
		registry: reg,
		metrics:  m,
		cache:    c,
		agg:      aggregate.New(runner, c, cat, aggregate.OptionsFromConfig(cfg), log, m),
		scripts:  scripts.NewRunner(cfg.Scripts, log, m),
		suggest:  suggest.New(cfg.Suggest, log, m),
	}, nil
}

// Close releases connections and flushes the log.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	logger.Sync(a.log)
}
