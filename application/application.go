package application

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/lk2023060901/danmu-garden-scene/internal/executor"
	"github.com/lk2023060901/danmu-garden-scene/internal/plugin"
	"github.com/lk2023060901/danmu-garden-scene/internal/visitor"
	zlog "github.com/lk2023060901/danmu-garden-scene/pkg/log"
	"github.com/lk2023060901/danmu-garden-scene/pkg/metrics"
	zviper "github.com/lk2023060901/danmu-garden-scene/pkg/util/viper"
)

const (
	defaultConfigPath = "./config.yaml"
	configPathEnv     = "GARDEN_CONFIG_FILE_PATH"
)

// Application is the main runtime container for a garden scene host.
// It owns configuration, loggers and the executor driving the plugins.
type Application struct {
	cfg      *zviper.Config
	loggers  map[string]*zlog.MLogger
	fs       afero.Fs
	args     []string
	executor *executor.Executor
}

// Option customizes an Application before Run.
type Option func(*Application)

// WithFs replaces the filesystem scenes and saves are read from.
func WithFs(fs afero.Fs) Option {
	return func(a *Application) {
		a.fs = fs
	}
}

// WithArgs replaces os.Args[1:] as the source of command-line flags.
func WithArgs(args []string) Option {
	return func(a *Application) {
		a.args = args
	}
}

// New creates a new Application instance.
func New(opts ...Option) *Application {
	a := &Application{
		args: os.Args[1:],
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init loads configuration, initializes logging and builds the executor.
// Configuration file path uses the following priority:
//  1. Default: ./config.yaml (optional)
//  2. Env: GARDEN_CONFIG_FILE_PATH
//  3. CLI: --config <path> or --config=<path>
func (a *Application) Init() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := a.initLogging(); err != nil {
		return err
	}

	metrics.Register(metrics.GetRegisterer())

	opts, err := visitor.OptionsFromViper(a.cfg)
	if err != nil {
		return errors.Wrap(err, "build visitor options")
	}
	if a.fs == nil {
		a.fs = afero.NewOsFs()
		if root := a.cfg.GetString("executor.root-dir", ""); root != "" {
			a.fs = afero.NewBasePathFs(a.fs, root)
		}
	}
	a.executor = executor.New(a.fs, executor.ConfigFromViper(a.cfg), opts...)
	a.bindModuleLoggers()
	return nil
}

// bindModuleLoggers hands the logging.<module> loggers to the matching components.
// Components without a configured logger keep the global one.
func (a *Application) bindModuleLoggers() {
	bindings := map[string]zlog.LoggerBinder{
		"executor": a.executor,
		"loader":   a.executor.Loader(),
	}
	for name, target := range bindings {
		if lg, ok := a.loggers[name]; ok && lg != nil {
			target.SetLogger(lg.With(zlog.FieldComponent(name)))
		}
	}
}

// Run initializes the application if needed, registers plugins and drives the
// executor until ctx is done, Stop is called or a plugin requests exit.
func (a *Application) Run(ctx context.Context, plugins ...plugin.Plugin) error {
	if a.executor == nil {
		if err := a.Init(); err != nil {
			return err
		}
	}
	for _, p := range plugins {
		if err := a.executor.AddPlugin(p); err != nil {
			return errors.Wrapf(err, "add plugin %T", p)
		}
	}
	zlog.Info("application started", zap.Int("plugins", len(plugins)))
	defer func() { _ = zlog.Sync() }()
	return a.executor.Run(ctx)
}

// Stop asks the running executor to exit.
func (a *Application) Stop() {
	if a.executor != nil {
		a.executor.Stop()
	}
}

// Config returns the loaded configuration, if any.
func (a *Application) Config() *zviper.Config {
	return a.cfg
}

// Executor returns the executor built by Init.
func (a *Application) Executor() *executor.Executor {
	return a.executor
}

// Logger returns a named logger created from configuration.
// If the name is unknown, it falls back to the global logger.
func (a *Application) Logger(name string) *zlog.MLogger {
	if a.loggers == nil {
		return &zlog.MLogger{Logger: zlog.L()}
	}
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return &zlog.MLogger{Logger: zlog.L()}
}

// loadConfig resolves config file path and loads it via viper wrapper.
// A missing default file yields an empty config; an explicit path must exist.
func (a *Application) loadConfig() (*zviper.Config, error) {
	configPath := defaultConfigPath
	explicit := false

	if envPath := os.Getenv(configPathEnv); envPath != "" {
		configPath = envPath
		explicit = true
	}

	args := a.args
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value after --config")
			}
			configPath = args[i+1]
			explicit = true
			i++
			continue
		}
		if strings.HasPrefix(arg, "--config=") {
			val := strings.TrimPrefix(arg, "--config=")
			if val != "" {
				configPath = val
				explicit = true
			}
			continue
		}
	}

	cfg := zviper.New()
	if !explicit {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return cfg, nil
		}
	}
	if err := cfg.LoadFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file %q: %w", configPath, err)
	}

	return cfg, nil
}

// initLogging initializes global and module-level loggers.
func (a *Application) initLogging() error {
	if err := a.initGlobalLoggerFromEnv(); err != nil {
		return err
	}
	if err := a.initModuleLoggersFromConfig(); err != nil {
		return err
	}
	return nil
}

// initGlobalLoggerFromEnv configures the process-wide logger based on GARDEN_LOG_* env vars.
//
// Priority:
//   - GARDEN_LOG_ENABLE: "1"/"true" to enable outputs; others treated as disabled.
//   - GARDEN_LOG_LEVEL: log level (default "info").
//   - GARDEN_LOG_STDOUT: whether to log to stdout (default false).
//   - GARDEN_LOG_FILE_DIR: log directory.
//   - GARDEN_LOG_FILE: log file name (empty means no file).
//   - GARDEN_LOG_FORMAT: log format ("text" or "json", default "text").
//   - GARDEN_LOG_ASYNC: write through the async buffered core (default false).
func (a *Application) initGlobalLoggerFromEnv() error {
	enabled := getenvBool("GARDEN_LOG_ENABLE", false)

	cfg := &zlog.Config{
		Level:             getenvDefault("GARDEN_LOG_LEVEL", "info"),
		Format:            getenvDefault("GARDEN_LOG_FORMAT", "text"),
		DisableTimestamp:  false,
		Stdout:            getenvBool("GARDEN_LOG_STDOUT", false),
		DisableCaller:     false,
		DisableStacktrace: false,
		AsyncWriteEnable:  getenvBool("GARDEN_LOG_ASYNC", false),
		File: zlog.FileLogConfig{
			RootPath: getenvDefault("GARDEN_LOG_FILE_DIR", ""),
			Filename: getenvDefault("GARDEN_LOG_FILE", ""),
		},
	}

	// When not enabled, direct all outputs to a discarded sink.
	if !enabled {
		cfg.Stdout = false
		cfg.File.Filename = ""
	}

	logger, props, err := zlog.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("init global logger from env: %w", err)
	}
	zlog.ReplaceGlobals(logger, props)
	return nil
}

// initModuleLoggersFromConfig creates named loggers from YAML config under "logging" key.
//
// Example:
//
//	logging:
//	  loader:
//	    level: debug
//	    stdout: true
//	    async-write-enable: true
//	    file:
//	      rootpath: ./logs
//	      filename: loader.log
func (a *Application) initModuleLoggersFromConfig() error {
	if a.cfg == nil {
		return nil
	}

	raw := make(map[string]zlog.Config)
	if err := a.cfg.UnmarshalKey("logging", &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	a.loggers = make(map[string]*zlog.MLogger, len(raw))
	for name, lc := range raw {
		cfgCopy := lc
		logger, _, err := zlog.InitLogger(&cfgCopy)
		if err != nil {
			return fmt.Errorf("init module logger %q: %w", name, err)
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger}
	}

	return nil
}

func getenvDefault(key, def string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return val
}

func getenvBool(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
