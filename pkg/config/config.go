package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/rowforge/rowforge/pkg/paths"
)

// Global Koanf instance, initialized once at startup.
var (
	k    *koanf.Koanf
	once sync.Once
)

// InitGlobalConfig initializes the global Koanf instance. It is called
// early in the application lifecycle, before Load.
func InitGlobalConfig() {
	once.Do(func() {
		k = koanf.New(".")
	})
}

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex
}

// NewManager creates a new configuration Manager backed by the global
// Koanf instance.
func NewManager() *Manager {
	InitGlobalConfig()
	return &Manager{
		koanfInstance: k,
	}
}

// DefaultConfig returns a Config populated with hardcoded default
// values. These serve as the baseline if no other sources override them.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   defaultDataDir(),
		},
		Engine: EngineConfig{
			Concurrency:        3,
			CheckpointRows:     25,
			CheckpointInterval: 10 * time.Second,
			RowTimeout:         30 * time.Second,
			RowRetryMax:        3,
			RowRetryBase:       500 * time.Millisecond,
			FailureBudget:      10,
			Recovery:           "resume",
		},
		Limits: LimitsConfig{
			Enrich:  ClassLimit{Rate: 2, Burst: 4},
			Fetch:   ClassLimit{Rate: 1, Burst: 2},
			Default: ClassLimit{Rate: 1, Burst: 1},
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1",
			Port:            8470,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
	}
}

func defaultDataDir() string {
	return paths.DataDir()
}

// Load loads configuration in precedence order: hardcoded defaults,
// then the YAML config file when given, then command-line flags. It
// populates the manager's currentConfig and validates the result.
func (m *Manager) Load(flags *pflag.FlagSet, configFilePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	defaultCfgMap := DefaultConfigAsMap()
	if err := m.koanfInstance.Load(confmap.Provider(defaultCfgMap, "."), nil); err != nil {
		return fmt.Errorf("error loading hardcoded defaults into koanf: %w", err)
	}

	if configFilePath != "" {
		if err := m.koanfInstance.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return fmt.Errorf("error loading config file %s: %w", configFilePath, err)
		}
	}

	// Command-line flags take the highest precedence.
	if flags != nil {
		if err := m.koanfInstance.Load(posflag.Provider(flags, ".", m.koanfInstance), nil); err != nil {
			return fmt.Errorf("error loading command-line flags: %w", err)
		}

		debugFlag := flags.Lookup("debug")
		if debugFlag != nil && debugFlag.Value.String() == "true" {
			_ = m.koanfInstance.Set("log.level", "debug")
		}
	}

	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}

	if err := Validate(newCfg); err != nil {
		return err
	}
	m.currentConfig = newCfg

	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfgCopy := m.currentConfig
	return cfgCopy
}

// Validate checks the structural validity of a loaded configuration.
func Validate(cfg Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("invalid configuration: field %s failed rule %q", f.Namespace(), f.Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DefaultConfigAsMap converts the DefaultConfig struct to a flat map
// for Koanf's confmap.Provider, so Koanf knows every key up front.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		// Log configuration
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		// Store configuration
		"store.driver": def.Store.Driver,
		"store.path":   def.Store.Path,

		// Engine configuration
		"engine.concurrency":         def.Engine.Concurrency,
		"engine.checkpoint_rows":     def.Engine.CheckpointRows,
		"engine.checkpoint_interval": def.Engine.CheckpointInterval,
		"engine.row_timeout":         def.Engine.RowTimeout,
		"engine.row_retry_max":       def.Engine.RowRetryMax,
		"engine.row_retry_base":      def.Engine.RowRetryBase,
		"engine.failure_budget":      def.Engine.FailureBudget,
		"engine.recovery":            def.Engine.Recovery,

		// Rate limit configuration
		"limits.enrich.rate":   def.Limits.Enrich.Rate,
		"limits.enrich.burst":  def.Limits.Enrich.Burst,
		"limits.fetch.rate":    def.Limits.Fetch.Rate,
		"limits.fetch.burst":   def.Limits.Fetch.Burst,
		"limits.default.rate":  def.Limits.Default.Rate,
		"limits.default.burst": def.Limits.Default.Burst,

		// Server configuration
		"server.addr":             def.Server.Addr,
		"server.port":             def.Server.Port,
		"server.read_timeout":     def.Server.ReadTimeout,
		"server.write_timeout":    def.Server.WriteTimeout,
		"server.shutdown_timeout": def.Server.ShutdownTimeout,
	}
}

// BindFlags defines command-line flags corresponding to configuration
// settings, allowing overrides of config file values. Called when
// setting up Cobra commands.
func BindFlags(flags *pflag.FlagSet) {
	defaults := DefaultConfig()

	flags.String("log.level", defaults.Log.Level, "Log level (debug, info, warn, error)")
	flags.String("log.format", defaults.Log.Format, "Log format (text, json)")
	flags.String("store.driver", defaults.Store.Driver, "Job store driver (sqlite, memory)")
	flags.String("store.path", defaults.Store.Path, "Data directory for the job store")
	flags.Int("engine.concurrency", defaults.Engine.Concurrency, "Worker pool size")

	var flagvar bool
	flags.BoolVar(&flagvar, "debug", false, "Enable debug logging")
}
