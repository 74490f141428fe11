package config

import "time"

// Config is the root configuration structure for the rowforge service.
// It aggregates all other specific configuration structs.
type Config struct {
	Log    LogConfig    `description:"Logging configuration" koanf:"log"`
	Store  StoreConfig  `description:"Job store configuration" koanf:"store"`
	Engine EngineConfig `description:"Job engine configuration" koanf:"engine"`
	Limits LimitsConfig `description:"Provider rate limits" koanf:"limits"`
	Server ServerConfig `description:"HTTP server configuration" koanf:"server"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level: debug | info | warn | error" koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic"`
	Format string `description:"Log format: json | text" koanf:"format" validate:"omitempty,oneof=json text"`
	File   string `description:"Log file path (empty for stdout)" koanf:"file"`
}

// StoreConfig selects the job store backend.
type StoreConfig struct {
	Driver string `description:"Store driver: sqlite | memory" koanf:"driver" validate:"required,oneof=sqlite memory"`
	Path   string `description:"Data directory for file-backed drivers" koanf:"path" validate:"required_if=Driver sqlite"`
}

// EngineConfig tunes the worker pool and per-job execution loop.
type EngineConfig struct {
	Concurrency        int           `description:"Worker pool size" koanf:"concurrency" validate:"min=1,max=64"`
	CheckpointRows     int           `description:"Persist progress every N rows" koanf:"checkpoint_rows" validate:"min=1"`
	CheckpointInterval time.Duration `description:"Persist progress at least this often" koanf:"checkpoint_interval" validate:"min=100ms"`
	RowTimeout         time.Duration `description:"Per-row processing deadline" koanf:"row_timeout" validate:"min=1s"`
	RowRetryMax        int           `description:"In-place retries for a transient row failure" koanf:"row_retry_max" validate:"min=0,max=10"`
	RowRetryBase       time.Duration `description:"Initial retry backoff, doubles per attempt" koanf:"row_retry_base" validate:"min=1ms"`
	FailureBudget      int           `description:"Failed rows tolerated before the job fails" koanf:"failure_budget" validate:"min=0"`
	Recovery           string        `description:"Orphaned running jobs at startup: resume | fail" koanf:"recovery" validate:"oneof=resume fail"`
}

// ClassLimit configures one provider class token bucket.
type ClassLimit struct {
	Rate  float64 `description:"Sustained permits per second" koanf:"rate" validate:"gt=0"`
	Burst int     `description:"Bucket capacity" koanf:"burst" validate:"min=1"`
}

// LimitsConfig holds the per-provider-class rate limits shared by all
// workers.
type LimitsConfig struct {
	Enrich  ClassLimit `description:"AI categorization endpoint limit" koanf:"enrich"`
	Fetch   ClassLimit `description:"Website fetch limit" koanf:"fetch"`
	Default ClassLimit `description:"Fallback limit for unconfigured classes" koanf:"default"`
}

// ServerConfig holds configuration for the rowforge API server.
type ServerConfig struct {
	Addr string `description:"Server listen address" koanf:"addr"`
	Port int    `description:"Server listen port" koanf:"port" validate:"min=1,max=65535"`

	ReadTimeout     time.Duration `description:"HTTP read timeout" koanf:"read_timeout" validate:"min=1s"`
	WriteTimeout    time.Duration `description:"HTTP write timeout" koanf:"write_timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `description:"Graceful shutdown deadline" koanf:"shutdown_timeout" validate:"min=1s"`
}
