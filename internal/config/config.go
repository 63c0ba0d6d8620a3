package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "ehrqa/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Storage   StorageConfig   `yaml:"storage" envconfig:"STORAGE"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	QA        QAConfig        `yaml:"qa" envconfig:"QA"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output console"`
}

// ServerConfig contains HTTP server configuration for serve mode
type ServerConfig struct {
	Addr            string          `yaml:"addr" envconfig:"ADDR" validate:"required"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	RunTimeout      time.Duration   `yaml:"run_timeout" envconfig:"RUN_TIMEOUT" validate:"gt=0"`
	MaxUploadBytes  int64           `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"gt=0"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration for QA uploads
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gt=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"min=1"`
}

// StorageConfig controls the run history database
type StorageConfig struct {
	Enabled      bool   `yaml:"enabled" envconfig:"ENABLED"`
	DatabasePath string `yaml:"database_path" envconfig:"DATABASE_PATH" validate:"required_if=Enabled true"`
}

// TelemetryConfig controls OpenTelemetry tracing and metrics
type TelemetryConfig struct {
	Enabled        bool    `yaml:"enabled" envconfig:"ENABLED"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" validate:"oneof=prometheus none"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
}

// QAConfig holds the defaults for QA runs. Command-line flags and request
// parameters override them per run.
type QAConfig struct {
	OutputDir         string   `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	AgeColumn         string   `yaml:"age_col" envconfig:"AGE_COL"`
	TimeColumn        string   `yaml:"time_col" envconfig:"TIME_COL"`
	IdentifierColumns []string `yaml:"id_cols" envconfig:"ID_COLS"`
	OutlierColumns    []string `yaml:"outlier_cols" envconfig:"OUTLIER_COLS"`
	IQRMultiplier     float64  `yaml:"iqr_multiplier" envconfig:"IQR_MULTIPLIER" validate:"gt=0"`
	Workers           int      `yaml:"workers" envconfig:"WORKERS" validate:"min=1,max=64"`
	SavePlots         bool     `yaml:"save_plots" envconfig:"SAVE_PLOTS"`
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty and no default file exists), then EHRQA_*
// environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile overlays the values present in a YAML file
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.NewConfigError("failed to read config file", err).WithContext("path", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return apperrors.NewConfigError("failed to parse config file", err).WithContext("path", path)
	}
	return nil
}

var validate = validator.New()

// Validate checks every field constraint and reports all failures at once
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewConfigError("config validation failed", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return apperrors.NewConfigError("config validation failed", errors.New(strings.Join(msgs, "; "))).
		WithContext("fields", len(fieldErrs))
}

// findConfigFile returns the first default config file that exists
func findConfigFile() string {
	for _, location := range DefaultConfigFiles {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/ehrqa.log",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    2 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RunTimeout:      2 * time.Minute,
			MaxUploadBytes:  64 << 20,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     5,
				Burst:   10,
			},
		},
		Storage: StorageConfig{
			Enabled:      true,
			DatabasePath: DefaultDatabasePath,
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
		QA: QAConfig{
			OutputDir:     DefaultOutputDir,
			IQRMultiplier: 1.5,
			Workers:       1,
		},
	}
}
