package blendsql

import (
	"fmt"
	"os"
	"regexp"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config is the ambient configuration for a blendsql process: which backend
// to dial, and the default behavior of Blend when a caller doesn't override
// it explicitly via BlendOption.
type Config struct {
	Dialect    string           `yaml:"dialect"`
	Database   DatabaseConfig   `yaml:"database"`
	Execution  ExecutionConfig  `yaml:"execution"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig describes how to reach the backend relational engine.
type DatabaseConfig struct {
	Driver     string `yaml:"driver"`     // sqlite, postgres, mysql
	Connection string `yaml:"connection"` // driver-specific DSN
}

// ExecutionConfig holds the default behavior of Blend absent explicit overrides.
type ExecutionConfig struct {
	InferMapConstraints  bool `yaml:"infer_map_constraints"`
	SilenceDBExecErrors  bool `yaml:"silence_db_exec_errors"`
	MaxRecursionDepth    int  `yaml:"max_recursion_depth"`
}

// LoggingConfig holds the verbosity and color settings read from the
// config file. Blend does not read them.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
	Color   bool `yaml:"color"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadConfig loads a blendsql.yaml configuration file. A missing file is not
// an error: DefaultConfig is returned instead. A present .env file in the
// current directory is loaded first so ${VAR} references below resolve.
func LoadConfig(configPath string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		expandConfigEnvVars(cfg)

		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", configPath, err)
	}

	cfg := DefaultConfig()

	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	expandConfigEnvVars(cfg)

	return cfg, nil
}

// DefaultConfig returns the configuration Blend uses when no config file and
// no explicit BlendOption override is present.
func DefaultConfig() *Config {
	return &Config{
		Dialect: "sqlite",
		Database: DatabaseConfig{
			Driver:     "sqlite3",
			Connection: ":memory:",
		},
		Execution: ExecutionConfig{
			InferMapConstraints: false,
			SilenceDBExecErrors: true,
			MaxRecursionDepth:   MaxRecursionDepth,
		},
		Logging: LoggingConfig{
			Verbose: false,
			Color:   true,
		},
	}
}

func validateConfig(cfg *Config) error {
	switch cfg.Dialect {
	case "", "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("%w: unsupported dialect %q", ErrConfigValidation, cfg.Dialect)
	}

	if cfg.Execution.MaxRecursionDepth <= 0 {
		return fmt.Errorf("%w: max_recursion_depth must be positive", ErrConfigValidation)
	}

	return nil
}

func loadEnvFile() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}

	return godotenv.Load(".env")
}

func expandConfigEnvVars(cfg *Config) {
	cfg.Database.Connection = expandEnvVars(cfg.Database.Connection)
	cfg.Database.Driver = expandEnvVars(cfg.Database.Driver)
}

func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}
