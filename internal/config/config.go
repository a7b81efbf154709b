package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Signing   SigningConfig   `mapstructure:"signing"`
	Documents DocumentsConfig `mapstructure:"documents"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// SigningConfig holds e-signing provider configuration
type SigningConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DocumentsConfig holds document generation configuration
type DocumentsConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/console.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Signing defaults
	viper.SetDefault("signing.timeout", 30*time.Second)

	// Documents defaults
	viper.SetDefault("documents.output_dir", "generated_documents")

	// Worker defaults
	viper.SetDefault("worker.poll_interval", 5*time.Second)
	viper.SetDefault("worker.batch_size", 20)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("signing.base_url", "SIGNING_BASE_URL")
	viper.BindEnv("signing.api_key", "SIGNING_API_KEY")
	viper.BindEnv("server.webhook_secret", "WEBHOOK_SECRET")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Signing.BaseURL == "" {
		return fmt.Errorf("signing.base_url is required")
	}
	if c.Signing.APIKey == "" {
		return fmt.Errorf("signing.api_key is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Documents.OutputDir == "" {
		return fmt.Errorf("documents.output_dir is required")
	}

	return nil
}
