package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "COURTBOOK"

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Auth       AuthConfig       `yaml:"auth"`
	Admin      AdminConfig      `yaml:"admin"`
	Courts     CourtsConfig     `yaml:"courts"`
	Bookings   BookingsConfig   `yaml:"bookings"`
	Events     EventsConfig     `yaml:"events"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path          string `yaml:"path"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	Issuer    string        `yaml:"issuer"`
}

// AdminConfig describes the account seeded on startup when it does not exist yet.
type AdminConfig struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// CourtsConfig bounds the bookable grid. CloseHour is exclusive.
type CourtsConfig struct {
	Count     int `yaml:"count"`
	OpenHour  int `yaml:"open_hour"`
	CloseHour int `yaml:"close_hour"`
}

type BookingsConfig struct {
	StrictTransitions  bool `yaml:"strict_transitions"`
	RateLimitPerMinute int  `yaml:"rate_limit_per_minute"`
	NoteMaxLength      int  `yaml:"note_max_length"`
}

type EventsConfig struct {
	AMQPURL      string        `yaml:"amqp_url"`
	Exchange     string        `yaml:"exchange"`
	QueueSize    int           `yaml:"queue_size"`
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// envOverrides are read from COURTBOOK_* variables and win over the file.
type envOverrides struct {
	DatabasePath  string `envconfig:"DATABASE_PATH"`
	RedisAddress  string `envconfig:"REDIS_ADDRESS"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	JWTSecret     string `envconfig:"JWT_SECRET"`
	AdminEmail    string `envconfig:"ADMIN_EMAIL"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
	AMQPURL       string `envconfig:"AMQP_URL"`
	HTTPPort      int    `envconfig:"HTTP_PORT"`
	GRPCPort      int    `envconfig:"GRPC_PORT"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	setString(&c.Database.Path, env.DatabasePath)
	setString(&c.Redis.Address, env.RedisAddress)
	setString(&c.Redis.Password, env.RedisPassword)
	setString(&c.Auth.JWTSecret, env.JWTSecret)
	setString(&c.Admin.Email, env.AdminEmail)
	setString(&c.Admin.Password, env.AdminPassword)
	setString(&c.Events.AMQPURL, env.AMQPURL)
	setString(&c.Logging.Level, env.LogLevel)
	if env.HTTPPort != 0 {
		c.API.HTTP.Port = env.HTTPPort
	}
	if env.GRPCPort != 0 {
		c.API.GRPC.Port = env.GRPCPort
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("auth jwt_secret is required")
	}

	if c.Admin.Email != "" && c.Admin.Password == "" {
		return errors.New("admin password is required when admin email is set")
	}

	return c.Courts.Validate()
}

func (c CourtsConfig) Validate() error {
	if c.Count <= 0 {
		return fmt.Errorf("courts count must be positive, got %d", c.Count)
	}
	if c.OpenHour < 0 || c.OpenHour > 23 {
		return fmt.Errorf("courts open_hour must be within 0..23, got %d", c.OpenHour)
	}
	if c.CloseHour < 1 || c.CloseHour > 24 {
		return fmt.Errorf("courts close_hour must be within 1..24, got %d", c.CloseHour)
	}
	if c.OpenHour >= c.CloseHour {
		return fmt.Errorf("courts open_hour %d must be before close_hour %d", c.OpenHour, c.CloseHour)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "courtbook"
	}
	if c.Database.BusyTimeoutMS == 0 {
		c.Database.BusyTimeoutMS = 5000
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}

	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "courtbook"
	}
	if c.Admin.Name == "" {
		c.Admin.Name = "Admin"
	}

	// Grid defaults: six courts, 09:00 to 21:00.
	if c.Courts.Count == 0 {
		c.Courts.Count = 6
	}
	if c.Courts.OpenHour == 0 && c.Courts.CloseHour == 0 {
		c.Courts.OpenHour = 9
		c.Courts.CloseHour = 21
	}

	if c.Bookings.RateLimitPerMinute == 0 {
		c.Bookings.RateLimitPerMinute = 30
	}
	if c.Bookings.NoteMaxLength == 0 {
		c.Bookings.NoteMaxLength = 500
	}

	if c.Events.Exchange == "" {
		c.Events.Exchange = "courtbook.events"
	}
	if c.Events.QueueSize == 0 {
		c.Events.QueueSize = 256
	}
	if c.Events.MaxRetries == 0 {
		c.Events.MaxRetries = 5
	}
	if c.Events.InitialDelay == 0 {
		c.Events.InitialDelay = time.Second
	}
	if c.Events.MaxDelay == 0 {
		c.Events.MaxDelay = time.Minute
	}
}
