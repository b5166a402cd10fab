package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samirrijal/geolayers/internal/pkg/geospatial"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Source    SourceConfig    `mapstructure:"source"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Density   DensityConfig   `mapstructure:"density"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Feature source kinds.
const (
	SourceAPI      = "api"
	SourcePostgres = "postgres"
)

type SourceConfig struct {
	Kind string `mapstructure:"kind"`
}

type UpstreamConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// NATSConfig configures zone recommendation events. An empty URL disables them.
type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// ValkeyConfig configures the layer cache. An empty Addr disables it.
type ValkeyConfig struct {
	Addr string        `mapstructure:"addr"`
	TTL  time.Duration `mapstructure:"ttl"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string        `mapstructure:"host_port"`
	Namespace string        `mapstructure:"namespace"`
	TaskQueue string        `mapstructure:"task_queue"`
	Interval  time.Duration `mapstructure:"interval"`
}

type DensityConfig struct {
	DefaultGridSize int    `mapstructure:"default_grid_size"`
	MaxGridSize     int    `mapstructure:"max_grid_size"`
	BBox            string `mapstructure:"bbox"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("source.kind", SourceAPI)
	v.SetDefault("upstream.base_url", "http://localhost:8000")
	v.SetDefault("upstream.timeout", 20*time.Second)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "geolayers")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "geolayers")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.ttl", 5*time.Minute)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "zone-recommendations")
	v.SetDefault("temporal.interval", time.Hour)
	v.SetDefault("density.default_grid_size", geospatial.DefaultGridSize)
	v.SetDefault("density.max_grid_size", 200)
	v.SetDefault("density.bbox", "9.6000,4.0000,9.9000,4.2000")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: GEOLAYERS_UPSTREAM_BASE_URL → upstream.base_url
	v.SetEnvPrefix("GEOLAYERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	switch c.Source.Kind {
	case SourceAPI:
		if c.Upstream.BaseURL == "" {
			errs = append(errs, "upstream.base_url is required when source.kind is api")
		}
		if c.Upstream.Timeout <= 0 {
			errs = append(errs, "upstream.timeout must be positive")
		}
	case SourcePostgres:
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("source.kind must be %q or %q, got %q", SourceAPI, SourcePostgres, c.Source.Kind))
	}

	if c.Density.DefaultGridSize < 1 {
		errs = append(errs, "density.default_grid_size must be positive")
	}
	if c.Density.MaxGridSize < c.Density.DefaultGridSize {
		errs = append(errs, "density.max_grid_size must be >= density.default_grid_size")
	}
	if b, err := geospatial.ParseBBoxStrict(c.Density.BBox); err != nil || !b.Valid() {
		errs = append(errs, fmt.Sprintf("density.bbox is not a valid minLon,minLat,maxLon,maxLat box: %q", c.Density.BBox))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
