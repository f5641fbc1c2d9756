package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for driverlog.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Setup     SetupConfig     `mapstructure:"setup"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	ServiceName  string `mapstructure:"service_name"`
	LogLevel     string `mapstructure:"log_level"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DB       string `mapstructure:"db"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	GeocodeTTL time.Duration `mapstructure:"geocode_ttl"`
}

// RoutingConfig configures the external routing and geocoding providers.
type RoutingConfig struct {
	DirectionsURL string  `mapstructure:"directions_url"`
	APIKey        string  `mapstructure:"api_key"`
	GeocodeURL    string  `mapstructure:"geocode_url"`
	UserAgent     string  `mapstructure:"user_agent"`
	AvgSpeedMPH   float64 `mapstructure:"avg_speed_mph"`
}

// SetupConfig configures the one-shot setup command.
type SetupConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	StaticSrcs []string      `mapstructure:"static_srcs"`
	StaticRoot string        `mapstructure:"static_root"`
}

// Load reads config from the optional YAML file at path, then overlays
// environment variables with the DRIVERLOG_ prefix (e.g. DRIVERLOG_SERVER_PORT).
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("DRIVERLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", true)
	v.SetDefault("telemetry.service_name", "driverlog")
	v.SetDefault("telemetry.log_level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "driverlog")
	// Empty defaults register the keys so the env overlay can reach them.
	v.SetDefault("database.password", "")
	v.SetDefault("database.db", "driverlog")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 25)

	v.SetDefault("nats.url", "nats://localhost:4222")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.geocode_ttl", 24*time.Hour)

	v.SetDefault("routing.directions_url", "https://api.openrouteservice.org/v2")
	v.SetDefault("routing.api_key", "")
	v.SetDefault("routing.geocode_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("routing.user_agent", "driverlog")
	v.SetDefault("routing.avg_speed_mph", 55)

	v.SetDefault("setup.timeout", 5*time.Minute)
	v.SetDefault("setup.static_srcs", []string{"static"})
	v.SetDefault("setup.static_root", "staticfiles")
}
