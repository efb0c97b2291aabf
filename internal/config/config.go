// Package config loads service configuration from defaults, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes structured environment keys, e.g. ACCOUNTD_SERVER__PORT.
const EnvPrefix = "ACCOUNTD_"

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	JWT      JWTConfig      `koanf:"jwt"`
	CORS     CORSConfig     `koanf:"cors"`
	Admin    AdminConfig    `koanf:"admin"`
	Users    UsersConfig    `koanf:"users"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	MetricsPort       int           `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig contains PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	MigrationsPath  string        `koanf:"migrations_path"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// JWTConfig contains token issuer settings.
type JWTConfig struct {
	SecretKey           string        `koanf:"secret_key"`
	AccessTokenDuration time.Duration `koanf:"access_token_duration"`
	Issuer              string        `koanf:"issuer"`
}

// CORSConfig contains allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// AdminConfig describes the administrator account seeded at startup.
type AdminConfig struct {
	Seed        bool          `koanf:"seed"`
	SeedTimeout time.Duration `koanf:"seed_timeout"`
	Email       string        `koanf:"email"`
	Password    string        `koanf:"password"`
	FirstName   string        `koanf:"first_name"`
	LastName    string        `koanf:"last_name"`
}

// UsersConfig controls access to the /users routes.
type UsersConfig struct {
	RequireAdmin bool `koanf:"require_admin"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              3000,
			MetricsPort:       9090,
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectTimeout:  60 * time.Second,
			ConnectAttempts: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		JWT: JWTConfig{
			AccessTokenDuration: time.Hour,
			Issuer:              "accountd",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Admin: AdminConfig{
			Seed:        true,
			SeedTimeout: 30 * time.Second,
			Email:       "admin@admin.com",
			Password:    "admin",
			FirstName:   "System",
			LastName:    "Admin",
		},
	}
}

// aliases maps conventional environment names to config keys.
var aliases = map[string]string{
	"DATABASE_URL":   "database.url",
	"JWT_SECRET":     "jwt.secret_key",
	"JWT_EXPIRES_IN": "jwt.access_token_duration",
	"PORT":           "server.port",
	"LOG_LEVEL":      "log.level",
	"LOG_FORMAT":     "log.format",
}

// Load builds the configuration. Later sources win: defaults, the YAML file
// at path (skipped when empty), conventional env aliases, ACCOUNTD_ env keys.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", aliasKey), nil); err != nil {
		return nil, fmt.Errorf("load env aliases: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", prefixedKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports configuration errors that must stop the process.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.SecretKey == "" {
		errs = append(errs, errors.New("jwt.secret_key is required (JWT_SECRET)"))
	}
	if c.JWT.AccessTokenDuration <= 0 {
		errs = append(errs, errors.New("jwt.access_token_duration must be positive"))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required (DATABASE_URL)"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if c.Admin.Seed && (c.Admin.Email == "" || c.Admin.Password == "") {
		errs = append(errs, errors.New("admin.email and admin.password are required when admin.seed is enabled"))
	}
	if c.Admin.Seed && c.Admin.SeedTimeout <= 0 {
		errs = append(errs, errors.New("admin.seed_timeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// prefixedKey turns ACCOUNTD_SERVER__METRICS_PORT into server.metrics_port.
func prefixedKey(name string) string {
	name = strings.TrimPrefix(name, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(name), "__", ".")
}

// aliasKey keeps only the conventional names. A bare number for
// JWT_EXPIRES_IN is read as seconds.
func aliasKey(name, value string) (string, any) {
	key, ok := aliases[name]
	if !ok {
		return "", nil
	}
	if name == "JWT_EXPIRES_IN" {
		if secs, err := strconv.Atoi(value); err == nil {
			return key, time.Duration(secs) * time.Second
		}
	}
	return key, value
}
