package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/nikolayrodzhev/mapty/internal/models"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Map       MapConfig       `yaml:"map"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type StorageConfig struct {
	Driver     string         `yaml:"driver"`
	Path       string         `yaml:"path"`
	Migrations string         `yaml:"migrations"`
	Database   DatabaseConfig `yaml:"database"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type MapConfig struct {
	Zoom int       `yaml:"zoom"`
	Home *Position `yaml:"home"`
}

// Position stands in for browser geolocation: when unset, the position lookup
// fails and the map is never shown.
type Position struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Coords returns the configured home position, or nil.
func (m MapConfig) Coords() *models.Coords {
	if m.Home == nil {
		return nil
	}
	return &models.Coords{Lat: m.Home.Lat, Lng: m.Home.Lng}
}

// SlogLevel maps the configured level name to a slog level, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix MAPTY_ and underscore-separated paths:
//
//	MAPTY_SERVER_HOST, MAPTY_SERVER_PORT,
//	MAPTY_STORAGE_DRIVER, MAPTY_STORAGE_PATH,
//	MAPTY_DB_HOST, MAPTY_DB_PORT, MAPTY_DB_NAME,
//	MAPTY_DB_USER, MAPTY_DB_PASSWORD, MAPTY_DB_SSLMODE,
//	MAPTY_MAP_HOME (as "lat,lng"), MAPTY_AUTH_API_KEY, MAPTY_LOG_LEVEL
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MAPTY_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("MAPTY_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MAPTY_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("MAPTY_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("MAPTY_DB_HOST"); v != "" {
		cfg.Storage.Database.Host = v
	}
	if v := os.Getenv("MAPTY_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Storage.Database.Port = port
		}
	}
	if v := os.Getenv("MAPTY_DB_NAME"); v != "" {
		cfg.Storage.Database.Name = v
	}
	if v := os.Getenv("MAPTY_DB_USER"); v != "" {
		cfg.Storage.Database.User = v
	}
	if v := os.Getenv("MAPTY_DB_PASSWORD"); v != "" {
		cfg.Storage.Database.Password = v
	}
	if v := os.Getenv("MAPTY_DB_SSLMODE"); v != "" {
		cfg.Storage.Database.SSLMode = v
	}
	if v := os.Getenv("MAPTY_MAP_HOME"); v != "" {
		if pos, err := parsePosition(v); err == nil {
			cfg.Map.Home = pos
		}
	}
	if v := os.Getenv("MAPTY_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("MAPTY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverSQLite
	}
	if cfg.Storage.Driver == DriverSQLite && cfg.Storage.Path == "" {
		cfg.Storage.Path = "data/mapty.db"
	}
	if cfg.Storage.Migrations == "" {
		cfg.Storage.Migrations = "migrations"
	}
	if cfg.Map.Zoom == 0 {
		cfg.Map.Zoom = 16
	}
}

func parsePosition(s string) (*Position, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return nil, fmt.Errorf("position %q: want lat,lng", s)
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return nil, fmt.Errorf("position latitude: %w", err)
	}
	ln, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return nil, fmt.Errorf("position longitude: %w", err)
	}
	return &Position{Lat: la, Lng: ln}, nil
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	switch c.Storage.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		db := c.Storage.Database
		if db.Host == "" {
			return fmt.Errorf("storage.database.host is required")
		}
		if db.Port == 0 {
			return fmt.Errorf("storage.database.port is required")
		}
		if db.Name == "" {
			return fmt.Errorf("storage.database.name is required")
		}
		if db.User == "" {
			return fmt.Errorf("storage.database.user is required")
		}
	default:
		return fmt.Errorf("storage.driver %q is not one of sqlite, postgres, memory", c.Storage.Driver)
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 20 {
		return fmt.Errorf("map.zoom must be between 0 and 20")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}
