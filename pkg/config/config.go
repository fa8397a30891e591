package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/discograph/pkg/models"
)

// DefaultPath is the config file read when no --config flag is given.
const DefaultPath = "config.yaml"

// Config holds all configuration for discograph.
// Configuration can come from a YAML file or environment variables; environment
// variables always override YAML values. Secrets must come from the environment.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"9000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Redis    RedisConfig    `yaml:"redis"`
	Network  NetworkConfig  `yaml:"network"`
	Search   SearchConfig   `yaml:"search"`
	MCP      MCPConfig      `yaml:"mcp"`
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig selects and configures the relation store backend.
type DatabaseConfig struct {
	Driver         string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"discograph"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"discograph"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	// SQLitePath is the database file used when Driver is "sqlite".
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"discograph.db"`
}

// Cache backends.
const (
	CacheBackendDisk   = "disk"
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
	CacheBackendNone   = "none"
)

// CacheConfig configures the result cache.
type CacheConfig struct {
	Backend string `yaml:"backend" env:"CACHE_BACKEND" env-default:"disk"`
	// Directory holds the disk cache. Relative paths resolve against the working directory.
	Directory string        `yaml:"directory" env:"CACHE_DIRECTORY" env-default:"tmp"`
	TTL       time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"24h"`
}

// RedisConfig holds the Redis connection used by the redis cache backend.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// NetworkConfig holds the defaults applied to network requests that do not
// set their own budgets or roles.
type NetworkConfig struct {
	MaxDegree    int           `yaml:"max_degree" env:"NETWORK_MAX_DEGREE" env-default:"12"`
	MaxNodes     int           `yaml:"max_nodes" env:"NETWORK_MAX_NODES" env-default:"100"`
	MaxLinks     int           `yaml:"max_links" env:"NETWORK_MAX_LINKS" env-default:"200"`
	RolesStr     string        `yaml:"roles" env:"NETWORK_ROLES" env-default:"Alias,Member Of"`
	BuildTimeout time.Duration `yaml:"build_timeout" env:"NETWORK_BUILD_TIMEOUT" env-default:"30s"`

	// Roles is parsed from RolesStr (not from config file).
	Roles []models.Role `yaml:"-"`
}

// SearchConfig configures entity name search.
type SearchConfig struct {
	Limit int `yaml:"limit" env:"SEARCH_LIMIT" env-default:"10"`
}

// MCPConfig toggles the MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"false"`
}

// Load reads configuration from path with environment variable overrides.
// A missing file is not an error: defaults and the environment are used instead.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if path == "" {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() error {
	roles, err := models.ParseRoles(strings.Split(c.Network.RolesStr, ","))
	if err != nil {
		return fmt.Errorf("network.roles: %w", err)
	}
	c.Network.Roles = roles
	return nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	switch c.Cache.Backend {
	case CacheBackendDisk, CacheBackendMemory, CacheBackendNone:
	case CacheBackendRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("cache backend redis requires redis.host")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}

	if c.Network.MaxDegree < 0 || c.Network.MaxNodes < 0 || c.Network.MaxLinks < 0 {
		return fmt.Errorf("network budgets must not be negative")
	}

	if c.Search.Limit <= 0 {
		return fmt.Errorf("search.limit must be positive")
	}

	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		ResolveHostForDocker(c.Host), c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr returns the host:port of the Redis server.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port)
}

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// ResolveHostForDocker maps localhost to host.docker.internal when running
// inside a container, so a containerized server reaches stores on the host.
func ResolveHostForDocker(host string) string {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	if isDockerResult && (host == "localhost" || host == "127.0.0.1") {
		return "host.docker.internal"
	}
	return host
}
