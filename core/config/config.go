package config

import (
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App        AppConfig
	Paths      PathsConfig
	Database   DatabaseConfig
	Valkey     ValkeyConfig
	Cache      CacheConfig
	RateLimit  RateLimitConfig
	Metrics    MetricsConfig
	Health     HealthConfig
	WorkerPool WorkerPoolConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	BasePath           string
	TrustedProxies     []string
	BaseUrl            string
	CorsAllowedOrigins []string
	ServerID           string
}

type PathsConfig struct {
	BaseDir  string
	Storages string
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string // File path for SQLite, DB Name for Postgres
}

type ValkeyConfig struct {
	Enabled   bool
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// CacheConfig controls the tiered cache service. When Enabled is false every
// cache operation becomes a safe no-op regardless of Valkey availability.
type CacheConfig struct {
	Enabled     bool
	DefaultTTL  time.Duration
	WorkflowTTL time.Duration
	TemplateTTL time.Duration
	LeadTTL     time.Duration
}

// RouteLimit is the fixed-window budget for one logical route group.
type RouteLimit struct {
	Window  time.Duration
	Max     int
	Message string
}

type RateLimitConfig struct {
	Enabled         bool
	General         RouteLimit
	Auth            RouteLimit
	WorkflowTrigger RouteLimit
	EmailTrigger    RouteLimit
	Upload          RouteLimit
	BulkImport      RouteLimit
}

type MetricsConfig struct {
	LogInterval time.Duration
}

// HealthConfig only carries the probe cadence. Status thresholds are fixed
// constants in the reliability domain, not tunables.
type HealthConfig struct {
	CheckInterval time.Duration
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

// Global provides access to the loaded configuration globally (Migration Helper)
var Global *Config

// LoadConfig loads configuration from Environment Variables or defaults.
func LoadConfig() (*Config, error) {
	baseDir := getEnv("APP_BASE_DIR", "storages")

	var basicAuth []string
	if v := getEnv("APP_BASIC_AUTH", ""); v != "" {
		basicAuth = strings.Split(v, ",")
	}

	corsOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	if v := getEnv("APP_CORS_ALLOWED_ORIGINS", ""); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:            "v1.4.0",
		Port:               getEnv("APP_PORT", "3000"),
		Debug:              getEnvBool("APP_DEBUG", false),
		Environment:        getEnv("APP_ENV", "development"),
		BasicAuth:          basicAuth,
		BasePath:           getEnv("APP_BASE_PATH", ""),
		BaseUrl:            getEnv("APP_BASE_URL", "http://localhost:3000"),
		CorsAllowedOrigins: corsOrigins,
		ServerID:           getEnv("SERVER_ID", ""),
	}
	if v := getEnv("APP_TRUSTED_PROXIES", ""); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	pathsCfg := PathsConfig{
		BaseDir:  baseDir,
		Storages: baseDir,
	}

	dbCfg := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "sqlite"),
		Name:     getEnv("DB_NAME", filepath.Join(pathsCfg.Storages, "pulse.db")),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
	}

	valkeyCfg := ValkeyConfig{
		Enabled:   getEnvBool("VALKEY_ENABLED", false),
		Address:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		Password:  getEnv("VALKEY_PASSWORD", ""),
		DB:        getEnvInt("VALKEY_DB", 0),
		KeyPrefix: getEnv("VALKEY_KEY_PREFIX", "pulse:"),
	}

	cacheCfg := CacheConfig{
		Enabled:     getEnvBool("CACHE_ENABLED", true),
		DefaultTTL:  getEnvSeconds("CACHE_DEFAULT_TTL", 300),
		WorkflowTTL: getEnvSeconds("CACHE_WORKFLOW_TTL", 600),
		TemplateTTL: getEnvSeconds("CACHE_TEMPLATE_TTL", 1800),
		LeadTTL:     getEnvSeconds("CACHE_LEAD_TTL", 120),
	}

	rateCfg := RateLimitConfig{
		Enabled: getEnvBool("RATE_LIMIT_ENABLED", true),
		General: RouteLimit{
			Window:  getEnvSeconds("RATE_LIMIT_GENERAL_WINDOW", 900),
			Max:     getEnvInt("RATE_LIMIT_GENERAL_MAX", 1000),
			Message: "Too many requests, please try again later",
		},
		Auth: RouteLimit{
			Window:  getEnvSeconds("RATE_LIMIT_AUTH_WINDOW", 900),
			Max:     getEnvInt("RATE_LIMIT_AUTH_MAX", 10),
			Message: "Too many login attempts, please try again later",
		},
		WorkflowTrigger: RouteLimit{
			Window:  getEnvSeconds("RATE_LIMIT_WORKFLOW_WINDOW", 60),
			Max:     getEnvInt("RATE_LIMIT_WORKFLOW_MAX", 30),
			Message: "Workflow trigger limit reached, please slow down",
		},
		EmailTrigger: RouteLimit{
			Window:  getEnvSeconds("RATE_LIMIT_EMAIL_WINDOW", 3600),
			Max:     getEnvInt("RATE_LIMIT_EMAIL_MAX", 100),
			Message: "Email send limit reached for this hour",
		},
		Upload: RouteLimit{
			Window:  getEnvSeconds("RATE_LIMIT_UPLOAD_WINDOW", 3600),
			Max:     getEnvInt("RATE_LIMIT_UPLOAD_MAX", 50),
			Message: "Upload limit reached, please try again later",
		},
		BulkImport: RouteLimit{
			Window:  getEnvSeconds("RATE_LIMIT_BULK_WINDOW", 3600),
			Max:     getEnvInt("RATE_LIMIT_BULK_MAX", 5),
			Message: "Bulk import limit reached, please try again later",
		},
	}

	cfg := &Config{
		App:       appCfg,
		Paths:     pathsCfg,
		Database:  dbCfg,
		Valkey:    valkeyCfg,
		Cache:     cacheCfg,
		RateLimit: rateCfg,
		Metrics: MetricsConfig{
			LogInterval: getEnvSeconds("METRICS_LOG_INTERVAL", 300),
		},
		Health: HealthConfig{
			CheckInterval: getEnvSeconds("HEALTH_CHECK_INTERVAL", 60),
		},
		WorkerPool: WorkerPoolConfig{
			Size:      getEnvInt("WORKFLOW_WORKER_POOL_SIZE", 10),
			QueueSize: getEnvInt("WORKFLOW_WORKER_QUEUE_SIZE", 500),
		},
	}

	Global = cfg
	return cfg, nil
}
