package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	domainconfig "literature-flow/domain/config"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreSupabase = "supabase"
	StoreDynamoDB = "dynamodb"
)

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// StoreConfig selects and configures the authoritative graph store
type StoreConfig struct {
	Backend string `yaml:"backend" validate:"oneof=memory supabase dynamodb"`

	SupabaseURL string `yaml:"supabase_url" validate:"required_if=Backend supabase"`
	SupabaseKey string `yaml:"-" validate:"required_if=Backend supabase"`

	TableName string `yaml:"table_name" validate:"required_if=Backend dynamodb"`
	IndexName string `yaml:"index_name" validate:"required_if=Backend dynamodb"`

	// Circuit breaker around every store call
	BreakerEnabled bool `yaml:"breaker_enabled"`
}

// CacheConfig selects the client-side key/value cache
type CacheConfig struct {
	Backend   string        `yaml:"backend" validate:"oneof=memory redis"`
	RedisAddr string        `yaml:"redis_addr" validate:"required_if=Backend redis"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl" validate:"gte=0"`
	MaxItems  int           `yaml:"max_items" validate:"gte=0"`
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address" validate:"required"`
	Environment   string `yaml:"environment" validate:"oneof=development staging production"`

	// AWS configuration
	AWSRegion    string `yaml:"aws_region"`
	EventBusName string `yaml:"event_bus_name"`

	Store StoreConfig `yaml:"store"`
	Cache CacheConfig `yaml:"cache"`

	// Background position writes
	WriteQueueSize int           `yaml:"write_queue_size" validate:"min=1"`
	WriteTimeout   time.Duration `yaml:"write_timeout" validate:"gt=0"`

	// Map sessions unused for this long are closed; zero keeps them open
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout" validate:"gte=0"`

	// Logging
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// Feature flags
	EnableMetrics   bool   `yaml:"enable_metrics"`
	EnableTracing   bool   `yaml:"enable_tracing"`
	EnableCORS      bool   `yaml:"enable_cors"`
	TracingEndpoint string `yaml:"tracing_endpoint" validate:"required_if=EnableTracing true"`

	// Path of the YAML overlay, watched for layout changes in development
	ConfigFile string `yaml:"-"`

	Layout domainconfig.LayoutConfig `yaml:"layout"`
}

// LoadConfig loads configuration from environment variables, then applies
// the YAML file named by CONFIG_FILE when set
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		EventBusName:  getEnv("EVENT_BUS_NAME", ""),

		Store: StoreConfig{
			Backend:        getEnv("STORE_BACKEND", StoreMemory),
			SupabaseURL:    getEnv("SUPABASE_URL", ""),
			SupabaseKey:    getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			TableName:      getEnv("TABLE_NAME", "literature-flow"),
			IndexName:      getEnv("INDEX_NAME", "GSI1"),
			BreakerEnabled: getEnvBool("STORE_BREAKER_ENABLED", true),
		},
		Cache: CacheConfig{
			Backend:   getEnv("CACHE_BACKEND", CacheMemory),
			RedisAddr: getEnv("REDIS_ADDR", ""),
			KeyPrefix: getEnv("CACHE_KEY_PREFIX", "litmap:"),
			TTL:       getEnvDuration("CACHE_TTL", 0),
			MaxItems:  getEnvInt("CACHE_MAX_ITEMS", 10000),
		},

		WriteQueueSize: getEnvInt("WRITE_QUEUE_SIZE", 256),
		WriteTimeout:   getEnvDuration("WRITE_TIMEOUT", 5*time.Second),

		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),

		LogLevel:        getEnv("LOG_LEVEL", "info"),
		EnableMetrics:   getEnvBool("ENABLE_METRICS", true),
		EnableTracing:   getEnvBool("ENABLE_TRACING", false),
		EnableCORS:      getEnvBool("ENABLE_CORS", true),
		TracingEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		ConfigFile: getEnv("CONFIG_FILE", ""),
		Layout:     *domainconfig.DefaultLayoutConfig(),
	}

	if cfg.ConfigFile != "" {
		if err := cfg.applyFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile overlays the keys present in a YAML file
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

var validate = validator.New()

// Validate checks struct constraints and the layout grid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("invalid layout configuration: %w", err)
	}
	return nil
}

// LayoutConfig returns a copy of the layout settings
func (c *Config) LayoutConfig() *domainconfig.LayoutConfig {
	layout := c.Layout
	return &layout
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("750ms", "5s")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
