package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"graphsync/domain/wire"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreAWS    = "aws"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address" validate:"required"`
	Environment   string `yaml:"environment" validate:"oneof=development staging production test"`

	// Storage selection
	StoreBackend     string `yaml:"store_backend" validate:"oneof=memory aws"`
	SnapshotPath     string `yaml:"snapshot_path" validate:"required_unless=SnapshotInMemory true"`
	SnapshotInMemory bool   `yaml:"snapshot_in_memory"`

	// AWS configuration
	AWSRegion     string `yaml:"aws_region" validate:"required_if=StoreBackend aws"`
	DynamoDBTable string `yaml:"dynamodb_table" validate:"required_if=StoreBackend aws"`
	EventBusName  string `yaml:"event_bus_name" validate:"required_if=StoreBackend aws"`

	// Sync
	MaxChunkChars int           `yaml:"max_chunk_chars" validate:"gt=0"`
	SyncInterval  time.Duration `yaml:"sync_interval" validate:"gt=0"`
	Contacts      []string      `yaml:"contacts" validate:"dive,required,ne=@"`

	// Logging
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// Authentication
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`

	// Feature flags
	EnableMetrics bool   `yaml:"enable_metrics"`
	EnableTracing bool   `yaml:"enable_tracing"`
	EnableCORS    bool   `yaml:"enable_cors"`
	OTLPEndpoint  string `yaml:"otlp_endpoint" validate:"required_if=EnableTracing true"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		ServerAddress:    ":8080",
		Environment:      "development",
		StoreBackend:     StoreMemory,
		SnapshotPath:     "data/snapshots",
		SnapshotInMemory: true,
		AWSRegion:        "us-west-2",
		DynamoDBTable:    "graphsync-events",
		EventBusName:     "graphsync-events",
		MaxChunkChars:    wire.DefaultMaxChunkChars,
		SyncInterval:     30 * time.Second,
		LogLevel:         "info",
		JWTIssuer:        "graphsync",
		EnableCORS:       true,
		OTLPEndpoint:     "localhost:4317",
	}
}

// LoadConfig loads configuration from defaults, the YAML file named by
// CONFIG_FILE, then environment variables, and validates the result
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.loadEnvironmentVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnvironmentVariables() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.StoreBackend = getEnv("STORE_BACKEND", c.StoreBackend)
	c.SnapshotPath = getEnv("SNAPSHOT_PATH", c.SnapshotPath)
	c.SnapshotInMemory = getEnvBool("SNAPSHOT_IN_MEMORY", c.SnapshotInMemory)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDBTable))
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.MaxChunkChars = getEnvInt("MAX_CHUNK_CHARS", c.MaxChunkChars)
	c.SyncInterval = getEnvDuration("SYNC_INTERVAL", c.SyncInterval)
	if contacts := os.Getenv("CONTACTS"); contacts != "" {
		c.Contacts = nil
		for _, contact := range strings.Split(contacts, ",") {
			if contact = strings.TrimSpace(contact); contact != "" {
				c.Contacts = append(c.Contacts, contact)
			}
		}
	}

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	c.OTLPEndpoint = getEnv("OTLP_ENDPOINT", c.OTLPEndpoint)
}

// Validate checks struct constraints plus the production rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.IsProduction() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.StoreBackend != StoreAWS {
			return fmt.Errorf("STORE_BACKEND must be %q in production", StoreAWS)
		}
		if c.SnapshotInMemory {
			return fmt.Errorf("SNAPSHOT_IN_MEMORY must be false in production")
		}
	}
	return nil
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

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
