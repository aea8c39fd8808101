package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// DriverFile serves stores from STORE_CONFIG_FILE without a database.
const DriverFile = "file"

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Storage. DATABASE_DRIVER is postgres, sqlite or file.
	DatabaseDriver  string `envconfig:"DATABASE_DRIVER" default:"sqlite"`
	DatabaseDSN     string `envconfig:"DATABASE_DSN" default:"file:shipquote.db"`
	StoreConfigFile string `envconfig:"STORE_CONFIG_FILE"`

	// Quoting
	DefaultLanguage string `envconfig:"DEFAULT_LANGUAGE" default:"en"`

	// Canada Post
	CanadaPostEnabled bool          `envconfig:"CANADAPOST_ENABLED" default:"true"`
	CanadaPostBaseURL string        `envconfig:"CANADAPOST_BASE_URL" default:"https://soa-gw.canadapost.ca"`
	CanadaPostUseMock bool          `envconfig:"CANADAPOST_USE_MOCK" default:"false"`
	CanadaPostTimeout time.Duration `envconfig:"CANADAPOST_TIMEOUT" default:"10s"`

	// Purolator
	PurolatorEnabled bool          `envconfig:"PUROLATOR_ENABLED" default:"false"`
	PurolatorBaseURL string        `envconfig:"PUROLATOR_BASE_URL"`
	PurolatorUseMock bool          `envconfig:"PUROLATOR_USE_MOCK" default:"false"`
	PurolatorTimeout time.Duration `envconfig:"PUROLATOR_TIMEOUT" default:"15s"`

	// Freightcom
	FreightcomEnabled bool          `envconfig:"FREIGHTCOM_ENABLED" default:"false"`
	FreightcomBaseURL string        `envconfig:"FREIGHTCOM_BASE_URL" default:"https://external-api.freightcom.com"`
	FreightcomAPIKey  string        `envconfig:"FREIGHTCOM_API_KEY"`
	FreightcomUseMock bool          `envconfig:"FREIGHTCOM_USE_MOCK" default:"false"`
	FreightcomTimeout time.Duration `envconfig:"FREIGHTCOM_TIMEOUT" default:"20s"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"shipquote"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from a local .env file, when present, and the
// environment. Variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.String("database.driver", c.DatabaseDriver),
		attribute.Bool("canadapost.enabled", c.CanadaPostEnabled),
		attribute.Bool("canadapost.mock", c.CanadaPostUseMock),
		attribute.Bool("purolator.enabled", c.PurolatorEnabled),
		attribute.Bool("freightcom.enabled", c.FreightcomEnabled),
	}
}
