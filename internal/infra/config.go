package infra

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database (audit store)
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"rgs"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"rgs"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"rgs"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"3200"`

	// Wallet
	WalletBaseURL string        `env:"WALLET_BASE_URL" envDefault:"http://localhost:4001"`
	WalletTimeout time.Duration `env:"WALLET_TIMEOUT" envDefault:"5s"`

	// Engines
	EngineModulesDir string        `env:"ENGINE_MODULES_DIR" envDefault:"engines"`
	RemoteEngines    string        `env:"REMOTE_ENGINES"` // "gamecode=http://host:port,..."
	EngineTimeout    time.Duration `env:"ENGINE_TIMEOUT" envDefault:"10s"`

	// Sessions
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
	SessionLockWait time.Duration `env:"SESSION_LOCK_WAIT" envDefault:"2s"`
	StateKeyHex     string        `env:"STATE_KEY" envDefault:"0000000000000000000000000000000000000000000000000000000000000000"`

	// Launch tokens
	LaunchTokenSecret string        `env:"LAUNCH_TOKEN_SECRET" envDefault:"change-me-in-production"`
	LaunchTokenExpiry time.Duration `env:"LAUNCH_TOKEN_EXPIRY" envDefault:"1h"`

	// Kafka (reconciliation dead-letter)
	KafkaBrokers   string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled   bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	ReconcileTopic string `env:"RECONCILE_TOPIC" envDefault:"rgs.reconciliation"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	if _, err := c.StateKey(); err != nil {
		return err
	}
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.LaunchTokenSecret == "change-me-in-production" {
		return fmt.Errorf("LAUNCH_TOKEN_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.LaunchTokenSecret) < 32 {
		return fmt.Errorf("LAUNCH_TOKEN_SECRET is too short (%d chars); minimum 32 characters required", len(c.LaunchTokenSecret))
	}
	zero := true
	key, _ := c.StateKey()
	for _, b := range key {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		return fmt.Errorf("STATE_KEY is the all-zero default; generate a real 256-bit key or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	return nil
}

// StateKey decodes the private-state encryption key.
func (c *Config) StateKey() ([]byte, error) {
	key, err := hex.DecodeString(c.StateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("STATE_KEY is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("STATE_KEY must be 32 bytes (64 hex chars), got %d bytes", len(key))
	}
	return key, nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
