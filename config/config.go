package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Config is the process configuration read from the environment.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`

	Store       string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"h2h.db"`

	RedisAddr     string `env:"REDIS_URL"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Hex private key of the admin identity used by the price feeder and cmd/seed
	AdminPrivateKey string `env:"ADMIN_PRIVATE_KEY"`

	// Token the market escrows; cmd/seed derives one when empty
	Denomination string   `env:"DENOMINATION"`
	SeedAccounts []string `env:"SEED_ACCOUNTS" envSeparator:","`

	OracleSource      string        `env:"ORACLE_SOURCE" envDefault:"none"`
	OracleRedisKey    string        `env:"ORACLE_REDIS_KEY" envDefault:"h2h:price:latest"`
	ChainRPC          string        `env:"CHAIN_RPC" envDefault:"https://rpc.sepolia.mantle.xyz"`
	AggregatorAddress string        `env:"AGGREGATOR_ADDRESS"`
	FeedInterval      time.Duration `env:"FEED_INTERVAL" envDefault:"15s"`
	// Seed of the simulated random walk
	OracleSeed string `env:"ORACLE_SEED" envDefault:"h2h"`

	AuthMaxSkew time.Duration `env:"AUTH_MAX_SKEW" envDefault:"5m"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads files (default .env) into the environment when present and
// parses Config. It reports whether a file was loaded.
func Load(files ...string) (Config, bool, error) {
	loaded := godotenv.Load(files...) == nil

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, loaded, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, loaded, err
	}
	return cfg, loaded, nil
}

// Validate checks the cross-field rules env tags cannot express.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for store %q", c.Store)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store)
	}

	switch c.OracleSource {
	case OracleNone:
	case OracleRedis, OracleChainlink, OracleSimulated:
		if c.AdminPrivateKey == "" {
			return fmt.Errorf("ADMIN_PRIVATE_KEY is required for oracle %q", c.OracleSource)
		}
		if c.OracleSource == OracleChainlink && c.AggregatorAddress == "" {
			return fmt.Errorf("AGGREGATOR_ADDRESS is required for oracle %q", c.OracleSource)
		}
		if c.FeedInterval <= 0 {
			return fmt.Errorf("FEED_INTERVAL must be positive")
		}
	default:
		return fmt.Errorf("unknown ORACLE_SOURCE %q", c.OracleSource)
	}

	if c.Denomination != "" && !common.IsHexAddress(c.Denomination) {
		return fmt.Errorf("DENOMINATION %q is not an address", c.Denomination)
	}
	for _, a := range c.SeedAccounts {
		if !common.IsHexAddress(a) {
			return fmt.Errorf("SEED_ACCOUNTS entry %q is not an address", a)
		}
	}

	if c.AuthMaxSkew <= 0 {
		return fmt.Errorf("AUTH_MAX_SKEW must be positive")
	}
	return nil
}
