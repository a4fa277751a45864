// Package config loads the engine configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Staking  StakingConfig  `yaml:"staking"`
	Treasury TreasuryConfig `yaml:"treasury"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr               string   `yaml:"addr"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	RateLimitPerSecond int      `yaml:"rate_limit_per_second"`
	RateLimitBurst     int      `yaml:"rate_limit_burst"`
}

// DatabaseConfig selects the ledger store backend. An empty DSN selects the
// in-memory store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// AuthConfig holds the shared secrets and admin login credentials.
type AuthConfig struct {
	AdminTokens   []string `yaml:"admin_tokens"`
	CronSecret    string   `yaml:"cron_secret"`
	JWTSecret     string   `yaml:"jwt_secret"`
	AdminUsername string   `yaml:"admin_username"`
	AdminPassword string   `yaml:"admin_password"`
}

// Amount is a decimal that unmarshals from YAML scalars.
type Amount struct {
	decimal.Decimal
}

// UnmarshalYAML parses integer, float or string scalars as fixed-point
// decimals.
func (a *Amount) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", raw, err)
	}
	a.Decimal = parsed
	return nil
}

// StakingConfig bounds deposits and schedules accrual.
type StakingConfig struct {
	MinimumDeposit  Amount `yaml:"minimum_deposit"`
	MaximumDeposit  Amount `yaml:"maximum_deposit"`
	AccrualSchedule string `yaml:"accrual_schedule"`
}

// TreasuryConfig points the reconciler at the external treasury source.
type TreasuryConfig struct {
	SourceURL             string `yaml:"source_url"`
	SourceAPIKey          string `yaml:"source_api_key"`
	SnapshotIntervalHours int    `yaml:"snapshot_interval_hours"`
}

// Default returns the configuration used when no file or overrides exist.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               ":8080",
			AllowedOrigins:     []string{"*"},
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
		},
		Staking: StakingConfig{
			MinimumDeposit:  Amount{decimal.NewFromInt(1000)},
			MaximumDeposit:  Amount{decimal.NewFromInt(10000)},
			AccrualSchedule: "@daily",
		},
		Treasury: TreasuryConfig{
			SnapshotIntervalHours: 24,
		},
	}
}

// Load reads the config file named by CONFIG_PATH (default
// config/engine.yaml, missing file allowed) and applies environment
// overrides.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/engine.yaml"
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from an explicit path. A missing file
// yields the defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults plus env only
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("ADMIN_SECRET"); v != "" {
		c.Auth.AdminTokens = splitList(v)
	}
	if v := os.Getenv("CRON_SECRET"); v != "" {
		c.Auth.CronSecret = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		c.Auth.AdminUsername = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		c.Auth.AdminPassword = v
	}
	if v := os.Getenv("TREASURY_SOURCE_URL"); v != "" {
		c.Treasury.SourceURL = v
	}
	if v := os.Getenv("TREASURY_SOURCE_KEY"); v != "" {
		c.Treasury.SourceAPIKey = v
	}
	if v := os.Getenv("ACCRUAL_SCHEDULE"); v != "" {
		c.Staking.AccrualSchedule = v
	}
	if v := os.Getenv("MINIMUM_DEPOSIT"); v != "" {
		if parsed, err := decimal.NewFromString(v); err == nil {
			c.Staking.MinimumDeposit = Amount{parsed}
		}
	}
	if v := os.Getenv("MAXIMUM_DEPOSIT"); v != "" {
		if parsed, err := decimal.NewFromString(v); err == nil {
			c.Staking.MaximumDeposit = Amount{parsed}
		}
	}
	if v := os.Getenv("RATE_LIMIT_PER_SECOND"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			c.Server.RateLimitPerSecond = parsed
		}
	}
}

func (c *Config) validate() error {
	if !c.Staking.MinimumDeposit.IsPositive() {
		return fmt.Errorf("staking.minimum_deposit must be positive")
	}
	if c.Staking.MaximumDeposit.LessThan(c.Staking.MinimumDeposit.Decimal) {
		return fmt.Errorf("staking.maximum_deposit must be at least the minimum deposit")
	}
	if c.Server.RateLimitPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit_per_second must be positive")
	}
	if c.Treasury.SnapshotIntervalHours <= 0 {
		return fmt.Errorf("treasury.snapshot_interval_hours must be positive")
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
