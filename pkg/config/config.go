package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" validate:"required"`

	Log        LogConfig        `yaml:"log"`
	Ops        OpsConfig        `yaml:"ops"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Scanner    ScannerConfig    `yaml:"scanner"`
	Universe   UniverseConfig   `yaml:"universe"`
	Risk       RiskConfig       `yaml:"risk"`
	Redis      RedisConfig      `yaml:"redis"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Pushover   PushoverConfig   `yaml:"pushover"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	Output string `yaml:"output" default:"stdout"`
}

// OpsConfig configures the operational HTTP server (health and metrics).
type OpsConfig struct {
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

type ReconnectConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay" default:"1s"`
	MaxDelay    time.Duration `yaml:"max_delay" default:"60s"`
	MaxAttempts int           `yaml:"max_attempts" default:"8"`
}

// TimeoutConfig bounds how long the scan driver waits per request kind.
// QuoteWindow is a fixed accumulation window, not a deadline: option quotes
// have no terminal event.
type TimeoutConfig struct {
	Bars         time.Duration `yaml:"bars" default:"30s"`
	Fundamentals time.Duration `yaml:"fundamentals" default:"10s"`
	Chain        time.Duration `yaml:"chain" default:"10s"`
	QuoteWindow  time.Duration `yaml:"quote_window" default:"5s"`
	Account      time.Duration `yaml:"account" default:"5s"`
}

type GatewayConfig struct {
	URL            string          `yaml:"url" validate:"required"`
	ClientID       int             `yaml:"client_id" default:"2"`
	ConnectTimeout time.Duration   `yaml:"connect_timeout" default:"10s"`
	PingInterval   time.Duration   `yaml:"ping_interval" default:"15s"`
	Reconnect      ReconnectConfig `yaml:"reconnect"`
	Timeouts       TimeoutConfig   `yaml:"timeouts"`
}

type ScannerConfig struct {
	Watchlist              []string      `yaml:"watchlist" validate:"min=1"`
	Interval               time.Duration `yaml:"interval" default:"1h"`
	VolatilityIndex        string        `yaml:"volatility_index" default:"VIX"`
	RequestsPerSecond      float64       `yaml:"requests_per_second" default:"2"`
	EnforceTradingHours    bool          `yaml:"enforce_trading_hours"`
	HistoryMaxAgeDays      int           `yaml:"history_max_age_days" default:"1"`
	FundamentalsMaxAgeDays int           `yaml:"fundamentals_max_age_days" default:"7"`
	ChainMaxAge            time.Duration `yaml:"chain_max_age" default:"6h"`
}

type UniverseConfig struct {
	MinMarketCap float64 `yaml:"min_market_cap" default:"5000000000"`
	MinAvgVolume float64 `yaml:"min_avg_volume" default:"500000"`
}

type RiskConfig struct {
	CriticalCushion        float64       `yaml:"critical_cushion" default:"0.20"`
	SnapshotMaxAge         time.Duration `yaml:"snapshot_max_age" default:"5m"`
	CommissionPerOrder     float64       `yaml:"commission_per_order" default:"1.0"`
	EarningsBlackoutBefore int           `yaml:"earnings_blackout_before" default:"7"`
	EarningsBlackoutAfter  int           `yaml:"earnings_blackout_after" default:"3"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"optionscan"`
}

type ClickHouseConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Host         string        `yaml:"host" default:"localhost"`
	Port         int           `yaml:"port" default:"9000"`
	Database     string        `yaml:"database" default:"optionscan"`
	User         string        `yaml:"user" default:"default"`
	Password     string        `yaml:"password"`
	DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
}

type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic" default:"options.signals"`
	RequiredAcks int           `yaml:"required_acks" default:"-1"`
	Compression  string        `yaml:"compression" default:"gzip"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
}

type PushoverConfig struct {
	UserKey  string `yaml:"user_key"`
	APIToken string `yaml:"api_token"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file, applying struct defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("GATEWAY_URL"); v != "" {
		c.Gateway.URL = v
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		c.Scanner.Watchlist = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("PUSHOVER_USER_KEY"); v != "" {
		c.Pushover.UserKey = v
	}
	if v := os.Getenv("PUSHOVER_API_TOKEN"); v != "" {
		c.Pushover.APIToken = v
	}
	if v := os.Getenv("MIN_MARKET_CAP"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Universe.MinMarketCap = f
		}
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Risk.CriticalCushion <= 0 || c.Risk.CriticalCushion >= 1 {
		return fmt.Errorf("risk.critical_cushion must be in (0,1), got %v", c.Risk.CriticalCushion)
	}
	return nil
}
