// config/config.go
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// PowerNConfig holds the parameters of the pivot-curve (powern) strategy.
type PowerNConfig struct {
	W                float64 `yaml:"w"`                  // Curve width exponent
	P                float64 `yaml:"p"`                  // Curvature
	C                float64 `yaml:"c"`                  // Scale constant
	YieldMult        float64 `yaml:"yield_mult"`         // Yield multiplier while holding a position
	InitialYieldMult float64 `yaml:"initial_yield_mult"` // Yield multiplier while flat
	InitialBudget    float64 `yaml:"initial_budget"`     // External capital offset
}

// Validate rejects parameters that put a pole into the curve math.
func (c *PowerNConfig) Validate() error {
	if c.W <= 0 {
		return fmt.Errorf("Config error: powern: 'w' must be positive")
	}
	if c.W == 1 {
		return fmt.Errorf("Config error: powern: 'w' must not be 1")
	}
	if c.P <= 0 {
		return fmt.Errorf("Config error: powern: 'p' must be positive")
	}
	if c.C == 0 {
		return fmt.Errorf("Config error: powern: 'c' must not be zero")
	}
	if c.YieldMult < 0 || c.InitialYieldMult < 0 {
		return fmt.Errorf("Config error: powern: yield multipliers cannot be negative")
	}
	return nil
}

// MarketConfig holds the trading rules of the instrument.
type MarketConfig struct {
	MinSize   float64 `yaml:"min_size"`
	MinVolume float64 `yaml:"min_volume"`
	AssetStep float64 `yaml:"asset_step"`
	Leverage  float64 `yaml:"leverage"`
}

// StorageConfig holds the versioned state storage settings.
type StorageConfig struct {
	Versions int    `yaml:"versions"`
	Format   string `yaml:"format"` // json, jsonp or binjson
}

// SimulationConfig drives the paper exchange.
type SimulationConfig struct {
	InitialPrice    float64 `yaml:"initial_price"`
	InitialAssets   float64 `yaml:"initial_assets"`
	InitialCurrency float64 `yaml:"initial_currency"`
	Volatility      float64 `yaml:"volatility"`
	Seed            int64   `yaml:"seed"`
}

// MetricsConfig holds the Prometheus exporter settings.
type MetricsConfig struct {
	ListenAddress string `yaml:"listen_address"` // Empty disables the HTTP endpoint
}

// LogConfig holds the configuration for logging.
type LogConfig struct {
	LogLevel   string `yaml:"log_level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// NormalConfig holds all general, non-strategy-specific configuration.
type NormalConfig struct {
	MonitorIntervalSeconds   int    `yaml:"monitor_interval_seconds"`
	HeartbeatIntervalMinutes int    `yaml:"heartbeat_interval_minutes"`
	LogDirectory             string `yaml:"log_directory"`
	StateDirectory           string `yaml:"state_directory"`
}

// StrategyConfig is a generic container for a single strategy's configuration.
// Config stays untyped until the name selects the concrete structure.
type StrategyConfig struct {
	Name    string      `yaml:"name"`
	Enabled bool        `yaml:"enabled"`
	Config  interface{} `yaml:"config"`
}

// Config is the top-level configuration structure.
type Config struct {
	Symbol          string
	Strategy        string  // Name of the enabled strategy variant
	TotalInvestment float64 // Notional cap on the position, 0 disables it
	PowerN          *PowerNConfig
	Market          *MarketConfig
	Storage         *StorageConfig
	Simulation      *SimulationConfig
	Metrics         *MetricsConfig
	Logs            *LogConfig
	Normal          *NormalConfig
}

const (
	StrategyPowerN = "powern"

	FormatJSON       = "json"
	FormatJSONPretty = "jsonp"
	FormatBinJSON    = "binjson"
)

// NewConfig creates a Config with safe, non-strategy defaults.
// Strategy parameters MUST be provided in the config file.
func NewConfig() *Config {
	return &Config{
		PowerN:     &PowerNConfig{},
		Market:     &MarketConfig{},
		Storage:    &StorageConfig{Versions: 5, Format: FormatJSON},
		Simulation: &SimulationConfig{Seed: 1},
		Metrics:    &MetricsConfig{},
		Logs:       &LogConfig{},
		Normal:     &NormalConfig{},
	}
}

// LoadConfig loads configuration from a given path, applies defaults, and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("Error: Config file not found at %s. Program cannot run without a config file", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a validated Config from YAML bytes.
func Parse(data []byte) (*Config, error) {
	cfg := NewConfig()

	// A temporary struct to unmarshal the raw strategy configs
	var rawCfg struct {
		Symbol          string            `yaml:"symbol"`
		TotalInvestment float64           `yaml:"total_investment"`
		Market          *MarketConfig     `yaml:"market"`
		Storage         *StorageConfig    `yaml:"storage"`
		Simulation      *SimulationConfig `yaml:"simulation"`
		Metrics         *MetricsConfig    `yaml:"metrics"`
		Logs            *LogConfig        `yaml:"logs"`
		Normal          *NormalConfig     `yaml:"normal_config"`
		Strategies      []StrategyConfig  `yaml:"strategies"`
	}

	if err := yaml.Unmarshal(data, &rawCfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	cfg.Symbol = strings.ToUpper(rawCfg.Symbol)
	cfg.TotalInvestment = rawCfg.TotalInvestment
	if rawCfg.Market != nil {
		cfg.Market = rawCfg.Market
	}
	if rawCfg.Storage != nil {
		if rawCfg.Storage.Versions != 0 {
			cfg.Storage.Versions = rawCfg.Storage.Versions
		}
		if rawCfg.Storage.Format != "" {
			cfg.Storage.Format = strings.ToLower(rawCfg.Storage.Format)
		}
	}
	if rawCfg.Simulation != nil {
		cfg.Simulation = rawCfg.Simulation
	}
	if rawCfg.Metrics != nil {
		cfg.Metrics = rawCfg.Metrics
	}
	if rawCfg.Logs != nil {
		cfg.Logs = rawCfg.Logs
	}
	if rawCfg.Normal != nil {
		cfg.Normal = rawCfg.Normal
	}

	// Unmarshal the strategy config selected by 'name'
	for _, s := range rawCfg.Strategies {
		if !s.Enabled {
			continue
		}
		if cfg.Strategy != "" {
			return nil, fmt.Errorf("Config error: only one strategy can be enabled, found '%s' and '%s'", cfg.Strategy, s.Name)
		}

		configBytes, err := yaml.Marshal(s.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to re-marshal strategy config '%s': %w", s.Name, err)
		}

		switch s.Name {
		case StrategyPowerN:
			if err := yaml.Unmarshal(configBytes, cfg.PowerN); err != nil {
				return nil, fmt.Errorf("failed to unmarshal powern config: %w", err)
			}
		default:
			return nil, fmt.Errorf("Config error: unknown strategy '%s'", s.Name)
		}
		cfg.Strategy = s.Name
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the logical consistency and completeness of the entire configuration.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("Critical config missing: 'symbol' must be explicitly specified")
	}
	if c.Strategy == "" {
		return fmt.Errorf("Critical config missing: exactly one entry of 'strategies' must be enabled")
	}
	if c.Strategy == StrategyPowerN {
		if err := c.PowerN.Validate(); err != nil {
			return err
		}
	}

	if c.TotalInvestment < 0 {
		return fmt.Errorf("Config error: 'total_investment' cannot be negative")
	}

	if c.Market.MinSize < 0 || c.Market.MinVolume < 0 || c.Market.AssetStep < 0 {
		return fmt.Errorf("Config error: market limits cannot be negative")
	}
	if c.Market.Leverage < 0 {
		return fmt.Errorf("Config error: 'market.leverage' cannot be negative")
	}

	if c.Storage.Versions <= 0 {
		return fmt.Errorf("Config error: 'storage.versions' must be positive")
	}
	switch c.Storage.Format {
	case FormatJSON, FormatJSONPretty, FormatBinJSON:
	default:
		return fmt.Errorf("Config error: 'storage.format' must be 'json', 'jsonp' or 'binjson', got '%s'", c.Storage.Format)
	}

	if c.Simulation.InitialPrice <= 0 {
		return fmt.Errorf("Critical config missing: 'simulation.initial_price' must be explicitly specified and be positive")
	}
	if c.Simulation.InitialCurrency < 0 {
		return fmt.Errorf("Config error: 'simulation.initial_currency' cannot be negative")
	}
	if c.Simulation.Volatility < 0 {
		return fmt.Errorf("Config error: 'simulation.volatility' cannot be negative")
	}

	if c.Normal.MonitorIntervalSeconds <= 0 {
		return fmt.Errorf("Critical config missing: 'normal_config.monitor_interval_seconds' must be explicitly specified and be positive")
	}
	if c.Normal.HeartbeatIntervalMinutes <= 0 {
		return fmt.Errorf("Critical config missing: 'normal_config.heartbeat_interval_minutes' must be explicitly specified and be positive")
	}
	if c.Normal.LogDirectory == "" {
		return fmt.Errorf("Critical config missing: 'normal_config.log_directory' must be explicitly specified (e.g., 'logs')")
	}
	if c.Normal.StateDirectory == "" {
		return fmt.Errorf("Critical config missing: 'normal_config.state_directory' must be explicitly specified (e.g., 'state')")
	}

	if c.Logs.LogLevel == "" {
		return fmt.Errorf("Critical config missing: 'logs.log_level' must be explicitly specified (e.g., 'info', 'debug', 'warn', 'error')")
	}
	if c.Logs.MaxSizeMB <= 0 {
		return fmt.Errorf("Critical config missing: 'logs.max_size_mb' must be explicitly specified and be positive")
	}
	if c.Logs.MaxBackups <= 0 {
		return fmt.Errorf("Critical config missing: 'logs.max_backups' must be explicitly specified and be positive")
	}
	if c.Logs.MaxAgeDays <= 0 {
		return fmt.Errorf("Critical config missing: 'logs.max_age_days' must be explicitly specified and be positive")
	}

	return nil
}
