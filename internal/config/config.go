// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ducnguyen96/swap-sentinel/internal/types"
)

// Config represents the full application configuration.
type Config struct {
	Feed       FeedConfig       `yaml:"feed"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Swap       SwapConfig       `yaml:"swap"`
	Chain      ChainConfig      `yaml:"chain"`
	Store      StoreConfig      `yaml:"store"`
	Events     EventsConfig     `yaml:"events"`
	Alerting   AlertingConfig   `yaml:"alerting"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// FeedConfig holds price feed settings.
type FeedConfig struct {
	PriceAPIURL        string     `yaml:"price_api_url"`
	PollIntervalSec    int        `yaml:"poll_interval_sec"`
	BatchSize          int        `yaml:"batch_size"`
	RequestTimeoutSec  int        `yaml:"request_timeout_sec"`
	RateLimitPerSecond int        `yaml:"rate_limit_per_second"`
	Push               PushConfig `yaml:"push"`
}

// PushConfig holds the optional websocket price stream settings.
type PushConfig struct {
	Enabled            bool   `yaml:"enabled"`
	URL                string `yaml:"url"`
	ReconnectFloorMs   int    `yaml:"reconnect_floor_ms"`
	ReconnectCeilingMs int    `yaml:"reconnect_ceiling_ms"`
}

// DispatcherConfig holds order matching and execution settings.
type DispatcherConfig struct {
	ReconcileIntervalSec int `yaml:"reconcile_interval_sec"`
	MaxAttempts          int `yaml:"max_attempts"`
	RetryUnitSec         int `yaml:"retry_unit_sec"`
	ExecutionTimeoutSec  int `yaml:"execution_timeout_sec"`
}

// SwapConfig holds swap-building API settings.
type SwapConfig struct {
	APIURL             string `yaml:"api_url"`
	RequestTimeoutSec  int    `yaml:"request_timeout_sec"`
	RateLimitPerSecond int    `yaml:"rate_limit_per_second"`
	FeeBps             int    `yaml:"fee_bps"`
	FeeRecipient       string `yaml:"fee_recipient"`
}

// ChainConfig holds blockchain RPC settings.
type ChainConfig struct {
	RPCURL            string `yaml:"rpc_url"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
	NativeMint        string `yaml:"native_mint"`
	NativeDecimals    int    `yaml:"native_decimals"`
}

// StoreConfig holds order store settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// EventsConfig holds lifecycle event hub settings.
type EventsConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

// AlertingConfig holds ops alerting settings.
type AlertingConfig struct {
	Enabled  bool            `yaml:"enabled"`
	Channels []ChannelConfig `yaml:"channels"`
}

// ChannelConfig holds a single alert channel configuration.
type ChannelConfig struct {
	Type     string `yaml:"type"` // telegram | console
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// MetricsConfig holds metrics server settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration, applying defaults for zero values.
func (c *Config) Validate() error {
	var errs []string

	// Feed validation
	if c.Feed.PriceAPIURL == "" {
		errs = append(errs, "feed.price_api_url is required")
	}
	if c.Feed.PollIntervalSec <= 0 {
		c.Feed.PollIntervalSec = 5 // default
	}
	if c.Feed.BatchSize <= 0 {
		c.Feed.BatchSize = 100 // price API per-request item limit
	}
	if c.Feed.RequestTimeoutSec <= 0 {
		c.Feed.RequestTimeoutSec = 10
	}
	if c.Feed.RateLimitPerSecond <= 0 {
		c.Feed.RateLimitPerSecond = 10
	}
	if c.Feed.Push.Enabled {
		if c.Feed.Push.URL == "" {
			errs = append(errs, "feed.push.url is required when push is enabled")
		}
		if c.Feed.Push.ReconnectFloorMs <= 0 {
			c.Feed.Push.ReconnectFloorMs = 1000
		}
		if c.Feed.Push.ReconnectCeilingMs <= 0 {
			c.Feed.Push.ReconnectCeilingMs = 30000
		}
		if c.Feed.Push.ReconnectCeilingMs < c.Feed.Push.ReconnectFloorMs {
			errs = append(errs, "feed.push.reconnect_ceiling_ms must be >= reconnect_floor_ms")
		}
	}

	// Dispatcher validation. The reconcile interval is the documented
	// maximum lag before an externally created or cancelled order is
	// picked up by the matching process.
	if c.Dispatcher.ReconcileIntervalSec <= 0 {
		c.Dispatcher.ReconcileIntervalSec = 30
	}
	if c.Dispatcher.MaxAttempts <= 0 {
		c.Dispatcher.MaxAttempts = 3
	}
	if c.Dispatcher.RetryUnitSec <= 0 {
		c.Dispatcher.RetryUnitSec = 2
	}
	if c.Dispatcher.ExecutionTimeoutSec <= 0 {
		c.Dispatcher.ExecutionTimeoutSec = 30
	}

	// Swap validation
	if c.Swap.APIURL == "" {
		errs = append(errs, "swap.api_url is required")
	}
	if c.Swap.RequestTimeoutSec <= 0 {
		c.Swap.RequestTimeoutSec = 15
	}
	if c.Swap.RateLimitPerSecond <= 0 {
		c.Swap.RateLimitPerSecond = 5
	}
	if c.Swap.FeeBps < 0 || c.Swap.FeeBps > 10000 {
		errs = append(errs, "swap.fee_bps must be between 0 and 10000")
	}
	if c.Swap.FeeBps > 0 && c.Swap.FeeRecipient == "" {
		errs = append(errs, "swap.fee_recipient is required when fee_bps is set")
	}

	// Chain validation
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain.rpc_url is required")
	}
	if c.Chain.RequestTimeoutSec <= 0 {
		c.Chain.RequestTimeoutSec = 10
	}
	if c.Chain.NativeMint == "" {
		errs = append(errs, "chain.native_mint is required")
	}
	if c.Chain.NativeDecimals <= 0 {
		c.Chain.NativeDecimals = 9
	}

	// Store validation
	if c.Store.Path == "" {
		errs = append(errs, "store.path is required")
	}

	// Events validation
	if c.Events.BufferSize <= 0 {
		c.Events.BufferSize = 64
	}

	// Alerting validation
	if c.Alerting.Enabled {
		for i, ch := range c.Alerting.Channels {
			switch ch.Type {
			case "console":
			case "telegram":
				if ch.BotToken == "" || ch.ChatID == "" {
					errs = append(errs, fmt.Sprintf("alerting.channels[%d]: telegram requires bot_token and chat_id", i))
				}
			default:
				errs = append(errs, fmt.Sprintf("alerting.channels[%d]: unknown type '%s'", i, ch.Type))
			}
		}
	}

	// Metrics validation
	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 {
			c.Metrics.Port = 9090
		}
		if c.Metrics.Path == "" {
			c.Metrics.Path = "/metrics"
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", types.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// PollInterval returns the feed polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Feed.PollIntervalSec) * time.Second
}

// FeedRequestTimeout returns the per-batch price fetch timeout.
func (c *Config) FeedRequestTimeout() time.Duration {
	return time.Duration(c.Feed.RequestTimeoutSec) * time.Second
}

// ReconnectFloor returns the push stream's minimum reconnect delay.
func (c *Config) ReconnectFloor() time.Duration {
	return time.Duration(c.Feed.Push.ReconnectFloorMs) * time.Millisecond
}

// ReconnectCeiling returns the push stream's maximum reconnect delay.
func (c *Config) ReconnectCeiling() time.Duration {
	return time.Duration(c.Feed.Push.ReconnectCeilingMs) * time.Millisecond
}

// ReconcileInterval returns the store reconciliation interval.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Dispatcher.ReconcileIntervalSec) * time.Second
}

// RetryUnit returns the linear backoff unit between execution attempts.
func (c *Config) RetryUnit() time.Duration {
	return time.Duration(c.Dispatcher.RetryUnitSec) * time.Second
}

// ExecutionTimeout returns the per-attempt execution timeout.
func (c *Config) ExecutionTimeout() time.Duration {
	return time.Duration(c.Dispatcher.ExecutionTimeoutSec) * time.Second
}

// SwapRequestTimeout returns the swap API request timeout.
func (c *Config) SwapRequestTimeout() time.Duration {
	return time.Duration(c.Swap.RequestTimeoutSec) * time.Second
}

// ChainRequestTimeout returns the RPC request timeout.
func (c *Config) ChainRequestTimeout() time.Duration {
	return time.Duration(c.Chain.RequestTimeoutSec) * time.Second
}
