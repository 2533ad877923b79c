// Package config loads engine configuration from an optional JSON file
// with environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all engine settings. Durations are expressed as Go
// duration strings in the JSON file ("15m", "168h").
type Config struct {
	RPCEndpoint string `json:"rpc_endpoint"`
	WSEndpoint  string `json:"ws_endpoint"`

	PostgresDSN string `json:"postgres_dsn"`
	UseMemory   bool   `json:"use_memory"`

	APIAddr     string `json:"api_addr"`
	MetricsAddr string `json:"metrics_addr"`

	Interval    Duration `json:"interval"`
	Retention   Duration `json:"retention"`
	Bucket      Duration `json:"bucket"`
	RPCTimeout  Duration `json:"rpc_timeout"`
	MaxInFlight int64    `json:"max_in_flight"`

	QuoteAssets []string `json:"quote_assets"`
}

// Duration wraps time.Duration with string JSON encoding.
type Duration time.Duration

// UnmarshalJSON accepts a duration string like "15m".
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		RPCEndpoint: "http://localhost:8545",
		APIAddr:     ":8080",
		MetricsAddr: ":9090",
		Interval:    Duration(15 * time.Minute),
		Retention:   Duration(7 * 24 * time.Hour),
		Bucket:      Duration(15 * time.Minute),
		RPCTimeout:  Duration(30 * time.Second),
		MaxInFlight: 10,
	}
}

// Load builds the config from defaults, then the JSON file at path if
// path is non-empty, then environment variables. Later layers win.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("ENGINE_RPC_ENDPOINT", &c.RPCEndpoint)
	setString("ENGINE_WS_ENDPOINT", &c.WSEndpoint)
	setString("ENGINE_POSTGRES_DSN", &c.PostgresDSN)
	setString("ENGINE_API_ADDR", &c.APIAddr)
	setString("ENGINE_METRICS_ADDR", &c.MetricsAddr)

	if v, ok := os.LookupEnv("ENGINE_USE_MEMORY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid ENGINE_USE_MEMORY %q: %w", v, err)
		}
		c.UseMemory = b
	}

	setDuration := func(key string, dst *Duration) error {
		v, ok := os.LookupEnv(key)
		if !ok {
			return nil
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = Duration(parsed)
		return nil
	}
	if err := setDuration("ENGINE_INTERVAL", &c.Interval); err != nil {
		return err
	}
	if err := setDuration("ENGINE_RETENTION", &c.Retention); err != nil {
		return err
	}
	if err := setDuration("ENGINE_BUCKET", &c.Bucket); err != nil {
		return err
	}
	if err := setDuration("ENGINE_RPC_TIMEOUT", &c.RPCTimeout); err != nil {
		return err
	}

	if v, ok := os.LookupEnv("ENGINE_MAX_IN_FLIGHT"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ENGINE_MAX_IN_FLIGHT %q: %w", v, err)
		}
		c.MaxInFlight = n
	}

	if v, ok := os.LookupEnv("ENGINE_QUOTE_ASSETS"); ok {
		c.QuoteAssets = splitNonEmpty(v)
	}

	return nil
}

func (c *Config) validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("rpc_endpoint is required")
	}
	if !c.UseMemory && c.PostgresDSN == "" {
		return fmt.Errorf("postgres_dsn is required unless use_memory is set")
	}
	if c.Interval.Std() <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.Retention.Std() <= 0 {
		return fmt.Errorf("retention must be positive")
	}
	if c.MaxInFlight <= 0 {
		return fmt.Errorf("max_in_flight must be positive")
	}
	return nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
