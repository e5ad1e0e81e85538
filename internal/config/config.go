package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for gradwatch.
type Config struct {
	General GeneralConfig `yaml:"general"`
	RPC     RPCConfig     `yaml:"rpc"`
	Scan    ScanConfig    `yaml:"scan"`
	Live    LiveConfig    `yaml:"live"`
	Webhook WebhookConfig `yaml:"webhook"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type GeneralConfig struct {
	InstanceID string `yaml:"instance_id"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"` // json|text
}

type RPCConfig struct {
	Endpoint     string  `yaml:"endpoint"` // Helius RPC URL with api-key
	TimeoutS     int     `yaml:"timeout_s"`
	MaxRetries   int     `yaml:"max_retries"`
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
}

type ScanConfig struct {
	PollIntervalMs  int    `yaml:"poll_interval_ms"`
	MinHolders      int    `yaml:"min_holders"`
	MinAgeMinutes   int    `yaml:"min_age_minutes"`
	TopK            int    `yaml:"top_k"`
	Program         string `yaml:"program"`
	PageSize        int    `yaml:"page_size"`
	TxSamplePerPage int    `yaml:"tx_sample_per_page"`
	MaxPages        int    `yaml:"max_pages"`
	TxLookupDelayMs int    `yaml:"tx_lookup_delay_ms"`
}

type LiveConfig struct {
	Endpoint         string `yaml:"endpoint"`
	MigrationAccount string `yaml:"migration_account"`
	ReconnectDelayMs int    `yaml:"reconnect_delay_ms"`
	PingIntervalS    int    `yaml:"ping_interval_s"`
	DedupCap         int    `yaml:"dedup_cap"`
}

type WebhookConfig struct {
	URL string `yaml:"url"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads an optional YAML configuration file, then applies the
// environment surface (TRANSPORT_ENDPOINT, PUBLISHER_URL, POLL_INTERVAL_MS,
// MIN_HOLDERS, MIN_AGE_MINUTES) on top, then defaults. An empty path means
// env-only configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// Expand environment variables
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnv maps the documented environment keys onto the config. Environment
// values win over file values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TRANSPORT_ENDPOINT"); v != "" {
		cfg.RPC.Endpoint = v
	}
	if v := os.Getenv("PUBLISHER_URL"); v != "" {
		cfg.Webhook.URL = v
	}
	if v, ok := envInt("POLL_INTERVAL_MS"); ok {
		cfg.Scan.PollIntervalMs = v
	}
	if v, ok := envInt("MIN_HOLDERS"); ok {
		cfg.Scan.MinHolders = v
	}
	if v, ok := envInt("MIN_AGE_MINUTES"); ok {
		cfg.Scan.MinAgeMinutes = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func applyDefaults(cfg *Config) {
	if cfg.General.InstanceID == "" {
		cfg.General.InstanceID = "gradwatch-1"
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LogFormat == "" {
		cfg.General.LogFormat = "json"
	}
	if cfg.RPC.TimeoutS == 0 {
		cfg.RPC.TimeoutS = 10
	}
	if cfg.RPC.MaxRetries == 0 {
		cfg.RPC.MaxRetries = 3
	}
	if cfg.RPC.RateLimitRPS == 0 {
		cfg.RPC.RateLimitRPS = 10
	}
	if cfg.Scan.PollIntervalMs == 0 {
		cfg.Scan.PollIntervalMs = 600_000 // 10 minutes
	}
	if cfg.Scan.MinHolders == 0 {
		cfg.Scan.MinHolders = 100
	}
	if cfg.Scan.MinAgeMinutes == 0 {
		cfg.Scan.MinAgeMinutes = 30
	}
	if cfg.Scan.TopK == 0 {
		cfg.Scan.TopK = 5
	}
	if cfg.Scan.PageSize == 0 {
		cfg.Scan.PageSize = 100
	}
	if cfg.Scan.TxSamplePerPage == 0 {
		cfg.Scan.TxSamplePerPage = 20
	}
	if cfg.Scan.MaxPages == 0 {
		cfg.Scan.MaxPages = 5
	}
	if cfg.Scan.TxLookupDelayMs == 0 {
		cfg.Scan.TxLookupDelayMs = 100
	}
	if cfg.Live.Endpoint == "" {
		cfg.Live.Endpoint = "wss://pumpportal.fun/api/data"
	}
	if cfg.Live.ReconnectDelayMs == 0 {
		cfg.Live.ReconnectDelayMs = 1000
	}
	if cfg.Live.PingIntervalS == 0 {
		cfg.Live.PingIntervalS = 30
	}
	if cfg.Live.DedupCap == 0 {
		cfg.Live.DedupCap = 50_000
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// ValidatePoll checks the settings poll mode cannot run without.
func (c *Config) ValidatePoll() error {
	if c.RPC.Endpoint == "" {
		return fmt.Errorf("config: rpc endpoint is required (TRANSPORT_ENDPOINT)")
	}
	return nil
}

// ValidateLive checks the settings live mode cannot run without.
func (c *Config) ValidateLive() error {
	if c.Webhook.URL == "" {
		return fmt.Errorf("config: webhook url is required (PUBLISHER_URL)")
	}
	return nil
}
