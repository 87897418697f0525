package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"hl-action-kit/internal/hl/chain"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log     LoggingConfig `yaml:"log"`
	Network NetworkConfig `yaml:"network"`
	REST    RESTConfig    `yaml:"rest"`
	WS      WSConfig      `yaml:"ws"`
	State   StateConfig   `yaml:"state"`
	Metrics MetricsConfig `yaml:"metrics"`
	Journal JournalConfig `yaml:"journal"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

type NetworkConfig struct {
	Mainnet      bool   `yaml:"mainnet"`
	AgentChainID uint64 `yaml:"agent_chain_id"`
}

type RESTConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type WSConfig struct {
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

func (m MetricsConfig) EnabledValue() bool {
	return m.Enabled != nil && *m.Enabled
}

type JournalConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Load reads a YAML config. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

// ChainNetwork returns the network the config targets, with endpoint
// overrides applied.
func (c *Config) ChainNetwork() chain.Network {
	network := chain.ForFlag(c.Network.Mainnet)
	if c.Network.AgentChainID != 0 {
		network.AgentChainID = c.Network.AgentChainID
	}
	if c.REST.BaseURL != "" {
		network.APIURL = c.REST.BaseURL
	}
	if c.WS.URL != "" {
		network.WSURL = c.WS.URL
	}
	return network
}

func applyEnvOverrides(cfg *Config) {
	if dsn := strings.TrimSpace(os.Getenv("HL_JOURNAL_DSN")); dsn != "" {
		cfg.Journal.DSN = dsn
		cfg.Journal.Enabled = true
	}
	if level := strings.TrimSpace(os.Getenv("HL_LOG_LEVEL")); level != "" {
		cfg.Log.Level = level
	}
}

func applyDefaults(cfg *Config) {
	network := chain.ForFlag(cfg.Network.Mainnet)
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Network.AgentChainID == 0 {
		cfg.Network.AgentChainID = chain.DefaultAgentChainID
	}
	if cfg.REST.BaseURL == "" {
		cfg.REST.BaseURL = network.APIURL
	}
	if cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = 10 * time.Second
	}
	if cfg.WS.URL == "" {
		cfg.WS.URL = network.WSURL
	}
	if cfg.WS.ReconnectDelay == 0 {
		cfg.WS.ReconnectDelay = 3 * time.Second
	}
	if cfg.WS.PingInterval == 0 {
		cfg.WS.PingInterval = 30 * time.Second
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/hl-action-kit.db"
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = "127.0.0.1:9001"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Journal.Schema == "" {
		cfg.Journal.Schema = "public"
	}
	if cfg.Journal.QueueSize == 0 {
		cfg.Journal.QueueSize = 256
	}
}

func validate(cfg *Config) error {
	if cfg.Log.Format != "json" && cfg.Log.Format != "console" {
		return fmt.Errorf("log.format must be json or console, got %q", cfg.Log.Format)
	}
	if cfg.REST.Timeout < 0 {
		return errors.New("rest.timeout must be >= 0")
	}
	if !strings.HasPrefix(cfg.REST.BaseURL, "http://") && !strings.HasPrefix(cfg.REST.BaseURL, "https://") {
		return errors.New("rest.base_url must be an http(s) url")
	}
	if !strings.HasPrefix(cfg.WS.URL, "ws://") && !strings.HasPrefix(cfg.WS.URL, "wss://") {
		return errors.New("ws.url must be a ws(s) url")
	}
	if cfg.Metrics.EnabledValue() && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	if cfg.Journal.Enabled && strings.TrimSpace(cfg.Journal.DSN) == "" {
		return errors.New("journal.dsn is required when journal is enabled")
	}
	if cfg.Journal.QueueSize < 0 {
		return errors.New("journal.queue_size must be >= 0")
	}
	return nil
}
