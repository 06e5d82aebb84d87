package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Asset struct {
	ID     string `yaml:"id"`
	Symbol string `yaml:"symbol"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Upstream struct {
		BaseURL      string        `yaml:"base_url"`
		AuthToken    string        `yaml:"auth_token"`
		Timeout      time.Duration `yaml:"timeout"`
		PageCacheTTL time.Duration `yaml:"page_cache_ttl"`
	} `yaml:"upstream"`
	Push struct {
		URL               string        `yaml:"url"`
		ReconnectAttempts int           `yaml:"reconnect_attempts"`
		ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
		PingInterval      time.Duration `yaml:"ping_interval"`
		// "replace" means the server swaps the watched set on each
		// subscribe; "union" means it accumulates, so an unsubscribe
		// must precede each resubscribe.
		ResubscribeMode string `yaml:"resubscribe_mode"`
	} `yaml:"push"`
	Watch struct {
		Assets []Asset `yaml:"assets"`
	} `yaml:"watch"`
	Feed struct {
		ThrottleRPS float64 `yaml:"throttle_rps"`
		BufferSize  int     `yaml:"buffer_size"`
	} `yaml:"feed"`
	Archive struct {
		Backend      string        `yaml:"backend"`
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
	} `yaml:"archive"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Cache struct {
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
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

	// Override with environment variables
	if v := os.Getenv("UPSTREAM_BASE_URL"); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := os.Getenv("AUTH_TOKEN"); v != "" {
		c.Upstream.AuthToken = v
	}
	if v := os.Getenv("PUSH_URL"); v != "" {
		c.Push.URL = v
	}
	if v := os.Getenv("ASSETS"); v != "" {
		c.Watch.Assets = parseAssets(v)
	}
	if v := os.Getenv("ARCHIVE_BACKEND"); v != "" {
		c.Archive.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}

	return c, nil
}

// parseAssets parses "id:SYMBOL,id:SYMBOL" pairs. Entries missing
// either half are skipped.
func parseAssets(s string) []Asset {
	parts := strings.Split(s, ",")
	assets := make([]Asset, 0, len(parts))
	for _, p := range parts {
		id, symbol, ok := strings.Cut(strings.TrimSpace(p), ":")
		if !ok || id == "" || symbol == "" {
			continue
		}
		assets = append(assets, Asset{ID: id, Symbol: symbol})
	}
	return assets
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if c.Push.URL == "" {
		return fmt.Errorf("push.url is required")
	}
	switch c.Archive.Backend {
	case "", "none", "kafka", "clickhouse":
	default:
		return fmt.Errorf("archive.backend must be 'none', 'kafka' or 'clickhouse', got '%s'", c.Archive.Backend)
	}
	switch c.Push.ResubscribeMode {
	case "", "replace", "union":
	default:
		return fmt.Errorf("push.resubscribe_mode must be 'replace' or 'union', got '%s'", c.Push.ResubscribeMode)
	}
	return nil
}
