package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"TIKR/pkg/util"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Predictor struct {
		BaseURL     string        `yaml:"base_url"`
		Timeout     time.Duration `yaml:"timeout"`
		MaxAttempts int           `yaml:"max_attempts"`
	} `yaml:"predictor"`
	Redis struct {
		Addr         string        `yaml:"addr"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		PoolSize     int           `yaml:"pool_size"`
		MinIdleConns int           `yaml:"min_idle_conns"`
		PoolTimeout  time.Duration `yaml:"pool_timeout"`
		Prefix       string        `yaml:"prefix"`
	} `yaml:"redis"`
	Cache struct {
		Validity      time.Duration `yaml:"validity"`
		StalenessHint time.Duration `yaml:"staleness_hint"`
		MemorySize    int           `yaml:"memory_size"`
	} `yaml:"cache"`
	Refresh struct {
		Enabled  bool          `yaml:"enabled"`
		Interval time.Duration `yaml:"interval"`
		Tickers  []string      `yaml:"tickers"`
	} `yaml:"refresh"`
	History struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"history"`
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
	Events struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		MaxAttempts  int           `yaml:"max_attempts"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		BatchSize    int           `yaml:"batch_size"`
		BatchBytes   int           `yaml:"batch_bytes"`
		Linger       time.Duration `yaml:"linger"`
		Async        bool          `yaml:"async"`
	} `yaml:"events"`
	WebSocket struct {
		Enabled    bool `yaml:"enabled"`
		BufferSize int  `yaml:"buffer_size"`
	} `yaml:"websocket"`
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

	c.applyDefaults()

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
	if v := os.Getenv("PREDICTOR_URL"); v != "" {
		c.Predictor.BaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("TICKERS"); v != "" {
		c.Refresh.Tickers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Events.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := os.Getenv("WEBSOCKET_ENABLED"); v != "" {
		c.WebSocket.Enabled = util.ParseBoolDefault(v, c.WebSocket.Enabled)
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Predictor.Timeout == 0 {
		c.Predictor.Timeout = 30 * time.Second
	}
	if c.Predictor.MaxAttempts == 0 {
		c.Predictor.MaxAttempts = 3
	}
	if c.Cache.Validity == 0 {
		c.Cache.Validity = 24 * time.Hour
	}
	if c.Cache.StalenessHint == 0 {
		c.Cache.StalenessHint = time.Hour
	}
	if c.Cache.MemorySize == 0 {
		c.Cache.MemorySize = 1000
	}
	if c.Refresh.Interval == 0 {
		c.Refresh.Interval = time.Hour
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "tikr"
	}
	if c.Events.Compression == "" {
		c.Events.Compression = "gzip"
	}
	if c.Events.MaxAttempts == 0 {
		c.Events.MaxAttempts = 3
	}
	if c.Events.WriteTimeout == 0 {
		c.Events.WriteTimeout = 10 * time.Second
	}
	if c.Events.ReadTimeout == 0 {
		c.Events.ReadTimeout = 10 * time.Second
	}
	if c.Events.BatchSize == 0 {
		c.Events.BatchSize = 100
	}
	if c.Events.BatchBytes == 0 {
		c.Events.BatchBytes = 1 << 20
	}
	if c.Events.Linger == 0 {
		c.Events.Linger = time.Second
	}
	if c.WebSocket.BufferSize == 0 {
		c.WebSocket.BufferSize = 256
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Predictor.BaseURL == "" {
		return fmt.Errorf("predictor.base_url is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Refresh.Enabled && len(c.Refresh.Tickers) == 0 {
		return fmt.Errorf("refresh.tickers cannot be empty when refresh is enabled")
	}
	if c.Events.Enabled {
		if len(c.Events.Brokers) == 0 {
			return fmt.Errorf("events.brokers are required when events are enabled")
		}
		if c.Events.Topic == "" {
			return fmt.Errorf("events.topic is required when events are enabled")
		}
	}
	if c.History.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when history is enabled")
	}
	if c.Cache.StalenessHint > c.Cache.Validity {
		return fmt.Errorf("cache.staleness_hint must not exceed cache.validity")
	}
	return nil
}
