package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config captures the settings required to boot the diagnostics service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	MCP       MCPConfig       `yaml:"mcp"`
	Logging   LoggingConfig   `yaml:"logging"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Session   SessionConfig   `yaml:"session"`
	Cache     CacheConfig     `yaml:"cache"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ServerConfig controls the gRPC listener and the HTTP gateway.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	HTTPAddress     string        `yaml:"httpAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	Reflection      bool          `yaml:"reflection"`
}

// MCPConfig controls the Model Context Protocol tool server.
type MCPConfig struct {
	Transport string `yaml:"transport"`
	Address   string `yaml:"address"`
	Path      string `yaml:"path"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// KnowledgeConfig points at the knowledge-base table. An empty path uses the
// built-in table.
type KnowledgeConfig struct {
	Path     string        `yaml:"path"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// SessionConfig selects where conversation state lives.
type SessionConfig struct {
	Backend     string        `yaml:"backend"`
	MaxSessions int           `yaml:"maxSessions"`
	TTL         time.Duration `yaml:"ttl"`
	KeyPrefix   string        `yaml:"keyPrefix"`
}

// CacheConfig controls the Valkey connection used by the cache session backend.
type CacheConfig struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	PoolSize     int           `yaml:"poolSize"`
	TLS          bool          `yaml:"tls"`
}

// AnalysisConfig holds defaults applied when a request omits a parameter.
type AnalysisConfig struct {
	ControlLimitSigma float64 `yaml:"controlLimitSigma"`
	WindowSize        int     `yaml:"windowSize"`
	StdDevThreshold   float64 `yaml:"stdDevThreshold"`
	MaxWhyDepth       int     `yaml:"maxWhyDepth"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"serviceName"`
	SampleRatio float64 `yaml:"sampleRatio"`
}

const (
	// SessionBackendMemory keeps sessions in process.
	SessionBackendMemory = "memory"
	// SessionBackendValkey keeps sessions in Valkey/Redis.
	SessionBackendValkey = "valkey"
)

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_YIELD_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Session.Backend {
	case SessionBackendMemory:
	case SessionBackendValkey:
		if c.Cache.Addr == "" {
			return errors.New("session backend valkey requires cache.addr")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	switch c.MCP.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("unknown mcp transport %q", c.MCP.Transport)
	}
	if c.Analysis.ControlLimitSigma <= 0 {
		return errors.New("analysis.controlLimitSigma must be positive")
	}
	if c.Analysis.WindowSize < 2 {
		return errors.New("analysis.windowSize must be at least 2")
	}
	if c.Analysis.StdDevThreshold < 0 {
		return errors.New("analysis.stdDevThreshold cannot be negative")
	}
	if c.Analysis.MaxWhyDepth < 1 {
		return errors.New("analysis.maxWhyDepth must be at least 1")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return errors.New("tracing.sampleRatio must be within [0, 1]")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			HTTPAddress:     ":8080",
			GracefulTimeout: 10 * time.Second,
			Reflection:      true,
		},
		MCP:       MCPConfig{Transport: "stdio", Address: ":8090", Path: "/mcp"},
		Logging:   LoggingConfig{Level: "info", JSON: false},
		Knowledge: KnowledgeConfig{Debounce: 500 * time.Millisecond},
		Session: SessionConfig{
			Backend:     SessionBackendMemory,
			MaxSessions: 1024,
			TTL:         2 * time.Hour,
			KeyPrefix:   "mirador-yield:session:",
		},
		Cache: CacheConfig{
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			PoolSize:     10,
		},
		Analysis: AnalysisConfig{
			ControlLimitSigma: 3.0,
			WindowSize:        5,
			StdDevThreshold:   2.0,
			MaxWhyDepth:       5,
		},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4317",
			Insecure:    true,
			ServiceName: "mirador-yield",
			SampleRatio: 1.0,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRADOR_YIELD_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("MIRADOR_YIELD_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("MIRADOR_YIELD_GRACEFUL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.GracefulTimeout = d
		}
	}
	if v := os.Getenv("MIRADOR_YIELD_MCP_TRANSPORT"); v != "" {
		cfg.MCP.Transport = strings.ToLower(v)
	}
	if v := os.Getenv("MIRADOR_YIELD_MCP_ADDRESS"); v != "" {
		cfg.MCP.Address = v
	}
	if v := os.Getenv("MIRADOR_YIELD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIRADOR_YIELD_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("MIRADOR_YIELD_KNOWLEDGE_PATH"); v != "" {
		cfg.Knowledge.Path = v
	}
	if v := os.Getenv("MIRADOR_YIELD_KNOWLEDGE_WATCH"); v != "" {
		cfg.Knowledge.Watch = truthy(v)
	}
	if v := os.Getenv("MIRADOR_YIELD_SESSION_BACKEND"); v != "" {
		cfg.Session.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("MIRADOR_YIELD_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.TTL = d
		}
	}
	if v := os.Getenv("MIRADOR_YIELD_SESSION_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Session.MaxSessions = n
		}
	}
	if v := os.Getenv("MIRADOR_YIELD_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("MIRADOR_YIELD_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("MIRADOR_YIELD_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("MIRADOR_YIELD_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("MIRADOR_YIELD_CACHE_TLS"); truthy(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("MIRADOR_YIELD_CACHE_DIAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.DialTimeout = d
		}
	}
	if v := os.Getenv("MIRADOR_YIELD_CACHE_MAX_RETRIES"); v != "" {
		if retry, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxRetries = retry
		}
	}
	if v := os.Getenv("MIRADOR_YIELD_TRACING_ENABLED"); v != "" {
		cfg.Tracing.Enabled = truthy(v)
	}
	if v := os.Getenv("MIRADOR_YIELD_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
}

func truthy(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
