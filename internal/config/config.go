// Package config loads the teller configuration: a YAML file with ${VAR}
// expansion, a .env file and TELLER_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Transports accepted by dispatch.transport.
const (
	TransportStdio     = "stdio"
	TransportHTTP      = "http"
	TransportProcess   = "process"
	TransportInProcess = "inprocess"
)

// Slot store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

type Config struct {
	Log          LogConfig          `yaml:"log"`
	Model        ModelConfig        `yaml:"model"`
	Conversation ConversationConfig `yaml:"conversation"`
	Slots        SlotsConfig        `yaml:"slots"`
	Redis        RedisConfig        `yaml:"redis"`
	Postgres     PostgresConfig     `yaml:"postgres"`
	Dispatch     DispatchConfig     `yaml:"dispatch"`
	Server       ServerConfig       `yaml:"server"`
	Tools        ToolsConfig        `yaml:"tools"`
}

type LogConfig struct {
	Level  string   `yaml:"level"`
	Format string   `yaml:"format"` // "text" or "json"
	Mask   []string `yaml:"mask"`   // Argument keys never logged in clear
}

type ModelConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Name        string        `yaml:"name"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	ToolCalling bool          `yaml:"tool_calling"` // false selects marker mode
}

type ConversationConfig struct {
	DefaultLanguage string        `yaml:"default_language"`
	HistoryTurns    int           `yaml:"history_turns"`
	MaxInputBytes   int           `yaml:"max_input_bytes"`
	IdentityKey     string        `yaml:"identity_key"`
	Reformat        bool          `yaml:"reformat"`
	ReformatTimeout time.Duration `yaml:"reformat_timeout"`
	Catalog         string        `yaml:"catalog"` // Empty uses the embedded catalog
}

type SlotsConfig struct {
	Backend        string        `yaml:"backend"`
	TTL            time.Duration `yaml:"ttl"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	EncryptionKeys []string      `yaml:"encryption_keys"` // base64, first is active
	Dir            string        `yaml:"dir"`             // File backend only
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	LockTTL  time.Duration `yaml:"lock_ttl"` // Renewed while held; bounds a crashed replica's lock
}

type PostgresConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

type DispatchConfig struct {
	Transport    string        `yaml:"transport"`
	Timeout      time.Duration `yaml:"timeout"`
	Command      string        `yaml:"command"`
	Args         []string      `yaml:"args"`
	Env          []string      `yaml:"env"`
	URL          string        `yaml:"url"`
	ToolsFile    string        `yaml:"tools_file"`
	MaxFailures  uint32        `yaml:"max_failures"`
	BreakerReset time.Duration `yaml:"breaker_reset"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	Metrics     bool     `yaml:"metrics"`
	RateLimit   int      `yaml:"rate_limit"` // Chat messages per identity per minute, 0 disables
	RateBurst   int      `yaml:"rate_burst"`
}

type ToolsConfig struct {
	Addr string `yaml:"addr"` // Empty serves MCP over stdio
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Model: ModelConfig{
			Name:        "gpt-4o-mini",
			Temperature: 0.2,
			MaxTokens:   1024,
			Timeout:     60 * time.Second,
			ToolCalling: true,
		},
		Conversation: ConversationConfig{
			DefaultLanguage: "ky",
			HistoryTurns:    2,
			MaxInputBytes:   4096,
			IdentityKey:     "user_id",
			Reformat:        true,
			ReformatTimeout: 30 * time.Second,
		},
		Slots: SlotsConfig{
			Backend:       BackendMemory,
			TTL:           10 * time.Minute,
			SweepInterval: time.Minute,
		},
		Redis: RedisConfig{Addr: "localhost:6379", Prefix: "teller:", LockTTL: 30 * time.Second},
		Dispatch: DispatchConfig{
			Transport:    TransportStdio,
			Timeout:      15 * time.Second,
			Command:      "teller",
			Args:         []string{"tools"},
			MaxFailures:  5,
			BreakerReset: 30 * time.Second,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"*"},
			Metrics:     true,
			RateLimit:   30,
			RateBurst:   5,
		},
	}
}

// Load reads path over the defaults. An empty path, or a missing file, yields
// the defaults. A .env file in the working directory is loaded first and
// never overrides variables already set.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := os.LookupEnv(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	set(&c.Model.APIKey, "TELLER_MODEL_API_KEY", "OPENAI_API_KEY")
	set(&c.Model.BaseURL, "TELLER_MODEL_BASE_URL")
	set(&c.Model.Name, "TELLER_MODEL_NAME")
	set(&c.Log.Level, "TELLER_LOG_LEVEL")
	if v := os.Getenv("TELLER_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Slots.Backend = BackendRedis
	}
	if v := os.Getenv("TELLER_DATABASE_URL"); v != "" {
		c.Postgres.DSN = v
		c.Slots.Backend = BackendPostgres
	}
	if v := os.Getenv("TELLER_SLOTS_KEY"); v != "" {
		c.Slots.EncryptionKeys = append([]string{v}, c.Slots.EncryptionKeys...)
	}
}

// Validate checks enumerations and bounds.
func (c *Config) Validate() error {
	var errs []error
	switch c.Dispatch.Transport {
	case TransportStdio:
		if c.Dispatch.Command == "" {
			errs = append(errs, errors.New("dispatch.command is required for stdio transport"))
		}
	case TransportHTTP:
		if c.Dispatch.URL == "" {
			errs = append(errs, errors.New("dispatch.url is required for http transport"))
		}
	case TransportProcess:
		if c.Dispatch.ToolsFile == "" {
			errs = append(errs, errors.New("dispatch.tools_file is required for process transport"))
		}
	case TransportInProcess:
	default:
		errs = append(errs, fmt.Errorf("unknown dispatch.transport %q", c.Dispatch.Transport))
	}
	switch c.Slots.Backend {
	case BackendMemory, BackendFile:
	case BackendRedis:
		if c.Redis.LockTTL <= 0 {
			errs = append(errs, errors.New("redis.lock_ttl must be positive"))
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for postgres slots"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown slots.backend %q", c.Slots.Backend))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}
	if c.Dispatch.Timeout <= 0 {
		errs = append(errs, errors.New("dispatch.timeout must be positive"))
	}
	if c.Conversation.HistoryTurns < 0 {
		errs = append(errs, errors.New("conversation.history_turns must not be negative"))
	}
	if c.Conversation.MaxInputBytes <= 0 {
		errs = append(errs, errors.New("conversation.max_input_bytes must be positive"))
	}
	return errors.Join(errs...)
}
