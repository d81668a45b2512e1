// Package config loads assistant settings from defaults, an optional YAML
// file, and ASSISTANT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Classifier   ClassifierConfig   `mapstructure:"classifier"`
	Embedder     EmbedderConfig     `mapstructure:"embedder"`
	Capabilities CapabilitiesConfig `mapstructure:"capabilities"`
	Confirmation ConfirmationConfig `mapstructure:"confirmation"`
	Speech       SpeechConfig       `mapstructure:"speech"`
	Dispatch     DispatchConfig     `mapstructure:"dispatch"`
	Audit        AuditConfig        `mapstructure:"audit"`
	Log          LogConfig          `mapstructure:"log"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

// ClassifierConfig sets arbitration thresholds
type ClassifierConfig struct {
	HighConfidence float64 `mapstructure:"high_confidence"`
	SemanticMin    float64 `mapstructure:"semantic_min"` // the hash backend never accepts below embed.HashMinConfidence
	Speculative    bool    `mapstructure:"speculative"`
	Lexicon        string  `mapstructure:"lexicon"` // optional YAML extending the built-in lexicon
}

// EmbedderConfig selects the semantic embedding backend
type EmbedderConfig struct {
	Backend   string        `mapstructure:"backend"` // hash, grpc
	Addr      string        `mapstructure:"addr"`
	Dimension int           `mapstructure:"dimension"`
	CacheSize int           `mapstructure:"cache_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// CapabilitiesConfig points at the capability table
type CapabilitiesConfig struct {
	Path string `mapstructure:"path"` // empty uses the embedded default
}

// ConfirmationConfig configures the confirmation gate
type ConfirmationConfig struct {
	Provider string        `mapstructure:"provider"` // manual, voice
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SpeechConfig configures spoken output
type SpeechConfig struct {
	Command string   `mapstructure:"command"` // e.g. espeak; empty prints to the console
	Args    []string `mapstructure:"args"`
}

// DispatchConfig configures handler execution
type DispatchConfig struct {
	Timeout   time.Duration     `mapstructure:"timeout"`
	Apps      map[string]string `mapstructure:"apps"`
	Opener    string            `mapstructure:"opener"`
	Player    string            `mapstructure:"player"`
	SearchURL string            `mapstructure:"search_url"`
	VideoURL  string            `mapstructure:"video_url"`
	Browser   []string          `mapstructure:"browser"` // tried before opener for video links
}

// AuditConfig selects and configures the audit sink
type AuditConfig struct {
	Sink         string        `mapstructure:"sink"` // sqlite, redis, memory
	Path         string        `mapstructure:"path"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	FallbackPath string        `mapstructure:"fallback_path"` // empty writes to stderr
	Redis        RedisConfig   `mapstructure:"redis"`
}

// RedisConfig addresses the Redis audit stream
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
}

// LogConfig configures diagnostic logging
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    string `mapstructure:"file"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("classifier.high_confidence", 0.8)
	v.SetDefault("classifier.semantic_min", 0.83)
	v.SetDefault("classifier.speculative", false)
	v.SetDefault("classifier.lexicon", "")

	v.SetDefault("embedder.backend", "hash")
	v.SetDefault("embedder.addr", "127.0.0.1:50551")
	v.SetDefault("embedder.dimension", 256)
	v.SetDefault("embedder.cache_size", 512)
	v.SetDefault("embedder.timeout", "2s")

	v.SetDefault("capabilities.path", "")

	v.SetDefault("confirmation.provider", "manual")
	v.SetDefault("confirmation.timeout", "10s")

	v.SetDefault("speech.command", "")
	v.SetDefault("speech.args", []string{})

	v.SetDefault("dispatch.timeout", "5s")
	v.SetDefault("dispatch.apps", map[string]string{
		"firefox":  "firefox",
		"browser":  "firefox",
		"chrome":   "google-chrome",
		"code":     "code",
		"vscode":   "code",
		"terminal": "gnome-terminal",
	})
	v.SetDefault("dispatch.opener", "xdg-open")
	v.SetDefault("dispatch.player", "playerctl")
	v.SetDefault("dispatch.search_url", "https://www.google.com/search?q=")
	v.SetDefault("dispatch.video_url", "https://www.youtube.com/results?search_query=")
	v.SetDefault("dispatch.browser", []string{"brave-browser", "--new-window"})

	v.SetDefault("audit.sink", "sqlite")
	v.SetDefault("audit.path", "assistant_audit.db")
	v.SetDefault("audit.write_timeout", "2s")
	v.SetDefault("audit.fallback_path", "")
	v.SetDefault("audit.redis.addr", "127.0.0.1:6379")
	v.SetDefault("audit.redis.password", "")
	v.SetDefault("audit.redis.db", 0)
	v.SetDefault("audit.redis.stream", "assistant:audit")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", "")

	v.SetDefault("metrics.addr", "")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ASSISTANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration. An empty path searches ./assistant.yaml and
// carries on with defaults if none exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("assistant")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteDefault writes the default configuration as YAML to path.
func WriteDefault(path string) error {
	v := newViper()
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the assistant cannot run with.
func (c *Config) Validate() error {
	var errs []error
	unit := func(name string, x float64) {
		if x < 0 || x > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", name, x))
		}
	}
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	unit("classifier.high_confidence", c.Classifier.HighConfidence)
	unit("classifier.semantic_min", c.Classifier.SemanticMin)
	positive("embedder.timeout", c.Embedder.Timeout)
	positive("confirmation.timeout", c.Confirmation.Timeout)
	positive("dispatch.timeout", c.Dispatch.Timeout)
	positive("audit.write_timeout", c.Audit.WriteTimeout)

	switch c.Embedder.Backend {
	case "hash", "grpc":
	default:
		errs = append(errs, fmt.Errorf("embedder.backend %q is not hash or grpc", c.Embedder.Backend))
	}
	if c.Embedder.Dimension < 16 {
		errs = append(errs, fmt.Errorf("embedder.dimension must be at least 16, got %d", c.Embedder.Dimension))
	}
	if c.Embedder.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("embedder.cache_size must not be negative"))
	}
	switch c.Confirmation.Provider {
	case "manual", "voice":
	default:
		errs = append(errs, fmt.Errorf("confirmation.provider %q is not manual or voice", c.Confirmation.Provider))
	}
	switch c.Audit.Sink {
	case "sqlite", "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("audit.sink %q is not sqlite, redis or memory", c.Audit.Sink))
	}
	if c.Audit.Sink == "sqlite" && c.Audit.Path == "" {
		errs = append(errs, errors.New("audit.path is required for the sqlite sink"))
	}
	return errors.Join(errs...)
}
