package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config is the root configuration for the indago engine. Values are layered:
// defaults, then each config file in order, then INDAGO_* environment
// variables, then command-line flags.
type Config struct {
	Environment string           `toml:"environment"`
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Queue       QueueConfig      `toml:"queue"`
	Logging     LoggingConfig    `toml:"logging"`
	Fetcher     FetcherConfig    `toml:"fetcher"`
	Extractor   ExtractorConfig  `toml:"extractor"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
	Scoring     ScoringConfig    `toml:"scoring"`
	Media       MediaConfig      `toml:"media"`
	LLM         LLMConfig        `toml:"llm"`
	Claude      ClaudeConfig     `toml:"claude"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Adapters    AdaptersConfig   `toml:"adapters"`
	Heuristics  HeuristicsConfig `toml:"heuristics"`
	WebSocket   WebSocketConfig  `toml:"websocket"`
	Cron        CronConfig       `toml:"cron"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
}

type StorageConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

type QueueConfig struct {
	Name              string        `toml:"name"`
	PollInterval      time.Duration `toml:"poll_interval"`
	VisibilityTimeout time.Duration `toml:"visibility_timeout"`
	MaxReceive        int           `toml:"max_receive" validate:"gte=1"`
	Concurrency       int           `toml:"concurrency" validate:"gte=1"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Output     []string `toml:"output"` // "stdout", "file"
	TimeFormat string   `toml:"time_format"`
}

// FetcherConfig bounds outbound HTTP traffic. The retryable status list is
// the complete retry map: a status present here is retried under the backoff
// policy, everything else is a permanent outcome for the attempt.
type FetcherConfig struct {
	UserAgent            string        `toml:"user_agent"`
	AcceptLanguage       string        `toml:"accept_language"`
	MaxConcurrentGlobal  int           `toml:"max_concurrent_global" validate:"gte=1"`
	MaxConcurrentPerHost int           `toml:"max_concurrent_per_host" validate:"gte=1"`
	MinDelayPerHost      time.Duration `toml:"min_delay_per_host"`
	Timeout              time.Duration `toml:"timeout"`
	MaxBytes             int64         `toml:"max_bytes" validate:"gte=1024"`
	FollowRedirects      bool          `toml:"follow_redirects"`
	MaxRedirects         int           `toml:"max_redirects" validate:"gte=0"`
	RetryAttempts        int           `toml:"retry_attempts" validate:"gte=1"`
	BackoffBase          time.Duration `toml:"backoff_base"`
	BackoffMax           time.Duration `toml:"backoff_max"`
	RetryableStatusCodes []int         `toml:"retryable_status_codes"`
}

type ExtractorConfig struct {
	MinReadableChars        int  `toml:"min_readable_chars" validate:"gte=1"`
	EnableArchiveFallback   bool `toml:"enable_archive_fallback"`
	EnableHeuristicFallback bool `toml:"enable_heuristic_fallback"`
}

type SchedulerConfig struct {
	WaveSizeLimit     int           `toml:"wave_size_limit" validate:"gte=1"`
	PerJobConcurrency int           `toml:"per_job_concurrency" validate:"gte=1"`
	ProgressInterval  time.Duration `toml:"progress_interval"`
	MaxIdle           time.Duration `toml:"max_idle"`
	StaleClaim        time.Duration `toml:"stale_claim"`
	CancelGrace       time.Duration `toml:"cancel_grace"`
}

type ScoringConfig struct {
	QualityWeights         QualityWeightsConfig `toml:"quality_weights"`
	SentimentLowConfidence float64              `toml:"sentiment_low_confidence" validate:"gte=0,lte=1"`
	SentimentLanguages     []string             `toml:"sentiment_languages"`
}

type QualityWeightsConfig struct {
	Access    float64 `toml:"access" validate:"gte=0,lte=1"`
	Structure float64 `toml:"structure" validate:"gte=0,lte=1"`
	Richness  float64 `toml:"richness" validate:"gte=0,lte=1"`
	Coherence float64 `toml:"coherence" validate:"gte=0,lte=1"`
	Integrity float64 `toml:"integrity" validate:"gte=0,lte=1"`
}

type MediaConfig struct {
	MaxBytes   int64         `toml:"max_bytes" validate:"gte=1024"`
	Timeout    time.Duration `toml:"timeout"`
	ColorCount int           `toml:"color_count" validate:"gte=1,lte=16"`
}

type LLMConfig struct {
	Enabled       bool          `toml:"enabled"`
	Provider      string        `toml:"provider" validate:"oneof=claude gemini"`
	ValidationCap int           `toml:"validation_cap" validate:"gte=0"`
	ReadableChars int           `toml:"readable_chars" validate:"gte=100"`
	Timeout       time.Duration `toml:"timeout"`
}

type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens" validate:"gte=1"`
}

type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

type AdaptersConfig struct {
	Archive ArchiveAdapterConfig `toml:"archive"`
	Search  SearchAdapterConfig  `toml:"search"`
	SEORank SEORankAdapterConfig `toml:"seorank"`
}

type ArchiveAdapterConfig struct {
	Endpoint string        `toml:"endpoint"`
	Timeout  time.Duration `toml:"timeout"`
}

type SearchAdapterConfig struct {
	Endpoint string        `toml:"endpoint"`
	APIKey   string        `toml:"api_key"`
	Engine   string        `toml:"engine"`
	Timeout  time.Duration `toml:"timeout"`
}

type SEORankAdapterConfig struct {
	Endpoint         string        `toml:"endpoint"`
	APIKey           string        `toml:"api_key"`
	Timeout          time.Duration `toml:"timeout"`
	RequestDelay     time.Duration `toml:"request_delay"`
	BreakerThreshold int           `toml:"breaker_threshold" validate:"gte=1"`
}

// HeuristicsConfig carries the host-pattern rewrite rules applied during URL
// canonicalization. Rules can be declared inline or loaded from a YAML file;
// file rules override inline rules with the same pattern.
type HeuristicsConfig struct {
	RulesFile      string                   `toml:"rules_file"`
	Rules          map[string]RewriteConfig `toml:"rules"`
	DenyHosts      []string                 `toml:"deny_hosts"`
	TrackingParams []string                 `toml:"tracking_params"`
}

type RewriteConfig struct {
	Match    string `toml:"match" yaml:"match"`
	Template string `toml:"template" yaml:"template"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `toml:"ping_interval"`
	WriteTimeout time.Duration `toml:"write_timeout"`
}

type CronConfig struct {
	Entries []CronEntryConfig `toml:"entries"`
}

type CronEntryConfig struct {
	Schedule string `toml:"schedule"`
	Kind     string `toml:"kind"`
	LandID   string `toml:"land_id"`
	Enabled  bool   `toml:"enabled"`
}

// NewDefaultConfig returns the built-in defaults. Every layered load starts
// from here so a missing file or key never leaves a zero value behind.
func NewDefaultConfig() *Config {
	retryable := []int{408, 429}
	for code := 500; code <= 511; code++ {
		retryable = append(retryable, code)
	}

	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "localhost",
			Port: 8085,
		},
		Storage: StorageConfig{
			Path:           "./data/indago",
			ResetOnStartup: false,
		},
		Queue: QueueConfig{
			Name:              "jobs",
			PollInterval:      1 * time.Second,
			VisibilityTimeout: 5 * time.Minute,
			MaxReceive:        3,
			Concurrency:       2,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Fetcher: FetcherConfig{
			UserAgent:            "Mozilla/5.0 (compatible; indago/1.0; +https://github.com/ternarybob/indago)",
			AcceptLanguage:       "en-US,en;q=0.9,fr;q=0.8",
			MaxConcurrentGlobal:  16,
			MaxConcurrentPerHost: 2,
			MinDelayPerHost:      1 * time.Second,
			Timeout:              30 * time.Second,
			MaxBytes:             10 * 1024 * 1024,
			FollowRedirects:      true,
			MaxRedirects:         5,
			RetryAttempts:        3,
			BackoffBase:          500 * time.Millisecond,
			BackoffMax:           30 * time.Second,
			RetryableStatusCodes: retryable,
		},
		Extractor: ExtractorConfig{
			MinReadableChars:        400,
			EnableArchiveFallback:   true,
			EnableHeuristicFallback: true,
		},
		Scheduler: SchedulerConfig{
			WaveSizeLimit:     1000,
			PerJobConcurrency: 8,
			ProgressInterval:  250 * time.Millisecond,
			MaxIdle:           10 * time.Minute,
			StaleClaim:        15 * time.Minute,
			CancelGrace:       30 * time.Second,
		},
		Scoring: ScoringConfig{
			QualityWeights: QualityWeightsConfig{
				Access:    0.30,
				Structure: 0.15,
				Richness:  0.25,
				Coherence: 0.20,
				Integrity: 0.10,
			},
			SentimentLowConfidence: 0.4,
			SentimentLanguages:     []string{"en", "fr"},
		},
		Media: MediaConfig{
			MaxBytes:   5 * 1024 * 1024,
			Timeout:    20 * time.Second,
			ColorCount: 5,
		},
		LLM: LLMConfig{
			Enabled:       false,
			Provider:      "claude",
			ValidationCap: 100,
			ReadableChars: 1500,
			Timeout:       60 * time.Second,
		},
		Claude: ClaudeConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 1024,
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.0-flash",
		},
		Adapters: AdaptersConfig{
			Archive: ArchiveAdapterConfig{
				Endpoint: "https://archive.org/wayback/available",
				Timeout:  30 * time.Second,
			},
			Search: SearchAdapterConfig{
				Engine:  "google",
				Timeout: 30 * time.Second,
			},
			SEORank: SEORankAdapterConfig{
				Timeout:          30 * time.Second,
				RequestDelay:     1 * time.Second,
				BreakerThreshold: 5,
			},
		},
		Heuristics: HeuristicsConfig{
			Rules: map[string]RewriteConfig{},
			TrackingParams: []string{
				"utm_source", "utm_medium", "utm_campaign", "utm_term",
				"utm_content", "gclid", "fbclid", "mc_cid", "mc_eid", "ref",
			},
		},
		WebSocket: WebSocketConfig{
			PingInterval: 30 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Cron: CronConfig{},
	}
}

// LoadFromFiles builds the effective configuration: defaults, then each file
// in order (later files override earlier ones), then environment overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	cfg := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the merged configuration with struct-level rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ApplyFlagOverrides applies command-line values. Flags are the last layer
// and win over files and environment.
func ApplyFlagOverrides(cfg *Config, port int, host string) {
	if port != 0 {
		cfg.Server.Port = port
	}
	if host != "" {
		cfg.Server.Host = host
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INDAGO_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("INDAGO_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("INDAGO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("INDAGO_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("INDAGO_USER_AGENT"); v != "" {
		cfg.Fetcher.UserAgent = v
	}
	if v := os.Getenv("INDAGO_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("INDAGO_CLAUDE_API_KEY"); v != "" {
		cfg.Claude.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Claude.APIKey == "" {
		cfg.Claude.APIKey = v
	}
	if v := os.Getenv("INDAGO_GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("INDAGO_SEARCH_API_KEY"); v != "" {
		cfg.Adapters.Search.APIKey = v
	}
	if v := os.Getenv("INDAGO_SEORANK_API_KEY"); v != "" {
		cfg.Adapters.SEORank.APIKey = v
	}
}

// IsDevelopment returns true when running in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
