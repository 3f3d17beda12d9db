package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/subs-ai/internal/llm"
	"github.com/MimeLyc/subs-ai/internal/persistence"
	"github.com/MimeLyc/subs-ai/pkg/icron"
	"github.com/MimeLyc/subs-ai/pkg/log"
	"github.com/joho/godotenv"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// EnvFile is the dotenv file read from the home directory before the
// environment. Variables already set in the environment win.
const EnvFile = ".subs-ai.env"

// Config holds all application configuration.
//
// Environment Variables:
// Provider:
// - OPENAI_API_KEY: API key (required unless the local server is used)
// - LLM_API_URL: OpenAI compatible endpoint (default: https://api.openai.com/v1)
// - AI_MODEL: model name, also selects the tokenizer (default: gpt-4o-mini)
// - LLM_TIMEOUT: request timeout in seconds (default: 120)
//
// Translation:
// - MAX_TOKENS: token budget per request group (default: 4000)
// - TARGET_LANGUAGE: language name used in the prompt (default: derived from the alias)
// - TARGET_LANGUAGE_ALIAS: comma separated subtitle language tags, the first names the output file (required)
// - EXTRA_SPECIFICATION: text appended to the system prompt
// - TOKENIZER: "tiktoken" or "approx" (default: tiktoken)
//
// State:
// - STATE_DIR: directory for jobs, translations and errors (default: ~/.subs-ai)
// - STATE_BACKEND: "json" or "sqlite" (default: json)
//
// Runtime:
// - POLL_INTERVAL: wait between batch polls (default: 30s)
// - QUARANTINE_THRESHOLD: mismatches before a request is logged (default: 10)
// - SYNC_CONCURRENCY: parallel requests in sync mode (default: 10)
// - SYNC_MAX_ATTEMPTS: attempts per request in sync mode (default: 3)
// - LOCAL_SERVER_URL: local translation server (default: http://localhost:45313)
// - CRON_EXPR: watch mode schedule (default: 0 * * * *)
// - LOG_LEVEL: debug, info, warn or error (default: info)
type Config struct {
	LLM       LLMConfig       `json:"llm"`
	Translate TranslateConfig `json:"translate"`
	State     StateConfig     `json:"state"`
	Runtime   RuntimeConfig   `json:"runtime"`
}

// LLMConfig holds the provider client configuration.
type LLMConfig struct {
	APIKey  string `json:"-"`
	APIURL  string `json:"api_url"`
	Model   string `json:"model"`
	Timeout int    `json:"timeout"`
}

type TranslateConfig struct {
	MaxTokens      int          `json:"max_tokens"`
	TargetLanguage string       `json:"target_language"`
	TargetAliases  []string     `json:"target_aliases"`
	TargetTag      language.Tag `json:"target_tag"`
	Extra          string       `json:"extra_specification"`
	Tokenizer      string       `json:"tokenizer"`
	IgnoreExisting bool         `json:"ignore_existing"`
}

type StateConfig struct {
	Dir     string `json:"dir"`
	Backend string `json:"backend"`
}

type RuntimeConfig struct {
	PollInterval        time.Duration `json:"poll_interval"`
	QuarantineThreshold int           `json:"quarantine_threshold"`
	SyncConcurrency     int           `json:"sync_concurrency"`
	SyncMaxAttempts     int           `json:"sync_max_attempts"`
	LocalServerURL      string        `json:"local_server_url"`
	CronExpr            string        `json:"cron_expr"`
	LogLevel            string        `json:"log_level"`
	Sync                bool          `json:"sync"`
	Local               bool          `json:"local"`
}

// Option is a function type for configuring Config
type Option func(*Config)

func WithDebug(debug bool) Option {
	return func(c *Config) {
		if debug {
			c.Runtime.LogLevel = "debug"
		}
	}
}

// WithSync translates synchronously instead of through the batch API.
func WithSync(sync bool) Option {
	return func(c *Config) { c.Runtime.Sync = sync }
}

// WithLocal sends every request to the local translation server. Local
// requests are always synchronous.
func WithLocal(local bool) Option {
	return func(c *Config) {
		c.Runtime.Local = local
		if local {
			c.Runtime.Sync = true
		}
	}
}

func WithIgnoreExisting(ignore bool) Option {
	return func(c *Config) { c.Translate.IgnoreExisting = ignore }
}

func WithStateDir(dir string) Option {
	return func(c *Config) { c.State.Dir = dir }
}

// LoadEnvFile loads ~/.subs-ai.env when present.
func LoadEnvFile() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	path := filepath.Join(home, EnvFile)
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		LLM: LLMConfig{
			APIKey:  getEnvString("OPENAI_API_KEY", ""),
			APIURL:  getEnvString("LLM_API_URL", "https://api.openai.com/v1"),
			Model:   getEnvString("AI_MODEL", "gpt-4o-mini"),
			Timeout: getEnvInt("LLM_TIMEOUT", 120),
		},
		Translate: TranslateConfig{
			MaxTokens:      getEnvInt("MAX_TOKENS", 4000),
			TargetLanguage: getEnvString("TARGET_LANGUAGE", ""),
			TargetAliases:  getEnvList("TARGET_LANGUAGE_ALIAS"),
			Extra:          getEnvString("EXTRA_SPECIFICATION", ""),
			Tokenizer:      getEnvString("TOKENIZER", "tiktoken"),
		},
		State: StateConfig{
			Dir:     getEnvString("STATE_DIR", defaultStateDir()),
			Backend: getEnvString("STATE_BACKEND", persistence.BackendJSON),
		},
		Runtime: RuntimeConfig{
			PollInterval:        getEnvDuration("POLL_INTERVAL", 30*time.Second),
			QuarantineThreshold: getEnvInt("QUARANTINE_THRESHOLD", 10),
			SyncConcurrency:     getEnvInt("SYNC_CONCURRENCY", 10),
			SyncMaxAttempts:     getEnvInt("SYNC_MAX_ATTEMPTS", 3),
			LocalServerURL:      getEnvString("LOCAL_SERVER_URL", "http://localhost:45313"),
			CronExpr:            getEnvString("CRON_EXPR", "0 * * * *"),
			LogLevel:            getEnvString("LOG_LEVEL", "info"),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	if err := config.resolveLanguage(); err != nil {
		return nil, err
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: %+v", config)
	return config, nil
}

// resolveLanguage parses the first alias into a tag and names the language
// after it when TARGET_LANGUAGE is unset.
func (c *Config) resolveLanguage() error {
	if len(c.Translate.TargetAliases) == 0 {
		return fmt.Errorf("TARGET_LANGUAGE_ALIAS is required")
	}
	tag, err := language.Parse(c.Translate.TargetAliases[0])
	if err != nil {
		return fmt.Errorf("TARGET_LANGUAGE_ALIAS %q is not a language tag: %w", c.Translate.TargetAliases[0], err)
	}
	c.Translate.TargetTag = tag
	if c.Translate.TargetLanguage == "" {
		c.Translate.TargetLanguage = display.English.Tags().Name(tag)
	}
	return nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIKey == "" && !c.Runtime.Local {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.Translate.MaxTokens <= 0 {
		return fmt.Errorf("MAX_TOKENS must be positive, got %d", c.Translate.MaxTokens)
	}
	if c.State.Dir == "" {
		return fmt.Errorf("STATE_DIR is required")
	}
	switch c.State.Backend {
	case persistence.BackendJSON, persistence.BackendSQLite:
	default:
		return fmt.Errorf("STATE_BACKEND must be %q or %q, got %q", persistence.BackendJSON, persistence.BackendSQLite, c.State.Backend)
	}
	if c.Runtime.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.Runtime.SyncConcurrency <= 0 || c.Runtime.SyncMaxAttempts <= 0 {
		return fmt.Errorf("SYNC_CONCURRENCY and SYNC_MAX_ATTEMPTS must be positive")
	}
	if err := icron.Validate(c.Runtime.CronExpr); err != nil {
		return fmt.Errorf("CRON_EXPR: %w", err)
	}
	return nil
}

// LLMClientConfig maps the provider settings onto the client configuration.
func (c *Config) LLMClientConfig() *llm.Config {
	cfg := llm.NewConfig(c.LLM.APIKey)
	cfg.APIURL = c.LLM.APIURL
	cfg.Model = c.LLM.Model
	cfg.Timeout = c.LLM.Timeout
	cfg.AppName = "subs-ai"
	return cfg
}

// Languages lists every suffix that marks an existing translation.
func (c *Config) Languages() []string {
	langs := append([]string{}, c.Translate.TargetAliases...)
	if c.Translate.TargetLanguage != "" {
		langs = append(langs, c.Translate.TargetLanguage)
	}
	return langs
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".subs-ai"
	}
	return filepath.Join(home, ".subs-ai")
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("45s") or plain seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
