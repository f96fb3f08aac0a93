// Package config loads lecturemate settings from TOML with environment
// overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"lecturemate/export"
	"lecturemate/history"
	"lecturemate/llm"
	"lecturemate/llm/parser"
	"lecturemate/llm/providers"
	"lecturemate/llm/retry"
	"lecturemate/llm/summarize"
	"lecturemate/web"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains storage locations.
type Paths struct {
	DataDir string `toml:"data_dir"`
}

// Ingest bounds what uploads and extraction accept.
type Ingest struct {
	MaxUploadMB int `toml:"max_upload_mb"`
	PDFPageCap  int `toml:"pdf_page_cap"`
}

// LLM selects and configures the model backend. API keys usually come from the
// environment and are never written back.
type LLM struct {
	Provider       string `toml:"provider"`
	Language       string `toml:"language"`
	GeminiModel    string `toml:"gemini_model"`
	OpenAIModel    string `toml:"openai_model"`
	GeminiAPIKey   string `toml:"gemini_api_key"`
	OpenAIAPIKey   string `toml:"openai_api_key"`
	GeminiBaseURL  string `toml:"gemini_base_url"`
	OpenAIBaseURL  string `toml:"openai_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Retry configures the rate-limit backoff.
type Retry struct {
	MaxAttempts      int `toml:"max_attempts"`
	BaseDelaySeconds int `toml:"base_delay_seconds"`
}

// Summarize tunes the two-pass summarization.
type Summarize struct {
	IntegrationPrefix int `toml:"integration_prefix"`
	PassGapSeconds    int `toml:"pass_gap_seconds"`
}

// Web configures page fetching, search and feeds.
type Web struct {
	Enabled        *bool `toml:"enabled"`
	TimeoutSeconds int   `toml:"timeout_seconds"`
	MaxContentMB   int   `toml:"max_content_mb"`
	RSSMaxEntries  int   `toml:"rss_max_entries"`
}

// Server configures the HTTP API.
type Server struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// History selects where past summaries are kept.
type History struct {
	Backend       string `toml:"backend"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	MaxEntries    int    `toml:"max_entries"`
}

// Export configures rendered reports.
type Export struct {
	PDFFont string `toml:"pdf_font"`
}

// Tracing holds CozeLoop credentials.
type Tracing struct {
	APIToken    string `toml:"api_token"`
	WorkspaceID string `toml:"workspace_id"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Ingest    Ingest    `toml:"ingest"`
	LLM       LLM       `toml:"llm"`
	Retry     Retry     `toml:"retry"`
	Summarize Summarize `toml:"summarize"`
	Web       Web       `toml:"web"`
	Server    Server    `toml:"server"`
	History   History   `toml:"history"`
	Export    Export    `toml:"export"`
	Tracing   Tracing   `toml:"tracing"`
	Logging   Logging   `toml:"logging"`
}

// Load parses the configuration file at path, or the first default location
// that exists, applies environment overrides and validates the result. A
// missing file is not an error. It returns the config, the resolved path and
// whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	projectPath, err := filepath.Abs("lecturemate.toml")
	if err != nil {
		return "", false, err
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	for _, p := range []string{projectPath, defaultPath} {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true, nil
		}
	}
	return defaultPath, false, nil
}

// DefaultConfigPath returns the per-user configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/lecturemate/config.toml")
}

// ExpandPath resolves a leading ~ and returns an absolute path.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Provider returns the selected backend.
func (c *Config) Provider() llm.Provider { return llm.Provider(c.LLM.Provider) }

// Language returns the output language.
func (c *Config) Language() llm.Language { return llm.ParseLanguage(c.LLM.Language) }

// MaxUploadBytes returns the per-file upload cap.
func (c *Config) MaxUploadBytes() int64 { return int64(c.Ingest.MaxUploadMB) * 1024 * 1024 }

// ParserLimits returns the extraction limits.
func (c *Config) ParserLimits() parser.Limits {
	return parser.Limits{
		MaxFileBytes: c.MaxUploadBytes(),
		PDFPageCap:   c.Ingest.PDFPageCap,
	}
}

// ProviderConfig returns the settings for the selected backend.
func (c *Config) ProviderConfig() providers.Config {
	cfg := providers.Config{
		Provider: c.Provider(),
		Timeout:  time.Duration(c.LLM.TimeoutSeconds) * time.Second,
	}
	switch cfg.Provider {
	case llm.ProviderGemini:
		cfg.APIKey, cfg.BaseURL, cfg.Model = c.LLM.GeminiAPIKey, c.LLM.GeminiBaseURL, c.LLM.GeminiModel
	case llm.ProviderOpenAI:
		cfg.APIKey, cfg.BaseURL, cfg.Model = c.LLM.OpenAIAPIKey, c.LLM.OpenAIBaseURL, c.LLM.OpenAIModel
	}
	return cfg
}

// RetryPolicy returns the backoff policy.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   time.Duration(c.Retry.BaseDelaySeconds) * time.Second,
		Sleep:       retry.ContextSleep,
	}
}

// SummarizeOptions returns the orchestrator settings.
func (c *Config) SummarizeOptions() summarize.Options {
	return summarize.Options{
		Policy:            c.RetryPolicy(),
		PassGap:           time.Duration(c.Summarize.PassGapSeconds) * time.Second,
		IntegrationPrefix: c.Summarize.IntegrationPrefix,
	}
}

// WebEnabled reports whether web sources may be used.
func (c *Config) WebEnabled() bool { return c.Web.Enabled == nil || *c.Web.Enabled }

// WebOptions returns the web client settings.
func (c *Config) WebOptions() web.Options {
	return web.Options{
		Timeout:         time.Duration(c.Web.TimeoutSeconds) * time.Second,
		MaxContentBytes: int64(c.Web.MaxContentMB) * 1024 * 1024,
		RSSMaxEntries:   c.Web.RSSMaxEntries,
	}
}

// HistoryConfig returns the history backend settings.
func (c *Config) HistoryConfig() history.Config {
	return history.Config{
		Backend:    c.History.Backend,
		MaxEntries: c.History.MaxEntries,
		Redis: history.RedisConfig{
			Addr:     c.History.RedisAddr,
			Password: c.History.RedisPassword,
			DB:       c.History.RedisDB,
		},
	}
}

// TracingConfig returns the CozeLoop credentials.
func (c *Config) TracingConfig() providers.TracingConfig {
	return providers.TracingConfig{APIToken: c.Tracing.APIToken, WorkspaceID: c.Tracing.WorkspaceID}
}

// PDFOptions returns the PDF export settings.
func (c *Config) PDFOptions() export.PDFOptions {
	return export.PDFOptions{FontPath: c.Export.PDFFont}
}

// Redacted returns a copy safe to print: credentials are masked.
func (c *Config) Redacted() Config {
	out := *c
	out.LLM.GeminiAPIKey = providers.MaskAPIKey(out.LLM.GeminiAPIKey)
	out.LLM.OpenAIAPIKey = providers.MaskAPIKey(out.LLM.OpenAIAPIKey)
	out.History.RedisPassword = providers.MaskAPIKey(out.History.RedisPassword)
	out.Tracing.APIToken = providers.MaskAPIKey(out.Tracing.APIToken)
	return out
}
