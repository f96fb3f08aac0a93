package config

import (
	"errors"
	"fmt"

	"lecturemate/llm"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateLLM() error {
	if !c.Provider().Valid() {
		return fmt.Errorf("llm.provider must be one of extract_only, gemini, openai (got %q)", c.LLM.Provider)
	}
	switch c.Provider() {
	case llm.ProviderGemini:
		if c.LLM.GeminiAPIKey == "" {
			return errors.New("llm.gemini_api_key is required for the gemini provider. Set GEMINI_API_KEY")
		}
	case llm.ProviderOpenAI:
		if c.LLM.OpenAIAPIKey == "" {
			return errors.New("llm.openai_api_key is required for the openai provider. Set OPENAI_API_KEY")
		}
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLimits() error {
	switch {
	case c.Ingest.MaxUploadMB <= 0:
		return errors.New("ingest.max_upload_mb must be positive")
	case c.Ingest.PDFPageCap <= 0:
		return errors.New("ingest.pdf_page_cap must be positive")
	case c.Retry.MaxAttempts <= 0:
		return errors.New("retry.max_attempts must be positive")
	case c.Retry.BaseDelaySeconds < 0:
		return errors.New("retry.base_delay_seconds must not be negative")
	case c.Summarize.IntegrationPrefix <= 0:
		return errors.New("summarize.integration_prefix must be positive")
	case c.Summarize.PassGapSeconds < 0:
		return errors.New("summarize.pass_gap_seconds must not be negative")
	case c.Web.TimeoutSeconds <= 0:
		return errors.New("web.timeout_seconds must be positive")
	case c.Web.MaxContentMB <= 0:
		return errors.New("web.max_content_mb must be positive")
	case c.Web.RSSMaxEntries <= 0:
		return errors.New("web.rss_max_entries must be positive")
	}
	return nil
}

func (c *Config) validateHistory() error {
	switch c.History.Backend {
	case "memory":
	case "redis":
		if c.History.RedisAddr == "" {
			return errors.New("history.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("history.backend must be memory or redis (got %q)", c.History.Backend)
	}
	if c.History.MaxEntries <= 0 {
		return errors.New("history.max_entries must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognised", c.Logging.Level)
	}
	return nil
}
