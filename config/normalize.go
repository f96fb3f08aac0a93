package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.applyEnv(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeHistory()
	c.normalizeLogging()
	c.Server.AllowedOrigins = trimList(c.Server.AllowedOrigins)
	return nil
}

// applyEnv overrides file values with the environment. Keys from the
// environment always win so a shared config file never needs to hold them.
func (c *Config) applyEnv() error {
	if v := envOrDefault("LECTUREMATE_DATA_DIR", ""); v != "" {
		c.Paths.DataDir = v
	}
	if v := envOrDefault("GEMINI_API_KEY", envOrDefault("GOOGLE_API_KEY", "")); v != "" {
		c.LLM.GeminiAPIKey = v
	}
	if v := envOrDefault("OPENAI_API_KEY", ""); v != "" {
		c.LLM.OpenAIAPIKey = v
	}
	if v := envOrDefault("OPENAI_BASE_URL", ""); v != "" {
		c.LLM.OpenAIBaseURL = v
	}
	if v := envOrDefault("LLM_PROVIDER", ""); v != "" {
		c.LLM.Provider = v
	}
	if v := envOrDefault("LLM_MODEL", ""); v != "" {
		switch strings.ToLower(strings.TrimSpace(c.LLM.Provider)) {
		case "openai":
			c.LLM.OpenAIModel = v
		default:
			c.LLM.GeminiModel = v
		}
	}
	if v := envOrDefault("LLM_LANGUAGE", ""); v != "" {
		c.LLM.Language = v
	}
	if v := envOrDefault("REDIS_ADDR", ""); v != "" {
		c.History.RedisAddr = v
		if strings.TrimSpace(c.History.Backend) == "" || c.History.Backend == "memory" {
			c.History.Backend = "redis"
		}
	}
	if v := envOrDefault("PORT", ""); v != "" {
		port, err := parseIntEnv("PORT", v)
		if err != nil {
			return err
		}
		c.Server.Addr = fmt.Sprintf(":%d", port)
	}
	if v := envOrDefault("LOG_LEVEL", ""); v != "" {
		c.Logging.Level = v
	}
	if v := envOrDefault("COZELOOP_API_TOKEN", ""); v != "" {
		c.Tracing.APIToken = v
	}
	if v := envOrDefault("COZELOOP_WORKSPACE_ID", ""); v != "" {
		c.Tracing.WorkspaceID = v
	}
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	var err error
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Export.PDFFont != "" {
		if c.Export.PDFFont, err = ExpandPath(c.Export.PDFFont); err != nil {
			return fmt.Errorf("export.pdf_font: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = Default().LLM.Provider
	}
	c.LLM.Language = string(c.Language())
	c.LLM.GeminiAPIKey = strings.TrimSpace(c.LLM.GeminiAPIKey)
	c.LLM.OpenAIAPIKey = strings.TrimSpace(c.LLM.OpenAIAPIKey)
	c.LLM.GeminiModel = strings.TrimSpace(c.LLM.GeminiModel)
	c.LLM.OpenAIModel = strings.TrimSpace(c.LLM.OpenAIModel)
	c.LLM.GeminiBaseURL = strings.TrimSpace(c.LLM.GeminiBaseURL)
	c.LLM.OpenAIBaseURL = strings.TrimSpace(c.LLM.OpenAIBaseURL)
}

func (c *Config) normalizeHistory() {
	c.History.Backend = strings.ToLower(strings.TrimSpace(c.History.Backend))
	if c.History.Backend == "" {
		c.History.Backend = "memory"
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}

func envOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func parseIntEnv(key, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func trimList(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
