package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lecturemate/config"
	"lecturemate/llm"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LECTUREMATE_DATA_DIR", "GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL",
		"LLM_PROVIDER", "LLM_MODEL", "LLM_LANGUAGE", "REDIS_ADDR", "PORT", "LOG_LEVEL",
		"COZELOOP_API_TOKEN", "COZELOOP_WORKSPACE_ID",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("HOME", t.TempDir())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, resolved, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists || resolved == "" {
		t.Fatalf("resolved = %q, exists = %v", resolved, exists)
	}
	if cfg.Provider() != llm.ProviderExtractOnly || cfg.Language() != llm.LanguageJapanese {
		t.Fatalf("llm = %+v", cfg.LLM)
	}
	if !filepath.IsAbs(cfg.Paths.DataDir) || filepath.Base(cfg.Paths.DataDir) != "data" {
		t.Fatalf("data dir = %q", cfg.Paths.DataDir)
	}

	p := cfg.RetryPolicy()
	if p.MaxAttempts != 5 || p.BaseDelay != 30*time.Second {
		t.Fatalf("retry = %+v", p)
	}
	s := cfg.SummarizeOptions()
	if s.PassGap != 5*time.Second || s.IntegrationPrefix != 3000 {
		t.Fatalf("summarize = %+v", s)
	}
	w := cfg.WebOptions()
	if w.Timeout != 10*time.Second || w.MaxContentBytes != 2*1024*1024 || w.RSSMaxEntries != 10 {
		t.Fatalf("web = %+v", w)
	}
	if cfg.MaxUploadBytes() != 100*1024*1024 || cfg.ParserLimits().PDFPageCap != 100 {
		t.Fatalf("ingest = %+v", cfg.Ingest)
	}
	if !cfg.WebEnabled() || cfg.HistoryConfig().Backend != "memory" {
		t.Fatal("unexpected web/history defaults")
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", " AIzaSyExampleKey1234 ")
	t.Setenv("PORT", "9000")
	t.Setenv("REDIS_ADDR", "redis:6379")

	path := writeConfig(t, `
[llm]
provider = "Gemini"
language = "en"
gemini_model = "gemini-2.5-pro"

[retry]
max_attempts = 3
base_delay_seconds = 1

[web]
enabled = false

[server]
allowed_origins = [" http://localhost:3000 ", ""]
`)

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected file to exist")
	}

	pc := cfg.ProviderConfig()
	if pc.Provider != llm.ProviderGemini || pc.APIKey != "AIzaSyExampleKey1234" || pc.Model != "gemini-2.5-pro" {
		t.Fatalf("provider config = %+v", pc)
	}
	if pc.Timeout != 300*time.Second {
		t.Fatalf("timeout = %v", pc.Timeout)
	}
	if cfg.Language() != llm.LanguageEnglish {
		t.Fatalf("language = %q", cfg.LLM.Language)
	}
	if cfg.RetryPolicy().MaxAttempts != 3 {
		t.Fatalf("retry = %+v", cfg.Retry)
	}
	if cfg.WebEnabled() {
		t.Fatal("web should be disabled")
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "http://localhost:3000" {
		t.Fatalf("origins = %q", cfg.Server.AllowedOrigins)
	}
	if h := cfg.HistoryConfig(); h.Backend != "redis" || h.Redis.Addr != "redis:6379" {
		t.Fatalf("history = %+v", h)
	}

	red := cfg.Redacted()
	if strings.Contains(red.LLM.GeminiAPIKey, "Example") || cfg.LLM.GeminiAPIKey != "AIzaSyExampleKey1234" {
		t.Fatalf("redacted key = %q", red.LLM.GeminiAPIKey)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing key":     "[llm]\nprovider = \"openai\"\n",
		"bad provider":    "[llm]\nprovider = \"claude\"\n",
		"bad backend":     "[history]\nbackend = \"sqlite\"\n",
		"bad page cap":    "[ingest]\npdf_page_cap = 0\n",
		"bad log format":  "[logging]\nformat = \"xml\"\n",
		"malformed toml":  "[llm\n",
		"negative delay":  "[retry]\nbase_delay_seconds = -1\n",
		"zero rss":        "[web]\nrss_max_entries = 0\n",
		"zero max upload": "[ingest]\nmax_upload_mb = 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			if _, _, _, err := config.Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestCreateSampleLoads(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("Load(sample) = %v, exists %v", err, exists)
	}
}
