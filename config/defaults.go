package config

import (
	"lecturemate/history"
	"lecturemate/llm"
	"lecturemate/llm/retry"
	"lecturemate/llm/summarize"
	"lecturemate/web"
)

const (
	defaultDataDir       = "data"
	defaultServerAddr    = "127.0.0.1:8080"
	defaultMaxUploadMB   = 100
	defaultPDFPageCap    = 100
	defaultLLMTimeoutSec = 300
	defaultRedisAddr     = "localhost:6379"
	defaultLogLevel      = "info"
	defaultLogFormat     = "console"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Ingest: Ingest{
			MaxUploadMB: defaultMaxUploadMB,
			PDFPageCap:  defaultPDFPageCap,
		},
		LLM: LLM{
			Provider:       string(llm.ProviderExtractOnly),
			Language:       string(llm.LanguageJapanese),
			TimeoutSeconds: defaultLLMTimeoutSec,
		},
		Retry: Retry{
			MaxAttempts:      retry.DefaultMaxAttempts,
			BaseDelaySeconds: int(retry.DefaultBaseDelay.Seconds()),
		},
		Summarize: Summarize{
			IntegrationPrefix: summarize.DefaultIntegrationPrefix,
			PassGapSeconds:    int(summarize.DefaultPassGap.Seconds()),
		},
		Web: Web{
			TimeoutSeconds: int(web.DefaultTimeout.Seconds()),
			MaxContentMB:   int(web.DefaultMaxContentBytes / 1024 / 1024),
			RSSMaxEntries:  web.DefaultRSSMaxEntries,
		},
		Server: Server{
			Addr: defaultServerAddr,
		},
		History: History{
			Backend:    "memory",
			RedisAddr:  defaultRedisAddr,
			MaxEntries: history.DefaultMaxEntries,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
