package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"lecturemate/config"
	"lecturemate/ingest"
	"lecturemate/llm"
	"lecturemate/logging"
	"lecturemate/service"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	serviceOnce sync.Once
	service     *service.Service
	serviceErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}

		level := cfg.Logging.Level
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			level = strings.TrimSpace(*c.logLevelFlag)
		}
		if err := logging.Setup(logging.Options{Level: level, Format: cfg.Logging.Format}); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureService opens the application service on first use.
func (c *commandContext) ensureService(ctx context.Context) (*service.Service, error) {
	c.serviceOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.serviceErr = err
			return
		}
		c.service, c.serviceErr = service.Open(ctx, cfg)
	})
	return c.service, c.serviceErr
}

func (c *commandContext) withService(cmd *cobra.Command, fn func(*service.Service) error) error {
	svc, err := c.ensureService(cmd.Context())
	if err != nil {
		return err
	}
	return fn(svc)
}

func (c *commandContext) close(ctx context.Context) {
	if c.service != nil {
		c.service.Close(context.WithoutCancel(ctx))
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// backendFlags select the model backend for one command.
type backendFlags struct {
	provider string
	apiKey   string
	model    string
	language string
}

func addBackendFlags(cmd *cobra.Command, f *backendFlags) {
	cmd.Flags().StringVar(&f.provider, "provider", "", "Model backend: gemini, openai or extract_only")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "API key for this run only")
	cmd.Flags().StringVar(&f.model, "model", "", "Model name override")
	cmd.Flags().StringVar(&f.language, "language", "", "Output language: ja or en")
}

func (f backendFlags) backend() service.Backend {
	b := service.Backend{
		Provider: llm.Provider(strings.TrimSpace(f.provider)),
		APIKey:   f.apiKey,
		Model:    strings.TrimSpace(f.model),
	}
	if f.language != "" {
		b.Language = llm.ParseLanguage(f.language)
	}
	return b
}

// openUploads opens local files for ingestion. The returned closer must be
// called once they are consumed.
func openUploads(paths []string) ([]ingest.Upload, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	uploads := make([]ingest.Upload, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open %s: %w", p, err)
		}
		files = append(files, f)

		info, err := f.Stat()
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("inspect %s: %w", p, err)
		}
		if info.IsDir() {
			closeAll()
			return nil, func() {}, fmt.Errorf("%s is a directory", p)
		}
		uploads = append(uploads, ingest.Upload{Name: filepath.Base(p), Size: info.Size(), Reader: f})
	}
	return uploads, closeAll, nil
}
