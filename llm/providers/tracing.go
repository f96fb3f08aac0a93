package providers

import (
	"context"
	"fmt"
	"sync"

	clc "github.com/cloudwego/eino-ext/callbacks/cozeloop"
	"github.com/cloudwego/eino/callbacks"
	"github.com/coze-dev/cozeloop-go"
	"github.com/rs/zerolog/log"
)

// TracingConfig holds the CozeLoop credentials. Tracing stays off unless both are set.
type TracingConfig struct {
	APIToken    string
	WorkspaceID string
}

// Enabled reports whether both credentials are present.
func (c TracingConfig) Enabled() bool {
	return c.APIToken != "" && c.WorkspaceID != ""
}

var installOnce sync.Once

// InstallTracing registers the CozeLoop callback handler globally so every chat
// model call is traced. It returns a shutdown func that flushes the client; the
// func is a no-op when tracing is disabled. Only the first call installs handlers.
func InstallTracing(ctx context.Context, cfg TracingConfig) (func(context.Context), error) {
	noop := func(context.Context) {}
	if !cfg.Enabled() {
		return noop, nil
	}

	client, err := cozeloop.NewClient(
		cozeloop.WithAPIToken(cfg.APIToken),
		cozeloop.WithWorkspaceID(cfg.WorkspaceID),
	)
	if err != nil {
		return noop, fmt.Errorf("failed to create cozeloop client: %w", err)
	}

	installed := false
	installOnce.Do(func() {
		callbacks.AppendGlobalHandlers(clc.NewLoopHandler(client))
		installed = true
	})
	if !installed {
		client.Close(ctx)
		return noop, nil
	}

	log.Info().Str("workspace", cfg.WorkspaceID).Msg("cozeloop tracing enabled")
	return func(ctx context.Context) {
		client.Close(ctx)
	}, nil
}
