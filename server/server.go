// Package server exposes the application over an HTTP JSON API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"lecturemate/service"
)

// MaxUploadFiles bounds the number of files in one multipart request.
const MaxUploadFiles = 20

const shutdownTimeout = 10 * time.Second

// Options configure the HTTP server.
type Options struct {
	Addr           string
	AllowedOrigins []string
	// MaxUploadBytes is the per-file limit; the request body limit is derived
	// from it.
	MaxUploadBytes int64
}

type Server struct {
	engine *gin.Engine
	opts   Options
}

func NewServer(svc *service.Service, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	return &Server{engine: newEngine(svc, opts), opts: opts}
}

func newEngine(svc *service.Service, opts Options) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger())
	engine.Use(MaxBodySize(opts.MaxUploadBytes * MaxUploadFiles))
	engine.Use(CORS(opts.AllowedOrigins))

	registerRoutes(engine, NewAPI(svc))
	return engine
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.opts.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info().Msg("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
