// Package service wires storage, ingestion, the model backends, history and
// background jobs into the operations shared by the CLI, the HTTP API and the
// terminal UI.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lecturemate/config"
	"lecturemate/export"
	"lecturemate/history"
	"lecturemate/ingest"
	"lecturemate/jobs"
	"lecturemate/llm"
	"lecturemate/llm/agent"
	"lecturemate/llm/corpus"
	"lecturemate/llm/parser"
	"lecturemate/llm/providers"
	"lecturemate/llm/qa"
	"lecturemate/llm/retry"
	"lecturemate/llm/summarize"
	"lecturemate/pubsub"
	"lecturemate/store"
	"lecturemate/web"
)

// JobKindSummary labels summarization jobs.
const JobKindSummary = "summary"

var (
	// ErrNoSummary is returned when a category has no stored summary yet.
	ErrNoSummary = errors.New("no summary for this category yet")
	// ErrWebDisabled is returned for web operations when web access is off.
	ErrWebDisabled = errors.New("web access is disabled")
)

// GeneratorFactory builds a Generator for a backend selection.
type GeneratorFactory func(ctx context.Context, cfg providers.Config) (providers.Generator, error)

// Deps are the collaborators of a Service.
type Deps struct {
	Store     *store.Store
	Extractor *parser.Extractor
	// Web is nil when web access is disabled.
	Web      *web.Client
	History  history.Store
	Jobs     *jobs.Manager
	Provider providers.Config
	Language llm.Language
	Policy   retry.Policy
	// Summarize configures the orchestrator; its Policy is replaced by Policy.
	Summarize summarize.Options
	PDF       export.PDFOptions
	// NewGenerator defaults to providers.New.
	NewGenerator GeneratorFactory
	Now          func() time.Time
}

// Service implements the application operations.
type Service struct {
	deps     Deps
	pipeline *ingest.Pipeline
	closers  []func(context.Context)
}

// New builds a Service from deps.
func New(deps Deps) *Service {
	if deps.Extractor == nil {
		deps.Extractor = parser.NewExtractor(nil)
	}
	if deps.History == nil {
		deps.History = history.NewMemoryStore(0)
	}
	if deps.Jobs == nil {
		deps.Jobs = jobs.NewManager(pubsub.NewBroker[jobs.Event](), 0)
	}
	if deps.NewGenerator == nil {
		deps.NewGenerator = providers.New
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Policy.MaxAttempts == 0 {
		deps.Policy = retry.DefaultPolicy()
	}
	if deps.Language == "" {
		deps.Language = llm.LanguageJapanese
	}
	deps.Summarize.Policy = deps.Policy

	var w ingest.Web
	if deps.Web != nil {
		w = deps.Web
	}
	return &Service{
		deps:     deps,
		pipeline: ingest.New(deps.Store, deps.Extractor, w),
	}
}

// Open builds a Service from configuration, purging expired trash, connecting
// the history backend and installing tracing.
func Open(ctx context.Context, cfg *config.Config) (*Service, error) {
	st, err := store.New(cfg.Paths.DataDir, cfg.MaxUploadBytes())
	if err != nil {
		return nil, err
	}
	if _, err := st.Purge(ctx); err != nil {
		log.Warn().Err(err).Msg("purge of expired trash failed")
	}

	hist, err := history.Open(ctx, cfg.HistoryConfig())
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	shutdownTracing, err := providers.InstallTracing(ctx, cfg.TracingConfig())
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	}

	var wc *web.Client
	if cfg.WebEnabled() {
		wc = web.NewClient(cfg.WebOptions())
	}

	s := New(Deps{
		Store:     st,
		Extractor: parser.NewExtractor(parser.DefaultRegistry(cfg.ParserLimits())),
		Web:       wc,
		History:   hist,
		Jobs:      jobs.NewManager(pubsub.NewBroker[jobs.Event](), 0),
		Provider:  cfg.ProviderConfig(),
		Language:  cfg.Language(),
		Policy:    cfg.RetryPolicy(),
		Summarize: cfg.SummarizeOptions(),
		PDF:       cfg.PDFOptions(),
	})
	if shutdownTracing != nil {
		s.closers = append(s.closers, shutdownTracing)
	}
	return s, nil
}

// Close cancels running jobs and releases the backends.
func (s *Service) Close(ctx context.Context) {
	s.deps.Jobs.Shutdown()
	if b := s.deps.Jobs.Broker(); b != nil {
		b.Shutdown()
	}
	if err := s.deps.History.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close history")
	}
	for _, fn := range s.closers {
		fn(ctx)
	}
}

// Store returns the category store.
func (s *Service) Store() *store.Store { return s.deps.Store }

// Jobs returns the job manager.
func (s *Service) Jobs() *jobs.Manager { return s.deps.Jobs }

// History returns the history store.
func (s *Service) History() history.Store { return s.deps.History }

// Language returns the configured output language.
func (s *Service) Language() llm.Language { return s.deps.Language }

// Backend overrides the configured provider for one request. Credentials
// given here are used for the request only.
type Backend struct {
	Provider llm.Provider
	APIKey   string
	Model    string
	Language llm.Language
}

func (s *Service) resolve(b Backend) (providers.Config, llm.Language) {
	cfg := s.deps.Provider
	if b.Provider != "" && b.Provider != cfg.Provider {
		cfg = providers.Config{Provider: b.Provider, Timeout: cfg.Timeout}
	}
	if strings.TrimSpace(b.APIKey) != "" {
		cfg.APIKey = strings.TrimSpace(b.APIKey)
	}
	if b.Model != "" {
		cfg.Model = b.Model
	}
	lang := s.deps.Language
	if b.Language != "" {
		lang = b.Language
	}
	return cfg, lang
}

// Ingest saves uploads and loads the category plus web extras.
func (s *Service) Ingest(ctx context.Context, category string, uploads []ingest.Upload, extras ingest.Extras) (ingest.Result, error) {
	return s.pipeline.Run(ctx, category, uploads, extras)
}

// Load reads the stored files of category in lecture order.
func (s *Service) Load(ctx context.Context, category string) (ingest.Result, error) {
	return s.pipeline.LoadCategory(ctx, category)
}

// SummaryRequest describes one summarization run.
type SummaryRequest struct {
	Category string
	Uploads  []ingest.Upload
	Extras   ingest.Extras
	Backend  Backend
}

// StartSummary ingests the request synchronously and summarizes in a
// background job. The finished result is recorded in history.
func (s *Service) StartSummary(ctx context.Context, req SummaryRequest) (*jobs.Task, ingest.Result, error) {
	cfg, lang := s.resolve(req.Backend)
	if !cfg.Provider.Valid() {
		return nil, ingest.Result{}, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	res, err := s.Ingest(ctx, req.Category, req.Uploads, req.Extras)
	if err != nil {
		return nil, res, err
	}

	var orch *summarize.Orchestrator
	if cfg.Provider != llm.ProviderExtractOnly {
		gen, err := s.deps.NewGenerator(ctx, cfg)
		if err != nil {
			return nil, res, err
		}
		orch = summarize.New(gen, s.deps.Summarize)
	}

	category, _ := store.CategoryName(req.Category)
	items := res.Items

	// the job outlives the request that started it
	task := s.deps.Jobs.Start(context.WithoutCancel(ctx), JobKindSummary, corpus.CharCount(items),
		func(ctx context.Context, progress func(string)) (llm.SummaryResult, error) {
			var result llm.SummaryResult
			if orch == nil {
				result = summarize.ExtractOnlyResult()
			} else {
				result = orch.WithProgress(func(st summarize.Stage) { progress(string(st)) }).Summarize(ctx, items, lang)
			}
			if err := ctx.Err(); err != nil {
				return result, err
			}

			entry := history.NewEntry(category, cfg.Provider, lang, corpus.Sources(items), result)
			entry.Timestamp = s.deps.Now()
			if err := s.deps.History.Add(ctx, entry); err != nil {
				log.Warn().Err(err).Msg("failed to record history")
			}
			return result, nil
		})
	return task, res, nil
}

// Summarize runs StartSummary and waits for the job.
func (s *Service) Summarize(ctx context.Context, req SummaryRequest) (llm.SummaryResult, ingest.Result, error) {
	task, res, err := s.StartSummary(ctx, req)
	if err != nil {
		return llm.SummaryResult{}, res, err
	}
	out, err := task.Wait(ctx)
	if err != nil {
		task.Cancel()
	}
	return out, res, err
}

// Ask answers question from the stored material of category.
func (s *Service) Ask(ctx context.Context, category, question string, b Backend) (string, []string, error) {
	tutor, lang, err := s.tutor(ctx, b)
	if err != nil {
		return "", nil, err
	}
	res, err := s.Load(ctx, category)
	if err != nil && !errors.Is(err, store.ErrCategoryNotFound) {
		return "", nil, err
	}
	c, ok := corpus.Build(res.Items)
	log.Debug().Str("category", category).Str("language", string(lang)).Msg("answering question")
	answer, sources := tutor.Ask(ctx, question, c, ok)
	return answer, sources, nil
}

func (s *Service) tutor(ctx context.Context, b Backend) (*qa.Tutor, llm.Language, error) {
	cfg, lang := s.resolve(b)
	if cfg.Provider == llm.ProviderExtractOnly {
		return nil, lang, providers.ErrExtractOnly
	}
	gen, err := s.deps.NewGenerator(ctx, cfg)
	if err != nil {
		return nil, lang, err
	}
	return qa.NewTutor(gen, s.deps.Policy, lang), lang, nil
}

// Chat opens a tutor chat session over category.
func (s *Service) Chat(ctx context.Context, category string, b Backend) (*agent.Runtime, error) {
	tutor, lang, err := s.tutor(ctx, b)
	if err != nil {
		return nil, err
	}
	res, err := s.Load(ctx, category)
	if err != nil && !errors.Is(err, store.ErrCategoryNotFound) {
		return nil, err
	}
	return agent.NewRuntime(ctx, tutor, lang, res.Items), nil
}

// Recommend suggests resources for the latest summary of category.
func (s *Service) Recommend(ctx context.Context, category string, b Backend) ([]web.SearchResult, error) {
	entry, err := s.Latest(ctx, category)
	if err != nil {
		return nil, err
	}
	return s.RecommendFor(ctx, entry.Summary, b)
}

// RecommendFor suggests resources for summary.
func (s *Service) RecommendFor(ctx context.Context, summary string, b Backend) ([]web.SearchResult, error) {
	if s.deps.Web == nil {
		return nil, ErrWebDisabled
	}
	cfg, _ := s.resolve(b)
	if cfg.Provider == llm.ProviderExtractOnly {
		return nil, providers.ErrExtractOnly
	}
	gen, err := s.deps.NewGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return qa.NewRecommender(gen, s.deps.Web, s.deps.Policy).Recommend(ctx, summary), nil
}

// Latest returns the newest history entry for category.
func (s *Service) Latest(ctx context.Context, category string) (history.Entry, error) {
	name, err := store.CategoryName(category)
	if err != nil {
		return history.Entry{}, err
	}
	entries, err := s.deps.History.Recent(ctx, 0)
	if err != nil {
		return history.Entry{}, err
	}
	for _, e := range entries {
		if e.Category == name {
			return e, nil
		}
	}
	return history.Entry{}, fmt.Errorf("%w: %s", ErrNoSummary, name)
}

// Export renders a history entry. An empty id selects the latest entry of
// category.
func (s *Service) Export(ctx context.Context, category, id string, f export.Format) ([]byte, string, error) {
	var (
		entry history.Entry
		err   error
	)
	if id != "" {
		entry, err = s.deps.History.Get(ctx, id)
	} else {
		entry, err = s.Latest(ctx, category)
	}
	if err != nil {
		return nil, "", err
	}

	doc := export.NewDocument(entry.Category, llm.SummaryResult{Summary: entry.Summary, Integration: entry.Integration}, entry.Sources, s.deps.Now())
	data, err := export.Render(doc, f, s.deps.PDF)
	if err != nil {
		return nil, "", err
	}
	return data, export.Filename(entry.Category, f, doc.Generated), nil
}

// ExtractedText returns the stored material of category joined for copying.
func (s *Service) ExtractedText(ctx context.Context, category string) (string, ingest.Result, error) {
	res, err := s.Load(ctx, category)
	if err != nil {
		return "", res, err
	}
	return export.ExtractedText(res.Items), res, nil
}

// Fetch downloads a page as Markdown.
func (s *Service) Fetch(ctx context.Context, url string) (string, error) {
	if s.deps.Web == nil {
		return "", ErrWebDisabled
	}
	return s.deps.Web.Fetch(ctx, url)
}

// Search runs a web search.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]web.SearchResult, error) {
	if s.deps.Web == nil {
		return nil, ErrWebDisabled
	}
	return s.deps.Web.Search(ctx, query, limit)
}

// RSS reads a feed.
func (s *Service) RSS(ctx context.Context, url string) ([]web.FeedEntry, error) {
	if s.deps.Web == nil {
		return nil, ErrWebDisabled
	}
	return s.deps.Web.RSS(ctx, url)
}
