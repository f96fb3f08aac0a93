package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"lecturemate/export"
	"lecturemate/history"
	"lecturemate/ingest"
	"lecturemate/jobs"
	"lecturemate/llm"
	"lecturemate/llm/agent"
	"lecturemate/llm/parser"
	"lecturemate/llm/providers"
	"lecturemate/pubsub"
	"lecturemate/service"
	"lecturemate/store"
	"lecturemate/web"
)

const defaultHistoryLimit = 5

type API struct {
	svc *service.Service
}

func NewAPI(svc *service.Service) *API {
	return &API{svc: svc}
}

func registerRoutes(r *gin.Engine, api *API) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", api.handleHealth)

		apiGroup.GET("/categories", api.handleListCategories)
		apiGroup.DELETE("/categories/:name", api.handleDeleteCategory)
		apiGroup.POST("/categories/:name/restore", api.handleRestoreCategory)
		apiGroup.GET("/categories/:name/files", api.handleListFiles)
		apiGroup.POST("/categories/:name/files", api.handleUpload)
		apiGroup.GET("/categories/:name/text", api.handleExtractedText)

		apiGroup.GET("/trash", api.handleListTrash)
		apiGroup.DELETE("/trash", api.handlePurgeTrash)

		apiGroup.POST("/summaries", api.handleStartSummary)
		apiGroup.GET("/jobs", api.handleListJobs)
		apiGroup.GET("/jobs/:id", api.handleGetJob)
		apiGroup.DELETE("/jobs/:id", api.handleCancelJob)
		apiGroup.GET("/jobs/:id/events", api.handleJobEvents)

		apiGroup.POST("/ask", api.handleAsk)
		apiGroup.POST("/recommend", api.handleRecommend)

		apiGroup.POST("/sources/fetch", api.handleFetch)
		apiGroup.POST("/sources/rss", api.handleRSS)
		apiGroup.POST("/sources/search", api.handleSearch)

		apiGroup.GET("/history", api.handleHistory)
		apiGroup.GET("/history/:id", api.handleGetHistory)
		apiGroup.GET("/export", api.handleExport)
	}
}

// backendRequest carries the per-request model override.
type backendRequest struct {
	Provider string `json:"provider" form:"provider"`
	APIKey   string `json:"api_key" form:"api_key"`
	Model    string `json:"model" form:"model"`
	Language string `json:"language" form:"language"`
}

func (b backendRequest) backend(c *gin.Context) service.Backend {
	out := service.Backend{
		Provider: llm.Provider(strings.TrimSpace(b.Provider)),
		APIKey:   b.APIKey,
		Model:    strings.TrimSpace(b.Model),
	}
	if out.APIKey == "" {
		out.APIKey = c.GetHeader("X-API-Key")
	}
	if b.Language != "" {
		out.Language = llm.ParseLanguage(b.Language)
	}
	return out
}

type ingestView struct {
	Loaded    []ingest.Loaded  `json:"loaded"`
	Problems  []ingest.Problem `json:"problems"`
	Messages  []string         `json:"messages"`
	Report    string           `json:"report"`
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Sources   []string         `json:"sources"`
}

func newIngestView(res ingest.Result) ingestView {
	v := ingestView{
		Loaded:    res.Loaded,
		Problems:  res.Problems,
		Report:    res.Report(),
		Total:     res.Total,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Sources:   res.Sources(),
	}
	for _, l := range res.Loaded {
		v.Messages = append(v.Messages, l.Message())
	}
	return v
}

type jobView struct {
	jobs.Snapshot
	Result           *llm.SummaryResult `json:"result,omitempty"`
	SummaryError     string             `json:"summary_error,omitempty"`
	IntegrationError string             `json:"integration_error,omitempty"`
}

func newJobView(t *jobs.Task) jobView {
	v := jobView{Snapshot: t.Snapshot()}
	if t.Status() == jobs.StatusRunning {
		return v
	}
	res, err := t.Result()
	if err != nil && !res.Failed() && res.Summary == "" {
		return v
	}
	v.Result = &res
	if res.SummaryErr != nil {
		v.SummaryError = res.SummaryErr.Error()
	}
	if res.IntegrationErr != nil {
		v.IntegrationError = res.IntegrationErr.Error()
	}
	return v
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "language": a.svc.Language()})
}

func (a *API) handleListCategories(c *gin.Context) {
	cats, err := a.svc.Store().Categories()
	if err != nil {
		respondError(c, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"categories": cats})
}

func (a *API) handleDeleteCategory(c *gin.Context) {
	trashed, err := a.svc.Store().Delete(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trashed": trashed})
}

func (a *API) handleRestoreCategory(c *gin.Context) {
	restored, err := a.svc.Store().Restore(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restored": restored})
}

func (a *API) handleListFiles(c *gin.Context) {
	files, err := a.svc.Store().Files(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	c.JSON(http.StatusOK, gin.H{"files": names})
}

func (a *API) handleListTrash(c *gin.Context) {
	entries, err := a.svc.Store().Trash()
	if err != nil {
		respondError(c, err)
		return
	}
	if entries == nil {
		entries = []store.TrashEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"trash": entries})
}

func (a *API) handlePurgeTrash(c *gin.Context) {
	n, err := a.svc.Store().Purge(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": n})
}

// formUploads opens the files of the "files" form field. The returned closer
// must be called once the uploads have been consumed.
func formUploads(c *gin.Context) ([]ingest.Upload, func(), error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, func() {}, nil
		}
		return nil, func() {}, badRequest(fmt.Errorf("read form: %w", err))
	}

	headers := form.File["files"]
	if len(headers) > MaxUploadFiles {
		return nil, func() {}, badRequest(fmt.Errorf("at most %d files per request", MaxUploadFiles))
	}

	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	uploads := make([]ingest.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		opened = append(opened, f)
		uploads = append(uploads, ingest.Upload{Name: fh.Filename, Size: fh.Size, Reader: f})
	}
	return uploads, closeAll, nil
}

func (a *API) handleUpload(c *gin.Context) {
	uploads, done, err := formUploads(c)
	defer done()
	if err != nil {
		respondError(c, err)
		return
	}
	if len(uploads) == 0 {
		respondMessage(c, http.StatusBadRequest, "missing files")
		return
	}

	res, err := a.svc.Ingest(c.Request.Context(), c.Param("name"), uploads, ingest.Extras{})
	if err != nil && !errors.Is(err, llm.ErrEmptyCorpus) {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newIngestView(res))
}

func (a *API) handleExtractedText(c *gin.Context) {
	text, res, err := a.svc.ExtractedText(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text, "load": newIngestView(res)})
}

func (a *API) handleStartSummary(c *gin.Context) {
	var payload struct {
		backendRequest
		Category string `form:"category" binding:"required"`
		URL      string `form:"url"`
		RSS      string `form:"rss"`
		Search   string `form:"search"`
	}
	if err := c.ShouldBind(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	uploads, done, err := formUploads(c)
	defer done()
	if err != nil {
		respondError(c, err)
		return
	}

	task, res, err := a.svc.StartSummary(c.Request.Context(), service.SummaryRequest{
		Category: payload.Category,
		Uploads:  uploads,
		Extras: ingest.Extras{
			URL:    strings.TrimSpace(payload.URL),
			RSS:    strings.TrimSpace(payload.RSS),
			Search: strings.TrimSpace(payload.Search),
		},
		Backend: payload.backend(c),
	})
	if err != nil {
		if errors.Is(err, llm.ErrEmptyCorpus) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "load": newIngestView(res)})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job": task.Snapshot(), "load": newIngestView(res)})
}

func (a *API) handleListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": a.svc.Jobs().List()})
}

func (a *API) handleGetJob(c *gin.Context) {
	task, ok := a.svc.Jobs().Get(c.Param("id"))
	if !ok {
		respondMessage(c, http.StatusNotFound, "job not found")
		return
	}
	c.JSON(http.StatusOK, newJobView(task))
}

func (a *API) handleCancelJob(c *gin.Context) {
	if err := a.svc.Jobs().Cancel(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleJobEvents streams job snapshots as server-sent events until the job
// ends or the client goes away.
func (a *API) handleJobEvents(c *gin.Context) {
	task, ok := a.svc.Jobs().Get(c.Param("id"))
	if !ok {
		respondMessage(c, http.StatusNotFound, "job not found")
		return
	}

	ctx := c.Request.Context()
	events := a.svc.Jobs().Broker().Subscribe(ctx)

	c.SSEvent("job", newJobView(task))
	c.Writer.Flush()
	if task.Status() != jobs.StatusRunning {
		return
	}

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-task.Done():
			c.SSEvent("job", newJobView(task))
			return false
		case evt, ok := <-events:
			if !ok {
				return false
			}
			if evt.Payload.ID != task.ID {
				return true
			}
			if evt.Type == pubsub.FinishedEvent || evt.Type == pubsub.CancelledEvent {
				c.SSEvent("job", newJobView(task))
				return false
			}
			c.SSEvent("job", evt.Payload.Snapshot)
			return true
		}
	})
}

func (a *API) handleAsk(c *gin.Context) {
	var payload struct {
		backendRequest
		Category string `json:"category" binding:"required"`
		Question string `json:"question"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(payload.Question) == "" {
		respondError(c, badRequest(agent.ErrEmptyQuestion))
		return
	}

	answer, sources, err := a.svc.Ask(c.Request.Context(), payload.Category, payload.Question, payload.backend(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer, "sources": sources})
}

func (a *API) handleRecommend(c *gin.Context) {
	var payload struct {
		backendRequest
		Category string `json:"category"`
		Summary  string `json:"summary"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	var (
		results []web.SearchResult
		err     error
	)
	ctx := c.Request.Context()
	switch {
	case strings.TrimSpace(payload.Summary) != "":
		results, err = a.svc.RecommendFor(ctx, payload.Summary, payload.backend(c))
	case payload.Category != "":
		results, err = a.svc.Recommend(ctx, payload.Category, payload.backend(c))
	default:
		respondMessage(c, http.StatusBadRequest, "category or summary is required")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	if results == nil {
		results = []web.SearchResult{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

type sourceRequest struct {
	URL   string `json:"url"`
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (a *API) handleFetch(c *gin.Context) {
	var payload sourceRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	content, err := a.svc.Fetch(c.Request.Context(), strings.TrimSpace(payload.URL))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": payload.URL, "content": content})
}

func (a *API) handleRSS(c *gin.Context) {
	var payload sourceRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := a.svc.RSS(c.Request.Context(), strings.TrimSpace(payload.URL))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (a *API) handleSearch(c *gin.Context) {
	var payload sourceRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	results, err := a.svc.Search(c.Request.Context(), payload.Query, payload.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (a *API) handleHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondMessage(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := a.svc.History().Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (a *API) handleGetHistory(c *gin.Context) {
	entry, err := a.svc.History().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (a *API) handleExport(c *gin.Context) {
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatMarkdown)))
	if err != nil {
		respondError(c, badRequest(err))
		return
	}
	category, id := c.Query("category"), c.Query("id")
	if category == "" && id == "" {
		respondMessage(c, http.StatusBadRequest, "category or id is required")
		return
	}

	data, filename, err := a.svc.Export(c.Request.Context(), category, id, format)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(filename)))
	c.Data(http.StatusOK, format.ContentType(), data)
}

type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &statusError{status: http.StatusBadRequest, err: err}
}

func statusFor(err error) int {
	var se *statusError
	var ve *parser.ValidationError
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &se):
		return se.status
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrInvalidCategory),
		errors.Is(err, providers.ErrExtractOnly),
		errors.Is(err, providers.ErrMissingAPIKey):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrCategoryNotFound),
		errors.Is(err, store.ErrNothingToRestore),
		errors.Is(err, history.ErrNotFound),
		errors.Is(err, jobs.ErrNotFound),
		errors.Is(err, service.ErrNoSummary):
		return http.StatusNotFound
	case errors.Is(err, store.ErrCategoryExists):
		return http.StatusConflict
	case errors.Is(err, llm.ErrEmptyCorpus):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrWebDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	respondMessage(c, status, err.Error())
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
