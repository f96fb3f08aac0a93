// Package ingest turns uploads, stored files and web sources into the ordered
// list of source items handed to the summarizer.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"lecturemate/llm"
	"lecturemate/llm/corpus"
	"lecturemate/llm/parser"
	"lecturemate/store"
	"lecturemate/web"
)

const (
	// RSSItems is how many feed entries become source items.
	RSSItems = 5
	// SearchResults is how many search hits are fetched.
	SearchResults = 5

	problemPreview   = 100
	fetchConcurrency = 3
)

// Upload is one file handed to Run.
type Upload struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// Extras are the optional web inputs of a run.
type Extras struct {
	URL    string
	RSS    string
	Search string
}

// Empty reports whether no web input was given.
func (e Extras) Empty() bool {
	return strings.TrimSpace(e.URL) == "" && strings.TrimSpace(e.RSS) == "" && strings.TrimSpace(e.Search) == ""
}

// Web is the subset of web.Client used by the pipeline.
type Web interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
	Search(ctx context.Context, query string, limit int) ([]web.SearchResult, error)
	RSS(ctx context.Context, rawURL string) ([]web.FeedEntry, error)
}

// Problem records an input that produced no item.
type Problem struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

func (p Problem) String() string { return p.Source + ": " + p.Reason }

// Loaded describes one stored file that was read successfully.
type Loaded struct {
	Source string `json:"source"`
	Order  int    `json:"order"`
}

// Message renders the per-file success line.
func (l Loaded) Message() string {
	if l.Order == llm.UnorderedLecture {
		return fmt.Sprintf("✅ 成功: %s", l.Source)
	}
	return fmt.Sprintf("✅ 成功: %s (第%d回)", l.Source, l.Order)
}

// Result is the outcome of a run. Items holds the stored files in lecture order
// followed by web items in the order search, URL, RSS.
type Result struct {
	Items    []llm.SourceItem `json:"items"`
	Loaded   []Loaded         `json:"loaded"`
	Problems []Problem        `json:"problems"`
	// Stored files found in the category, read or not.
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Report renders the load summary line.
func (r Result) Report() string {
	return fmt.Sprintf("📊 読み込み完了: 成功 %d個 / 失敗 %d個 / 合計 %d個", r.Succeeded, r.Failed, r.Total)
}

// Sources lists the item labels in order.
func (r Result) Sources() []string { return corpus.Sources(r.Items) }

// Pipeline wires the store, the extractor and the web client.
type Pipeline struct {
	store     *store.Store
	extractor *parser.Extractor
	web       Web
}

// New returns a Pipeline. web may be nil, in which case web extras are
// reported as problems.
func New(st *store.Store, ex *parser.Extractor, w Web) *Pipeline {
	if ex == nil {
		ex = parser.NewExtractor(nil)
	}
	return &Pipeline{store: st, extractor: ex, web: w}
}

// Run saves uploads into category, reads every stored file of the category and
// adds the web extras. Individual failures are collected in Result.Problems.
// The error is llm.ErrEmptyCorpus when nothing usable was loaded; the Result
// is still filled so callers can show why.
func (p *Pipeline) Run(ctx context.Context, category string, uploads []Upload, extras Extras) (Result, error) {
	var res Result
	if _, err := store.CategoryName(category); err != nil {
		return res, err
	}

	for _, u := range uploads {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, err := p.store.Save(ctx, category, u.Name, u.Size, u.Reader); err != nil {
			log.Warn().Err(err).Str("file", u.Name).Msg("upload rejected")
			res.Problems = append(res.Problems, Problem{Source: u.Name, Reason: uploadReason(err)})
		}
	}

	loaded, err := p.LoadCategory(ctx, category)
	if err != nil && !errors.Is(err, store.ErrCategoryNotFound) {
		return res, err
	}
	res.Items = loaded.Items
	res.Loaded = loaded.Loaded
	res.Problems = append(res.Problems, loaded.Problems...)
	res.Total, res.Succeeded, res.Failed = loaded.Total, loaded.Succeeded, loaded.Failed

	if err := p.addWeb(ctx, &res, extras); err != nil {
		return res, err
	}

	log.Info().
		Str("category", category).
		Int("items", len(res.Items)).
		Int("problems", len(res.Problems)).
		Msg(res.Report())

	if len(res.Items) == 0 {
		return res, llm.ErrEmptyCorpus
	}
	return res, nil
}

func uploadReason(err error) string {
	var verr *parser.ValidationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return err.Error()
}

// LoadCategory reads the stored files of category, sorted by lecture order.
func (p *Pipeline) LoadCategory(ctx context.Context, category string) (Result, error) {
	var res Result
	paths, err := p.store.Files(category)
	if err != nil {
		return res, err
	}
	res.Total = len(paths)

	var items []llm.SourceItem
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		name := filepath.Base(path)

		doc, err := p.extractor.Extract(ctx, path)
		switch {
		case errors.Is(err, parser.ErrEmptyContent):
			res.Problems = append(res.Problems, Problem{Source: name, Reason: "内容が空"})
			res.Failed++
			continue
		case err != nil:
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			reason := preview(parser.DisplayError(err))
			res.Problems = append(res.Problems, Problem{Source: name, Reason: reason})
			res.Failed++
			log.Warn().Str("file", name).Str("reason", reason).Msg("extraction failed")
			continue
		}
		items = append(items, llm.SourceItem{Content: doc.Content, Source: name})
		res.Succeeded++
	}

	for _, o := range corpus.Order(items) {
		res.Items = append(res.Items, o.SourceItem)
		res.Loaded = append(res.Loaded, Loaded{Source: o.Source, Order: o.Order})
		log.Debug().Str("file", o.Source).Str("order", corpus.OrderLabel(o.Order)).Msg("file ordered")
	}
	return res, nil
}

// addWeb appends search, URL and RSS items. Failures become problems; only a
// cancelled context aborts.
func (p *Pipeline) addWeb(ctx context.Context, res *Result, extras Extras) error {
	if extras.Empty() {
		return nil
	}
	if p.web == nil {
		res.Problems = append(res.Problems, Problem{Source: "web", Reason: "web access is disabled"})
		return nil
	}

	if q := strings.TrimSpace(extras.Search); q != "" {
		results, err := p.web.Search(ctx, q, SearchResults)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res.Problems = append(res.Problems, Problem{Source: q, Reason: "Web検索エラー: " + err.Error()})
		}
		links := make([]string, 0, len(results))
		for _, r := range results {
			links = append(links, r.Link)
		}
		p.fetchAll(ctx, res, links)
	}

	if u := strings.TrimSpace(extras.URL); u != "" {
		p.fetchInto(ctx, res, u)
	}

	if u := strings.TrimSpace(extras.RSS); u != "" {
		entries, err := p.web.RSS(ctx, u)
		if err != nil {
			res.Problems = append(res.Problems, Problem{Source: u, Reason: "RSS取得エラー: " + err.Error()})
		}
		if len(entries) > RSSItems {
			entries = entries[:RSSItems]
		}
		for _, e := range entries {
			res.Items = append(res.Items, llm.SourceItem{Content: e.Title + "\n" + e.Summary, Source: e.Link})
		}
	}
	return ctx.Err()
}

// fetchAll downloads urls concurrently and records them in the given order.
func (p *Pipeline) fetchAll(ctx context.Context, res *Result, urls []string) {
	type page struct {
		content string
		err     error
	}
	pages := make([]page, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, u := range urls {
		g.Go(func() error {
			content, err := p.web.Fetch(gctx, u)
			pages[i] = page{content: content, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for i, u := range urls {
		p.record(res, u, pages[i].content, pages[i].err)
	}
}

func (p *Pipeline) fetchInto(ctx context.Context, res *Result, url string) {
	content, err := p.web.Fetch(ctx, url)
	p.record(res, url, content, err)
}

func (p *Pipeline) record(res *Result, url, content string, err error) {
	if err != nil {
		res.Problems = append(res.Problems, Problem{Source: url, Reason: "URL取得エラー: " + err.Error()})
		return
	}
	if strings.TrimSpace(content) == "" {
		res.Problems = append(res.Problems, Problem{Source: url, Reason: "内容が空"})
		return
	}
	res.Items = append(res.Items, llm.SourceItem{Content: content, Source: url})
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > problemPreview {
		return string(r[:problemPreview])
	}
	return s
}
