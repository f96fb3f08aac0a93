package ingest

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"

	"lecturemate/llm"
	"lecturemate/llm/corpus"
	"lecturemate/store"
	"lecturemate/web"
)

type fakeWeb struct {
	pages   map[string]string
	results []web.SearchResult
	entries []web.FeedEntry
	rssErr  error
}

func (f *fakeWeb) Fetch(_ context.Context, url string) (string, error) {
	page, ok := f.pages[url]
	if !ok {
		return "", errors.New("404")
	}
	return page, nil
}

func (f *fakeWeb) Search(_ context.Context, _ string, limit int) ([]web.SearchResult, error) {
	if len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}

func (f *fakeWeb) RSS(context.Context, string) ([]web.FeedEntry, error) {
	return f.entries, f.rssErr
}

func newPipeline(t *testing.T, w Web) (*Pipeline, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return New(st, nil, w), st
}

func upload(name, content string) Upload {
	return Upload{Name: name, Size: int64(len(content)), Reader: strings.NewReader(content)}
}

func pdfUpload(t *testing.T, name, text string) Upload {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.AddPage()
	doc.SetFont("Helvetica", "", 14)
	doc.Cell(40, 10, text)
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("render %s: %v", name, err)
	}
	return Upload{Name: name, Size: int64(buf.Len()), Reader: &buf}
}

func TestRunOrdersPDFAndTextLectures(t *testing.T) {
	p, _ := newPipeline(t, nil)

	res, err := p.Run(context.Background(), "physics", []Upload{
		upload("第2回.txt", "Advanced"),
		pdfUpload(t, "第1回.pdf", "Intro"),
		upload("第3回.pdf", "%PDF-1.4\nnot a real document\n"),
	}, Extras{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	text, ok := corpus.Build(res.Items)
	if !ok {
		t.Fatal("corpus not built")
	}
	intro := strings.Index(text, "--- Source: 第1回.pdf ---\nIntro")
	advanced := strings.Index(text, "--- Source: 第2回.txt ---\nAdvanced")
	if intro < 0 || advanced < intro {
		t.Fatalf("corpus = %q", text)
	}

	if len(res.Problems) != 1 || res.Problems[0].Source != "第3回.pdf" {
		t.Fatalf("problems = %+v", res.Problems)
	}
	if res.Succeeded != 2 || res.Failed != 1 {
		t.Fatalf("counts = %d/%d", res.Succeeded, res.Failed)
	}
}

func TestLoadCategoryKeepsTextMentioningError(t *testing.T) {
	p, st := newPipeline(t, nil)
	content := "Standard Error and Confidence Intervals\n本文"
	if _, err := st.Save(context.Background(), "stats", "第2回.txt", int64(len(content)), strings.NewReader(content)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	res, err := p.LoadCategory(context.Background(), "stats")
	if err != nil {
		t.Fatalf("LoadCategory: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].Content != content {
		t.Fatalf("items = %+v, problems = %+v", res.Items, res.Problems)
	}
	if len(res.Problems) != 0 {
		t.Fatalf("problems = %+v", res.Problems)
	}
}

func TestRunOrdersFilesAndCollectsProblems(t *testing.T) {
	p, _ := newPipeline(t, nil)

	res, err := p.Run(context.Background(), "physics", []Upload{
		upload("notes.txt", "no number here"),
		upload("第2回.txt", "advanced topics"),
		upload("lecture1.txt", "intro"),
		upload("empty.txt", ""),
		upload("slides.docx", "binary"),
	}, Extras{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := res.Sources()
	want := []string{"lecture1.txt", "第2回.txt", "notes.txt"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("sources = %v, want %v", got, want)
	}
	if res.Total != 4 || res.Succeeded != 3 || res.Failed != 1 {
		t.Fatalf("counts = %d/%d/%d", res.Succeeded, res.Failed, res.Total)
	}
	if res.Report() != "📊 読み込み完了: 成功 3個 / 失敗 1個 / 合計 4個" {
		t.Fatalf("Report = %q", res.Report())
	}

	var rejected, empty bool
	for _, pr := range res.Problems {
		switch pr.Source {
		case "slides.docx":
			rejected = true
		case "empty.txt":
			empty = pr.Reason == "内容が空"
		}
	}
	if !rejected || !empty {
		t.Fatalf("problems = %+v", res.Problems)
	}

	if res.Loaded[0].Message() != "✅ 成功: lecture1.txt (第1回)" || res.Loaded[2].Message() != "✅ 成功: notes.txt" {
		t.Fatalf("loaded = %+v", res.Loaded)
	}
}

func TestRunWebExtras(t *testing.T) {
	w := &fakeWeb{
		pages: map[string]string{
			"https://a.example.edu": "search hit",
			"https://direct.example": "direct page",
		},
		results: []web.SearchResult{
			{Link: "https://a.example.edu"},
			{Link: "https://missing.example"},
		},
	}
	for i := 0; i < 7; i++ {
		w.entries = append(w.entries, web.FeedEntry{Title: "t", Summary: "s", Link: "https://feed.example/" + string(rune('a'+i))})
	}
	p, _ := newPipeline(t, w)

	res, err := p.Run(context.Background(), "physics", nil, Extras{
		Search: "fourier",
		URL:    "https://direct.example",
		RSS:    "https://feed.example/rss",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Items) != 2+RSSItems {
		t.Fatalf("items = %d: %+v", len(res.Items), res.Items)
	}
	if res.Items[0].Source != "https://a.example.edu" || res.Items[1].Source != "https://direct.example" {
		t.Fatalf("web order = %v", res.Sources())
	}
	if res.Items[2].Content != "t\ns" || res.Items[2].Source != "https://feed.example/a" {
		t.Fatalf("rss item = %+v", res.Items[2])
	}
	if len(res.Problems) != 1 || res.Problems[0].Source != "https://missing.example" {
		t.Fatalf("problems = %+v", res.Problems)
	}
}

func TestRunNothingLoaded(t *testing.T) {
	p, _ := newPipeline(t, nil)
	res, err := p.Run(context.Background(), "empty", nil, Extras{URL: "https://example.com"})
	if !errors.Is(err, llm.ErrEmptyCorpus) {
		t.Fatalf("err = %v", err)
	}
	if len(res.Problems) != 1 {
		t.Fatalf("problems = %+v", res.Problems)
	}
}

func TestRunInvalidCategory(t *testing.T) {
	p, _ := newPipeline(t, nil)
	if _, err := p.Run(context.Background(), "../..", nil, Extras{}); !errors.Is(err, store.ErrInvalidCategory) {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadCategory(t *testing.T) {
	p, st := newPipeline(t, nil)
	ctx := context.Background()
	for _, u := range []Upload{upload("week 3.txt", "c"), upload("week 1.txt", "a")} {
		if _, err := st.Save(ctx, "math", u.Name, u.Size, u.Reader); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	res, err := p.LoadCategory(ctx, "math")
	if err != nil {
		t.Fatalf("LoadCategory: %v", err)
	}
	if strings.Join(res.Sources(), ",") != "week 1.txt,week 3.txt" {
		t.Fatalf("sources = %v", res.Sources())
	}

	if _, err := p.LoadCategory(ctx, "missing"); !errors.Is(err, store.ErrCategoryNotFound) {
		t.Fatalf("missing category err = %v", err)
	}
}
