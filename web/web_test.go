package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func allowAll(string) error { return nil }

func testClient(opts Options) *Client {
	if opts.Validate == nil {
		opts.Validate = allowAll
	}
	opts.SearchInterval = -1
	return NewClient(opts)
}

func TestValidateURL(t *testing.T) {
	cases := []struct {
		url string
		ok  bool
	}{
		{"https://example.com/notes", true},
		{"http://www.u-tokyo.ac.jp/lecture", true},
		{"ftp://example.com/file", false},
		{"http://localhost:8080/", false},
		{"http://127.0.0.1/admin", false},
		{"http://10.1.2.3/", false},
		{"http://172.20.0.1/", false},
		{"http://172.32.0.1/", true},
		{"http://192.168.1.1/", false},
		{"http://169.254.169.254/latest/meta-data", false},
		{"http://0.0.0.0/", false},
		{"https://free-stuff.tk/", false},
		{"https://example.com/claim-your-prize", false},
		{"not a url", false},
	}
	for _, c := range cases {
		err := ValidateURL(c.url)
		if (err == nil) != c.ok {
			t.Errorf("ValidateURL(%q) = %v, want ok=%v", c.url, err, c.ok)
		}
		if err != nil && !errors.Is(err, ErrURLNotAllowed) {
			t.Errorf("ValidateURL(%q) error %v does not wrap ErrURLNotAllowed", c.url, err)
		}
	}
}

func TestSanitizeQuery(t *testing.T) {
	if got := SanitizeQuery(`  <script>"fourier" 'transform'  `); got != "scriptfourier transform" {
		t.Fatalf("got %q", got)
	}
	long := strings.Repeat("あ", 600)
	if got := SanitizeQuery(long); len([]rune(got)) != MaxQueryLength {
		t.Fatalf("length = %d", len([]rune(got)))
	}
}

func TestFetchHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><h1>Sorting</h1><p>Quick sort is fast.</p></body></html>`)
	}))
	defer srv.Close()

	got, err := testClient(Options{}).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(got, "Sorting") || !strings.Contains(got, "Quick sort is fast.") {
		t.Fatalf("unexpected content %q", got)
	}
	if strings.Contains(got, "<p>") {
		t.Fatalf("html not converted: %q", got)
	}
}

func TestFetchTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, strings.Repeat("a", 100))
	}))
	defer srv.Close()

	got, err := testClient(Options{MaxContentBytes: 10}).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != strings.Repeat("a", 10)+TruncationNotice {
		t.Fatalf("got %q", got)
	}
}

func TestFetchErrors(t *testing.T) {
	c := NewClient(Options{})
	_, err := c.Fetch(context.Background(), "http://127.0.0.1/secret")
	var ferr *FetchError
	if !errors.As(err, &ferr) || !errors.Is(err, ErrURLNotAllowed) {
		t.Fatalf("err = %v", err)
	}

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	if _, err := testClient(Options{}).Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404")
	}
}

const litePage = `<html><body><table>
<tr><td><a class="result-link" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fdocs.example.com%2Ffft&rut=x">FFT docs</a></td></tr>
<tr><td class="result-snippet">Fast Fourier transform tutorial</td></tr>
<tr><td><a class="result-link" href="https://blocked.example.tk/">Spam</a></td></tr>
<tr><td class="result-snippet">spam</td></tr>
<tr><td><a class="result-link" href="https://www.example.ac.jp/signal">Signal processing</a></td></tr>
<tr><td class="result-snippet">Lecture notes</td></tr>
</table></body></html>`

func TestSearch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, litePage)
	}))
	defer srv.Close()

	c := testClient(Options{SearchEndpoint: srv.URL, Validate: ValidateURL})

	results, err := c.Search(context.Background(), `fourier "transform"`, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != "fourier transform" {
		t.Fatalf("query = %q", gotQuery)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results: %+v", len(results), results)
	}
	if results[0].Link != "https://docs.example.com/fft" || results[0].Snippet != "Fast Fourier transform tutorial" {
		t.Fatalf("first result = %+v", results[0])
	}
	if results[1].Position != 2 || results[1].Title != "Signal processing" {
		t.Fatalf("second result = %+v", results[1])
	}
}

const feedXML = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Course news</title>
<item><title>Week 1 &lt;intro&gt;</title><link>https://example.com/w1</link><description>Welcome</description></item>
<item><title></title><link>https://example.com/w2</link><description>%s</description></item>
<item><title>Bad</title><link>http://127.0.0.1/x</link><description>internal</description></item>
</channel></rss>`

func TestRSS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, feedXML, strings.Repeat("x", 700))
	}))
	defer srv.Close()

	c := testClient(Options{Validate: func(u string) error {
		if strings.HasPrefix(u, srv.URL) {
			return nil
		}
		return ValidateURL(u)
	}})

	entries, err := c.RSS(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("RSS: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries: %+v", len(entries), entries)
	}
	if entries[0].Title != "Week 1 intro" || entries[0].Summary != "Welcome" {
		t.Fatalf("first entry = %+v", entries[0])
	}
	if entries[1].Title != "No Title" || len(entries[1].Summary) != MaxSummaryLength {
		t.Fatalf("second entry title %q summary length %d", entries[1].Title, len(entries[1].Summary))
	}
}
