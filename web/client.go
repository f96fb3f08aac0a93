// Package web collects external sources: single pages, DuckDuckGo search results
// and RSS feeds. Every URL passes ValidateURL before it is requested.
package web

import (
	"math/rand/v2"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultTimeout bounds each outbound request
	DefaultTimeout = 10 * time.Second
	// DefaultMaxContentBytes caps fetched page content (2MB)
	DefaultMaxContentBytes = 2 * 1024 * 1024
	// DefaultRSSMaxEntries caps the entries read from one feed
	DefaultRSSMaxEntries = 10
	// DefaultSearchEndpoint is the DuckDuckGo Lite HTML endpoint
	DefaultSearchEndpoint = "https://lite.duckduckgo.com/lite/"
	// MinSearchInterval is the minimum interval between searches
	MinSearchInterval = 500 * time.Millisecond

	userAgent = "lecturemate/1.0"
)

var browserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
}

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	Timeout         time.Duration
	MaxContentBytes int64
	RSSMaxEntries   int
	SearchEndpoint  string
	// SearchInterval is the minimum gap between searches; negative disables it.
	SearchInterval time.Duration
	// Validate overrides ValidateURL.
	Validate func(string) error
	HTTP     *http.Client
}

// Client fetches pages, searches and feeds.
type Client struct {
	http            *http.Client
	maxContentBytes int64
	rssMaxEntries   int
	searchEndpoint  string
	searchInterval  time.Duration
	validate        func(string) error

	searchMu   sync.Mutex
	lastSearch time.Time
}

// NewClient builds a Client from opts.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxContentBytes <= 0 {
		opts.MaxContentBytes = DefaultMaxContentBytes
	}
	if opts.RSSMaxEntries <= 0 {
		opts.RSSMaxEntries = DefaultRSSMaxEntries
	}
	if opts.SearchEndpoint == "" {
		opts.SearchEndpoint = DefaultSearchEndpoint
	}
	if opts.SearchInterval == 0 {
		opts.SearchInterval = MinSearchInterval
	}
	if opts.Validate == nil {
		opts.Validate = ValidateURL
	}
	if opts.HTTP == nil {
		opts.HTTP = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		http:            opts.HTTP,
		maxContentBytes: opts.MaxContentBytes,
		rssMaxEntries:   opts.RSSMaxEntries,
		searchEndpoint:  opts.SearchEndpoint,
		searchInterval:  opts.SearchInterval,
		validate:        opts.Validate,
	}
}

// setBrowserHeaders sets randomized headers that mimic a real browser
func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", browserAgents[rand.IntN(len(browserAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// waitSearchSlot enforces the minimum interval between searches
func (c *Client) waitSearchSlot() {
	if c.searchInterval < 0 {
		return
	}
	c.searchMu.Lock()
	defer c.searchMu.Unlock()

	minGap := c.searchInterval + time.Duration(rand.IntN(1500))*time.Millisecond
	if elapsed := time.Since(c.lastSearch); elapsed < minGap {
		time.Sleep(minGap - elapsed)
	}
	c.lastSearch = time.Now()
}
