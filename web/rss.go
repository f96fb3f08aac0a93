package web

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"
)

// MaxSummaryLength caps an RSS entry summary, in characters.
const MaxSummaryLength = 500

// FeedEntry is one sanitized RSS/Atom entry.
type FeedEntry struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Summary string `json:"summary"`
}

// RSS parses the feed at rawURL. Entries whose link fails validation are skipped.
func (c *Client) RSS(ctx context.Context, rawURL string) ([]FeedEntry, error) {
	if err := c.validate(rawURL); err != nil {
		return nil, err
	}

	fp := gofeed.NewParser()
	fp.Client = c.http
	fp.UserAgent = userAgent

	feed, err := fp.ParseURLWithContext(rawURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", rawURL, err)
	}

	items := feed.Items
	if len(items) > c.rssMaxEntries {
		items = items[:c.rssMaxEntries]
	}

	entries := make([]FeedEntry, 0, len(items))
	for _, item := range items {
		if item == nil || item.Link == "" {
			continue
		}
		if err := c.validate(item.Link); err != nil {
			log.Debug().Str("url", item.Link).Err(err).Msg("feed entry skipped")
			continue
		}

		title := item.Title
		if title == "" {
			title = "No Title"
		}
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		entries = append(entries, FeedEntry{
			Title:   SanitizeQuery(title),
			Link:    item.Link,
			Summary: truncateRunes(SanitizeQuery(summary), MaxSummaryLength),
		})
	}
	return entries, nil
}
