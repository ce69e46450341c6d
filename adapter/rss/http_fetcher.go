package rss

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"newspenguin/domain"
)

const userAgent = "newspenguin/1.0"

type HTTPFetcher struct {
	client *http.Client
	parser *gofeed.Parser
	dates  domain.TimestampParser
}

// NewHTTPFetcher builds a fetcher whose timestamps must match one of layouts
// (domain.TimestampLayout when empty).
func NewHTTPFetcher(timeout time.Duration, layouts ...string) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
		parser: gofeed.NewParser(),
		dates:  domain.NewTimestampParser(layouts...),
	}
}

// Fetch downloads and parses the feed. A malformed channel build date fails
// the fetch; malformed item dates are returned in FeedSnapshot.Rejected.
func (f *HTTPFetcher) Fetch(ctx context.Context, feedURL string) (domain.FeedSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return domain.FeedSnapshot{}, &domain.FetchError{URL: feedURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return domain.FeedSnapshot{}, &domain.FetchError{URL: feedURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.FeedSnapshot{}, &domain.FetchError{URL: feedURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return domain.FeedSnapshot{}, &domain.FetchError{URL: feedURL, Err: err}
	}
	return f.snapshot(feed)
}

func (f *HTTPFetcher) snapshot(feed *gofeed.Feed) (domain.FeedSnapshot, error) {
	built, err := f.dates.Parse("lastBuildDate", feed.Updated)
	if err != nil {
		return domain.FeedSnapshot{}, err
	}
	snap := domain.FeedSnapshot{
		BuildTimestamp: built,
		Items:          make([]domain.FeedItem, 0, len(feed.Items)),
	}
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		published, perr := f.dates.Parse("pubDate", it.Published)
		if perr != nil {
			snap.Rejected = append(snap.Rejected, domain.RejectedItem{Title: it.Title, Link: it.Link, Err: perr})
			continue
		}
		snap.Items = append(snap.Items, domain.FeedItem{
			Title:        it.Title,
			Description:  it.Description,
			Link:         it.Link,
			PublishedAt:  published,
			PublishedRaw: it.Published,
		})
	}
	return snap, nil
}
