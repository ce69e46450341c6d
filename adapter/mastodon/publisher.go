// Package mastodon posts feed items to a Mastodon-compatible statuses API.
package mastodon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newspenguin/domain"
)

const statusesPath = "/api/v1/statuses"

type Publisher struct {
	client   *http.Client
	endpoint string
	token    string
}

// NewPublisher targets <baseURL>/api/v1/statuses.
func NewPublisher(baseURL, token string, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Publisher{
		client:   &http.Client{Timeout: timeout},
		endpoint: strings.TrimRight(baseURL, "/") + statusesPath,
		token:    token,
	}
}

// StatusText renders the post body for an item.
func StatusText(item domain.FeedItem) string {
	published := item.PublishedRaw
	if published == "" {
		published = domain.FormatTimestamp(item.PublishedAt)
	}
	return fmt.Sprintf("%s:\n%s\n%s\n(%s)", item.Title, item.Description, item.Link, published)
}

// Publish succeeds only on HTTP 200; the response body is never inspected.
func (p *Publisher) Publish(ctx context.Context, item domain.FeedItem) error {
	form := url.Values{}
	form.Set("status", StatusText(item))
	form.Set("visibility", "public")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &domain.PublishError{Err: err}
	}
	req.Header.Set("AUTHORIZATION", "Bearer "+p.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return &domain.PublishError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &domain.PublishError{StatusCode: resp.StatusCode}
	}
	return nil
}

var _ domain.Publisher = (*Publisher)(nil)
