package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/guyfedwards/feedstash/internal/feed"
	"github.com/guyfedwards/feedstash/internal/model"
)

// maxResponseBytes bounds how much of a backend reply is read.
const maxResponseBytes = 32 << 20

// BackendClient fetches through the feed backend service, which does the
// polling and XML parsing and answers with loosely typed JSON.
type BackendClient struct {
	base      string
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	log       *log.Logger
}

func NewBackendClient(baseURL string, opts Options) *BackendClient {
	opts = opts.withDefaults()
	return &BackendClient{
		base:      strings.TrimRight(baseURL, "/"),
		client:    opts.httpClient(),
		limiter:   rate.NewLimiter(rate.Every(250*time.Millisecond), 2),
		userAgent: opts.UserAgent,
		log:       opts.Logger,
	}
}

type feedsRequest struct {
	Sources []SourceRef `json:"sources"`
}

type feedsResponse struct {
	Feed []map[string]any `json:"feed"`
}

// FetchFeeds asks the backend for every source in one request. Nothing is
// retried; the caller keeps its cached items on failure.
func (b *BackendClient) FetchFeeds(ctx context.Context, sources []SourceRef) ([]model.FeedItem, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	body, err := json.Marshal(feedsRequest{Sources: sources})
	if err != nil {
		return nil, fmt.Errorf("fetcher.FetchFeeds: %w", err)
	}

	var resp feedsResponse
	if err := b.do(ctx, http.MethodPost, b.base+"/api/feeds", body, &resp); err != nil {
		return nil, fmt.Errorf("fetcher.FetchFeeds: %w", err)
	}

	items := feed.NormalizeAll(resp.Feed)
	b.log.Debug("backend fetch done", "sources", len(sources), "items", len(items))
	return items, nil
}

// FetchSingleFeed is used for discovery when a feed is added.
func (b *BackendClient) FetchSingleFeed(ctx context.Context, feedURL string, isVideo bool) (FeedMetadata, error) {
	q := url.Values{}
	q.Set("url", feedURL)
	q.Set("video", strconv.FormatBool(isVideo))

	var raw map[string]any
	if err := b.do(ctx, http.MethodGet, b.base+"/api/feed?"+q.Encode(), nil, &raw); err != nil {
		return FeedMetadata{}, fmt.Errorf("fetcher.FetchSingleFeed: %w", err)
	}

	return metadataFromRaw(raw), nil
}

func (b *BackendClient) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", b.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		b.log.Warn("backend returned error", "url", endpoint, "status", resp.StatusCode)
		return fmt.Errorf("%s %s: %s: %s", method, endpoint, resp.Status, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// metadataFromRaw reads feed level fields. Items may be under "items",
// "feed" or "entries" depending on the dialect.
func metadataFromRaw(raw map[string]any) FeedMetadata {
	md := FeedMetadata{
		Title:       feed.ExtractTitle(raw["title"]),
		Description: feed.ExtractTitle(raw["description"]),
		Link:        feed.ExtractLink(raw),
		Image:       feed.ExtractTitle(raw["image"]),
	}
	if md.Image == "" {
		if img, ok := raw["image"].(map[string]any); ok {
			md.Image = feed.ExtractTitle(img["url"])
		}
	}

	for _, key := range []string{"items", "feed", "entries"} {
		list, ok := raw[key].([]any)
		if !ok {
			continue
		}
		raws := make([]map[string]any, 0, len(list))
		for _, v := range list {
			if m, ok := v.(map[string]any); ok {
				raws = append(raws, m)
			}
		}
		md.Items = feed.NormalizeAll(raws)
		break
	}

	return md
}
