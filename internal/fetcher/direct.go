package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/guyfedwards/feedstash/internal/feed"
	"github.com/guyfedwards/feedstash/internal/model"
)

// DirectFetcher parses feeds itself instead of going through the backend.
type DirectFetcher struct {
	parser      *gofeed.Parser
	concurrency int
	log         *log.Logger
}

func NewDirectFetcher(opts Options) *DirectFetcher {
	opts = opts.withDefaults()

	parser := gofeed.NewParser()
	parser.Client = opts.httpClient()
	parser.UserAgent = opts.UserAgent

	return &DirectFetcher{
		parser:      parser,
		concurrency: opts.Concurrency,
		log:         opts.Logger,
	}
}

// FetchFeeds fetches every source concurrently. A failing source is logged
// and skipped; an error is returned only when every source failed.
func (d *DirectFetcher) FetchFeeds(ctx context.Context, sources []SourceRef) ([]model.FeedItem, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	var (
		mu      sync.Mutex
		results = make([][]model.FeedItem, len(sources))
		failed  int
		lastErr error
	)

	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			parsed, err := d.parser.ParseURLWithContext(src.URL, ctx)
			if err != nil {
				d.log.Warn("feed fetch failed", "source", src.ID, "url", src.URL, "err", err)
				mu.Lock()
				failed++
				lastErr = err
				mu.Unlock()
				return nil
			}
			results[i] = itemsFromFeed(parsed, src.ID)
			return nil
		})
	}
	_ = g.Wait()

	if failed == len(sources) {
		return nil, fmt.Errorf("fetcher.FetchFeeds: all %d sources failed: %w", failed, lastErr)
	}

	var items []model.FeedItem
	for _, r := range results {
		items = append(items, r...)
	}
	d.log.Debug("direct fetch done", "sources", len(sources), "failed", failed, "items", len(items))
	return items, nil
}

func (d *DirectFetcher) FetchSingleFeed(ctx context.Context, url string, isVideo bool) (FeedMetadata, error) {
	parsed, err := d.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return FeedMetadata{}, fmt.Errorf("fetcher.FetchSingleFeed: %w", err)
	}

	md := FeedMetadata{
		Title:       parsed.Title,
		Description: parsed.Description,
		Link:        parsed.Link,
		Items:       itemsFromFeed(parsed, ""),
	}
	if parsed.Image != nil {
		md.Image = parsed.Image.URL
	}
	if isVideo {
		d.log.Debug("video feed discovered", "url", url, "items", len(md.Items))
	}
	return md, nil
}

func itemsFromFeed(f *gofeed.Feed, sourceID string) []model.FeedItem {
	raws := make([]map[string]any, 0, len(f.Items))
	for _, it := range f.Items {
		if it == nil {
			continue
		}
		raws = append(raws, rawItem(it, sourceID))
	}
	return feed.NormalizeAll(raws)
}

// rawItem renders a parsed item in the same loose shape the backend
// returns, so both paths share one set of extraction rules.
func rawItem(it *gofeed.Item, sourceID string) map[string]any {
	raw := map[string]any{
		"title":       it.Title,
		"description": it.Description,
	}
	if sourceID != "" {
		raw["source"] = sourceID
	}

	switch {
	case it.Link != "":
		raw["link"] = it.Link
	case len(it.Links) > 0:
		links := make([]any, 0, len(it.Links))
		for _, l := range it.Links {
			links = append(links, l)
		}
		raw["link"] = links
	}

	if it.GUID != "" {
		raw["guid"] = it.GUID
	}

	switch {
	case it.PublishedParsed != nil:
		raw["pubDate"] = it.PublishedParsed.UTC().Format(time.RFC3339)
	case it.Published != "":
		raw["pubDate"] = it.Published
	}
	switch {
	case it.UpdatedParsed != nil:
		raw["updated"] = it.UpdatedParsed.UTC().Format(time.RFC3339)
	case it.Updated != "":
		raw["updated"] = it.Updated
	}

	if it.Content != "" {
		raw["content"] = it.Content
	}
	if it.Author != nil && it.Author.Name != "" {
		raw["author"] = it.Author.Name
	}
	if it.Image != nil && it.Image.URL != "" {
		raw["thumbnail"] = it.Image.URL
	}
	if len(it.Categories) > 0 {
		raw["categories"] = it.Categories
	}

	return raw
}
