package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/guyfedwards/feedstash/internal/feed"
	"github.com/guyfedwards/feedstash/internal/model"
	"github.com/guyfedwards/feedstash/internal/opml"
	"github.com/guyfedwards/feedstash/internal/store"
)

// AddFeed subscribes to url. The feed is fetched once to check it works and
// to pick up its title when name is empty; its items go straight into the
// cache.
func (c *Commands) AddFeed(ctx context.Context, url, name string, isVideo bool) (model.Source, error) {
	md, err := c.fetcher.FetchSingleFeed(ctx, url, isVideo)
	if err != nil {
		return model.Source{}, fmt.Errorf("commands.AddFeed: %w", err)
	}

	if name == "" {
		name = strings.TrimSpace(md.Title)
	}
	typ := model.SourceRSS
	if isVideo {
		typ = model.SourceVideo
	}

	src, err := c.store.AddSource(model.Source{URL: url, Name: name, Type: typ})
	if err != nil {
		return model.Source{}, fmt.Errorf("commands.AddFeed: %w", err)
	}

	if len(md.Items) > 0 {
		items := make([]model.FeedItem, len(md.Items))
		for i, it := range md.Items {
			it.Source = src.ID
			items[i] = it
		}
		if _, err := c.store.Update(func(st *model.State) {
			st.Items = feed.MergeAndSort(append(items, st.Items...))
			c.activeView(st)
		}); err != nil {
			c.log.Warn("could not cache items of new source", "source", src.ID, "err", err)
		}
	}

	return src, nil
}

// RemoveFeed unsubscribes. Cached items of the source drop out on the next
// refresh; bookmarks and history keep pointing at it.
func (c *Commands) RemoveFeed(id string) error {
	if err := c.store.RemoveSource(id); err != nil {
		return fmt.Errorf("commands.RemoveFeed: %w", err)
	}
	// the allowlist may have lost the id
	if _, err := c.store.Update(c.activeView); err != nil {
		return fmt.Errorf("commands.RemoveFeed: %w", err)
	}
	return nil
}

type ImportResult struct {
	Added   int
	Skipped int
}

// ImportSources reads an OPML document from a file path or URL.
func (c *Commands) ImportSources(ctx context.Context, source string) (ImportResult, error) {
	rc, err := c.open(ctx, source)
	if err != nil {
		return ImportResult{}, fmt.Errorf("commands.ImportSources: %w", err)
	}
	defer rc.Close()

	entries, err := opml.Parse(rc)
	if err != nil {
		return ImportResult{}, fmt.Errorf("commands.ImportSources: %w", err)
	}

	var res ImportResult
	for _, e := range entries {
		typ := model.SourceRSS
		if e.Video {
			typ = model.SourceVideo
		}
		if err := c.addOrSkip(model.Source{URL: e.URL, Name: e.Title, Type: typ}, &res); err != nil {
			return res, fmt.Errorf("commands.ImportSources: %w", err)
		}
	}

	c.log.Info("imported sources", "from", source, "added", res.Added, "skipped", res.Skipped)
	return res, nil
}

func (c *Commands) ExportSources(w io.Writer) error {
	st := c.store.Read()
	if err := opml.Export(w, "feedstash subscriptions", st.Sources, c.now()); err != nil {
		return fmt.Errorf("commands.ExportSources: %w", err)
	}
	return nil
}

// ImportMiniflux copies the subscription list of the configured Miniflux
// account.
func (c *Commands) ImportMiniflux() (ImportResult, error) {
	sources, err := c.config.MinifluxSources()
	if err != nil {
		return ImportResult{}, fmt.Errorf("commands.ImportMiniflux: %w", err)
	}

	var res ImportResult
	for _, s := range sources {
		if err := c.addOrSkip(sourceFromConfig(s), &res); err != nil {
			return res, fmt.Errorf("commands.ImportMiniflux: %w", err)
		}
	}
	return res, nil
}

func (c *Commands) addOrSkip(src model.Source, res *ImportResult) error {
	_, err := c.store.AddSource(src)
	switch {
	case errors.Is(err, store.ErrSourceExists):
		res.Skipped++
		return nil
	case err != nil:
		return err
	}
	res.Added++
	return nil
}

func (c *Commands) open(ctx context.Context, source string) (io.ReadCloser, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return os.Open(source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", source, resp.Status)
	}
	return resp.Body, nil
}
