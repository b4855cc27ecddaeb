package config

import (
	"errors"
	"fmt"

	miniflux "miniflux.app/client"
)

var ErrNoMiniflux = errors.New("config.MinifluxSources: no miniflux backend configured")

// MinifluxSources lists the subscriptions of the configured Miniflux account.
func (r *Runtime) MinifluxSources() ([]Source, error) {
	if r.Config.Backends == nil || r.Config.Backends.Miniflux == nil {
		return nil, ErrNoMiniflux
	}
	return getMinifluxSources(r.Config.Backends.Miniflux)
}

func getMinifluxSources(b *MinifluxBackend) ([]Source, error) {
	if b.Host == "" || b.APIKey == "" {
		return nil, fmt.Errorf("config.getMinifluxSources: host and api_key are required")
	}

	client := miniflux.New(b.Host, b.APIKey)
	feeds, err := client.Feeds()
	if err != nil {
		return nil, fmt.Errorf("config.getMinifluxSources: %w", err)
	}

	sources := make([]Source, 0, len(feeds))
	for _, f := range feeds {
		sources = append(sources, Source{
			URL:  f.FeedURL,
			Name: f.Title,
		})
	}

	return sources, nil
}
