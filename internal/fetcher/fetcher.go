// Package fetcher talks to whatever produces feed items: the feed backend
// service over HTTP, or the feeds themselves parsed locally. Both hand back
// normalized items; raw shapes never leave this package.
package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/guyfedwards/feedstash/internal/logging"
	"github.com/guyfedwards/feedstash/internal/model"
)

const (
	DefaultTimeout     = 20 * time.Second
	DefaultConcurrency = 4
	DefaultUserAgent   = "feedstash (+https://github.com/guyfedwards/feedstash)"
)

var ErrNoSources = errors.New("fetcher: no sources")

// SourceRef is the part of a Source the fetchers need.
type SourceRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func Refs(sources []model.Source) []SourceRef {
	refs := make([]SourceRef, 0, len(sources))
	for _, s := range sources {
		refs = append(refs, SourceRef{ID: s.ID, URL: s.URL})
	}
	return refs
}

// FeedMetadata describes a single feed, used when subscribing.
type FeedMetadata struct {
	Title       string
	Description string
	Link        string
	Image       string
	Items       []model.FeedItem
}

type Fetcher interface {
	FetchFeeds(ctx context.Context, sources []SourceRef) ([]model.FeedItem, error)
	FetchSingleFeed(ctx context.Context, url string, isVideo bool) (FeedMetadata, error)
}

type Options struct {
	Timeout       time.Duration
	UserAgent     string
	Concurrency   int
	MinTLSVersion uint16
	Logger        *log.Logger
	// Client replaces the client built from the fields above.
	Client *http.Client
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	o.Logger = logging.OrDiscard(o.Logger)
	return o
}

func (o Options) httpClient() *http.Client {
	if o.Client != nil {
		return o.Client
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if o.MinTLSVersion != 0 {
		transport.TLSClientConfig = &tls.Config{MinVersion: o.MinTLSVersion}
	}

	return &http.Client{
		Timeout:   o.Timeout,
		Transport: transport,
	}
}
