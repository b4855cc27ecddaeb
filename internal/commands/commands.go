// Package commands is the application service behind the CLI and the HTTP
// API. One Commands value is built by main and shared by every caller.
package commands

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/guyfedwards/feedstash/internal/config"
	"github.com/guyfedwards/feedstash/internal/constants"
	"github.com/guyfedwards/feedstash/internal/feed"
	"github.com/guyfedwards/feedstash/internal/fetcher"
	"github.com/guyfedwards/feedstash/internal/logging"
	"github.com/guyfedwards/feedstash/internal/model"
	"github.com/guyfedwards/feedstash/internal/render"
	"github.com/guyfedwards/feedstash/internal/store"
)

var ErrItemNotFound = errors.New("commands: item not found")

type Commands struct {
	config  *config.Runtime
	store   *store.Store
	fetcher fetcher.Fetcher
	log     *log.Logger
	client  *http.Client
	now     func() time.Time

	inFlight   atomic.Bool
	generation atomic.Uint64
}

func New(runtime *config.Runtime, s *store.Store, f fetcher.Fetcher, logger *log.Logger) *Commands {
	if runtime == nil {
		runtime = config.New()
	}
	return &Commands{
		config:  runtime,
		store:   s,
		fetcher: f,
		log:     logging.OrDiscard(logger),
		client:  &http.Client{Timeout: fetcher.DefaultTimeout},
		now:     time.Now,
	}
}

// WithClock replaces the clock used for lastUpdated and visit times.
func (c *Commands) WithClock(now func() time.Time) *Commands {
	if now != nil {
		c.now = now
	}
	return c
}

func (c *Commands) Store() *store.Store {
	return c.store
}

// State is a snapshot of everything stored.
func (c *Commands) State() model.State {
	return c.store.Read()
}

// SeedSources adds the sources listed in config that the store does not
// know about yet. Sources removed from config are left in the store.
func (c *Commands) SeedSources() (int, error) {
	existing := c.store.Read().Sources
	added := 0

	for _, s := range c.config.GetSources() {
		if slices.ContainsFunc(existing, func(e model.Source) bool { return e.URL == s.URL }) {
			continue
		}
		_, err := c.store.AddSource(sourceFromConfig(s))
		if errors.Is(err, store.ErrSourceExists) {
			continue
		}
		if err != nil {
			return added, fmt.Errorf("commands.SeedSources: %w", err)
		}
		added++
	}

	if added > 0 {
		c.log.Info("seeded sources from config", "count", added)
	}
	return added, nil
}

// ApplyPreferences copies theme and language from config into the store
// when config sets them.
func (c *Commands) ApplyPreferences() error {
	cfg := c.config.Config
	if cfg == nil {
		return nil
	}
	st := c.store.Read()
	if cfg.Theme != "" && cfg.Theme != st.Theme {
		if err := c.store.SetTheme(cfg.Theme); err != nil {
			return fmt.Errorf("commands.ApplyPreferences: %w", err)
		}
	}
	if cfg.Language != "" && cfg.Language != st.Language {
		if err := c.store.SetLanguage(cfg.Language); err != nil {
			return fmt.Errorf("commands.ApplyPreferences: %w", err)
		}
	}
	return nil
}

func sourceFromConfig(s config.Source) model.Source {
	typ := model.SourceRSS
	if s.Video {
		typ = model.SourceVideo
	}
	return model.Source{URL: s.URL, Name: s.Name, Type: typ}
}

func (c *Commands) ShowConfig(w io.Writer) error {
	out, err := yaml.Marshal(c.config.Config)
	if err != nil {
		return fmt.Errorf("commands.ShowConfig: %w", err)
	}
	fmt.Fprintf(w, "configpath: %s\n", c.config.ConfigPath)
	fmt.Fprintf(w, "storagepath: %s\n", c.config.StoragePath())
	_, err = w.Write(out)
	return err
}

// ListSources writes the subscribed sources.
func (c *Commands) ListSources(w io.Writer) error {
	st := c.store.Read()
	if len(st.Sources) == 0 {
		fmt.Fprintln(w, "no sources, add one with 'feedstash add <url>'")
		return nil
	}
	for _, s := range st.Sources {
		fmt.Fprintf(w, "%s %s  %s  %s\n", render.Badge(s), s.Name, s.URL, s.ID)
	}
	return nil
}

// ListItems writes the active view in the configured ordering.
func (c *Commands) ListItems(w io.Writer) error {
	st := c.store.Read()

	items := slices.Clone(st.ActiveItems)
	if c.config.Config.Ordering == constants.AscendingOrdering {
		slices.Reverse(items)
	}

	if len(items) == 0 {
		if st.Error != "" {
			fmt.Fprintln(w, st.Error)
			return nil
		}
		fmt.Fprintln(w, "no items, try 'feedstash refresh'")
		return nil
	}

	for i, it := range items {
		src, _ := st.SourceByID(it.Source)
		fmt.Fprintln(w, render.ItemLine(i+1, it, src, store.SourceNameIn(st, it.Source)))
	}
	return nil
}

func (c *Commands) activeView(st *model.State) {
	st.ActiveItems = feed.Filter(st.Items, feed.FilterOptions{
		ActiveSources: st.ActiveSources,
		Hidden:        st.HiddenItems,
		Query:         st.SearchQuery,
	})
}
