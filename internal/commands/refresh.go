package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/guyfedwards/feedstash/internal/constants"
	"github.com/guyfedwards/feedstash/internal/feed"
	"github.com/guyfedwards/feedstash/internal/fetcher"
	"github.com/guyfedwards/feedstash/internal/model"
	"github.com/guyfedwards/feedstash/internal/store"
)

type Trigger int

const (
	// TriggerInitial is the automatic refresh on start or on returning home.
	TriggerInitial Trigger = iota
	// TriggerManual is a user initiated refresh, the only one that counts
	// new items.
	TriggerManual
	// TriggerFilter re-fetches after the source allowlist changed.
	TriggerFilter
)

func (t Trigger) String() string {
	switch t {
	case TriggerInitial:
		return "initial"
	case TriggerManual:
		return "manual"
	case TriggerFilter:
		return "filter"
	}
	return fmt.Sprintf("Trigger(%d)", int(t))
}

var ErrRefreshInFlight = errors.New("commands.Refresh: refresh already in flight")

var errStale = errors.New("commands.Refresh: navigation changed")

type Result struct {
	Trigger Trigger `json:"trigger"`
	// Fetched is the number of items the fetcher returned.
	Fetched int `json:"fetched"`
	// Items is the size of the active view after the refresh.
	Items    int `json:"items"`
	NewItems int `json:"newItems"`
	// Discarded is set when navigation changed while fetching and the
	// result was dropped.
	Discarded bool `json:"discarded"`
}

// Refresh fetches every source and merges the result into the cache. Only
// one refresh runs at a time; a second call while one is running returns
// ErrRefreshInFlight straight away. On fetch failure nothing is retried and
// the cached items stay in place.
func (c *Commands) Refresh(ctx context.Context, trigger Trigger) (Result, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return Result{}, ErrRefreshInFlight
	}
	defer c.inFlight.Store(false)

	gen := c.generation.Load()
	res := Result{Trigger: trigger}

	before, err := c.store.Update(func(st *model.State) {
		st.Loading = true
	})
	if err != nil {
		return res, fmt.Errorf("commands.Refresh: %w", err)
	}
	lastUpdated := before.LastUpdated
	countNew := trigger == TriggerManual && before.Navigation == model.NavHome

	var fetched []model.FeedItem
	if len(before.Sources) > 0 {
		c.log.Debug("refresh started", "trigger", trigger, "sources", len(before.Sources))
		fetched, err = c.fetcher.FetchFeeds(ctx, fetcher.Refs(before.Sources))
	}

	if c.generation.Load() != gen {
		return c.discard(res), nil
	}

	if err != nil {
		c.log.Error("refresh failed", "trigger", trigger, "err", err)
		if _, werr := c.store.Update(func(st *model.State) {
			st.Loading = false
			st.Error = constants.FetchErrorMessage
		}); werr != nil {
			c.log.Error("could not record refresh failure", "err", werr)
		}
		return res, fmt.Errorf("commands.Refresh: %w", err)
	}

	// navigation may change while waiting for the store lock, so the
	// generation is checked again under it
	after, err := c.store.TryUpdate(func(st *model.State) error {
		if c.generation.Load() != gen {
			return errStale
		}
		keep := make([]string, 0, len(st.Sources))
		for _, s := range st.Sources {
			keep = append(keep, s.ID)
		}
		st.Items = feed.Merge(st.Items, fetched, keep)
		// sources that failed silently keep their cached items, and with
		// them their hidden markers
		st.HiddenItems = store.PruneHidden(st.HiddenItems, st.Items)
		c.activeView(st)

		now := c.now().UTC()
		st.LastUpdated = &now
		st.Loading = false
		st.Error = ""
		return nil
	})
	if errors.Is(err, errStale) {
		return c.discard(res), nil
	}
	if err != nil {
		return res, fmt.Errorf("commands.Refresh: %w", err)
	}

	res.Fetched = len(fetched)
	res.Items = len(after.ActiveItems)
	if countNew {
		res.NewItems = feed.CountNewSince(fetched, lastUpdated)
	}

	c.log.Info("refresh done", "trigger", trigger, "fetched", res.Fetched, "new", res.NewItems)
	return res, nil
}

// Refreshing reports whether a refresh is running.
func (c *Commands) Refreshing() bool {
	return c.inFlight.Load()
}

// discard drops a result that arrived after navigation changed.
func (c *Commands) discard(res Result) Result {
	c.log.Info("navigation changed during refresh, discarding result", "trigger", res.Trigger)
	c.clearLoading()
	res.Discarded = true
	return res
}

func (c *Commands) clearLoading() {
	if _, err := c.store.Update(func(st *model.State) {
		st.Loading = false
	}); err != nil {
		c.log.Error("could not clear loading flag", "err", err)
	}
}

// Navigate switches the current view. Any refresh started before the switch
// will have its result discarded.
func (c *Commands) Navigate(nav model.Navigation) error {
	if !nav.Valid() {
		return fmt.Errorf("commands.Navigate: unknown navigation %q", nav)
	}
	c.generation.Add(1)
	if err := c.store.SetNavigation(nav); err != nil {
		return fmt.Errorf("commands.Navigate: %w", err)
	}
	return nil
}

// Search narrows the active view by fuzzy title match. An empty query shows
// everything again.
func (c *Commands) Search(query string) ([]model.FeedItem, error) {
	st, err := c.store.Update(func(st *model.State) {
		st.SearchQuery = query
		c.activeView(st)
	})
	if err != nil {
		return nil, fmt.Errorf("commands.Search: %w", err)
	}
	return st.ActiveItems, nil
}

// SetActiveSources restricts the active view to the given source ids. Unknown
// ids are dropped; an empty list shows every source.
func (c *Commands) SetActiveSources(ids []string) ([]model.FeedItem, error) {
	st, err := c.store.Update(func(st *model.State) {
		active := make([]string, 0, len(ids))
		for _, id := range ids {
			if _, ok := st.SourceByID(id); ok {
				active = append(active, id)
			}
		}
		st.ActiveSources = active
		c.activeView(st)
	})
	if err != nil {
		return nil, fmt.Errorf("commands.SetActiveSources: %w", err)
	}
	return st.ActiveItems, nil
}
