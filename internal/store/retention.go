package store

import (
	"github.com/samber/lo"

	"github.com/guyfedwards/feedstash/internal/constants"
	"github.com/guyfedwards/feedstash/internal/feed"
	"github.com/guyfedwards/feedstash/internal/history"
	"github.com/guyfedwards/feedstash/internal/model"
)

// Limits bound what a single write may keep.
type Limits struct {
	MaxItems     int
	MaxHistory   int
	MaxBookmarks int
	MaxSources   int
	MaxBytes     int
}

func DefaultLimits() Limits {
	return Limits{
		MaxItems:     constants.MaxTotalItems,
		MaxHistory:   constants.MaxHistoryItems,
		MaxBookmarks: constants.MaxBookmarks,
		MaxSources:   constants.MaxSources,
		MaxBytes:     constants.MaxStorageBytes,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxItems <= 0 {
		l.MaxItems = d.MaxItems
	}
	if l.MaxHistory <= 0 {
		l.MaxHistory = d.MaxHistory
	}
	if l.MaxBookmarks <= 0 {
		l.MaxBookmarks = d.MaxBookmarks
	}
	if l.MaxSources <= 0 {
		l.MaxSources = d.MaxSources
	}
	if l.MaxBytes <= 0 {
		l.MaxBytes = d.MaxBytes
	}
	return l
}

// Cleanup is the retention policy applied on every write. items and
// activeItems are sorted newest first and each capped at MaxItems; history
// is capped and hidden markers are de-duplicated. Bookmarks and sources are
// never trimmed, only reported by GetStorageInfo.
func Cleanup(state model.State, limits Limits) model.State {
	limits = limits.withDefaults()
	state.FillDefaults()

	state.Items = capNewest(state.Items, limits.MaxItems)
	state.ActiveItems = capNewest(state.ActiveItems, limits.MaxItems)
	state.History = history.Truncate(state.History, limits.MaxHistory)
	state.HiddenItems = lo.Uniq(state.HiddenItems)

	return state
}

func capNewest(items []model.FeedItem, max int) []model.FeedItem {
	out := make([]model.FeedItem, len(items))
	copy(out, items)
	feed.SortByDate(out)
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// PruneHidden drops hidden markers whose item is not among items, keeping
// the list from growing without bound.
func PruneHidden(hidden []string, items []model.FeedItem) []string {
	present := make(map[string]bool, len(items))
	for _, it := range items {
		present[feed.HiddenKey(it)] = true
	}
	return lo.Filter(lo.Uniq(hidden), func(k string, _ int) bool {
		return present[k]
	})
}
