package feed

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"

	"github.com/guyfedwards/feedstash/internal/model"
)

type FilterOptions struct {
	// ActiveSources is an allowlist of source ids. Empty means every source.
	ActiveSources []string
	// Hidden holds HiddenKey values of dismissed items.
	Hidden []string
	Query  string
}

type titles []model.FeedItem

func (t titles) String(i int) string { return t[i].Title }
func (t titles) Len() int            { return len(t) }

// Filter derives the active view from the cached items. Order is preserved,
// so a date-sorted input stays date-sorted.
func Filter(items []model.FeedItem, opts FilterOptions) []model.FeedItem {
	allowed := lo.SliceToMap(opts.ActiveSources, func(id string) (string, bool) {
		return id, true
	})
	hidden := lo.SliceToMap(opts.Hidden, func(k string) (string, bool) {
		return k, true
	})

	out := lo.Filter(items, func(it model.FeedItem, _ int) bool {
		if len(allowed) > 0 && !allowed[it.Source] {
			return false
		}
		return !hidden[HiddenKey(it)]
	})

	query := strings.TrimSpace(opts.Query)
	if query == "" {
		return out
	}

	matches := fuzzy.FindFrom(query, titles(out))
	idx := make([]int, 0, len(matches))
	for _, m := range matches {
		idx = append(idx, m.Index)
	}
	sort.Ints(idx)

	result := make([]model.FeedItem, 0, len(idx))
	for _, i := range idx {
		result = append(result, out[i])
	}
	return result
}
