package feed

import (
	"slices"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/samber/lo"

	"github.com/guyfedwards/feedstash/internal/model"
)

// ParseDate parses the loosely formatted dates found in feeds.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Timestamp is the sort key of an item in Unix milliseconds. Items without a
// usable date count as the epoch.
func Timestamp(item model.FeedItem) int64 {
	ts, _ := timestamp(item)
	return ts
}

func timestamp(item model.FeedItem) (int64, bool) {
	t, ok := ParseDate(item.PubDate)
	if !ok {
		return 0, false
	}
	return t.UnixMilli(), true
}

type sortKey struct {
	ts    int64
	valid bool
}

// SortByDate orders items newest first in place. Items without a usable date
// go after every dated item, including dates before 1970. The sort is stable,
// so items with equal (or missing) dates keep their input order.
func SortByDate(items []model.FeedItem) {
	keys := make(map[string]sortKey, len(items))
	key := func(it model.FeedItem) sortKey {
		if k, ok := keys[it.PubDate]; ok {
			return k
		}
		ts, valid := timestamp(it)
		k := sortKey{ts: ts, valid: valid}
		keys[it.PubDate] = k
		return k
	}

	slices.SortStableFunc(items, func(a, b model.FeedItem) int {
		ka, kb := key(a), key(b)
		switch {
		case ka.valid != kb.valid:
			if ka.valid {
				return -1
			}
			return 1
		case ka.ts > kb.ts:
			return -1
		case ka.ts < kb.ts:
			return 1
		}
		return 0
	})
}

// MergeAndSort dedups a fetched batch by link and sorts it newest first.
func MergeAndSort(fetched []model.FeedItem) []model.FeedItem {
	out := lo.UniqBy(fetched, func(it model.FeedItem) string {
		return it.Link
	})
	SortByDate(out)
	return out
}

// Merge combines a fresh fetch with the cached items. Cached items survive
// only while their source is still in keepSources; fetched copies replace
// cached ones with the same link. Items without a link share the identity
// "" and collapse into one.
func Merge(cached, fetched []model.FeedItem, keepSources []string) []model.FeedItem {
	keep := lo.SliceToMap(keepSources, func(id string) (string, bool) {
		return id, true
	})

	combined := make([]model.FeedItem, 0, len(fetched)+len(cached))
	combined = append(combined, fetched...)
	for _, it := range cached {
		if keep[it.Source] {
			combined = append(combined, it)
		}
	}

	return MergeAndSort(combined)
}

// CountNewSince counts items published strictly after last. A nil last means
// this is the first fetch, and nothing is new.
func CountNewSince(fetched []model.FeedItem, last *time.Time) int {
	if last == nil {
		return 0
	}
	cutoff := last.UnixMilli()
	return lo.CountBy(fetched, func(it model.FeedItem) bool {
		ts, ok := timestamp(it)
		return ok && ts > cutoff
	})
}
