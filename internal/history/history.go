// Package history keeps the bounded, most-recent-first list of visited links.
package history

import (
	"github.com/samber/lo"

	"github.com/guyfedwards/feedstash/internal/constants"
	"github.com/guyfedwards/feedstash/internal/model"
)

const MaxEntries = constants.MaxHistoryItems

// Record touches entry: any older entry for the same link is dropped and
// entry goes to the front. The result holds at most max entries.
func Record(entries []model.HistoryItem, entry model.HistoryItem, max int) []model.HistoryItem {
	if max <= 0 {
		max = MaxEntries
	}

	out := make([]model.HistoryItem, 0, min(len(entries)+1, max))
	out = append(out, entry)
	for _, e := range entries {
		if len(out) == max {
			break
		}
		if e.Link == entry.Link {
			continue
		}
		out = append(out, e)
	}

	return out
}

func Remove(entries []model.HistoryItem, link string) []model.HistoryItem {
	return lo.Reject(entries, func(e model.HistoryItem, _ int) bool {
		return e.Link == link
	})
}

func Clear() []model.HistoryItem {
	return []model.HistoryItem{}
}

// Truncate enforces the cap on an existing list without reordering it.
func Truncate(entries []model.HistoryItem, max int) []model.HistoryItem {
	if max <= 0 {
		max = MaxEntries
	}
	if len(entries) <= max {
		return entries
	}
	return entries[:max]
}
