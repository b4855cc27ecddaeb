package store

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/guyfedwards/feedstash/internal/feed"
	"github.com/guyfedwards/feedstash/internal/history"
	"github.com/guyfedwards/feedstash/internal/model"
)

// AddBookmark reports whether a new bookmark was stored. Bookmarking a link
// that is already bookmarked changes nothing.
func (s *Store) AddBookmark(item model.FeedItem) (bool, error) {
	added := false
	_, err := s.TryUpdate(func(st *model.State) error {
		if containsBookmark(st.Bookmarks, item.Link) {
			return nil
		}
		if s.limits.MaxBookmarks > 0 && len(st.Bookmarks) >= s.limits.MaxBookmarks {
			s.log.Warn("bookmark count at limit", "count", len(st.Bookmarks), "limit", s.limits.MaxBookmarks)
		}
		st.Bookmarks = append(st.Bookmarks, model.BookmarkFrom(item))
		added = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("store.AddBookmark: %w", err)
	}
	return added, nil
}

func (s *Store) RemoveBookmark(link string) error {
	_, err := s.Update(func(st *model.State) {
		st.Bookmarks = lo.Reject(st.Bookmarks, func(b model.Bookmark, _ int) bool {
			return b.Link == link
		})
	})
	if err != nil {
		return fmt.Errorf("store.RemoveBookmark: %w", err)
	}
	return nil
}

func (s *Store) IsBookmarked(link string) bool {
	return containsBookmark(s.Read().Bookmarks, link)
}

func containsBookmark(bookmarks []model.Bookmark, link string) bool {
	return lo.ContainsBy(bookmarks, func(b model.Bookmark) bool {
		return b.Link == link
	})
}

// HideItem dismisses an item from the active view.
func (s *Store) HideItem(item model.FeedItem) error {
	key := feed.HiddenKey(item)
	_, err := s.Update(func(st *model.State) {
		if !lo.Contains(st.HiddenItems, key) {
			st.HiddenItems = append(st.HiddenItems, key)
		}
		st.ActiveItems = lo.Reject(st.ActiveItems, func(it model.FeedItem, _ int) bool {
			return feed.HiddenKey(it) == key
		})
	})
	if err != nil {
		return fmt.Errorf("store.HideItem: %w", err)
	}
	return nil
}

// RecordVisit adds or promotes a history entry. A zero VisitedAt is stamped
// with the store clock.
func (s *Store) RecordVisit(entry model.HistoryItem) error {
	if entry.VisitedAt.IsZero() {
		entry.VisitedAt = s.now().UTC()
	}
	_, err := s.Update(func(st *model.State) {
		st.History = history.Record(st.History, entry, s.limits.MaxHistory)
	})
	if err != nil {
		return fmt.Errorf("store.RecordVisit: %w", err)
	}
	return nil
}

func (s *Store) RemoveHistory(link string) error {
	_, err := s.Update(func(st *model.State) {
		st.History = history.Remove(st.History, link)
	})
	if err != nil {
		return fmt.Errorf("store.RemoveHistory: %w", err)
	}
	return nil
}

func (s *Store) ClearHistory() error {
	_, err := s.Update(func(st *model.State) {
		st.History = history.Clear()
	})
	if err != nil {
		return fmt.Errorf("store.ClearHistory: %w", err)
	}
	return nil
}
