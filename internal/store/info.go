package store

import (
	"encoding/json"

	"github.com/guyfedwards/feedstash/internal/model"
)

type StorageInfo struct {
	ItemCount       int     `json:"itemCount"`
	ActiveItemCount int     `json:"activeItemCount"`
	BookmarkCount   int     `json:"bookmarkCount"`
	SourceCount     int     `json:"sourceCount"`
	HistoryCount    int     `json:"historyCount"`
	HiddenCount     int     `json:"hiddenCount"`
	SizeBytes       int     `json:"sizeBytes"`
	SizeKB          float64 `json:"sizeKB"`
	SizeMB          float64 `json:"sizeMB"`

	ItemsWithinLimit     bool `json:"itemsWithinLimit"`
	BookmarksWithinLimit bool `json:"bookmarksWithinLimit"`
	SourcesWithinLimit   bool `json:"sourcesWithinLimit"`
	HistoryWithinLimit   bool `json:"historyWithinLimit"`
	SizeWithinLimit      bool `json:"sizeWithinLimit"`
}

// GetStorageInfo reports counts and size of what is currently stored. It is
// computed from the raw stored value every time, never cached, and never
// modifies storage. When nothing usable is stored it reports the defaults and
// the size writing them would take.
func (s *Store) GetStorageInfo() StorageInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.backend.GetItem(s.key)
	if err != nil {
		s.log.Error("storage info read failed", "key", s.key, "err", err)
		ok = false
	}

	state, size := model.DefaultState(), len(raw)
	usable := false
	if ok && raw != "" {
		if st, err := decodeState(raw); err == nil {
			state, usable = st, true
		}
	}
	if !usable {
		if b, err := json.Marshal(state); err == nil {
			size = len(b)
		}
	}

	l := s.limits
	return StorageInfo{
		ItemCount:       len(state.Items),
		ActiveItemCount: len(state.ActiveItems),
		BookmarkCount:   len(state.Bookmarks),
		SourceCount:     len(state.Sources),
		HistoryCount:    len(state.History),
		HiddenCount:     len(state.HiddenItems),
		SizeBytes:       size,
		SizeKB:          float64(size) / 1024,
		SizeMB:          float64(size) / (1024 * 1024),

		ItemsWithinLimit:     len(state.Items) <= l.MaxItems && len(state.ActiveItems) <= l.MaxItems,
		BookmarksWithinLimit: len(state.Bookmarks) <= l.MaxBookmarks,
		SourcesWithinLimit:   len(state.Sources) <= l.MaxSources,
		HistoryWithinLimit:   len(state.History) <= l.MaxHistory,
		SizeWithinLimit:      size <= l.MaxBytes,
	}
}
