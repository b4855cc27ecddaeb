package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/guyfedwards/feedstash/internal/model"
	"github.com/guyfedwards/feedstash/internal/store/memorystore"
	"github.com/guyfedwards/feedstash/internal/test"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *memorystore.MemoryStore) {
	t.Helper()
	ms := memorystore.NewMemoryStore()
	return New(ms, opts...), ms
}

func datedItem(i int, day time.Time) model.FeedItem {
	return model.FeedItem{
		Title:   fmt.Sprintf("Item %d", i),
		Link:    fmt.Sprintf("https://example.com/%d", i),
		PubDate: day.Format(time.RFC3339),
		Source:  "src-1",
	}
}

func TestReadEmptyReturnsDefaults(t *testing.T) {
	s, _ := newTestStore(t)

	got := s.Read()
	test.Equal(t, model.DefaultState(), got, "default state")
	test.Equal(t, "dark", got.Theme, "theme")
	test.Equal(t, model.NavHome, got.Navigation, "navigation")
	if got.LastUpdated != nil {
		t.Fatal("lastUpdated should be nil before first fetch")
	}
}

func TestWriteReadOrdersNewestFirst(t *testing.T) {
	s, _ := newTestStore(t)

	jan := model.FeedItem{Title: "jan", Link: "https://example.com/jan", PubDate: "2024-01-01"}
	feb := model.FeedItem{Title: "feb", Link: "https://example.com/feb", PubDate: "2024-02-01"}

	state := model.DefaultState()
	state.Items = []model.FeedItem{jan, feb}
	state.ActiveItems = []model.FeedItem{jan, feb}
	if err := s.Write(state); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got := s.Read()
	test.Equal(t, []model.FeedItem{feb, jan}, got.Items, "items")
	test.Equal(t, []model.FeedItem{feb, jan}, got.ActiveItems, "activeItems")
}

func TestRetentionCap(t *testing.T) {
	s, _ := newTestStore(t, WithLimits(Limits{MaxItems: 10}))

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	state := model.DefaultState()
	for i := 0; i < 25; i++ {
		state.Items = append(state.Items, datedItem(i, base.AddDate(0, 0, i)))
	}
	if err := s.Write(state); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got := s.Read().Items
	test.Equal(t, 10, len(got), "capped length")
	for i, it := range got {
		want := datedItem(24-i, base).Link
		if it.Link != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, it.Link)
		}
	}
}

func TestCleanupDefaultCap(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	state := model.DefaultState()
	for i := 0; i < 600; i++ {
		state.Items = append(state.Items, datedItem(i, base.Add(time.Duration(i)*time.Hour)))
	}
	state.ActiveItems = state.Items[:20]

	out := Cleanup(state, Limits{})
	test.Equal(t, 500, len(out.Items), "items capped at default")
	test.Equal(t, 20, len(out.ActiveItems), "activeItems capped independently")
	test.Equal(t, datedItem(599, base).Link, out.Items[0].Link, "newest first")
	test.Equal(t, datedItem(100, base).Link, out.Items[499].Link, "oldest survivor last")
}

func TestCleanupMissingDatesSortLast(t *testing.T) {
	state := model.DefaultState()
	state.Items = []model.FeedItem{
		{Title: "none", Link: "a"},
		{Title: "bad", Link: "b", PubDate: "not a date"},
		{Title: "dated", Link: "c", PubDate: "2024-03-01"},
	}

	out := Cleanup(state, Limits{})
	test.Equal(t, "c", out.Items[0].Link, "dated first")
	test.Equal(t, "a", out.Items[1].Link, "undated keep input order")
	test.Equal(t, "b", out.Items[2].Link, "undated keep input order")
}

func TestCleanupDedupsHidden(t *testing.T) {
	state := model.DefaultState()
	state.HiddenItems = []string{"a", "b", "a"}

	out := Cleanup(state, Limits{})
	test.Equal(t, []string{"a", "b"}, out.HiddenItems, "hidden deduped")
}

func TestCorruptionRecovery(t *testing.T) {
	s, ms := newTestStore(t)

	if err := ms.SetItem("feedstash", "{not json"); err != nil {
		t.Fatalf("SetItem failed: %v", err)
	}

	got := s.Read()
	test.Equal(t, model.DefaultState(), got, "defaults after corruption")

	if _, ok, _ := ms.GetItem("feedstash"); ok {
		t.Fatal("corrupt entry should have been cleared")
	}
}

func TestPartialBlobFilledWithDefaults(t *testing.T) {
	s, ms := newTestStore(t)

	if err := ms.SetItem("feedstash", `{"theme":"light","navigation":"NOWHERE"}`); err != nil {
		t.Fatalf("SetItem failed: %v", err)
	}

	got := s.Read()
	test.Equal(t, "light", got.Theme, "stored theme kept")
	test.Equal(t, model.NavHome, got.Navigation, "unknown navigation reset")
	test.Equal(t, "en", got.Language, "language defaulted")
	if got.Sources == nil || got.History == nil || got.HiddenItems == nil {
		t.Fatal("collections must not be nil")
	}
}

func TestWriteFailureKeepsPreviousState(t *testing.T) {
	ms := memorystore.NewWithQuota(1024)
	s := New(ms)

	if err := s.SetTheme("light"); err != nil {
		t.Fatalf("SetTheme failed: %v", err)
	}

	state := s.Read()
	state.Items = []model.FeedItem{{
		Title:       "huge",
		Link:        "https://example.com/huge",
		Description: strings.Repeat("x", 4096),
	}}
	err := s.Write(state)
	if !errors.Is(err, memorystore.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}

	got := s.Read()
	test.Equal(t, "light", got.Theme, "previous state kept")
	test.Equal(t, 0, len(got.Items), "failed write not visible")
}

func TestUpdate(t *testing.T) {
	s, _ := newTestStore(t)

	out, err := s.Update(func(st *model.State) {
		st.SearchQuery = "go"
		st.ScrollPosition = 42
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	test.Equal(t, "go", out.SearchQuery, "returned state")
	test.Equal(t, 42, s.Read().ScrollPosition, "persisted state")
}

func TestAddSource(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTestStore(t, WithClock(func() time.Time { return now }))

	src, err := s.AddSource(model.Source{URL: "https://www.example.com/feed.xml"})
	if err != nil {
		t.Fatalf("AddSource failed: %v", err)
	}
	if src.ID == "" {
		t.Fatal("expected an id to be assigned")
	}
	test.Equal(t, "example.com", src.Name, "name from host")
	test.Equal(t, "E", src.Initial, "initial")
	test.Equal(t, now, src.AddedOn, "addedOn")
	test.Equal(t, model.SourceRSS, src.Type, "type")
	if src.Color == "" || src.TextColor == "" {
		t.Fatal("expected palette colours")
	}

	got, ok := s.GetSourceByID(src.ID)
	test.True(t, ok, "source stored")
	test.Equal(t, src, got, "stored source")

	_, err = s.AddSource(model.Source{URL: "https://www.example.com/feed.xml", Name: "again"})
	if !errors.Is(err, ErrSourceExists) {
		t.Fatalf("expected ErrSourceExists, got %v", err)
	}
	test.Equal(t, 1, len(s.Read().Sources), "duplicate not stored")
}

func TestRemoveSourceDoesNotCascade(t *testing.T) {
	s, _ := newTestStore(t)

	a, _ := s.AddSource(model.Source{URL: "https://a.example/feed", Name: "A"})
	b, _ := s.AddSource(model.Source{URL: "https://b.example/feed", Name: "B"})

	item := model.FeedItem{Title: "t", Link: "https://a.example/1", Source: a.ID}
	if _, err := s.AddBookmark(item); err != nil {
		t.Fatalf("AddBookmark failed: %v", err)
	}
	if err := s.RecordVisit(model.HistoryItem{Title: "t", Link: item.Link, Source: a.ID}); err != nil {
		t.Fatalf("RecordVisit failed: %v", err)
	}

	if err := s.RemoveSource(a.ID); err != nil {
		t.Fatalf("RemoveSource failed: %v", err)
	}

	st := s.Read()
	test.Equal(t, 1, len(st.Sources), "one source left")
	test.Equal(t, b.ID, st.Sources[0].ID, "other source untouched")
	test.Equal(t, 1, len(st.Bookmarks), "bookmark kept")
	test.Equal(t, 1, len(st.History), "history kept")
	test.Equal(t, model.UnknownSourceName, s.SourceName(a.ID), "dangling reference")
	test.Equal(t, "B", s.SourceName(b.ID), "resolved name")

	if err := s.RemoveSource(a.ID); !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}
}

func TestGetSourceByIDUnknown(t *testing.T) {
	s, _ := newTestStore(t)

	if _, ok := s.GetSourceByID("nope"); ok {
		t.Fatal("unknown id should not resolve")
	}
	if _, ok := s.GetSourceByID(""); ok {
		t.Fatal("empty id should not resolve")
	}
}

func TestBookmarkIdempotence(t *testing.T) {
	s, _ := newTestStore(t)
	item := model.FeedItem{Title: "t", Link: "https://example.com/a", PubDate: "2024-01-01"}

	added, err := s.AddBookmark(item)
	if err != nil || !added {
		t.Fatalf("first AddBookmark: added=%v err=%v", added, err)
	}
	added, err = s.AddBookmark(item)
	if err != nil || added {
		t.Fatalf("second AddBookmark should be a no-op: added=%v err=%v", added, err)
	}
	test.Equal(t, 1, len(s.Read().Bookmarks), "one bookmark")
	test.True(t, s.IsBookmarked(item.Link), "bookmarked")

	if err := s.RemoveBookmark(item.Link); err != nil {
		t.Fatalf("RemoveBookmark failed: %v", err)
	}
	if err := s.RemoveBookmark(item.Link); err != nil {
		t.Fatalf("second RemoveBookmark failed: %v", err)
	}
	test.Equal(t, 0, len(s.Read().Bookmarks), "no bookmarks")
	test.True(t, !s.IsBookmarked(item.Link), "not bookmarked")
}

func TestHideItem(t *testing.T) {
	s, _ := newTestStore(t)

	a := model.FeedItem{Title: "a", Link: "https://example.com/a"}
	b := model.FeedItem{Title: "b", Link: "https://example.com/b"}
	if _, err := s.Update(func(st *model.State) {
		st.ActiveItems = []model.FeedItem{a, b}
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := s.HideItem(a); err != nil {
		t.Fatalf("HideItem failed: %v", err)
	}
	if err := s.HideItem(a); err != nil {
		t.Fatalf("HideItem failed: %v", err)
	}

	st := s.Read()
	test.Equal(t, []string{a.Link}, st.HiddenItems, "hidden once")
	test.Equal(t, []model.FeedItem{b}, st.ActiveItems, "removed from view")
}

func TestPruneHidden(t *testing.T) {
	fetched := []model.FeedItem{{Title: "keep"}}

	got := PruneHidden([]string{"keep", "remove"}, fetched)
	test.Equal(t, []string{"keep"}, got, "stale marker dropped")

	fetched = []model.FeedItem{{Title: "x", Link: "https://example.com/x"}}
	got = PruneHidden([]string{"https://example.com/x", "https://example.com/gone"}, fetched)
	test.Equal(t, []string{"https://example.com/x"}, got, "linked markers")
}

func TestHistoryThroughStore(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s, _ := newTestStore(t, WithClock(func() time.Time { return now }))

	for i := 0; i < 105; i++ {
		err := s.RecordVisit(model.HistoryItem{
			Title:     fmt.Sprintf("a%d", i),
			Link:      fmt.Sprintf("https://example.com/%d", i),
			VisitedAt: now.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("RecordVisit %d failed: %v", i, err)
		}
	}

	h := s.Read().History
	test.Equal(t, 100, len(h), "capped")
	test.Equal(t, "https://example.com/104", h[0].Link, "newest first")
	test.Equal(t, "https://example.com/5", h[99].Link, "oldest kept")

	if err := s.RecordVisit(model.HistoryItem{Link: "https://example.com/new"}); err != nil {
		t.Fatalf("RecordVisit failed: %v", err)
	}
	test.Equal(t, now, s.Read().History[0].VisitedAt, "zero visitedAt stamped")

	if err := s.RemoveHistory("https://example.com/new"); err != nil {
		t.Fatalf("RemoveHistory failed: %v", err)
	}
	test.Equal(t, "https://example.com/104", s.Read().History[0].Link, "entry removed")

	if err := s.ClearHistory(); err != nil {
		t.Fatalf("ClearHistory failed: %v", err)
	}
	test.Equal(t, 0, len(s.Read().History), "cleared")
}

func TestPreferences(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.SetTheme("light"); err != nil {
		t.Fatalf("SetTheme failed: %v", err)
	}
	if err := s.SetLanguage("de"); err != nil {
		t.Fatalf("SetLanguage failed: %v", err)
	}
	if err := s.SetNavigation(model.NavBookmarks); err != nil {
		t.Fatalf("SetNavigation failed: %v", err)
	}
	if err := s.SetNavigation("ELSEWHERE"); err == nil {
		t.Fatal("expected error for unknown navigation")
	}
	if err := s.SetScrollPosition(120); err != nil {
		t.Fatalf("SetScrollPosition failed: %v", err)
	}

	st := s.Read()
	test.Equal(t, "light", st.Theme, "theme")
	test.Equal(t, "de", st.Language, "language")
	test.Equal(t, model.NavBookmarks, st.Navigation, "navigation")
	test.Equal(t, 120, st.ScrollPosition, "scroll")
}

func TestGetStorageInfo(t *testing.T) {
	s, ms := newTestStore(t, WithLimits(Limits{MaxItems: 2}))

	info := s.GetStorageInfo()
	test.Equal(t, 0, info.ItemCount, "empty items")
	test.True(t, info.SizeWithinLimit, "empty within size")

	if _, err := s.AddSource(model.Source{URL: "https://a.example/feed"}); err != nil {
		t.Fatalf("AddSource failed: %v", err)
	}
	if _, err := s.AddBookmark(model.FeedItem{Title: "t", Link: "https://a.example/1"}); err != nil {
		t.Fatalf("AddBookmark failed: %v", err)
	}

	raw, _, _ := ms.GetItem("feedstash")
	info = s.GetStorageInfo()
	test.Equal(t, 1, info.SourceCount, "sources")
	test.Equal(t, 1, info.BookmarkCount, "bookmarks")
	test.Equal(t, len(raw), info.SizeBytes, "size from stored blob")
	test.Equal(t, float64(len(raw))/1024, info.SizeKB, "kb")
	test.True(t, info.ItemsWithinLimit, "items within limit")
	test.True(t, info.SourcesWithinLimit, "sources within limit")
}

func TestGetStorageInfoDoesNotTouchCorruptBlob(t *testing.T) {
	s, ms := newTestStore(t)

	if err := ms.SetItem("feedstash", "{not json at all, but long enough"); err != nil {
		t.Fatalf("SetItem failed: %v", err)
	}

	info := s.GetStorageInfo()

	raw, ok, _ := ms.GetItem("feedstash")
	test.True(t, ok, "corrupt blob still stored")
	test.Equal(t, "{not json at all, but long enough", raw, "blob untouched")

	defaults, err := json.Marshal(model.DefaultState())
	if err != nil {
		t.Fatalf("marshal defaults: %v", err)
	}
	test.Equal(t, len(defaults), info.SizeBytes, "size of the defaults")
	test.Equal(t, 0, info.ItemCount, "no items")
}

func TestTryUpdateAbortsWithoutWriting(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.SetTheme("light"); err != nil {
		t.Fatalf("SetTheme failed: %v", err)
	}

	stop := errors.New("stop")
	_, err := s.TryUpdate(func(st *model.State) error {
		st.Theme = "dark"
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected fn error, got %v", err)
	}
	test.Equal(t, "light", s.Read().Theme, "nothing written")
}
