package commands

import (
	"fmt"

	"github.com/guyfedwards/feedstash/internal/model"
	"github.com/guyfedwards/feedstash/internal/store"
)

// lookup finds an item by link in the cache, then in bookmarks and history
// so that items which aged out of the cache can still be opened.
func lookup(st model.State, link string) (model.FeedItem, bool) {
	if it, ok := st.ItemByLink(link); ok {
		return it, true
	}
	for _, b := range st.Bookmarks {
		if b.Link == link {
			return model.FeedItem{Title: b.Title, Link: b.Link, Source: b.Source, PubDate: b.PubDate}, true
		}
	}
	for _, h := range st.History {
		if h.Link == link {
			return model.FeedItem{Title: h.Title, Link: h.Link, Source: h.Source}, true
		}
	}
	return model.FeedItem{}, false
}

// Bookmark reports whether a new bookmark was added.
func (c *Commands) Bookmark(link string) (bool, error) {
	item, ok := lookup(c.store.Read(), link)
	if !ok {
		return false, fmt.Errorf("commands.Bookmark: %w: %s", ErrItemNotFound, link)
	}
	return c.store.AddBookmark(item)
}

func (c *Commands) Unbookmark(link string) error {
	return c.store.RemoveBookmark(link)
}

func (c *Commands) Bookmarks() []model.Bookmark {
	return c.store.Read().Bookmarks
}

// Hide dismisses a cached item. Titles are accepted for items without a
// link.
func (c *Commands) Hide(link string) error {
	st := c.store.Read()
	item, ok := st.ItemByLink(link)
	if !ok {
		for _, it := range st.Items {
			if it.Link == "" && it.Title == link {
				item, ok = it, true
				break
			}
		}
	}
	if !ok {
		return fmt.Errorf("commands.Hide: %w: %s", ErrItemNotFound, link)
	}
	return c.store.HideItem(item)
}

// Visit records a visit in history and returns the item so the caller can
// show it.
func (c *Commands) Visit(link string) (model.FeedItem, error) {
	st := c.store.Read()
	item, ok := lookup(st, link)
	if !ok {
		return model.FeedItem{}, fmt.Errorf("commands.Visit: %w: %s", ErrItemNotFound, link)
	}

	err := c.store.RecordVisit(model.HistoryItem{
		Title:      item.Title,
		Link:       item.Link,
		Source:     item.Source,
		VisitedAt:  c.now().UTC(),
		SourceName: store.SourceNameIn(st, item.Source),
	})
	if err != nil {
		return item, fmt.Errorf("commands.Visit: %w", err)
	}
	return item, nil
}

func (c *Commands) History() []model.HistoryItem {
	return c.store.Read().History
}

func (c *Commands) RemoveHistory(link string) error {
	return c.store.RemoveHistory(link)
}

func (c *Commands) ClearHistory() error {
	return c.store.ClearHistory()
}

func (c *Commands) StorageInfo() store.StorageInfo {
	return c.store.GetStorageInfo()
}
