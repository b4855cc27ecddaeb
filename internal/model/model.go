// Package model defines the data shared by the store, the merge logic and the CLI.
package model

import "time"

type SourceType string

const (
	SourceRSS   SourceType = "rss"
	SourceVideo SourceType = "video"
)

// UnknownSourceName is shown for items whose source has been removed.
const UnknownSourceName = "Unknown source"

// Source is a subscribed feed. ID never changes once assigned.
type Source struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	Name      string     `json:"name"`
	AddedOn   time.Time  `json:"addedOn"`
	Color     string     `json:"color,omitempty"`
	TextColor string     `json:"textColor,omitempty"`
	Initial   string     `json:"initial,omitempty"`
	Type      SourceType `json:"type"`
}

func (s Source) IsVideo() bool {
	return s.Type == SourceVideo
}

// FeedItem is the canonical shape of an entry after boundary normalization.
// Link is the identity used for dedup, bookmarks, history and hiding.
type FeedItem struct {
	Title       string         `json:"title"`
	Link        string         `json:"link"`
	Description string         `json:"description,omitempty"`
	PubDate     string         `json:"pubDate,omitempty"`
	Source      string         `json:"source,omitempty"`
	GUID        string         `json:"guid,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

type Bookmark struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Source  string `json:"source,omitempty"`
	PubDate string `json:"pubDate,omitempty"`
}

// BookmarkFrom copies the bookmarked subset of an item.
func BookmarkFrom(item FeedItem) Bookmark {
	return Bookmark{
		Title:   item.Title,
		Link:    item.Link,
		Source:  item.Source,
		PubDate: item.PubDate,
	}
}

type HistoryItem struct {
	Title      string    `json:"title"`
	Link       string    `json:"link"`
	Source     string    `json:"source,omitempty"`
	VisitedAt  time.Time `json:"visitedAt"`
	SourceName string    `json:"sourceName,omitempty"`
}

type Navigation string

const (
	NavHome      Navigation = "HOME"
	NavBookmarks Navigation = "BOOKMARKS"
	NavHistory   Navigation = "HISTORY"
	NavSources   Navigation = "SOURCES"
	NavSettings  Navigation = "SETTINGS"
)

func (n Navigation) Valid() bool {
	switch n {
	case NavHome, NavBookmarks, NavHistory, NavSources, NavSettings:
		return true
	}
	return false
}

const (
	DefaultTheme    = "dark"
	DefaultLanguage = "en"
)

// State is everything persisted on the device. It is always read and
// written as a single blob.
type State struct {
	Theme          string        `json:"theme"`
	Language       string        `json:"language"`
	Sources        []Source      `json:"sources"`
	Bookmarks      []Bookmark    `json:"bookmarks"`
	Items          []FeedItem    `json:"items"`
	ActiveItems    []FeedItem    `json:"activeItems"`
	ActiveSources  []string      `json:"activeSources"`
	HiddenItems    []string      `json:"hiddenItems"`
	History        []HistoryItem `json:"history"`
	Navigation     Navigation    `json:"navigation"`
	LastUpdated    *time.Time    `json:"lastUpdated"`
	ScrollPosition int           `json:"scrollPosition"`
	Loading        bool          `json:"loading"`
	SearchQuery    string        `json:"searchQuery"`
	Error          string        `json:"error"`
}

func DefaultState() State {
	s := State{
		Theme:      DefaultTheme,
		Language:   DefaultLanguage,
		Navigation: NavHome,
	}
	s.FillDefaults()
	return s
}

// FillDefaults replaces zero values left by a partial or older blob.
// Collections are never nil so they serialize as [] rather than null.
func (s *State) FillDefaults() {
	if s.Theme == "" {
		s.Theme = DefaultTheme
	}
	if s.Language == "" {
		s.Language = DefaultLanguage
	}
	if !s.Navigation.Valid() {
		s.Navigation = NavHome
	}
	if s.Sources == nil {
		s.Sources = []Source{}
	}
	if s.Bookmarks == nil {
		s.Bookmarks = []Bookmark{}
	}
	if s.Items == nil {
		s.Items = []FeedItem{}
	}
	if s.ActiveItems == nil {
		s.ActiveItems = []FeedItem{}
	}
	if s.ActiveSources == nil {
		s.ActiveSources = []string{}
	}
	if s.HiddenItems == nil {
		s.HiddenItems = []string{}
	}
	if s.History == nil {
		s.History = []HistoryItem{}
	}
}

// SourceByID returns the matching source. Empty ids never match.
func (s State) SourceByID(id string) (Source, bool) {
	if id == "" {
		return Source{}, false
	}
	for _, src := range s.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return Source{}, false
}

// ItemByLink searches the cached items, then the active view.
func (s State) ItemByLink(link string) (FeedItem, bool) {
	for _, it := range s.Items {
		if it.Link == link {
			return it, true
		}
	}
	for _, it := range s.ActiveItems {
		if it.Link == link {
			return it, true
		}
	}
	return FeedItem{}, false
}
