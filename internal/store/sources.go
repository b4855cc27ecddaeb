package store

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/guyfedwards/feedstash/internal/model"
)

// palette pairs a badge background with a readable foreground.
var palette = []struct{ bg, fg string }{
	{"#e74c3c", "#ffffff"},
	{"#e67e22", "#ffffff"},
	{"#f1c40f", "#1d1d1d"},
	{"#2ecc71", "#1d1d1d"},
	{"#1abc9c", "#1d1d1d"},
	{"#3498db", "#ffffff"},
	{"#9b59b6", "#ffffff"},
	{"#34495e", "#ffffff"},
}

// AddSource subscribes to a new feed. ID, AddedOn, Initial and the badge
// colours are filled in when empty. A second source with the same URL is
// rejected with ErrSourceExists.
func (s *Store) AddSource(src model.Source) (model.Source, error) {
	src.URL = strings.TrimSpace(src.URL)
	if src.URL == "" {
		return model.Source{}, fmt.Errorf("store.AddSource: url is required")
	}

	_, err := s.TryUpdate(func(st *model.State) error {
		if lo.ContainsBy(st.Sources, func(e model.Source) bool { return e.URL == src.URL }) {
			return ErrSourceExists
		}
		if s.limits.MaxSources > 0 && len(st.Sources) >= s.limits.MaxSources {
			s.log.Warn("source count at limit", "count", len(st.Sources), "limit", s.limits.MaxSources)
		}

		if src.ID == "" {
			src.ID = uuid.NewString()
		}
		if src.Name == "" {
			src.Name = displayName(src.URL)
		}
		if src.AddedOn.IsZero() {
			src.AddedOn = s.now().UTC()
		}
		if src.Type == "" {
			src.Type = model.SourceRSS
		}
		if src.Initial == "" {
			src.Initial = initial(src.Name)
		}
		if src.Color == "" {
			c := palette[len(st.Sources)%len(palette)]
			src.Color = c.bg
			if src.TextColor == "" {
				src.TextColor = c.fg
			}
		}

		st.Sources = append(st.Sources, src)
		return nil
	})
	if err != nil {
		return model.Source{}, err
	}

	s.log.Info("source added", "id", src.ID, "url", src.URL)
	return src, nil
}

// RemoveSource deletes exactly one source. Items, bookmarks and history that
// point at it are left alone and render as an unknown source.
func (s *Store) RemoveSource(id string) error {
	_, err := s.TryUpdate(func(st *model.State) error {
		_, idx, found := lo.FindIndexOf(st.Sources, func(e model.Source) bool { return e.ID == id })
		if !found || id == "" {
			return fmt.Errorf("store.RemoveSource: %w: %q", ErrSourceNotFound, id)
		}
		st.Sources = append(st.Sources[:idx], st.Sources[idx+1:]...)
		st.ActiveSources = lo.Without(st.ActiveSources, id)
		return nil
	})
	return err
}

func (s *Store) GetSourceByID(id string) (model.Source, bool) {
	return s.Read().SourceByID(id)
}

// SourceName resolves a soft reference for display.
func (s *Store) SourceName(id string) string {
	return SourceNameIn(s.Read(), id)
}

func SourceNameIn(st model.State, id string) string {
	src, ok := st.SourceByID(id)
	if !ok || src.Name == "" {
		return model.UnknownSourceName
	}
	return src.Name
}

func displayName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return strings.TrimPrefix(u.Host, "www.")
}

func initial(name string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(name))
	if r == utf8.RuneError {
		return "?"
	}
	return string(unicode.ToUpper(r))
}
