// Package feed turns loosely typed fetch results into model.FeedItem and
// holds the merge, sort and filter rules applied to cached items.
package feed

import (
	"fmt"

	"github.com/guyfedwards/feedstash/internal/model"
)

// keys consumed by Normalize; everything else is passed through in Extra.
var knownKeys = map[string]bool{
	"title":       true,
	"link":        true,
	"description": true,
	"pubDate":     true,
	"published":   true,
	"updated":     true,
	"isoDate":     true,
	"source":      true,
	"id":          true,
	"guid":        true,
}

// Normalize decodes one raw item. The variant link/title/id shapes produced
// by different feed dialects do not survive past this call.
func Normalize(raw map[string]any) model.FeedItem {
	item := model.FeedItem{
		Title:       ExtractTitle(raw["title"]),
		Link:        ExtractLink(raw),
		Description: text(raw["description"]),
		PubDate:     firstText(raw, "pubDate", "published", "updated", "isoDate"),
		Source:      text(raw["source"]),
		GUID:        firstText(raw, "guid", "id"),
	}

	for k, v := range raw {
		if knownKeys[k] {
			continue
		}
		if item.Extra == nil {
			item.Extra = make(map[string]any)
		}
		item.Extra[k] = v
	}

	return item
}

func NormalizeAll(raws []map[string]any) []model.FeedItem {
	items := make([]model.FeedItem, 0, len(raws))
	for _, raw := range raws {
		if raw == nil {
			continue
		}
		items = append(items, Normalize(raw))
	}
	return items
}

// ExtractLink resolves the identity link of a raw item, in order:
// attribute-object array ({"$":{"href":...}}), string array, plain string,
// the item's id or guid, and finally "".
func ExtractLink(raw map[string]any) string {
	switch link := raw["link"].(type) {
	case []any:
		if len(link) > 0 {
			switch first := link[0].(type) {
			case map[string]any:
				if href, ok := hrefOf(first); ok {
					return href
				}
			case string:
				return first
			}
		}
	case []string:
		if len(link) > 0 {
			return link[0]
		}
	case string:
		return link
	}

	return firstText(raw, "id", "guid")
}

func hrefOf(m map[string]any) (string, bool) {
	attrs, ok := m["$"].(map[string]any)
	if !ok {
		return "", false
	}
	href, ok := attrs["href"].(string)
	if !ok || href == "" {
		return "", false
	}
	return href, true
}

// ExtractTitle flattens a title that may be a string or an Atom text
// construct with its content under "_".
func ExtractTitle(v any) string {
	return text(v)
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any:
		if s, ok := t["_"].(string); ok {
			return s
		}
		return ""
	case []any:
		if len(t) == 0 {
			return ""
		}
		return text(t[0])
	case []string:
		if len(t) == 0 {
			return ""
		}
		return t[0]
	case fmt.Stringer:
		return t.String()
	case float64, int, int64, bool:
		return fmt.Sprint(t)
	}
	return ""
}

func firstText(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := text(raw[k]); s != "" {
			return s
		}
	}
	return ""
}

// HiddenKey is the marker stored when an item is hidden. Linkless items fall
// back to their title.
func HiddenKey(item model.FeedItem) string {
	if item.Link != "" {
		return item.Link
	}
	return item.Title
}
