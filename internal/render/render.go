// Package render formats store contents for the terminal.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/guyfedwards/feedstash/internal/feed"
	"github.com/guyfedwards/feedstash/internal/model"
)

const (
	DefaultWidth = 80
	UnknownDate  = "Unknown"
	dateLayout   = "2006-01-02 15:04"
)

var (
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	titleStyle = lipgloss.NewStyle().Bold(true)
)

var glamourStyles = map[string]bool{
	"dark":    true,
	"light":   true,
	"dracula": true,
	"notty":   true,
	"ascii":   true,
}

// Width returns the terminal width of f, or DefaultWidth when f is not a
// terminal.
func Width(f *os.File) int {
	if f == nil {
		return DefaultWidth
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return DefaultWidth
	}
	return w
}

// DateLabel formats a feed date for display. Unparseable dates are labelled
// rather than rejected.
func DateLabel(pubDate string) string {
	t, ok := feed.ParseDate(pubDate)
	if !ok {
		return UnknownDate
	}
	return t.Local().Format(dateLayout)
}

// Badge is the coloured initial shown next to an item.
func Badge(src model.Source) string {
	initial := src.Initial
	if initial == "" {
		initial = "?"
	}

	style := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	if src.Color != "" {
		style = style.Background(lipgloss.Color(src.Color))
	}
	if src.TextColor != "" {
		style = style.Foreground(lipgloss.Color(src.TextColor))
	}
	return style.Render(initial)
}

// ItemLine is one row of an item listing.
func ItemLine(index int, item model.FeedItem, src model.Source, sourceName string) string {
	return fmt.Sprintf("%3d. %s %s %s",
		index,
		Badge(src),
		titleStyle.Render(item.Title),
		dimStyle.Render(fmt.Sprintf("(%s, %s)", sourceName, DateLabel(item.PubDate))),
	)
}

// Markdown converts an item description from HTML.
func Markdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	out, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("render.Markdown: %w", err)
	}
	return out, nil
}

// Article renders a full item: heading, metadata and the converted body.
func Article(w io.Writer, item model.FeedItem, sourceName, theme string, width int) error {
	body, err := Markdown(item.Description)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", item.Title)
	fmt.Fprintf(&b, "*%s* | %s\n\n", sourceName, DateLabel(item.PubDate))
	if item.Link != "" {
		fmt.Fprintf(&b, "%s\n\n", item.Link)
	}
	b.WriteString(body)

	style := theme
	if !glamourStyles[style] {
		style = model.DefaultTheme
	}
	if width <= 0 {
		width = DefaultWidth
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("render.Article: %w", err)
	}

	out, err := r.Render(b.String())
	if err != nil {
		return fmt.Errorf("render.Article: %w", err)
	}

	_, err = io.WriteString(w, out)
	return err
}
