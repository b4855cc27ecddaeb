// Package opml reads and writes subscription lists.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/guyfedwards/feedstash/internal/model"
)

type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline is either a folder (nested outlines) or a feed (xmlUrl set).
type Outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string    `xml:"htmlUrl,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// Entry is a feed found in an OPML document. Folders are flattened away.
type Entry struct {
	Title string
	URL   string
	Video bool
}

func Parse(r io.Reader) ([]Entry, error) {
	var doc OPML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("opml.Parse: %w", err)
	}

	var entries []Entry
	var walk func(outlines []Outline)
	walk = func(outlines []Outline) {
		for _, o := range outlines {
			if o.XMLURL != "" {
				title := o.Title
				if title == "" {
					title = o.Text
				}
				entries = append(entries, Entry{
					Title: title,
					URL:   o.XMLURL,
					Video: o.Type == string(model.SourceVideo),
				})
				continue
			}
			walk(o.Outlines)
		}
	}
	walk(doc.Body.Outlines)

	return entries, nil
}

// Export writes sources as a flat OPML 2.0 document.
func Export(w io.Writer, title string, sources []model.Source, now time.Time) error {
	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: now.Format(time.RFC1123Z),
		},
	}

	for _, s := range sources {
		typ := string(model.SourceRSS)
		if s.IsVideo() {
			typ = string(model.SourceVideo)
		}
		doc.Body.Outlines = append(doc.Body.Outlines, Outline{
			Text:   s.Name,
			Title:  s.Name,
			Type:   typ,
			XMLURL: s.URL,
		})
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("opml.Export: %w", err)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("opml.Export: %w", err)
	}
	if _, err := w.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("opml.Export: %w", err)
	}
	return nil
}
