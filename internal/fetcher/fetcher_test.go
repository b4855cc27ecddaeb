package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/guyfedwards/feedstash/internal/test"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Blog</title>
    <link>https://example.com</link>
    <description>Posts</description>
    <item>
      <title>First</title>
      <link>https://example.com/first</link>
      <guid>first</guid>
      <pubDate>Mon, 01 Jan 2024 10:00:00 +0000</pubDate>
      <description>one</description>
    </item>
    <item>
      <title>Second</title>
      <link>https://example.com/second</link>
      <pubDate>Thu, 01 Feb 2024 10:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

func TestBackendFetchFeeds(t *testing.T) {
	var got feedsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/feeds" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"feed":[
			{"title":"atom","link":[{"$":{"href":"https://a.example/1"}}],"updated":"2024-02-01T00:00:00Z","source":"a"},
			{"title":{"_":"text construct"},"link":["https://b.example/2"],"pubDate":"2024-01-01","source":"b","author":"me"}
		]}`))
	}))
	defer srv.Close()

	c := NewBackendClient(srv.URL+"/", Options{})
	items, err := c.FetchFeeds(context.Background(), []SourceRef{{ID: "a", URL: "https://a.example/feed"}, {ID: "b", URL: "https://b.example/feed"}})
	if err != nil {
		t.Fatalf("FetchFeeds failed: %v", err)
	}

	test.Equal(t, 2, len(got.Sources), "sources sent")
	test.Equal(t, "https://a.example/feed", got.Sources[0].URL, "source url sent")

	test.Equal(t, 2, len(items), "items")
	test.Equal(t, "https://a.example/1", items[0].Link, "attribute link")
	test.Equal(t, "2024-02-01T00:00:00Z", items[0].PubDate, "updated used as pubDate")
	test.Equal(t, "text construct", items[1].Title, "title text")
	test.Equal(t, "https://b.example/2", items[1].Link, "string array link")
	test.Equal(t, "me", items[1].Extra["author"], "passthrough field")
}

func TestBackendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewBackendClient(srv.URL, Options{})
	if _, err := c.FetchFeeds(context.Background(), []SourceRef{{ID: "a", URL: "x"}}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestBackendNoSources(t *testing.T) {
	c := NewBackendClient("http://127.0.0.1:0", Options{})
	if _, err := c.FetchFeeds(context.Background(), nil); !errors.Is(err, ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}
}

func TestBackendFetchSingleFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/feed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("url") != "https://example.com/feed" || r.URL.Query().Get("video") != "true" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"title":"Channel","link":"https://example.com","items":[{"title":"v","id":"yt:video:1"}]}`))
	}))
	defer srv.Close()

	c := NewBackendClient(srv.URL, Options{})
	md, err := c.FetchSingleFeed(context.Background(), "https://example.com/feed", true)
	if err != nil {
		t.Fatalf("FetchSingleFeed failed: %v", err)
	}
	test.Equal(t, "Channel", md.Title, "title")
	test.Equal(t, "https://example.com", md.Link, "link")
	test.Equal(t, 1, len(md.Items), "items")
	test.Equal(t, "yt:video:1", md.Items[0].Link, "id fallback link")
}

func TestDirectFetchFeeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			http.Error(w, "nope", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	d := NewDirectFetcher(Options{Concurrency: 2})
	items, err := d.FetchFeeds(context.Background(), []SourceRef{
		{ID: "ok", URL: srv.URL + "/feed"},
		{ID: "bad", URL: srv.URL + "/broken"},
	})
	if err != nil {
		t.Fatalf("FetchFeeds failed: %v", err)
	}

	test.Equal(t, 2, len(items), "items from working source")
	test.Equal(t, "https://example.com/first", items[0].Link, "link")
	test.Equal(t, "ok", items[0].Source, "source id stamped")
	test.Equal(t, "first", items[0].GUID, "guid")
	test.Equal(t, "2024-01-01T10:00:00Z", items[0].PubDate, "pubDate normalized")
}

func TestDirectAllSourcesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDirectFetcher(Options{})
	if _, err := d.FetchFeeds(context.Background(), []SourceRef{{ID: "a", URL: srv.URL}}); err == nil {
		t.Fatal("expected error when every source fails")
	}
}

func TestDirectFetchSingleFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	d := NewDirectFetcher(Options{})
	md, err := d.FetchSingleFeed(context.Background(), srv.URL, false)
	if err != nil {
		t.Fatalf("FetchSingleFeed failed: %v", err)
	}
	test.Equal(t, "Example Blog", md.Title, "title")
	test.Equal(t, 2, len(md.Items), "items")
	test.Equal(t, "", md.Items[0].Source, "no source id during discovery")
}
