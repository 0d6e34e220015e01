package newznab

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/config"
	"github.com/amaumene/bookarr/internal/models"
	"github.com/amaumene/bookarr/internal/providers"
)

func TestXMLParsing(t *testing.T) {
	// Sample Newznab XML response
	xmlData := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom" xmlns:newznab="http://www.newznab.com/DTD/2010/feeds/attributes/">
  <channel>
    <title>Test Indexer</title>
    <item>
      <title>Jane Doe - The Great Book (2023) epub</title>
      <link>https://example.com/details/12345</link>
      <guid>https://example.com/details/12345</guid>
      <pubDate>Mon, 01 Jan 2024 12:00:00 +0000</pubDate>
      <enclosure url="https://example.com/getnzb/12345.nzb" length="2400000" type="application/x-nzb"/>
      <newznab:attr name="size" value="2457600"/>
      <newznab:attr name="category" value="7020"/>
    </item>
    <item>
      <title>Jane Doe - The Great Book m4b</title>
      <link>https://example.com/details/12346</link>
      <guid>https://example.com/details/12346</guid>
      <pubDate>Tue, 02 Jan 2024 12:00:00 +0000</pubDate>
      <enclosure url="https://example.com/getnzb/12346.nzb" length="0" type="application/x-nzb"/>
      <newznab:attr name="size" value="314572800"/>
      <newznab:attr name="category" value="3030"/>
    </item>
  </channel>
</rss>`

	var response Response
	err := xml.Unmarshal([]byte(xmlData), &response)
	if err != nil {
		t.Fatalf("Failed to parse XML: %v", err)
	}

	if response.Channel.Title != "Test Indexer" {
		t.Errorf("Expected channel title 'Test Indexer', got '%s'", response.Channel.Title)
	}

	if len(response.Channel.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(response.Channel.Items))
	}

	ebook := response.Channel.Items[0]
	if ebook.Title != "Jane Doe - The Great Book (2023) epub" {
		t.Errorf("Ebook title mismatch")
	}
	if GetAttributeInt64(ebook, "size") != 2457600 {
		t.Errorf("Ebook size mismatch")
	}
	if ebook.Enclosure.URL != "https://example.com/getnzb/12345.nzb" {
		t.Errorf("Ebook enclosure URL mismatch")
	}
	if GetAttributeInt(ebook, "seeders") != 0 {
		t.Errorf("Ebook should not have seeders attribute")
	}

	audiobook := response.Channel.Items[1]
	if GetAttributeInt64(audiobook, "size") != 314572800 {
		t.Errorf("Audiobook size mismatch")
	}
}

func TestConvertItems(t *testing.T) {
	client := &Client{name: "test-indexer"}

	items := []Item{
		{
			Title:     "Jane Doe - The Great Book epub",
			Link:      "https://example.com/details/1",
			Enclosure: Enclosure{URL: "https://example.com/getnzb/1.nzb", Length: 1000},
			Attributes: []Attribute{
				{Name: "size", Value: "2457600"},
			},
		},
		{
			// No enclosure: falls back to the link
			Title: "Jane Doe - Another Book mobi",
			Link:  "https://example.com/getnzb/2.nzb",
		},
		{
			// No URL at all: dropped
			Title: "Orphan entry",
		},
	}

	hits := client.convertItems(items)

	if len(hits) != 2 {
		t.Fatalf("Expected 2 hits, got %d", len(hits))
	}

	if hits[0].URL != "https://example.com/getnzb/1.nzb" {
		t.Errorf("Expected enclosure URL, got %s", hits[0].URL)
	}
	if hits[0].SizeBytes != 2457600 {
		t.Errorf("Expected size attribute to win, got %d", hits[0].SizeBytes)
	}
	if hits[0].Kind != providers.KindNZB {
		t.Errorf("Expected nzb kind, got %s", hits[0].Kind)
	}
	if hits[0].Provider != "test-indexer" {
		t.Errorf("Provider name not carried, got %s", hits[0].Provider)
	}

	if hits[1].URL != "https://example.com/getnzb/2.nzb" {
		t.Errorf("Expected link fallback, got %s", hits[1].URL)
	}
}

func TestConvertItemsTorznab(t *testing.T) {
	client := &Client{name: "test-tracker", torznab: true}

	items := []Item{
		{
			Title:     "The Great Book epub",
			Enclosure: Enclosure{URL: "https://example.com/dl/1.torrent"},
			Attributes: []Attribute{
				{Name: "size", Value: "2457600"},
				{Name: "seeders", Value: "42"},
				{Name: "peers", Value: "7"},
			},
		},
		{
			Title:     "The Great Book mobi",
			Enclosure: Enclosure{URL: "magnet:?xt=urn:btih:deadbeef"},
		},
	}

	hits := client.convertItems(items)
	if len(hits) != 2 {
		t.Fatalf("Expected 2 hits, got %d", len(hits))
	}

	if hits[0].Kind != providers.KindTorrent {
		t.Errorf("Expected torrent kind, got %s", hits[0].Kind)
	}
	if hits[0].Seeders != 42 || hits[0].Peers != 7 {
		t.Errorf("Seeders/peers mismatch: %d/%d", hits[0].Seeders, hits[0].Peers)
	}
	if hits[1].Kind != providers.KindMagnet {
		t.Errorf("Expected magnet kind, got %s", hits[1].Kind)
	}
}

func TestSearchClassifiesAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad api key", http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := New(config.ProviderConfig{
		Name: "test-indexer",
		Type: config.ProviderNewznab,
		URL:  server.URL,
	}, logrus.New())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	_, err = client.Search(context.Background(), providers.Query{
		Title:    "The Great Book",
		Category: models.CategoryEBook,
	})
	if err == nil {
		t.Fatal("Expected an error")
	}

	perr, ok := err.(*providers.Error)
	if !ok {
		t.Fatalf("Expected *providers.Error, got %T", err)
	}
	if perr.Kind != providers.ErrAuthFailure {
		t.Errorf("Expected auth_failure, got %s", perr.Kind)
	}
}

func TestSearchParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("t") != "book" {
			t.Errorf("Expected t=book for an ebook search, got %s", r.URL.Query().Get("t"))
		}
		if r.URL.Query().Get("q") != "Jane Doe The Great Book" {
			t.Errorf("Unexpected query: %s", r.URL.Query().Get("q"))
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(`<?xml version="1.0"?><rss><channel><title>T</title><item>
			<title>Jane Doe - The Great Book epub</title>
			<enclosure url="https://example.com/getnzb/1.nzb" length="2457600"/>
		</item></channel></rss>`))
	}))
	defer server.Close()

	client, err := New(config.ProviderConfig{
		Name: "test-indexer",
		Type: config.ProviderNewznab,
		URL:  server.URL,
	}, logrus.New())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	hits, err := client.Search(context.Background(), providers.Query{
		Title:    "The Great Book",
		Author:   "Jane Doe",
		Category: models.CategoryEBook,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("Expected 1 hit, got %d", len(hits))
	}
	if hits[0].SizeBytes != 2457600 {
		t.Errorf("Expected enclosure length fallback, got %d", hits[0].SizeBytes)
	}
}
