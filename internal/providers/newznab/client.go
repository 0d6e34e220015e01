package newznab

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/config"
	"github.com/amaumene/bookarr/internal/httpx"
	"github.com/amaumene/bookarr/internal/models"
	"github.com/amaumene/bookarr/internal/providers"
)

// Response represents the XML RSS response from a Newznab/Torznab API
type Response struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

// Channel represents the channel element in RSS
type Channel struct {
	Title string `xml:"title"`
	Items []Item `xml:"item"`
}

// Item represents a single search result
type Item struct {
	Title      string      `xml:"title"`
	Link       string      `xml:"link"` // Details page (not for download)
	GUID       string      `xml:"guid"`
	PubDate    string      `xml:"pubDate"`
	Enclosure  Enclosure   `xml:"enclosure"` // The actual download URL
	Attributes []Attribute `xml:"attr"`
}

// Enclosure represents the enclosure element containing the download URL
type Enclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// Attribute represents a newznab/torznab attribute (size, seeders, ...)
type Attribute struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Standard indexer category ids for the book libraries
var categoryIDs = map[models.Category]string{
	models.CategoryEBook:     "7020,7000",
	models.CategoryAudiobook: "3030",
	models.CategoryMagazine:  "7010",
}

// Client speaks the newznab API search protocol over HTTP. With torznab
// set it reads the torrent attributes (seeders/peers) and yields torrent
// or magnet hits instead of nzbs.
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	torznab    bool
	httpClient *http.Client
	logger     *logrus.Logger
}

// New creates a newznab or torznab search client from provider config
func New(cfg config.ProviderConfig, logger *logrus.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("provider %s: URL is required", cfg.Name)
	}

	return &Client{
		name:    cfg.Name,
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		torznab: cfg.Type == config.ProviderTorznab,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // Per-call deadline comes from ctx
		},
		logger: logger,
	}, nil
}

// Name returns the configured provider name
func (c *Client) Name() string { return c.name }

// Search performs an indexer API search for the query
func (c *Client) Search(ctx context.Context, q providers.Query) ([]providers.RawHit, error) {
	apiURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, providers.NewError(c.name, providers.ErrProtocol, fmt.Errorf("invalid URL: %w", err))
	}
	if apiURL.Path == "" || apiURL.Path == "/" {
		apiURL.Path = "/api"
	}

	// Newznab indexers expose a dedicated book search function; torznab
	// trackers generally only implement t=search
	mode := "search"
	if !c.torznab && q.Category == models.CategoryEBook {
		mode = "book"
	}

	params := url.Values{}
	params.Add("t", mode)
	params.Add("q", q.Term())
	if c.apiKey != "" {
		params.Add("apikey", c.apiKey)
	}
	if cat, ok := categoryIDs[q.Category]; ok {
		params.Add("cat", cat)
	}
	apiURL.RawQuery = params.Encode()

	c.logger.WithFields(logrus.Fields{
		"provider": c.name,
		"term":     q.Term(),
		"category": q.Category,
	}).Debug("Performing indexer search")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL.String(), nil)
	if err != nil {
		return nil, providers.NewError(c.name, providers.ErrProtocol, err)
	}
	req.Header.Set("User-Agent", httpx.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, providers.NewError(c.name, classifyTransport(err), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, providers.NewError(c.name, providers.ErrAuthFailure,
			fmt.Errorf("indexer returned status %d", resp.StatusCode))
	case http.StatusTooManyRequests:
		return nil, providers.NewError(c.name, providers.ErrRateLimited,
			fmt.Errorf("indexer returned status %d", resp.StatusCode))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, providers.NewError(c.name, providers.ErrProtocol,
			fmt.Errorf("indexer returned status %d: %s", resp.StatusCode, string(body)))
	}

	var parsed Response
	if err := xml.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, providers.NewError(c.name, providers.ErrProtocol,
			fmt.Errorf("failed to parse XML response: %w", err))
	}

	hits := c.convertItems(parsed.Channel.Items)
	c.logger.WithFields(logrus.Fields{
		"provider": c.name,
		"count":    len(hits),
	}).Debug("Indexer search completed")

	return hits, nil
}

func classifyTransport(err error) providers.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return providers.ErrTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return providers.ErrTimeout
	}
	return providers.ErrProtocol
}

// convertItems turns XML items into normalized raw hits
func (c *Client) convertItems(items []Item) []providers.RawHit {
	hits := make([]providers.RawHit, 0, len(items))

	for _, item := range items {
		downloadURL := item.Enclosure.URL
		if downloadURL == "" {
			downloadURL = item.Link
		}
		if downloadURL == "" {
			continue
		}

		size := GetAttributeInt64(item, "size")
		if size == 0 {
			size = item.Enclosure.Length
		}

		kind := providers.KindNZB
		if c.torznab {
			if strings.HasPrefix(downloadURL, "magnet:") {
				kind = providers.KindMagnet
			} else {
				kind = providers.KindTorrent
			}
		}

		hits = append(hits, providers.RawHit{
			Provider:  c.name,
			Title:     item.Title,
			SizeBytes: size,
			URL:       downloadURL,
			Kind:      kind,
			Seeders:   GetAttributeInt(item, "seeders"),
			Peers:     GetAttributeInt(item, "peers"),
			AgeDays:   ageDays(item.PubDate),
		})
	}

	return hits
}

// ageDays parses the RSS pubDate into an age in whole days, 0 if unknown
func ageDays(pubDate string) int {
	if pubDate == "" {
		return 0
	}
	t, err := time.Parse(time.RFC1123Z, pubDate)
	if err != nil {
		t, err = time.Parse(time.RFC1123, pubDate)
	}
	if err != nil {
		return 0
	}
	days := int(time.Since(t).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// GetAttributeValue extracts an attribute value by name from an Item
func GetAttributeValue(item Item, attrName string) string {
	for _, attr := range item.Attributes {
		if attr.Name == attrName {
			return attr.Value
		}
	}
	return ""
}

// GetAttributeInt extracts an attribute value as int, 0 when missing
func GetAttributeInt(item Item, attrName string) int {
	value := GetAttributeValue(item, attrName)
	if value == "" {
		return 0
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return intVal
}

// GetAttributeInt64 extracts an attribute value as int64, 0 when missing
func GetAttributeInt64(item Item, attrName string) int64 {
	value := GetAttributeValue(item, attrName)
	if value == "" {
		return 0
	}
	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return intVal
}
