package rss

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/config"
	"github.com/amaumene/bookarr/internal/httpx"
	"github.com/amaumene/bookarr/internal/providers"
)

// feed is the RSS 2.0 document shape we care about
type feed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string `xml:"title"`
		Items []item `xml:"item"`
	} `xml:"channel"`
}

type item struct {
	Title     string `xml:"title"`
	Link      string `xml:"link"`
	GUID      string `xml:"guid"`
	PubDate   string `xml:"pubDate"`
	Enclosure struct {
		URL    string `xml:"url,attr"`
		Length int64  `xml:"length,attr"`
	} `xml:"enclosure"`
}

// Feed polls a fixed RSS/Atom feed. Feeds cannot take a query, so each
// search decodes the current feed (cached for the poll interval to avoid
// hammering the source) and returns every entry; the scoring engine does
// the filtering.
type Feed struct {
	name       string
	url        string
	cache      *gocache.Cache
	httpClient *http.Client
	logger     *logrus.Logger
}

// New creates an RSS feed provider. pollTTL bounds how often the remote
// feed is actually fetched.
func New(cfg config.ProviderConfig, pollTTL time.Duration, logger *logrus.Logger) (*Feed, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("provider %s: URL is required", cfg.Name)
	}
	if pollTTL <= 0 {
		pollTTL = 20 * time.Minute
	}

	return &Feed{
		name:  cfg.Name,
		url:   cfg.URL,
		cache: gocache.New(pollTTL, 2*pollTTL),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}, nil
}

// Name returns the configured provider name
func (f *Feed) Name() string { return f.name }

// Search returns the current feed entries as raw hits
func (f *Feed) Search(ctx context.Context, q providers.Query) ([]providers.RawHit, error) {
	if cached, ok := f.cache.Get(f.url); ok {
		f.logger.WithField("provider", f.name).Debug("Serving feed from cache")
		return cached.([]providers.RawHit), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, providers.NewError(f.name, providers.ErrProtocol, err)
	}
	req.Header.Set("User-Agent", httpx.UserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		kind := providers.ErrProtocol
		var nerr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
			kind = providers.ErrTimeout
		}
		return nil, providers.NewError(f.name, kind, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, providers.NewError(f.name, providers.ErrAuthFailure,
			fmt.Errorf("feed returned status %d", resp.StatusCode))
	case http.StatusTooManyRequests:
		return nil, providers.NewError(f.name, providers.ErrRateLimited,
			fmt.Errorf("feed returned status %d", resp.StatusCode))
	default:
		return nil, providers.NewError(f.name, providers.ErrProtocol,
			fmt.Errorf("feed returned status %d", resp.StatusCode))
	}

	var parsed feed
	if err := xml.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, providers.NewError(f.name, providers.ErrProtocol,
			fmt.Errorf("failed to parse feed: %w", err))
	}

	hits := f.convertItems(parsed.Channel.Items)
	f.cache.SetDefault(f.url, hits)

	f.logger.WithFields(logrus.Fields{
		"provider": f.name,
		"count":    len(hits),
	}).Debug("Feed fetched")

	return hits, nil
}

func (f *Feed) convertItems(items []item) []providers.RawHit {
	hits := make([]providers.RawHit, 0, len(items))

	for _, it := range items {
		link := it.Enclosure.URL
		if link == "" {
			link = it.Link
		}
		if link == "" {
			continue
		}

		hits = append(hits, providers.RawHit{
			Provider:  f.name,
			Title:     it.Title,
			SizeBytes: it.Enclosure.Length,
			URL:       link,
			Kind:      kindOf(link),
		})
	}

	return hits
}

// kindOf infers the payload kind from the link shape
func kindOf(link string) providers.Kind {
	lowered := strings.ToLower(link)
	switch {
	case strings.HasPrefix(lowered, "magnet:"):
		return providers.KindMagnet
	case strings.HasSuffix(lowered, ".torrent"):
		return providers.KindTorrent
	case strings.HasSuffix(lowered, ".nzb"):
		return providers.KindNZB
	default:
		return providers.KindDirect
	}
}
