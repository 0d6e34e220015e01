package direct

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/config"
	"github.com/amaumene/bookarr/internal/httpx"
	"github.com/amaumene/bookarr/internal/providers"
)

// Site scrapes a generic HTML search page. The search URL carries a %s
// placeholder for the query; the selectors locate result rows and the
// fields inside each row.
type Site struct {
	name          string
	searchURL     string
	rowSelector   string
	titleSelector string
	linkSelector  string
	sizeSelector  string
	httpClient    *http.Client
	logger        *logrus.Logger
}

// New creates an HTML scrape provider from provider config
func New(cfg config.ProviderConfig, logger *logrus.Logger) (*Site, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("provider %s: URL is required", cfg.Name)
	}
	if !strings.Contains(cfg.URL, "%s") {
		return nil, fmt.Errorf("provider %s: URL needs a %%s query placeholder", cfg.Name)
	}
	if cfg.RowSelector == "" {
		return nil, fmt.Errorf("provider %s: ROW_SELECTOR is required", cfg.Name)
	}

	return &Site{
		name:          cfg.Name,
		searchURL:     cfg.URL,
		rowSelector:   cfg.RowSelector,
		titleSelector: cfg.TitleSelector,
		linkSelector:  cfg.LinkSelector,
		sizeSelector:  cfg.SizeSelector,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}, nil
}

// Name returns the configured provider name
func (s *Site) Name() string { return s.name }

// Search fetches the site's search page and scrapes result rows
func (s *Site) Search(ctx context.Context, q providers.Query) ([]providers.RawHit, error) {
	pageURL := fmt.Sprintf(s.searchURL, url.QueryEscape(q.Term()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, providers.NewError(s.name, providers.ErrProtocol, err)
	}
	req.Header.Set("User-Agent", httpx.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		kind := providers.ErrProtocol
		var nerr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
			kind = providers.ErrTimeout
		}
		return nil, providers.NewError(s.name, kind, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, providers.NewError(s.name, providers.ErrAuthFailure,
			fmt.Errorf("site returned status %d", resp.StatusCode))
	case http.StatusTooManyRequests:
		return nil, providers.NewError(s.name, providers.ErrRateLimited,
			fmt.Errorf("site returned status %d", resp.StatusCode))
	default:
		return nil, providers.NewError(s.name, providers.ErrProtocol,
			fmt.Errorf("site returned status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, providers.NewError(s.name, providers.ErrProtocol,
			fmt.Errorf("failed to parse HTML: %w", err))
	}

	base := resp.Request.URL
	var hits []providers.RawHit
	doc.Find(s.rowSelector).Each(func(_ int, row *goquery.Selection) {
		hit, ok := s.extractRow(row, base)
		if ok {
			hits = append(hits, hit)
		}
	})

	s.logger.WithFields(logrus.Fields{
		"provider": s.name,
		"count":    len(hits),
	}).Debug("Scrape search completed")

	return hits, nil
}

// extractRow pulls title, link and size out of one result row
func (s *Site) extractRow(row *goquery.Selection, base *url.URL) (providers.RawHit, bool) {
	titleSel := row
	if s.titleSelector != "" {
		titleSel = row.Find(s.titleSelector).First()
	}
	title := strings.TrimSpace(titleSel.Text())
	if title == "" {
		return providers.RawHit{}, false
	}

	linkSel := row
	if s.linkSelector != "" {
		linkSel = row.Find(s.linkSelector).First()
	}
	href, _ := linkSel.Attr("href")
	href = strings.TrimSpace(href)
	if href == "" {
		return providers.RawHit{}, false
	}

	kind := providers.KindDirect
	if strings.HasPrefix(strings.ToLower(href), "magnet:") {
		kind = providers.KindMagnet
	} else if ref, err := url.Parse(href); err == nil {
		resolved := base.ResolveReference(ref)
		href = resolved.String()
		if strings.HasSuffix(strings.ToLower(resolved.Path), ".torrent") {
			kind = providers.KindTorrent
		}
	}

	var size int64
	if s.sizeSelector != "" {
		size = ParseSize(strings.TrimSpace(row.Find(s.sizeSelector).First().Text()))
	}

	return providers.RawHit{
		Provider:  s.name,
		Title:     title,
		SizeBytes: size,
		URL:       href,
		Kind:      kind,
	}, true
}

var sizeUnits = map[string]int64{
	"b":   1,
	"kb":  1 << 10,
	"kib": 1 << 10,
	"mb":  1 << 20,
	"mib": 1 << 20,
	"gb":  1 << 30,
	"gib": 1 << 30,
}

// ParseSize turns a human size like "12.3 MB" or "450KB" into bytes,
// returning 0 when it cannot tell.
func ParseSize(text string) int64 {
	text = strings.TrimSpace(strings.ToLower(text))
	if text == "" {
		return 0
	}

	cut := len(text)
	for i, r := range text {
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			cut = i
			break
		}
	}

	numPart := strings.ReplaceAll(strings.TrimSpace(text[:cut]), ",", "")
	unitPart := strings.TrimSpace(text[cut:])

	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0
	}

	mult, ok := sizeUnits[unitPart]
	if !ok {
		return 0
	}
	return int64(value * float64(mult))
}
