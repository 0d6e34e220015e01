package qbittorrent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/config"
	"github.com/amaumene/bookarr/internal/downloaders"
	"github.com/amaumene/bookarr/internal/httpx"
)

// Client submits torrent links and magnets to a qBittorrent instance
// over its WebUI API. Authentication is cookie based; the session is
// established lazily and re-established when it expires.
type Client struct {
	name       string
	baseURL    string
	username   string
	password   string
	category   string
	httpClient *http.Client
	logger     *logrus.Logger
}

// New creates a qBittorrent client from config
func New(cfg config.QBittorrentConfig, logger *logrus.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		name:     "qbittorrent",
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		category: cfg.Category,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
		logger: logger,
	}, nil
}

// Name returns the client identifier used in job records
func (c *Client) Name() string { return c.name }

// Kind reports the payload family this client accepts
func (c *Client) Kind() downloaders.Kind { return downloaders.KindTorrent }

// login establishes the WebUI session cookie
func (c *Client) login(ctx context.Context) error {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	body, status, err := c.post(ctx, "/api/v2/auth/login", form)
	if err != nil {
		return downloaders.NewClientError(c.name, downloaders.ErrUnreachable, err)
	}
	if status != http.StatusOK || !strings.EqualFold(strings.TrimSpace(body), "Ok.") {
		return downloaders.NewClientError(c.name, downloaders.ErrAuthFailure,
			fmt.Errorf("login refused (status %d): %s", status, strings.TrimSpace(body)))
	}
	return nil
}

// Submit adds the torrent URL or magnet to the client queue. The
// returned handle carries the link itself since the WebUI add endpoint
// does not echo back a hash.
func (c *Client) Submit(ctx context.Context, p downloaders.Payload) (downloaders.JobHandle, error) {
	if err := c.login(ctx); err != nil {
		return downloaders.JobHandle{}, err
	}

	form := url.Values{}
	form.Set("urls", p.URL)
	form.Set("rename", p.Title)
	if c.category != "" {
		form.Set("category", c.category)
	}

	body, status, err := c.post(ctx, "/api/v2/torrents/add", form)
	if err != nil {
		return downloaders.JobHandle{}, downloaders.NewClientError(c.name, downloaders.ErrUnreachable, err)
	}

	switch {
	case status == http.StatusForbidden:
		return downloaders.JobHandle{}, downloaders.NewClientError(c.name, downloaders.ErrAuthFailure,
			fmt.Errorf("session rejected (status %d)", status))
	case status != http.StatusOK:
		return downloaders.JobHandle{}, downloaders.NewClientError(c.name, downloaders.ErrRejected,
			fmt.Errorf("add returned status %d: %s", status, strings.TrimSpace(body)))
	case strings.EqualFold(strings.TrimSpace(body), "Fails."):
		return downloaders.JobHandle{}, downloaders.NewClientError(c.name, downloaders.ErrRejected,
			fmt.Errorf("client refused torrent %s", p.Title))
	}

	c.logger.WithFields(logrus.Fields{
		"client": c.name,
		"title":  p.Title,
	}).Info("Torrent submitted")

	return downloaders.JobHandle{ID: jobID(p.URL), Client: c.name}, nil
}

// Test checks reachability and credentials against the WebUI
func (c *Client) Test(ctx context.Context) error {
	if err := c.login(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v2/app/version", nil)
	if err != nil {
		return downloaders.NewClientError(c.name, downloaders.ErrRejected, err)
	}
	req.Header.Set("User-Agent", httpx.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return downloaders.NewClientError(c.name, downloaders.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return downloaders.NewClientError(c.name, downloaders.ErrRejected,
			fmt.Errorf("version returned status %d", resp.StatusCode))
	}
	return nil
}

// post sends one form-encoded request and returns the body and status
func (c *Client) post(ctx context.Context, path string, form url.Values) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", httpx.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(body), resp.StatusCode, nil
}

// jobID derives a stable identifier from the submitted link. Magnets
// use their info hash when present.
func jobID(link string) string {
	lowered := strings.ToLower(link)
	if strings.HasPrefix(lowered, "magnet:") {
		if u, err := url.Parse(link); err == nil {
			for _, xt := range u.Query()["xt"] {
				if strings.HasPrefix(xt, "urn:btih:") {
					return strings.ToLower(strings.TrimPrefix(xt, "urn:btih:"))
				}
			}
		}
	}
	return link
}
