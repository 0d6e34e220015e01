package sabnzbd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/config"
	"github.com/amaumene/bookarr/internal/downloaders"
	"github.com/amaumene/bookarr/internal/httpx"
)

// Client submits NZB links to a SABnzbd instance over its JSON API
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	category   string
	httpClient *http.Client
	logger     *logrus.Logger
}

// New creates a SABnzbd client from config
func New(cfg config.SABnzbdConfig, logger *logrus.Logger) *Client {
	return &Client{
		name:     "sabnzbd",
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		apiKey:   cfg.APIKey,
		category: cfg.Category,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Name returns the client identifier used in job records
func (c *Client) Name() string { return c.name }

// Kind reports the payload family this client accepts
func (c *Client) Kind() downloaders.Kind { return downloaders.KindUsenet }

// addURLResponse is SABnzbd's answer to mode=addurl
type addURLResponse struct {
	Status bool     `json:"status"`
	NzoIDs []string `json:"nzo_ids"`
	Error  string   `json:"error"`
}

// Submit hands the NZB link to SABnzbd and returns its queue slot id
func (c *Client) Submit(ctx context.Context, p downloaders.Payload) (downloaders.JobHandle, error) {
	params := url.Values{}
	params.Set("mode", "addurl")
	params.Set("name", p.URL)
	params.Set("nzbname", p.Title)
	if c.category != "" {
		params.Set("cat", c.category)
	}

	var resp addURLResponse
	if err := c.call(ctx, params, &resp); err != nil {
		return downloaders.JobHandle{}, err
	}

	if !resp.Status || len(resp.NzoIDs) == 0 {
		reason := resp.Error
		if reason == "" {
			reason = "no nzo id returned"
		}
		return downloaders.JobHandle{}, downloaders.NewClientError(c.name, downloaders.ErrRejected,
			fmt.Errorf("addurl refused: %s", reason))
	}

	c.logger.WithFields(logrus.Fields{
		"client": c.name,
		"title":  p.Title,
		"nzo_id": resp.NzoIDs[0],
	}).Info("NZB submitted")

	return downloaders.JobHandle{ID: resp.NzoIDs[0], Client: c.name}, nil
}

// versionResponse is SABnzbd's answer to mode=version
type versionResponse struct {
	Version string `json:"version"`
}

// Test checks that the instance is reachable and the API key accepted
func (c *Client) Test(ctx context.Context) error {
	params := url.Values{}
	params.Set("mode", "version")

	var resp versionResponse
	if err := c.call(ctx, params, &resp); err != nil {
		return err
	}
	if resp.Version == "" {
		return downloaders.NewClientError(c.name, downloaders.ErrRejected,
			errors.New("version call returned no version"))
	}
	return nil
}

// call performs one API request with the shared auth/output parameters
func (c *Client) call(ctx context.Context, params url.Values, out interface{}) error {
	params.Set("apikey", c.apiKey)
	params.Set("output", "json")
	endpoint := c.baseURL + "/api?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return downloaders.NewClientError(c.name, downloaders.ErrRejected, err)
	}
	req.Header.Set("User-Agent", httpx.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts, connection refused and DNS failures all mean the
		// daemon cannot take work right now
		return downloaders.NewClientError(c.name, downloaders.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return downloaders.NewClientError(c.name, downloaders.ErrAuthFailure,
			fmt.Errorf("sabnzbd returned status %d", resp.StatusCode))
	default:
		return downloaders.NewClientError(c.name, downloaders.ErrRejected,
			fmt.Errorf("sabnzbd returned status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return downloaders.NewClientError(c.name, downloaders.ErrRejected,
			fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
