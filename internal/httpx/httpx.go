package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// UserAgent identifies us to providers and download clients
const UserAgent = "bookarr/1.0"

// DefaultMaxPayloadBytes bounds nzb/torrent payload downloads
const DefaultMaxPayloadBytes int64 = 16 << 20 // 16 MiB

// Fetch downloads a URL with a bounded body size, retrying transient
// failures with exponential backoff. Client errors (4xx) are permanent
// and returned immediately.
func Fetch(ctx context.Context, client *http.Client, url string, maxBytes int64) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPayloadBytes
	}

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", UserAgent)

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d", url, resp.StatusCode))
		default:
			return fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBytes))
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return body, nil
}
