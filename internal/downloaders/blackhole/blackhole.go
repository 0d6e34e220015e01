package blackhole

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/config"
	"github.com/amaumene/bookarr/internal/downloaders"
	"github.com/amaumene/bookarr/internal/httpx"
	"github.com/amaumene/bookarr/internal/providers"
)

// Client drops payload files into a watched folder. NZB, torrent and
// direct links are fetched and written out; magnets and IRC pack
// commands are written as small request files for an external watcher
// to act on. Writes go through a temp file and rename so the watcher
// never sees a partial file.
type Client struct {
	name       string
	dir        string
	httpClient *http.Client
	logger     *logrus.Logger
}

// New creates a blackhole client rooted at the configured folder
func New(cfg config.BlackholeConfig, logger *logrus.Logger) (*Client, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blackhole directory: %w", err)
	}

	return &Client{
		name: "blackhole",
		dir:  cfg.Dir,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}, nil
}

// Name returns the client identifier used in job records
func (c *Client) Name() string { return c.name }

// Kind reports the payload family this client accepts
func (c *Client) Kind() downloaders.Kind { return downloaders.KindBlackhole }

// Submit materializes the payload as a file in the drop folder. The
// handle ID is the written filename.
func (c *Client) Submit(ctx context.Context, p downloaders.Payload) (downloaders.JobHandle, error) {
	var filename string
	var data []byte

	switch p.Hit {
	case providers.KindMagnet:
		filename = SanitizeFilename(p.Title) + ".magnet"
		data = []byte(p.URL + "\n")
	case providers.KindIRC:
		filename = SanitizeFilename(p.Title) + ".xdcc"
		data = []byte(p.URL + "\n")
	default:
		body, err := httpx.Fetch(ctx, c.httpClient, p.URL, httpx.DefaultMaxPayloadBytes)
		if err != nil {
			return downloaders.JobHandle{}, downloaders.NewClientError(c.name, downloaders.ErrUnreachable,
				fmt.Errorf("failed to fetch payload: %w", err))
		}
		filename = SanitizeFilename(p.Title) + extensionFor(p.Hit, p.URL)
		data = body
	}

	if err := c.writeAtomic(filename, data); err != nil {
		return downloaders.JobHandle{}, downloaders.NewClientError(c.name, downloaders.ErrRejected, err)
	}

	c.logger.WithFields(logrus.Fields{
		"client": c.name,
		"file":   filename,
		"bytes":  len(data),
	}).Info("Payload dropped")

	return downloaders.JobHandle{ID: filename, Client: c.name}, nil
}

// Test checks the drop folder is writable
func (c *Client) Test(ctx context.Context) error {
	probe := filepath.Join(c.dir, ".bookarr-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return downloaders.NewClientError(c.name, downloaders.ErrUnreachable,
			fmt.Errorf("drop folder not writable: %w", err))
	}
	return os.Remove(probe)
}

// writeAtomic writes via a temp file in the same directory then renames
func (c *Client) writeAtomic(filename string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close payload file: %w", err)
	}

	final := filepath.Join(c.dir, filename)
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move payload into place: %w", err)
	}
	return nil
}

// extensionFor picks the drop file extension for fetched payloads
func extensionFor(kind providers.Kind, link string) string {
	switch kind {
	case providers.KindNZB:
		return ".nzb"
	case providers.KindTorrent:
		return ".torrent"
	}
	if ext := strings.ToLower(filepath.Ext(link)); ext == ".nzb" || ext == ".torrent" {
		return ext
	}
	return ".bin"
}

// SanitizeFilename strips path separators and characters that watchers
// or filesystems commonly choke on
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	)
	cleaned := strings.TrimSpace(replacer.Replace(name))
	if cleaned == "" {
		cleaned = "download"
	}
	const maxLen = 180
	if len(cleaned) > maxLen {
		cleaned = cleaned[:maxLen]
	}
	return cleaned
}
