package blackhole

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/config"
	"github.com/amaumene/bookarr/internal/downloaders"
	"github.com/amaumene/bookarr/internal/models"
	"github.com/amaumene/bookarr/internal/providers"
)

func testClient(t *testing.T) (*Client, string) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	dir := t.TempDir()
	client, err := New(config.BlackholeConfig{Dir: dir}, logger)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client, dir
}

func TestSubmitMagnetWritesRequestFile(t *testing.T) {
	client, dir := testClient(t)

	handle, err := client.Submit(context.Background(), downloaders.Payload{
		Title:    "The Great Book",
		URL:      "magnet:?xt=urn:btih:abc",
		Hit:      providers.KindMagnet,
		Category: models.CategoryEBook,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if handle.ID != "The Great Book.magnet" {
		t.Errorf("Unexpected handle id: %s", handle.ID)
	}

	data, err := os.ReadFile(filepath.Join(dir, handle.ID))
	if err != nil {
		t.Fatalf("Drop file missing: %v", err)
	}
	if strings.TrimSpace(string(data)) != "magnet:?xt=urn:btih:abc" {
		t.Errorf("Magnet link not written, got %q", data)
	}
}

func TestSubmitIRCWritesPackRequest(t *testing.T) {
	client, dir := testClient(t)

	handle, err := client.Submit(context.Background(), downloaders.Payload{
		Title: "The Great Book.epub",
		URL:   "!shelf The Great Book.epub",
		Hit:   providers.KindIRC,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if !strings.HasSuffix(handle.ID, ".xdcc") {
		t.Errorf("Expected .xdcc request file, got %s", handle.ID)
	}
	data, err := os.ReadFile(filepath.Join(dir, handle.ID))
	if err != nil {
		t.Fatalf("Drop file missing: %v", err)
	}
	if strings.TrimSpace(string(data)) != "!shelf The Great Book.epub" {
		t.Errorf("Pack command not written, got %q", data)
	}
}

func TestSubmitFetchesNZBPayload(t *testing.T) {
	payload := `<?xml version="1.0"?><nzb></nzb>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer server.Close()

	client, dir := testClient(t)

	handle, err := client.Submit(context.Background(), downloaders.Payload{
		Title: "The Great Book",
		URL:   server.URL + "/getnzb/1.nzb",
		Hit:   providers.KindNZB,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if handle.ID != "The Great Book.nzb" {
		t.Errorf("Unexpected handle id: %s", handle.ID)
	}
	data, err := os.ReadFile(filepath.Join(dir, handle.ID))
	if err != nil {
		t.Fatalf("Drop file missing: %v", err)
	}
	if string(data) != payload {
		t.Errorf("Payload mismatch: %q", data)
	}

	// No temp residue
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("Leftover temp file: %s", e.Name())
		}
	}
}

func TestSubmitFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	client, dir := testClient(t)

	_, err := client.Submit(context.Background(), downloaders.Payload{
		Title: "Missing Book",
		URL:   server.URL + "/getnzb/404.nzb",
		Hit:   providers.KindNZB,
	})
	if err == nil {
		t.Fatal("Expected an error")
	}
	cerr, ok := err.(*downloaders.ClientError)
	if !ok {
		t.Fatalf("Expected *downloaders.ClientError, got %T", err)
	}
	if cerr.Kind != downloaders.ErrUnreachable {
		t.Errorf("Expected unreachable, got %s", cerr.Kind)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("No file should be dropped on failure, found %d", len(entries))
	}
}

func TestTestProbesFolder(t *testing.T) {
	client, dir := testClient(t)

	if err := client.Test(context.Background()); err != nil {
		t.Fatalf("Test failed: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Probe file should be cleaned up, found %d entries", len(entries))
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Plain Title":          "Plain Title",
		"a/b\\c:d*e?f\"g<h>i|": "a_b_c_d_e_f_g_h_i_",
		"  padded  ":           "padded",
		"":                     "download",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
