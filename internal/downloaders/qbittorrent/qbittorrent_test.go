package qbittorrent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/config"
	"github.com/amaumene/bookarr/internal/downloaders"
	"github.com/amaumene/bookarr/internal/providers"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestServer(t *testing.T, addStatus int, addBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/auth/login":
			if err := r.ParseForm(); err != nil {
				t.Fatalf("Bad login form: %v", err)
			}
			if r.PostForm.Get("username") != "admin" || r.PostForm.Get("password") != "pass" {
				w.Write([]byte("Fails."))
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "SID", Value: "abc"})
			w.Write([]byte("Ok."))
		case "/api/v2/torrents/add":
			cookie, err := r.Cookie("SID")
			if err != nil || cookie.Value != "abc" {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			w.WriteHeader(addStatus)
			w.Write([]byte(addBody))
		case "/api/v2/app/version":
			w.Write([]byte("v4.6.0"))
		default:
			http.NotFound(w, r)
		}
	}))
}

func testConfig(url string) config.QBittorrentConfig {
	return config.QBittorrentConfig{
		URL:      url,
		Username: "admin",
		Password: "pass",
		Category: "books",
	}
}

func TestSubmitMagnet(t *testing.T) {
	server := newTestServer(t, http.StatusOK, "Ok.")
	defer server.Close()

	client, err := New(testConfig(server.URL), quietLogger())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	handle, err := client.Submit(context.Background(), downloaders.Payload{
		Title: "The Great Book",
		URL:   "magnet:?xt=urn:btih:DEADBEEF",
		Hit:   providers.KindMagnet,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if handle.ID != "deadbeef" {
		t.Errorf("Expected info hash as job id, got %s", handle.ID)
	}
	if handle.Client != "qbittorrent" {
		t.Errorf("Unexpected client name: %s", handle.Client)
	}
}

func TestSubmitBadCredentials(t *testing.T) {
	server := newTestServer(t, http.StatusOK, "Ok.")
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Password = "wrong"
	client, err := New(cfg, quietLogger())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	_, err = client.Submit(context.Background(), downloaders.Payload{
		Title: "The Great Book",
		URL:   "magnet:?xt=urn:btih:abc",
	})
	cerr, ok := err.(*downloaders.ClientError)
	if !ok {
		t.Fatalf("Expected *downloaders.ClientError, got %v", err)
	}
	if cerr.Kind != downloaders.ErrAuthFailure {
		t.Errorf("Expected auth_failure, got %s", cerr.Kind)
	}
}

func TestSubmitRefused(t *testing.T) {
	server := newTestServer(t, http.StatusOK, "Fails.")
	defer server.Close()

	client, err := New(testConfig(server.URL), quietLogger())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	_, err = client.Submit(context.Background(), downloaders.Payload{
		Title: "The Great Book",
		URL:   "https://example.com/bad.torrent",
	})
	cerr, ok := err.(*downloaders.ClientError)
	if !ok {
		t.Fatalf("Expected *downloaders.ClientError, got %v", err)
	}
	if cerr.Kind != downloaders.ErrRejected {
		t.Errorf("Expected rejected, got %s", cerr.Kind)
	}
}

func TestTest(t *testing.T) {
	server := newTestServer(t, http.StatusOK, "Ok.")
	defer server.Close()

	client, err := New(testConfig(server.URL), quietLogger())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if err := client.Test(context.Background()); err != nil {
		t.Errorf("Test failed: %v", err)
	}
}

func TestJobID(t *testing.T) {
	cases := map[string]string{
		"magnet:?xt=urn:btih:ABCDEF1234&dn=book": "abcdef1234",
		"https://example.com/file.torrent":       "https://example.com/file.torrent",
		"magnet:?dn=nohash":                      "magnet:?dn=nohash",
	}
	for in, want := range cases {
		if got := jobID(in); got != want {
			t.Errorf("jobID(%q) = %q, want %q", in, got, want)
		}
	}
}
