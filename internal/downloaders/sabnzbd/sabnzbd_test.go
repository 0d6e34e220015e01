package sabnzbd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/config"
	"github.com/amaumene/bookarr/internal/downloaders"
	"github.com/amaumene/bookarr/internal/models"
	"github.com/amaumene/bookarr/internal/providers"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestSubmitReturnsQueueSlot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("mode") != "addurl" {
			t.Errorf("Expected mode=addurl, got %s", q.Get("mode"))
		}
		if q.Get("apikey") != "secret" {
			t.Errorf("API key not sent")
		}
		if q.Get("name") != "https://example.com/getnzb/1.nzb" {
			t.Errorf("NZB URL not sent: %s", q.Get("name"))
		}
		if q.Get("cat") != "books" {
			t.Errorf("Category not sent: %s", q.Get("cat"))
		}
		w.Write([]byte(`{"status": true, "nzo_ids": ["SABnzbd_nzo_abc123"]}`))
	}))
	defer server.Close()

	client := New(config.SABnzbdConfig{
		URL:      server.URL,
		APIKey:   "secret",
		Category: "books",
	}, quietLogger())

	handle, err := client.Submit(context.Background(), downloaders.Payload{
		Title:    "The Great Book",
		URL:      "https://example.com/getnzb/1.nzb",
		Hit:      providers.KindNZB,
		Category: models.CategoryEBook,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if handle.ID != "SABnzbd_nzo_abc123" {
		t.Errorf("Unexpected handle id: %s", handle.ID)
	}
	if handle.Client != "sabnzbd" {
		t.Errorf("Unexpected client name: %s", handle.Client)
	}
}

func TestSubmitRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": false, "error": "no such nzb"}`))
	}))
	defer server.Close()

	client := New(config.SABnzbdConfig{URL: server.URL}, quietLogger())

	_, err := client.Submit(context.Background(), downloaders.Payload{
		Title: "The Great Book",
		URL:   "https://example.com/getnzb/1.nzb",
	})
	cerr, ok := err.(*downloaders.ClientError)
	if !ok {
		t.Fatalf("Expected *downloaders.ClientError, got %v", err)
	}
	if cerr.Kind != downloaders.ErrRejected {
		t.Errorf("Expected rejected, got %s", cerr.Kind)
	}
}

func TestSubmitAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	client := New(config.SABnzbdConfig{URL: server.URL, APIKey: "wrong"}, quietLogger())

	_, err := client.Submit(context.Background(), downloaders.Payload{
		Title: "The Great Book",
		URL:   "https://example.com/getnzb/1.nzb",
	})
	cerr, ok := err.(*downloaders.ClientError)
	if !ok {
		t.Fatalf("Expected *downloaders.ClientError, got %v", err)
	}
	if cerr.Kind != downloaders.ErrAuthFailure {
		t.Errorf("Expected auth_failure, got %s", cerr.Kind)
	}
}

func TestTestChecksVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("mode") != "version" {
			t.Errorf("Expected mode=version, got %s", r.URL.Query().Get("mode"))
		}
		w.Write([]byte(`{"version": "4.2.1"}`))
	}))
	defer server.Close()

	client := New(config.SABnzbdConfig{URL: server.URL}, quietLogger())
	if err := client.Test(context.Background()); err != nil {
		t.Errorf("Test failed: %v", err)
	}
}

func TestTestUnreachable(t *testing.T) {
	client := New(config.SABnzbdConfig{URL: "http://127.0.0.1:1"}, quietLogger())

	err := client.Test(context.Background())
	cerr, ok := err.(*downloaders.ClientError)
	if !ok {
		t.Fatalf("Expected *downloaders.ClientError, got %v", err)
	}
	if cerr.Kind != downloaders.ErrUnreachable {
		t.Errorf("Expected unreachable, got %s", cerr.Kind)
	}
}
