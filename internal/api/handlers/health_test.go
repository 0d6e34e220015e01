package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestHealthReportsIdentity(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	handler := NewHealthHandler(logger)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("Status mismatch: %q", resp.Status)
	}
	if resp.App != "bookarr" {
		t.Errorf("App mismatch: %q", resp.App)
	}
	if resp.Version == "" {
		t.Error("Expected a version string")
	}
}

func TestHealthRejectsNonGet(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	handler := NewHealthHandler(logger)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("Expected 405, got %d", rec.Code)
	}
}
