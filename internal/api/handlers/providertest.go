package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/config"
	"github.com/amaumene/bookarr/internal/models"
	"github.com/amaumene/bookarr/internal/providers"
	"github.com/amaumene/bookarr/internal/providers/registry"
)

// ProviderTestHandler probes provider configurations with a live search
type ProviderTestHandler struct {
	timeout time.Duration
	logger  *logrus.Logger
}

// NewProviderTestHandler creates a new provider test handler
func NewProviderTestHandler(timeout time.Duration, logger *logrus.Logger) *ProviderTestHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ProviderTestHandler{
		timeout: timeout,
		logger:  logger,
	}
}

// providerTestRequest is the POST /api/providers/test body: a provider
// configuration to probe without saving it
type providerTestRequest struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	URL    string `json:"url"`
	APIKey string `json:"api_key"`

	Server  string `json:"server"`
	Channel string `json:"channel"`
	BotNick string `json:"bot_nick"`
	Nick    string `json:"nick"`

	RowSelector   string `json:"row_selector"`
	TitleSelector string `json:"title_selector"`
	LinkSelector  string `json:"link_selector"`
	SizeSelector  string `json:"size_selector"`

	Query string `json:"query"`
}

// providerTestResponse reports the probe outcome
type providerTestResponse struct {
	OK    bool   `json:"ok"`
	Hits  int    `json:"hits"`
	Error string `json:"error,omitempty"`
}

// ServeHTTP handles the provider test endpoint
func (h *ProviderTestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req providerTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "test"
	}

	cfg := config.ProviderConfig{
		Name:          name,
		Type:          config.ProviderType(strings.ToLower(req.Type)),
		URL:           req.URL,
		APIKey:        req.APIKey,
		Server:        req.Server,
		Channel:       req.Channel,
		BotNick:       req.BotNick,
		Nick:          req.Nick,
		RowSelector:   req.RowSelector,
		TitleSelector: req.TitleSelector,
		LinkSelector:  req.LinkSelector,
		SizeSelector:  req.SizeSelector,
	}

	provider, err := registry.NewProvider(cfg, time.Minute, h.logger)
	if err != nil {
		writeTestResult(w, providerTestResponse{Error: err.Error()})
		return
	}

	query := providers.Query{Title: req.Query, Category: models.CategoryEBook}
	if query.Title == "" {
		query.Title = "test"
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	hits, err := provider.Search(ctx, query)
	if err != nil {
		h.logger.WithError(err).WithField("provider", name).Info("Provider test failed")
		writeTestResult(w, providerTestResponse{Error: err.Error()})
		return
	}

	writeTestResult(w, providerTestResponse{OK: true, Hits: len(hits)})
}

func writeTestResult(w http.ResponseWriter, resp providerTestResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
