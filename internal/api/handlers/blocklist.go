package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/blocklist"
)

// BlocklistHandler exposes the provider blocklist
type BlocklistHandler struct {
	blocklist *blocklist.Manager
	logger    *logrus.Logger
}

// NewBlocklistHandler creates a new blocklist handler
func NewBlocklistHandler(bl *blocklist.Manager, logger *logrus.Logger) *BlocklistHandler {
	return &BlocklistHandler{
		blocklist: bl,
		logger:    logger,
	}
}

// ServeHTTP handles the blocklist endpoint
func (h *BlocklistHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		blocked := h.blocklist.Snapshot()
		if blocked == nil {
			blocked = []blocklist.BlockedProvider{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(blocked)

	case http.MethodDelete:
		cleared := h.blocklist.ClearAll()
		h.logger.WithField("count", cleared).Info("Blocklist cleared")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"cleared": cleared})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
