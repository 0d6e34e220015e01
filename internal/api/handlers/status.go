package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/models"
)

// StatusHandler reports the state of the acquisition pipeline
type StatusHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(db *models.Database, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		db:     db,
		logger: logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	TotalItems      int            `json:"total_items"`
	Wanted          int            `json:"wanted"`
	Snatched        int            `json:"snatched"`
	Processed       int            `json:"processed"`
	Failed          int            `json:"failed"`
	Skipped         int            `json:"skipped"`
	ItemsByCategory map[string]int `json:"items_by_category"`
	OpenJobs        int            `json:"open_jobs"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	items, err := h.db.GetAllWantedItems()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get wanted items")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := StatusResponse{
		TotalItems:      len(items),
		ItemsByCategory: make(map[string]int),
	}

	for _, item := range items {
		switch item.Status {
		case models.ItemStatusWanted:
			response.Wanted++
		case models.ItemStatusSnatched:
			response.Snatched++
		case models.ItemStatusProcessed:
			response.Processed++
		case models.ItemStatusFailed:
			response.Failed++
		case models.ItemStatusSkipped:
			response.Skipped++
		}

		response.ItemsByCategory[string(item.Category)]++
	}

	jobs, err := h.db.GetOpenJobs()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get open jobs")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	response.OpenJobs = len(jobs)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
