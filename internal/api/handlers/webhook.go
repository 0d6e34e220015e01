package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/dispatch"
)

// WebhookHandler handles download client callbacks reporting job
// progress
type WebhookHandler struct {
	snatcher *dispatch.Snatcher
	logger   *logrus.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(snatcher *dispatch.Snatcher, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		snatcher: snatcher,
		logger:   logger,
	}
}

// webhookPayload is the callback body. ClientJobID is the id the
// download client was handed at submission time.
type webhookPayload struct {
	ClientJobID string `json:"client_job_id"`
	Status      string `json:"status"`
	Reason      string `json:"reason"`
}

// ServeHTTP handles the download webhook endpoint
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.WithError(err).Error("Failed to decode webhook payload")
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	if payload.ClientJobID == "" {
		http.Error(w, "client_job_id is required", http.StatusBadRequest)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"client_job_id": payload.ClientJobID,
		"status":        payload.Status,
	}).Info("Download webhook received")

	var err error
	switch strings.ToLower(payload.Status) {
	case "started", "downloading":
		err = h.snatcher.MarkJobActive(payload.ClientJobID)
	case "completed":
		err = h.snatcher.CompleteJob(payload.ClientJobID)
	case "failed":
		reason := payload.Reason
		if reason == "" {
			reason = "download client reported failure"
		}
		err = h.snatcher.FailJob(payload.ClientJobID, reason)
	default:
		http.Error(w, "unknown status "+payload.Status, http.StatusBadRequest)
		return
	}

	if err != nil {
		h.logger.WithError(err).Error("Failed to process webhook")
		http.Error(w, "Failed to process webhook", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
