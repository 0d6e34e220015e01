package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/timshannon/bolthold"

	"github.com/amaumene/bookarr/internal/models"
)

// ItemSearcher runs one search-and-snatch cycle for a single item. The
// scheduler implements it.
type ItemSearcher interface {
	ProcessItem(ctx context.Context, item *models.WantedItem) error
}

// WantedHandler manages the wanted item collection
type WantedHandler struct {
	db       *models.Database
	searcher ItemSearcher
	logger   *logrus.Logger
}

// NewWantedHandler creates a new wanted item handler
func NewWantedHandler(db *models.Database, searcher ItemSearcher, logger *logrus.Logger) *WantedHandler {
	return &WantedHandler{
		db:       db,
		searcher: searcher,
		logger:   logger,
	}
}

// createItemRequest is the POST /api/wanted body
type createItemRequest struct {
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Series      string   `json:"series"`
	Category    string   `json:"category"`
	WantedTypes []string `json:"wanted_types"`
}

// ServeHTTP routes the wanted collection endpoints
func (h *WantedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/wanted")
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.list(w, r)
	case rest == "" && r.Method == http.MethodPost:
		h.create(w, r)
	case strings.HasSuffix(rest, "/search") && r.Method == http.MethodPost:
		h.search(w, r, strings.TrimSuffix(rest, "/search"))
	case !strings.Contains(rest, "/") && r.Method == http.MethodDelete:
		h.delete(w, r, rest)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// list returns every wanted item
func (h *WantedHandler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.db.GetAllWantedItems()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get wanted items")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []*models.WantedItem{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

// create adds a new wanted item to the pool
func (h *WantedHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	category := models.Category(strings.ToLower(req.Category))
	switch category {
	case models.CategoryEBook, models.CategoryAudiobook, models.CategoryMagazine:
	case "":
		category = models.CategoryEBook
	default:
		http.Error(w, "unknown category", http.StatusBadRequest)
		return
	}

	item := &models.WantedItem{
		Title:       strings.TrimSpace(req.Title),
		Author:      strings.TrimSpace(req.Author),
		Series:      strings.TrimSpace(req.Series),
		Category:    category,
		WantedTypes: req.WantedTypes,
		Status:      models.ItemStatusWanted,
	}

	if err := h.db.CreateWantedItem(item); err != nil {
		h.logger.WithError(err).Error("Failed to create wanted item")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"item_id":  item.ID,
		"title":    item.Title,
		"category": item.Category,
	}).Info("Wanted item created")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(item)
}

// search triggers an immediate search round for one item
func (h *WantedHandler) search(w http.ResponseWriter, r *http.Request, idStr string) {
	item, ok := h.loadItem(w, idStr)
	if !ok {
		return
	}

	if item.Status != models.ItemStatusWanted && item.Status != models.ItemStatusFailed {
		http.Error(w, "item is not searchable in status "+string(item.Status), http.StatusConflict)
		return
	}

	// A manual search revives a failed item
	if item.Status == models.ItemStatusFailed {
		item.Status = models.ItemStatusWanted
		item.RetryCount = 0
	}

	if err := h.searcher.ProcessItem(r.Context(), item); err != nil {
		h.logger.WithError(err).WithField("item_id", item.ID).Error("Manual search failed")
		http.Error(w, "Search failed", http.StatusInternalServerError)
		return
	}

	refreshed, err := h.db.GetWantedItemByID(item.ID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(refreshed)
}

// delete removes a wanted item
func (h *WantedHandler) delete(w http.ResponseWriter, r *http.Request, idStr string) {
	item, ok := h.loadItem(w, idStr)
	if !ok {
		return
	}

	if err := h.db.DeleteWantedItem(item.ID); err != nil {
		h.logger.WithError(err).Error("Failed to delete wanted item")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *WantedHandler) loadItem(w http.ResponseWriter, idStr string) (*models.WantedItem, bool) {
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid item id", http.StatusBadRequest)
		return nil, false
	}

	item, err := h.db.GetWantedItemByID(id)
	if err != nil {
		if errors.Is(err, bolthold.ErrNotFound) {
			http.Error(w, "Item not found", http.StatusNotFound)
		} else {
			h.logger.WithError(err).Error("Failed to load wanted item")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return nil, false
	}
	return item, true
}
