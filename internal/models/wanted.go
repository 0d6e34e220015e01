package models

import "time"

// WantedItem represents a book, audiobook or magazine issue the user
// wants acquired
type WantedItem struct {
	ID uint64 `boltholdKey:"ID"`

	Title  string
	Author string // Empty for magazines
	Series string // Optional series or issue identifier

	Category    Category
	WantedTypes []string // Preferred file types, best first (epub, mobi, mp3, ...)

	Status     ItemStatus `boltholdIndex:"Status"`
	RetryCount int        // Failed acquisition cycles so far

	// Metadata
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastSearchedAt *time.Time
	ProcessedAt    *time.Time
}

// SearchTerm builds the text the providers are queried with.
func (w *WantedItem) SearchTerm() string {
	if w.Author == "" {
		if w.Series == "" {
			return w.Title
		}
		return w.Title + " " + w.Series
	}
	return w.Author + " " + w.Title
}
