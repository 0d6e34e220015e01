package models

// Category represents the library a wanted item belongs to
type Category string

const (
	CategoryEBook     Category = "ebook"
	CategoryAudiobook Category = "audiobook"
	CategoryMagazine  Category = "magazine"
)

// ItemStatus represents the current lifecycle state of a wanted item
type ItemStatus string

const (
	ItemStatusSkipped   ItemStatus = "skipped"   // Not being searched for
	ItemStatusWanted    ItemStatus = "wanted"    // Waiting for the next search sweep
	ItemStatusSnatched  ItemStatus = "snatched"  // Sent to a download client
	ItemStatusProcessed ItemStatus = "processed" // Download confirmed complete
	ItemStatusFailed    ItemStatus = "failed"    // Retry ceiling exceeded
)

// JobStatus represents the status of an acquisition job
type JobStatus string

const (
	JobStatusSubmitted JobStatus = "submitted" // Accepted by a download client
	JobStatusActive    JobStatus = "active"    // Client reported the download started
	JobStatusCompleted JobStatus = "completed" // Terminal: client finished the download
	JobStatusFailed    JobStatus = "failed"    // Terminal: client gave up or timed out
)

// IsOpen reports whether the job still occupies its item's single
// in-flight slot.
func (s JobStatus) IsOpen() bool {
	return s == JobStatusSubmitted || s == JobStatusActive
}
