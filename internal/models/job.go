package models

import "time"

// AcquisitionJob represents one submission of a candidate to a download
// client. At most one open (submitted/active) job exists per wanted item.
type AcquisitionJob struct {
	ID     uint64 `boltholdKey:"ID"`
	ItemID uint64 `boltholdIndex:"ItemID"`

	// What was snatched
	Provider string
	Title    string
	URL      string
	Size     int64
	Score    int

	// Where it went
	Client      string
	ClientJobID string `boltholdIndex:"ClientJobID"`

	Status        JobStatus `boltholdIndex:"Status"`
	FailureReason string

	// Metadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}
