package models

import (
	"fmt"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// Wanted item operations

// CreateWantedItem creates a new wanted item
func (db *Database) CreateWantedItem(item *WantedItem) error {
	item.CreatedAt = time.Now()
	item.UpdatedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), item)
}

// UpdateWantedItem updates an existing wanted item
func (db *Database) UpdateWantedItem(item *WantedItem) error {
	item.UpdatedAt = time.Now()
	return db.store.Update(item.ID, item)
}

// GetWantedItemByID retrieves a wanted item by ID
func (db *Database) GetWantedItemByID(id uint64) (*WantedItem, error) {
	var item WantedItem
	err := db.store.Get(id, &item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetAllWantedItems retrieves every item regardless of status
func (db *Database) GetAllWantedItems() ([]*WantedItem, error) {
	var items []*WantedItem
	err := db.store.Find(&items, nil)
	return items, err
}

// GetItemsByStatus retrieves all items with the given status
func (db *Database) GetItemsByStatus(status ItemStatus) ([]*WantedItem, error) {
	var items []*WantedItem
	err := db.store.Find(&items, bolthold.Where("Status").Eq(status))
	return items, err
}

// DeleteWantedItem deletes a wanted item by ID
func (db *Database) DeleteWantedItem(id uint64) error {
	return db.store.Delete(id, &WantedItem{})
}

// Acquisition job operations

// CreateJob creates a new acquisition job record
func (db *Database) CreateJob(job *AcquisitionJob) error {
	job.CreatedAt = time.Now()
	job.UpdatedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), job)
}

// UpdateJob updates an existing acquisition job
func (db *Database) UpdateJob(job *AcquisitionJob) error {
	job.UpdatedAt = time.Now()
	return db.store.Update(job.ID, job)
}

// GetJobByID retrieves a job by ID
func (db *Database) GetJobByID(id uint64) (*AcquisitionJob, error) {
	var job AcquisitionJob
	err := db.store.Get(id, &job)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetOpenJobForItem returns the submitted or active job for an item, or
// bolthold.ErrNotFound when the item has no job in flight.
func (db *Database) GetOpenJobForItem(itemID uint64) (*AcquisitionJob, error) {
	var jobs []*AcquisitionJob
	err := db.store.Find(&jobs, bolthold.Where("ItemID").Eq(itemID))
	if err != nil {
		return nil, err
	}

	for _, job := range jobs {
		if job.Status.IsOpen() {
			return job, nil
		}
	}

	return nil, bolthold.ErrNotFound
}

// GetJobsByStatus retrieves all jobs with the given status
func (db *Database) GetJobsByStatus(status JobStatus) ([]*AcquisitionJob, error) {
	var jobs []*AcquisitionJob
	err := db.store.Find(&jobs, bolthold.Where("Status").Eq(status))
	return jobs, err
}

// GetOpenJobs retrieves all jobs still occupying an in-flight slot
func (db *Database) GetOpenJobs() ([]*AcquisitionJob, error) {
	var jobs []*AcquisitionJob
	err := db.store.Find(&jobs, nil)
	if err != nil {
		return nil, err
	}

	open := jobs[:0]
	for _, job := range jobs {
		if job.Status.IsOpen() {
			open = append(open, job)
		}
	}
	return open, nil
}

// GetJobByClientJobID retrieves a job by the download client's job id
func (db *Database) GetJobByClientJobID(clientJobID string) (*AcquisitionJob, error) {
	var jobs []*AcquisitionJob
	err := db.store.Find(&jobs, bolthold.Where("ClientJobID").Eq(clientJobID))
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, bolthold.ErrNotFound
	}
	return jobs[0], nil
}

// GetJobsByItemID retrieves every job recorded for an item
func (db *Database) GetJobsByItemID(itemID uint64) ([]*AcquisitionJob, error) {
	var jobs []*AcquisitionJob
	err := db.store.Find(&jobs, bolthold.Where("ItemID").Eq(itemID))
	return jobs, err
}
