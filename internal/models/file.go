// Package models defines data structures shared by the pipeline jobs.
package models

import "time"

// TimestampLayout is the layout of FileRecord.LastUpdatedTimestamp.
const TimestampLayout = "2006-01-02T15:04:05"

// FileRecord is the last-known state of one remote file. Field order is
// the manifest's key order.
type FileRecord struct {
	FileName             string  `json:"file_name"`
	URL                  string  `json:"url"`
	LastUpdatedDate      string  `json:"last_updated_date"`
	LastUpdatedTime      string  `json:"last_updated_time"`
	LastUpdatedTimestamp *string `json:"last_updated_timestamp"`
	FileSizeBytes        *int64  `json:"file_size_bytes"`
}

// Timestamp returns the stored timestamp or "" when unknown.
func (r FileRecord) Timestamp() string {
	if r.LastUpdatedTimestamp == nil {
		return ""
	}

	return *r.LastUpdatedTimestamp
}

// Manifest is the ordered set of records, one per file name.
type Manifest []FileRecord

// Index maps file names to records.
func (m Manifest) Index() map[string]FileRecord {
	idx := make(map[string]FileRecord, len(m))
	for _, rec := range m {
		idx[rec.FileName] = rec
	}

	return idx
}

// Names returns the file names in manifest order.
func (m Manifest) Names() []string {
	names := make([]string, 0, len(m))
	for _, rec := range m {
		names = append(names, rec.FileName)
	}

	return names
}

// ListingEntry is one file anchor parsed from the remote directory index.
type ListingEntry struct {
	Timestamp *string `json:"timestamp"`
	Size      *int64  `json:"size"`
	FileName  string  `json:"fileName"`
	URL       string  `json:"url"`
	Date      string  `json:"date"`
	Time      string  `json:"time"`
}

// Record converts the entry to its manifest form.
func (e ListingEntry) Record() FileRecord {
	return FileRecord{
		FileName:             e.FileName,
		URL:                  e.URL,
		LastUpdatedDate:      e.Date,
		LastUpdatedTime:      e.Time,
		LastUpdatedTimestamp: e.Timestamp,
		FileSizeBytes:        e.Size,
	}
}

// SyncFailure records a download that failed during a sync run.
type SyncFailure struct {
	AttemptedAt       time.Time `json:"attempted_at"`
	FileName          string    `json:"file_name"`
	URL               string    `json:"url"`
	Error             string    `json:"error"`
	PreviouslyTracked bool      `json:"previously_tracked"`
}
