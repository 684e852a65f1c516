package domain

import "time"

type Customer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DocumentRecord is the metadata row for one stored document. Classification
// stays nil until a full pipeline run commits a label.
type DocumentRecord struct {
	ID             int64     `json:"id"`
	CustomerID     int64     `json:"customer_id"`
	Filename       string    `json:"filename"`
	StorageKey     string    `json:"storage_key"`
	Classification *string   `json:"file_classification"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (d *DocumentRecord) Label() string {
	if d == nil || d.Classification == nil {
		return ""
	}
	return *d.Classification
}

type ClassificationResult struct {
	FileClass  string `json:"file_class"`
	Filename   string `json:"filename"`
	CustomerID int64  `json:"customer_id"`
}

// ClassificationJob is the queued form of a classify request.
type ClassificationJob struct {
	CustomerID int64     `json:"customer_id"`
	Filename   string    `json:"filename"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// StorageKeyFor returns the object-store locator used for a customer upload.
func StorageKeyFor(customerID int64, filename string) string {
	return formatInt(customerID) + "/" + filename
}
