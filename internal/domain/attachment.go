package domain

import "time"

// Attachment stores metadata for a file uploaded with a log entry.
type Attachment struct {
	ID          string
	TicketID    string
	LogID       string
	UploadedBy  string
	StoragePath string
	FileName    string
	MimeType    string
	SizeBytes   int64
	CreatedAt   time.Time
}

// Photo is the flattened per-ticket picture list kept for the dashboard.
// It is written after the attachment and may lag behind it.
type Photo struct {
	ID          string
	TicketID    string
	URL         string
	StoragePath string
	CreatedAt   time.Time
}
