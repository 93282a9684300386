package models

import (
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusProcessed  DocumentStatus = "processed"
	DocumentStatusFailed     DocumentStatus = "failed"
	DocumentStatusCommitted  DocumentStatus = "committed"
)

// Failure reasons recorded by the processing worker.
const (
	ReasonCancelled = "cancelled"
	ReasonTimeout   = "timeout"
)

// ParseDocumentStatus returns false for anything outside the known set.
func ParseDocumentStatus(s string) (DocumentStatus, bool) {
	switch st := DocumentStatus(s); st {
	case DocumentStatusPending, DocumentStatusProcessing, DocumentStatusProcessed,
		DocumentStatusFailed, DocumentStatusCommitted:
		return st, true
	}
	return "", false
}

var documentTransitions = map[DocumentStatus][]DocumentStatus{
	DocumentStatusPending:    {DocumentStatusProcessing, DocumentStatusFailed},
	DocumentStatusProcessing: {DocumentStatusProcessed, DocumentStatusFailed, DocumentStatusPending},
	DocumentStatusProcessed:  {DocumentStatusCommitted},
	DocumentStatusFailed:     {DocumentStatusPending},
}

// CanTransition reports whether the lifecycle permits from -> to.
// Committed has no outgoing edges.
func CanTransition(from, to DocumentStatus) bool {
	for _, next := range documentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Document struct {
	ID              uuid.UUID         `db:"id"`
	BatchID         uuid.UUID         `db:"batch_id"`
	FileName        string            `db:"file_name"`
	Extension       string            `db:"extension"`
	MimeType        string            `db:"mime_type"`
	Size            int64             `db:"size"`
	Checksum        string            `db:"checksum"`
	StorageKey      string            `db:"storage_key"`
	Pages           int               `db:"pages"`
	Status          DocumentStatus    `db:"status"`
	ExtractedFields map[string]string `db:"extracted_fields"`
	ErrorReason     string            `db:"error_reason"`
	Progress        int               `db:"progress"`
	InvoiceID       *uuid.UUID        `db:"invoice_id"`
	CreatedAt       time.Time         `db:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at"`
	ProcessedAt     *time.Time        `db:"processed_at"`
	CommittedAt     *time.Time        `db:"committed_at"`
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	if d.ExtractedFields != nil {
		c.ExtractedFields = make(map[string]string, len(d.ExtractedFields))
		for k, v := range d.ExtractedFields {
			c.ExtractedFields[k] = v
		}
	}
	if d.InvoiceID != nil {
		id := *d.InvoiceID
		c.InvoiceID = &id
	}
	if d.ProcessedAt != nil {
		t := *d.ProcessedAt
		c.ProcessedAt = &t
	}
	if d.CommittedAt != nil {
		t := *d.CommittedAt
		c.CommittedAt = &t
	}
	return &c
}
