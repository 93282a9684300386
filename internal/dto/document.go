package dto

import (
	"time"

	"docflow/internal/models"
	"docflow/internal/wizard"

	"github.com/google/uuid"
)

type DocumentResponse struct {
	ID              string            `json:"id"`
	BatchID         string            `json:"batchId"`
	FileName        string            `json:"fileName"`
	Extension       string            `json:"extension"`
	MimeType        string            `json:"mimeType"`
	Size            int64             `json:"size"`
	Pages           int               `json:"pages,omitempty"`
	Status          string            `json:"status"`
	Progress        int               `json:"progress"`
	ExtractedFields map[string]string `json:"extractedFields,omitempty"`
	ErrorReason     string            `json:"errorReason,omitempty"`
	CanRetry        bool              `json:"canRetry"`
	InvoiceID       *string           `json:"invoiceId,omitempty"`
	CreatedAt       string            `json:"createdAt"`
	UpdatedAt       string            `json:"updatedAt"`
	ProcessedAt     *string           `json:"processedAt,omitempty"`
	CommittedAt     *string           `json:"committedAt,omitempty"`
}

func NewDocumentResponse(d *models.Document) DocumentResponse {
	return DocumentResponse{
		ID:              d.ID.String(),
		BatchID:         d.BatchID.String(),
		FileName:        d.FileName,
		Extension:       d.Extension,
		MimeType:        d.MimeType,
		Size:            d.Size,
		Pages:           d.Pages,
		Status:          string(d.Status),
		Progress:        d.Progress,
		ExtractedFields: d.ExtractedFields,
		ErrorReason:     d.ErrorReason,
		CanRetry:        d.Status == models.DocumentStatusFailed,
		InvoiceID:       idString(d.InvoiceID),
		CreatedAt:       d.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       d.UpdatedAt.UTC().Format(time.RFC3339),
		ProcessedAt:     timestamp(d.ProcessedAt),
		CommittedAt:     timestamp(d.CommittedAt),
	}
}

func NewDocumentResponses(docs []*models.Document) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, NewDocumentResponse(d))
	}
	return out
}

type RejectionResponse struct {
	FileName string `json:"fileName"`
	Error    string `json:"error"`
	Kind     string `json:"kind"`
}

type UploadResponse struct {
	BatchID   string              `json:"batchId"`
	Documents []DocumentResponse  `json:"documents"`
	Rejected  []RejectionResponse `json:"rejected"`
}

type ProcessBatchRequest struct {
	IDs []string `json:"ids"`
}

// ProcessOutcomeResponse reports one document of a processing request.
// Outcome is queued, noop or error.
type ProcessOutcomeResponse struct {
	DocumentID string            `json:"documentId"`
	Outcome    string            `json:"outcome"`
	Document   *DocumentResponse `json:"document,omitempty"`
	Error      string            `json:"error,omitempty"`
	Kind       string            `json:"kind,omitempty"`
}

type CommitRequest struct {
	Fields    map[string]string `json:"fields"`
	InvoiceID *string           `json:"invoiceId,omitempty"`
}

type CommitResponse struct {
	Document DocumentResponse `json:"document"`
	Invoice  InvoiceResponse  `json:"invoice"`
	Created  bool             `json:"created"`
}

type FailedDocument struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
	Reason   string `json:"reason"`
	CanRetry bool   `json:"canRetry"`
}

type BatchResponse struct {
	BatchID   string             `json:"batchId"`
	Documents []DocumentResponse `json:"documents"`
	Failed    []FailedDocument   `json:"failed"`
	Wizard    wizard.State       `json:"wizard"`
}

func idString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func timestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
