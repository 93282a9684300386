package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"docflow/internal/models"
)

// Extracted field keys shared by parsers, the review step and the API.
const (
	FieldInvoiceNumber = "invoiceNumber"
	FieldIssueDate     = "issueDate"
	FieldDueDate       = "dueDate"
	FieldTotal         = "total"
	FieldAmount        = "amount"
	FieldClient        = "client"
	FieldClientID      = "clientId"
	FieldMatter        = "matter"
	FieldDescription   = "description"
	FieldNotes         = "notes"
	FieldTerms         = "terms"
)

// TextExtractor turns raw document bytes into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, doc *models.Document, data []byte) (string, error)
}

// FieldParser derives invoice fields from extracted text.
type FieldParser interface {
	ParseFields(ctx context.Context, text string) (map[string]string, error)
}

var ErrNoFields = errors.New("no invoice fields recognised")

var (
	reInvoiceID     = regexp.MustCompile(`\bINV-\d{1,12}\b`)
	reInvoiceLabel  = regexp.MustCompile(`(?i)invoice\s*(?:no\.?|number|#)\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9\-/]*)`)
	reIssueDate     = regexp.MustCompile(`(?i)(?:invoice|issue)\s*date\s*[:\-]?\s*(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4})`)
	reDueDate       = regexp.MustCompile(`(?i)(?:due\s*date|payment\s*due)\s*[:\-]?\s*(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4})`)
	reTotal         = regexp.MustCompile(`(?i)(?:total(?:\s+due)?|amount\s+due|balance\s+due)\s*[:\-]?\s*(?:USD|\$)?\s*([\d,]+(?:\.\d{1,2})?)`)
	reClient        = regexp.MustCompile(`(?im)^\s*(?:bill(?:ed)?\s*to|client)\s*[:\-]\s*(.+?)\s*$`)
	reMatter        = regexp.MustCompile(`(?im)^\s*(?:matter|re)\s*[:\-]\s*(.+?)\s*$`)
	slashDateLayout = "1/2/2006"
)

// RegexFieldParser recognises common invoice labels in English text.
type RegexFieldParser struct{}

func NewRegexFieldParser() *RegexFieldParser {
	return &RegexFieldParser{}
}

func (p *RegexFieldParser) ParseFields(_ context.Context, text string) (map[string]string, error) {
	fields := make(map[string]string)

	if m := reInvoiceID.FindString(text); m != "" {
		fields[FieldInvoiceNumber] = m
	} else if m := reInvoiceLabel.FindStringSubmatch(text); m != nil {
		fields[FieldInvoiceNumber] = m[1]
	}
	if m := reIssueDate.FindStringSubmatch(text); m != nil {
		if d, ok := normalizeDate(m[1]); ok {
			fields[FieldIssueDate] = d
		}
	}
	if m := reDueDate.FindStringSubmatch(text); m != nil {
		if d, ok := normalizeDate(m[1]); ok {
			fields[FieldDueDate] = d
		}
	}
	// The last total on the page is the grand total.
	if all := reTotal.FindAllStringSubmatch(text, -1); len(all) > 0 {
		fields[FieldTotal] = strings.ReplaceAll(all[len(all)-1][1], ",", "")
	}
	if m := reClient.FindStringSubmatch(text); m != nil {
		fields[FieldClient] = m[1]
	}
	if m := reMatter.FindStringSubmatch(text); m != nil {
		fields[FieldMatter] = m[1]
	}

	if len(fields) == 0 {
		return nil, ErrNoFields
	}
	return fields, nil
}

// normalizeDate accepts ISO and US month/day/year dates.
func normalizeDate(s string) (string, bool) {
	for _, layout := range []string{models.DateLayout, slashDateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(models.DateLayout), true
		}
	}
	return "", false
}
