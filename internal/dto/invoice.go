package dto

import (
	"bytes"
	"fmt"
	"time"

	"docflow/internal/models"

	"github.com/shopspring/decimal"
)

// Money is a decimal that travels as a JSON number with two decimals.
// Quoted strings are accepted on input.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.StringFixed(2)), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || string(data) == "null" {
		m.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("invalid amount %q", data)
	}
	m.Decimal = d
	return nil
}

type LineItemRequest struct {
	Description string `json:"description"`
	Quantity    Money  `json:"quantity"`
	Rate        Money  `json:"rate"`
}

type InvoiceRequest struct {
	Number    string            `json:"number,omitempty"`
	ClientID  *string           `json:"clientId"`
	Matter    string            `json:"matter"`
	IssueDate string            `json:"issueDate"`
	DueDate   string            `json:"dueDate"`
	LineItems []LineItemRequest `json:"lineItems"`
	Notes     string            `json:"notes,omitempty"`
	Terms     string            `json:"terms,omitempty"`
}

type PaymentRequest struct {
	PaymentDate string `json:"paymentDate"`
}

type LineItemResponse struct {
	Description string `json:"description"`
	Quantity    Money  `json:"quantity"`
	Rate        Money  `json:"rate"`
	Amount      Money  `json:"amount"`
}

type InvoiceResponse struct {
	ID               string             `json:"id"`
	Number           string             `json:"number"`
	ClientID         *string            `json:"clientId,omitempty"`
	ClientName       string             `json:"clientName"`
	Matter           string             `json:"matter"`
	IssueDate        string             `json:"issueDate"`
	DueDate          string             `json:"dueDate"`
	LineItems        []LineItemResponse `json:"lineItems"`
	Subtotal         Money              `json:"subtotal"`
	Total            Money              `json:"total"`
	Status           string             `json:"status"`
	PaymentDate      *string            `json:"paymentDate,omitempty"`
	SentAt           *string            `json:"sentAt,omitempty"`
	Notes            string             `json:"notes,omitempty"`
	Terms            string             `json:"terms,omitempty"`
	SourceDocumentID *string            `json:"sourceDocumentId,omitempty"`
	CreatedAt        string             `json:"createdAt"`
	UpdatedAt        string             `json:"updatedAt"`
}

// NewInvoiceResponse reports the status effective at now.
func NewInvoiceResponse(inv *models.Invoice, now time.Time) InvoiceResponse {
	items := make([]LineItemResponse, 0, len(inv.LineItems))
	for _, li := range inv.LineItems {
		items = append(items, LineItemResponse{
			Description: li.Description,
			Quantity:    NewMoney(li.Quantity),
			Rate:        NewMoney(li.Rate),
			Amount:      NewMoney(li.Amount()),
		})
	}
	var paid *string
	if inv.PaymentDate != nil {
		s := inv.PaymentDate.Format(models.DateLayout)
		paid = &s
	}
	return InvoiceResponse{
		ID:               inv.ID.String(),
		Number:           inv.Number,
		ClientID:         idString(inv.ClientID),
		ClientName:       inv.ClientName,
		Matter:           inv.Matter,
		IssueDate:        inv.IssueDate.Format(models.DateLayout),
		DueDate:          inv.DueDate.Format(models.DateLayout),
		LineItems:        items,
		Subtotal:         NewMoney(inv.Subtotal),
		Total:            NewMoney(inv.Total),
		Status:           string(inv.EffectiveStatus(now)),
		PaymentDate:      paid,
		SentAt:           timestamp(inv.SentAt),
		Notes:            inv.Notes,
		Terms:            inv.Terms,
		SourceDocumentID: idString(inv.SourceDocumentID),
		CreatedAt:        inv.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        inv.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func NewInvoiceResponses(invoices []*models.Invoice, now time.Time) []InvoiceResponse {
	out := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, NewInvoiceResponse(inv, now))
	}
	return out
}

type ClientResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func NewClientResponse(c *models.Client) ClientResponse {
	return ClientResponse{ID: c.ID.String(), Name: c.Name, Email: c.Email}
}

type StatusTotalResponse struct {
	Count  int   `json:"count"`
	Amount Money `json:"amount"`
}

type SummaryResponse struct {
	Invoices    map[string]StatusTotalResponse `json:"invoices"`
	Outstanding Money                          `json:"outstanding"`
	Documents   map[string]int                 `json:"documents"`
}
