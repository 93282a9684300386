package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestRegexFieldParser(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]string
	}{
		{
			name: "full invoice",
			text: sampleInvoiceText,
			want: map[string]string{
				FieldInvoiceNumber: "INV-20240117",
				FieldIssueDate:     "2024-01-17",
				FieldDueDate:       "2024-02-16",
				FieldTotal:         "1200.50",
				FieldClient:        "Johnson & Partners LLP",
				FieldMatter:        "Estate of Smith",
			},
		},
		{
			name: "labelled number and amount due",
			text: "Invoice No: 2024/117\nAmount Due: USD 85.00",
			want: map[string]string{
				FieldInvoiceNumber: "2024/117",
				FieldTotal:         "85.00",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewRegexFieldParser().ParseFields(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("ParseFields() error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Errorf("fields = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}

	if _, err := NewRegexFieldParser().ParseFields(context.Background(), "hello world"); !errors.Is(err, ErrNoFields) {
		t.Errorf("ParseFields(no fields) error = %v, want ErrNoFields", err)
	}
}

func TestLLMFieldParser(t *testing.T) {
	const text = "Invoice INV-1 for Johnson & Partners LLP"

	tests := []struct {
		name     string
		reply    string
		genErr   error
		want     map[string]string
		fallback bool
	}{
		{
			name:  "fenced json",
			reply: "```json\n{\"invoiceNumber\":\"INV-7\",\"total\":1200.5,\"client\":\" Johnson \"}\n```",
			want:  map[string]string{FieldInvoiceNumber: "INV-7", FieldTotal: "1200.5", FieldClient: "Johnson"},
		},
		{
			name:  "precise amount",
			reply: `{"invoiceNumber":"INV-8","total":12345678901234567.89}`,
			want:  map[string]string{FieldInvoiceNumber: "INV-8", FieldTotal: "12345678901234567.89"},
		},
		{name: "schema violation", reply: `{"invoiceNumber":"INV-7","issueDate":"17.01.2024"}`, fallback: true},
		{name: "unknown key", reply: `{"iban":"DE00"}`, fallback: true},
		{name: "not json", reply: "I could not read it", fallback: true},
		{name: "empty object", reply: `{}`, fallback: true},
		{name: "generate error", genErr: errors.New("quota exceeded"), fallback: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fallbackUsed := false
			fallback := parserFunc(func(context.Context, string) (map[string]string, error) {
				fallbackUsed = true
				return map[string]string{FieldInvoiceNumber: "FALLBACK"}, nil
			})
			generate := func(context.Context, string) (string, error) { return tt.reply, tt.genErr }

			p, err := newLLMFieldParser(generate, fallback, zap.NewNop())
			if err != nil {
				t.Fatalf("newLLMFieldParser() error: %v", err)
			}
			got, err := p.ParseFields(context.Background(), text)
			if err != nil {
				t.Fatalf("ParseFields() error: %v", err)
			}
			if fallbackUsed != tt.fallback {
				t.Fatalf("fallback used = %v, want %v", fallbackUsed, tt.fallback)
			}
			if tt.fallback {
				return
			}
			if len(got) != len(tt.want) {
				t.Errorf("fields = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestLLMFieldParserWithoutFallback(t *testing.T) {
	p, err := newLLMFieldParser(func(context.Context, string) (string, error) {
		return "", errors.New("unavailable")
	}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("newLLMFieldParser() error: %v", err)
	}
	if _, err := p.ParseFields(context.Background(), "Invoice INV-1 total 10.00"); err == nil {
		t.Error("ParseFields() error = nil, want generate error")
	}
}

func TestSanitizeUTF8(t *testing.T) {
	if got := sanitizeUTF8("Total\xff: 10"); got != "Total: 10" {
		t.Errorf("sanitizeUTF8() = %q", got)
	}
	long := &Error{Kind: KindExtraction, Message: "text extraction failed", Err: errors.New(string(make([]byte, 600)))}
	if n := len(long.reason()); n != maxReasonLength {
		t.Errorf("reason length = %d, want %d", n, maxReasonLength)
	}
}
