package service

import (
	"context"
	"fmt"

	"docflow/internal/models"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const exportSheet = "Invoices"

// Export renders every invoice matching q, ignoring paging, as an XLSX
// workbook.
func (s *InvoiceService) Export(ctx context.Context, q InvoiceQuery) ([]byte, error) {
	filter, _, _, err := s.filter(q)
	if err != nil {
		return nil, err
	}
	invoices, _, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, fromRepo(err, "invoices")
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headers := []string{"Number", "Client", "Matter", "Issue Date", "Due Date", "Status", "Total", "Payment Date"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
	}

	for i, inv := range invoices {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(exportSheet, cell, v)
		}
		write(1, inv.Number)
		write(2, inv.ClientName)
		write(3, inv.Matter)
		write(4, inv.IssueDate.Format(models.DateLayout))
		write(5, inv.DueDate.Format(models.DateLayout))
		write(6, string(inv.EffectiveStatus(filter.Today)))
		write(7, inv.Total.Round(2).InexactFloat64())
		if inv.PaymentDate != nil {
			write(8, inv.PaymentDate.Format(models.DateLayout))
		}
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 16)
	_ = f.SetColWidth(exportSheet, "B", "C", 32)
	_ = f.SetColWidth(exportSheet, "D", "F", 14)
	_ = f.SetColWidth(exportSheet, "G", "H", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("Invoices exported", zap.Int("rows", len(invoices)))
	return buf.Bytes(), nil
}

const invoiceSheet = "Invoice"

// ExportOne renders a single invoice with its line items as an XLSX
// workbook. It returns the workbook and the invoice number.
func (s *InvoiceService) ExportOne(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), invoiceSheet); err != nil {
		return nil, "", fmt.Errorf("rename sheet: %w", err)
	}
	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(invoiceSheet, cell, v)
	}

	header := [][2]any{
		{"Invoice", inv.Number},
		{"Client", inv.ClientName},
		{"Matter", inv.Matter},
		{"Issue Date", inv.IssueDate.Format(models.DateLayout)},
		{"Due Date", inv.DueDate.Format(models.DateLayout)},
		{"Status", string(inv.EffectiveStatus(s.now()))},
	}
	if inv.PaymentDate != nil {
		header = append(header, [2]any{"Payment Date", inv.PaymentDate.Format(models.DateLayout)})
	}
	row := 1
	for _, kv := range header {
		write(1, row, kv[0])
		write(2, row, kv[1])
		row++
	}

	row++
	for i, h := range []string{"Description", "Quantity", "Rate", "Amount"} {
		write(i+1, row, h)
	}
	for _, li := range inv.LineItems {
		row++
		write(1, row, li.Description)
		write(2, row, li.Quantity.InexactFloat64())
		write(3, row, li.Rate.Round(2).InexactFloat64())
		write(4, row, li.Amount().Round(2).InexactFloat64())
	}
	row++
	write(3, row, "Total")
	write(4, row, inv.Total.Round(2).InexactFloat64())

	if inv.Notes != "" {
		row += 2
		write(1, row, "Notes")
		write(2, row, inv.Notes)
	}
	if inv.Terms != "" {
		row++
		write(1, row, "Terms")
		write(2, row, inv.Terms)
	}

	_ = f.SetColWidth(invoiceSheet, "A", "A", 32)
	_ = f.SetColWidth(invoiceSheet, "B", "D", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("Invoice exported", zap.String("invoice_id", id.String()), zap.Int("line_items", len(inv.LineItems)))
	return buf.Bytes(), inv.Number, nil
}
