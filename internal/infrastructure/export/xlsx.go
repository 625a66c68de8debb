package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/bolibooks/bolibooks/internal/domain/entity"
)

const paymentsSheet = "Payments"

var paymentHeaders = []interface{}{"Date", "Invoice", "Method", "Reference", "Status", "Amount", "Notes"}

// XLSXExporter renders payment lists as Excel workbooks
type XLSXExporter struct {
	logger *zap.Logger
}

// NewXLSXExporter creates a new Excel exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *XLSXExporter) FileExtension() string { return "xlsx" }

// WritePayments writes one row per payment below a header row, followed by a total
func (e *XLSXExporter) WritePayments(w io.Writer, payments []*entity.Payment) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", paymentsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(paymentsSheet)
	if err != nil {
		return fmt.Errorf("failed to open stream writer: %w", err)
	}
	if err := sw.SetRow("A1", paymentHeaders); err != nil {
		return err
	}

	total := 0.0
	for i, p := range payments {
		invoice := fmt.Sprintf("#%d", p.InvoiceID)
		if p.Invoice != nil && p.Invoice.Number != "" {
			invoice = p.Invoice.Number
		}
		amount := p.Amount.InexactFloat64()
		total += amount

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			p.Date.Format("2006-01-02"),
			invoice,
			string(p.Method),
			p.Reference,
			string(p.Status),
			amount,
			p.Notes,
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}

	cell, _ := excelize.CoordinatesToCellName(5, len(payments)+2)
	if err := sw.SetRow(cell, []interface{}{"Total", total}); err != nil {
		return err
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	e.logger.Debug("Payments exported", zap.Int("rows", len(payments)))
	return nil
}
