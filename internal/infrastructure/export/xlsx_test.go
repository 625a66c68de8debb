package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/bolibooks/bolibooks/internal/domain/entity"
)

func TestXLSXExporter_WritePayments(t *testing.T) {
	payments := []*entity.Payment{
		{
			InvoiceID: 1, Amount: decimal.RequireFromString("40.00"), Method: entity.PaymentMethodCash,
			Status: entity.PaymentStatusCompleted, Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			Invoice: &entity.PaymentInvoice{Number: "INV-000001"},
		},
		{
			InvoiceID: 2, Amount: decimal.RequireFromString("12.50"), Method: entity.PaymentMethodStripe,
			Status: entity.PaymentStatusCompleted, Date: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), Reference: "pi_1",
		},
	}

	e := NewXLSXExporter(zap.NewNop())
	var buf bytes.Buffer
	require.NoError(t, e.WritePayments(&buf, payments))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(paymentsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, []string{"2026-03-02", "INV-000001", "cash", "", "completed", "40"}, rows[1][:6])
	assert.Equal(t, "#2", rows[2][1])
	assert.Equal(t, "pi_1", rows[2][3])
	assert.Equal(t, "Total", rows[3][4])
	assert.Equal(t, "52.5", rows[3][5])
}

func TestXLSXExporter_Empty(t *testing.T) {
	e := NewXLSXExporter(zap.NewNop())
	var buf bytes.Buffer
	require.NoError(t, e.WritePayments(&buf, nil))
	assert.Equal(t, "xlsx", e.FileExtension())
	assert.NotZero(t, buf.Len())
}
