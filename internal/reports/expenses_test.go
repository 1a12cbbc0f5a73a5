package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/havenlab/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteExpenseWorkbook(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	expenses := []types.Expense{
		{ID: 1, Category: "reagents", Description: "CBC kit", AmountCents: 125050, SpentAt: from.AddDate(0, 0, 2), RecordedBy: "user_lab"},
		{ID: 2, Category: "utilities", Description: "Electricity", AmountCents: 80000, SpentAt: from.AddDate(0, 0, 10)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteExpenseWorkbook(&buf, expenses, from, to))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{"Expenses"}, f.GetSheetList())

	header, err := f.GetCellValue("Expenses", "B1")
	require.NoError(t, err)
	assert.Equal(t, "Category", header)

	category, err := f.GetCellValue("Expenses", "B2")
	require.NoError(t, err)
	assert.Equal(t, "reagents", category)

	amount, err := f.GetCellValue("Expenses", "D2")
	require.NoError(t, err)
	assert.Equal(t, "1250.5", amount)

	// Total row sits one blank row below the data.
	total, err := f.GetCellValue("Expenses", "D5")
	require.NoError(t, err)
	assert.Equal(t, "2050.5", total)
}

func TestWriteExpenseWorkbookEmpty(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, WriteExpenseWorkbook(&buf, nil, from, from.AddDate(0, 1, 0)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	total, err := f.GetCellValue("Expenses", "D3")
	require.NoError(t, err)
	assert.Equal(t, "0", total)
}
