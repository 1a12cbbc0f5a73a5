// Package reports renders tabular exports for the admin dashboards.
package reports

import (
	"fmt"
	"io"
	"time"

	"github.com/havenlab/apiserver/types"
	"github.com/xuri/excelize/v2"
)

const expenseSheet = "Expenses"

var expenseHeaders = []string{"ID", "Category", "Description", "Amount", "Spent At", "Recorded By"}

// WriteExpenseWorkbook renders the expense list as an XLSX workbook. Amounts
// are written in major units with two decimals.
func WriteExpenseWorkbook(w io.Writer, expenses []types.Expense, from, to time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(expenseSheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	for col, header := range expenseHeaders {
		if err := setCell(f, col+1, 1, header); err != nil {
			return err
		}
	}

	var totalCents int64
	for i, expense := range expenses {
		row := i + 2
		totalCents += expense.AmountCents
		values := []any{
			expense.ID,
			expense.Category,
			expense.Description,
			float64(expense.AmountCents) / 100,
			expense.SpentAt.Format("2006-01-02"),
			expense.RecordedBy,
		}
		for col, value := range values {
			if err := setCell(f, col+1, row, value); err != nil {
				return err
			}
		}
	}

	totalRow := len(expenses) + 3
	if err := setCell(f, 1, totalRow, fmt.Sprintf("Total %s to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))); err != nil {
		return err
	}
	if err := setCell(f, 4, totalRow, float64(totalCents)/100); err != nil {
		return err
	}

	if err := f.SetColWidth(expenseSheet, "B", "C", 30); err != nil {
		return err
	}

	return f.Write(w)
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(expenseSheet, cell, value)
}
