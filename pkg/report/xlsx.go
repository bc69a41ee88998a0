// Package report renders transaction exports for admins.
package report

import (
	"fmt"
	"io"

	"approval-ledger/pkg/workflow"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	// ContentType is the MIME type of the workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	TransactionsSheet = "Transactions"
	SummarySheet      = "Summary"
)

var transactionHeaders = []string{
	"ID", "Created At", "Created By", "Description", "Payment Method",
	"Amount", "Status", "Transaction ID", "Accepted At", "Proof",
}

// WriteTransactions writes a workbook with one row per transaction and a
// per-status summary sheet.
func WriteTransactions(w io.Writer, txns []workflow.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TransactionsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, header := range transactionHeaders {
		if err := setCell(f, TransactionsSheet, i+1, 1, header); err != nil {
			return err
		}
	}

	type total struct {
		count  int
		amount decimal.Decimal
	}
	totals := map[workflow.TransactionStatus]*total{}
	order := []workflow.TransactionStatus{
		workflow.TransactionPending, workflow.TransactionCompleted, workflow.TransactionFailed,
	}
	for _, s := range order {
		totals[s] = &total{}
	}

	for i, t := range txns {
		row := i + 2
		values := []interface{}{
			t.ID, t.CreatedAt, t.CreatedBy, t.Description, t.PaymentMethod,
			t.Amount.InexactFloat64(), string(t.Status), t.TransactionID, t.AcceptedAt, t.ImagePath,
		}
		for col, v := range values {
			if err := setCell(f, TransactionsSheet, col+1, row, v); err != nil {
				return err
			}
		}

		tt, ok := totals[t.Status]
		if !ok {
			tt = &total{}
			totals[t.Status] = tt
			order = append(order, t.Status)
		}
		tt.count++
		tt.amount = tt.amount.Add(t.Amount)
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	for i, header := range []string{"Status", "Count", "Amount"} {
		if err := setCell(f, SummarySheet, i+1, 1, header); err != nil {
			return err
		}
	}
	for i, status := range order {
		row := i + 2
		values := []interface{}{string(status), totals[status].count, totals[status].amount.InexactFloat64()}
		for col, v := range values {
			if err := setCell(f, SummarySheet, col+1, row, v); err != nil {
				return err
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
	}
	return nil
}
