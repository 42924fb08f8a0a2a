package export

import (
	"fmt"
	"io"

	"github.com/sheikh-saqib/store-credit-ledger/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	creditsSheet  = "Credits"
	paymentsSheet = "Payments"
	dateLayout    = "2006-01-02"
)

var (
	creditHeaders  = []string{"ID", "Date", "Credit", "Versement", "Reste", "Paid"}
	paymentHeaders = []string{"Credit ID", "Date", "Payment"}
)

// WriteStatement renders a client statement as an XLSX workbook with one
// sheet for the credits and one for the payment log.
func WriteStatement(w io.Writer, st models.Statement, currency string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", creditsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(paymentsSheet); err != nil {
		return err
	}

	if err := writeRow(f, creditsSheet, 1, []any{st.Client.Name, st.Client.Phone, "Total", balance(st.Client, currency)}); err != nil {
		return err
	}
	if err := writeRow(f, creditsSheet, 3, toAny(creditHeaders)); err != nil {
		return err
	}
	row := 4
	for _, c := range st.Credits {
		values := []any{
			c.ID,
			c.CreditDate.Format(dateLayout),
			c.Amount.InexactFloat64(),
			c.Versement.InexactFloat64(),
			c.Reste.InexactFloat64(),
			string(c.Status),
		}
		if err := writeRow(f, creditsSheet, row, values); err != nil {
			return err
		}
		row++
	}

	if err := writeRow(f, paymentsSheet, 1, toAny(paymentHeaders)); err != nil {
		return err
	}
	row = 2
	for _, c := range st.Credits {
		for _, p := range st.Payments[c.ID] {
			values := []any{c.ID, p.PaymentDate.Format(dateLayout), p.Amount.InexactFloat64()}
			if err := writeRow(f, paymentsSheet, row, values); err != nil {
				return err
			}
			row++
		}
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

// FileName is the attachment name used for a client's statement.
func FileName(st models.Statement) string {
	return fmt.Sprintf("statement_%s.xlsx", st.Client.Phone)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func balance(c models.Client, currency string) string {
	if currency == "" {
		return c.Credit.StringFixed(2)
	}
	return c.Credit.StringFixed(2) + " " + currency
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
