package glsummary

import (
	"encoding/csv"
	"io"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// WriteTrialBalanceCSV serialises a trial balance to CSV. Amounts are
// grouped with thousands separators for spreadsheet consumers.
func WriteTrialBalanceCSV(w io.Writer, tb TrialBalance) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	printer := message.NewPrinter(language.Indonesian)
	format := func(d decimal.Decimal) string {
		f, _ := d.Float64()
		return printer.Sprintf("%.2f", f)
	}

	if err := writer.Write([]string{"Code", "Name", "Opening", "Debit", "Credit", "Closing"}); err != nil {
		return err
	}
	for _, grp := range tb.Groups {
		for _, row := range grp.Accounts {
			if err := writer.Write([]string{
				row.Code,
				row.Name,
				format(row.Opening),
				format(row.Debit),
				format(row.Credit),
				format(row.Closing),
			}); err != nil {
				return err
			}
		}
	}
	if err := writer.Write([]string{
		"", "TOTAL",
		format(tb.TotalOpening),
		format(tb.TotalDebit),
		format(tb.TotalCredit),
		format(tb.TotalClosing),
	}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}
