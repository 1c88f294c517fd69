// Package snapshot renders the filtered working set for consumers outside the
// dashboard, such as the chat assistant and the transactions export.
package snapshot

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"findash/internal/models"
)

// Row is one transaction in snapshot form
type Row struct {
	Date         string          `json:"date"`
	Concept      string          `json:"concept"`
	Category     string          `json:"category"`
	Amount       decimal.Decimal `json:"amount"`
	MovementType string          `json:"movement_type"`
	Kind         models.Kind     `json:"kind"`
}

// Rows returns ts ordered by date, ties kept in source row order
func Rows(ts *models.TransactionSet) []Row {
	sorted := ts.SortByDate()
	hasCategories := ts.HasCategories()

	rows := make([]Row, 0, sorted.Len())
	for _, t := range sorted.Transactions {
		row := Row{
			Date:         t.Date.Format("2006-01-02"),
			Concept:      t.Concept,
			Amount:       t.Amount,
			MovementType: t.MovementType,
			Kind:         t.Kind,
		}
		if hasCategories {
			row.Category = t.CategoryLabel()
		}
		rows = append(rows, row)
	}
	return rows
}

// Text renders ts as an aligned plain-text table. The output depends only on
// the transactions, so the same set always yields the same text.
func Text(ts *models.TransactionSet) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "Fecha\tConcepto\tCategoría\tImporte\tTipo")
	for _, r := range Rows(ts) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Date, dash(r.Concept), dash(r.Category), r.Amount.StringFixed(2), dash(r.MovementType))
	}
	w.Flush()

	fmt.Fprintf(&buf, "%d movimientos\n", ts.Len())
	return buf.String()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
