package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MonthKind keys the grouped monthly comparison
type MonthKind struct {
	Month string `json:"month"`
	Kind  Kind   `json:"kind"`
}

// MarshalText renders the key as "2025-03/Income" so it can key a JSON object
func (mk MonthKind) MarshalText() ([]byte, error) {
	return []byte(mk.Month + "/" + string(mk.Kind)), nil
}

// UnmarshalText parses the "2025-03/Income" form
func (mk *MonthKind) UnmarshalText(b []byte) error {
	month, kind, ok := strings.Cut(string(b), "/")
	if !ok {
		return fmt.Errorf("invalid month/kind key %q", string(b))
	}
	mk.Month = month
	mk.Kind = Kind(kind)
	return nil
}

// AggregateView contains the totals and groupings shown on the dashboard
type AggregateView struct {
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	Balance      decimal.Decimal `json:"balance"`

	// ByCategory is nil when the source has no category column
	ByCategory     map[string]decimal.Decimal    `json:"by_category"`
	ByMonthAndKind map[MonthKind]decimal.Decimal `json:"by_month_and_kind"`
	ByMonth        []MonthlySummary              `json:"by_month"`

	KindCounts       map[Kind]int `json:"kind_counts"`
	TransactionCount int          `json:"transaction_count"`
	StartDate        time.Time    `json:"start_date"`
	EndDate          time.Time    `json:"end_date"`
	Months           []string     `json:"months"`
	Categories       []string     `json:"categories,omitempty"`
}

// MonthlySummary represents a month's financial summary
type MonthlySummary struct {
	Month   string          `json:"month"`
	Label   string          `json:"label"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// CategorySummary represents spending in a category
type CategorySummary struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage float64         `json:"percentage"`
}

// ChartData represents data for a Plotly chart
type ChartData struct {
	Type   string      `json:"type"`             // bar, pie
	X      interface{} `json:"x,omitempty"`      // x-axis values
	Y      interface{} `json:"y,omitempty"`      // y-axis values
	Labels []string    `json:"labels,omitempty"` // for pie charts
	Values []float64   `json:"values,omitempty"` // for pie charts
	Name   string      `json:"name,omitempty"`   // series name
	Hole   float64     `json:"hole,omitempty"`
	Color  string      `json:"marker_color,omitempty"`
}

// ChartResponse wraps chart data with layout options
type ChartResponse struct {
	Data   []ChartData `json:"data"`
	Layout ChartLayout `json:"layout,omitempty"`
	Empty  bool        `json:"empty"`
	Notice string      `json:"notice,omitempty"`
}

// ChartLayout defines Plotly layout options
type ChartLayout struct {
	Title      string `json:"title,omitempty"`
	XAxisTitle string `json:"xaxis_title,omitempty"`
	YAxisTitle string `json:"yaxis_title,omitempty"`
	BarMode    string `json:"barmode,omitempty"` // group, stack
	ShowLegend bool   `json:"showlegend,omitempty"`
}
