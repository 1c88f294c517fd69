package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the resolved classification of a movement type
type Kind string

const (
	Income       Kind = "Income"
	Expense      Kind = "Expense"
	Unclassified Kind = "Unclassified"
)

// Kinds lists every classification in display order
var Kinds = []Kind{Income, Expense, Unclassified}

// UncategorizedLabel groups expense rows whose category cell is empty
const UncategorizedLabel = "Sin categoría"

// MonthKeyFormat is the layout of the year-qualified month key
const MonthKeyFormat = "2006-01"

// Transaction represents a single normalized spreadsheet row
type Transaction struct {
	Date         time.Time       `json:"date"`
	Amount       decimal.Decimal `json:"amount"`
	Concept      string          `json:"concept,omitempty"`
	Category     string          `json:"category,omitempty"`
	HasCategory  bool            `json:"-"`
	MovementType string          `json:"movement_type"`
	Kind         Kind            `json:"kind"`
	Row          int             `json:"row"`
	Hash         string          `json:"hash"`

	// Derived fields
	Month      string `json:"month"`       // "2025-03"
	MonthLabel string `json:"month_label"` // "March 2025"
}

// ComputeHash generates a content hash for the row
func (t *Transaction) ComputeHash() string {
	dateStr := t.Date.Format("2006-01-02")
	concept := strings.ToLower(strings.TrimSpace(t.Concept))

	input := fmt.Sprintf("%d|%s|%s|%s|%s|%s", t.Row, dateStr, concept, t.Category, t.MovementType, t.Amount.StringFixed(2))
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:8])
}

// ComputeDerivedFields populates computed fields from Date
func (t *Transaction) ComputeDerivedFields() {
	t.Month = t.Date.Format(MonthKeyFormat)
	t.MonthLabel = t.Date.Format("January 2006")
}

// CategoryLabel returns the category used for grouping
func (t *Transaction) CategoryLabel() string {
	if strings.TrimSpace(t.Category) == "" {
		return UncategorizedLabel
	}
	return t.Category
}

// TransactionSet wraps a slice with filtering/aggregation methods
type TransactionSet struct {
	Transactions []Transaction
}

// NewTransactionSet creates a new TransactionSet from a slice
func NewTransactionSet(transactions []Transaction) *TransactionSet {
	return &TransactionSet{Transactions: transactions}
}

// Len returns the number of transactions
func (ts *TransactionSet) Len() int {
	return len(ts.Transactions)
}

// FilterByKind returns transactions of the specified kind
func (ts *TransactionSet) FilterByKind(k Kind) *TransactionSet {
	result := &TransactionSet{}
	for _, t := range ts.Transactions {
		if t.Kind == k {
			result.Transactions = append(result.Transactions, t)
		}
	}
	return result
}

// FilterByMonths keeps transactions whose month key is selected.
// An empty selection keeps everything.
func (ts *TransactionSet) FilterByMonths(months []string) *TransactionSet {
	if len(months) == 0 {
		return ts.Copy()
	}
	selected := toSet(months)
	result := &TransactionSet{}
	for _, t := range ts.Transactions {
		if selected[t.Month] {
			result.Transactions = append(result.Transactions, t)
		}
	}
	return result
}

// FilterByCategories keeps transactions whose category label is selected.
// An empty selection keeps everything.
func (ts *TransactionSet) FilterByCategories(categories []string) *TransactionSet {
	if len(categories) == 0 {
		return ts.Copy()
	}
	selected := toSet(categories)
	result := &TransactionSet{}
	for _, t := range ts.Transactions {
		if selected[t.CategoryLabel()] {
			result.Transactions = append(result.Transactions, t)
		}
	}
	return result
}

// FilterBySearch keeps transactions whose concept, category or movement type
// contains query, ignoring case
func (ts *TransactionSet) FilterBySearch(query string) *TransactionSet {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return ts.Copy()
	}
	result := &TransactionSet{}
	for _, t := range ts.Transactions {
		if strings.Contains(strings.ToLower(t.Concept), query) ||
			strings.Contains(strings.ToLower(t.Category), query) ||
			strings.Contains(strings.ToLower(t.MovementType), query) {
			result.Transactions = append(result.Transactions, t)
		}
	}
	return result
}

// FindByHash returns the transaction with the given hash
func (ts *TransactionSet) FindByHash(hash string) (Transaction, bool) {
	for _, t := range ts.Transactions {
		if t.Hash == hash {
			return t, true
		}
	}
	return Transaction{}, false
}

// TotalPages returns the number of pages of perPage transactions
func (ts *TransactionSet) TotalPages(perPage int) int {
	if perPage <= 0 {
		return 1
	}
	return (len(ts.Transactions) + perPage - 1) / perPage
}

// Paginate returns the 1-based page of perPage transactions
func (ts *TransactionSet) Paginate(page, perPage int) *TransactionSet {
	if perPage <= 0 || page < 1 {
		return &TransactionSet{}
	}
	start := (page - 1) * perPage
	if start >= len(ts.Transactions) {
		return &TransactionSet{}
	}
	end := start + perPage
	if end > len(ts.Transactions) {
		end = len(ts.Transactions)
	}
	return &TransactionSet{Transactions: ts.Transactions[start:end]}
}

// SumAmount returns the signed sum of all transaction amounts
func (ts *TransactionSet) SumAmount() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range ts.Transactions {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// AbsSum returns the absolute value of the signed sum
func (ts *TransactionSet) AbsSum() decimal.Decimal {
	return ts.SumAmount().Abs()
}

// GroupByMonth groups transactions by month key
func (ts *TransactionSet) GroupByMonth() map[string]*TransactionSet {
	result := make(map[string]*TransactionSet)
	for _, t := range ts.Transactions {
		if result[t.Month] == nil {
			result[t.Month] = &TransactionSet{}
		}
		result[t.Month].Transactions = append(result[t.Month].Transactions, t)
	}
	return result
}

// GroupByCategory groups transactions by category label
func (ts *TransactionSet) GroupByCategory() map[string]*TransactionSet {
	result := make(map[string]*TransactionSet)
	for _, t := range ts.Transactions {
		cat := t.CategoryLabel()
		if result[cat] == nil {
			result[cat] = &TransactionSet{}
		}
		result[cat].Transactions = append(result[cat].Transactions, t)
	}
	return result
}

// SortByDate sorts transactions by date, keeping source order for equal dates
func (ts *TransactionSet) SortByDate() *TransactionSet {
	sorted := make([]Transaction, len(ts.Transactions))
	copy(sorted, ts.Transactions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Row < sorted[j].Row
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return &TransactionSet{Transactions: sorted}
}

// MinDate returns the earliest transaction date
func (ts *TransactionSet) MinDate() time.Time {
	if len(ts.Transactions) == 0 {
		return time.Time{}
	}
	minDate := ts.Transactions[0].Date
	for _, t := range ts.Transactions[1:] {
		if t.Date.Before(minDate) {
			minDate = t.Date
		}
	}
	return minDate
}

// MaxDate returns the latest transaction date
func (ts *TransactionSet) MaxDate() time.Time {
	if len(ts.Transactions) == 0 {
		return time.Time{}
	}
	maxDate := ts.Transactions[0].Date
	for _, t := range ts.Transactions[1:] {
		if t.Date.After(maxDate) {
			maxDate = t.Date
		}
	}
	return maxDate
}

// Months returns the sorted list of unique month keys
func (ts *TransactionSet) Months() []string {
	seen := make(map[string]bool)
	var months []string
	for _, t := range ts.Transactions {
		if !seen[t.Month] {
			seen[t.Month] = true
			months = append(months, t.Month)
		}
	}
	sort.Strings(months)
	return months
}

// Categories returns a sorted list of unique category labels.
// Returns nil when the source had no category column.
func (ts *TransactionSet) Categories() []string {
	catMap := make(map[string]bool)
	for _, t := range ts.Transactions {
		if !t.HasCategory {
			continue
		}
		catMap[t.CategoryLabel()] = true
	}
	if len(catMap) == 0 {
		return nil
	}

	cats := make([]string, 0, len(catMap))
	for cat := range catMap {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	return cats
}

// HasCategories reports whether any transaction carries a category column value
func (ts *TransactionSet) HasCategories() bool {
	for _, t := range ts.Transactions {
		if t.HasCategory {
			return true
		}
	}
	return false
}

// Copy creates a shallow copy of the TransactionSet
func (ts *TransactionSet) Copy() *TransactionSet {
	copied := make([]Transaction, len(ts.Transactions))
	copy(copied, ts.Transactions)
	return &TransactionSet{Transactions: copied}
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
