package metrics

import (
	"sort"

	"github.com/shopspring/decimal"

	"findash/internal/models"
)

// Filter selects the working set. An empty list leaves that axis unrestricted.
type Filter struct {
	Months     []string `json:"months,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Apply returns the transactions selected by f
func (f Filter) Apply(ts *models.TransactionSet) *models.TransactionSet {
	return ts.FilterByMonths(f.Months).FilterByCategories(f.Categories)
}

// Service provides metric calculation functionality
type Service struct{}

// New creates a new metrics service
func New() *Service {
	return &Service{}
}

// Aggregate filters ts and computes the dashboard view. It is a pure function
// of its inputs and safe to call on every filter change.
func (s *Service) Aggregate(ts *models.TransactionSet, filter Filter) *models.AggregateView {
	selected := filter.Apply(ts)

	income := selected.FilterByKind(models.Income)
	expenses := selected.FilterByKind(models.Expense)

	totalIncome := income.SumAmount()
	totalExpense := expenses.AbsSum()

	view := &models.AggregateView{
		TotalIncome:      totalIncome,
		TotalExpense:     totalExpense,
		Balance:          totalIncome.Sub(totalExpense),
		ByCategory:       categoryBreakdown(selected, ts.HasCategories()),
		ByMonthAndKind:   s.ByMonthAndKind(selected),
		ByMonth:          s.ByMonth(selected),
		KindCounts:       CountKinds(selected),
		TransactionCount: selected.Len(),
		StartDate:        selected.MinDate(),
		EndDate:          selected.MaxDate(),
		Months:           selected.Months(),
		Categories:       selected.Categories(),
	}
	return view
}

// ByCategory sums expense amounts per category label. Returns nil when the
// rows carry no category column.
func (s *Service) ByCategory(ts *models.TransactionSet) map[string]decimal.Decimal {
	return categoryBreakdown(ts, ts.HasCategories())
}

// categoryBreakdown is nil only when the source has no category column. An
// empty selection from a categorized source yields an empty map.
func categoryBreakdown(ts *models.TransactionSet, hasCategories bool) map[string]decimal.Decimal {
	if !hasCategories {
		return nil
	}

	result := make(map[string]decimal.Decimal)
	for cat, group := range ts.FilterByKind(models.Expense).GroupByCategory() {
		result[cat] = group.AbsSum()
	}
	return result
}

// ByMonthAndKind sums absolute amounts per month and kind
func (s *Service) ByMonthAndKind(ts *models.TransactionSet) map[models.MonthKind]decimal.Decimal {
	result := make(map[models.MonthKind]decimal.Decimal)
	for month, group := range ts.GroupByMonth() {
		for _, kind := range models.Kinds {
			byKind := group.FilterByKind(kind)
			if byKind.Len() == 0 {
				continue
			}
			result[models.MonthKind{Month: month, Kind: kind}] = byKind.AbsSum()
		}
	}
	return result
}

// ByMonth returns income, expense and balance per month in month order
func (s *Service) ByMonth(ts *models.TransactionSet) []models.MonthlySummary {
	groups := ts.GroupByMonth()

	months := make([]string, 0, len(groups))
	for m := range groups {
		months = append(months, m)
	}
	sort.Strings(months)

	summaries := make([]models.MonthlySummary, 0, len(months))
	for _, m := range months {
		group := groups[m]
		income := group.FilterByKind(models.Income).SumAmount()
		expense := group.FilterByKind(models.Expense).AbsSum()
		summaries = append(summaries, models.MonthlySummary{
			Month:   m,
			Label:   group.Transactions[0].MonthLabel,
			Income:  income,
			Expense: expense,
			Balance: income.Sub(expense),
		})
	}
	return summaries
}

// CountKinds counts transactions per kind, with every kind present
func CountKinds(ts *models.TransactionSet) map[models.Kind]int {
	counts := make(map[models.Kind]int, len(models.Kinds))
	for _, kind := range models.Kinds {
		counts[kind] = 0
	}
	for _, t := range ts.Transactions {
		counts[t.Kind]++
	}
	return counts
}

// TopCategories ranks the expense breakdown by amount, largest first
func (s *Service) TopCategories(view *models.AggregateView) []models.CategorySummary {
	if len(view.ByCategory) == 0 {
		return nil
	}

	total := decimal.Zero
	for _, amt := range view.ByCategory {
		total = total.Add(amt)
	}

	summaries := make([]models.CategorySummary, 0, len(view.ByCategory))
	for cat, amt := range view.ByCategory {
		var pct float64
		if !total.IsZero() {
			pct = amt.Div(total).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
		}
		summaries = append(summaries, models.CategorySummary{
			Category:   cat,
			Amount:     amt,
			Percentage: pct,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Amount.Equal(summaries[j].Amount) {
			return summaries[i].Category < summaries[j].Category
		}
		return summaries[i].Amount.GreaterThan(summaries[j].Amount)
	})
	return summaries
}
