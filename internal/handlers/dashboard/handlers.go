package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"findash/internal/config"
	apphttp "findash/internal/http"
	"findash/internal/logger"
	"findash/internal/models"
	"findash/internal/services/assistant"
	"findash/internal/services/dataloader"
	"findash/internal/services/metrics"
	"findash/internal/services/snapshot"
)

// Series colors
const (
	incomeColor       = "#00CC96"
	expenseColor      = "#EF553B"
	unclassifiedColor = "#AB63FA"
)

var (
	loader     *dataloader.DataLoader
	metricsSvc *metrics.Service
	ai         *assistant.Assistant
	cfg        *config.Config
)

// Initialize sets up the dashboard package with required dependencies
func Initialize(l *dataloader.DataLoader, m *metrics.Service, a *assistant.Assistant, c *config.Config) {
	loader = l
	metricsSvc = m
	ai = a
	cfg = c
}

// RegisterRoutes registers all dashboard routes
func RegisterRoutes(r chi.Router) {
	r.Get("/dashboard/filters", handleFilters)
	r.Get("/dashboard/summary", handleSummary)
	r.Get("/dashboard/charts/data/{chartType}", handleChartData)
	r.Get("/dashboard/transactions", handleTransactions)
	r.Post("/dashboard/chat", handleChat)
	r.Get("/dashboard/preferences", handleGetPreferences)
	r.Put("/dashboard/preferences", handlePutPreferences)
}

// load returns the current working set, writing the error response on failure
func load(w http.ResponseWriter, r *http.Request) (*dataloader.LoadResult, bool) {
	result, err := loader.LoadData()
	if err != nil {
		apphttp.WriteError(w, r, err)
		return nil, false
	}
	return result, true
}

func preferences(r *http.Request) *models.Preferences {
	prefs, err := cfg.LoadPreferences()
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Warn().Err(err).Msg("ignoring unreadable preferences")
		return models.DefaultPreferences()
	}
	return prefs
}

// filtered applies the request's filter to the loaded set
func filtered(r *http.Request, result *dataloader.LoadResult) (*models.TransactionSet, metrics.Filter) {
	filter := apphttp.ParseFilter(r, preferences(r))
	return filter.Apply(result.Transactions), filter
}

// FiltersResponse lists the selectable months and categories
type FiltersResponse struct {
	Months        []MonthOption  `json:"months"`
	Categories    []string       `json:"categories"`
	HasCategories bool           `json:"has_categories"`
	Selected      metrics.Filter `json:"selected"`
}

// MonthOption is one month in the filter list
type MonthOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

func handleFilters(w http.ResponseWriter, r *http.Request) {
	result, ok := load(w, r)
	if !ok {
		return
	}

	ts := result.Transactions
	var months []MonthOption
	for _, m := range metricsSvc.ByMonth(ts) {
		months = append(months, MonthOption{Key: m.Month, Label: m.Label})
	}

	apphttp.WriteJSON(w, http.StatusOK, FiltersResponse{
		Months:        months,
		Categories:    ts.Categories(),
		HasCategories: ts.HasCategories(),
		Selected:      apphttp.ParseFilter(r, preferences(r)),
	})
}

// KPI is a formatted headline figure
type KPI struct {
	Label     string          `json:"label"`
	Value     decimal.Decimal `json:"value"`
	Formatted string          `json:"formatted"`
}

// SummaryResponse is the dashboard's headline view
type SummaryResponse struct {
	Filter        metrics.Filter           `json:"filter"`
	KPIs          []KPI                    `json:"kpis"`
	View          *models.AggregateView    `json:"view"`
	TopCategories []models.CategorySummary `json:"top_categories,omitempty"`
	Load          *dataloader.LoadResult   `json:"load"`
}

func handleSummary(w http.ResponseWriter, r *http.Request) {
	result, ok := load(w, r)
	if !ok {
		return
	}

	filter := apphttp.ParseFilter(r, preferences(r))
	view := metricsSvc.Aggregate(result.Transactions, filter)

	apphttp.WriteJSON(w, http.StatusOK, SummaryResponse{
		Filter: filter,
		KPIs: []KPI{
			{Label: "Ingresos", Value: view.TotalIncome, Formatted: metrics.FormatEuro(view.TotalIncome)},
			{Label: "Gastos", Value: view.TotalExpense, Formatted: metrics.FormatEuro(view.TotalExpense)},
			{Label: "Balance Neto", Value: view.Balance, Formatted: metrics.FormatEuro(view.Balance)},
		},
		View:          view,
		TopCategories: metricsSvc.TopCategories(view),
		Load:          result,
	})
}

func handleChartData(w http.ResponseWriter, r *http.Request) {
	chartType := chi.URLParam(r, "chartType")

	result, ok := load(w, r)
	if !ok {
		return
	}

	filter := apphttp.ParseFilter(r, preferences(r))
	view := metricsSvc.Aggregate(result.Transactions, filter)

	var chart models.ChartResponse
	switch chartType {
	case "category":
		chart = buildCategoryChartData(view, metricsSvc.TopCategories(view))
	case "monthly":
		chart = buildMonthlyChartData(view)
	default:
		apphttp.ErrorResponse(w, r, "Unknown chart type", http.StatusBadRequest)
		return
	}

	apphttp.WriteJSON(w, http.StatusOK, chart)
}

// buildCategoryChartData draws the expense breakdown as a donut
func buildCategoryChartData(view *models.AggregateView, ranked []models.CategorySummary) models.ChartResponse {
	resp := models.ChartResponse{
		Layout: models.ChartLayout{Title: "Distribución de Gastos", ShowLegend: true},
	}
	if view.ByCategory == nil {
		resp.Empty = true
		resp.Notice = "El archivo no tiene columna de categoría."
		return resp
	}
	if len(ranked) == 0 {
		resp.Empty = true
		resp.Notice = "No hay datos de gastos para mostrar."
		return resp
	}

	pie := models.ChartData{Type: "pie", Hole: 0.4}
	for _, c := range ranked {
		pie.Labels = append(pie.Labels, c.Category)
		pie.Values = append(pie.Values, c.Amount.InexactFloat64())
	}
	resp.Data = []models.ChartData{pie}
	return resp
}

// buildMonthlyChartData draws one bar series per kind, grouped by month
func buildMonthlyChartData(view *models.AggregateView) models.ChartResponse {
	resp := models.ChartResponse{
		Layout: models.ChartLayout{
			Title:      "Evolución Mensual",
			XAxisTitle: "Mes",
			YAxisTitle: "Importe (€)",
			BarMode:    "group",
			ShowLegend: true,
		},
	}
	if len(view.ByMonthAndKind) == 0 {
		resp.Empty = true
		resp.Notice = "No hay datos suficientes para la gráfica temporal."
		return resp
	}

	labels := make([]string, 0, len(view.ByMonth))
	for _, m := range view.ByMonth {
		labels = append(labels, m.Label)
	}

	colors := map[models.Kind]string{
		models.Income:       incomeColor,
		models.Expense:      expenseColor,
		models.Unclassified: unclassifiedColor,
	}
	for _, kind := range models.Kinds {
		values := make([]float64, len(view.ByMonth))
		present := false
		for i, m := range view.ByMonth {
			if amt, ok := view.ByMonthAndKind[models.MonthKind{Month: m.Month, Kind: kind}]; ok {
				values[i] = amt.InexactFloat64()
				present = true
			}
		}
		if !present {
			continue
		}
		resp.Data = append(resp.Data, models.ChartData{
			Type:  "bar",
			X:     labels,
			Y:     values,
			Name:  string(kind),
			Color: colors[kind],
		})
	}
	return resp
}

// TransactionsResponse is the structured snapshot of the working set
type TransactionsResponse struct {
	Filter metrics.Filter `json:"filter"`
	Count  int            `json:"count"`
	Rows   []snapshot.Row `json:"rows"`
}

func handleTransactions(w http.ResponseWriter, r *http.Request) {
	result, ok := load(w, r)
	if !ok {
		return
	}

	ts, filter := filtered(r, result)
	if r.URL.Query().Get("format") == "text" {
		apphttp.WriteText(w, http.StatusOK, snapshot.Text(ts))
		return
	}

	apphttp.WriteJSON(w, http.StatusOK, TransactionsResponse{
		Filter: filter,
		Count:  ts.Len(),
		Rows:   snapshot.Rows(ts),
	})
}

type chatRequest struct {
	Question string `json:"question"`
}

func handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apphttp.ErrorResponse(w, r, "invalid request body", http.StatusBadRequest)
		return
	}

	result, ok := load(w, r)
	if !ok {
		return
	}
	ts, _ := filtered(r, result)

	answer, err := ai.Ask(r.Context(), req.Question, ts)
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyQuestion) {
			apphttp.ErrorResponse(w, r, err.Error(), http.StatusBadRequest)
			return
		}
		apphttp.ErrorResponse(w, r, "assistant unavailable: "+err.Error(), http.StatusBadGateway)
		return
	}
	apphttp.WriteJSON(w, http.StatusOK, answer)
}

func handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := cfg.LoadPreferences()
	if err != nil {
		apphttp.WriteError(w, r, err)
		return
	}
	apphttp.WriteJSON(w, http.StatusOK, prefs)
}

func handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	prefs := models.DefaultPreferences()
	if err := json.NewDecoder(r.Body).Decode(prefs); err != nil {
		apphttp.ErrorResponse(w, r, "invalid request body", http.StatusBadRequest)
		return
	}
	sort.Strings(prefs.DefaultMonths)
	sort.Strings(prefs.DefaultCategories)

	if err := cfg.SavePreferences(prefs); err != nil {
		apphttp.WriteError(w, r, err)
		return
	}
	apphttp.WriteJSON(w, http.StatusOK, prefs)
}
