package explorer

import (
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"findash/internal/config"
	apphttp "findash/internal/http"
	"findash/internal/logger"
	"findash/internal/models"
	"findash/internal/services/dataloader"
	"findash/internal/services/storage"
)

// maxUploadSize bounds spreadsheet uploads
const maxUploadSize = 10 << 20

var (
	loader *dataloader.DataLoader
	cache  *dataloader.Cache
	cfg    *config.Config
	store  *storage.Storage
)

// Initialize sets up the explorer package with required dependencies
func Initialize(l *dataloader.DataLoader, ch *dataloader.Cache, c *config.Config, s *storage.Storage) {
	loader = l
	cache = ch
	cfg = c
	store = s
}

// RegisterRoutes registers all explorer routes
func RegisterRoutes(r chi.Router) {
	r.Get("/explorer/transactions", handleTransactions)
	r.Get("/explorer/transaction/{hash}", handleTransactionDetail)
	r.Get("/explorer/files", handleFileList)
	r.Post("/explorer/upload", handleFileUpload)
	r.Delete("/explorer/files/{filename}", handleFileDelete)
}

// Page is one page of explorer results
type Page struct {
	Transactions  []models.Transaction `json:"transactions"`
	Search        string               `json:"search,omitempty"`
	Kind          string               `json:"kind,omitempty"`
	Sort          string               `json:"sort"`
	Order         string               `json:"order"`
	Page          int                  `json:"page"`
	PerPage       int                  `json:"per_page"`
	TotalPages    int                  `json:"total_pages"`
	TotalCount    int                  `json:"total_count"`
	TotalIncome   decimal.Decimal      `json:"total_income"`
	TotalExpenses decimal.Decimal      `json:"total_expenses"`
	NetAmount     decimal.Decimal      `json:"net_amount"`
	PageRange     []int                `json:"page_range"`
}

func handleTransactions(w http.ResponseWriter, r *http.Request) {
	result, err := loader.LoadData()
	if err != nil {
		apphttp.WriteError(w, r, err)
		return
	}

	q := r.URL.Query()
	search := q.Get("search")
	kind := q.Get("kind")
	sortField := q.Get("sort")
	order := q.Get("order")

	// Defaults
	if sortField == "" {
		sortField = "date"
	}
	if order == "" {
		order = "desc"
	}
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("perPage"))
	if perPage < 1 {
		perPage = 25
	}

	prefs, err := cfg.LoadPreferences()
	if err != nil {
		prefs = models.DefaultPreferences()
	}
	filtered := apphttp.ParseFilter(r, prefs).Apply(result.Transactions)
	if search != "" {
		filtered = filtered.FilterBySearch(search)
	}
	switch models.Kind(kind) {
	case models.Income, models.Expense, models.Unclassified:
		filtered = filtered.FilterByKind(models.Kind(kind))
	case "":
	default:
		apphttp.ErrorResponse(w, r, "unknown kind "+strconv.Quote(kind), http.StatusBadRequest)
		return
	}

	// Totals before pagination
	totalIncome := filtered.FilterByKind(models.Income).SumAmount()
	totalExpenses := filtered.FilterByKind(models.Expense).AbsSum()

	filtered = sortTransactions(filtered, sortField, order)

	totalPages := filtered.TotalPages(perPage)
	if page > totalPages && totalPages > 0 {
		page = totalPages
	}
	paginated := filtered.Paginate(page, perPage)

	apphttp.WriteJSON(w, http.StatusOK, Page{
		Transactions:  paginated.Transactions,
		Search:        search,
		Kind:          kind,
		Sort:          sortField,
		Order:         order,
		Page:          page,
		PerPage:       perPage,
		TotalPages:    totalPages,
		TotalCount:    filtered.Len(),
		TotalIncome:   totalIncome,
		TotalExpenses: totalExpenses,
		NetAmount:     totalIncome.Sub(totalExpenses),
		PageRange:     calculatePageRange(page, totalPages),
	})
}

func handleTransactionDetail(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	result, err := loader.LoadData()
	if err != nil {
		apphttp.WriteError(w, r, err)
		return
	}

	t, ok := result.Transactions.FindByHash(hash)
	if !ok {
		apphttp.ErrorResponse(w, r, "Transaction not found", http.StatusNotFound)
		return
	}
	apphttp.WriteJSON(w, http.StatusOK, t)
}

func handleFileList(w http.ResponseWriter, r *http.Request) {
	files, err := loader.GetSourceInfo()
	if err != nil {
		apphttp.WriteError(w, r, err)
		return
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"files": files})
}

func handleFileUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		apphttp.ErrorResponse(w, r, "File too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apphttp.ErrorResponse(w, r, "Error reading file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".xlsx" && ext != ".csv" {
		apphttp.ErrorResponse(w, r, "Only .xlsx and .csv files are allowed", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		apphttp.ErrorResponse(w, r, "Error reading file", http.StatusInternalServerError)
		return
	}

	// Reject spreadsheets the dashboard could not load
	if _, err := loader.Parse(name, data); err != nil {
		apphttp.WriteError(w, r, err)
		return
	}

	// Write via storage (handles encryption if enabled)
	if err := store.WriteFile(filepath.Join(cfg.DataDirectory, name), data, 0644); err != nil {
		apphttp.WriteError(w, r, err)
		return
	}
	if cache != nil {
		cache.Invalidate()
	}

	log := logger.FromContext(r.Context())
	log.Info().Str("file", name).Int("bytes", len(data)).Msg("uploaded source")

	handleFileList(w, r)
}

func handleFileDelete(w http.ResponseWriter, r *http.Request) {
	filename, err := url.PathUnescape(chi.URLParam(r, "filename"))
	if err != nil {
		apphttp.ErrorResponse(w, r, "Invalid filename encoding", http.StatusBadRequest)
		return
	}

	// Validate filename (prevent path traversal)
	if strings.Contains(filename, "/") || strings.Contains(filename, "\\") || strings.Contains(filename, "..") {
		apphttp.ErrorResponse(w, r, "Invalid filename", http.StatusBadRequest)
		return
	}

	filePath := filepath.Join(cfg.DataDirectory, filename)
	if filePath == store.Path(cfg.SourceFile) {
		apphttp.ErrorResponse(w, r, "Cannot delete the active source", http.StatusConflict)
		return
	}
	if _, err := store.Stat(filePath); os.IsNotExist(err) {
		apphttp.ErrorResponse(w, r, "File not found", http.StatusNotFound)
		return
	}
	if err := store.Remove(filePath); err != nil {
		apphttp.WriteError(w, r, err)
		return
	}

	log := logger.FromContext(r.Context())
	log.Info().Str("file", filename).Msg("deleted source")

	handleFileList(w, r)
}

// sortTransactions sorts a copy of ts by field; ties keep source row order
func sortTransactions(ts *models.TransactionSet, field, order string) *models.TransactionSet {
	sorted := ts.Copy()
	txns := sorted.Transactions

	var less func(a, b models.Transaction) int
	switch field {
	case "concept":
		less = func(a, b models.Transaction) int {
			return strings.Compare(strings.ToLower(a.Concept), strings.ToLower(b.Concept))
		}
	case "category":
		less = func(a, b models.Transaction) int {
			return strings.Compare(strings.ToLower(a.CategoryLabel()), strings.ToLower(b.CategoryLabel()))
		}
	case "amount":
		less = func(a, b models.Transaction) int {
			return a.Amount.Cmp(b.Amount)
		}
	case "kind":
		less = func(a, b models.Transaction) int {
			return strings.Compare(string(a.Kind), string(b.Kind))
		}
	default:
		less = func(a, b models.Transaction) int {
			return a.Date.Compare(b.Date)
		}
	}

	sort.SliceStable(txns, func(i, j int) bool {
		c := less(txns[i], txns[j])
		if c == 0 {
			return txns[i].Row < txns[j].Row
		}
		if order == "asc" {
			return c < 0
		}
		return c > 0
	})
	return sorted
}

// calculatePageRange returns up to five page numbers around currentPage
func calculatePageRange(currentPage, totalPages int) []int {
	if totalPages <= 7 {
		result := make([]int, totalPages)
		for i := range result {
			result[i] = i + 1
		}
		return result
	}

	start := currentPage - 2
	end := currentPage + 2
	if start < 1 {
		start = 1
		end = 5
	}
	if end > totalPages {
		end = totalPages
		start = totalPages - 4
	}

	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}
