package dataloader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"findash/internal/models"
	"findash/internal/services/storage"
)

func newTestLoader(t *testing.T, sourceFile string, cache *Cache) (*DataLoader, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.New(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return New(sourceFile, store, cache, zerolog.Nop()), dir
}

func TestLoadTableScenario(t *testing.T) {
	loader, _ := newTestLoader(t, "unused.csv", nil)

	header := []string{"Fecha", "Importe", "Categoria", "Tipo"}
	rows := [][]string{
		{"01/03/2025", "1000", "", "Ingreso (I)"},
		{"05/03/2025", "-200", "Comida", "Gasto (G)"},
	}

	result, err := loader.LoadTable(header, rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	txns := result.Transactions.Transactions
	if len(txns) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txns))
	}

	first := txns[0]
	if !first.Date.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first date = %v", first.Date)
	}
	if first.Kind != models.Income || first.MovementType != "INGRESO (I)" {
		t.Errorf("first kind = %q movement = %q", first.Kind, first.MovementType)
	}
	if first.Month != "2025-03" || first.Row != 2 {
		t.Errorf("first month = %q row = %d", first.Month, first.Row)
	}

	second := txns[1]
	if second.Kind != models.Expense || second.Category != "Comida" || !second.HasCategory {
		t.Errorf("second = %+v", second)
	}
	if !second.Amount.Equal(decimal.NewFromInt(-200)) {
		t.Errorf("second amount = %s, want -200 (sign kept at ingestion)", second.Amount)
	}
}

func TestLoadTableRowPolicies(t *testing.T) {
	loader, _ := newTestLoader(t, "unused.csv", nil)

	header := []string{"Fecha", "Concepto", "Importe (€)", "Tipo Movimiento"}
	rows := [][]string{
		{"01/03/2025", "Nómina", "1000", "I"},
		{"not-a-date", "Ghost", "500", "I"},
		{"02/03/2025", "Typo", "abc", "G"},
		{"", "", "", ""},
		{"03/03/2025", "Short row"},
	}

	result, err := loader.LoadTable(header, rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Transactions.Len() != 3 {
		t.Fatalf("got %d transactions, want 3", result.Transactions.Len())
	}
	if result.DroppedRows != 1 {
		t.Errorf("DroppedRows = %d, want 1", result.DroppedRows)
	}
	if result.BlankRows != 1 {
		t.Errorf("BlankRows = %d, want 1", result.BlankRows)
	}
	// "abc" and the missing cell of the short row
	if result.DefaultedAmounts != 2 {
		t.Errorf("DefaultedAmounts = %d, want 2", result.DefaultedAmounts)
	}
	if result.SourceRows != result.Transactions.Len()+result.DroppedRows+result.BlankRows {
		t.Errorf("row accounting off: %+v", result)
	}

	for _, txn := range result.Transactions.Transactions {
		if txn.Concept == "Ghost" {
			t.Error("row with unparseable date must be excluded")
		}
		if txn.Date.IsZero() {
			t.Errorf("row %d has zero date", txn.Row)
		}
	}

	typo := result.Transactions.Transactions[1]
	if typo.Concept != "Typo" || !typo.Amount.IsZero() || typo.Kind != models.Expense {
		t.Errorf("defaulted row = %+v", typo)
	}

	short := result.Transactions.Transactions[2]
	if short.Kind != models.Unclassified || short.Row != 6 {
		t.Errorf("short row = %+v", short)
	}
}

func TestLoadTableOutOfRangeAmount(t *testing.T) {
	loader, _ := newTestLoader(t, "unused.csv", nil)

	header := []string{"Fecha", "Concepto", "Importe (€)", "Tipo Movimiento"}
	rows := [][]string{
		{"01/03/2025", "Overflow", "1e300000000", "Gasto (G)"},
		{"02/03/2025", "Café", "-2,50", "Gasto (G)"},
	}

	result, err := loader.LoadTable(header, rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Transactions.Len() != 2 {
		t.Fatalf("got %d transactions, want 2", result.Transactions.Len())
	}
	if result.DefaultedAmounts != 1 {
		t.Errorf("DefaultedAmounts = %d, want 1", result.DefaultedAmounts)
	}

	overflow := result.Transactions.Transactions[0]
	if overflow.Concept != "Overflow" || !overflow.Amount.IsZero() {
		t.Errorf("out of range amount = %+v, want zero", overflow)
	}
	if got := result.Transactions.AbsSum().StringFixed(2); got != "2.50" {
		t.Errorf("AbsSum = %s, want 2.50", got)
	}
}

func TestLoadTableWithoutCategoryColumn(t *testing.T) {
	loader, _ := newTestLoader(t, "unused.csv", nil)

	result, err := loader.LoadTable([]string{"Fecha", "Importe", "Tipo"}, [][]string{{"01/03/2025", "-5", "G"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Columns.Category.Found() {
		t.Error("category column should be unresolved")
	}
	if result.Transactions.HasCategories() {
		t.Error("transactions should not carry categories")
	}
}

func TestLoadTableSchemaMismatch(t *testing.T) {
	loader, _ := newTestLoader(t, "unused.csv", nil)

	_, err := loader.LoadTable([]string{"Fecha", "Categoria", "Tipo"}, [][]string{{"01/03/2025", "Comida", "G"}})
	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected *SchemaMismatchError, got %v", err)
	}
	if mismatch.Role != RoleAmount {
		t.Errorf("role = %q, want %q", mismatch.Role, RoleAmount)
	}
}

func TestLoadCSVFile(t *testing.T) {
	tests := []struct {
		name          string
		csvContent    string
		expectedCount int
		firstAmount   string
		errorContains string
	}{
		{
			name: "semicolon export with decimal comma",
			csvContent: "Fecha;Concepto;Categoría;Importe (€);Tipo Movimiento\n" +
				"01/03/2025;Nómina;Salario;1.500,00;Ingreso (I)\n" +
				"05/03/2025;Mercadona;Comida;-54,30;Gasto (G)\n",
			expectedCount: 2,
			firstAmount:   "1500",
		},
		{
			name: "comma export with BOM",
			csvContent: "\ufeffFecha,Importe,Tipo\n" +
				"01/03/2025,1000,I\n",
			expectedCount: 1,
			firstAmount:   "1000",
		},
		{
			name:          "missing amount column",
			csvContent:    "Fecha,Concepto,Tipo\n01/03/2025,Nómina,I\n",
			errorContains: "amount",
		},
		{
			name:          "empty file",
			csvContent:    "",
			errorContains: "no header row",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, dir := newTestLoader(t, "movimientos.csv", nil)
			if err := os.WriteFile(filepath.Join(dir, "movimientos.csv"), []byte(tt.csvContent), 0644); err != nil {
				t.Fatalf("failed to write test file: %v", err)
			}

			result, err := loader.LoadData()

			if tt.errorContains != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errorContains)
				}
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errorContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if result.Transactions.Len() != tt.expectedCount {
				t.Errorf("got %d transactions, want %d", result.Transactions.Len(), tt.expectedCount)
			}
			first := result.Transactions.Transactions[0]
			if !first.Amount.Equal(decimal.RequireFromString(tt.firstAmount)) {
				t.Errorf("first amount = %s, want %s", first.Amount, tt.firstAmount)
			}
			if result.Source != "movimientos.csv" || result.ContentHash == "" {
				t.Errorf("source = %q hash = %q", result.Source, result.ContentHash)
			}
		})
	}
}

// writeWorkbook builds an xlsx the way the original spreadsheet is laid out,
// with a date-typed Fecha column.
func writeWorkbook(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	header := []interface{}{"Fecha", "Concepto", "Categoría", "Importe (€)", "Tipo Movimiento"}
	if err := f.SetSheetRow("Sheet1", "A1", &header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for i, row := range rows {
		r := row
		axis, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow("Sheet1", axis, &r); err != nil {
			t.Fatalf("write row %d: %v", i, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
}

func TestLoadWorkbook(t *testing.T) {
	loader, dir := newTestLoader(t, "Contabilidad_2025.xlsx", nil)

	writeWorkbook(t, filepath.Join(dir, "Contabilidad_2025.xlsx"), [][]interface{}{
		{time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "Nómina", "Salario", 1000, "Ingreso (I)"},
		{"05/03/2025", "Mercadona", "Comida", -200.5, "Gasto (G)"},
		{"sin fecha", "Nada", "Otros", 10, "Gasto (G)"},
	})

	result, err := loader.LoadData()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Transactions.Len() != 2 {
		t.Fatalf("got %d transactions, want 2", result.Transactions.Len())
	}
	if result.DroppedRows != 1 {
		t.Errorf("DroppedRows = %d, want 1", result.DroppedRows)
	}

	first := result.Transactions.Transactions[0]
	if !first.Date.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date-typed cell parsed as %v", first.Date)
	}
	if first.Category != "Salario" || first.Kind != models.Income {
		t.Errorf("first = %+v", first)
	}

	second := result.Transactions.Transactions[1]
	if !second.Amount.Equal(decimal.RequireFromString("-200.5")) {
		t.Errorf("second amount = %s", second.Amount)
	}
	if result.Columns.Amount.Header != "Importe (€)" {
		t.Errorf("amount header = %q", result.Columns.Amount.Header)
	}
}

func TestLoadDataIdempotent(t *testing.T) {
	loader, dir := newTestLoader(t, "movimientos.csv", nil)

	content := "Fecha,Concepto,Categoria,Importe,Tipo\n" +
		"01/03/2025,Nómina,Salario,1000,I\n" +
		"05/03/2025,Cena,Comida,-40,G\n" +
		"01/04/2025,Alquiler,Casa,-700,G\n"
	if err := os.WriteFile(filepath.Join(dir, "movimientos.csv"), []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	first, err := loader.LoadData()
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	second, err := loader.LoadData()
	if err != nil {
		t.Fatalf("second load: %v", err)
	}

	if first == second {
		t.Fatal("loader without cache should recompute")
	}
	if diff := cmp.Diff(first.Transactions.Transactions, second.Transactions.Transactions); diff != "" {
		t.Errorf("reload differs (-first +second):\n%s", diff)
	}
}

func TestLoadDataCache(t *testing.T) {
	cache := NewCache()
	loader, dir := newTestLoader(t, "movimientos.csv", cache)
	path := filepath.Join(dir, "movimientos.csv")

	if err := os.WriteFile(path, []byte("Fecha,Importe,Tipo\n01/03/2025,1000,I\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	first, err := loader.LoadData()
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	again, err := loader.LoadData()
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if first != again {
		t.Error("unchanged content should be served from cache")
	}
	if hits, misses := cache.Stats(); hits != 1 || misses != 1 {
		t.Errorf("hits = %d misses = %d, want 1 and 1", hits, misses)
	}

	// Editing the file replaces the slot
	if err := os.WriteFile(path, []byte("Fecha,Importe,Tipo\n01/03/2025,1000,I\n02/03/2025,-5,G\n"), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	changed, err := loader.LoadData()
	if err != nil {
		t.Fatalf("third load: %v", err)
	}
	if changed == first || changed.Transactions.Len() != 2 {
		t.Errorf("changed content should be reloaded, got %d transactions", changed.Transactions.Len())
	}
	if changed.ContentHash == first.ContentHash {
		t.Error("content hash should change with content")
	}

	cache.Invalidate()
	if _, ok := cache.Get(changed.ContentHash); ok {
		t.Error("invalidated cache should miss")
	}
}

func TestLoadDataEncryptedSource(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.New(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	path := filepath.Join(dir, "movimientos.csv")
	if err := os.WriteFile(path, []byte("Fecha,Importe,Tipo\n01/03/2025,1000,I\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.EnableEncryption("testpassword123"); err != nil {
		t.Fatalf("enable encryption: %v", err)
	}

	loader := New("movimientos.csv", store, nil, zerolog.Nop())

	result, err := loader.LoadData()
	if err != nil {
		t.Fatalf("unlocked load: %v", err)
	}
	if result.Transactions.Len() != 1 {
		t.Errorf("got %d transactions, want 1", result.Transactions.Len())
	}

	store.Lock()
	if _, err := loader.LoadData(); !errors.Is(err, storage.ErrLocked) {
		t.Errorf("locked load: got %v, want ErrLocked", err)
	}
}

func TestLoadDataMissingFile(t *testing.T) {
	loader, _ := newTestLoader(t, "Contabilidad_2025.xlsx", nil)

	_, err := loader.LoadData()
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestParseUnsupportedFormat(t *testing.T) {
	loader, _ := newTestLoader(t, "unused.csv", nil)

	_, err := loader.Parse("notes.txt", []byte("hello"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestParseCorruptWorkbook(t *testing.T) {
	loader, _ := newTestLoader(t, "unused.csv", nil)

	if _, err := loader.Parse("broken.xlsx", []byte("not a zip")); err == nil {
		t.Error("expected error for corrupt workbook")
	}
}

func TestGetSourceInfo(t *testing.T) {
	loader, dir := newTestLoader(t, "b.csv", nil)
	for _, name := range []string{"a.xlsx", "b.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	infos, err := loader.GetSourceInfo()
	if err != nil {
		t.Fatalf("GetSourceInfo: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d sources, want 2", len(infos))
	}
	if infos[0].Name != "a.xlsx" || infos[0].Active || infos[0].Format != "xlsx" {
		t.Errorf("infos[0] = %+v", infos[0])
	}
	if infos[1].Name != "b.csv" || !infos[1].Active {
		t.Errorf("infos[1] = %+v", infos[1])
	}
}

func TestLoadDataConcurrent(t *testing.T) {
	cache := NewCache()
	loader, dir := newTestLoader(t, "movimientos.csv", cache)
	if err := os.WriteFile(filepath.Join(dir, "movimientos.csv"), []byte("Fecha,Importe,Tipo\n01/03/2025,1000,I\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	const workers = 8
	results := make([]*LoadResult, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = loader.LoadData()
		}(i)
	}
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Errorf("worker %d got a different result", i)
		}
	}
}
