package dataloader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/singleflight"

	"findash/internal/models"
	"findash/internal/services/classifier"
	"findash/internal/services/storage"
)

// ErrUnsupportedFormat is returned for files that are neither xlsx nor csv
var ErrUnsupportedFormat = errors.New("unsupported source format")

// DataLoader reads the transactions spreadsheet and normalizes it
type DataLoader struct {
	SourceFile string
	store      *storage.Storage
	cache      *Cache
	group      singleflight.Group
	log        zerolog.Logger
}

// LoadResult is one normalized load of the source
type LoadResult struct {
	Source       string                 `json:"source"`
	ContentHash  string                 `json:"content_hash"`
	Columns      Columns                `json:"columns"`
	Transactions *models.TransactionSet `json:"-"`
	LoadedAt     time.Time              `json:"loaded_at"`

	// Row accounting: SourceRows = loaded + DroppedRows + BlankRows
	SourceRows       int `json:"source_rows"`
	DroppedRows      int `json:"dropped_rows"`
	DefaultedAmounts int `json:"defaulted_amounts"`
	BlankRows        int `json:"blank_rows"`
}

// New creates a DataLoader for sourceFile (relative to the storage directory).
// cache may be nil to disable memoization.
func New(sourceFile string, store *storage.Storage, cache *Cache, log zerolog.Logger) *DataLoader {
	return &DataLoader{
		SourceFile: sourceFile,
		store:      store,
		cache:      cache,
		log:        log.With().Str("component", "dataloader").Logger(),
	}
}

// LoadData reads the source through storage and returns the normalized set.
// Unchanged content is served from the cache, and concurrent callers share
// one read.
func (dl *DataLoader) LoadData() (*LoadResult, error) {
	v, err, _ := dl.group.Do(dl.SourceFile, func() (interface{}, error) {
		return dl.load()
	})
	if err != nil {
		return nil, err
	}
	return v.(*LoadResult), nil
}

func (dl *DataLoader) load() (*LoadResult, error) {
	path := dl.store.Path(dl.SourceFile)
	name := filepath.Base(path)

	data, err := dl.store.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", name, err)
	}

	hash := ContentHash(data)
	if dl.cache != nil {
		if cached, ok := dl.cache.Get(hash); ok {
			dl.log.Debug().Str("source", name).Msg("source unchanged, using cached load")
			return cached, nil
		}
	}

	result, err := dl.Parse(name, data)
	if err != nil {
		return nil, err
	}
	result.ContentHash = hash

	if dl.cache != nil {
		dl.cache.Put(hash, result)
	}
	return result, nil
}

// Parse decodes a workbook or CSV and normalizes its rows
func (dl *DataLoader) Parse(name string, data []byte) (*LoadResult, error) {
	var (
		table [][]string
		err   error
	)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		table, err = readWorkbook(data)
	case ".csv":
		table, err = readCSV(data)
	default:
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	headerIdx := firstNonBlank(table)
	if headerIdx < 0 {
		return nil, fmt.Errorf("decode %s: no header row", name)
	}

	result, err := dl.build(table[headerIdx], table[headerIdx+1:], headerIdx+2)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	result.Source = name
	return result, nil
}

// LoadTable normalizes an in-memory table whose header is spreadsheet row 1
func (dl *DataLoader) LoadTable(header []string, rows [][]string) (*LoadResult, error) {
	return dl.build(header, rows, 2)
}

// build resolves columns and converts rows; firstRow is the 1-based
// spreadsheet row number of rows[0].
func (dl *DataLoader) build(header []string, rows [][]string, firstRow int) (*LoadResult, error) {
	cols, err := ResolveColumns(header, dl.log)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{
		Columns:    cols,
		SourceRows: len(rows),
		LoadedAt:   time.Now(),
	}

	transactions := make([]models.Transaction, 0, len(rows))
	for i, record := range rows {
		rowNum := firstRow + i

		if isBlank(record) {
			result.BlankRows++
			continue
		}

		dateStr := cell(record, cols.Date.Index)
		date, ok := parseDate(dateStr)
		if !ok {
			result.DroppedRows++
			dl.log.Debug().Int("row", rowNum).Str("value", dateStr).Msg("dropping row with unparseable date")
			continue
		}

		amountStr := cell(record, cols.Amount.Index)
		amount, ok := parseAmount(amountStr)
		if !ok {
			result.DefaultedAmounts++
			dl.log.Debug().Int("row", rowNum).Str("value", amountStr).Msg("amount defaulted to zero")
		}

		t := models.Transaction{
			Date:         date,
			Amount:       amount,
			MovementType: strings.ToUpper(cell(record, cols.MovementType.Index)),
			Row:          rowNum,
		}
		if cols.Category.Found() {
			t.Category = cell(record, cols.Category.Index)
			t.HasCategory = true
		}
		if cols.Concept.Found() {
			t.Concept = cell(record, cols.Concept.Index)
		}

		t.ComputeDerivedFields()
		t.Hash = t.ComputeHash()
		transactions = append(transactions, t)
	}

	transactions = classifier.ClassifyTransactions(transactions)
	result.Transactions = models.NewTransactionSet(transactions)

	dl.log.Info().
		Int("loaded", len(transactions)).
		Int("dropped", result.DroppedRows).
		Int("defaulted", result.DefaultedAmounts).
		Str("date_column", cols.Date.Header).
		Str("amount_column", cols.Amount.Header).
		Str("type_column", cols.MovementType.Header).
		Str("category_column", cols.Category.Header).
		Msg("source normalized")

	return result, nil
}

// GetSourceInfo describes the spreadsheets in the data directory
func (dl *DataLoader) GetSourceInfo() ([]models.SourceInfo, error) {
	paths, err := dl.store.ListSources()
	if err != nil {
		return nil, err
	}

	active := dl.store.Path(dl.SourceFile)
	var infos []models.SourceInfo
	for _, path := range paths {
		info, err := dl.store.Stat(path)
		if err != nil {
			continue
		}
		infos = append(infos, models.SourceInfo{
			Name:     filepath.Base(path),
			Size:     info.Size(),
			Modified: info.ModTime(),
			Format:   strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
			Active:   path == active,
		})
	}
	return infos, nil
}

// readWorkbook returns the first sheet's cells. Raw values keep date cells
// as Excel serials instead of locale-formatted text.
func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("no sheets found in workbook")
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// readCSV reads comma- or semicolon-separated text
func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true
	reader.Comma = sniffDelimiter(data)

	return reader.ReadAll()
}

// sniffDelimiter picks ';' when the first line has more semicolons than commas
func sniffDelimiter(data []byte) rune {
	firstLine := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		firstLine = data[:i]
	}
	if bytes.Count(firstLine, []byte(";")) > bytes.Count(firstLine, []byte(",")) {
		return ';'
	}
	return ','
}

// cell returns the trimmed value at idx, or "" when the row is short
func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func isBlank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func firstNonBlank(table [][]string) int {
	for i, row := range table {
		if !isBlank(row) {
			return i
		}
	}
	return -1
}
