// Package http holds response and request helpers shared by the handlers.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"findash/internal/logger"
	"findash/internal/models"
	"findash/internal/services/dataloader"
	"findash/internal/services/metrics"
	"findash/internal/services/storage"
)

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

// WriteJSON encodes v with the given status
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteText writes a plain-text body
func WriteText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// ErrorResponse sends a JSON error and logs it
func ErrorResponse(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	log := logger.FromContext(r.Context())
	logEvent(&log, statusCode).
		Str("path", r.URL.Path).
		Int("status", statusCode).
		Msg(message)
	WriteJSON(w, statusCode, ErrorBody{Error: message})
}

// WriteError maps load and storage failures onto status codes
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := Classify(err)
	log := logger.FromContext(r.Context())
	logEvent(&log, status).
		Err(err).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("request failed")
	WriteJSON(w, status, body)
}

// Classify returns the status and body for err
func Classify(err error) (int, ErrorBody) {
	switch {
	case errors.Is(err, dataloader.ErrSchemaMismatch):
		return http.StatusUnprocessableEntity, ErrorBody{
			Error: err.Error(),
			Hint:  "Asegúrate de que las columnas del Excel sean: " + dataloader.ExpectedHeaders,
		}
	case errors.Is(err, storage.ErrLocked):
		return http.StatusLocked, ErrorBody{
			Error: err.Error(),
			Hint:  "the data directory is encrypted; restart the server with FINDASH_UNLOCK_PASSWORD or unlock it interactively",
		}
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound, ErrorBody{
			Error: err.Error(),
			Hint:  "set FINDASH_SOURCE_FILE to a spreadsheet inside the data directory",
		}
	case errors.Is(err, dataloader.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, ErrorBody{Error: err.Error()}
	}
	return http.StatusInternalServerError, ErrorBody{Error: err.Error()}
}

func logEvent(log *zerolog.Logger, status int) *zerolog.Event {
	if status >= http.StatusInternalServerError {
		return log.Error()
	}
	return log.Warn()
}

// ParseFilter reads month and category selections from the query string.
// Both accept repeated parameters or a single comma-separated list. Repeated
// values are taken whole so labels may contain commas. "all" clears the axis.
// Axes absent from the query fall back to prefs.
func ParseFilter(r *http.Request, prefs *models.Preferences) metrics.Filter {
	q := r.URL.Query()

	var f metrics.Filter
	if prefs != nil {
		f.Months = prefs.DefaultMonths
		f.Categories = prefs.DefaultCategories
	}
	if _, ok := q["month"]; ok {
		f.Months = splitValues(q["month"])
	}
	if _, ok := q["category"]; ok {
		f.Categories = splitValues(q["category"])
	}
	return f
}

func splitValues(values []string) []string {
	if len(values) == 1 {
		values = strings.Split(values[0], ",")
	}

	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.EqualFold(v, "all") {
			return nil
		}
		out = append(out, v)
	}
	return out
}
