package backup

import (
	"archive/zip"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"findash/internal/config"
	apphttp "findash/internal/http"
	"findash/internal/logger"
	"findash/internal/services/storage"
	"findash/internal/version"
)

var (
	cfg   *config.Config
	store *storage.Storage
)

// Initialize sets up the backup package with required dependencies
func Initialize(c *config.Config, s *storage.Storage) {
	cfg = c
	store = s
}

// Health is the body of GET /api/health
type Health struct {
	Status    string `json:"status"`
	Encrypted bool   `json:"encrypted"`
	Unlocked  bool   `json:"unlocked"`
	Source    string `json:"source"`
	Assistant bool   `json:"assistant"`
}

// HandleHealth reports liveness and whether the data directory is readable
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	h := Health{
		Status:    "ok",
		Encrypted: store.IsEncrypted(),
		Unlocked:  store.IsUnlocked(),
		Source:    cfg.SourceFile,
		Assistant: cfg.AssistantEnabled(),
	}
	if !h.Unlocked {
		h.Status = "locked"
	}
	apphttp.WriteJSON(w, http.StatusOK, h)
}

// HandleVersion reports build information
func HandleVersion(w http.ResponseWriter, r *http.Request) {
	apphttp.WriteJSON(w, http.StatusOK, version.Get())
}

// HandleBackup streams a zip of every spreadsheet, decrypted for portability
func HandleBackup(w http.ResponseWriter, r *http.Request) {
	sources, err := store.ListSources()
	if err != nil {
		apphttp.WriteError(w, r, err)
		return
	}

	// Read everything first so a locked store fails before headers are sent
	files := make(map[string][]byte, len(sources))
	for _, path := range sources {
		data, err := store.ReadFile(path)
		if err != nil {
			apphttp.WriteError(w, r, err)
			return
		}
		files[filepath.Base(path)] = data
	}

	filename := fmt.Sprintf("findash_backup_%s.zip", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	zw := zip.NewWriter(w)
	for _, path := range sources {
		name := filepath.Base(path)
		f, err := zw.Create(name)
		if err == nil {
			_, err = f.Write(files[name])
		}
		if err != nil {
			// Headers are already sent; all we can do is log
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Str("file", name).Msg("backup aborted")
			return
		}
	}
	if err := zw.Close(); err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("finish backup archive")
	}
}
