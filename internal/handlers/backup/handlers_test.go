package backup

import (
	"archive/zip"
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"findash/internal/config"
	"findash/internal/services/storage"
	"findash/internal/testutil"
)

func setup(t *testing.T) (*testutil.TestServer, *storage.Storage) {
	t.Helper()

	dir := t.TempDir()
	testutil.WriteFixture(t, dir, "movimientos.csv", testutil.SampleCSV)
	testutil.WriteFixture(t, dir, "notes.txt", "not a source")
	s, err := storage.New(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("storage: %v", err)
	}

	c := config.DefaultConfig()
	c.DataDirectory = dir
	c.SourceFile = "movimientos.csv"
	Initialize(c, s)

	r := chi.NewRouter()
	r.Get("/api/health", HandleHealth)
	r.Get("/api/version", HandleVersion)
	r.Get("/api/backup", HandleBackup)
	return testutil.NewTestServer(t, r), s
}

func TestHealth(t *testing.T) {
	ts, s := setup(t)

	var h Health
	testutil.AssertResponse(t, ts.GET("/api/health")).StatusOK().JSON(&h)
	if h.Status != "ok" || h.Encrypted || !h.Unlocked || h.Source != "movimientos.csv" {
		t.Errorf("health = %+v", h)
	}

	if err := s.EnableEncryption("backup-password"); err != nil {
		t.Fatalf("enable encryption: %v", err)
	}
	s.Lock()

	testutil.AssertResponse(t, ts.GET("/api/health")).StatusOK().JSON(&h)
	if h.Status != "locked" || !h.Encrypted || h.Unlocked {
		t.Errorf("locked health = %+v", h)
	}
}

func TestVersion(t *testing.T) {
	ts, _ := setup(t)
	testutil.AssertResponse(t, ts.GET("/api/version")).
		StatusOK().
		ContentTypeJSON().
		Contains(`"version":"dev"`)
}

func TestBackupDecryptsSources(t *testing.T) {
	ts, s := setup(t)
	if err := s.EnableEncryption("backup-password"); err != nil {
		t.Fatalf("enable encryption: %v", err)
	}

	resp := ts.GET("/api/backup")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := []byte(testutil.ReadBody(t, resp))

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "movimientos.csv" {
		t.Fatalf("archive entries = %v", zr.File)
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != testutil.SampleCSV {
		t.Error("backup entry should hold the decrypted spreadsheet")
	}
}

func TestBackupLocked(t *testing.T) {
	ts, s := setup(t)
	if err := s.EnableEncryption("backup-password"); err != nil {
		t.Fatalf("enable encryption: %v", err)
	}
	s.Lock()

	testutil.AssertResponse(t, ts.GET("/api/backup")).
		Status(http.StatusLocked)
}
