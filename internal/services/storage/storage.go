package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"filippo.io/age"
	"github.com/rs/zerolog"
)

const (
	// markerFile indicates encryption is enabled
	markerFile = ".encrypted"

	// verifyFile holds sealed verifyMagic for password checks
	verifyFile = ".encryption-verify"

	verifyMagic = `{"magic":"findash-encryption-verify","version":1}`
)

var (
	// ErrLocked is returned when reading sealed data before Unlock
	ErrLocked = errors.New("storage is locked")

	// ErrWrongPassword is returned when the password does not open the verify file
	ErrWrongPassword = errors.New("incorrect password")
)

// SourceExtensions are the spreadsheet formats the loader understands
var SourceExtensions = []string{".xlsx", ".csv"}

// Storage gives transparent access to a data directory whose spreadsheets
// may be sealed with an age passphrase.
type Storage struct {
	baseDir   string
	encrypted bool
	identity  *age.ScryptIdentity
	recipient *age.ScryptRecipient
	log       zerolog.Logger
	mu        sync.RWMutex
}

// New creates a Storage for baseDir, detecting whether it is encrypted
func New(baseDir string, log zerolog.Logger) (*Storage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	s := &Storage{
		baseDir: baseDir,
		log:     log.With().Str("component", "storage").Logger(),
	}

	if _, err := os.Stat(filepath.Join(baseDir, markerFile)); err == nil {
		s.encrypted = true
	}

	return s, nil
}

// BaseDir returns the data directory
func (s *Storage) BaseDir() string {
	return s.baseDir
}

// Path resolves name relative to the data directory unless it is absolute
func (s *Storage) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.baseDir, name)
}

// IsEncrypted reports whether the data directory is sealed
func (s *Storage) IsEncrypted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encrypted
}

// IsUnlocked reports whether sealed files can be read
func (s *Storage) IsUnlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.encrypted || s.identity != nil
}

// Unlock verifies the password and keeps the key in memory
func (s *Storage) Unlock(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.encrypted {
		return nil
	}

	identity, err := s.verifyPassword(password)
	if err != nil {
		return err
	}

	recipient, err := age.NewScryptRecipient(password)
	if err != nil {
		return fmt.Errorf("create recipient: %w", err)
	}

	s.identity = identity
	s.recipient = recipient
	s.log.Info().Msg("storage unlocked")
	return nil
}

// Lock clears the key from memory
func (s *Storage) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = nil
	s.recipient = nil
}

// verifyPassword opens the verify file; callers hold s.mu
func (s *Storage) verifyPassword(password string) (*age.ScryptIdentity, error) {
	identity, err := age.NewScryptIdentity(password)
	if err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}

	sealed, err := os.ReadFile(filepath.Join(s.baseDir, verifyFile))
	if err != nil {
		return nil, fmt.Errorf("read verification file: %w", err)
	}

	plain, err := open(sealed, identity)
	if err != nil || string(plain) != verifyMagic {
		return nil, ErrWrongPassword
	}
	return identity, nil
}

// ReadFile reads a file, decrypting it when sealed
func (s *Storage) ReadFile(path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if !isSealed(data) {
		return data, nil
	}
	if s.identity == nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrLocked)
	}
	return open(data, s.identity)
}

// WriteFile writes a file, sealing spreadsheets when encryption is on.
// Spreadsheets cannot be written while an encrypted directory is locked.
func (s *Storage) WriteFile(path string, data []byte, perm os.FileMode) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.encrypted && isSource(path) {
		if s.recipient == nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), ErrLocked)
		}
		sealed, err := seal(data, s.recipient)
		if err != nil {
			return fmt.Errorf("encrypt %s: %w", filepath.Base(path), err)
		}
		data = sealed
	}

	return atomicWrite(path, data, perm)
}

// ListSources returns the spreadsheets in the data directory, sorted by name
func (s *Storage) ListSources() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}

	var sources []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(s.baseDir, e.Name())
		if isSource(path) {
			sources = append(sources, path)
		}
	}
	sort.Strings(sources)
	return sources, nil
}

// Remove deletes a file
func (s *Storage) Remove(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return os.Remove(path)
}

// Stat returns file info
func (s *Storage) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// atomicWrite writes through a temp file and rename
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// isSource reports whether path has a spreadsheet extension
func isSource(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SourceExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
