package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"filippo.io/age"
)

// EnableEncryption seals every spreadsheet in the data directory
func (s *Storage) EnableEncryption(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encrypted {
		return errors.New("encryption is already enabled")
	}
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	recipient, err := age.NewScryptRecipient(password)
	if err != nil {
		return fmt.Errorf("create recipient: %w", err)
	}
	identity, err := age.NewScryptIdentity(password)
	if err != nil {
		return fmt.Errorf("create identity: %w", err)
	}

	verifyPath := filepath.Join(s.baseDir, verifyFile)
	sealedMagic, err := seal([]byte(verifyMagic), recipient)
	if err != nil {
		return fmt.Errorf("encrypt verification file: %w", err)
	}
	if err := os.WriteFile(verifyPath, sealedMagic, 0644); err != nil {
		return fmt.Errorf("write verification file: %w", err)
	}

	sources, err := s.sourcesUnlocked()
	if err != nil {
		os.Remove(verifyPath)
		return fmt.Errorf("scan data directory: %w", err)
	}

	var sealedNow []string
	for _, path := range sources {
		changed := false
		err := rewriteInPlace(path, func(data []byte) ([]byte, error) {
			if isSealed(data) {
				return nil, nil
			}
			changed = true
			return seal(data, recipient)
		})
		if err != nil {
			// Best effort: reopen what this call sealed
			for _, done := range sealedNow {
				rewriteInPlace(done, func(data []byte) ([]byte, error) { return open(data, identity) })
			}
			os.Remove(verifyPath)
			return fmt.Errorf("encrypt %s: %w", filepath.Base(path), err)
		}
		if changed {
			sealedNow = append(sealedNow, path)
		}
	}

	if err := os.WriteFile(filepath.Join(s.baseDir, markerFile), []byte("encrypted"), 0644); err != nil {
		return fmt.Errorf("create marker file: %w", err)
	}

	s.encrypted = true
	s.identity = identity
	s.recipient = recipient
	s.log.Info().Int("files", len(sources)).Msg("encryption enabled")
	return nil
}

// DisableEncryption opens every sealed spreadsheet (requires current password)
func (s *Storage) DisableEncryption(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.encrypted {
		return errors.New("encryption is not enabled")
	}

	identity, err := s.verifyPassword(password)
	if err != nil {
		return err
	}

	sources, err := s.sourcesUnlocked()
	if err != nil {
		return fmt.Errorf("scan data directory: %w", err)
	}

	for _, path := range sources {
		err := rewriteInPlace(path, func(data []byte) ([]byte, error) {
			if !isSealed(data) {
				return nil, nil
			}
			return open(data, identity)
		})
		if err != nil {
			return fmt.Errorf("decrypt %s: %w", filepath.Base(path), err)
		}
	}

	os.Remove(filepath.Join(s.baseDir, markerFile))
	os.Remove(filepath.Join(s.baseDir, verifyFile))

	s.encrypted = false
	s.identity = nil
	s.recipient = nil
	s.log.Info().Int("files", len(sources)).Msg("encryption disabled")
	return nil
}

// sourcesUnlocked lists spreadsheets without taking s.mu
func (s *Storage) sourcesUnlocked() ([]string, error) {
	var sources []string
	err := filepath.Walk(s.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && isSource(path) {
			sources = append(sources, path)
		}
		return nil
	})
	return sources, err
}

// rewriteInPlace replaces a file with fn(contents). A nil result leaves it untouched.
func rewriteInPlace(path string, fn func([]byte) ([]byte, error)) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	out, err := fn(data)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return atomicWrite(path, out, 0644)
}
