package storage

import (
	"bytes"
	"io"

	"filippo.io/age"
)

// ageHeader is the prefix of age-encrypted files
const ageHeader = "age-encryption.org"

// seal encrypts data for the passphrase recipient
func seal(data []byte, recipient age.Recipient) ([]byte, error) {
	var buf bytes.Buffer

	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// open decrypts age data with the passphrase identity
func open(data []byte, identity age.Identity) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// isSealed checks if data starts with the age header
func isSealed(data []byte) bool {
	return len(data) > len(ageHeader) && string(data[:len(ageHeader)]) == ageHeader
}
