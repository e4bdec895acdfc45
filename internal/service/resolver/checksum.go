package resolver

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/phraseling-formula/internal/domain/formula"
)

// VerifyArchive hashes the archive at path and compares it with the manifest digest.
// A mismatch yields a *formula.ChecksumError wrapping formula.ErrChecksumMismatch.
func VerifyArchive(m *formula.Manifest, path string) error {
	if m.Checksum == "" {
		return formula.ErrChecksumMissing
	}

	got, err := ComputeFileHash(path)
	if err != nil {
		return err
	}

	if !strings.EqualFold(got, m.Checksum) {
		return &formula.ChecksumError{
			Path:     path,
			Expected: strings.ToLower(m.Checksum),
			Got:      got,
		}
	}

	return nil
}

// ComputeFileHash returns the lowercase hex SHA-256 digest of the file at path.
func ComputeFileHash(path string) (_ string, err error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err = io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// isValidHexHash checks if s is a 64-character hex-encoded SHA-256 digest.
func isValidHexHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}

	_, err := hex.DecodeString(s)

	return err == nil
}
