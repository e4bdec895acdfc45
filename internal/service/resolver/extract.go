package resolver

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oshokin/phraseling-formula/internal/domain/formula"
)

// maxExtractedBytes bounds the total size of extracted files (2 GiB).
const maxExtractedBytes = 2 << 30

var (
	errEntryTooLarge = errors.New("archive contents exceed size limit")
	errEmptyArchive  = errors.New("archive has no entries")
)

// Extract unpacks the tar.gz archive at archivePath into dir and returns the
// archive root. Tag archives wrap everything in one top-level directory; when
// that is the case the returned root is that directory.
func Extract(archivePath, dir string) (_ string, err error) {
	f, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("creating gzip reader: %w", err)
	}

	defer func() {
		_ = gz.Close()
	}()

	var (
		tr        = tar.NewReader(gz)
		remaining = int64(maxExtractedBytes)
		entries   int
	)

	for {
		hdr, nextErr := tr.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}

		if nextErr != nil {
			return "", fmt.Errorf("reading tar entry: %w", nextErr)
		}

		if !formula.IsLocalPath(hdr.Name) {
			return "", fmt.Errorf("%s: %w", hdr.Name, formula.ErrUnsafePath)
		}

		target := filepath.Join(dir, filepath.FromSlash(hdr.Name))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err = os.MkdirAll(target, 0o755); err != nil {
				return "", err
			}
		case tar.TypeReg:
			if hdr.Size > remaining {
				return "", errEntryTooLarge
			}

			remaining -= hdr.Size

			if err = writeEntry(tr, target, hdr.FileInfo().Mode().Perm()); err != nil {
				return "", err
			}
		default:
			// Links and devices are never artifacts.
			continue
		}

		entries++
	}

	if entries == 0 {
		return "", errEmptyArchive
	}

	return archiveRoot(dir)
}

func writeEntry(r io.Reader, target string, mode os.FileMode) (err error) {
	if err = os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode|0o600)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err = io.Copy(out, r); err != nil {
		return fmt.Errorf("extracting %s: %w", target, err)
	}

	return nil
}

// archiveRoot returns the single top-level directory of dir, or dir itself.
func archiveRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}

	return dir, nil
}
