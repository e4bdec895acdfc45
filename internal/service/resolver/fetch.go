package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/oshokin/phraseling-formula/internal/domain/formula"
	"github.com/oshokin/phraseling-formula/internal/logger"
	"github.com/oshokin/phraseling-formula/internal/version"
)

// maxArchiveBytes caps a downloaded source archive (1 GiB).
const maxArchiveBytes = 1 << 30

var (
	errBadHTTPStatus   = errors.New("unexpected http status")
	errArchiveTooLarge = errors.New("archive exceeds size limit")
)

type (
	// Fetcher downloads source archives over HTTP(S).
	Fetcher struct {
		client    *http.Client
		userAgent string
	}

	// FetcherOption configures a Fetcher.
	FetcherOption func(*Fetcher)
)

// WithHTTPClient replaces the HTTP client, mostly for tests.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithTimeout bounds the whole download.
func WithTimeout(timeout time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.client = &http.Client{Timeout: timeout}
		}
	}
}

// NewFetcher creates a Fetcher with the default HTTP client.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:    http.DefaultClient,
		userAgent: version.UserAgent(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch downloads the manifest URL into a new file under dir and returns its path.
// The caller must verify the digest before using the file.
func (f *Fetcher) Fetch(ctx context.Context, m *formula.Manifest, dir string) (_ string, err error) {
	ctx = logger.WithName(ctx, "fetcher")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, http.NoBody)
	if err != nil {
		return "", err
	}

	req.Header.Set("User-Agent", f.userAgent)

	logger.InfoKV(ctx, "Downloading source archive", "url", m.URL)

	response, err := f.client.Do(req)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s, %s: %w", m.URL, response.Status, errBadHTTPStatus)
	}

	out, err := os.CreateTemp(dir, archivePattern(m))
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}

	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}

		if err != nil {
			_ = os.Remove(out.Name())
		}
	}()

	written, err := io.Copy(out, io.LimitReader(response.Body, maxArchiveBytes+1))
	if err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}

	if written > maxArchiveBytes {
		return "", errArchiveTooLarge
	}

	logger.InfoKV(ctx, "Downloaded source archive", "path", out.Name(), "bytes", written)

	return out.Name(), nil
}

// archivePattern derives the temp file pattern from the package name and version.
func archivePattern(m *formula.Manifest) string {
	ext := ".tar.gz"
	if base := path.Base(m.URL); path.Ext(base) != ".gz" && path.Ext(base) != "" {
		ext = path.Ext(base)
	}

	return m.Name + "-" + m.Version + "-*" + ext
}
