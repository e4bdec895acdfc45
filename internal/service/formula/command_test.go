package formula

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/phraseling-formula/internal/domain/formula"
)

const (
	goodScript = "#!/bin/sh\n" +
		"case \"$1\" in\n" +
		"--version) echo 'Phraseling v1.0.0' ;;\n" +
		"--help) echo 'Phraseling: Transform text with local AI' ;;\n" +
		"*) exit 2 ;;\n" +
		"esac\n"

	staleScript = "#!/bin/sh\necho 'Phraseling v0.9.0'\n"

	catalogTemplate = `packages:
  - name: phraseling
    product: Phraseling
    description: "Transform text with local AI - Private, Fast, Free"
    url: "%s/v{{version}}.tar.gz"
    model_asset: "gpt-oss:latest"
    artifacts:
      - source: bin/phraseling
        role: executable
      - source: shortcuts/Phraseling.shortcut
        role: shared-data
      - source: README.md
        role: documentation
    checks:
      - args: ["--version"]
        expect: "{{product}} v{{version}}"
      - args: ["--help"]
        expect: "Transform text with local AI"
    releases:
      - version: 1.0.0
        revision: 1
        sha256: "%s"
        dependencies:
          - name: ollama
            mandatory: true
            install_command: "brew install ollama"
      - version: 1.0.0
        revision: 2
        sha256: ""
        dependencies:
          - name: ollama
            mandatory: false
            install_command: "brew install ollama"
`
)

// fixture is one isolated installation environment.
type fixture struct {
	archive     []byte
	archivePath string
	prefix      string
	opts        *Options
	guidance    *bytes.Buffer
}

func archiveFiles(script string) map[string]string {
	return map[string]string{
		"bin/phraseling":                script,
		"shortcuts/Phraseling.shortcut": "shortcut-bytes",
		"README.md":                     "# Phraseling\n",
	}
}

func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "phraseling-1.0.0/",
		Typeflag: tar.TypeDir,
		Mode:     0o755,
	}))

	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     "phraseling-1.0.0/" + name,
			Typeflag: tar.TypeReg,
			Mode:     0o755,
			Size:     int64(len(body)),
		}))

		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// newFixture writes the archive, a catalog recording catalogDigest and a settings file.
// An empty catalogDigest records the digest of the archive itself.
func newFixture(t *testing.T, files map[string]string, baseURL, catalogDigest string) *fixture {
	t.Helper()

	dir := t.TempDir()
	archive := buildArchive(t, files)

	if catalogDigest == "" {
		catalogDigest = digest(archive)
	}

	if baseURL == "" {
		baseURL = "https://example.invalid"
	}

	archivePath := filepath.Join(dir, "phraseling-1.0.0.tar.gz")
	require.NoError(t, os.WriteFile(archivePath, archive, 0o644))

	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath,
		[]byte(fmt.Sprintf(catalogTemplate, baseURL, catalogDigest)), 0o644))

	prefix := filepath.Join(dir, "prefix")
	configPath := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(configPath,
		[]byte("prefix: "+prefix+"\ncommand_timeout: 5s\ncatalog: "+catalogPath+"\n"), 0o644))

	guidance := new(bytes.Buffer)

	return &fixture{
		archive:     archive,
		archivePath: archivePath,
		prefix:      prefix,
		guidance:    guidance,
		opts: &Options{
			ConfigPath:  configPath,
			Name:        "phraseling",
			Version:     "1.0.0",
			ArchivePath: archivePath,
			Guidance:    guidance,
		},
	}
}

func (f *fixture) executable() string {
	return filepath.Join(f.prefix, "bin", "phraseling")
}

// TestRun_MandatoryDependency installs revision 1 and passes both checks.
func TestRun_MandatoryDependency(t *testing.T) {
	t.Parallel()

	f := newFixture(t, archiveFiles(goodScript), "", "")

	report, err := Run(context.Background(), f.opts)
	require.NoError(t, err)
	require.Equal(t, []domain.State{
		domain.StateResolved,
		domain.StatePlacing,
		domain.StatePlaced,
		domain.StateVerifying,
		domain.StateVerified,
	}, report.States)

	require.Equal(t, f.executable(), report.Install.Executable)
	require.Len(t, report.Verify.Checks, 2)
	require.FileExists(t, filepath.Join(f.prefix, "share", "phraseling", "Phraseling.shortcut"))
	require.FileExists(t, filepath.Join(f.prefix, "share", "doc", "phraseling", "README.md"))

	require.Equal(t, report.Guidance, f.guidance.String())
	require.Contains(t, report.Guidance, "ollama pull gpt-oss:latest")
	require.NotContains(t, report.Guidance, "brew install ollama")
	require.NotContains(t, report.Guidance, "Troubleshooting")
}

// TestRun_OptionalDependency installs revision 2 with an externally supplied digest.
func TestRun_OptionalDependency(t *testing.T) {
	t.Parallel()

	f := newFixture(t, archiveFiles(goodScript), "", "")
	f.opts.Checksum = digest(f.archive)
	f.opts.Revision = 2

	report, err := Run(context.Background(), f.opts)
	require.NoError(t, err)
	require.Equal(t, 2, report.Manifest.Revision)
	require.Equal(t, domain.StateVerified, report.States[len(report.States)-1])

	require.Contains(t, report.Guidance, "brew install ollama")
	require.Contains(t, report.Guidance, "Troubleshooting")
	require.Contains(t, report.Guidance, f.executable())
}

// TestRun_ChecksumMismatch aborts during resolution without touching the prefix.
func TestRun_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, archiveFiles(goodScript), "", strings.Repeat("ab", 32))

	report, err := Run(context.Background(), f.opts)
	require.Nil(t, report)
	require.ErrorIs(t, err, domain.ErrChecksumMismatch)

	stage, ok := domain.StageOf(err)
	require.True(t, ok)
	require.Equal(t, domain.StageResolve, stage)

	var checksumErr *domain.ChecksumError
	require.ErrorAs(t, err, &checksumErr)
	require.Equal(t, digest(f.archive), checksumErr.Got)

	require.NoDirExists(t, f.prefix)
	require.Empty(t, f.guidance.String())
}

// TestRun_MissingDigest fails closed when revision 2 is pinned without a digest.
func TestRun_MissingDigest(t *testing.T) {
	t.Parallel()

	f := newFixture(t, archiveFiles(goodScript), "", "")
	f.opts.Revision = 2

	_, err := Run(context.Background(), f.opts)
	require.ErrorIs(t, err, domain.ErrChecksumMissing)
	require.NoDirExists(t, f.prefix)
}

// TestRun_MissingSource fails placement before the executable is written.
func TestRun_MissingSource(t *testing.T) {
	t.Parallel()

	files := archiveFiles(goodScript)
	delete(files, "README.md")

	f := newFixture(t, files, "", "")

	report, err := Run(context.Background(), f.opts)
	require.ErrorIs(t, err, domain.ErrMissingSourcePath)

	stage, ok := domain.StageOf(err)
	require.True(t, ok)
	require.Equal(t, domain.StagePlace, stage)

	require.Equal(t, domain.StateFailed, report.States[len(report.States)-1])
	require.NoFileExists(t, f.executable())
	require.Empty(t, f.guidance.String())
}

// TestRun_VerificationFailure reports the mismatching check with the verify stage.
func TestRun_VerificationFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, archiveFiles(staleScript), "", "")

	report, err := Run(context.Background(), f.opts)
	require.ErrorIs(t, err, domain.ErrUnexpectedOutput)

	stage, ok := domain.StageOf(err)
	require.True(t, ok)
	require.Equal(t, domain.StageVerify, stage)

	var verifyErr *domain.VerifyError
	require.ErrorAs(t, err, &verifyErr)
	require.Equal(t, "Phraseling v1.0.0", verifyErr.Expected)
	require.Contains(t, verifyErr.Actual, "v0.9.0")

	require.Equal(t, []domain.State{
		domain.StateResolved,
		domain.StatePlacing,
		domain.StatePlaced,
		domain.StateVerifying,
		domain.StateFailed,
	}, report.States)

	// Guidance is emitted once placement succeeds, regardless of verification.
	require.NotEmpty(t, f.guidance.String())
	require.FileExists(t, f.executable())
}

// TestRun_Download fetches the archive from the manifest URL.
func TestRun_Download(t *testing.T) {
	t.Parallel()

	archive := buildArchive(t, archiveFiles(goodScript))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1.0.0.tar.gz" {
			http.NotFound(w, r)
			return
		}

		_, _ = w.Write(archive)
	}))
	t.Cleanup(server.Close)

	f := newFixture(t, archiveFiles(goodScript), server.URL, digest(archive))
	f.opts.ArchivePath = ""

	report, err := Run(context.Background(), f.opts)
	require.NoError(t, err)
	require.Equal(t, server.URL+"/v1.0.0.tar.gz", report.Manifest.URL)
	require.FileExists(t, f.executable())
}

// TestRun_Reinstall overwrites an existing installation.
func TestRun_Reinstall(t *testing.T) {
	t.Parallel()

	f := newFixture(t, archiveFiles(goodScript), "", "")

	_, err := Run(context.Background(), f.opts)
	require.NoError(t, err)

	report, err := Run(context.Background(), f.opts)
	require.NoError(t, err)
	require.Equal(t, domain.StateVerified, report.States[len(report.States)-1])
}

// TestVerify_InstalledExecutable re-runs the smoke test without modifying the prefix.
func TestVerify_InstalledExecutable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, archiveFiles(goodScript), "", "")

	_, err := Run(context.Background(), f.opts)
	require.NoError(t, err)

	before, err := os.Stat(f.executable())
	require.NoError(t, err)

	for range 2 {
		result, verifyErr := Verify(context.Background(), f.opts, "")
		require.NoError(t, verifyErr)
		require.Equal(t, f.executable(), result.Executable)
	}

	after, err := os.Stat(f.executable())
	require.NoError(t, err)
	require.Equal(t, before.ModTime(), after.ModTime())
}

// TestVerify_NotInstalled reports an execution failure with the verify stage.
func TestVerify_NotInstalled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, archiveFiles(goodScript), "", "")

	_, err := Verify(context.Background(), f.opts, "")
	require.ErrorIs(t, err, domain.ErrExecutionFailed)

	stage, ok := domain.StageOf(err)
	require.True(t, ok)
	require.Equal(t, domain.StageVerify, stage)
}

// TestUninstall removes what Run placed.
func TestUninstall(t *testing.T) {
	t.Parallel()

	f := newFixture(t, archiveFiles(goodScript), "", "")

	_, err := Run(context.Background(), f.opts)
	require.NoError(t, err)

	removed, err := Uninstall(context.Background(), f.opts)
	require.NoError(t, err)
	require.Len(t, removed, 3)
	require.NoFileExists(t, f.executable())
	require.NoDirExists(t, filepath.Join(f.prefix, "share", "phraseling"))
	require.DirExists(t, filepath.Join(f.prefix, "bin"))
}

// TestGuidance_VariantFollowsRevision renders both variants from the catalog.
func TestGuidance_VariantFollowsRevision(t *testing.T) {
	t.Parallel()

	f := newFixture(t, archiveFiles(goodScript), "", "")

	mandatory, err := Guidance(context.Background(), f.opts)
	require.NoError(t, err)

	f.opts.Revision = 2
	f.opts.Checksum = digest(f.archive)

	optional, err := Guidance(context.Background(), f.opts)
	require.NoError(t, err)

	require.NotEqual(t, mandatory, optional)
	require.Contains(t, optional, "brew install ollama")
	require.NoDirExists(t, f.prefix)
}

// TestResolve_InvalidVersion rejects version ranges.
func TestResolve_InvalidVersion(t *testing.T) {
	t.Parallel()

	f := newFixture(t, archiveFiles(goodScript), "", "")
	f.opts.Version = ">=1.0"

	_, err := Resolve(context.Background(), f.opts)
	require.ErrorIs(t, err, domain.ErrInvalidVersion)

	stage, ok := domain.StageOf(err)
	require.True(t, ok)
	require.Equal(t, domain.StageResolve, stage)
}
