package formula

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/oshokin/phraseling-formula/internal/config"
	domain "github.com/oshokin/phraseling-formula/internal/domain/formula"
	"github.com/oshokin/phraseling-formula/internal/logger"
	"github.com/oshokin/phraseling-formula/internal/service/installer"
	"github.com/oshokin/phraseling-formula/internal/service/resolver"
	"github.com/oshokin/phraseling-formula/internal/service/verifier"
)

var errNoExecutable = errors.New("manifest installs no executable to verify")

// Report summarizes a successful install invocation.
type Report struct {
	Manifest *domain.Manifest
	Install  *installer.InstallResult
	Guidance string
	Verify   *verifier.VerifyResult
	States   []domain.State
}

// runner holds the state of one install invocation.
// It is unexported; callers use Run.
type runner struct {
	cfg       *config.Config
	opts      *Options
	resolver  *resolver.Resolver
	fetcher   *resolver.Fetcher
	installer *installer.Installer
	lifecycle *domain.Lifecycle
	// workDir holds the downloaded and extracted archive; removed on exit.
	workDir string
}

// Run resolves, places and verifies one package.
func Run(ctx context.Context, opts *Options) (*Report, error) {
	ctx = logger.WithName(ctx, "phraseling-formula")

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	r := &runner{
		cfg:       cfg,
		opts:      opts,
		resolver:  newResolver(cfg),
		fetcher:   resolver.NewFetcher(resolver.WithTimeout(cfg.DownloadTimeout)),
		installer: installer.New(),
	}

	defer r.cleanup(ctx)

	report, err := r.Run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Install failed", "error", err)
		return report, err
	}

	logger.InfoKV(ctx, "Install verified", "package", report.Manifest.Name, "version", report.Manifest.Version)

	return report, nil
}

// Run executes the invocation. Only the resolve stage runs before the
// lifecycle exists; nothing under the prefixes is written until Placing.
func (r *runner) Run(ctx context.Context) (*Report, error) {
	manifest, archive, err := r.prepare(ctx)
	if err != nil {
		return nil, stageError(domain.StageResolve, err)
	}

	r.lifecycle = domain.NewLifecycle()
	report := &Report{Manifest: manifest}

	defer func() {
		report.States = r.lifecycle.History()
	}()

	prefixes := r.cfg.Prefixes(manifest.Name)

	if err = r.lifecycle.Advance(domain.StatePlacing); err != nil {
		return report, err
	}

	root, err := r.extract(ctx, archive)
	if err != nil {
		return report, r.lifecycle.Fail(err)
	}

	report.Install, err = r.installer.Install(ctx, manifest, root, prefixes)
	if err != nil {
		return report, r.lifecycle.Fail(err)
	}

	if err = r.lifecycle.Advance(domain.StatePlaced); err != nil {
		return report, err
	}

	report.Guidance = installer.Guidance(manifest, prefixes)
	r.emitGuidance(ctx, report.Guidance)
	checkDependencies(ctx, manifest)

	if err = r.lifecycle.Advance(domain.StateVerifying); err != nil {
		return report, err
	}

	if report.Install.Executable == "" {
		return report, r.lifecycle.Fail(errNoExecutable)
	}

	exe := r.opts.executable(r.cfg, report.Install.Executable)

	report.Verify, err = verifier.Verify(ctx, exe, manifest.Checks)
	if err != nil {
		return report, r.lifecycle.Fail(err)
	}

	if err = r.lifecycle.Advance(domain.StateVerified); err != nil {
		return report, err
	}

	return report, nil
}

// prepare resolves the manifest and returns a digest-verified archive path.
func (r *runner) prepare(ctx context.Context) (*domain.Manifest, string, error) {
	manifest, err := r.resolver.Resolve(ctx, r.opts.Name, r.opts.Version, r.opts.resolveOptions()...)
	if err != nil {
		return nil, "", err
	}

	archive := r.opts.ArchivePath
	if archive == "" {
		if archive, err = r.download(ctx, manifest); err != nil {
			return nil, "", err
		}
	}

	logger.InfoKV(ctx, "Verifying archive checksum", "path", archive)

	if err = resolver.VerifyArchive(manifest, archive); err != nil {
		return nil, "", err
	}

	return manifest, archive, nil
}

func (r *runner) download(ctx context.Context, manifest *domain.Manifest) (string, error) {
	if err := r.ensureWorkDir(); err != nil {
		return "", err
	}

	return r.fetcher.Fetch(ctx, manifest, r.workDir)
}

// extract unpacks the verified archive into the work directory.
func (r *runner) extract(ctx context.Context, archive string) (string, error) {
	if err := r.ensureWorkDir(); err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp(r.workDir, "src-")
	if err != nil {
		return "", err
	}

	root, err := resolver.Extract(archive, dir)
	if err != nil {
		return "", fmt.Errorf("extract archive: %w", err)
	}

	logger.DebugKV(ctx, "Extracted archive", "root", root)

	return root, nil
}

func (r *runner) ensureWorkDir() error {
	if r.workDir != "" {
		return nil
	}

	dir, err := os.MkdirTemp("", "phraseling-formula-")
	if err != nil {
		return err
	}

	r.workDir = dir

	return nil
}

// emitGuidance writes the guidance to the configured writer and the log.
// Write errors are logged and never fail the install.
func (r *runner) emitGuidance(ctx context.Context, text string) {
	logger.Debug(ctx, text)

	if r.opts.Guidance == nil {
		return
	}

	if _, err := io.WriteString(r.opts.Guidance, text); err != nil {
		logger.WarnKV(ctx, "Unable to print guidance", "error", err)
	}
}

// checkDependencies logs mandatory dependencies missing from PATH.
// Installing them is left to the surrounding package manager.
func checkDependencies(ctx context.Context, manifest *domain.Manifest) {
	for _, dep := range manifest.MandatoryDependencies() {
		if _, err := exec.LookPath(dep.Name); err != nil {
			logger.WarnKV(ctx, "Mandatory dependency not found on PATH", "dependency", dep.Name)
		}
	}
}

// cleanup removes the temporary work directory.
func (r *runner) cleanup(ctx context.Context) {
	if r.workDir == "" {
		return
	}

	if err := os.RemoveAll(filepath.Clean(r.workDir)); err != nil {
		logger.WarnKV(ctx, "Unable to remove work directory", "path", r.workDir, "error", err)
	}
}
