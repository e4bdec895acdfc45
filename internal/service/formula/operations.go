package formula

import (
	"context"
	"fmt"
	"path/filepath"

	domain "github.com/oshokin/phraseling-formula/internal/domain/formula"
	"github.com/oshokin/phraseling-formula/internal/logger"
	"github.com/oshokin/phraseling-formula/internal/service/installer"
	"github.com/oshokin/phraseling-formula/internal/service/verifier"
)

// Resolve returns the manifest for opts.Name and opts.Version without touching the filesystem.
func Resolve(ctx context.Context, opts *Options) (*domain.Manifest, error) {
	ctx = logger.WithName(ctx, "phraseling-formula")

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	manifest, err := newResolver(cfg).Resolve(ctx, opts.Name, opts.Version, opts.resolveOptions()...)
	if err != nil {
		return nil, stageError(domain.StageResolve, err)
	}

	return manifest, nil
}

// Guidance renders the post-install text for the resolved manifest and configured prefixes.
func Guidance(ctx context.Context, opts *Options) (string, error) {
	manifest, err := Resolve(ctx, opts)
	if err != nil {
		return "", err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return "", fmt.Errorf("load configuration: %w", err)
	}

	return installer.Guidance(manifest, cfg.Prefixes(manifest.Name)), nil
}

// Verify runs the smoke test against an already placed executable.
// An empty path means the executable location derived from the prefixes.
func Verify(ctx context.Context, opts *Options, path string) (*verifier.VerifyResult, error) {
	manifest, err := Resolve(ctx, opts)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if path == "" {
		exe, ok := manifest.Executable()
		if !ok {
			return nil, stageError(domain.StageVerify, errNoExecutable)
		}

		path = filepath.Join(cfg.Prefixes(manifest.Name).BinDir, filepath.Base(exe.Source))
	}

	result, err := verifier.Verify(ctx, opts.executable(cfg, path), manifest.Checks)
	if err != nil {
		return result, stageError(domain.StageVerify, err)
	}

	return result, nil
}

// Uninstall removes the paths an install of the resolved manifest would write.
func Uninstall(ctx context.Context, opts *Options) ([]string, error) {
	manifest, err := Resolve(ctx, opts)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	return installer.New().Uninstall(ctx, manifest, cfg.Prefixes(manifest.Name))
}
