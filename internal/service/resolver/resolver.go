package resolver

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/oshokin/phraseling-formula/internal/domain/formula"
	"github.com/oshokin/phraseling-formula/internal/logger"
	"github.com/oshokin/phraseling-formula/internal/repository/catalog"
)

var errMalformedChecksum = errors.New("sha256 digest must be 64 hex characters")

type (
	// Resolver builds manifests from catalog revisions.
	Resolver struct {
		repo catalog.Repository
	}

	// Option tunes a single Resolve call.
	Option func(*resolveOptions)

	resolveOptions struct {
		revision int
		checksum string
	}
)

// WithRevision pins a revision instead of taking the newest verifiable one.
func WithRevision(revision int) Option {
	return func(o *resolveOptions) {
		o.revision = revision
	}
}

// WithChecksum supplies the archive digest, overriding the catalog value.
func WithChecksum(sha256 string) Option {
	return func(o *resolveOptions) {
		o.checksum = strings.ToLower(strings.TrimSpace(sha256))
	}
}

// New creates a Resolver backed by repo.
func New(repo catalog.Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the manifest of name at exactly version.
func (r *Resolver) Resolve(ctx context.Context, name, version string, opts ...Option) (*formula.Manifest, error) {
	ctx = logger.WithName(ctx, "resolver")

	var options resolveOptions
	for _, opt := range opts {
		opt(&options)
	}

	version, err := NormalizeVersion(version)
	if err != nil {
		return nil, err
	}

	pkg, err := r.repo.Package(ctx, name)
	if err != nil {
		return nil, err
	}

	release, err := pickRelease(pkg.ReleasesOf(version), options)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", name, version, err)
	}

	checksum := release.SHA256
	if options.checksum != "" {
		checksum = options.checksum
	}

	checksum = strings.ToLower(checksum)
	if !isValidHexHash(checksum) {
		return nil, fmt.Errorf("%s %s revision %d: %w", name, version, release.Revision, errMalformedChecksum)
	}

	manifest := buildManifest(pkg, release, checksum)
	if err = manifest.Validate(); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Resolved manifest",
		"package", manifest.Name,
		"version", manifest.Version,
		"revision", manifest.Revision,
		"url", manifest.URL)

	for _, dep := range manifest.Dependencies {
		logger.DebugKV(ctx, "Declared dependency", "name", dep.Name, "mandatory", dep.Mandatory)
	}

	return manifest, nil
}

// NormalizeVersion validates an exact semantic version and strips a leading "v".
// Shorthands such as "1.0" and build metadata are rejected.
func NormalizeVersion(version string) (string, error) {
	norm := strings.TrimSpace(version)
	if !strings.HasPrefix(norm, "v") {
		norm = "v" + norm
	}

	if !semver.IsValid(norm) || semver.Canonical(norm) != norm {
		return "", fmt.Errorf("%q: %w", version, formula.ErrInvalidVersion)
	}

	return strings.TrimPrefix(norm, "v"), nil
}

// pickRelease selects the pinned revision, or the newest one that has a digest.
// With an externally supplied digest the newest revision wins outright.
func pickRelease(releases []catalog.Release, options resolveOptions) (catalog.Release, error) {
	if len(releases) == 0 {
		return catalog.Release{}, formula.ErrUnknownVersion
	}

	if options.revision > 0 {
		for _, release := range releases {
			if release.Revision != options.revision {
				continue
			}

			if release.SHA256 == "" && options.checksum == "" {
				return catalog.Release{}, fmt.Errorf("revision %d: %w", release.Revision, formula.ErrChecksumMissing)
			}

			return release, nil
		}

		return catalog.Release{}, fmt.Errorf("revision %d: %w", options.revision, formula.ErrUnknownVersion)
	}

	sorted := slices.SortedFunc(slices.Values(releases), func(a, b catalog.Release) int {
		return cmp.Compare(b.Revision, a.Revision)
	})

	for _, release := range sorted {
		if release.SHA256 != "" || options.checksum != "" {
			return release, nil
		}
	}

	return catalog.Release{}, formula.ErrChecksumMissing
}

func buildManifest(pkg *catalog.Package, release catalog.Release, checksum string) *formula.Manifest {
	expand := strings.NewReplacer(
		"{{name}}", pkg.Name,
		"{{product}}", pkg.Product,
		"{{version}}", release.Version,
	).Replace

	url := pkg.URL
	if release.URL != "" {
		url = release.URL
	}

	checks := make([]formula.Check, 0, len(pkg.Checks))
	for _, check := range pkg.Checks {
		checks = append(checks, formula.Check{
			Args:   slices.Clone(check.Args),
			Expect: expand(check.Expect),
		})
	}

	manifest := &formula.Manifest{
		Name:         pkg.Name,
		ProductName:  cmp.Or(pkg.Product, pkg.Name),
		Version:      release.Version,
		Revision:     release.Revision,
		Description:  pkg.Description,
		Homepage:     pkg.Homepage,
		License:      pkg.License,
		URL:          expand(url),
		Checksum:     checksum,
		Dependencies: slices.Clone(release.Dependencies),
		Artifacts:    slices.Clone(pkg.Artifacts),
		Checks:       checks,
		ModelAsset:   pkg.ModelAsset,
	}

	if len(manifest.Checks) == 0 {
		manifest.Checks = DefaultChecks(manifest)
	}

	return manifest
}

// DefaultChecks derives the smoke test from the manifest: the version banner
// and the lead clause of the description in the help text.
func DefaultChecks(m *formula.Manifest) []formula.Check {
	tagline, _, _ := strings.Cut(m.Description, " - ")

	checks := []formula.Check{
		{Args: []string{"--version"}, Expect: m.ProductName + " v" + m.Version},
	}

	if tagline = strings.TrimSpace(tagline); tagline != "" {
		checks = append(checks, formula.Check{Args: []string{"--help"}, Expect: tagline})
	}

	return checks
}
