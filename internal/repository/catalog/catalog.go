package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/phraseling-formula/internal/domain/formula"
)

//go:embed phraseling.yaml
var builtin []byte

// Repository looks up package definitions by name.
type Repository interface {
	Package(ctx context.Context, name string) (*Package, error)
}

type (
	// Document is the top-level catalog file.
	Document struct {
		Packages []Package `yaml:"packages"`
	}

	// Package holds everything shared by the releases of one package.
	Package struct {
		Name        string             `yaml:"name"`
		Product     string             `yaml:"product"`
		Description string             `yaml:"description"`
		Homepage    string             `yaml:"homepage"`
		License     string             `yaml:"license"`
		URL         string             `yaml:"url"`
		ModelAsset  string             `yaml:"model_asset"`
		Artifacts   []formula.Artifact `yaml:"artifacts"`
		Checks      []formula.Check    `yaml:"checks"`
		Releases    []Release          `yaml:"releases"`
	}

	// Release is one manifest revision of a version.
	Release struct {
		Version      string               `yaml:"version"`
		Revision     int                  `yaml:"revision"`
		SHA256       string               `yaml:"sha256"`
		URL          string               `yaml:"url,omitempty"`
		Dependencies []formula.Dependency `yaml:"dependencies"`
	}
)

var (
	errDuplicatePackage  = errors.New("duplicate package")
	errDuplicateRevision = errors.New("duplicate release revision")
)

// FileRepository serves a catalog parsed once from YAML.
type FileRepository struct {
	// path is the catalog file location; empty means the built-in catalog.
	path string

	once     sync.Once
	packages map[string]*Package
	err      error
}

// NewFileRepository reads the catalog at path lazily on first use.
func NewFileRepository(path string) *FileRepository {
	if path != "" {
		path = filepath.Clean(path)
	}

	return &FileRepository{path: path}
}

// NewBuiltinRepository serves the catalog embedded in the binary.
func NewBuiltinRepository() *FileRepository {
	return NewFileRepository("")
}

// Package returns the definition of name or formula.ErrUnknownPackage.
func (r *FileRepository) Package(_ context.Context, name string) (*Package, error) {
	r.once.Do(r.load)

	if r.err != nil {
		return nil, r.err
	}

	pkg, ok := r.packages[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, formula.ErrUnknownPackage)
	}

	return pkg, nil
}

func (r *FileRepository) load() {
	contents := builtin

	if r.path != "" {
		var err error

		contents, err = os.ReadFile(r.path)
		if err != nil {
			r.err = fmt.Errorf("read catalog: %w", err)
			return
		}
	}

	r.packages, r.err = Parse(contents)
}

// Parse decodes and validates a catalog document.
func Parse(contents []byte) (map[string]*Package, error) {
	var doc Document
	if err := yaml.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	packages := make(map[string]*Package, len(doc.Packages))

	for i := range doc.Packages {
		pkg := &doc.Packages[i]

		if pkg.Name == "" {
			return nil, formula.ErrEmptyName
		}

		if _, exists := packages[pkg.Name]; exists {
			return nil, fmt.Errorf("%s: %w", pkg.Name, errDuplicatePackage)
		}

		if err := pkg.validate(); err != nil {
			return nil, err
		}

		packages[pkg.Name] = pkg
	}

	return packages, nil
}

func (p *Package) validate() error {
	for _, artifact := range p.Artifacts {
		if !artifact.Role.Valid() {
			return fmt.Errorf("%s: %s: %q: %w", p.Name, artifact.Source, artifact.Role, formula.ErrUnknownRole)
		}
	}

	type key struct {
		version  string
		revision int
	}

	seen := make(map[key]struct{}, len(p.Releases))

	for _, release := range p.Releases {
		k := key{release.Version, release.Revision}
		if _, exists := seen[k]; exists {
			return fmt.Errorf("%s %s revision %d: %w", p.Name, release.Version, release.Revision, errDuplicateRevision)
		}

		seen[k] = struct{}{}
	}

	return nil
}

// ReleasesOf returns the revisions recorded for version, in catalog order.
func (p *Package) ReleasesOf(version string) []Release {
	var result []Release

	for _, release := range p.Releases {
		if release.Version == version {
			result = append(result, release)
		}
	}

	return result
}
