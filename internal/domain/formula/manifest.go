package formula

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Role is the destination class of an artifact.
type Role string

const (
	// RoleExecutable places the artifact into the executable directory.
	RoleExecutable Role = "executable"
	// RoleSharedData places the artifact into the package-scoped shared-data directory.
	RoleSharedData Role = "shared-data"
	// RoleDocumentation places the artifact into the package-scoped documentation directory.
	RoleDocumentation Role = "documentation"
)

// Roles returns every known role in placement order.
// Executables go last so a failed run never leaves a runnable binary without its data.
func Roles() []Role {
	return []Role{RoleSharedData, RoleDocumentation, RoleExecutable}
}

// Valid reports whether r is one of the closed set of roles.
func (r Role) Valid() bool {
	switch r {
	case RoleExecutable, RoleSharedData, RoleDocumentation:
		return true
	default:
		return false
	}
}

// Artifact is a single file copied from the extracted archive.
type Artifact struct {
	// Source is the path relative to the extracted archive root.
	Source string `yaml:"source"`
	// Role selects the destination directory class.
	Role Role `yaml:"role"`
}

// Dependency is a named external package the manifest refers to.
type Dependency struct {
	// Name is the package name of the dependency, e.g. "ollama".
	Name string `yaml:"name"`
	// Mandatory is true when the dependency must be present before the package is usable.
	// Optional dependencies only change the guidance text.
	Mandatory bool `yaml:"mandatory"`
	// InstallCommand is the command shown to users to install the dependency.
	InstallCommand string `yaml:"install_command,omitempty"`
}

// Check is one smoke-test invocation of the installed executable.
type Check struct {
	// Args are passed to the executable verbatim.
	Args []string `yaml:"args"`
	// Expect is a literal substring the standard output must contain.
	Expect string `yaml:"expect"`
}

// Manifest describes one resolved package revision.
type Manifest struct {
	Name         string       `yaml:"name"`
	ProductName  string       `yaml:"product"`
	Version      string       `yaml:"version"`
	Revision     int          `yaml:"revision"`
	Description  string       `yaml:"description"`
	Homepage     string       `yaml:"homepage,omitempty"`
	License      string       `yaml:"license,omitempty"`
	URL          string       `yaml:"url"`
	Checksum     string       `yaml:"sha256"`
	Dependencies []Dependency `yaml:"dependencies,omitempty"`
	Artifacts    []Artifact   `yaml:"artifacts"`
	Checks       []Check      `yaml:"checks"`
	// ModelAsset is the model users are told to pull after installation.
	ModelAsset string `yaml:"model_asset,omitempty"`
}

// Executable returns the first artifact with the executable role.
func (m *Manifest) Executable() (Artifact, bool) {
	for _, artifact := range m.Artifacts {
		if artifact.Role == RoleExecutable {
			return artifact, true
		}
	}

	return Artifact{}, false
}

// ArtifactsByRole returns the artifacts of one role in manifest order.
func (m *Manifest) ArtifactsByRole(role Role) []Artifact {
	var result []Artifact

	for _, artifact := range m.Artifacts {
		if artifact.Role == role {
			result = append(result, artifact)
		}
	}

	return result
}

// MandatoryDependencies returns the dependencies that must be satisfied by the environment.
func (m *Manifest) MandatoryDependencies() []Dependency {
	var result []Dependency

	for _, dep := range m.Dependencies {
		if dep.Mandatory {
			result = append(result, dep)
		}
	}

	return result
}

// OptionalDependencies returns the advisory-only dependencies.
func (m *Manifest) OptionalDependencies() []Dependency {
	var result []Dependency

	for _, dep := range m.Dependencies {
		if !dep.Mandatory {
			result = append(result, dep)
		}
	}

	return result
}

// Validate checks the structural invariants of a manifest.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return ErrEmptyName
	}

	if m.Version == "" {
		return fmt.Errorf("%s: %w", m.Name, ErrInvalidVersion)
	}

	if len(m.Artifacts) == 0 {
		return fmt.Errorf("%s: %w", m.Name, ErrNoArtifacts)
	}

	for _, artifact := range m.Artifacts {
		if !artifact.Role.Valid() {
			return fmt.Errorf("%s: %q: %w", artifact.Source, artifact.Role, ErrUnknownRole)
		}

		if !IsLocalPath(artifact.Source) {
			return fmt.Errorf("%s: %w", artifact.Source, ErrUnsafePath)
		}
	}

	if _, ok := m.Executable(); !ok && len(m.Checks) > 0 {
		return fmt.Errorf("%s: %w", m.Name, ErrNoExecutable)
	}

	return nil
}

// IsLocalPath reports whether p is a relative path that stays inside its root.
func IsLocalPath(p string) bool {
	if p == "" || strings.ContainsRune(p, 0) {
		return false
	}

	return filepath.IsLocal(filepath.FromSlash(p))
}
