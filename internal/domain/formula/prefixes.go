package formula

import (
	"fmt"
	"path/filepath"
)

// Prefixes are the three destination roots supplied by the invoking environment.
type Prefixes struct {
	// BinDir is the executable root, shared between packages.
	BinDir string `yaml:"bin_dir"`
	// ShareDir is the package-scoped shared-data root.
	ShareDir string `yaml:"share_dir"`
	// DocDir is the package-scoped documentation root.
	DocDir string `yaml:"doc_dir"`
}

// LayoutFor derives the three roots from a single installation prefix.
func LayoutFor(prefix, name string) Prefixes {
	return Prefixes{
		BinDir:   filepath.Join(prefix, "bin"),
		ShareDir: filepath.Join(prefix, "share", name),
		DocDir:   filepath.Join(prefix, "share", "doc", name),
	}
}

// DirFor returns the destination directory for a role.
func (p Prefixes) DirFor(role Role) (string, error) {
	switch role {
	case RoleExecutable:
		return p.BinDir, nil
	case RoleSharedData:
		return p.ShareDir, nil
	case RoleDocumentation:
		return p.DocDir, nil
	default:
		return "", fmt.Errorf("%q: %w", role, ErrUnknownRole)
	}
}

// Validate ensures every root is set.
func (p Prefixes) Validate() error {
	if p.BinDir == "" || p.ShareDir == "" || p.DocDir == "" {
		return ErrIncompletePrefixes
	}

	return nil
}
