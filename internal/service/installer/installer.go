package installer

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha512"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/phraseling-formula/internal/domain/formula"
	"github.com/oshokin/phraseling-formula/internal/logger"
)

const (
	// ExecutableFileMode is applied to artifacts with the executable role.
	ExecutableFileMode os.FileMode = 0o755
	// DataFileMode is applied to shared-data and documentation artifacts.
	DataFileMode os.FileMode = 0o644
	// DirMode is used for destination directories created on demand.
	DirMode os.FileMode = 0o755
)

var errDuplicateDestination = errors.New("two artifacts map to the same destination")

type (
	// Placement pairs an artifact with its resolved source and destination.
	Placement struct {
		Artifact    formula.Artifact
		Source      string
		Destination string
	}

	// InstallResult lists what one Install call wrote.
	InstallResult struct {
		Name       string
		Version    string
		Placements []Placement
		// Executable is the fully-qualified path of the installed executable, if any.
		Executable string
	}

	// Installer places and removes manifest artifacts.
	Installer struct {
		processes processLister
	}

	// Option configures an Installer.
	Option func(*Installer)
)

// New creates an Installer.
func New(opts ...Option) *Installer {
	i := &Installer{
		processes: systemProcesses,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Plan computes the destination of every artifact in placement order.
// Sources are left relative when root is empty.
func (i *Installer) Plan(m *formula.Manifest, root string, prefixes formula.Prefixes) ([]Placement, error) {
	if err := prefixes.Validate(); err != nil {
		return nil, err
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	var (
		placements = make([]Placement, 0, len(m.Artifacts))
		seen       = make(map[string]string, len(m.Artifacts))
	)

	for _, role := range formula.Roles() {
		dir, err := prefixes.DirFor(role)
		if err != nil {
			return nil, err
		}

		for _, artifact := range m.ArtifactsByRole(role) {
			source := filepath.FromSlash(artifact.Source)
			destination := filepath.Join(dir, filepath.Base(source))

			if previous, exists := seen[destination]; exists {
				return nil, fmt.Errorf("%s and %s: %w", previous, artifact.Source, errDuplicateDestination)
			}

			seen[destination] = artifact.Source

			placements = append(placements, Placement{
				Artifact:    artifact,
				Source:      filepath.Join(root, source),
				Destination: destination,
			})
		}
	}

	return placements, nil
}

// Install copies every artifact from root into its role directory.
// All sources are checked before the first write. Reinstalling over an
// existing layout overwrites the same paths.
func (i *Installer) Install(
	ctx context.Context,
	m *formula.Manifest,
	root string,
	prefixes formula.Prefixes,
) (*InstallResult, error) {
	ctx = logger.WithKV(logger.WithName(ctx, "installer"), "package", m.Name, "version", m.Version)

	placements, err := i.Plan(m, root, prefixes)
	if err != nil {
		return nil, err
	}

	if err = checkSources(placements); err != nil {
		return nil, err
	}

	result := &InstallResult{
		Name:       m.Name,
		Version:    m.Version,
		Placements: make([]Placement, 0, len(placements)),
	}

	for _, placement := range placements {
		if placement.Artifact.Role == formula.RoleExecutable {
			i.warnIfRunning(ctx, filepath.Base(placement.Destination))
		}

		if err = place(placement); err != nil {
			return result, fmt.Errorf("%s -> %s: %w: %w",
				placement.Artifact.Source, placement.Destination, formula.ErrArtifactCopyFailed, err)
		}

		logger.InfoKV(ctx, "Placed artifact",
			"role", placement.Artifact.Role,
			"path", placement.Destination)

		result.Placements = append(result.Placements, placement)

		if placement.Artifact.Role == formula.RoleExecutable && result.Executable == "" {
			result.Executable = placement.Destination
		}
	}

	return result, nil
}

// Uninstall removes every path Install would write for m and prefixes.
// Missing files are skipped. The package-scoped directories are removed only
// when empty; the shared executable directory is never removed.
func (i *Installer) Uninstall(ctx context.Context, m *formula.Manifest, prefixes formula.Prefixes) ([]string, error) {
	ctx = logger.WithKV(logger.WithName(ctx, "installer"), "package", m.Name)

	placements, err := i.Plan(m, "", prefixes)
	if err != nil {
		return nil, err
	}

	var removed []string

	for _, placement := range placements {
		err = os.Remove(placement.Destination)

		switch {
		case err == nil:
			removed = append(removed, placement.Destination)
			logger.InfoKV(ctx, "Removed artifact", "path", placement.Destination)
		case errors.Is(err, os.ErrNotExist):
			logger.DebugKV(ctx, "Artifact already absent", "path", placement.Destination)
		default:
			return removed, fmt.Errorf("remove %s: %w", placement.Destination, err)
		}
	}

	for _, dir := range []string{prefixes.ShareDir, prefixes.DocDir} {
		// Fails harmlessly when the directory is not empty or already gone.
		if err = os.Remove(dir); err == nil {
			logger.DebugKV(ctx, "Removed empty directory", "path", dir)
		}
	}

	return removed, nil
}

// checkSources verifies every source is a regular file inside the archive.
func checkSources(placements []Placement) error {
	for _, placement := range placements {
		info, err := os.Stat(placement.Source)
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", placement.Artifact.Source, formula.ErrMissingSourcePath)
		}

		if err != nil {
			return fmt.Errorf("stat %s: %w", placement.Source, err)
		}

		if !info.Mode().IsRegular() {
			return fmt.Errorf("%s is not a regular file: %w", placement.Artifact.Source, formula.ErrMissingSourcePath)
		}
	}

	return nil
}

// place swaps the destination with the source contents through go-update,
// which writes a sibling temp file, verifies its checksum and renames it.
func place(placement Placement) error {
	data, err := os.ReadFile(placement.Source)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(placement.Destination), DirMode); err != nil {
		return err
	}

	// go-update renames the current target away first, so it has to exist.
	if _, err = os.Stat(placement.Destination); errors.Is(err, os.ErrNotExist) {
		var placeholder *os.File

		placeholder, err = os.OpenFile(placement.Destination, os.O_CREATE|os.O_WRONLY, DataFileMode)
		if err != nil {
			return err
		}

		if err = placeholder.Close(); err != nil {
			return err
		}
	}

	checksum := sha512.Sum512(data)

	mode := DataFileMode
	if placement.Artifact.Role == formula.RoleExecutable {
		mode = ExecutableFileMode
	}

	options := goupdate.Options{
		TargetPath: placement.Destination,
		TargetMode: mode,
		Checksum:   checksum[:],
		Hash:       crypto.SHA512,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return err
	}

	// The swap creates the file with TargetMode, but an umask may have narrowed it.
	return os.Chmod(placement.Destination, mode)
}
