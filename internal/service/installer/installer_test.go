package installer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/phraseling-formula/internal/domain/formula"
)

func testManifest(mandatory bool) *formula.Manifest {
	return &formula.Manifest{
		Name:        "phraseling",
		ProductName: "Phraseling",
		Version:     "1.0.0",
		Description: "Transform text with local AI - Private, Fast, Free",
		ModelAsset:  "gpt-oss:latest",
		Artifacts: []formula.Artifact{
			{Source: "bin/phraseling", Role: formula.RoleExecutable},
			{Source: "shortcuts/Phraseling.shortcut", Role: formula.RoleSharedData},
			{Source: "README.md", Role: formula.RoleDocumentation},
		},
		Dependencies: []formula.Dependency{
			{Name: "ollama", Mandatory: mandatory, InstallCommand: "brew install ollama"},
		},
	}
}

// writeSourceTree lays out an extracted archive and returns its root.
func writeSourceTree(t *testing.T) string {
	t.Helper()

	root := filepath.Join(t.TempDir(), "phraseling-1.0.0")

	files := map[string]string{
		"bin/phraseling":                "#!/bin/sh\necho 'Phraseling v1.0.0'\n",
		"shortcuts/Phraseling.shortcut": "shortcut-bytes",
		"README.md":                     "# Phraseling\n",
	}

	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}

	return root
}

func testPrefixes(t *testing.T) formula.Prefixes {
	t.Helper()

	return formula.LayoutFor(filepath.Join(t.TempDir(), "prefix"), "phraseling")
}

func noProcesses() ([]ps.Process, error) {
	return nil, nil
}

// snapshot returns every file below dir mapped to its contents.
func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()

	files := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		files[rel] = string(data)

		return nil
	})
	require.NoError(t, err)

	return files
}

// TestInstall_PlacesArtifactsByRole installs three artifacts into fresh prefixes.
func TestInstall_PlacesArtifactsByRole(t *testing.T) {
	t.Parallel()

	root := writeSourceTree(t)
	prefixes := testPrefixes(t)
	inst := New(WithProcessLister(noProcesses))

	result, err := inst.Install(context.Background(), testManifest(true), root, prefixes)
	require.NoError(t, err)
	require.Len(t, result.Placements, 3)
	require.Equal(t, filepath.Join(prefixes.BinDir, "phraseling"), result.Executable)

	// Executable is placed last.
	require.Equal(t, formula.RoleExecutable, result.Placements[2].Artifact.Role)

	info, err := os.Stat(result.Executable)
	require.NoError(t, err)
	require.Equal(t, ExecutableFileMode, info.Mode().Perm())

	data, err := os.ReadFile(filepath.Join(prefixes.ShareDir, "Phraseling.shortcut"))
	require.NoError(t, err)
	require.Equal(t, "shortcut-bytes", string(data))

	info, err = os.Stat(filepath.Join(prefixes.DocDir, "README.md"))
	require.NoError(t, err)
	require.Equal(t, DataFileMode, info.Mode().Perm())
}

// TestInstall_IsIdempotent reinstalls over the same prefixes and compares the layouts.
func TestInstall_IsIdempotent(t *testing.T) {
	t.Parallel()

	root := writeSourceTree(t)
	prefixes := testPrefixes(t)
	prefix := filepath.Dir(prefixes.BinDir)
	inst := New(WithProcessLister(noProcesses))

	_, err := inst.Install(context.Background(), testManifest(true), root, prefixes)
	require.NoError(t, err)

	first := snapshot(t, prefix)

	_, err = inst.Install(context.Background(), testManifest(true), root, prefixes)
	require.NoError(t, err)

	require.Equal(t, first, snapshot(t, prefix))
	require.Len(t, first, 3)
}

// TestInstall_MissingSourceWritesNothing checks sources before touching the prefixes.
func TestInstall_MissingSourceWritesNothing(t *testing.T) {
	t.Parallel()

	root := writeSourceTree(t)
	require.NoError(t, os.Remove(filepath.Join(root, "README.md")))

	prefixes := testPrefixes(t)

	_, err := New(WithProcessLister(noProcesses)).Install(context.Background(), testManifest(true), root, prefixes)
	require.ErrorIs(t, err, formula.ErrMissingSourcePath)

	_, err = os.Stat(filepath.Dir(prefixes.BinDir))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestInstall_CopyFailureLeavesNoExecutable stops before the executable when data placement fails.
func TestInstall_CopyFailureLeavesNoExecutable(t *testing.T) {
	t.Parallel()

	root := writeSourceTree(t)
	prefixes := testPrefixes(t)

	// A file where the documentation directory should be.
	require.NoError(t, os.MkdirAll(filepath.Dir(prefixes.DocDir), 0o755))
	require.NoError(t, os.WriteFile(prefixes.DocDir, []byte("blocker"), 0o644))

	result, err := New(WithProcessLister(noProcesses)).Install(context.Background(), testManifest(true), root, prefixes)
	require.ErrorIs(t, err, formula.ErrArtifactCopyFailed)
	require.NotNil(t, result)
	require.Empty(t, result.Executable)

	_, err = os.Stat(filepath.Join(prefixes.BinDir, "phraseling"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestUninstall_IsSymmetric removes exactly what Install wrote.
func TestUninstall_IsSymmetric(t *testing.T) {
	t.Parallel()

	root := writeSourceTree(t)
	prefixes := testPrefixes(t)
	inst := New(WithProcessLister(noProcesses))

	// An unrelated package sharing the executable directory.
	require.NoError(t, os.MkdirAll(prefixes.BinDir, 0o755))
	other := filepath.Join(prefixes.BinDir, "other-tool")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o755))

	result, err := inst.Install(context.Background(), testManifest(false), root, prefixes)
	require.NoError(t, err)

	removed, err := inst.Uninstall(context.Background(), testManifest(false), prefixes)
	require.NoError(t, err)

	var placed []string
	for _, p := range result.Placements {
		placed = append(placed, p.Destination)
	}

	sort.Strings(placed)
	sort.Strings(removed)
	require.Equal(t, placed, removed)

	require.FileExists(t, other)
	require.NoDirExists(t, prefixes.ShareDir)
	require.NoDirExists(t, prefixes.DocDir)
	require.DirExists(t, prefixes.BinDir)

	// Second run is a no-op.
	removed, err = inst.Uninstall(context.Background(), testManifest(false), prefixes)
	require.NoError(t, err)
	require.Empty(t, removed)
}

// TestPlan_RejectsCollidingDestinations refuses two artifacts with the same target.
func TestPlan_RejectsCollidingDestinations(t *testing.T) {
	t.Parallel()

	m := testManifest(true)
	m.Artifacts = append(m.Artifacts, formula.Artifact{Source: "docs/README.md", Role: formula.RoleDocumentation})

	_, err := New().Plan(m, "", testPrefixes(t))
	require.ErrorIs(t, err, errDuplicateDestination)
}

type fakeProcess struct {
	pid  int
	name string
}

func (p fakeProcess) Pid() int { return p.pid }

func (p fakeProcess) PPid() int { return 1 }

func (p fakeProcess) Executable() string { return p.name }

// TestRunningInstances counts other processes with the executable name.
func TestRunningInstances(t *testing.T) {
	t.Parallel()

	inst := New(WithProcessLister(func() ([]ps.Process, error) {
		return []ps.Process{
			fakeProcess{pid: os.Getpid(), name: "phraseling"},
			fakeProcess{pid: 100001, name: "phraseling"},
			fakeProcess{pid: 100002, name: "ollama"},
		}, nil
	}))

	count, err := inst.runningInstances("phraseling")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
