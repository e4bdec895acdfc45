package installer

import (
	"fmt"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/oshokin/phraseling-formula/internal/domain/formula"
)

// Variant selects which guidance text a manifest gets.
type Variant int

const (
	// VariantMandatory assumes the runtime dependency is already installed.
	VariantMandatory Variant = iota
	// VariantOptional also explains how to install the dependency and set things up by hand.
	VariantOptional
)

func (v Variant) String() string {
	if v == VariantOptional {
		return "optional-dependency"
	}

	return "mandatory-dependency"
}

// GuidanceVariant returns the variant for m: optional when its runtime
// dependency is declared advisory-only.
func GuidanceVariant(m *formula.Manifest) Variant {
	if dep, ok := runtimeDependency(m); ok && !dep.Mandatory {
		return VariantOptional
	}

	return VariantMandatory
}

// Guidance renders the post-install instructions for m installed under prefixes.
// It performs no I/O and returns the same text for the same inputs.
func Guidance(m *formula.Manifest, prefixes formula.Prefixes) string {
	var (
		g       = newGuidanceWriter()
		variant = GuidanceVariant(m)
		dep, _  = runtimeDependency(m)
		exeName = executableName(m)
		exePath = filepath.Join(prefixes.BinDir, exeName)
	)

	g.line("")
	g.line(fmt.Sprintf("✨ %s v%s installed successfully!", m.ProductName, m.Version))
	g.line("")
	g.line("📋 Next steps:")

	if variant == VariantOptional {
		g.step(fmt.Sprintf("Install %s (not installed automatically):", dep.Name),
			installCommand(dep))
	}

	if dep.Name != "" && m.ModelAsset != "" {
		g.step("Install a language model:",
			fmt.Sprintf("%s pull %s", dep.Name, m.ModelAsset))
	}

	if template, ok := templatePath(m, prefixes); ok {
		if variant == VariantOptional {
			g.step("Set up the Mac shortcut:",
				"a. Open the template: open "+quote(template),
				`b. Click "Add Shortcut" in the Shortcuts app`,
				`c. In its "Run Shell Script" action, use the full path:`,
				"   "+quote(exePath),
				"d. Assign a keyboard shortcut in the shortcut details")
		} else {
			g.step("Import Mac shortcut:",
				"open "+quote(template))
		}
	}

	if exeName != "" {
		g.step("Test the tool:",
			exeName+` "hello world"`)
	}

	if variant == VariantOptional && exeName != "" {
		g.line("🛠  Troubleshooting:")
		g.line(fmt.Sprintf("   If %q is not found (Shortcuts and other launchers use a minimal PATH),", exeName))
		g.line("   call it by its full path:")
		g.line("   " + quote(exePath) + ` "hello world"`)
		g.line("")
	}

	if exeName != "" {
		g.line(fmt.Sprintf("📖 Documentation: %s --help", exeName))
		g.line(fmt.Sprintf("🔧 Configuration: %s --config", exeName))
		g.line("")
	}

	return g.String()
}

type guidanceWriter struct {
	b     strings.Builder
	steps int
}

func newGuidanceWriter() *guidanceWriter {
	return new(guidanceWriter)
}

func (g *guidanceWriter) line(s string) {
	g.b.WriteString(s)
	g.b.WriteByte('\n')
}

// step writes a numbered heading followed by indented detail lines and a blank line.
func (g *guidanceWriter) step(heading string, details ...string) {
	g.steps++
	g.line(fmt.Sprintf("%d. %s", g.steps, heading))

	for _, detail := range details {
		g.line("   " + detail)
	}

	g.line("")
}

func (g *guidanceWriter) String() string {
	return g.b.String()
}

// runtimeDependency returns the first declared dependency.
func runtimeDependency(m *formula.Manifest) (formula.Dependency, bool) {
	if len(m.Dependencies) == 0 {
		return formula.Dependency{}, false
	}

	return m.Dependencies[0], true
}

func installCommand(dep formula.Dependency) string {
	if dep.InstallCommand != "" {
		return dep.InstallCommand
	}

	return "brew install " + dep.Name
}

func executableName(m *formula.Manifest) string {
	artifact, ok := m.Executable()
	if !ok {
		return ""
	}

	return filepath.Base(filepath.FromSlash(artifact.Source))
}

// templatePath is the installed location of the first shared-data artifact.
func templatePath(m *formula.Manifest, prefixes formula.Prefixes) (string, bool) {
	data := m.ArtifactsByRole(formula.RoleSharedData)
	if len(data) == 0 {
		return "", false
	}

	return filepath.Join(prefixes.ShareDir, filepath.Base(filepath.FromSlash(data[0].Source))), true
}

// quote makes a path safe to paste into a shell.
func quote(path string) string {
	quoted, err := syntax.Quote(path, syntax.LangBash)
	if err != nil {
		return path
	}

	return quoted
}
