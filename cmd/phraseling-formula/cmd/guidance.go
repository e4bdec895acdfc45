package cmd

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/oshokin/phraseling-formula/internal/service/formula"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	sectionStyle = lipgloss.NewStyle().Bold(true)

	guidanceCmd = &cobra.Command{
		Use:   "guidance [name] [version]",
		Short: "Print the post-install guidance without installing",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			text, err := formula.Guidance(ctx, newOptions(args))
			if err != nil {
				return err
			}

			_, err = io.WriteString(cmd.OutOrStdout(), renderGuidance(text))

			return err
		},
	}
)

// guidanceWriter styles guidance text before writing it to out.
type guidanceWriter struct {
	out io.Writer
}

func newGuidanceWriter(out io.Writer) *guidanceWriter {
	return &guidanceWriter{out: out}
}

// Write renders p and reports it as fully written.
func (w *guidanceWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(w.out, renderGuidance(string(p))); err != nil {
		return 0, err
	}

	return len(p), nil
}

// renderGuidance highlights the first non-empty line and the unindented section headings.
func renderGuidance(text string) string {
	var (
		lines  = strings.Split(text, "\n")
		headed bool
	)

	for i, line := range lines {
		switch {
		case line == "":
		case !headed:
			lines[i] = headerStyle.Render(line)
			headed = true
		case !strings.HasPrefix(line, " ") && strings.HasSuffix(line, ":"):
			lines[i] = sectionStyle.Render(line)
		}
	}

	return strings.Join(lines, "\n")
}
