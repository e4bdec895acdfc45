package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/phraseling-formula/internal/service/formula"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [name] [version]",
	Short: "Print the resolved manifest as YAML",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		manifest, err := formula.Resolve(ctx, newOptions(args))
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(manifest)
		if err != nil {
			return fmt.Errorf("marshal manifest: %w", err)
		}

		_, err = cmd.OutOrStdout().Write(out)

		return err
	},
}
