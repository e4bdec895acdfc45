package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/phraseling-formula/internal/service/formula"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Run the smoke test against an installed executable",
	Long: "Run the manifest checks against the executable at path, or at its " +
		"location under the configured prefix. Nothing is modified.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		var path string
		if len(args) > 0 {
			path = args[0]
		}

		result, err := formula.Verify(ctx, newOptions(nil), path)
		if err != nil {
			return err
		}

		for _, check := range result.Checks {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ok  %s  (contains %q)\n", check.Invocation, check.Expected)
		}

		return nil
	},
}
