package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/phraseling-formula/internal/service/formula"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall [name] [version]",
	Short: "Remove the files an install places",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		removed, err := formula.Uninstall(ctx, newOptions(args))
		if err != nil {
			return err
		}

		for _, path := range removed {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "removed", path)
		}

		return nil
	},
}
