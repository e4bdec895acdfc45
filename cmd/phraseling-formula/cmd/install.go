package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/phraseling-formula/internal/service/formula"
)

var (
	// archivePath installs from a local archive instead of downloading.
	archivePath string

	installCmd = &cobra.Command{
		Use:   "install [name] [version]",
		Short: "Download, verify, place and smoke-test a release",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			options := newOptions(args)
			options.ArchivePath = archivePath
			options.Guidance = newGuidanceWriter(cmd.OutOrStdout())

			_, err := formula.Run(ctx, options)

			return err
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	installCmd.Flags().StringVarP(&archivePath, "archive", "a", "", "install from a local source archive")
}
