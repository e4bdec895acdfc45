package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/phraseling-formula/internal/config"
	"github.com/oshokin/phraseling-formula/internal/service/formula"
	"github.com/oshokin/phraseling-formula/internal/version"
)

const (
	// defaultPackage and defaultVersion are what the formula ships.
	defaultPackage = "phraseling"
	defaultVersion = "1.0.0"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the configured log level.
	logLevel string
	// catalogPath overrides the configured catalog.
	catalogPath string
	// prefix overrides the configured installation prefix.
	prefix string
	// revision pins a manifest revision.
	revision int
	// checksum supplies the archive digest.
	checksum string

	// rootCmd represents the base command; subcommands do the work.
	rootCmd = &cobra.Command{
		Use:          "phraseling-formula",
		Short:        "Install, verify and remove Phraseling releases",
		SilenceUsage: true,
	}
)

// Execute runs the phraseling-formula CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGTERM or SIGINT.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// newOptions builds service options from the persistent flags and positional args.
func newOptions(args []string) *formula.Options {
	options := &formula.Options{
		ConfigPath: configPath,
		Name:       defaultPackage,
		Version:    defaultVersion,
		Revision:   revision,
		Checksum:   checksum,
		Catalog:    catalogPath,
		Prefix:     prefix,
		LogLevel:   logLevel,
	}

	if len(args) > 0 {
		options.Name = args[0]
	}

	if len(args) > 1 {
		options.Version = args[1]
	}

	return options
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()

	// Setup command flags with consistent naming and descriptions.
	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&catalogPath, "catalog", "", "path to a manifest catalog (default: built-in)")
	flags.StringVar(&prefix, "prefix", "", "installation prefix (default: from configuration)")
	flags.IntVar(&revision, "revision", 0, "manifest revision (default: newest with a recorded checksum)")
	flags.StringVar(&checksum, "sha256", "", "expected SHA-256 of the source archive")

	rootCmd.AddCommand(installCmd, resolveCmd, guidanceCmd, verifyCmd, uninstallCmd)
}
