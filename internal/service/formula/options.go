package formula

import (
	"io"

	"github.com/oshokin/phraseling-formula/internal/config"
	domain "github.com/oshokin/phraseling-formula/internal/domain/formula"
	"github.com/oshokin/phraseling-formula/internal/logger"
	"github.com/oshokin/phraseling-formula/internal/repository/catalog"
	"github.com/oshokin/phraseling-formula/internal/service/resolver"
	"github.com/oshokin/phraseling-formula/internal/service/verifier"
)

// Options are the inputs shared by the formula entry points.
type Options struct {
	// ConfigPath is the optional settings file.
	ConfigPath string
	// Name and Version identify the package; Version must be an exact pin.
	Name    string
	Version string
	// Revision pins a manifest revision; zero picks the newest verifiable one.
	Revision int
	// Checksum supplies the archive digest instead of the catalog value.
	Checksum string
	// Catalog overrides the catalog path from the settings.
	Catalog string
	// Prefix overrides the installation prefix from the settings.
	Prefix string
	// LogLevel overrides the log level from the settings.
	LogLevel string
	// ArchivePath installs from a local archive instead of downloading it.
	ArchivePath string
	// Guidance receives the post-install text; nil discards it.
	Guidance io.Writer
	// NewExecutable builds the smoke-test target; nil runs the installed file.
	NewExecutable func(path string) verifier.Executable
}

// loadConfig reads settings and applies command-line overrides.
func loadConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if opts.Catalog != "" {
		cfg.Catalog = opts.Catalog
	}

	if opts.Prefix != "" {
		cfg.Prefix = opts.Prefix
	}

	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	if err = config.Validate(cfg); err != nil {
		return nil, err
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	return cfg, nil
}

func (o *Options) resolveOptions() []resolver.Option {
	var result []resolver.Option

	if o.Revision > 0 {
		result = append(result, resolver.WithRevision(o.Revision))
	}

	if o.Checksum != "" {
		result = append(result, resolver.WithChecksum(o.Checksum))
	}

	return result
}

func (o *Options) executable(cfg *config.Config, path string) verifier.Executable {
	if o.NewExecutable != nil {
		return o.NewExecutable(path)
	}

	return verifier.NewExecRunner(path, cfg.CommandTimeout)
}

func newResolver(cfg *config.Config) *resolver.Resolver {
	if cfg.Catalog == "" {
		return resolver.New(catalog.NewBuiltinRepository())
	}

	return resolver.New(catalog.NewFileRepository(cfg.Catalog))
}

func stageError(stage domain.StageName, err error) error {
	return &domain.StageError{Stage: stage, Err: err}
}
