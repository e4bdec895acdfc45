package installer

import (
	"context"
	"os"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/phraseling-formula/internal/logger"
)

// processLister returns the running processes.
type processLister func() ([]ps.Process, error)

//nolint:gochecknoglobals // Seam over the system process table.
var systemProcesses processLister = ps.Processes

// WithProcessLister replaces the process table source, for tests.
func WithProcessLister(lister func() ([]ps.Process, error)) Option {
	return func(i *Installer) {
		i.processes = lister
	}
}

// runningInstances counts other processes whose executable name is name.
func (i *Installer) runningInstances(name string) (int, error) {
	processList, err := i.processes()
	if err != nil {
		return 0, err
	}

	var (
		thisProcessID = os.Getpid()
		count         int
	)

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() == name {
			count++
		}
	}

	return count, nil
}

// warnIfRunning logs when the executable about to be replaced is in use.
// A running instance keeps the old binary until it exits; the swap still succeeds.
func (i *Installer) warnIfRunning(ctx context.Context, name string) {
	count, err := i.runningInstances(name)
	if err != nil {
		logger.DebugKV(ctx, "Unable to list processes", "error", err)
		return
	}

	if count > 0 {
		logger.WarnKV(ctx, "Executable is running and keeps the previous version until restarted",
			"executable", name, "instances", count)
	}
}
