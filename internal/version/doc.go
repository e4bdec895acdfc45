// Package version exposes build metadata of the installer itself.
//
// Version, Commit and BuildTime are injected via ldflags. This is unrelated
// to the version of the package being installed, which comes from the catalog.
package version
