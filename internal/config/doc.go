// Package config defines installer settings and helpers to load, validate
// and save them in YAML format.
//
// Settings hold the installation prefix (with optional per-role overrides),
// the catalog location and the download and smoke-test timeouts.
package config
