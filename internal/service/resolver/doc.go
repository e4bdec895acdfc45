// Package resolver turns a package name and exact version into a Manifest.
//
// It picks a revision from the catalog, expands the source URL and check
// templates, and exposes the recorded checksum together with the declared
// dependencies. It never installs dependencies. The package also verifies a
// downloaded archive against the manifest digest and provides the default
// fetch and extraction collaborators used before placement.
package resolver
