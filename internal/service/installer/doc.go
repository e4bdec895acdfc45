// Package installer places the artifacts of a resolved manifest into the
// executable, shared-data and documentation roots, removes them again
// symmetrically, and renders the post-install guidance text.
//
// Placement is planned up front from the manifest and the prefixes alone, so
// install and uninstall always agree on the set of paths. Every copy goes
// through a temp-file-and-rename swap, and the executable is placed last.
package installer
