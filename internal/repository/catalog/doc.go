// Package catalog stores the manifest revisions the resolver picks from.
//
// A catalog is a YAML document listing packages, their artifacts and checks,
// and one entry per released revision with its recorded checksum and
// dependency declarations. The built-in catalog is embedded in the binary;
// FileRepository reads an external one so checksums can be supplied without
// rebuilding.
package catalog
