// Package verifier runs the post-install smoke test.
//
// The installed binary is reached only through the Executable capability,
// so tests substitute a fake and production uses ExecRunner. Verification
// only reads: it can be repeated any number of times.
package verifier
