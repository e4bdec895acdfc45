// Package formula drives one install invocation end to end:
// resolve the manifest, obtain and verify the archive, place the artifacts,
// emit guidance and run the smoke test.
//
// Each invocation walks Resolved -> Placing -> Placed -> Verifying -> Verified
// and reports failures tagged with the stage (resolve, place or verify) that
// produced them. Nothing is retried.
package formula
