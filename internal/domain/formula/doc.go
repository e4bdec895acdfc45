// Package formula contains the core domain types of an install recipe.
//
// It defines the Manifest (what to fetch, verify and place for one package
// version), Artifact entries with their destination roles, Dependency
// declarations, verification Checks, the Prefixes layout and the Stage state
// machine of a single install invocation, plus the error taxonomy shared by
// the resolver, installer and verifier services.
package formula
