// Package env implements the environment bootstrap procedure: creating an
// isolated interpreter environment, binding command resolution to it, and
// installing a declared dependency set from a manifest.
//
// The procedure is strictly sequential and human-driven: create, then
// activate, then install. Each step advances the session ledger one state;
// any failure surfaces to the operator and leaves the recorded state
// unchanged. External interpreter and package-manager collaborators sit
// behind the Provisioner interface so tests can substitute fakes.
package env
