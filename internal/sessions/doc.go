// Package sessions persists bootstrap sessions in SQLite so the CLI can
// report which state each managed environment is in.
//
// The Store owns the database connection, schema bootstrap, and the status
// transitions that mirror the environment lifecycle. Transitions are
// one-directional: a failed operation records an error message but never
// moves a session backwards or forwards.
//
// Treat this package as the single source of truth for session semantics;
// when adding statuses, update schema.go and the transition table together.
package sessions
