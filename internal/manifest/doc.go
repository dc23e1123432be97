// Package manifest parses requirements-style dependency manifests: one
// package per line with an optional version constraint, plus comments and
// blank lines. The manifest is read once at install time and never mutated
// by the bootstrap procedure.
package manifest
