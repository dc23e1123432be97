// Package services holds the shared error taxonomy for components that talk
// to external collaborators (interpreters, package managers, HTTP APIs).
// Errors carry a sentinel marker so callers can classify failures without
// string matching.
package services
