// Package logging assembles the structured slog loggers used across nsac.
//
// It owns level and output plumbing for the console and JSON handlers,
// exposes attribute helpers so call sites stay terse, and provides a no-op
// logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits log lines with the same shape and routing.
package logging
