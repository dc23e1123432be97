// Package preflight verifies a machine is ready for bootstrap before any
// environment is touched: the interpreter must be on PATH, the target
// directories writable, and enough disk space free. Failures are reported
// to the operator, never auto-remediated.
package preflight
