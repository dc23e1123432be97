package env

import "errors"

// Bootstrap failure taxonomy. Every operation error wraps exactly one of
// these sentinels so callers can classify failures with errors.Is.
var (
	// ErrEnvironmentCreation reports an unwritable target directory or an
	// environment that already occupies it.
	ErrEnvironmentCreation = errors.New("environment creation failed")

	// ErrActivation reports activation of a directory where create has not
	// succeeded first.
	ErrActivation = errors.New("environment activation failed")

	// ErrManifestNotFound reports an absent dependency manifest.
	ErrManifestNotFound = errors.New("dependency manifest not found")

	// ErrDependencyResolution reports a declared package that cannot be
	// resolved or installed. Installation is all-or-nothing: nothing is
	// installed when any entry fails.
	ErrDependencyResolution = errors.New("dependency resolution failed")
)
