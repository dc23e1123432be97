// Package config loads, normalizes, and validates the nsac TOML
// configuration. Load applies repository defaults first, then overlays the
// user's file, expands every path field, and rejects unusable values so the
// rest of the system can treat the returned Config as trustworthy.
package config
