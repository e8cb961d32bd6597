// Package config loads, normalizes, and validates vidsweep configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// CLI needs: backend invocation settings, scheduler resource requests, and the
// execution policy applied by the slice executor.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors.
package config
