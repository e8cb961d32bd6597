// Package services defines shared utilities consumed by the layout planner,
// slice executor, and the external backend integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, slice coordinates, and
//     sample ids for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification consistent across components.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability) stays uniform across the system.
package services
