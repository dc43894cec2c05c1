// Package facts defines the fact value model and the resolution layer that
// produces fact values on demand.
//
// A fact is a named piece of system information (hostname, kernel version,
// memory layout). Values are restricted to a closed grammar — text, bool,
// integer, float, null, and nested sequences/mappings of those — enforced
// structurally by the Value sum type rather than by runtime type checks.
// Resolvers are registered in a Registry and collected through a Collector,
// which consults the persistent cache before doing any expensive probing.
package facts
