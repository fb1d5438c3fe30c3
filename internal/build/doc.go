// Package build defines the vocabulary shared by every stage of a ref build:
// the canonical stage names and the typed errors each stage raises.
//
// Stage errors keep their cause reachable through errors.Unwrap and expose a
// foundation error category, so callers can report which stage failed and
// pick an exit code without a type switch over every stage.
package build
