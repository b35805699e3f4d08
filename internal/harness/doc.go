// Package harness provides a conformance testing framework for modules.
//
// A scenario describes one entity, a sequence of simulated activation
// instants, and the expected outcome of walking a module with that
// entity. The harness runs the scenario against the real engine and
// produces a deterministic trace: one event per activation, recording
// the visited-state history and run status after the step.
//
// Traces are designed for golden-file comparison. Everything that feeds
// a trace is fixed by the scenario (entity seed, demographics, instants),
// so a trace diff always means a behavior change, never environmental
// noise.
package harness
