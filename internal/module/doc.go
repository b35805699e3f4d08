// Package module defines the immutable module definition: a named graph of
// state definitions parsed from JSON (or compiled from CUE by the loader).
//
// A Definition keeps its states as a raw JSON tree rather than typed
// structs. That choice makes the three definition-level operations natural:
// value-level deep cloning (per-entity isolation), override application
// (path addressing into arbitrary state fields), and lenient structural
// validation. The engine decodes raw state maps into typed state instances
// at construction time, which is where unknown discriminants fail fast.
//
// Definitions are read-only templates after parse. Nothing in this package
// or its callers mutates a parsed Definition; mutation happens only on
// clones.
package module
