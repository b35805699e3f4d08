// Package entity defines the simulated individual that lifegraph modules
// act on: demographics, an open-ended attribute store, a symptom store, and
// the append-only chronicle of typed record entries.
//
// Ownership model: an Entity is owned by exactly one worker at a time. The
// engine mutates the entity it is handed and retains no reference across
// calls beyond what it stores in the entity's own attribute store. Nothing
// in this package locks - isolation comes from the one-entity-per-worker
// discipline, not from synchronization.
//
// Timestamps are int64 milliseconds since the Unix epoch. A zero End on a
// record entry means the entry is still open.
package entity
