// Package store persists generated chronicles in SQLite.
//
// One row per entity holds the canonical JSON document; a flattened
// entries table makes individual record entries queryable by kind and
// code without parsing documents. All writes are idempotent, so a
// retried generation worker never duplicates rows.
package store
