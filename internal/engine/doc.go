// Package engine implements the lifegraph module interpreter.
//
// A module is a JSON-defined finite-state machine modeling one aspect of a
// simulated entity's life. The engine materializes the module's state
// graph once, then walks it for one entity at one instant per Process
// call, mutating the entity's attributes and record and persisting
// suspended progress in a run context stored on the entity itself.
//
// ARCHITECTURE:
//
// Suspend/resume without coroutines:
// A state that cannot complete yet (a Guard whose condition is false, a
// Delay whose resume instant has not arrived) returns "do not advance".
// The engine stops the walk and leaves the run context parked on that
// state. Nothing blocks; the caller drives time forward by calling
// Process again with a larger instant, and the walk resumes exactly where
// it stopped. Suspension is persisted data, not a suspended call stack.
//
// Isolation by cloning, not locking:
// Running the same module definition against many entities concurrently
// is made safe by giving every concurrent unit its own Clone - a deep
// value copy of the definition and a fresh graph. There is no mutex in
// this package; sharing one engine across concurrent entities is outside
// the contract, not defended against.
//
// Determinism:
// All randomness draws from the entity's own seeded stream, and a
// Distributed transition advances that stream exactly once per
// evaluation. A fixed entity seed and fixed call order reproduce the same
// path through every module on every run.
package engine
