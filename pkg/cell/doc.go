// Package cell is the runtime used by code that cellgen generates.
//
// A Cell holds the current value of one record behind a reader/writer lock.
// Values are published as immutable snapshots: writers never modify a
// published value, they swap in a new pointer. Readers that obtained a
// snapshot keep seeing it unchanged after later writes.
//
// Lock discipline:
//   - Load, View: shared lock, any number of concurrent readers
//   - Store, Modify: exclusive lock, one writer, blocks readers
//   - calling a writer from inside View's callback deadlocks
//
// A panic inside Modify's callback poisons the cell. Every later call
// returns a *PoisonedError (errors.Is(err, ErrPoisoned)) until Reset.
package cell
