// Package store provides local implementations of rules.Store.
//
// SQLiteStore persists collections in a single SQLite file using the pure Go
// modernc.org/sqlite driver, so the binary cross-compiles without CGO. Every
// replacement is recorded in a change log that History reads back.
//
// MemoryStore keeps collections in process memory and is used for dry runs
// and tests.
package store
