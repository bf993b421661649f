// Package history journals conversion runs and per-file outcomes in SQLite.
//
// The ledger CSV stays the authoritative record of each file; the journal
// answers "what happened in which run" questions that the ledger cannot,
// such as how many bytes a run saved or which files failed and why. Rows
// are written after the ledger and command log, so a crash can lose the
// last journal row but never contradict the ledger.
package history
