// Package ledger loads and persists the CSV file inventory that drives a
// conversion run.
//
// The Store holds every FileRecord of the ledger plus the Selection computed
// for the current run. Updates are write-through: ApplyUpdate mutates the
// record by id, rewrites the ledger file, then rewrites the selection file,
// each via temp file and rename. Columns the store does not understand are
// carried through untouched.
package ledger
