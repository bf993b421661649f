// Command libconv is the batch conversion CLI.
//
// Files are chosen from the ledger with a filter expression and run through
// backup, transcode, probe, and the accept/revert policy. Runs are
// plan-only unless --exec is given; the plan is written to the command log
// either way. Other subcommands cover ad-hoc selection, publishing converted
// directories, manual restores, run history, preflight checks, and config
// management.
//
// Exit status is 0 on success, 1 on validation or fatal errors, and 130
// when a run is interrupted by a signal.
package main
