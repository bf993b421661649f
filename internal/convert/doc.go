// Package convert drives a batch conversion run over a ledger selection.
//
// For every selected record the Orchestrator builds a JobPlan (archival
// backup copy, then transcode), executes it through an Executor, probes the
// result, and applies the accept/revert policy: a transcode that did not
// shrink the file is undone and the backup location is marked so later runs
// skip it. Accepted and reverted outcomes are written through to the ledger
// before they are appended to the command log and the run history.
//
// Files are processed strictly one at a time. Cancellation is cooperative:
// the cancel sentinel is polled before each file, and a cancelled context
// stops the run after the current step has been rolled back.
package convert
