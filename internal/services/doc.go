// Package services defines shared utilities consumed by the conversion
// orchestrator and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp ledger file IDs, job stages, and run
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures from ledger
//     I/O, external tools, probing, and reverts can be classified with
//     errors.Is at the orchestrator boundary.
//
// Use these helpers when wiring new steps so operational behaviour (error
// classification, observability) stays uniform across the pipeline.
package services
