// Package ffprobe provides a typed wrapper around ffprobe JSON output and
// normalizes it into the ledger's metadata columns.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Metadata: codec, geometry, duration, and bitrate as stored in the ledger
//
// Entry points:
//   - Inspect: executes ffprobe and returns parsed Result
//   - Parse: decodes captured ffprobe JSON without running a binary
//   - Probe: Inspect plus normalization, used after every transcode
//
// Every failure is tagged with services.ErrProbe.
package ffprobe
