// Package publish copies converted files to the production library.
//
// Converted files are grouped by directory; each directory is mapped from
// the working library prefix to the production prefix and synced with the
// configured copy command. Sync output is appended to a plain text log so
// the operator can review what changed. When a media server is configured,
// a library refresh is requested once the sync finishes.
package publish
