package history

import "time"

// Run is one batch invocation.
type Run struct {
	ID         string
	Query      string
	Execute    bool
	State      string
	Total      int
	Accepted   int
	Reverted   int
	Failed     int
	Skipped    int
	Planned    int
	BytesSaved int64
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Job is the outcome of one file within a run.
type Job struct {
	RunID        string
	FileID       int64
	SourcePath   string
	OutputPath   string
	State        string
	PreSize      int64
	PostSize     int64
	BytesSaved   int64
	ErrorKind    string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}
