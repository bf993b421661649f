package convert

import (
	"time"

	"libconv/internal/ledger"
	"libconv/internal/media/ffprobe"
)

// State is the lifecycle position of one file within a run.
type State string

const (
	StatePending       State = "PENDING"
	StateBackingUp     State = "BACKING_UP"
	StateTranscoding   State = "TRANSCODING"
	StateProbingResult State = "PROBING_RESULT"
	StateAccepted      State = "ACCEPTED"
	StateReverted      State = "REVERTED"
	StateFailed        State = "FAILED"
	StatePlanned       State = "PLANNED"
	StateSkipped       State = "SKIPPED"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	switch s {
	case StateAccepted, StateReverted, StateFailed, StatePlanned, StateSkipped:
		return true
	default:
		return false
	}
}

// RunState is the lifecycle position of a whole run.
type RunState string

const (
	RunRunning     RunState = "RUNNING"
	RunCompleted   RunState = "COMPLETED"
	RunCancelled   RunState = "CANCELLED"
	RunInterrupted RunState = "INTERRUPTED"
	// RunAborted means a ledger write failed and the batch stopped.
	RunAborted RunState = "ABORTED"
)

// JobOutcome is the result of one file.
type JobOutcome struct {
	FileID int64
	Plan   JobPlan
	State  State
	// Stage is the last non-terminal state reached, useful when State is FAILED.
	Stage      State
	Metadata   *ffprobe.Metadata
	PreSize    int64
	PostSize   int64
	BytesSaved int64
	Update     ledger.Update
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

func (o *JobOutcome) advance(state State) {
	o.State = state
	o.Stage = state
}
