package convert

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"libconv/internal/commandlog"
	"libconv/internal/history"
	"libconv/internal/notifications"
)

// Session is the process-wide state of one run. It is created when the run
// starts, mutated once per file, and finalized exactly once.
type Session struct {
	ID                   string
	Query                string
	Execute              bool
	ShutdownOnCompletion bool
	State                RunState
	StartedAt            time.Time
	FinishedAt           time.Time

	Total      int
	Processed  int
	BytesSaved int64
	Outcomes   []JobOutcome

	counts map[State]int
	log    *commandlog.Writer
}

func newSession(id, query string, opts RunOptions, total int, now time.Time) *Session {
	return &Session{
		ID:                   id,
		Query:                query,
		Execute:              opts.Execute,
		ShutdownOnCompletion: opts.Shutdown,
		State:                RunRunning,
		StartedAt:            now,
		Total:                total,
		counts:               make(map[State]int),
	}
}

// Cancelled reports whether the cancel sentinel stopped the run.
func (s *Session) Cancelled() bool {
	return s.State == RunCancelled
}

// Interrupted reports whether a signal or context cancellation stopped the run.
func (s *Session) Interrupted() bool {
	return s.State == RunInterrupted
}

// Count returns how many files ended in state.
func (s *Session) Count(state State) int {
	return s.counts[state]
}

// CommandLogPath returns the command log location, or "" before the log exists.
func (s *Session) CommandLogPath() string {
	if s.log == nil {
		return ""
	}
	return s.log.Path()
}

func (s *Session) record(outcome JobOutcome) {
	s.Processed++
	s.counts[outcome.State]++
	s.BytesSaved += outcome.BytesSaved
	s.Outcomes = append(s.Outcomes, outcome)
}

// ConvertedPaths lists output paths of accepted files in processing order.
func (s *Session) ConvertedPaths() []string {
	var paths []string
	for _, outcome := range s.Outcomes {
		if outcome.State == StateAccepted {
			paths = append(paths, outcome.Plan.OutputPath)
		}
	}
	return paths
}

// Duration is the wall time of the run so far.
func (s *Session) Duration() time.Duration {
	end := s.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.StartedAt)
}

// Summary converts the session into a notification payload.
func (s *Session) Summary() notifications.RunSummary {
	return notifications.RunSummary{
		RunID:      s.ID,
		Execute:    s.Execute,
		Cancelled:  s.Cancelled(),
		Accepted:   s.Count(StateAccepted),
		Reverted:   s.Count(StateReverted),
		Failed:     s.Count(StateFailed),
		Skipped:    s.Count(StateSkipped),
		Planned:    s.Count(StatePlanned),
		BytesSaved: s.BytesSaved,
		Duration:   s.Duration(),
	}
}

func (s *Session) historyRun() history.Run {
	run := history.Run{
		ID:         s.ID,
		Query:      s.Query,
		Execute:    s.Execute,
		State:      string(s.State),
		Total:      s.Total,
		Accepted:   s.Count(StateAccepted),
		Reverted:   s.Count(StateReverted),
		Failed:     s.Count(StateFailed),
		Skipped:    s.Count(StateSkipped),
		Planned:    s.Count(StatePlanned),
		BytesSaved: s.BytesSaved,
		StartedAt:  s.StartedAt,
	}
	if !s.FinishedAt.IsZero() {
		finished := s.FinishedAt
		run.FinishedAt = &finished
	}
	return run
}

// FormatBytes renders n with thousands separators, e.g. "1,234,567".
func FormatBytes(n int64) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}
