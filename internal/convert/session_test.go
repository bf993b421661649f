package convert

import (
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:          "0",
		999:        "999",
		1234567:    "1,234,567",
		-500:       "-500",
		9876543210: "9,876,543,210",
	}
	for in, want := range tests {
		if got := FormatBytes(in); got != want {
			t.Fatalf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestSessionSummary(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := newSession("run-1", "fileSize > 5000000", RunOptions{Execute: true}, 3, start)
	s.record(JobOutcome{FileID: 1, State: StateAccepted, BytesSaved: 400, Plan: JobPlan{OutputPath: "/tv/a.mkv"}})
	s.record(JobOutcome{FileID: 2, State: StateReverted})
	s.record(JobOutcome{FileID: 3, State: StateFailed})
	s.State = RunCompleted
	s.FinishedAt = start.Add(90 * time.Second)

	summary := s.Summary()
	if summary.Accepted != 1 || summary.Reverted != 1 || summary.Failed != 1 || summary.BytesSaved != 400 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Duration != 90*time.Second || summary.Cancelled {
		t.Fatalf("unexpected duration or cancel flag: %+v", summary)
	}
	if paths := s.ConvertedPaths(); len(paths) != 1 || paths[0] != "/tv/a.mkv" {
		t.Fatalf("unexpected converted paths: %v", paths)
	}

	run := s.historyRun()
	if run.State != "COMPLETED" || run.FinishedAt == nil || !run.FinishedAt.Equal(s.FinishedAt) {
		t.Fatalf("unexpected history run: %+v", run)
	}
}
