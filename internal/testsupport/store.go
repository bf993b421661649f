package testsupport

import (
	"path/filepath"
	"strings"
	"testing"

	"libconv/internal/config"
	"libconv/internal/history"
	"libconv/internal/ledger"
)

// Record builds a ledger row for path with plausible source metadata.
func Record(id int64, path string, size int64) ledger.FileRecord {
	return ledger.FileRecord{
		ID:                id,
		Path:              path,
		Ext:               strings.TrimPrefix(filepath.Ext(path), "."),
		Size:              size,
		VideoCodec:        "h264",
		AudioCodec:        "aac",
		Width:             1920,
		Height:            1080,
		DurationSeconds:   600,
		FormattedDuration: "00:10:00",
		Kbps:              size * 8 / 1000 / 600,
	}
}

// MustOpenLedger writes records to the configured ledger file and loads it.
func MustOpenLedger(t testing.TB, cfg *config.Config, records ...ledger.FileRecord) *ledger.Store {
	t.Helper()

	if err := ledger.WriteCSV(cfg.Paths.LedgerFile, records); err != nil {
		t.Fatalf("ledger.WriteCSV: %v", err)
	}
	store := ledger.Open(cfg.Paths.LedgerFile, cfg.Paths.SelectionFile)
	if _, err := store.Load(); err != nil {
		t.Fatalf("ledger.Load: %v", err)
	}
	return store
}

// MustOpenHistory opens a history.Store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
