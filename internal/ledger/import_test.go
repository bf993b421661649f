package ledger_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"libconv/internal/ledger"
	"libconv/internal/services"
)

func TestImportJSON(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "fileList.json")
	content := `[
  {"filePath": "/media/a.mp4", "fileExt": "mp4", "fileSize": 12000000, "videoCodecName": "h264", "audioCodecName": "aac", "durationSeconds": "600", "kbps": 156.0, "source": "nas1"},
  {"filePath": "/media/b.mkv", "fileExt": "mkv", "fileSize": "9000000", "videoCodecName": "hevc", "audioCodecName": "None", "durationSeconds": 300}
]`
	if err := os.WriteFile(jsonPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	ledgerPath := filepath.Join(dir, "fileList.csv")

	count, err := ledger.ImportJSON(jsonPath, ledgerPath)
	if err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows, got %d", count)
	}

	records, err := ledger.Open(ledgerPath, "").Load()
	if err != nil {
		t.Fatalf("Load imported ledger: %v", err)
	}
	if records[0].ID != 1 || records[1].ID != 2 {
		t.Fatalf("expected sequential ids, got %d, %d", records[0].ID, records[1].ID)
	}
	if records[0].Kbps != 156 || records[1].Size != 9_000_000 {
		t.Fatalf("unexpected numeric values: %+v %+v", records[0], records[1])
	}
	if records[0].Extra["source"] != "nas1" {
		t.Fatalf("expected extra column, got %v", records[0].Extra)
	}
}

func TestImportJSONRequiresColumns(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "fileList.json")
	if err := os.WriteFile(jsonPath, []byte(`[{"filePath": "/media/a.mp4"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	ledgerPath := filepath.Join(dir, "fileList.csv")
	if _, err := ledger.ImportJSON(jsonPath, ledgerPath); !errors.Is(err, services.ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
	if _, err := os.Stat(ledgerPath); !os.IsNotExist(err) {
		t.Fatalf("ledger should not be written on failure, stat err=%v", err)
	}
}
