package commandlog_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"libconv/internal/commandlog"
)

func TestWriterProducesValidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commandExport.json")
	query := `videoCodecName = 'h264' AND filePath LIKE "%\movies%"`

	w, err := commandlog.Create(path, query)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	plan := commandlog.Entry{
		FileID:           7,
		OriginalBackup:   "/work/originalStreams/Movies/Heat/Heat.mp4",
		OriginalFileSize: 9_000_000_000,
		NewFilePath:      "/media/Movies/Heat/Heat.mkv",
		Commands: [][]string{
			commandlog.Argv("rsync", []string{"/media/Movies/Heat/Heat.mp4", "/work/originalStreams/Movies/Heat/"}),
			commandlog.Argv("ffmpeg", []string{"-i", "/work/originalStreams/Movies/Heat/Heat.mp4", "/media/Movies/Heat/Heat.mkv"}),
		},
	}
	outcome := plan
	outcome.FileID = 8
	outcome.State = "ACCEPTED"
	outcome.Fields = []string{"filePath", "fileSize"}
	outcome.Values = []any{"/media/Movies/Heat/Heat.mkv", int64(3_000_000_000)}

	if err := w.Append(plan); err != nil {
		t.Fatalf("Append plan: %v", err)
	}
	if err := w.Append(outcome); err != nil {
		t.Fatalf("Append outcome: %v", err)
	}
	if w.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", w.Len())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(raw), `{"query": `) || !strings.HasSuffix(string(raw), "\n]}") {
		t.Fatalf("unexpected envelope: %q", raw)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		t.Fatalf("compact: %v", err)
	}
	if !strings.Contains(compact.String(), `"commands":[["rsync","/media/Movies/Heat/Heat.mp4",`) {
		t.Fatalf("commands must be argv arrays: %s", compact.String())
	}
	if !strings.Contains(string(raw), "\n,{") {
		t.Fatalf("expected entries separated by newline-comma: %q", raw)
	}

	doc, err := commandlog.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if doc.Query != query {
		t.Fatalf("query round trip: got %q want %q", doc.Query, query)
	}
	if len(doc.CommandList) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(doc.CommandList))
	}

	if got := doc.CommandList[0].Commands; len(got) != 2 || got[1][0] != "ffmpeg" || got[1][len(got[1])-1] != "/media/Movies/Heat/Heat.mkv" {
		t.Fatalf("unexpected commands: %v", got)
	}
	if doc.CommandList[0].Fields != nil || doc.CommandList[1].State != "ACCEPTED" {
		t.Fatalf("unexpected entries: %+v", doc.CommandList)
	}
	if got := doc.CommandList[1].Values; len(got) != 2 || got[1] != float64(3_000_000_000) {
		t.Fatalf("unexpected values: %v", got)
	}
}

func TestPlanEntriesOmitOutcomeArrays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commandExport.json")
	w, err := commandlog.Create(path, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Append(commandlog.Entry{FileID: 1}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "fields_array") || strings.Contains(string(raw), "values_array") {
		t.Fatalf("plan entry should omit outcome arrays: %s", raw)
	}
}

func TestEmptyLogIsValidAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commandExport.json")
	w, err := commandlog.Create(path, "fileSize > 5000000")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	doc, err := commandlog.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(doc.CommandList) != 0 {
		t.Fatalf("expected no entries, got %d", len(doc.CommandList))
	}
}

func TestAppendAfterCloseFails(t *testing.T) {
	w, err := commandlog.Create(filepath.Join(t.TempDir(), "commandExport.json"), "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Append(commandlog.Entry{FileID: 1}); !errors.Is(err, commandlog.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := w.Close(); !errors.Is(err, commandlog.ErrClosed) {
		t.Fatalf("expected ErrClosed on second close, got %v", err)
	}
}

func TestUnclosedLogHoldsCompletedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commandExport.json")
	w, err := commandlog.Create(path, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Append(commandlog.Entry{FileID: 42, NewFilePath: "/media/x.mkv"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"fileId": 42`) {
		t.Fatalf("expected entry flushed before close: %s", raw)
	}
	_ = w.Close()
}
