package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"libconv/internal/commandlog"
	"libconv/internal/ledger"
	"libconv/internal/runlock"
	"libconv/internal/testsupport"
)

func TestExitCode(t *testing.T) {
	var stderr bytes.Buffer
	if code := exitCode(nil, &stderr); code != 0 {
		t.Fatalf("nil error exit = %d", code)
	}
	if code := exitCode(errInterrupted, &stderr); code != exitInterrupted {
		t.Fatalf("interrupted exit = %d", code)
	}
	if code := exitCode(fmt.Errorf("run: %w", context.Canceled), &stderr); code != exitInterrupted {
		t.Fatalf("cancelled exit = %d", code)
	}
	if code := exitCode(errors.New("boom"), &stderr); code != 1 {
		t.Fatalf("error exit = %d", code)
	}
}

func TestRunPlanOnly(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeLedger(t, "ep1.mp4", "ep2.mp4")
	before, err := os.ReadFile(env.cfg.Paths.LedgerFile)
	if err != nil {
		t.Fatal(err)
	}

	out, stderr, code := runCLI(t, env, "run", "videoCodecName", "=", "'h264'")
	if code != 0 {
		t.Fatalf("run exit %d: %s", code, stderr)
	}
	requireContains(t, out, "2 planned")
	requireContains(t, out, "rerun with --exec")

	after, err := os.ReadFile(env.cfg.Paths.LedgerFile)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("plan-only run modified the ledger")
	}
	doc, err := commandlog.Read(env.cfg.Paths.CommandLog)
	if err != nil {
		t.Fatalf("read command log: %v", err)
	}
	if len(doc.CommandList) != 2 || !strings.Contains(doc.Query, "fileSize > 1000") {
		t.Fatalf("unexpected command log: query=%q entries=%d", doc.Query, len(doc.CommandList))
	}
	if _, err := os.Stat(env.cfg.Paths.SelectionFile); err != nil {
		t.Fatalf("expected selection snapshot: %v", err)
	}
}

func TestRunExecConvertsAndRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t)
	records := env.writeLedger(t, "ep1.mp4")

	out, stderr, code := runCLI(t, env, "run", "--exec", "--yes")
	if code != 0 {
		t.Fatalf("run exit %d: %s%s", code, out, stderr)
	}
	requireContains(t, out, "1 accepted, 0 reverted, 0 failed, 0 skipped")
	requireContains(t, out, "Bytes saved: 3,700")

	store := ledger.Open(env.cfg.Paths.LedgerFile, "")
	if _, err := store.Load(); err != nil {
		t.Fatalf("reload ledger: %v", err)
	}
	rec, _ := store.Record(1)
	wantOutput := strings.TrimSuffix(records[0].Path, ".mp4") + ".mkv"
	if rec.Path != wantOutput || rec.Size != 300 || rec.VideoCodec != "hevc" || rec.PreConversionSize != 4000 {
		t.Fatalf("unexpected ledger row: %+v", rec)
	}
	backup := filepath.Join(env.cfg.Backup.Root, "Show", "Season 1", "ep1.mp4")
	if size := testsupport.FileSize(t, backup); size != 4000 {
		t.Fatalf("expected original in backup tree, got %d bytes", size)
	}

	out, stderr, code = runCLI(t, env, "history")
	if code != 0 {
		t.Fatalf("history exit %d: %s", code, stderr)
	}
	requireContains(t, out, "COMPLETED")
	requireContains(t, out, "exec")
}

func TestRunRevertsWhenOutputGrows(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("LIBCONV_TEST_OUTPUT_SIZE", "5000")
	records := env.writeLedger(t, "ep1.mp4")

	out, stderr, code := runCLI(t, env, "run", "--exec", "--yes")
	if code != 0 {
		t.Fatalf("run exit %d: %s", code, stderr)
	}
	requireContains(t, out, "0 accepted, 1 reverted")
	if size := testsupport.FileSize(t, records[0].Path); size != 4000 {
		t.Fatalf("expected original restored, got %d bytes", size)
	}

	// The marker keeps the file out of the next run.
	out, stderr, code = runCLI(t, env, "run", "--exec", "--yes")
	if code != 0 {
		t.Fatalf("second run exit %d: %s", code, stderr)
	}
	requireContains(t, out, "0 accepted, 0 reverted, 0 failed, 1 skipped")
}

func TestRunRejectsUnknownColumn(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeLedger(t, "ep1.mp4")

	_, stderr, code := runCLI(t, env, "run", "bogusColumn = 1")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	requireContains(t, stderr, "validation error")
}

func TestRunRefusesWhileLocked(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeLedger(t, "ep1.mp4")
	lock, err := runlock.Acquire(env.cfg.LockPath())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer lock.Release()

	_, stderr, code := runCLI(t, env, "run")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	requireContains(t, stderr, "another libconv run is active")
}

func TestRunInterruptedExitCode(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeLedger(t, "ep1.mp4")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, code := runCLIContext(t, ctx, env, "run")
	if code != exitInterrupted {
		t.Fatalf("expected exit %d, got %d", exitInterrupted, code)
	}
	if _, err := commandlog.Read(env.cfg.Paths.CommandLog); err != nil {
		t.Fatalf("command log must still be valid: %v", err)
	}
}

func TestRunNoMatches(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeLedger(t, "ep1.mp4")

	out, _, code := runCLI(t, env, "run", "videoCodecName = 'vp9'")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	requireContains(t, out, "No files match")
}

func TestSelectTrailerModes(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeLedger(t, "ep1.mp4", "film-trailer.mp4")

	out, _, code := runCLI(t, env, "select", "--trailers", "only")
	if code != 0 {
		t.Fatalf("select exit %d", code)
	}
	requireContains(t, out, "film-trailer.mp4")
	requireNotContains(t, out, "ep1.mp4")
	requireContains(t, out, "1 files, 4,000 bytes")

	out, _, code = runCLI(t, env, "select", "--trailers", "exclude")
	if code != 0 {
		t.Fatalf("select exit %d", code)
	}
	requireContains(t, out, "ep1.mp4")
	requireNotContains(t, out, "film-trailer.mp4")

	if _, _, code := runCLI(t, env, "select", "--trailers", "sometimes"); code != 1 {
		t.Fatalf("expected exit 1 for an unknown mode, got %d", code)
	}
	if _, err := os.Stat(env.cfg.Paths.SelectionFile); err == nil {
		t.Fatal("select must not write the selection snapshot")
	}
}

func TestPublishDryRun(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Publish.SourcePrefix = env.mediaDir
	env.cfg.Publish.DestPrefix = "/mnt/production/tv"
	writeTestConfig(t, env.configPath, env.cfg)
	records := env.writeLedger(t, "ep1.mp4", "ep2.mp4")
	records[0].BackupPath = "/backup/Show/Season 1/ep1.mp4"
	records[0].PreConversionSize = 8000
	testsupport.MustOpenLedger(t, env.cfg, records...)

	out, stderr, code := runCLI(t, env, "publish", "--dry-run")
	if code != 0 {
		t.Fatalf("publish exit %d: %s", code, stderr)
	}
	requireContains(t, out, "/mnt/production/tv/Show/Season 1")
}

func TestRestoreCommand(t *testing.T) {
	dir := t.TempDir()
	backup := filepath.Join(dir, "backup", "ep1.mp4")
	target := filepath.Join(dir, "tv", "ep1.mkv")
	testsupport.WriteFile(t, backup, 4000)
	testsupport.WriteFile(t, target, 300)

	out, stderr, code := runCLI(t, nil, "restore", backup, target)
	if code != 0 {
		t.Fatalf("restore exit %d: %s", code, stderr)
	}
	requireContains(t, out, "Restored original to "+filepath.Join(dir, "tv", "ep1.mp4"))
	testsupport.AssertMissing(t, target)

	if _, _, code := runCLI(t, nil, "restore", backup, target); code != 1 {
		t.Fatalf("expected exit 1 for missing paths, got %d", code)
	}
}

func TestCancelCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, code := runCLI(t, env, "cancel")
	if code != 0 {
		t.Fatalf("cancel exit %d", code)
	}
	requireContains(t, out, env.cfg.Paths.CancelSentinel)
	if _, err := os.Stat(env.cfg.Paths.CancelSentinel); err != nil {
		t.Fatalf("expected cancel file: %v", err)
	}
}

func TestPreflightCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, code := runCLI(t, env, "preflight"); code != 1 {
		t.Fatalf("expected failure without a ledger, got %d", code)
	}

	env.writeLedger(t, "ep1.mp4")
	out, stderr, code := runCLI(t, env, "preflight")
	if code != 0 {
		t.Fatalf("preflight exit %d: %s%s", code, out, stderr)
	}
	requireContains(t, out, "Ledger file")
	requireContains(t, out, "All required checks passed")
}

func TestImportCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	source := filepath.Join(env.baseDir, "inventory.json")
	data := `[{"filePath": "/tv/a.mp4", "fileExt": "mp4", "fileSize": 6000000, "videoCodecName": "h264", "durationSeconds": 600.0}]`
	if err := os.WriteFile(source, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	out, stderr, code := runCLI(t, env, "import", source)
	if code != 0 {
		t.Fatalf("import exit %d: %s", code, stderr)
	}
	requireContains(t, out, "Imported 1 records")

	if _, stderr, code := runCLI(t, env, "import", source); code != 1 {
		t.Fatalf("expected refusal to overwrite, got %d", code)
	} else {
		requireContains(t, stderr, "--overwrite")
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, code := runCLI(t, env, "config", "validate")
	if code != 0 {
		t.Fatalf("config validate exit %d", code)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, code = runCLI(t, env, "config", "init", "--path", target)
	if code != 0 {
		t.Fatalf("config init exit %d", code)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, code := runCLI(t, env, "config", "init", "--path", target); code != 1 {
		t.Fatalf("expected refusal to overwrite, got %d", code)
	}
}
