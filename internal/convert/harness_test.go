package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"libconv/internal/config"
	"libconv/internal/fileutil"
	"libconv/internal/filter"
	"libconv/internal/ledger"
	"libconv/internal/logging"
	"libconv/internal/media/ffprobe"
	"libconv/internal/procrun"
	"libconv/internal/publish"
	"libconv/internal/testsupport"
)

const (
	backupTool = "backup-tool"
	encoderCmd = "encoder"
)

// fakeTools stands in for the backup copier and the encoder. The backup
// step moves {source} to {backup}; the transcode step writes {output}.
type fakeTools struct {
	mu    sync.Mutex
	calls []string

	outputSize    func(output string) int64
	backupExit    int
	backupCopyLen int64
	transcodeErr  error
	progressLines []string
	afterEncode   func(input, output string)
}

func (f *fakeTools) Run(ctx context.Context, command string, args []string, onLine func(string)) (procrun.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, command)
	f.mu.Unlock()

	switch command {
	case backupTool:
		if f.backupCopyLen > 0 {
			return f.truncatedCopy(command, args[0], args[1])
		}
		if err := fileutil.MoveFile(args[0], args[1]); err != nil {
			return procrun.Result{ExitCode: 1}, &procrun.ExitError{Command: command, ExitCode: 1, Tail: []string{err.Error()}}
		}
		if f.backupExit != 0 {
			return procrun.Result{ExitCode: f.backupExit}, &procrun.ExitError{Command: command, ExitCode: f.backupExit}
		}
		return procrun.Result{}, nil
	case encoderCmd:
		input, output := args[0], args[1]
		if _, err := os.Stat(input); err != nil {
			return procrun.Result{ExitCode: 1}, &procrun.ExitError{Command: command, ExitCode: 1, Tail: []string{"input missing"}}
		}
		for _, line := range f.progressLines {
			onLine(line)
		}
		size := int64(100)
		if f.outputSize != nil {
			size = f.outputSize(output)
		}
		if err := os.WriteFile(output, make([]byte, size), 0o644); err != nil {
			return procrun.Result{ExitCode: 1}, err
		}
		if f.afterEncode != nil {
			f.afterEncode(input, output)
		}
		if f.transcodeErr != nil {
			return procrun.Result{ExitCode: 1}, f.transcodeErr
		}
		return procrun.Result{}, ctx.Err()
	default:
		return procrun.Result{}, fmt.Errorf("unexpected command %q", command)
	}
}

func (f *fakeTools) count(command string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == command {
			n++
		}
	}
	return n
}

type fakeProber struct {
	err   error
	paths []string
}

func (p *fakeProber) Probe(_ context.Context, path string, size int64) (ffprobe.Metadata, error) {
	p.paths = append(p.paths, path)
	if p.err != nil {
		return ffprobe.Metadata{}, p.err
	}
	return ffprobe.Metadata{
		VideoCodec:        "hevc",
		AudioCodec:        "aac",
		Width:             1920,
		Height:            1080,
		DurationSeconds:   600,
		FormattedDuration: "00:10:00",
		Kbps:              size * 8 / 1000 / 600,
		SizeBytes:         size,
	}, nil
}

type recordingOperator struct {
	answer    bool
	questions []string
	acks      []string
}

func (o *recordingOperator) Confirm(_ context.Context, question string) (bool, error) {
	o.questions = append(o.questions, question)
	return o.answer, nil
}

func (o *recordingOperator) Acknowledge(_ context.Context, message string) error {
	o.acks = append(o.acks, message)
	return nil
}

type recordingPublisher struct {
	order   *[]string
	records []ledger.FileRecord
}

func (p *recordingPublisher) Publish(_ context.Context, records []ledger.FileRecord) (publish.Report, error) {
	*p.order = append(*p.order, "publish")
	p.records = append(p.records, records...)
	return publish.Report{}, nil
}

type recordingPower struct {
	order *[]string
}

func (p *recordingPower) Run(context.Context) error {
	*p.order = append(*p.order, "power")
	return nil
}

type failingLedger struct {
	*ledger.Store
	failAfter int
	applied   int
}

func (l *failingLedger) ApplyUpdate(id int64, update ledger.Update) error {
	if l.applied >= l.failAfter {
		return errors.New("disk full")
	}
	l.applied++
	return l.Store.ApplyUpdate(id, update)
}

type harness struct {
	t        *testing.T
	cfg      *config.Config
	store    *ledger.Store
	tools    *fakeTools
	prober   *fakeProber
	operator *recordingOperator
	sleeps   []time.Duration
	sources  []string
}

// newHarness creates one source file per size under <base>/tv/Show/Season 1
// and a ledger describing them.
func newHarness(t *testing.T, sizes ...int64) *harness {
	t.Helper()
	names := make([]string, len(sizes))
	for i := range sizes {
		names[i] = fmt.Sprintf("ep%d.mp4", i+1)
	}
	return newHarnessNamed(t, names, sizes)
}

func newHarnessNamed(t *testing.T, names []string, sizes []int64) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Backup.Command = backupTool
	cfg.Backup.Args = []string{"{source}", "{backup}"}
	cfg.Encoder.Command = encoderCmd
	cfg.Encoder.Args = []string{"{input}", "{output}"}

	dir := filepath.Join(testsupport.BaseDir(cfg), "tv", "Show", "Season 1")
	h := &harness{
		t:        t,
		cfg:      cfg,
		tools:    &fakeTools{},
		prober:   &fakeProber{},
		operator: &recordingOperator{},
	}
	records := make([]ledger.FileRecord, len(sizes))
	for i, size := range sizes {
		path := filepath.Join(dir, names[i])
		testsupport.WriteFile(t, path, size)
		h.sources = append(h.sources, path)
		records[i] = testsupport.Record(int64(i+1), path, size)
	}
	h.store = testsupport.MustOpenLedger(t, cfg, records...)
	return h
}

// truncatedCopy copies the first backupCopyLen bytes of src to dst, leaves
// src in place, and exits with backupExit like a copier that ran out of space.
func (f *fakeTools) truncatedCopy(command, src, dst string) (procrun.Result, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return procrun.Result{ExitCode: 1}, err
	}
	if int64(len(data)) > f.backupCopyLen {
		data = data[:f.backupCopyLen]
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return procrun.Result{ExitCode: 1}, err
	}
	if f.backupExit != 0 {
		return procrun.Result{ExitCode: f.backupExit}, &procrun.ExitError{Command: command, ExitCode: f.backupExit}
	}
	return procrun.Result{}, nil
}

func (h *harness) orchestrator(opts ...Option) *Orchestrator {
	base := []Option{
		WithExecutor(h.tools),
		WithProber(h.prober),
		WithOperator(h.operator),
		WithSleep(func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		}),
	}
	return New(h.cfg, h.store, logging.NewNop(), append(base, opts...)...)
}

func (h *harness) selectAll() *ledger.Selection {
	h.t.Helper()
	sel, err := h.store.Select(filter.True{}, ledger.SelectOptions{})
	if err != nil {
		h.t.Fatalf("Select: %v", err)
	}
	return sel
}

func (h *harness) run(ctx context.Context, opts RunOptions, orchOpts ...Option) *Session {
	h.t.Helper()
	session, err := h.orchestrator(orchOpts...).Run(ctx, h.selectAll(), opts)
	if err != nil {
		h.t.Fatalf("Run: %v", err)
	}
	return session
}

func (h *harness) backupPath(i int) string {
	return filepath.Join(h.cfg.Backup.Root, "Show", "Season 1", filepath.Base(h.sources[i]))
}

func (h *harness) outputPath(i int) string {
	src := h.sources[i]
	return src[:len(src)-len(filepath.Ext(src))] + ".mkv"
}

// reloaded reads record id back from the ledger file on disk.
func (h *harness) reloaded(id int64) ledger.FileRecord {
	h.t.Helper()
	store := ledger.Open(h.cfg.Paths.LedgerFile, "")
	if _, err := store.Load(); err != nil {
		h.t.Fatalf("reload ledger: %v", err)
	}
	rec, ok := store.Record(id)
	if !ok {
		h.t.Fatalf("record %d missing after reload", id)
	}
	return rec
}
