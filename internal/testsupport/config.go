package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"libconv/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Paths are absolute, throttling is off, and notifications are disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = base
	cfgVal.Paths.LedgerFile = filepath.Join(base, "fileList.csv")
	cfgVal.Paths.SelectionFile = filepath.Join(base, "queriedFileList.csv")
	cfgVal.Paths.CommandLog = filepath.Join(base, "commandExport.json")
	cfgVal.Paths.CancelSentinel = filepath.Join(base, "cancel")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Backup.Root = filepath.Join(base, "originalStreams")
	cfgVal.Publish.LogFile = filepath.Join(base, "copyNewFilesToEmby.txt")
	cfgVal.Policy.ThrottleSeconds = 0
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPublishPrefixes sets the publish source and destination prefixes.
func WithPublishPrefixes(source, dest string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Publish.SourcePrefix = source
		b.cfg.Publish.DestPrefix = dest
	}
}

// WithNtfyTopic enables notifications against the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithTolerateExitCodes restricts which backup exit codes are tolerated.
func WithTolerateExitCodes(codes ...int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backup.TolerateExitCodes = codes
	}
}

// WithStubbedBinaries writes stub executables that exit 0 for the provided
// names and prepends them to PATH. If names is empty, the configured encoder,
// probe, and backup tools are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{b.cfg.Encoder.Command, b.cfg.Probe.Command, b.cfg.Backup.Command}
		}
		for _, name := range names {
			writeStub(b, name, "exit 0\n")
		}
	}
}

// WithStubScript installs an executable named name on PATH running the given
// shell body.
func WithStubScript(name, body string) ConfigOption {
	return func(b *configBuilder) {
		writeStub(b, name, body)
	}
}

func writeStub(b *configBuilder, name, body string) {
	binDir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		b.t.Fatalf("write stub %s: %v", name, err)
	}

	path := os.Getenv("PATH")
	if !strings.HasPrefix(path, binDir+string(os.PathListSeparator)) {
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+path)
	}
}

// BaseDir returns the temp root backing cfg.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.WorkDir
}
