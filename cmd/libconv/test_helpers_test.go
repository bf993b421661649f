package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"libconv/internal/config"
	"libconv/internal/ledger"
	"libconv/internal/testsupport"
)

const (
	stubBackup  = "libconv-test-backup"
	stubEncoder = "libconv-test-encoder"
	stubProbe   = "libconv-test-ffprobe"
	stubPublish = "libconv-test-publish"
)

const probeJSON = `{"streams":[` +
	`{"index":0,"codec_type":"video","codec_name":"hevc","width":1920,"height":1080},` +
	`{"index":1,"codec_type":"audio","codec_name":"aac","channels":2}],` +
	`"format":{"duration":"600.000000","size":"300"}}`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	mediaDir   string
}

// setupCLITestEnv writes a config whose tools are shell stubs: the backup
// stub moves its first argument to its second, the encoder writes
// $LIBCONV_TEST_OUTPUT_SIZE zero bytes to its second argument, and the probe
// stub prints a fixed hevc/aac result.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("LIBCONV_NTFY_TOPIC", "")
	t.Setenv("LIBCONV_TEST_OUTPUT_SIZE", "300")

	cfg := testsupport.NewConfig(t,
		testsupport.WithStubScript(stubBackup, `mkdir -p "$(dirname "$2")" && mv "$1" "$2"`+"\n"),
		testsupport.WithStubScript(stubEncoder, strings.Join([]string{
			`echo "frame=  100 fps=50 q=28.0 size=    1024kB time=00:05:00.00 bitrate=2000kbits/s"`,
			`head -c "$LIBCONV_TEST_OUTPUT_SIZE" /dev/zero > "$2"`,
			"",
		}, "\n")),
		testsupport.WithStubScript(stubProbe, "cat <<'JSON'\n"+probeJSON+"\nJSON\n"),
		testsupport.WithStubScript(stubPublish, "exit 0\n"),
	)
	cfg.Backup.Command = stubBackup
	cfg.Backup.Args = []string{"{source}", "{backup}"}
	cfg.Encoder.Command = stubEncoder
	cfg.Encoder.Args = []string{"{input}", "{output}"}
	cfg.Probe.Command = stubProbe
	cfg.Publish.Command = stubPublish
	cfg.Power.Command = ""
	cfg.Power.Args = nil
	cfg.Selection.MinFileSize = 1000
	cfg.Logging.Level = "error"

	base := testsupport.BaseDir(cfg)
	env := &cliTestEnv{
		cfg:        cfg,
		configPath: filepath.Join(base, "libconv.toml"),
		baseDir:    base,
		mediaDir:   filepath.Join(base, "media", "tv"),
	}
	writeTestConfig(t, env.configPath, cfg)
	return env
}

// writeLedger creates one 4000 byte source file per name under
// <media>/Show/Season 1 and a matching ledger.
func (e *cliTestEnv) writeLedger(t *testing.T, names ...string) []ledger.FileRecord {
	t.Helper()
	records := make([]ledger.FileRecord, len(names))
	for i, name := range names {
		path := filepath.Join(e.mediaDir, "Show", "Season 1", name)
		testsupport.WriteFile(t, path, 4000)
		records[i] = testsupport.Record(int64(i+1), path, 4000)
	}
	testsupport.MustOpenLedger(t, e.cfg, records...)
	return records
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, int) {
	t.Helper()
	return runCLIContext(t, context.Background(), env, args...)
}

func runCLIContext(t *testing.T, ctx context.Context, env *cliTestEnv, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	flags := []string{}
	if env != nil {
		flags = append(flags, "--config", env.configPath)
	}
	code := execute(ctx, append(flags, args...), strings.NewReader(""), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}
