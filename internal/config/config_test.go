package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"libconv/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("LIBCONV_NTFY_TOPIC", "https://ntfy.example/libconv")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if cfg.Paths.WorkDir != wd {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wd)
	}
	if cfg.Paths.LedgerFile != filepath.Join(wd, "fileList.csv") {
		t.Fatalf("unexpected ledger file: %q", cfg.Paths.LedgerFile)
	}
	if cfg.Paths.SelectionFile != filepath.Join(wd, "queriedFileList.csv") {
		t.Fatalf("unexpected selection file: %q", cfg.Paths.SelectionFile)
	}
	if cfg.Paths.CancelSentinel != filepath.Join(wd, "cancel") {
		t.Fatalf("unexpected cancel sentinel: %q", cfg.Paths.CancelSentinel)
	}
	if cfg.Backup.Root != filepath.Join(wd, "originalStreams") {
		t.Fatalf("unexpected backup root: %q", cfg.Backup.Root)
	}
	wantLogDir := filepath.Join(tempHome, ".local", "share", "libconv", "logs")
	if cfg.Paths.LogDir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogDir)
	}
	if cfg.Selection.MinFileSize != 5_000_000 {
		t.Fatalf("unexpected min file size: %d", cfg.Selection.MinFileSize)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/libconv" {
		t.Fatalf("expected ntfy topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
	if cfg.MediaServer.Enabled {
		t.Fatal("expected media server disabled by default")
	}
	if cfg.HistoryPath() != filepath.Join(tempHome, ".local", "share", "libconv", "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath())
	}
	if cfg.LockPath() != filepath.Join(wd, ".libconv.lock") {
		t.Fatalf("unexpected lock path: %q", cfg.LockPath())
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("EMBY_API_KEY", "")

	workDir := filepath.Join(tempHome, "media")
	configPath := filepath.Join(tempHome, "custom.toml")
	content := strings.Join([]string{
		"[paths]",
		`work_dir = "~/media"`,
		`ledger_file = "inventory.csv"`,
		"",
		"[selection]",
		"min_file_size = 1000",
		"",
		"[encoder]",
		`output_ext = "MP4"`,
		"",
		"[media_server]",
		"enabled = true",
		`url = "http://emby.local:8096/"`,
		`api_key = "file-key"`,
		"",
		"[logging]",
		`format = "JSON"`,
	}, "\n")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.LedgerFile != filepath.Join(workDir, "inventory.csv") {
		t.Fatalf("unexpected ledger file: %q", cfg.Paths.LedgerFile)
	}
	if cfg.Selection.MinFileSize != 1000 {
		t.Fatalf("unexpected min file size: %d", cfg.Selection.MinFileSize)
	}
	if cfg.Encoder.OutputExt != ".mp4" {
		t.Fatalf("expected normalized output ext, got %q", cfg.Encoder.OutputExt)
	}
	if cfg.MediaServer.URL != "http://emby.local:8096" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.MediaServer.URL)
	}
	if cfg.MediaServer.APIKey != "file-key" {
		t.Fatalf("unexpected api key: %q", cfg.MediaServer.APIKey)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased log format, got %q", cfg.Logging.Format)
	}
	if len(cfg.Encoder.Args) == 0 {
		t.Fatal("expected default encoder args to be preserved")
	}
}

func TestMediaServerKeyFallsBackToEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("EMBY_API_KEY", "env-key")

	configPath := filepath.Join(tempHome, "config.toml")
	content := "[media_server]\nenabled = true\nurl = \"http://emby.local\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.MediaServer.APIKey != "env-key" {
		t.Fatalf("expected api key from env, got %q", cfg.MediaServer.APIKey)
	}
}

func TestLoadRejectsDirectory(t *testing.T) {
	if _, _, _, err := config.Load(t.TempDir()); err == nil {
		t.Fatal("expected error for directory config path")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "hevc_nvenc") {
		t.Fatalf("sample config missing encoder defaults: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Paths.LedgerFile != "fileList.csv" {
		t.Fatalf("unexpected sample ledger file: %q", cfg.Paths.LedgerFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"negative min size", func(c *config.Config) { c.Selection.MinFileSize = -1 }},
		{"encoder without input", func(c *config.Config) { c.Encoder.Args = []string{"-y", "{output}"} }},
		{"encoder without output", func(c *config.Config) { c.Encoder.Args = []string{"-i", "{input}"} }},
		{"backup without source", func(c *config.Config) { c.Backup.Args = []string{"{backup}"} }},
		{"negative timeout", func(c *config.Config) { c.Encoder.TimeoutSeconds = -5 }},
		{"media server without url", func(c *config.Config) {
			c.MediaServer.Enabled = true
			c.MediaServer.APIKey = "key"
		}},
		{"media server without key", func(c *config.Config) {
			c.MediaServer.Enabled = true
			c.MediaServer.URL = "http://emby"
		}},
		{"publish prefix without destination", func(c *config.Config) { c.Publish.SourcePrefix = "/src" }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"zero notify timeout", func(c *config.Config) { c.Notifications.RequestTimeout = 0 }},
		{"selection equals ledger", func(c *config.Config) { c.Paths.SelectionFile = c.Paths.LedgerFile }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
