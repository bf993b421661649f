package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file locations for the ledger, run artifacts, and logs.
// Relative ledger paths resolve against WorkDir.
type Paths struct {
	WorkDir        string `toml:"work_dir"`
	LedgerFile     string `toml:"ledger_file"`
	SelectionFile  string `toml:"selection_file"`
	CommandLog     string `toml:"command_log"`
	CancelSentinel string `toml:"cancel_sentinel"`
	LogDir         string `toml:"log_dir"`
	StateDir       string `toml:"state_dir"`
}

// Selection contains defaults applied to filter expressions.
type Selection struct {
	MinFileSize int64 `toml:"min_file_size"`
}

// Backup contains the archival copy step configuration. Args may reference
// {source}, {source_dir}, {backup}, {backup_dir}, and {file}.
// An empty TolerateExitCodes list tolerates every exit status of the copy tool.
type Backup struct {
	Root              string   `toml:"root"`
	Command           string   `toml:"command"`
	Args              []string `toml:"args"`
	MinFreeGiB        int      `toml:"min_free_gib"`
	TolerateExitCodes []int    `toml:"tolerate_exit_codes"`
}

// Encoder contains the transcode step configuration. Args must reference
// {input} and {output}.
type Encoder struct {
	Command        string   `toml:"command"`
	Args           []string `toml:"args"`
	OutputExt      string   `toml:"output_ext"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Probe contains the media inspection tool configuration.
type Probe struct {
	Command string `toml:"command"`
}

// Policy contains the accept/revert rules applied after a transcode.
type Policy struct {
	TrailerMarker   string `toml:"trailer_marker"`
	DoNotProcess    string `toml:"do_not_process"`
	ThrottleSeconds int    `toml:"throttle_seconds"`
}

// Publish contains the "copy converted files to production" sync step.
// Args may reference {source_dir} and {dest_dir}.
type Publish struct {
	Command      string   `toml:"command"`
	Args         []string `toml:"args"`
	SourcePrefix string   `toml:"source_prefix"`
	DestPrefix   string   `toml:"dest_prefix"`
	LogFile      string   `toml:"log_file"`
}

// MediaServer contains Emby/Jellyfin library refresh settings.
type MediaServer struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	APIKey  string `toml:"api_key"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunStarted     bool   `toml:"run_started"`
	RunCompleted   bool   `toml:"run_completed"`
	Errors         bool   `toml:"errors"`
}

// Power contains the end-of-run shutdown action.
type Power struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

// History contains the run history journal settings.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for libconv.
//
// Configuration sections by subsystem:
//   - Paths: ledger, selection, command log, sentinel, and log locations
//   - Selection: filter defaults (minimum file size)
//   - Backup: archival copy tool and backup root
//   - Encoder: transcode tool command line
//   - Probe: ffprobe binary
//   - Policy: trailer exemption and do-not-reprocess marker
//   - Publish: sync converted directories to production
//   - MediaServer: library refresh after publishing
//   - Notifications: ntfy push notification settings
//   - Power: shutdown/suspend command after a run
//   - History: SQLite run journal
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Selection     Selection     `toml:"selection"`
	Backup        Backup        `toml:"backup"`
	Encoder       Encoder       `toml:"encoder"`
	Probe         Probe         `toml:"probe"`
	Policy        Policy        `toml:"policy"`
	Publish       Publish       `toml:"publish"`
	MediaServer   MediaServer   `toml:"media_server"`
	Notifications Notifications `toml:"notifications"`
	Power         Power         `toml:"power"`
	History       History       `toml:"history"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/libconv/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if os.IsNotExist(err) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %q is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/libconv/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("libconv.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log and state directories. The backup root is
// created lazily per job because it may live on removable storage.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the location of the SQLite run journal.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the run lock file guarding the working directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.WorkDir, ".libconv.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// resolveIn expands pathValue and anchors relative values at base.
func resolveIn(base, pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" || strings.HasPrefix(pathValue, "~") || filepath.IsAbs(pathValue) {
		return expandPath(pathValue)
	}
	return expandPath(filepath.Join(base, pathValue))
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
