package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizePolicy()
	c.normalizePublish()
	c.normalizeMediaServer()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}

	relative := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"paths.ledger_file", &c.Paths.LedgerFile, defaultLedgerFile},
		{"paths.selection_file", &c.Paths.SelectionFile, defaultSelectionFile},
		{"paths.command_log", &c.Paths.CommandLog, defaultCommandLog},
		{"paths.cancel_sentinel", &c.Paths.CancelSentinel, defaultCancelSentinel},
		{"backup.root", &c.Backup.Root, defaultBackupRoot},
		{"publish.log_file", &c.Publish.LogFile, defaultPublishLogFile},
	}
	for _, field := range relative {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		if *field.value, err = resolveIn(c.Paths.WorkDir, *field.value); err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
	}

	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Backup.Command = strings.TrimSpace(c.Backup.Command)
	if c.Backup.Command == "" {
		c.Backup.Command = defaultBackupCommand
	}
	if len(c.Backup.Args) == 0 {
		c.Backup.Args = defaultBackupArgs()
	}

	c.Encoder.Command = strings.TrimSpace(c.Encoder.Command)
	if c.Encoder.Command == "" {
		c.Encoder.Command = defaultEncoderCommand
	}
	if len(c.Encoder.Args) == 0 {
		c.Encoder.Args = defaultEncoderArgs()
	}
	ext := strings.TrimSpace(c.Encoder.OutputExt)
	if ext == "" {
		ext = defaultOutputExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	c.Encoder.OutputExt = strings.ToLower(ext)

	c.Probe.Command = strings.TrimSpace(c.Probe.Command)
	if c.Probe.Command == "" {
		c.Probe.Command = defaultProbeCommand
	}

	c.Power.Command = strings.TrimSpace(c.Power.Command)
}

func (c *Config) normalizePolicy() {
	if c.Policy.TrailerMarker == "" {
		c.Policy.TrailerMarker = defaultTrailerMarker
	}
	if c.Policy.DoNotProcess == "" {
		c.Policy.DoNotProcess = defaultDoNotProcess
	}
}

func (c *Config) normalizePublish() {
	c.Publish.Command = strings.TrimSpace(c.Publish.Command)
	if c.Publish.Command == "" {
		c.Publish.Command = defaultPublishCommand
	}
	if len(c.Publish.Args) == 0 {
		c.Publish.Args = defaultPublishArgs()
	}
	if c.Publish.SourcePrefix != "" {
		c.Publish.SourcePrefix = filepath.Clean(c.Publish.SourcePrefix)
	}
	if c.Publish.DestPrefix != "" {
		c.Publish.DestPrefix = filepath.Clean(c.Publish.DestPrefix)
	}
}

func (c *Config) normalizeMediaServer() {
	c.MediaServer.URL = strings.TrimRight(strings.TrimSpace(c.MediaServer.URL), "/")
	c.MediaServer.APIKey = strings.TrimSpace(c.MediaServer.APIKey)
	if c.MediaServer.APIKey == "" {
		if value, ok := os.LookupEnv("EMBY_API_KEY"); ok {
			c.MediaServer.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("LIBCONV_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
