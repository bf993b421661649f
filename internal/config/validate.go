package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSelection(); err != nil {
		return err
	}
	if err := c.validateBackup(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validatePolicy(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := c.validateMediaServer(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.LedgerFile == c.Paths.SelectionFile {
		return errors.New("paths.selection_file must differ from paths.ledger_file")
	}
	if c.Paths.CommandLog == c.Paths.LedgerFile || c.Paths.CommandLog == c.Paths.SelectionFile {
		return errors.New("paths.command_log must differ from the ledger and selection files")
	}
	return nil
}

func (c *Config) validateSelection() error {
	if c.Selection.MinFileSize < 0 {
		return errors.New("selection.min_file_size must be >= 0")
	}
	return nil
}

func (c *Config) validateBackup() error {
	if !argsReference(c.Backup.Args, "{source}") {
		return errors.New("backup.args must reference {source}")
	}
	if !argsReference(c.Backup.Args, "{backup}", "{backup_dir}") {
		return errors.New("backup.args must reference {backup} or {backup_dir}")
	}
	if c.Backup.MinFreeGiB < 0 {
		return errors.New("backup.min_free_gib must be >= 0")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if !argsReference(c.Encoder.Args, "{input}") {
		return errors.New("encoder.args must reference {input}")
	}
	if !argsReference(c.Encoder.Args, "{output}") {
		return errors.New("encoder.args must reference {output}")
	}
	if c.Encoder.TimeoutSeconds < 0 {
		return errors.New("encoder.timeout_seconds must be >= 0 (0 disables the timeout)")
	}
	return nil
}

func (c *Config) validatePolicy() error {
	if c.Policy.ThrottleSeconds < 0 {
		return errors.New("policy.throttle_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validatePublish() error {
	if c.Publish.SourcePrefix != "" && c.Publish.DestPrefix == "" {
		return errors.New("publish.dest_prefix must be set when publish.source_prefix is set")
	}
	if !argsReference(c.Publish.Args, "{source_dir}") || !argsReference(c.Publish.Args, "{dest_dir}") {
		return errors.New("publish.args must reference {source_dir} and {dest_dir}")
	}
	return nil
}

func (c *Config) validateMediaServer() error {
	if !c.MediaServer.Enabled {
		return nil
	}
	if strings.TrimSpace(c.MediaServer.URL) == "" {
		return errors.New("media_server.url must be set when media_server.enabled is true")
	}
	if strings.TrimSpace(c.MediaServer.APIKey) == "" {
		return errors.New("media_server.api_key must be set when media_server.enabled is true (or set EMBY_API_KEY)")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	return ensurePositiveMap(map[string]int{
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0 (0 keeps every run log)")
	}
	return nil
}

func argsReference(args []string, placeholders ...string) bool {
	return slices.ContainsFunc(args, func(arg string) bool {
		for _, placeholder := range placeholders {
			if strings.Contains(arg, placeholder) {
				return true
			}
		}
		return false
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
