package config

const (
	defaultWorkDir             = "."
	defaultLedgerFile          = "fileList.csv"
	defaultSelectionFile       = "queriedFileList.csv"
	defaultCommandLog          = "commandExport.json"
	defaultCancelSentinel      = "cancel"
	defaultLogDir              = "~/.local/share/libconv/logs"
	defaultStateDir            = "~/.local/share/libconv"
	defaultMinFileSize         = 5_000_000
	defaultBackupRoot          = "originalStreams"
	defaultBackupCommand       = "rsync"
	defaultBackupMinFreeGiB    = 0
	defaultEncoderCommand      = "ffmpeg"
	defaultOutputExt           = ".mkv"
	defaultProbeCommand        = "ffprobe"
	defaultTrailerMarker       = "-trailer."
	defaultDoNotProcess        = "DO NOT PROCESS"
	defaultThrottleSeconds     = 5
	defaultPublishCommand      = "rsync"
	defaultPublishLogFile      = "copyNewFilesToEmby.txt"
	defaultNotifyTimeout       = 10
	defaultPowerCommand        = "systemctl"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
	defaultHistoryEnabled      = true
	defaultMediaServerEnabled  = false
	defaultNotifyRunStarted    = true
	defaultNotifyRunCompleted  = true
	defaultNotifyErrorsEnabled = true
)

func defaultBackupArgs() []string {
	return []string{"--remove-source-files", "--ignore-existing", "--times", "{source}", "{backup_dir}/"}
}

func defaultEncoderArgs() []string {
	return []string{
		"-n", "-hwaccel", "cuda",
		"-i", "{input}",
		"-c:v", "hevc_nvenc",
		"-preset", "p6", "-tune", "hq", "-rc", "vbr", "-cq:v", "28", "-b:v", "0k",
		"-maxrate:v", "3000k", "-bufsize", "20M", "-rc-lookahead", "20", "-bf", "3",
		"-c:a", "copy",
		"{output}",
	}
}

func defaultPublishArgs() []string {
	return []string{"-a", "--update", "{source_dir}/", "{dest_dir}/"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:        defaultWorkDir,
			LedgerFile:     defaultLedgerFile,
			SelectionFile:  defaultSelectionFile,
			CommandLog:     defaultCommandLog,
			CancelSentinel: defaultCancelSentinel,
			LogDir:         defaultLogDir,
			StateDir:       defaultStateDir,
		},
		Selection: Selection{
			MinFileSize: defaultMinFileSize,
		},
		Backup: Backup{
			Root:       defaultBackupRoot,
			Command:    defaultBackupCommand,
			Args:       defaultBackupArgs(),
			MinFreeGiB: defaultBackupMinFreeGiB,
		},
		Encoder: Encoder{
			Command:   defaultEncoderCommand,
			Args:      defaultEncoderArgs(),
			OutputExt: defaultOutputExt,
		},
		Probe: Probe{
			Command: defaultProbeCommand,
		},
		Policy: Policy{
			TrailerMarker:   defaultTrailerMarker,
			DoNotProcess:    defaultDoNotProcess,
			ThrottleSeconds: defaultThrottleSeconds,
		},
		Publish: Publish{
			Command: defaultPublishCommand,
			Args:    defaultPublishArgs(),
			LogFile: defaultPublishLogFile,
		},
		MediaServer: MediaServer{
			Enabled: defaultMediaServerEnabled,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			RunStarted:     defaultNotifyRunStarted,
			RunCompleted:   defaultNotifyRunCompleted,
			Errors:         defaultNotifyErrorsEnabled,
		},
		Power: Power{
			Command: defaultPowerCommand,
			Args:    []string{"suspend"},
		},
		History: History{
			Enabled: defaultHistoryEnabled,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
