package convert

import (
	"path/filepath"
	"strings"

	"libconv/internal/config"
	"libconv/internal/ledger"
	"libconv/internal/services"
)

// StepKind names one external command of a JobPlan.
type StepKind string

const (
	StepBackup    StepKind = "backup"
	StepTranscode StepKind = "transcode"
)

// Step is a fully expanded external command.
type Step struct {
	Kind    StepKind
	Command string
	Args    []string
}

// JobPlan describes how one ledger record is converted.
type JobPlan struct {
	FileID       int64
	SourcePath   string
	BackupPath   string
	OutputPath   string
	OriginalSize int64
	Steps        []Step
}

// Step returns the step of the given kind.
func (p JobPlan) Step(kind StepKind) (Step, bool) {
	for _, step := range p.Steps {
		if step.Kind == kind {
			return step, true
		}
	}
	return Step{}, false
}

// PlanSettings holds the configuration BuildPlan needs.
type PlanSettings struct {
	BackupRoot     string
	BackupCommand  string
	BackupArgs     []string
	EncoderCommand string
	EncoderArgs    []string
	OutputExt      string
}

// PlanSettingsFromConfig extracts plan settings from a normalized config.
func PlanSettingsFromConfig(cfg *config.Config) PlanSettings {
	return PlanSettings{
		BackupRoot:     cfg.Backup.Root,
		BackupCommand:  cfg.Backup.Command,
		BackupArgs:     cfg.Backup.Args,
		EncoderCommand: cfg.Encoder.Command,
		EncoderArgs:    cfg.Encoder.Args,
		OutputExt:      cfg.Encoder.OutputExt,
	}
}

// BuildPlan decomposes the record path into directory, parent, grandparent,
// and stem. The backup lands at <root>/<grandparent>/<parent>/<file> and the
// transcode reads the backup and writes <dir>/<stem><ext>.
func BuildPlan(rec ledger.FileRecord, settings PlanSettings) (JobPlan, error) {
	source := strings.TrimSpace(rec.Path)
	if source == "" {
		return JobPlan{}, services.Wrap(services.ErrValidation, "plan", "decompose path", "record has no file path", nil)
	}
	source = filepath.Clean(source)
	file := filepath.Base(source)
	stem := strings.TrimSuffix(file, filepath.Ext(file))
	if stem == "" || file == string(filepath.Separator) || file == "." {
		return JobPlan{}, services.Wrap(services.ErrValidation, "plan", "decompose path", "cannot derive a file name from "+source, nil)
	}
	if strings.TrimSpace(settings.BackupRoot) == "" {
		return JobPlan{}, services.Wrap(services.ErrConfiguration, "plan", "backup root", "backup root is not configured", nil)
	}

	dir := filepath.Dir(source)
	parent := pathComponent(dir)
	grandparent := pathComponent(filepath.Dir(dir))
	backupDir := filepath.Join(settings.BackupRoot, grandparent, parent)
	backup := filepath.Join(backupDir, file)

	ext := settings.OutputExt
	if ext == "" {
		ext = ".mkv"
	}
	output := filepath.Join(dir, stem+ext)

	vars := strings.NewReplacer(
		"{source}", source,
		"{source_dir}", dir,
		"{backup}", backup,
		"{backup_dir}", backupDir,
		"{file}", file,
		"{input}", backup,
		"{output}", output,
	)

	return JobPlan{
		FileID:       rec.ID,
		SourcePath:   source,
		BackupPath:   backup,
		OutputPath:   output,
		OriginalSize: rec.Size,
		Steps: []Step{
			{Kind: StepBackup, Command: settings.BackupCommand, Args: expandArgs(vars, settings.BackupArgs)},
			{Kind: StepTranscode, Command: settings.EncoderCommand, Args: expandArgs(vars, settings.EncoderArgs)},
		},
	}, nil
}

func expandArgs(vars *strings.Replacer, args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = vars.Replace(arg)
	}
	return out
}

// pathComponent returns the last element of dir, or "" at the filesystem root.
func pathComponent(dir string) string {
	base := filepath.Base(dir)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return base
}
