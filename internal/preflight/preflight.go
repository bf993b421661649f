package preflight

import (
	"context"

	"libconv/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// Options selects which checks apply.
type Options struct {
	// Execute is set for runs that invoke external tools. Plan-only runs
	// skip the tool, backup, and free-space checks.
	Execute bool
	// Publish adds the sync tool and media server checks.
	Publish bool
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckLedgerFile(cfg.Paths.LedgerFile),
		CheckDirectoryAccess("Working directory", cfg.Paths.WorkDir),
	}

	if opts.Execute {
		results = append(results, CheckCreatableDirectory("Backup root", cfg.Backup.Root))
		results = append(results, CheckFreeSpace(ctx, "Backup free space", cfg.Backup.Root, cfg.Backup.MinFreeGiB))
		results = append(results, CheckBinaries(toolRequirements(cfg))...)
	}

	if opts.Publish {
		results = append(results, CheckBinaries([]Requirement{{
			Name:        "Publish tool",
			Command:     cfg.Publish.Command,
			Description: "Required to sync converted files to production",
		}})...)
		if cfg.MediaServer.Enabled {
			results = append(results, CheckMediaServer(ctx, cfg.MediaServer.URL, cfg.MediaServer.APIKey))
		}
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}

func toolRequirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{
			Name:        "FFprobe",
			Command:     cfg.Probe.Command,
			Description: "Required to verify transcoded files",
		},
		{
			Name:        "Encoder",
			Command:     cfg.Encoder.Command,
			Description: "Required for transcoding",
		},
		{
			Name:        "Backup tool",
			Command:     cfg.Backup.Command,
			Description: "Required to archive originals before transcoding",
		},
	}
	if cfg.Power.Command != "" {
		reqs = append(reqs, Requirement{
			Name:        "Power action",
			Command:     cfg.Power.Command,
			Description: "Used by --shutdown",
			Optional:    true,
		})
	}
	return reqs
}
