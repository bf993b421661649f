// Package restore undoes a conversion by hand: the archived original
// replaces the converted file, or a leftover do-not-process marker is
// cleared.
package restore

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"libconv/internal/fileutil"
	"libconv/internal/services"
)

// PlaceholderLimit is the largest backup treated as a marker rather than media.
const PlaceholderLimit = 50

// Action describes what Restore did.
type Action string

const (
	ActionRestored           Action = "restored"
	ActionPlaceholderRemoved Action = "placeholder_removed"
)

// Result reports the outcome of Restore.
type Result struct {
	Action Action
	// Path is where the original now lives, for ActionRestored.
	Path string
	// Placeholder is the marker text that was removed, for ActionPlaceholderRemoved.
	Placeholder string
}

// Restore replaces target with backup. Both must exist. A backup larger than
// PlaceholderLimit bytes is moved into target's directory under its own name
// after target is removed. A smaller backup is a marker left by a revert: it
// is removed and target stays untouched.
func Restore(backup, target string) (Result, error) {
	backupInfo, err := os.Stat(backup)
	if err != nil {
		return Result{}, missing(backup, err)
	}
	if _, err := os.Stat(target); err != nil {
		return Result{}, missing(target, err)
	}
	if backupInfo.IsDir() {
		return Result{}, services.Wrap(services.ErrValidation, "restore", "check backup", backup+" is a directory", nil)
	}

	if backupInfo.Size() <= PlaceholderLimit {
		data, err := os.ReadFile(backup)
		if err != nil {
			return Result{}, services.Wrap(services.ErrIO, "restore", "read placeholder", backup, err)
		}
		if err := os.Remove(backup); err != nil {
			return Result{}, services.Wrap(services.ErrIO, "restore", "remove placeholder", backup, err)
		}
		return Result{Action: ActionPlaceholderRemoved, Placeholder: string(bytes.TrimSpace(data))}, nil
	}

	dest := filepath.Join(filepath.Dir(target), filepath.Base(backup))
	if err := os.Remove(target); err != nil {
		return Result{}, services.Wrap(services.ErrIO, "restore", "remove converted file", target, err)
	}
	if err := fileutil.MoveFile(backup, dest); err != nil {
		return Result{}, services.Wrap(services.ErrRevert, "restore", "move backup",
			fmt.Sprintf("%s -> %s (converted file already removed)", backup, dest), err)
	}
	return Result{Action: ActionRestored, Path: dest}, nil
}

func missing(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrValidation, "restore", "check paths", "path is missing: "+path, nil)
	}
	return services.Wrap(services.ErrIO, "restore", "check paths", path, err)
}
