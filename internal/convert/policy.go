package convert

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"libconv/internal/fileutil"
	"libconv/internal/ledger"
	"libconv/internal/media/ffprobe"
	"libconv/internal/services"
)

// markerSizeLimit bounds how large a do-not-process marker file can be.
// Anything bigger is a real backup.
const markerSizeLimit = 50

// IsTrailer reports whether backupPath carries the trailer marker.
func IsTrailer(backupPath, marker string) bool {
	return marker != "" && strings.Contains(backupPath, marker)
}

// ShouldRevert applies the accept/revert policy: a conversion that did not
// shrink the file is undone unless the file is a trailer.
func ShouldRevert(preSize, postSize int64, backupPath, trailerMarker string) bool {
	return postSize >= preSize && !IsTrailer(backupPath, trailerMarker)
}

// MarkerContent is the body written at a backup location after a revert.
// The CRLF terminator keeps new markers byte-identical to those already
// present in existing backup trees.
func MarkerContent(marker string) []byte {
	return []byte(marker + "\r\n")
}

// RevertedSize is recorded as originalFileSize for reverted records: the
// size of the marker left behind at the backup location.
func RevertedSize(marker string) int64 {
	return int64(len(MarkerContent(marker)))
}

// IsMarked reports whether path holds a do-not-process marker.
func IsMarked(path, marker string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() > markerSizeLimit {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return string(bytes.TrimSpace(data)) == marker
}

// revertJob deletes the transcoded output, moves the backup back to the
// source path, and leaves a marker at the backup location.
func revertJob(plan JobPlan, marker string) error {
	if err := removeIfExists(plan.OutputPath); err != nil {
		return services.Wrap(services.ErrRevert, "revert", "remove output", plan.OutputPath, err)
	}
	if err := fileutil.MoveFile(plan.BackupPath, plan.SourcePath); err != nil {
		return services.Wrap(services.ErrRevert, "revert", "restore backup", plan.BackupPath, err)
	}
	if err := os.WriteFile(plan.BackupPath, MarkerContent(marker), 0o644); err != nil {
		return services.Wrap(services.ErrRevert, "revert", "write marker", plan.BackupPath, err)
	}
	return nil
}

// rollbackJob puts the source back after a failed transcode or probe. The
// partial output is discarded and the backup returns to the source path when
// the source is no longer there.
func rollbackJob(plan JobPlan) error {
	if _, err := os.Stat(plan.SourcePath); err == nil && plan.OutputPath != plan.SourcePath {
		if err := removeIfExists(plan.OutputPath); err != nil {
			return services.Wrap(services.ErrRevert, "rollback", "remove output", plan.OutputPath, err)
		}
		return nil
	}
	if _, err := os.Stat(plan.BackupPath); err != nil {
		return services.Wrap(services.ErrRevert, "rollback", "locate backup", plan.BackupPath, err)
	}
	if err := removeIfExists(plan.OutputPath); err != nil {
		return services.Wrap(services.ErrRevert, "rollback", "remove output", plan.OutputPath, err)
	}
	if err := fileutil.MoveFile(plan.BackupPath, plan.SourcePath); err != nil {
		return services.Wrap(services.ErrRevert, "rollback", "restore backup", plan.BackupPath, err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// acceptedUpdate records the transcoded file in place of the original.
func acceptedUpdate(plan JobPlan, meta ffprobe.Metadata, postSize int64) ledger.Update {
	return ledger.Update{
		{Column: ledger.ColumnPath, Value: plan.OutputPath},
		{Column: ledger.ColumnExt, Value: strings.TrimPrefix(filepath.Ext(plan.OutputPath), ".")},
		{Column: ledger.ColumnVideoCodec, Value: meta.VideoCodec},
		{Column: ledger.ColumnAudioCodec, Value: meta.AudioCodec},
		{Column: ledger.ColumnWidth, Value: meta.Width},
		{Column: ledger.ColumnHeight, Value: meta.Height},
		{Column: ledger.ColumnDurationSeconds, Value: meta.DurationSeconds},
		{Column: ledger.ColumnFormattedDuration, Value: meta.FormattedDuration},
		{Column: ledger.ColumnSize, Value: postSize},
		{Column: ledger.ColumnKbps, Value: meta.Kbps},
		{Column: ledger.ColumnBackupPath, Value: plan.BackupPath},
		{Column: ledger.ColumnPreConversionSize, Value: plan.OriginalSize},
	}
}

// revertedUpdate keeps the original metadata and flags the record as reverted.
func revertedUpdate(plan JobPlan, rec ledger.FileRecord, marker string) ledger.Update {
	return ledger.Update{
		{Column: ledger.ColumnPath, Value: rec.Path},
		{Column: ledger.ColumnExt, Value: rec.Ext},
		{Column: ledger.ColumnVideoCodec, Value: rec.VideoCodec},
		{Column: ledger.ColumnAudioCodec, Value: rec.AudioCodec},
		{Column: ledger.ColumnWidth, Value: rec.Width},
		{Column: ledger.ColumnHeight, Value: rec.Height},
		{Column: ledger.ColumnDurationSeconds, Value: rec.DurationSeconds},
		{Column: ledger.ColumnFormattedDuration, Value: rec.FormattedDuration},
		{Column: ledger.ColumnSize, Value: rec.Size},
		{Column: ledger.ColumnKbps, Value: rec.Kbps},
		{Column: ledger.ColumnBackupPath, Value: plan.BackupPath},
		{Column: ledger.ColumnPreConversionSize, Value: RevertedSize(marker)},
	}
}
