package ledger

import (
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"

	"libconv/internal/filter"
)

// Column names as they appear in the CSV header.
const (
	ColumnID                = "id"
	ColumnPath              = "filePath"
	ColumnExt               = "fileExt"
	ColumnSize              = "fileSize"
	ColumnVideoCodec        = "videoCodecName"
	ColumnAudioCodec        = "audioCodecName"
	ColumnWidth             = "frameWidth"
	ColumnHeight            = "frameHeight"
	ColumnDurationSeconds   = "durationSeconds"
	ColumnFormattedDuration = "formattedDuration"
	ColumnKbps              = "kbps"
	ColumnBackupPath        = "originalFileBackup"
	ColumnPreConversionSize = "originalFileSize"
)

// Columns lists the known columns in canonical order.
var Columns = []string{
	ColumnID,
	ColumnPath,
	ColumnExt,
	ColumnSize,
	ColumnVideoCodec,
	ColumnAudioCodec,
	ColumnWidth,
	ColumnHeight,
	ColumnDurationSeconds,
	ColumnFormattedDuration,
	ColumnKbps,
	ColumnBackupPath,
	ColumnPreConversionSize,
}

// RequiredColumns must be present in the header and populated in every row.
var RequiredColumns = []string{
	ColumnID,
	ColumnPath,
	ColumnSize,
	ColumnVideoCodec,
	ColumnDurationSeconds,
}

var numericColumns = map[string]bool{
	ColumnID:                true,
	ColumnSize:              true,
	ColumnWidth:             true,
	ColumnHeight:            true,
	ColumnDurationSeconds:   true,
	ColumnKbps:              true,
	ColumnPreConversionSize: true,
}

// Schema describes the filterable columns.
func Schema() filter.Schema {
	schema := make(filter.Schema, len(Columns))
	for _, column := range Columns {
		if numericColumns[column] {
			schema[column] = filter.KindNumber
		} else {
			schema[column] = filter.KindString
		}
	}
	return schema
}

// FileRecord is one ledger row.
type FileRecord struct {
	ID                int64
	Path              string
	Ext               string
	Size              int64
	VideoCodec        string
	AudioCodec        string
	Width             int
	Height            int
	DurationSeconds   int
	FormattedDuration string
	Kbps              int64
	BackupPath        string
	PreConversionSize int64

	// Extra holds columns the ledger does not interpret, keyed by header name.
	Extra map[string]string
}

// Converted reports whether the record has been through a conversion run.
func (r *FileRecord) Converted() bool {
	return r.BackupPath != "" || r.PreConversionSize != 0
}

// Clone returns a deep copy.
func (r *FileRecord) Clone() *FileRecord {
	clone := *r
	clone.Extra = maps.Clone(r.Extra)
	return &clone
}

// FieldValue implements filter.Record.
func (r *FileRecord) FieldValue(column string) filter.Value {
	switch column {
	case ColumnID:
		return filter.NumberValue(float64(r.ID))
	case ColumnPath:
		return filter.StringValue(r.Path)
	case ColumnExt:
		return filter.StringValue(r.Ext)
	case ColumnSize:
		return filter.NumberValue(float64(r.Size))
	case ColumnVideoCodec:
		return filter.StringValue(r.VideoCodec)
	case ColumnAudioCodec:
		return filter.StringValue(r.AudioCodec)
	case ColumnWidth:
		return filter.NumberValue(float64(r.Width))
	case ColumnHeight:
		return filter.NumberValue(float64(r.Height))
	case ColumnDurationSeconds:
		return filter.NumberValue(float64(r.DurationSeconds))
	case ColumnFormattedDuration:
		return filter.StringValue(r.FormattedDuration)
	case ColumnKbps:
		return filter.NumberValue(float64(r.Kbps))
	case ColumnBackupPath:
		return filter.StringValue(r.BackupPath)
	case ColumnPreConversionSize:
		if r.PreConversionSize == 0 {
			return filter.Value{Null: true}
		}
		return filter.NumberValue(float64(r.PreConversionSize))
	}
	return filter.Value{Null: true}
}

// cell renders a column the way it is written to CSV.
func (r *FileRecord) cell(column string) string {
	switch column {
	case ColumnID:
		return strconv.FormatInt(r.ID, 10)
	case ColumnPath:
		return r.Path
	case ColumnExt:
		return r.Ext
	case ColumnSize:
		return strconv.FormatInt(r.Size, 10)
	case ColumnVideoCodec:
		return r.VideoCodec
	case ColumnAudioCodec:
		return r.AudioCodec
	case ColumnWidth:
		return strconv.Itoa(r.Width)
	case ColumnHeight:
		return strconv.Itoa(r.Height)
	case ColumnDurationSeconds:
		return strconv.Itoa(r.DurationSeconds)
	case ColumnFormattedDuration:
		return r.FormattedDuration
	case ColumnKbps:
		return strconv.FormatInt(r.Kbps, 10)
	case ColumnBackupPath:
		return r.BackupPath
	case ColumnPreConversionSize:
		if r.PreConversionSize == 0 {
			return ""
		}
		return strconv.FormatInt(r.PreConversionSize, 10)
	}
	return r.Extra[column]
}

// set parses raw into column. Unknown columns land in Extra.
func (r *FileRecord) set(column, raw string) error {
	if !numericColumns[column] {
		switch column {
		case ColumnPath:
			r.Path = raw
		case ColumnExt:
			r.Ext = raw
		case ColumnVideoCodec:
			r.VideoCodec = raw
		case ColumnAudioCodec:
			r.AudioCodec = raw
		case ColumnFormattedDuration:
			r.FormattedDuration = raw
		case ColumnBackupPath:
			r.BackupPath = raw
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]string)
			}
			r.Extra[column] = raw
		}
		return nil
	}

	n, err := parseCount(raw)
	if err != nil {
		return fmt.Errorf("column %s: %w", column, err)
	}
	switch column {
	case ColumnID:
		r.ID = n
	case ColumnSize:
		r.Size = n
	case ColumnWidth:
		r.Width = int(n)
	case ColumnHeight:
		r.Height = int(n)
	case ColumnDurationSeconds:
		r.DurationSeconds = int(n)
	case ColumnKbps:
		r.Kbps = n
	case ColumnPreConversionSize:
		r.PreConversionSize = n
	}
	return nil
}

// parseCount accepts integers and integral floats such as "1234.0"; blank
// and NaN cells read as zero.
func parseCount(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "nan") {
		return 0, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative value %d", n)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative value %s", raw)
	}
	if f >= math.MaxInt64 {
		return 0, fmt.Errorf("value out of range: %s", raw)
	}
	return int64(math.Floor(f)), nil
}
