package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// consoleTime is the timestamp layout of console log lines.
const consoleTime = time.DateTime

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Local().Format(consoleTime)
}

// attrString renders v without quoting, for header fields such as the
// component and file id.
func attrString(v slog.Value) string {
	return renderValue(v.Resolve())
}

// formatValue renders v for a key=value pair, quoting text that would break
// the pair apart.
func formatValue(v slog.Value) string {
	v = v.Resolve()
	s := renderValue(v)
	switch v.Kind() {
	case slog.KindString, slog.KindAny:
		if needsQuotes(s) {
			return strconv.Quote(s)
		}
	}
	return s
}

func renderValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return formatTimestamp(v.Time())
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r <= ' ' || r == '=' || r == '"' {
			return true
		}
	}
	return false
}
