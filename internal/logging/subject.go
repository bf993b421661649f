package logging

import "strings"

// FormatSubject builds the file/stage subject string used in console output.
func FormatSubject(fileID, stage string) string {
	fileID = strings.TrimSpace(fileID)
	stage = strings.TrimSpace(stage)
	switch {
	case fileID != "" && stage != "":
		return "File #" + fileID + " · " + stage
	case fileID != "":
		return "File #" + fileID
	default:
		return stage
	}
}
