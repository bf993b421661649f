package procrun

import (
	"strconv"
	"strings"
)

// Progress is one encoder status line interpreted against the input duration.
type Progress struct {
	ElapsedSeconds int
	Percent        int
	// Malformed is set when the line carried a time field that could not be read.
	Malformed bool
}

// ParseProgress interprets an ffmpeg status line such as
// "frame= 1200 fps=240 q=28.0 size= 10240kB time=00:00:50.04 bitrate=...".
// Only lines starting with "frame" qualify. The eight characters following
// "time=" are read as HH:MM:SS; anything unreadable counts as zero elapsed.
// A non-positive total yields 0 percent.
func ParseProgress(line string, totalSeconds int) (Progress, bool) {
	line = strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(line, "frame") {
		return Progress{}, false
	}

	var progress Progress
	idx := strings.Index(line, "time=")
	if idx < 0 || idx+5+8 > len(line) {
		progress.Malformed = true
	} else if elapsed, ok := parseClock(line[idx+5 : idx+5+8]); ok {
		progress.ElapsedSeconds = elapsed
	} else {
		progress.Malformed = true
	}

	if totalSeconds > 0 {
		progress.Percent = int(float64(progress.ElapsedSeconds) / float64(totalSeconds) * 100)
	}
	return progress, true
}

func parseClock(value string) (int, bool) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	total := 0
	for _, part := range parts {
		if len(part) != 2 {
			return 0, false
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}
