package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"libconv/internal/services"
)

// NoAudio is recorded as the audio codec of files without an audio stream.
const NoAudio = "None"

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
	BitRate   string `json:"bit_rate"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Channels  int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Metadata is the normalized description of a media file.
type Metadata struct {
	VideoCodec        string
	AudioCodec        string
	Width             int
	Height            int
	DurationSeconds   int
	FormattedDuration string
	Kbps              int64
	SizeBytes         int64
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, services.Wrap(services.ErrProbe, "probe", "inspect", "empty path", nil)
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, services.Wrap(services.ErrProbe, "probe", "inspect", strings.TrimSpace(string(exitErr.Stderr)), err)
		}
		return Result{}, services.Wrap(services.ErrProbe, "probe", "inspect", "run "+binary, err)
	}
	return Parse(output)
}

// Parse decodes ffprobe JSON output.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, services.Wrap(services.ErrProbe, "probe", "parse", "", err)
	}
	return result, nil
}

// Probe inspects path and normalizes the result. sizeBytes is the file size
// measured by the caller and drives the bitrate calculation.
func Probe(ctx context.Context, binary, path string, sizeBytes int64) (Metadata, error) {
	result, err := Inspect(ctx, binary, path)
	if err != nil {
		return Metadata{}, err
	}
	return result.Metadata(sizeBytes)
}

// Metadata normalizes the result. The first video stream supplies codec and
// geometry; the first audio stream supplies the audio codec, or NoAudio.
func (r Result) Metadata(sizeBytes int64) (Metadata, error) {
	video, ok := r.firstStream("video")
	if !ok {
		return Metadata{}, services.Wrap(services.ErrProbe, "probe", "normalize", "no video stream", nil)
	}
	duration := r.DurationSeconds()
	if math.IsNaN(duration) || duration < 1 {
		return Metadata{}, services.Wrap(services.ErrProbe, "probe", "normalize",
			fmt.Sprintf("unusable duration %q", r.Format.Duration), nil)
	}
	if sizeBytes < 0 {
		return Metadata{}, services.Wrap(services.ErrProbe, "probe", "normalize", "negative size", nil)
	}

	seconds := int(duration)
	meta := Metadata{
		VideoCodec:        video.CodecName,
		AudioCodec:        NoAudio,
		Width:             video.Width,
		Height:            video.Height,
		DurationSeconds:   seconds,
		FormattedDuration: FormatDuration(seconds),
		Kbps:              Kbps(sizeBytes, seconds),
		SizeBytes:         sizeBytes,
	}
	if audio, ok := r.firstStream("audio"); ok && audio.CodecName != "" {
		meta.AudioCodec = audio.CodecName
	}
	return meta, nil
}

func (r Result) firstStream(codecType string) (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			return stream, true
		}
	}
	return Stream{}, false
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return r.countStreams("video")
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return r.countStreams("audio")
}

func (r Result) countStreams(codecType string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds, 0 when absent,
// or NaN when unparsable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// Kbps is size in kilobits per second of playback, floored.
func Kbps(sizeBytes int64, durationSeconds int) int64 {
	if durationSeconds <= 0 {
		return 0
	}
	return int64(math.Floor(float64(sizeBytes) * 8 / 1024 / float64(durationSeconds)))
}

// FormatDuration renders seconds as HH:MM:SS. Hours are not wrapped at 24.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds/60)%60, seconds%60)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
