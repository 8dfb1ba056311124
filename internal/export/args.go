package export

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ContentTypeQuickTime is the media type of every export.
const ContentTypeQuickTime = "video/quicktime"

// engineOutput is the name of the encoded file inside the engine.
// It never clashes with a staged input.
const engineOutput = "output.mov"

// Codec profile shared by both encoding strategies.
var codecArgs = []string{
	"-c:v", "libx264",
	"-c:a", "aac",
	"-b:a", "512k",
	"-ar", "44100",
	"-ac", "2",
	"-pix_fmt", "yuv420p",
}

// OutputName returns the delivered file name for an audio track:
// its base name without extension, plus ".mov".
func OutputName(audioName string) string {
	base := filepath.Base(strings.ReplaceAll(audioName, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = "output"
	}
	return stem + ".mov"
}

// formatSeconds renders a duration the shortest way that round-trips.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

// MotionClipArgs loops the clip indefinitely under the audio and truncates
// the result to total seconds.
func MotionClipArgs(clip, audio string, total float64, output string) []string {
	args := []string{
		"-stream_loop", "-1",
		"-i", clip,
		"-i", audio,
		"-t", formatSeconds(total),
		"-shortest",
	}
	args = append(args, codecArgs...)
	return append(args, output)
}

// ImageSequenceArgs shows each image for an equal slice of total seconds,
// concatenates the slices and muxes the audio track.
func ImageSequenceArgs(images []string, audio string, total float64, output string) []string {
	n := len(images)
	if n == 0 {
		return nil
	}
	slice := formatSeconds(total / float64(n))

	args := make([]string, 0, 6*n+32)
	var filter strings.Builder
	for i, img := range images {
		args = append(args, "-loop", "1", "-t", slice, "-i", img)
		fmt.Fprintf(&filter, "[%d:v]", i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=1:a=0[outv]", n)

	args = append(args,
		"-i", audio,
		"-filter_complex", filter.String(),
		"-map", "[outv]",
		"-map", fmt.Sprintf("%d:a", n),
	)
	args = append(args, codecArgs...)
	return append(args,
		"-movflags", "+faststart",
		"-shortest",
		"-t", formatSeconds(total),
		output,
	)
}

// ProbeArgs inspects the audio track. The run exits with an error since it
// names no output; only its diagnostic lines matter.
func ProbeArgs(audio string) []string {
	return []string{"-i", audio}
}
