// Package progress turns the engine's diagnostic stream into completion
// estimates. Parsing is pluggable so the log format coupling stays in one place.
package progress

import (
	"errors"
	"regexp"
	"strconv"
)

// ErrDurationProbe is returned when no duration line was found in the probe output.
var ErrDurationProbe = errors.New("could not retrieve audio duration")

// Parser extracts timestamps from engine log lines.
type Parser interface {
	// ParseDuration returns the total media duration announced by line, in seconds.
	ParseDuration(line string) (float64, bool)
	// ParseTime returns the elapsed media time reported by line, in seconds.
	ParseTime(line string) (float64, bool)
}

var (
	durationRe = regexp.MustCompile(`Duration: (\d{2}):(\d{2}):(\d{2}\.\d{2})`)
	timeRe     = regexp.MustCompile(`time=(\d{2}):(\d{2}):(\d{2}\.\d{2})`)
)

// FFmpegParser understands ffmpeg's "Duration: HH:MM:SS.ff" and
// "time=HH:MM:SS.ff" diagnostic lines.
type FFmpegParser struct{}

// ParseDuration implements Parser.
func (FFmpegParser) ParseDuration(line string) (float64, bool) {
	return matchTimestamp(durationRe, line)
}

// ParseTime implements Parser.
func (FFmpegParser) ParseTime(line string) (float64, bool) {
	return matchTimestamp(timeRe, line)
}

func matchTimestamp(re *regexp.Regexp, line string) (float64, bool) {
	m := re.FindStringSubmatch(line)
	if len(m) < 4 {
		return 0, false
	}
	hours, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, false
	}
	return hours*3600 + minutes*60 + seconds, true
}

// ScanDuration returns the first duration announced in lines.
func ScanDuration(lines []string, parser Parser) (float64, error) {
	if parser == nil {
		parser = FFmpegParser{}
	}
	for _, line := range lines {
		if d, ok := parser.ParseDuration(line); ok {
			return d, nil
		}
	}
	return 0, ErrDurationProbe
}

// Percent maps elapsed media time to a completion percentage:
// min(elapsed/total*100, 100), never below 0. A non-positive total yields 0.
func Percent(elapsed, total float64) float64 {
	if total <= 0 || elapsed <= 0 {
		return 0
	}
	p := elapsed / total * 100
	if p > 100 {
		return 100
	}
	return p
}

// Verify interface implementation at compile time.
var _ Parser = FFmpegParser{}
