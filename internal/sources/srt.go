package sources

import (
	"regexp"
	"strings"

	"github.com/anatolykoptev/go_book/internal/engine"
)

var (
	srtIndexRE  = regexp.MustCompile(`^\d+$`)
	srtTimingRE = regexp.MustCompile(`^\d{2}:\d{2}:\d{2},\d{3} --> \d{2}:\d{2}:\d{2},\d{3}$`)
)

// CleanSRT turns SRT captions into plain text: cue numbers, timing lines
// and blank lines are dropped, the rest joined with single spaces.
func CleanSRT(srt string) string {
	var parts []string
	for _, line := range strings.Split(srt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || srtIndexRE.MatchString(line) || srtTimingRE.MatchString(line) {
			continue
		}
		parts = append(parts, line)
	}
	return engine.NormalizeSpace(strings.Join(parts, " "))
}
