package book

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnrecognizedURL is returned when no known YouTube URL shape matches.
var ErrUnrecognizedURL = errors.New("unrecognized YouTube URL")

var (
	bareIDRE   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	videoURLRE = regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:[^#]*&)?v=|embed/|v/|shorts/|live/)|youtu\.be/)([A-Za-z0-9_-]{11})(?:[&?#/]|$)`)
)

// ExtractVideoID returns the 11-character video id in raw, which may be a
// bare id or any watch, short-link, embed, shorts or live URL.
func ExtractVideoID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if bareIDRE.MatchString(s) {
		return s, nil
	}
	if m := videoURLRE.FindStringSubmatch(s); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnrecognizedURL, raw)
}

// CanonicalURL returns the watch URL for a video id.
func CanonicalURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
