package pipeline

import (
	"errors"
	"fmt"

	"github.com/anatolykoptev/go_book/internal/book"
)

// Run stages recorded on failure, in addition to the content stage names.
const (
	StageMetadata   = "metadata"
	StageTranscript = "transcript"
	StagePersist    = "persist"
)

// ErrEmptyTranscript is returned when the transcript source yields no text.
var ErrEmptyTranscript = errors.New("pipeline: transcript is empty")

// ProcessingError is a failed run. RecordID points at the stored error
// record; it is empty when that record could not be written.
type ProcessingError struct {
	VideoURL string
	VideoID  string
	Stage    string
	RecordID string
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing %s failed at %s: %v", e.VideoID, e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// IsIdentification reports whether err means the caller passed a URL that
// names no YouTube video.
func IsIdentification(err error) bool {
	return errors.Is(err, book.ErrUnrecognizedURL)
}
