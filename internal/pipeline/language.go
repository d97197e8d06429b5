package pipeline

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"

	"github.com/anatolykoptev/go_book/internal/book"
)

// LanguageDetector returns the ISO-639-1 code of text, or "" when unsure.
type LanguageDetector interface {
	Detect(text string) string
}

// detectSample bounds how much transcript is fed to the detector.
const detectSample = 4000

var detectorLanguages = []lingua.Language{
	lingua.English, lingua.Spanish, lingua.Portuguese, lingua.French,
	lingua.German, lingua.Italian, lingua.Dutch, lingua.Russian,
	lingua.Ukrainian, lingua.Polish, lingua.Turkish, lingua.Arabic,
	lingua.Hindi, lingua.Japanese, lingua.Korean, lingua.Chinese,
}

// Lingua detects languages with lingua-go. The model is built on first use.
type Lingua struct {
	once     sync.Once
	detector lingua.LanguageDetector
}

// NewLingua returns a lazily built detector.
func NewLingua() *Lingua { return &Lingua{} }

func (l *Lingua) Detect(text string) string {
	text = strings.TrimSpace(book.Head(text, detectSample))
	if text == "" {
		return ""
	}
	l.once.Do(func() {
		l.detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(detectorLanguages...).
			WithLowAccuracyMode().
			Build()
	})
	lang, ok := l.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
