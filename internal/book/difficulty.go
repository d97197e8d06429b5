package book

import "strings"

// Difficulty levels stored on documents.
const (
	DifficultyBeginner     = "Beginner"
	DifficultyIntermediate = "Intermediate"
	DifficultyAdvanced     = "Advanced"
	DifficultyExpert       = "Expert"
)

var difficultyLevels = []string{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced, DifficultyExpert}

// NormalizeDifficulty maps free-form model output such as "beginner to
// intermediate" onto a known level by case-insensitive prefix. Anything
// unrecognized is Intermediate.
func NormalizeDifficulty(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, lvl := range difficultyLevels {
		if strings.HasPrefix(s, strings.ToLower(lvl)) {
			return lvl
		}
	}
	return DifficultyIntermediate
}
