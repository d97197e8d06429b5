package stages

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/anatolykoptev/go_book/internal/book"
	"github.com/anatolykoptev/go_book/internal/engine"
)

// Models rarely follow the requested shape exactly. The wire types below
// accept the common deviations and default everything missing to empty.

// flexString accepts a string, a number or a list of strings (joined by blank lines).
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	*f = flexString(flexText(b))
	return nil
}

// flexStrings accepts a list of strings or objects, or a single string.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '[' {
		if s := flexText(b); s != "" {
			*f = flexStrings{s}
		}
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return nil
	}
	out := make(flexStrings, 0, len(items))
	for _, it := range items {
		if s := flexText(it); s != "" {
			out = append(out, s)
		}
	}
	*f = out
	return nil
}

// flexInt accepts a number or a string with leading digits ("12 minutes").
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(flexText(b))
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	if end == 0 {
		return nil
	}
	if end > 0 {
		s = s[:end]
	}
	if n, err := strconv.Atoi(s); err == nil {
		*f = flexInt(n)
	} else if fl, err := strconv.ParseFloat(s, 64); err == nil {
		*f = flexInt(int(fl))
	}
	return nil
}

// textKeys are tried in order when an object stands where text was expected.
var textKeys = []string{"title", "name", "text", "point", "term", "content", "description"}

// flexText renders a JSON value as text.
func flexText(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return ""
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return ""
		}
		parts := make([]string, 0, len(items))
		for _, it := range items {
			if s := flexText(it); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n\n")
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(b, &obj); err != nil {
			return ""
		}
		for _, k := range textKeys {
			if v, ok := obj[k]; ok {
				return flexText(v)
			}
		}
		return ""
	default:
		return string(b)
	}
}

// jsonBlock strips fences and prose and returns the first JSON value.
func jsonBlock(raw string) ([]byte, error) {
	b := []byte(engine.StripFences(raw))
	if json.Valid(b) {
		return b, nil
	}
	if block := engine.ExtractJSON(b); block != nil && json.Valid(block) {
		return block, nil
	}
	return nil, fmt.Errorf("%w: no JSON value", ErrParse)
}

// orderedPair is one key of a JSON object, in document order.
type orderedPair struct {
	Key   string
	Value json.RawMessage
}

// decodeOrdered reads a JSON object preserving key order.
func decodeOrdered(b []byte) ([]orderedPair, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}
	var pairs []orderedPair
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, err
		}
		pairs = append(pairs, orderedPair{Key: key, Value: val})
	}
	return pairs, nil
}

type outlineWire struct {
	Summary         flexString  `json:"summary"`
	ChapterOutline  flexStrings `json:"chapter_outline"`
	KeyThemes       flexStrings `json:"key_themes"`
	TargetAudience  flexString  `json:"target_audience"`
	DifficultyLevel flexString  `json:"difficulty_level"`
}

func parseOutline(raw string) (book.Outline, error) {
	b, err := jsonBlock(raw)
	if err != nil {
		return book.Outline{}, err
	}
	var w outlineWire
	if err := json.Unmarshal(b, &w); err != nil {
		return book.Outline{}, fmt.Errorf("%w: outline: %v", ErrParse, err)
	}
	return book.Outline{
		Summary:         string(w.Summary),
		ChapterOutline:  []string(w.ChapterOutline),
		KeyThemes:       []string(w.KeyThemes),
		TargetAudience:  string(w.TargetAudience),
		DifficultyLevel: book.NormalizeDifficulty(string(w.DifficultyLevel)),
	}, nil
}

type fragmentWire struct {
	Title     flexString  `json:"title"`
	Content   flexString  `json:"content"`
	KeyPoints flexStrings `json:"key_points"`
	Examples  flexStrings `json:"examples"`
	Quotes    flexStrings `json:"quotes"`
}

func (w fragmentWire) fragment(title string) book.Fragment {
	return book.Fragment{
		Title:     title,
		Content:   string(w.Content),
		KeyPoints: []string(w.KeyPoints),
		Examples:  []string(w.Examples),
		Quotes:    []string(w.Quotes),
	}
}

// parseChapters reads {"Title": {content, key_points, examples, quotes}, ...}
// in key order. A {"chapters": ...} wrapper and a list of objects with a
// title field are accepted too.
func parseChapters(raw string) ([]book.Fragment, error) {
	b, err := jsonBlock(raw)
	if err != nil {
		return nil, err
	}
	return fragmentsFrom(b)
}

func fragmentsFrom(b []byte) ([]book.Fragment, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var items []fragmentWire
		if err := json.Unmarshal(b, &items); err != nil {
			return nil, fmt.Errorf("%w: chapters: %v", ErrParse, err)
		}
		out := make([]book.Fragment, 0, len(items))
		for _, it := range items {
			if t := string(it.Title); t != "" {
				out = append(out, it.fragment(t))
			}
		}
		return out, nil
	}

	pairs, err := decodeOrdered(b)
	if err != nil {
		return nil, fmt.Errorf("%w: chapters: %v", ErrParse, err)
	}
	if len(pairs) == 1 && strings.EqualFold(pairs[0].Key, "chapters") {
		return fragmentsFrom(pairs[0].Value)
	}

	out := make([]book.Fragment, 0, len(pairs))
	for _, p := range pairs {
		title := strings.TrimSpace(p.Key)
		if title == "" {
			continue
		}
		v := bytes.TrimSpace(p.Value)
		if len(v) > 0 && v[0] == '{' {
			var w fragmentWire
			if err := json.Unmarshal(v, &w); err != nil {
				continue
			}
			out = append(out, w.fragment(title))
			continue
		}
		if s := flexText(v); s != "" {
			out = append(out, book.Fragment{Title: title, Content: s})
		}
	}
	return out, nil
}

type termWire struct {
	Term       flexString `json:"term"`
	Definition flexString `json:"definition"`
}

// parseGlossary reads {"Term": "Definition"}, {"glossary": {...}} or
// {"glossary": [{"term", "definition"}]}.
func parseGlossary(raw string) (map[string]string, error) {
	b, err := jsonBlock(raw)
	if err != nil {
		return nil, err
	}
	return glossaryFrom(b)
}

func glossaryFrom(b []byte) (map[string]string, error) {
	b = bytes.TrimSpace(b)
	out := make(map[string]string)
	if len(b) > 0 && b[0] == '[' {
		var items []termWire
		if err := json.Unmarshal(b, &items); err != nil {
			return nil, fmt.Errorf("%w: glossary: %v", ErrParse, err)
		}
		for _, it := range items {
			if t := string(it.Term); t != "" {
				out[t] = string(it.Definition)
			}
		}
		return out, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, fmt.Errorf("%w: glossary: %v", ErrParse, err)
	}
	if inner, ok := obj["glossary"]; ok && len(obj) == 1 {
		return glossaryFrom(inner)
	}
	for term, def := range obj {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if d := bytes.TrimSpace(def); len(d) > 0 && d[0] == '{' {
			var w termWire
			if json.Unmarshal(d, &w) == nil && w.Definition != "" {
				out[term] = string(w.Definition)
				continue
			}
		}
		out[term] = flexText(def)
	}
	return out, nil
}

type readingWire struct {
	Title       flexString `json:"title"`
	Author      flexString `json:"author"`
	Source      flexString `json:"source"`
	Description flexString `json:"description"`
}

// parseReading reads a list of {title, author, description}, bare or under
// any single key of a wrapping object.
func parseReading(raw string) ([]book.ReadingItem, error) {
	b, err := jsonBlock(raw)
	if err != nil {
		return nil, err
	}
	if b[0] == '{' {
		pairs, err := decodeOrdered(b)
		if err != nil {
			return nil, fmt.Errorf("%w: further reading: %v", ErrParse, err)
		}
		b = nil
		for _, p := range pairs {
			if v := bytes.TrimSpace(p.Value); len(v) > 0 && v[0] == '[' {
				b = v
				break
			}
		}
		if b == nil {
			return []book.ReadingItem{}, nil
		}
	}
	var items []readingWire
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("%w: further reading: %v", ErrParse, err)
	}
	out := make([]book.ReadingItem, 0, len(items))
	for _, it := range items {
		if it.Title == "" {
			continue
		}
		author := it.Author
		if author == "" {
			author = it.Source
		}
		out = append(out, book.ReadingItem{
			Title:       string(it.Title),
			Author:      string(author),
			Description: string(it.Description),
		})
	}
	return out, nil
}

// parseTakeaways reads {"key_takeaways": [...]} or a bare list.
func parseTakeaways(raw string) ([]string, error) {
	b, err := jsonBlock(raw)
	if err != nil {
		return nil, err
	}
	if b[0] == '[' {
		var list flexStrings
		_ = json.Unmarshal(b, &list)
		return []string(list), nil
	}
	var w struct {
		KeyTakeaways flexStrings `json:"key_takeaways"`
		Takeaways    flexStrings `json:"takeaways"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: takeaways: %v", ErrParse, err)
	}
	if len(w.KeyTakeaways) == 0 {
		return []string(w.Takeaways), nil
	}
	return []string(w.KeyTakeaways), nil
}

type classificationWire struct {
	PrimaryCategory      flexString  `json:"primary_category"`
	Categories           flexStrings `json:"categories"`
	Tags                 flexStrings `json:"tags"`
	EstimatedReadingTime flexInt     `json:"estimated_reading_time"`
}

func parseClassification(raw string) (book.Classification, error) {
	b, err := jsonBlock(raw)
	if err != nil {
		return book.Classification{}, err
	}
	var w classificationWire
	if err := json.Unmarshal(b, &w); err != nil {
		return book.Classification{}, fmt.Errorf("%w: classification: %v", ErrParse, err)
	}
	c := book.Classification{
		PrimaryCategory:      string(w.PrimaryCategory),
		Categories:           []string(w.Categories),
		Tags:                 []string(w.Tags),
		EstimatedReadingTime: int(w.EstimatedReadingTime),
	}
	if c.PrimaryCategory == "" && len(c.Categories) > 0 {
		c.PrimaryCategory = c.Categories[0]
	}
	return c, nil
}
