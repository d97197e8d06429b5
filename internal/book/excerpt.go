package book

// Head returns the first n runes of s.
func Head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Tail returns the last n runes of s.
func Tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// Excerpts is the head, middle and tail view of a transcript the outline
// stage reads. Middle and Tail are empty for transcripts of size or less.
type Excerpts struct {
	Head   string
	Middle string
	Tail   string
}

// TranscriptExcerpts cuts three windows of size runes from transcript.
func TranscriptExcerpts(transcript string, size int) Excerpts {
	r := []rune(transcript)
	if len(r) <= size {
		return Excerpts{Head: transcript}
	}
	mid := len(r) / 2
	lo := max(mid-size/2, 0)
	hi := min(mid+size/2, len(r))
	return Excerpts{
		Head:   string(r[:size]),
		Middle: string(r[lo:hi]),
		Tail:   string(r[len(r)-size:]),
	}
}
