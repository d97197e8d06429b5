package transcribe

const (
	// singleRequestMs is the duration below which audio goes out in one request.
	singleRequestMs = 600_000
	minChunkMs      = 60_000
	maxChunkMs      = 600_000
)

// Segment is a half-open slice of audio in milliseconds.
type Segment struct {
	StartMs int64
	EndMs   int64
}

// Plan splits audio into transcription requests. Audio shorter than ten
// minutes is one segment. Longer audio is cut into pieces of roughly
// chunkBytes, assuming a constant bit rate, clamped to one to ten minutes.
func Plan(durationMs, sizeBytes, chunkBytes int64) []Segment {
	if durationMs <= 0 {
		return nil
	}
	if durationMs < singleRequestMs {
		return []Segment{{StartMs: 0, EndMs: durationMs}}
	}

	chunkMs := int64(maxChunkMs)
	if sizeBytes > 0 && chunkBytes > 0 {
		byteRate := float64(sizeBytes) / float64(durationMs)
		chunkMs = int64(float64(chunkBytes) / byteRate)
	}
	chunkMs = max(minChunkMs, min(chunkMs, maxChunkMs))

	segs := make([]Segment, 0, durationMs/chunkMs+1)
	for start := int64(0); start < durationMs; start += chunkMs {
		segs = append(segs, Segment{StartMs: start, EndMs: min(start+chunkMs, durationMs)})
	}
	return segs
}
