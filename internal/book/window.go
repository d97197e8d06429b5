package book

// OutlineWindow returns the half-open range [start, end) of outline entries
// relevant to chunk index of total. Consecutive windows overlap so a chapter
// can collect fragments from neighbouring chunks.
func OutlineWindow(index, total, outlineLen int) (start, end int) {
	if outlineLen <= 3 || total <= 0 {
		return 0, outlineLen
	}
	if index == 0 {
		return 0, min(3, outlineLen)
	}
	if index == total-1 {
		return max(outlineLen-3, 0), outlineLen
	}

	progress := float64(index+1) / float64(total)
	start = int(progress * float64(outlineLen) * 0.8)
	start = max(0, min(start, outlineLen-1))
	end = int(progress*float64(outlineLen)*1.2) + 1
	end = max(start+1, min(end, outlineLen))
	return start, end
}

// SelectOutline returns the outline entries for a chunk.
func SelectOutline(outline []string, index, total int) []string {
	start, end := OutlineWindow(index, total, len(outline))
	return outline[start:end]
}
