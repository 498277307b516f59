package chunking

import (
	"regexp"
	"strings"

	"github.com/kirillkom/knowledge-retrieval/internal/core/domain"
)

// boundaryRadius is how far (in runes) a window edge may move to land
// on a sentence terminator or paragraph break.
const boundaryRadius = 100

var multiNewline = regexp.MustCompile(`\n{3,}`)

type Splitter struct {
	TargetSize         int
	Overlap            int
	PreserveBoundaries bool
}

func NewSplitter(targetSize, overlap int, preserveBoundaries bool) *Splitter {
	if targetSize <= 0 {
		targetSize = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Splitter{
		TargetSize:         targetSize,
		Overlap:            overlap,
		PreserveBoundaries: preserveBoundaries,
	}
}

// Split cuts normalized text into overlapping passages. Offsets are
// rune positions into the normalized text; sequence indices are
// contiguous from zero and passages are ordered by CharStart.
func (s *Splitter) Split(text string) []domain.Passage {
	normalized := Normalize(text)
	if strings.TrimSpace(normalized) == "" {
		return nil
	}

	runes := []rune(normalized)
	if len(runes) <= s.TargetSize {
		return []domain.Passage{{
			Text:          strings.TrimSpace(normalized),
			SequenceIndex: 0,
			CharStart:     0,
			CharEnd:       len(runes),
		}}
	}

	var out []domain.Passage
	start := 0
	for start < len(runes) {
		nominal := start + s.TargetSize
		if nominal >= len(runes) {
			out = appendPassage(out, runes, start, len(runes))
			break
		}

		end := nominal
		if s.PreserveBoundaries {
			end = s.snapBoundary(runes, start, nominal)
		}
		out = appendPassage(out, runes, start, end)

		next := start + s.TargetSize - s.Overlap
		if next <= start {
			// Progress guarantee for overlap >= target size.
			next = end
		}
		if next > end {
			// Boundary snapping pulled the edge left of the nominal
			// advance; starting beyond it would leave a gap.
			next = end
		}
		if len(runes)-next < s.Overlap {
			// Remaining tail sits inside the previous passage's
			// trailing overlap.
			break
		}
		start = next
	}
	return out
}

func appendPassage(out []domain.Passage, runes []rune, start, end int) []domain.Passage {
	if end <= start {
		return out
	}
	text := strings.TrimSpace(string(runes[start:end]))
	if text == "" {
		return out
	}
	return append(out, domain.Passage{
		Text:          text,
		SequenceIndex: len(out),
		CharStart:     start,
		CharEnd:       end,
	})
}

// snapBoundary moves the nominal right edge to the nearest sentence
// terminator within boundaryRadius, falling back to the nearest
// paragraph break, falling back to the nominal position.
func (s *Splitter) snapBoundary(runes []rune, start, nominal int) int {
	if pos, ok := nearest(runes, start, nominal, isSentenceEnd); ok {
		return pos
	}
	if pos, ok := nearest(runes, start, nominal, isParagraphBreak); ok {
		return pos
	}
	return nominal
}

// nearest scans outward from the nominal position, preferring the
// closest match in either direction. A match at rune i means the
// passage ends at i+1 (the terminator is included).
func nearest(runes []rune, start, nominal int, match func([]rune, int) bool) (int, bool) {
	for delta := 0; delta <= boundaryRadius; delta++ {
		right := nominal + delta
		if right < len(runes) && right > start && match(runes, right) {
			return right + 1, true
		}
		left := nominal - delta
		if delta > 0 && left > start && left < len(runes) && match(runes, left) {
			return left + 1, true
		}
	}
	return 0, false
}

func isSentenceEnd(runes []rune, i int) bool {
	switch runes[i] {
	case '.', '!', '?':
	default:
		return false
	}
	if i+1 >= len(runes) {
		return true
	}
	next := runes[i+1]
	return next == ' ' || next == '\t' || next == '\n'
}

func isParagraphBreak(runes []rune, i int) bool {
	return runes[i] == '\n' && i+1 < len(runes) && runes[i+1] == '\n'
}

// Normalize unifies line endings and collapses runs of three or more
// newlines down to two.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return multiNewline.ReplaceAllString(text, "\n\n")
}
