package chunking

import (
	"strings"
	"testing"
)

func TestSplitEmptyAndWhitespaceInput(t *testing.T) {
	s := NewSplitter(800, 200, true)

	for _, input := range []string{"", "   ", "\n\n\t  \n"} {
		if got := s.Split(input); len(got) != 0 {
			t.Fatalf("Split(%q) = %d passages, want 0", input, len(got))
		}
	}
}

func TestSplitShortInputReturnsSinglePassage(t *testing.T) {
	s := NewSplitter(800, 200, true)
	input := "  A short note about nothing in particular.  "

	got := s.Split(input)
	if len(got) != 1 {
		t.Fatalf("expected 1 passage, got %d", len(got))
	}
	if got[0].Text != strings.TrimSpace(Normalize(input)) {
		t.Fatalf("passage text = %q, want trimmed input", got[0].Text)
	}
	if got[0].SequenceIndex != 0 {
		t.Fatalf("sequence index = %d, want 0", got[0].SequenceIndex)
	}
	if got[0].CharEnd <= got[0].CharStart {
		t.Fatalf("invalid range [%d, %d)", got[0].CharStart, got[0].CharEnd)
	}
}

func TestSplitNormalizesLineEndings(t *testing.T) {
	s := NewSplitter(800, 200, true)

	got := s.Split("one\r\ntwo\r\r\n\n\nthree")
	if len(got) != 1 {
		t.Fatalf("expected 1 passage, got %d", len(got))
	}
	if strings.Contains(got[0].Text, "\r") {
		t.Fatalf("carriage returns survived normalization: %q", got[0].Text)
	}
	if strings.Contains(got[0].Text, "\n\n\n") {
		t.Fatalf("newline runs not collapsed: %q", got[0].Text)
	}
}

func TestSplitProgressGuaranteeOverlapAtLeastTarget(t *testing.T) {
	long := strings.Repeat("abcdefghij ", 200)

	for _, overlap := range []int{100, 150, 300} {
		s := &Splitter{TargetSize: 100, Overlap: overlap, PreserveBoundaries: false}
		got := s.Split(long)
		if len(got) == 0 {
			t.Fatalf("overlap=%d: expected passages", overlap)
		}
		if len(got) > len(long) {
			t.Fatalf("overlap=%d: runaway passage count %d", overlap, len(got))
		}
		for i := 1; i < len(got); i++ {
			if got[i].CharStart <= got[i-1].CharStart {
				t.Fatalf("overlap=%d: CharStart not strictly increasing at %d", overlap, i)
			}
		}
	}
}

func TestSplitCoverageNoGaps(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("This is sentence number one. Here is another one to follow it. ")
	}
	input := b.String()

	s := NewSplitter(400, 100, true)
	got := s.Split(input)
	if len(got) < 2 {
		t.Fatalf("expected multiple passages, got %d", len(got))
	}

	covered := got[0].CharEnd
	if got[0].CharStart != 0 {
		t.Fatalf("first passage starts at %d, want 0", got[0].CharStart)
	}
	for i := 1; i < len(got); i++ {
		if got[i].CharStart > covered {
			t.Fatalf("gap before passage %d: covered to %d, next starts at %d", i, covered, got[i].CharStart)
		}
		if got[i].CharEnd > covered {
			covered = got[i].CharEnd
		}
	}
	total := len([]rune(Normalize(input)))
	if covered < total {
		t.Fatalf("covered %d of %d runes", covered, total)
	}
}

func TestSplitSequenceIndicesContiguous(t *testing.T) {
	s := NewSplitter(300, 50, true)
	got := s.Split(strings.Repeat("Sentence goes here. ", 100))
	for i, p := range got {
		if p.SequenceIndex != i {
			t.Fatalf("passage %d has sequence index %d", i, p.SequenceIndex)
		}
	}
}

func TestSplitSnapsToSentenceBoundary(t *testing.T) {
	// Sentences of 40 runes each; a 100-rune window with boundaries
	// preserved should end on a terminator, not mid-sentence.
	sentence := "Exactly forty characters live in here!! "
	input := strings.Repeat(sentence, 20)

	s := NewSplitter(100, 20, true)
	got := s.Split(input)
	if len(got) < 2 {
		t.Fatalf("expected multiple passages, got %d", len(got))
	}
	first := got[0]
	if !strings.HasSuffix(first.Text, "!") {
		t.Fatalf("first passage does not end on a sentence terminator: %q", first.Text)
	}
}

func TestSplitTwoThousandCharScenario(t *testing.T) {
	// 2,000 characters, target 800, overlap 200: three passages with
	// monotonically increasing starts, consecutive pairs overlapping
	// by at least 150 runes (boundary snapping may shave up to 100).
	var b strings.Builder
	for b.Len() < 2000 {
		b.WriteString("The quick brown fox jumps over the lazy dog near the river bank. ")
	}
	input := b.String()[:2000]

	s := NewSplitter(800, 200, true)
	got := s.Split(input)
	if len(got) != 3 {
		t.Fatalf("expected 3 passages, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].CharStart <= got[i-1].CharStart {
			t.Fatalf("CharStart not increasing at %d", i)
		}
		overlap := got[i-1].CharEnd - got[i].CharStart
		if overlap < 150 {
			t.Fatalf("overlap between %d and %d is %d, want >= 150", i-1, i, overlap)
		}
	}
}

func TestNewSplitterDefaults(t *testing.T) {
	s := NewSplitter(0, -5, false)
	if s.TargetSize != 800 {
		t.Fatalf("default target size = %d", s.TargetSize)
	}
	if s.Overlap != 0 {
		t.Fatalf("negative overlap not clamped: %d", s.Overlap)
	}
}
