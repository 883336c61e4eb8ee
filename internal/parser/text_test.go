package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/quizgest/internal/doctree"
)

// words joins fragment texts with single spaces.
func words(frags []doctree.Fragment) string {
	parts := make([]string, len(frags))
	for i, f := range frags {
		parts[i] = f.Text
	}
	return strings.Join(parts, " ")
}

func TestTextExtractor_Paragraphs(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	frags, err := (&TextExtractor{}).Extract(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "First paragraph line one. First paragraph line two. Second paragraph. Third paragraph."
	if got := words(frags); got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	for i, f := range frags {
		if f.FontSize != BodyFontSize {
			t.Errorf("fragment %d font size = %v, want %v", i, f.FontSize, BodyFontSize)
		}
		if f.Page != 1 {
			t.Errorf("fragment %d page = %d, want 1", i, f.Page)
		}
		if i > 0 && f.Y < frags[i-1].Y {
			t.Errorf("fragment %d moves up the page", i)
		}
	}
}

func TestTextExtractor_LineAndParagraphSpacing(t *testing.T) {
	frags, err := (&TextExtractor{}).Extract(strings.NewReader("a b\nc\n\nd"), "x.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frags) != 4 {
		t.Fatalf("expected 4 fragments, got %d", len(frags))
	}
	if frags[0].Y != frags[1].Y {
		t.Error("words of one line should share a baseline")
	}
	if frags[1].X <= frags[0].X {
		t.Error("second word should sit right of the first")
	}
	if gap := frags[2].Y - frags[1].Y; gap != BodyFontSize {
		t.Errorf("line gap = %v, want %v", gap, BodyFontSize)
	}
	if gap := frags[3].Y - frags[2].Y; gap <= 1.5*BodyFontSize {
		t.Errorf("paragraph gap = %v, want more than %v", gap, 1.5*BodyFontSize)
	}
}

func TestTextExtractor_BlankLinesCollapse(t *testing.T) {
	input := "First.\n\n\n   \n\nSecond."
	frags, err := (&TextExtractor{}).Extract(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frags) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(frags))
	}
}

func TestTextExtractor_Empty(t *testing.T) {
	frags, err := (&TextExtractor{}).Extract(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frags) != 0 {
		t.Errorf("expected no fragments, got %d", len(frags))
	}
}
