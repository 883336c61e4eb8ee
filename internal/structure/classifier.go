package structure

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/quizgest/internal/doctree"
)

// Stats summarizes the font sizes of a whole document.
type Stats struct {
	MeanFontSize    float64
	HeaderThreshold float64
}

// HeaderRatio is the multiple of the mean font size a fragment must reach to
// count as a heading.
const HeaderRatio = 1.2

// MaxHeadingChars bounds heading length; longer runs are body text.
const MaxHeadingChars = 100

// ComputeStats returns the mean font size over fragments with a positive size.
func ComputeStats(frags []doctree.Fragment) Stats {
	var sum float64
	n := 0
	for _, f := range frags {
		if f.FontSize > 0 {
			sum += f.FontSize
			n++
		}
	}
	if n == 0 {
		return Stats{}
	}
	mean := sum / float64(n)
	return Stats{MeanFontSize: mean, HeaderThreshold: HeaderRatio * mean}
}

// Classifier decides whether a fragment opens a new section.
type Classifier interface {
	Classify(f doctree.Fragment, stats Stats) (isHeading bool, level int)
}

// FontSizeClassifier flags large, short, non-numeric fragments as headings.
// It is a heuristic: documents that style headings with weight or color
// instead of size will not be split.
type FontSizeClassifier struct{}

var numericOnly = regexp.MustCompile(`^[0-9]+$`)

func (FontSizeClassifier) Classify(f doctree.Fragment, stats Stats) (bool, int) {
	if stats.MeanFontSize <= 0 || f.FontSize < stats.HeaderThreshold {
		return false, 0
	}
	text := strings.TrimSpace(f.Text)
	if text == "" || utf8.RuneCountInString(text) >= MaxHeadingChars {
		return false, 0
	}
	if numericOnly.MatchString(text) {
		return false, 0
	}
	ratio := f.FontSize / stats.MeanFontSize
	switch {
	case ratio >= 1.5:
		return true, 1
	case ratio >= 1.2:
		return true, 2
	default:
		return true, 3
	}
}
