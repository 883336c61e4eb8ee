package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/quizgest/internal/doctree"
)

// BodyFontSize is the synthetic font size of non-heading text.
const BodyFontSize = 10.0

// headingSizes indexes synthetic font sizes by heading level 1..6.
var headingSizes = [...]float64{BodyFontSize, 28, 22, 18, 16, 16, 16}

// HeadingFontSize returns the synthetic font size for a heading level.
func HeadingFontSize(level int) float64 {
	if level < 1 || level >= len(headingSizes) {
		return headingSizes[len(headingSizes)-1]
	}
	return headingSizes[level]
}

// layout typesets blocks down a single page the way a PDF reader would see
// them: a heading is one fragment, body text is one fragment per word with
// words of a line sharing a baseline. Blocks sit three line heights apart,
// lines one apart, so the structurer rebuilds paragraphs and line breaks.
type layout struct {
	frags []doctree.Fragment
	y     float64
}

func (l *layout) heading(text string, level int) {
	l.block(text, HeadingFontSize(level))
}

// block places text as a single fragment of the given size.
func (l *layout) block(text string, size float64) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return
	}
	l.frags = append(l.frags, doctree.Fragment{
		Text:     text,
		Page:     1,
		Y:        l.y,
		Width:    wordWidth(text, size),
		FontSize: size,
	})
	l.y += 3 * size
}

func (l *layout) para(text string) {
	placed := false
	for _, line := range strings.Split(text, "\n") {
		x := 0.0
		words := strings.Fields(line)
		for _, w := range words {
			width := wordWidth(w, BodyFontSize)
			l.frags = append(l.frags, doctree.Fragment{
				Text:     w,
				Page:     1,
				X:        x,
				Y:        l.y,
				Width:    width,
				FontSize: BodyFontSize,
			})
			x += width + BodyFontSize/2
		}
		if len(words) > 0 {
			l.y += BodyFontSize
			placed = true
		}
	}
	if placed {
		l.y += 2 * BodyFontSize
	}
}

func wordWidth(s string, size float64) float64 {
	return float64(utf8.RuneCountInString(s)) * size / 2
}
