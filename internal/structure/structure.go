// Package structure turns positioned text fragments into a flat, ordered list
// of sections.
package structure

import (
	"fmt"
	"math"
	"strings"

	"github.com/dgallion1/quizgest/internal/doctree"
)

const (
	// UntitledDocument is used when page 1 carries no text.
	UntitledDocument = "Untitled Document"
	// IntroductionTitle names the section holding content before the first heading.
	IntroductionTitle = "Introduction"
)

// Structurer groups fragments under detected headings.
type Structurer struct {
	classifier Classifier
}

// New returns a Structurer. A nil classifier selects FontSizeClassifier.
func New(c Classifier) *Structurer {
	if c == nil {
		c = FontSizeClassifier{}
	}
	return &Structurer{classifier: c}
}

// Structure builds the document title and sections from fragments in reading order.
func (s *Structurer) Structure(frags []doctree.Fragment) *doctree.Document {
	doc := &doctree.Document{Title: documentTitle(frags)}
	stats := ComputeStats(frags)

	var current *sectionBuilder
	flush := func() {
		if current != nil {
			doc.Sections = append(doc.Sections, current.build(len(doc.Sections)))
		}
	}

	for _, f := range frags {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		if heading, level := s.classifier.Classify(f, stats); heading {
			flush()
			current = &sectionBuilder{
				title: strings.TrimSpace(f.Text),
				level: level,
				page:  f.Page,
				frags: []doctree.Fragment{f},
			}
			continue
		}
		if current == nil {
			current = &sectionBuilder{title: IntroductionTitle, level: 1, page: f.Page}
		}
		current.add(f)
	}
	flush()

	return doc
}

// documentTitle picks the largest-font fragment on page 1; the first one wins ties.
func documentTitle(frags []doctree.Fragment) string {
	title := ""
	best := math.Inf(-1)
	for _, f := range frags {
		if f.Page != 1 {
			continue
		}
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		if f.FontSize > best {
			best = f.FontSize
			title = text
		}
	}
	if title == "" {
		return UntitledDocument
	}
	return title
}

type sectionBuilder struct {
	title string
	level int
	page  int
	frags []doctree.Fragment // heading first, when there is one
	body  strings.Builder
	last  doctree.Fragment // previous body fragment
	text  bool             // body has text
}

func (b *sectionBuilder) add(f doctree.Fragment) {
	if b.text {
		b.body.WriteString(joiner(b.last, f))
	}
	b.body.WriteString(strings.TrimSpace(f.Text))
	b.frags = append(b.frags, f)
	b.last, b.text = f, true
}

func (b *sectionBuilder) build(index int) doctree.Section {
	return doctree.Section{
		ID:        fmt.Sprintf("sec-%d", index+1),
		Title:     b.title,
		Level:     b.level,
		Page:      b.page,
		Content:   b.body.String(),
		Fragments: b.frags,
	}
}

// joiner chooses the whitespace between two consecutive body fragments:
// a blank line for a page change or a large vertical gap, a newline for a
// new line, otherwise a space.
func joiner(prev, next doctree.Fragment) string {
	if prev.Page != next.Page {
		return "\n\n"
	}
	size := math.Max(prev.FontSize, next.FontSize)
	if size <= 0 {
		size = 1
	}
	gap := math.Abs(prev.Y - next.Y)
	switch {
	case gap > 1.5*size:
		return "\n\n"
	case gap > 0.5*size:
		return "\n"
	default:
		return " "
	}
}
