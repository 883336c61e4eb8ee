package doctree

import "strings"

// Fragment is one positioned run of text produced by an extractor.
type Fragment struct {
	Text     string  `json:"text"`
	Page     int     `json:"page"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	FontSize float64 `json:"font_size"`
}

// Section is a heading plus the body text that follows it, in document order.
// Level is a prominence hint (1 = most prominent), not a parent pointer.
type Section struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Level     int        `json:"level"`
	Page      int        `json:"page"`
	Content   string     `json:"content"`
	Fragments []Fragment `json:"fragments,omitempty"`
}

// Render returns the section as it appears in the flattened document text.
func (s Section) Render() string {
	switch {
	case s.Title == "":
		return s.Content
	case s.Content == "":
		return s.Title
	default:
		return s.Title + "\n" + s.Content
	}
}

// Document is the result of structuring one source file.
type Document struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// SectionSeparator joins rendered sections in the flattened text.
const SectionSeparator = "\n\n"

// Text flattens the document into a single string. Chunk offsets and line
// markers refer to this string.
func (d *Document) Text() string {
	text, _ := d.Layout()
	return text
}

// Span locates a section inside the flattened text. Start and End are byte
// offsets; Section indexes Document.Sections.
type Span struct {
	Start   int
	End     int
	Section int
}

// Layout flattens the document and reports where each non-empty section
// landed. Sections that render empty get no span.
func (d *Document) Layout() (string, []Span) {
	var sb strings.Builder
	spans := make([]Span, 0, len(d.Sections))
	for i, s := range d.Sections {
		r := s.Render()
		if r == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(SectionSeparator)
		}
		start := sb.Len()
		sb.WriteString(r)
		spans = append(spans, Span{Start: start, End: sb.Len(), Section: i})
	}
	return sb.String(), spans
}

// Chunk is a token-bounded, contiguous slice of the flattened document text.
type Chunk struct {
	ID        string   `json:"id"`
	Index     int      `json:"index"`
	Title     string   `json:"title"`
	Text      string   `json:"text"`
	Tokens    int      `json:"tokens"`
	Keywords  []string `json:"keywords"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	PageStart int      `json:"page_start"`
	PageEnd   int      `json:"page_end"`
}
