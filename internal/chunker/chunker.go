// Package chunker splits structured documents into token-bounded chunks.
//
// The ceiling always wins over the floor: a chunk still below the floor is
// topped up only with leading pieces of the next section that fit, then
// closed. The next section is never taken whole past the ceiling to reach the
// floor, so every chunk fits max_tokens_per_chunk and a chunk may stay below
// min_tokens_per_chunk when nothing more fits.
package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/quizgest/internal/doctree"
)

// Method selects how boundaries are chosen.
type Method string

const (
	// MethodByHeading packs whole sections and only splits inside a section
	// when it cannot fit on its own.
	MethodByHeading Method = "by_heading"
	// MethodByParagraph ignores sections and packs paragraphs of the flat text.
	MethodByParagraph Method = "by_paragraph"
)

// ErrInvalidConfig is returned for a ceiling/floor/method combination that
// cannot be honoured.
var ErrInvalidConfig = errors.New("invalid chunking config")

// Config controls chunking behavior.
type Config struct {
	MaxTokens int    `json:"max_tokens_per_chunk"` // Ceiling per chunk.
	MinTokens int    `json:"min_tokens_per_chunk"` // Floor a chunk should reach before it is closed.
	Method    Method `json:"method"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens: 1500,
		MinTokens: 100,
		Method:    MethodByHeading,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.MaxTokens == 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.MinTokens == 0 && c.MaxTokens >= d.MinTokens {
		c.MinTokens = d.MinTokens
	}
	if c.Method == "" {
		c.Method = d.Method
	}
	return c
}

func (c Config) Validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: max_tokens_per_chunk must be positive", ErrInvalidConfig)
	}
	if c.MinTokens < 0 || c.MinTokens > c.MaxTokens {
		return fmt.Errorf("%w: min_tokens_per_chunk must be between 0 and %d", ErrInvalidConfig, c.MaxTokens)
	}
	switch c.Method {
	case MethodByHeading, MethodByParagraph:
		return nil
	default:
		return fmt.Errorf("%w: unknown method %q", ErrInvalidConfig, c.Method)
	}
}

// ChunkDocument splits a structured document into ordered chunks. Chunk
// bodies are contiguous slices of doc.Text(); only inter-chunk whitespace is
// lost.
func ChunkDocument(doc *doctree.Document, cfg Config) ([]doctree.Chunk, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	src, sections := doc.Layout()
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}

	p := &packer{src: src, max: cfg.MaxTokens, min: cfg.MinTokens}
	if cfg.Method == MethodByParagraph {
		p.add(span{0, len(src)})
	} else {
		for _, s := range sections {
			p.add(span{s.Start, s.End})
		}
	}
	p.emit()

	return buildChunks(src, p.out, doc, sections), nil
}

// ChunkText chunks plain text with no section structure.
func ChunkText(text string, cfg Config) ([]doctree.Chunk, error) {
	cfg.Method = MethodByParagraph
	doc := &doctree.Document{Sections: []doctree.Section{{Content: text}}}
	return ChunkDocument(doc, cfg)
}

type span struct {
	start, end int
}

// packer accumulates spans of src into chunks no larger than max tokens.
type packer struct {
	src string
	max int
	min int

	out []span
	cur span
	has bool
}

func (p *packer) tokens(start, end int) int {
	return EstimateTokens(p.src[start:end])
}

func (p *packer) fits(start, end int) bool {
	return p.tokens(start, end) <= p.max
}

func (p *packer) emit() {
	if p.has {
		p.out = append(p.out, p.cur)
		p.has = false
	}
}

// add appends one section span to the running chunk.
func (p *packer) add(s span) {
	s = trimSpan(p.src, s)
	if s.start >= s.end {
		return
	}
	if !p.has {
		p.place(s)
		return
	}
	if p.fits(p.cur.start, s.end) {
		p.cur.end = s.end
		return
	}
	if p.tokens(p.cur.start, p.cur.end) >= p.min {
		p.emit()
		p.place(s)
		return
	}

	// Below the floor: top the chunk up with the section's leading pieces,
	// close it, and carry the rest forward.
	atoms := atomize(p.src, s, p.max)
	i := 0
	for i < len(atoms) && p.fits(p.cur.start, atoms[i].end) {
		p.cur.end = atoms[i].end
		i++
	}
	p.emit()
	if i < len(atoms) {
		p.place(span{atoms[i].start, s.end})
	}
}

// place starts a new chunk from s, splitting s if it exceeds the ceiling.
// The last piece stays open so following sections can join it.
func (p *packer) place(s span) {
	if p.fits(s.start, s.end) {
		p.cur, p.has = s, true
		return
	}
	pieces := p.pack(atomize(p.src, s, p.max))
	p.out = append(p.out, pieces[:len(pieces)-1]...)
	p.cur, p.has = pieces[len(pieces)-1], true
}

// pack greedily merges consecutive atoms while they fit.
func (p *packer) pack(atoms []span) []span {
	var out []span
	cur := atoms[0]
	for _, a := range atoms[1:] {
		if p.fits(cur.start, a.end) {
			cur.end = a.end
			continue
		}
		out = append(out, cur)
		cur = a
	}
	return append(out, cur)
}

var (
	paragraphBreak = regexp.MustCompile(`\n[ \t]*\n\s*`)
	sentenceBreak  = regexp.MustCompile(`[.!?]["')\]]*\s+|\n\s*`)
	wordRun        = regexp.MustCompile(`\S+`)
)

// atomize breaks s into the coarsest pieces that each fit max: paragraphs,
// then sentences, then words. A single word longer than the ceiling is
// returned whole rather than cut.
func atomize(src string, s span, max int) []span {
	fits := func(a span) bool { return EstimateTokens(src[a.start:a.end]) <= max }

	var atoms []span
	for _, para := range splitSpan(src, s, paragraphBreak) {
		if fits(para) {
			atoms = append(atoms, para)
			continue
		}
		for _, sent := range splitSentences(src, para) {
			if fits(sent) {
				atoms = append(atoms, sent)
				continue
			}
			for _, m := range wordRun.FindAllStringIndex(src[sent.start:sent.end], -1) {
				atoms = append(atoms, span{sent.start + m[0], sent.start + m[1]})
			}
		}
	}
	return atoms
}

// splitSpan cuts s at every match of sep, dropping the separators.
func splitSpan(src string, s span, sep *regexp.Regexp) []span {
	var out []span
	start := s.start
	for _, m := range sep.FindAllStringIndex(src[s.start:s.end], -1) {
		if a := trimSpan(src, span{start, s.start + m[0]}); a.start < a.end {
			out = append(out, a)
		}
		start = s.start + m[1]
	}
	if a := trimSpan(src, span{start, s.end}); a.start < a.end {
		out = append(out, a)
	}
	return out
}

// splitSentences keeps closing punctuation with its sentence.
func splitSentences(src string, s span) []span {
	var out []span
	start := s.start
	for _, m := range sentenceBreak.FindAllStringIndex(src[s.start:s.end], -1) {
		end := s.start + m[0]
		if src[end] != '\n' {
			// Keep the terminator and any closing quotes or brackets.
			end = s.start + m[0] + len(strings.TrimRight(src[s.start+m[0]:s.start+m[1]], " \t\r\n"))
		}
		if a := trimSpan(src, span{start, end}); a.start < a.end {
			out = append(out, a)
		}
		start = s.start + m[1]
	}
	if a := trimSpan(src, span{start, s.end}); a.start < a.end {
		out = append(out, a)
	}
	return out
}

func trimSpan(src string, s span) span {
	for s.start < s.end && isSpace(src[s.start]) {
		s.start++
	}
	for s.end > s.start && isSpace(src[s.end-1]) {
		s.end--
	}
	return s
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r' || b == '\f' || b == '\v'
}

func buildChunks(src string, spans []span, doc *doctree.Document, sections []doctree.Span) []doctree.Chunk {
	chunks := make([]doctree.Chunk, 0, len(spans))
	for i, s := range spans {
		text := src[s.start:s.end]
		first := sectionAt(sections, s.start)
		last := sectionAt(sections, s.end-1)

		var headings []string
		for _, sec := range sections {
			if sec.Start >= s.start && sec.Start < s.end {
				if t := doc.Sections[sec.Section].Title; t != "" {
					headings = append(headings, t)
				}
			}
		}

		c := doctree.Chunk{
			ID:        fmt.Sprintf("chunk-%d", i+1),
			Index:     i,
			Title:     chunkTitle(text, doc, sections, first, s.start),
			Text:      text,
			Tokens:    EstimateTokens(text),
			Keywords:  ExtractKeywords(text, headings),
			StartLine: 1 + strings.Count(src[:s.start], "\n"),
			EndLine:   1 + strings.Count(src[:s.end], "\n"),
		}
		if first >= 0 {
			c.PageStart = doc.Sections[sections[first].Section].Page
		}
		if last >= 0 {
			c.PageEnd = doc.Sections[sections[last].Section].Page
		}
		chunks = append(chunks, c)
	}
	return chunks
}

// sectionAt returns the index into sections of the span containing offset.
func sectionAt(sections []doctree.Span, offset int) int {
	for i, s := range sections {
		if offset >= s.Start && offset < s.End {
			return i
		}
	}
	return -1
}

const maxTitleRunes = 80

func chunkTitle(text string, doc *doctree.Document, sections []doctree.Span, idx, start int) string {
	if idx >= 0 {
		if t := doc.Sections[sections[idx].Section].Title; t != "" {
			if sections[idx].Start == start {
				return t
			}
			return t + " (continued)"
		}
	}
	line, _, _ := strings.Cut(text, "\n")
	return truncateRunes(strings.TrimSpace(line), maxTitleRunes)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
