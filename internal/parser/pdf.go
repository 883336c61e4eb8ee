package parser

import (
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/quizgest/internal/doctree"
)

// PDFExtractor handles PDF files. It reads glyph positions with the Go
// library first and can fall back to pdftotext, which yields text without
// font sizes (every fragment gets BodyFontSize).
type PDFExtractor struct {
	FallbackPdftotext bool
}

func (p *PDFExtractor) Extract(r io.Reader, _ string) ([]doctree.Fragment, error) {
	// ledongthuc/pdf and pdftotext both want a file on disk.
	tmp, err := os.CreateTemp("", "quizgest-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	frags, err := extractPDFFragments(tmpPath)
	if (err != nil || len(frags) == 0) && p.FallbackPdftotext {
		frags, err = extractPdftotext(tmpPath)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	return frags, nil
}

func extractPDFFragments(path string) ([]doctree.Fragment, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var frags []doctree.Fragment
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		// PDF y grows upward; read top to bottom.
		sort.SliceStable(rows, func(a, b int) bool { return rows[a].Position > rows[b].Position })
		for _, row := range rows {
			frags = append(frags, rowFragments(i, row.Content)...)
		}
	}
	return frags, nil
}

// rowFragments merges the glyphs of one text row into fragments, starting a
// new fragment wherever the font size changes.
func rowFragments(page int, glyphs []pdflib.Text) []doctree.Fragment {
	var out []doctree.Fragment
	var sb strings.Builder
	var cur doctree.Fragment
	var prevEnd float64

	flush := func() {
		cur.Text = strings.Join(strings.Fields(sb.String()), " ")
		if cur.Text != "" {
			out = append(out, cur)
		}
		sb.Reset()
	}

	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		if sb.Len() > 0 && math.Abs(g.FontSize-cur.FontSize) > 0.5 {
			flush()
		}
		if sb.Len() == 0 {
			cur = doctree.Fragment{Page: page, X: g.X, Y: g.Y, FontSize: g.FontSize}
		} else if g.X-prevEnd > 0.2*g.FontSize {
			sb.WriteByte(' ')
		}
		sb.WriteString(g.S)
		prevEnd = g.X + g.W
		cur.Width = prevEnd - cur.X
	}
	flush()
	return out
}

func extractPdftotext(path string) ([]doctree.Fragment, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}

	var frags []doctree.Fragment
	for i, pageText := range strings.Split(string(out), "\f") {
		var l layout
		for _, para := range splitParagraphs(pageText) {
			l.para(para)
		}
		for _, f := range l.frags {
			f.Page = i + 1
			frags = append(frags, f)
		}
	}
	return frags, nil
}

func splitParagraphs(s string) []string {
	var out []string
	var cur []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(cur) > 0 {
				out = append(out, strings.Join(cur, "\n"))
				cur = nil
			}
			continue
		}
		cur = append(cur, strings.TrimSpace(line))
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, "\n"))
	}
	return out
}
