package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/quizgest/internal/doctree"
)

// TextExtractor handles plain text files. Each blank-line separated
// paragraph becomes one body fragment; plain text has no headings.
type TextExtractor struct{}

func (p *TextExtractor) Extract(r io.Reader, _ string) ([]doctree.Fragment, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var l layout
	var current strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			l.para(current.String())
			current.Reset()
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	l.para(current.String())
	return l.frags, nil
}
