package parser

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/quizgest/internal/doctree"
)

// MarkdownExtractor handles Markdown files using goldmark.
type MarkdownExtractor struct{}

func (p *MarkdownExtractor) Extract(r io.Reader, _ string) ([]doctree.Fragment, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var l layout
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			l.heading(extractText(node, src), node.Level)
		case *ast.List:
			l.para(listText(node, src))
		default:
			l.para(extractText(n, src))
		}
	}
	return l.frags, nil
}

// listText renders list items one per line with "-" or "N." markers, so
// keyword extraction can still see them.
func listText(list *ast.List, src []byte) string {
	var lines []string
	i := list.Start
	if i == 0 {
		i = 1
	}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "-"
		if list.IsOrdered() {
			marker = strconv.Itoa(i) + "."
			i++
		}
		lines = append(lines, marker+" "+extractText(item, src))
	}
	return strings.Join(lines, "\n")
}

// extractText gets the text content of a goldmark AST node. Emphasis keeps
// its ** markers so emphasized terms survive as keywords.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && n.FirstChild() == nil {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.Emphasis:
			inner := extractText(t, src)
			if t.Level >= 2 {
				inner = "**" + inner + "**"
			}
			buf.WriteString(inner)
		default:
			if c.Type() == ast.TypeBlock && buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
