// Package textnorm reduces Markdown snippets and HTML email bodies to plain
// text lines before extraction. Line structure is preserved so line-anchored
// patterns such as "Title:" keep working; plain text passes through untouched.
package textnorm

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Format is the detected markup of an input.
type Format string

const (
	FormatPlain    Format = "plain"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

var (
	htmlRegex     = regexp.MustCompile(`(?i)<(?:html|body|div|p|br|span|table|td|li|a|b|strong|em|h[1-6])\b[^>]*>`)
	markdownRegex = regexp.MustCompile(`(?m)^(?:#{1,6}\s|\s*[-*+]\s|\s*\d+\.\s|>\s?|` + "```" + `)|\*\*[^*\n]+\*\*|__[^_\n]+__|\[[^\]\n]+\]\([^)\n]+\)`)
)

// Detect guesses the markup of s.
func Detect(s string) Format {
	switch {
	case htmlRegex.MatchString(s):
		return FormatHTML
	case markdownRegex.MatchString(s):
		return FormatMarkdown
	}
	return FormatPlain
}

// Normalize converts s to plain text according to its detected format and
// reports the format it found.
func Normalize(s string) (string, Format) {
	switch f := Detect(s); f {
	case FormatHTML:
		return FromHTML(s), f
	case FormatMarkdown:
		return FromMarkdown(s), f
	default:
		return s, f
	}
}

// FromMarkdown renders the text content of a Markdown document, one block
// per line.
func FromMarkdown(s string) string {
	src := []byte(s)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				buf.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				buf.Write(node.Label(src))
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(src))
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		if !entering && n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
			buf.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})
	return tidyLines(buf.String())
}

var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Table: true, atom.Ul: true, atom.Ol: true, atom.Blockquote: true, atom.Hr: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true, atom.Title: true,
}

// FromHTML extracts the visible text of an HTML fragment or document. Block
// elements and <br> start new lines; script and style bodies are dropped.
func FromHTML(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var (
		buf  strings.Builder
		skip int
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a malformed tail; either way the text so far is the result.
			return tidyLines(buf.String())
		case html.TextToken:
			if skip == 0 {
				buf.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch {
			case tok.DataAtom == atom.Script || tok.DataAtom == atom.Style:
				skip++
			case blockAtoms[tok.DataAtom]:
				buf.WriteByte('\n')
			}
		case html.EndTagToken:
			tok := z.Token()
			switch {
			case tok.DataAtom == atom.Script || tok.DataAtom == atom.Style:
				if skip > 0 {
					skip--
				}
			case blockAtoms[tok.DataAtom]:
				buf.WriteByte('\n')
			}
		}
	}
}

// tidyLines collapses spaces inside each line and drops blank lines.
func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
