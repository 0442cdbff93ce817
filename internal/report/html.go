package report

import (
	"bytes"

	"gobiodiv/domain/stats"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownToHTML renders markdown with tables enabled
func MarkdownToHTML(md []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return markdown.ToHTML(md, p, r)
}

// HTML renders the markdown report of b as an HTML fragment
func HTML(title string, b *stats.ResultBundle) ([]byte, error) {
	var buf bytes.Buffer
	rc := NewRenderContext(&buf)
	if err := WriteMarkdown(rc, title, b); err != nil {
		return nil, err
	}
	return MarkdownToHTML(buf.Bytes()), nil
}
