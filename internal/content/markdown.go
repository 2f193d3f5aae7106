package content

import (
	"bytes"
	"fmt"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"go.abhg.dev/goldmark/toc"
)

// MarkdownRenderer converts Markdown source into HTML using goldmark with
// GFM, footnotes, typographer, syntax highlighting, auto heading IDs and
// attributes. When a TagParser is supplied, [[...]] inline tags are expanded
// by the registered handlers.
type MarkdownRenderer struct {
	md goldmark.Markdown
}

// NewMarkdownRenderer creates a MarkdownRenderer. tags may be nil.
func NewMarkdownRenderer(tags *TagParser) *MarkdownRenderer {
	extensions := []goldmark.Extender{
		extension.GFM,
		extension.Footnote,
		extension.Typographer,
		highlighting.NewHighlighting(
			highlighting.WithFormatOptions(
				chromahtml.WithClasses(true),
			),
		),
	}
	if tags != nil {
		extensions = append(extensions, &tagExtension{tags: tags})
	}

	md := goldmark.New(
		goldmark.WithExtensions(extensions...),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithAttribute(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)

	return &MarkdownRenderer{md: md}
}

// Render converts the Markdown source of page into HTML.
func (r *MarkdownRenderer) Render(page *Page, source []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(source, &buf, parser.WithContext(newPageContext(page))); err != nil {
		return nil, fmt.Errorf("markdown render: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderWithTOC converts the Markdown source of page into HTML and also
// produces a table of contents as a nested HTML list.
func (r *MarkdownRenderer) RenderWithTOC(page *Page, source []byte) (htmlOut []byte, tocOut []byte, err error) {
	doc := r.md.Parser().Parse(text.NewReader(source), parser.WithContext(newPageContext(page)))

	tocTree, err := toc.Inspect(doc, source)
	if err != nil {
		return nil, nil, fmt.Errorf("toc inspect: %w", err)
	}

	if tocList := toc.RenderList(tocTree); tocList != nil {
		var tocBuf bytes.Buffer
		if err := r.md.Renderer().Render(&tocBuf, source, tocList); err != nil {
			return nil, nil, fmt.Errorf("toc render: %w", err)
		}
		tocOut = tocBuf.Bytes()
	}

	var contentBuf bytes.Buffer
	if err := r.md.Renderer().Render(&contentBuf, source, doc); err != nil {
		return nil, nil, fmt.Errorf("markdown render: %w", err)
	}

	return contentBuf.Bytes(), tocOut, nil
}

// GenerateChromaCSS produces the stylesheet for syntax-highlighted code
// blocks in the named chroma style.
func GenerateChromaCSS(style string) (string, error) {
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	var buf bytes.Buffer
	if err := formatter.WriteCSS(&buf, styles.Get(style)); err != nil {
		return "", fmt.Errorf("generate CSS for style %q: %w", style, err)
	}
	return buf.String(), nil
}
