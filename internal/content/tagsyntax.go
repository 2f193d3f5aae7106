package content

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// KindTag is the AST node kind of a rendered inline tag.
var KindTag = ast.NewNodeKind("Tag")

var pageContextKey = parser.NewContextKey()

// TagNode is an inline node holding the output of a tag handler. Handlers run
// while the page is parsed; a handler error is reported when the node is
// rendered.
type TagNode struct {
	ast.BaseInline
	Name string
	Body string
	HTML string
	Err  error
}

// Kind implements ast.Node.
func (n *TagNode) Kind() ast.NodeKind { return KindTag }

// Dump implements ast.Node.
func (n *TagNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Name": n.Name, "Body": n.Body}, nil)
}

// newPageContext returns a parser context carrying page for tag handlers.
func newPageContext(page *Page) parser.Context {
	pc := parser.NewContext()
	if page != nil {
		pc.Set(pageContextKey, page)
	}
	return pc
}

type tagExtension struct {
	tags *TagParser
}

// Extend implements goldmark.Extender. The inline parser is placed ahead of
// footnote references (101) and links (200), which share the '[' trigger.
func (e *tagExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithInlineParsers(
		util.Prioritized(&tagInlineParser{tags: e.tags}, 99),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&tagNodeRenderer{}, 100),
	))
}

type tagInlineParser struct {
	tags *TagParser
}

func (p *tagInlineParser) Trigger() []byte {
	return []byte{'['}
}

func (p *tagInlineParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()
	if len(line) < 4 || line[1] != '[' {
		return nil
	}
	end := bytes.Index(line[2:], []byte("]]"))
	if end <= 0 {
		return nil
	}
	body := string(line[2 : 2+end])

	tag, m, ok := p.tags.Match(body)
	if !ok {
		return nil
	}
	block.Advance(2 + end + 2)

	node := &TagNode{Name: tag.Name, Body: body}
	page, _ := pc.Get(pageContextKey).(*Page)
	if page == nil {
		node.Err = ErrNoPage
	} else {
		node.HTML, node.Err = tag.Handler(page, m)
	}
	return node
}

type tagNodeRenderer struct{}

func (r *tagNodeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindTag, r.renderTag)
}

func (r *tagNodeRenderer) renderTag(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*TagNode)
	if n.Err != nil {
		return ast.WalkStop, fmt.Errorf("rendering [[%s]]: %w", n.Body, n.Err)
	}
	_, _ = w.WriteString(n.HTML)
	return ast.WalkSkipChildren, nil
}
