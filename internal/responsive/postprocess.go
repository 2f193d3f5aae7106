package responsive

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/aellingwood/respimg/internal/config"
)

// Marker is the attribute that opts an <img> element into responsive
// treatment. Attributes named Marker + "-<option>" set image options.
const Marker = "fn-responsive"

// PostProcessor replaces marked <img> elements in rendered pages with
// responsive markup.
type PostProcessor struct {
	gen       *Generator
	assetsDir string
	basePath  string
	logger    *slog.Logger
}

// NewPostProcessor creates a PostProcessor. Image references resolve under
// the configured assets directory after stripping the site's base path.
func NewPostProcessor(gen *Generator, cfg *config.SiteConfig, logger *slog.Logger) *PostProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostProcessor{
		gen:       gen,
		assetsDir: cfg.Images.AssetsDir,
		basePath:  cfg.BasePath,
		logger:    logger,
	}
}

type replacement struct {
	img    *goquery.Selection
	markup string
}

// Process rewrites output, the rendered page, and returns the result.
// Output that is not an HTML page or carries no marker is returned as is.
// All fragments are rendered before the document is modified, so an error
// leaves the page untouched.
func (p *PostProcessor) Process(site Site, page Page, output []byte) ([]byte, error) {
	dest := page.Destination()
	if !strings.EqualFold(path.Ext(dest), ".html") || !bytes.Contains(output, []byte(Marker)) {
		return output, nil
	}

	doc, err := parseDocument(output, !isDocument(output))
	if err != nil {
		p.logger.Debug("skipping unparseable page", "page", dest, "err", err)
		return output, nil
	}

	imgs := doc.Find("img[" + Marker + "]")
	if imgs.Length() == 0 {
		return output, nil
	}

	sitePath := site.SitePath(dest)
	var (
		replacements []replacement
		renderErr    error
	)
	imgs.EachWithBreak(func(_ int, img *goquery.Selection) bool {
		raw, src := extractAttributes(img)
		if src == "" {
			p.logger.Warn("src attribute of responsive <img> cannot be empty", "page", dest)
			return true
		}
		imagePath, ok := p.sourcePath(src, sitePath)
		if !ok {
			p.logger.Warn("responsive <img> does not reference a local image", "src", src, "page", dest)
			return true
		}

		markup, err := p.gen.Render(site, page, imagePath, raw)
		if err != nil {
			renderErr = fmt.Errorf("rendering responsive image %s on %s: %w", src, dest, err)
			return false
		}
		replacements = append(replacements, replacement{img: img, markup: markup})
		return true
	})
	if renderErr != nil {
		return nil, renderErr
	}
	if len(replacements) == 0 {
		return output, nil
	}

	for _, r := range replacements {
		r.img.ReplaceWithHtml(r.markup)
	}

	out, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("serializing %s: %w", dest, err)
	}
	return []byte(out), nil
}

// documentTag matches the tags that make output a whole document. Any of
// them may be omitted in HTML5, so one is enough. <header> is not <head>.
var documentTag = regexp.MustCompile(`(?i)<(!doctype|html|head|body)[\s/>]`)

// isDocument reports whether output is a whole HTML document rather than a
// fragment of body content.
func isDocument(output []byte) bool {
	return documentTag.Match(output)
}

// parseDocument parses a full document, or a fragment in body context so
// that serialization reproduces only the fragment.
func parseDocument(output []byte, fragment bool) (*goquery.Document, error) {
	if !fragment {
		return goquery.NewDocumentFromReader(bytes.NewReader(output))
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(bytes.NewReader(output), body)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	return goquery.NewDocumentFromNode(body), nil
}

// extractAttributes splits the attributes of a marked <img> into image
// options and pass-through HTML attributes, and returns its src.
func extractAttributes(img *goquery.Selection) (RawAttributes, string) {
	raw := RawAttributes{
		Options: make(map[string]string),
		HTML:    make(map[string]string),
	}
	var src string
	for _, a := range img.Nodes[0].Attr {
		key := strings.ToLower(a.Key)
		switch {
		case key == Marker:
		case strings.HasPrefix(key, Marker+"-"):
			raw.Options[strings.TrimPrefix(key, Marker+"-")] = a.Val
		case key == "src":
			src = strings.TrimSpace(a.Val)
		case key == OptAlt || key == OptLoading:
			if _, set := raw.Options[key]; !set {
				raw.Options[key] = a.Val
			}
		default:
			raw.HTML[key] = a.Val
		}
	}
	return raw, src
}

// sourcePath maps an <img src> to a project-relative path under the assets
// directory. Page-relative references lose the page's site path prefix and
// absolute ones the configured base path.
func (p *PostProcessor) sourcePath(src, sitePath string) (string, bool) {
	if strings.HasPrefix(src, "//") || strings.Contains(src, "://") || strings.HasPrefix(src, "data:") {
		return "", false
	}
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	if unescaped, err := url.PathUnescape(src); err == nil {
		src = unescaped
	}

	switch {
	case sitePath != "" && strings.HasPrefix(src, sitePath):
		src = strings.TrimPrefix(src, sitePath)
	case p.basePath != "" && strings.HasPrefix(src, p.basePath):
		src = strings.TrimPrefix(src, p.basePath)
	}
	src = strings.TrimPrefix(strings.TrimPrefix(src, "./"), "/")
	if src == "" {
		return "", false
	}
	joined := path.Join(p.assetsDir, src)
	if !strings.HasPrefix(joined, path.Clean(p.assetsDir)+"/") {
		return "", false
	}
	return joined, true
}
