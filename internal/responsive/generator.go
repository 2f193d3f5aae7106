package responsive

import (
	"embed"
	"errors"
	"fmt"
	"html"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/aellingwood/respimg/internal/buildcache"
	"github.com/aellingwood/respimg/internal/config"
)

// TemplateName is the fragment template rendered for every image. A site can
// override it with layouts/responsive_images.html.
const TemplateName = "responsive_images"

// MissingFileMessage is rendered in place of an image whose source file does
// not exist.
const MissingFileMessage = "Responsive Image Plugin: File [%s] does not exist."

//go:embed templates/*.html
var templateFiles embed.FS

// Templates returns the built-in fragment templates.
func Templates() fs.FS {
	sub, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// Site is the part of the host site the generator needs.
type Site interface {
	SourcePath(rel string) string
	SitePath(destination string) string
	TemplateData(destination string) map[string]any
	Cache() *buildcache.Cache
	RenderTemplate(name string, data any) (string, error)
}

// Page is the page an image is embedded in.
type Page interface {
	Destination() string
}

// Generator renders <picture> markup for source images, writing derivatives
// as needed.
type Generator struct {
	cfg      config.ImageConfig
	collator *Collator
	writer   *Writer
	backend  Backend
	logger   *slog.Logger
}

// NewGenerator creates a Generator. A nil backend uses ImagingBackend.
func NewGenerator(cfg config.ImageConfig, backend Backend, logger *slog.Logger) *Generator {
	if backend == nil {
		backend = ImagingBackend{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		cfg:      cfg,
		collator: NewCollator(cfg, logger),
		writer:   NewWriter(backend, logger),
		backend:  backend,
		logger:   logger,
	}
}

// Collator returns the generator's attribute collator.
func (g *Generator) Collator() *Collator {
	return g.collator
}

// Render returns the markup for imagePath, a path relative to the project
// root, embedded in page. Results are memoized in the site's build cache
// until the source file changes.
func (g *Generator) Render(site Site, page Page, imagePath string, raw RawAttributes) (string, error) {
	attrs := g.collator.Collate(raw)
	abs := site.SourcePath(imagePath)
	key := MarkupKey{
		ImagePath:  imagePath,
		Attributes: attrs,
		Page:       page.Destination(),
		HiDPI:      attrs.HiDPI,
	}

	compute := func() (string, error) {
		return g.generate(site, page, abs, attrs)
	}
	cache := site.Cache()
	if cache == nil {
		return compute()
	}
	return cache.GetOrCompute(key.String(), Staleness(abs), compute)
}

// source is one <source> element of a rung.
type source struct {
	SrcSet string
	Type   string
}

// sourceSet holds the <source> elements of one breakpoint rung.
type sourceSet struct {
	Formats  []source
	Media    string
	MaxWidth int
}

type markupData struct {
	Sources    []sourceSet
	ImagePath  string
	Alt        string
	SitePath   string
	Width      int
	Height     int
	Frame      string
	Loading    string
	Attributes template.HTMLAttr
	// Site carries the site-level template variables (site_path, title,
	// base_url).
	Site map[string]any
}

func (g *Generator) generate(site Site, page Page, abs string, attrs Attributes) (string, error) {
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			g.logger.Error("responsive image source does not exist", "path", abs, "page", page.Destination())
			return fmt.Sprintf(MissingFileMessage, abs), nil
		}
		return "", fmt.Errorf("checking %s: %w", abs, err)
	}

	src, err := OpenSource(g.backend, abs, site.SourcePath(g.cfg.SourceDir), site.SourcePath("."))
	if err != nil {
		return "", err
	}
	g.logger.Info("generating responsive images", "path", abs)

	plan, err := PlanBreakpoints(src.Width, src.Height, attrs)
	if err != nil {
		return "", fmt.Errorf("planning %s: %w", abs, err)
	}

	siteData := site.TemplateData(page.Destination())
	sitePath, _ := siteData["site_path"].(string)
	if sitePath == "" {
		sitePath = "./"
		siteData["site_path"] = sitePath
	}
	outDir := site.SourcePath(g.cfg.OutputDir)
	assetsDir := site.SourcePath(g.cfg.AssetsDir)
	bg, _ := attrs.Background()

	url := func(width int, format Format) (string, error) {
		path, err := g.writer.Ensure(src, outDir, width, format, plan.Aspect, EncodeOptions{
			Quality:    attrs.CompressionQuality,
			Background: bg,
		})
		if err != nil {
			return "", err
		}
		rel, err := filepath.Rel(assetsDir, path)
		if err != nil {
			return "", fmt.Errorf("derivative %s outside assets: %w", path, err)
		}
		return sitePath + filepath.ToSlash(rel), nil
	}

	data := markupData{
		Alt:        attrs.Alt,
		SitePath:   sitePath,
		Width:      src.Width,
		Height:     src.Height,
		Frame:      attrs.Frame,
		Loading:    attrs.Loading,
		Attributes: htmlAttributes(attrs.HTML),
		Site:       siteData,
	}

	last := plan.Last()
	for _, bp := range plan.Breakpoints {
		set := sourceSet{MaxWidth: bp.Width}
		if bp != last {
			set.Media = fmt.Sprintf("(max-width: %dpx)", bp.Width)
		}
		for _, format := range Formats {
			base, err := url(bp.Width, format)
			if err != nil {
				return "", err
			}
			srcset := base
			if bp.HiDPIWidth > 0 {
				hidpi, err := url(bp.HiDPIWidth, format)
				if err != nil {
					return "", err
				}
				srcset += ", " + hidpi + " 2x"
			}
			set.Formats = append(set.Formats, source{SrcSet: srcset, Type: format.MediaType()})
			if format == FormatJPEG && bp == last {
				data.ImagePath = base
			}
		}
		data.Sources = append(data.Sources, set)
	}

	out, err := site.RenderTemplate(TemplateName, data)
	if err != nil {
		return "", fmt.Errorf("rendering markup for %s: %w", abs, err)
	}
	return strings.TrimSpace(out), nil
}

var attrNameRe = regexp.MustCompile(`^[a-zA-Z_:][-a-zA-Z0-9_:.]*$`)

// reserved attributes are written by the template itself.
var reserved = map[string]bool{"src": true, "alt": true, "loading": true, "srcset": true}

// htmlAttributes renders pass-through attributes in name order, each with a
// leading space. Invalid names and event handler attributes are dropped.
func htmlAttributes(attrs map[string]string) template.HTMLAttr {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		if !reserved[name] && attrNameRe.MatchString(name) && !strings.HasPrefix(strings.ToLower(name), "on") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, ` %s="%s"`, name, html.EscapeString(attrs[name]))
	}
	return template.HTMLAttr(b.String())
}
