// Package build orchestrates the full static site generation pipeline.
// It coordinates content discovery, markdown rendering, template execution,
// responsive image post-processing and file output to produce a complete
// static site.
package build

import (
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aellingwood/respimg/internal/buildcache"
	"github.com/aellingwood/respimg/internal/config"
	"github.com/aellingwood/respimg/internal/content"
	"github.com/aellingwood/respimg/internal/lifecycle"
	"github.com/aellingwood/respimg/internal/responsive"
	"github.com/aellingwood/respimg/internal/site"
	tmpl "github.com/aellingwood/respimg/internal/template"
)

// BuildOptions controls the behaviour of the build pipeline.
type BuildOptions struct {
	IncludeDrafts bool
	IncludeFuture bool
	OutputDir     string
	Minify        bool
	Workers       int
	ProjectRoot   string

	// Backend performs image work for the responsive image plugin. Nil uses
	// responsive.ImagingBackend.
	Backend responsive.Backend
	Logger  *slog.Logger
}

// BuildResult contains statistics about the completed build.
type BuildResult struct {
	PagesRendered int
	FilesWritten  int
	FilesCopied   int
	StaticFiles   int
	Duration      time.Duration
	OutputFiles   int
	OutputSize    int64
	Pages         []string // URL paths of all rendered pages
}

// Builder coordinates the full static site generation pipeline.
type Builder struct {
	config  *config.SiteConfig
	options BuildOptions
	logger  *slog.Logger
}

// NewBuilder creates a new Builder with the given site configuration and options.
func NewBuilder(cfg *config.SiteConfig, opts BuildOptions) *Builder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		config:  cfg,
		options: opts,
		logger:  logger,
	}
}

type renderResult struct {
	url         string
	destination string
	data        []byte
}

// Build executes the full build pipeline and returns a BuildResult summarizing
// what was generated. The pipeline steps are:
//  1. Open the build cache and register plugins
//  2. Load templates
//  3. Clean the output directory
//  4. Discover and filter content
//  5. Render markdown in parallel, expanding inline tags
//  6. Render pages to HTML in parallel and post-process the output
//  7. Write HTML files
//  8. Copy static files and assets, including image derivatives
//  9. Write the syntax highlighting stylesheet
func (b *Builder) Build() (*BuildResult, error) {
	start := time.Now()
	result := &BuildResult{}

	projectRoot := b.options.ProjectRoot
	if projectRoot == "" {
		var err error
		projectRoot, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determining project root: %w", err)
		}
	}

	// Determine output directory.
	outputDir := b.options.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(projectRoot, "public")
	}
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(projectRoot, outputDir)
	}
	contentDir := filepath.Join(projectRoot, "content")

	// Step 1: Open the build cache and register plugins.
	cache, err := buildcache.Open(b.config.Cache, projectRoot)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cache.Close(); err != nil {
			b.logger.Warn("closing build cache", "err", err)
		}
	}()

	engine := tmpl.NewEngine()
	s := site.New(b.config, projectRoot, engine, cache)

	hooks := lifecycle.New()
	if b.config.Images.Enabled {
		responsive.NewPlugin(b.config, b.options.Backend, b.logger).Register(hooks)
	}

	tags := content.NewTagParser()
	if err := hooks.Fire(lifecycle.PluginsInitialized, &lifecycle.Event{Site: s, Tags: tags}); err != nil {
		return nil, err
	}

	// Step 2: Load templates. Plugins add their fallbacks beneath the theme
	// and the user layouts.
	themeName := b.config.Theme
	if themeName == "" {
		themeName = "default"
	}
	themePath := filepath.Join(projectRoot, "themes", themeName)
	for _, dir := range []string{filepath.Join(themePath, "layouts"), filepath.Join(projectRoot, "layouts")} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			engine.AddLayer(os.DirFS(dir))
		}
	}
	if err := hooks.Fire(lifecycle.ThemeLoaded, &lifecycle.Event{Site: s, Templates: engine}); err != nil {
		return nil, err
	}
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	// Step 3: Clean output directory.
	if err := CleanDir(outputDir); err != nil {
		return nil, fmt.Errorf("cleaning output directory: %w", err)
	}
	if err := hooks.Fire(lifecycle.SiteWriteStarted, &lifecycle.Event{Site: s}); err != nil {
		return nil, err
	}

	// Step 4: Discover and filter content.
	pages, err := content.Discover(contentDir)
	if err != nil {
		return nil, fmt.Errorf("discovering content: %w", err)
	}
	pages = content.Published(pages, b.options.IncludeDrafts, b.options.IncludeFuture, start)

	// Inject a virtual home page if none was discovered (i.e., no content/_index.md).
	// This ensures public/index.html is always generated.
	if !hasHomePage(pages) {
		pages = append(pages, &content.Page{
			Type: content.PageTypeHome,
			URL:  "/",
		})
	}
	for _, p := range pages {
		p.Permalink = strings.TrimRight(b.config.BaseURL, "/") + p.URL
	}
	b.logger.Debug("discovered content", "pages", len(pages), "dir", contentDir)

	// Step 5: Render markdown in parallel.
	workers := b.options.Workers
	if workers <= 0 {
		workers = b.config.Build.Workers
	}
	mdRenderer := content.NewMarkdownRenderer(tags)

	err = renderParallel(pages, workers, func(p *content.Page) error {
		if err := hooks.Fire(lifecycle.ContentGenerationStarted, &lifecycle.Event{Site: s, Page: p}); err != nil {
			return err
		}
		htmlContent, tocHTML, err := mdRenderer.RenderWithTOC(p, []byte(p.RawContent))
		if err != nil {
			return fmt.Errorf("rendering markdown for %s: %w", p.SourcePath, err)
		}
		p.Content = string(htmlContent)
		p.TableOfContents = string(tocHTML)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}

	content.Newest(pages)
	siteCtx := b.buildSiteContext(s, pages)

	// Step 6: Render pages to HTML in parallel and collect results.
	var (
		mu      sync.Mutex
		results []renderResult
	)
	minifier := newMinifier(b.options.Minify || b.config.Build.Minify)

	err = renderParallel(pages, workers, func(p *content.Page) error {
		rendered, err := b.renderPage(s, engine, p, siteCtx)
		if err != nil {
			return err
		}

		ev := &lifecycle.Event{Site: s, Page: p, Output: rendered}
		if err := hooks.Fire(lifecycle.ContentOutputGenerated, ev); err != nil {
			return err
		}
		out, err := minifier.HTML(ev.Output)
		if err != nil {
			return fmt.Errorf("minifying %s: %w", p.URL, err)
		}

		mu.Lock()
		results = append(results, renderResult{url: p.URL, destination: p.Destination(), data: out})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rendering pages: %w", err)
	}

	// Step 7: Write HTML files.
	for _, r := range results {
		if err := WriteFile(outputDir, r.destination, r.data); err != nil {
			return nil, fmt.Errorf("writing %s: %w", r.url, err)
		}
		result.FilesWritten++
		result.Pages = append(result.Pages, r.url)
	}
	result.PagesRendered = len(results)

	// Step 8: Copy static files from theme and site static directories, then
	// the assets directory, which by now holds every derivative.
	for _, dir := range []string{
		filepath.Join(themePath, "static"),
		filepath.Join(projectRoot, "static"),
		s.SourcePath(b.config.Images.AssetsDir),
	} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		copied, err := CopyDir(dir, outputDir)
		if err != nil {
			return nil, err
		}
		result.FilesCopied += copied
	}

	// Step 9: Write the syntax highlighting stylesheet.
	if style := b.config.Build.HighlightStyle; style != "" {
		css, err := content.GenerateChromaCSS(style)
		if err != nil {
			return nil, fmt.Errorf("generating syntax stylesheet: %w", err)
		}
		data, err := minifier.CSS([]byte(css))
		if err != nil {
			return nil, fmt.Errorf("minifying syntax stylesheet: %w", err)
		}
		if err := WriteFile(outputDir, "css/syntax.css", data); err != nil {
			return nil, err
		}
		result.StaticFiles++
	}

	// Calculate output size.
	files, size, err := OutputStats(outputDir)
	if err != nil {
		return nil, fmt.Errorf("calculating output size: %w", err)
	}
	result.OutputFiles = files
	result.OutputSize = size
	result.Duration = time.Since(start)

	b.logger.Debug("build finished", "pages", result.PagesRendered, "duration", result.Duration)
	return result, nil
}

// renderPage executes the layout resolved for p. Pages without a layout are
// written as their rendered markdown.
func (b *Builder) renderPage(s *site.Site, engine *tmpl.Engine, p *content.Page, siteCtx *tmpl.SiteContext) ([]byte, error) {
	templateName := engine.Resolve(p.Type.String(), p.Section, p.Layout)
	if templateName == "" {
		templateName = engine.Resolve("single", "_default", "")
	}
	if templateName == "" {
		return []byte(p.Content), nil
	}

	ctx := pageToContext(p, siteCtx)
	ctx.SitePath = s.SitePath(p.Destination())
	rendered, err := engine.Execute(templateName, ctx)
	if err != nil {
		return nil, fmt.Errorf("executing template %s for %s: %w", templateName, p.URL, err)
	}
	return rendered, nil
}

// buildSiteContext creates a SiteContext for template rendering.
func (b *Builder) buildSiteContext(s *site.Site, pages []*content.Page) *tmpl.SiteContext {
	sections := make(map[string][]*tmpl.PageContext)
	sitePages := make([]*tmpl.PageContext, 0, len(pages))
	for _, p := range pages {
		pc := pageToContext(p, nil)
		pc.SitePath = s.SitePath(p.Destination())
		sitePages = append(sitePages, pc)
		if p.Section != "" {
			sections[p.Section] = append(sections[p.Section], pc)
		}
	}

	return &tmpl.SiteContext{
		Title:       b.config.Title,
		Description: b.config.Description,
		BaseURL:     b.config.BaseURL,
		Language:    b.config.Language,
		Params:      b.config.Params,
		Pages:       sitePages,
		Sections:    sections,
		BuildDate:   time.Now(),
	}
}

// hasHomePage reports whether any page in the slice has PageTypeHome.
func hasHomePage(pages []*content.Page) bool {
	for _, p := range pages {
		if p.Type == content.PageTypeHome {
			return true
		}
	}
	return false
}

// pageToContext converts a content.Page to a template.PageContext.
func pageToContext(p *content.Page, siteCtx *tmpl.SiteContext) *tmpl.PageContext {
	return &tmpl.PageContext{
		Title:           p.Title,
		Description:     p.Description,
		Content:         template.HTML(p.Content),
		Date:            p.Date,
		Lastmod:         p.Lastmod,
		Draft:           p.Draft,
		Slug:            p.Slug,
		URL:             p.URL,
		Permalink:       p.Permalink,
		Params:          p.Params,
		TableOfContents: template.HTML(p.TableOfContents),
		Section:         p.Section,
		Type:            p.Type.String(),
		Site:            siteCtx,
	}
}
