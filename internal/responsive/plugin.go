// Package responsive turns image references in rendered pages into
// <picture> elements backed by pre-rendered derivatives at a ladder of
// widths, in WebP and JPEG.
//
// Two kinds of reference are handled. Inline [[photo.jpg|caption|key=value]]
// tags in Markdown are expanded while the page is parsed, and
// <img fn-responsive> elements are replaced once the page's layout has been
// executed. Both resolve their options through the same Collator and render
// through the same Generator.
package responsive

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aellingwood/respimg/internal/config"
	"github.com/aellingwood/respimg/internal/content"
	"github.com/aellingwood/respimg/internal/lifecycle"
)

// Inline tag registration.
const (
	TagName     = "responsive image"
	TagPattern  = `(?P<image>.*\.(jpeg|jpg|png|gif|webp))`
	TagPriority = 10
)

// Plugin wires the generator into the build lifecycle.
type Plugin struct {
	cfg    *config.SiteConfig
	gen    *Generator
	post   *PostProcessor
	logger *slog.Logger
}

// NewPlugin creates the responsive image plugin. A nil backend uses
// ImagingBackend.
func NewPlugin(cfg *config.SiteConfig, backend Backend, logger *slog.Logger) *Plugin {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("plugin", "responsive-images")
	gen := NewGenerator(cfg.Images, backend, logger)
	return &Plugin{
		cfg:    cfg,
		gen:    gen,
		post:   NewPostProcessor(gen, cfg, logger),
		logger: logger,
	}
}

// Generator returns the plugin's markup generator.
func (p *Plugin) Generator() *Generator {
	return p.gen
}

// Register subscribes the plugin to the build phases.
func (p *Plugin) Register(hooks *lifecycle.Hooks) {
	hooks.On(lifecycle.PluginsInitialized, p.registerTag)
	hooks.On(lifecycle.ThemeLoaded, p.registerTemplates)
	hooks.On(lifecycle.SiteWriteStarted, p.makeOutputDir)
	hooks.On(lifecycle.ContentOutputGenerated, p.processOutput)
}

func (p *Plugin) registerTag(ev *lifecycle.Event) error {
	site := ev.Site
	return ev.Tags.Register(TagName, TagPattern, TagPriority, func(page *content.Page, m content.TagMatch) (string, error) {
		return p.renderTag(site, page, m)
	})
}

func (p *Plugin) registerTemplates(ev *lifecycle.Event) error {
	ev.Templates.AddFallback(Templates())
	return nil
}

func (p *Plugin) makeOutputDir(ev *lifecycle.Event) error {
	dir := ev.Site.SourcePath(p.cfg.Images.OutputDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating responsive image directory: %w", err)
	}
	return nil
}

func (p *Plugin) processOutput(ev *lifecycle.Event) error {
	out, err := p.post.Process(ev.Site, ev.Page, ev.Output)
	if err != nil {
		return err
	}
	ev.Output = out
	return nil
}

// renderTag expands an inline tag. The caption becomes the alt text,
// recognized keys become options and the remaining keys are passed through
// to the <img>. The image resolves beside a bundled page when present there,
// otherwise under the images source directory.
func (p *Plugin) renderTag(site Site, page *content.Page, m content.TagMatch) (string, error) {
	raw := RawAttributes{
		Options: make(map[string]string),
		HTML:    make(map[string]string),
	}
	for k, v := range m.Args {
		if IsOption(k) {
			raw.Options[strings.ToLower(k)] = v
		} else {
			raw.HTML[strings.ToLower(k)] = v
		}
	}
	if _, set := raw.Options[OptAlt]; !set && m.Default != "" {
		raw.Options[OptAlt] = m.Default
	}

	imagePath := path.Join(p.cfg.Images.SourceDir, m.Groups["image"])
	if page.BundleDir != "" {
		local := filepath.Join(page.BundleDir, filepath.FromSlash(m.Groups["image"]))
		if info, err := os.Stat(local); err == nil && !info.IsDir() {
			imagePath = local
		}
	}
	return p.gen.Render(site, page, imagePath, raw)
}
