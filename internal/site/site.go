// Package site holds the per-build state shared by the build driver and the
// plugins: configuration, project paths, the template engine and the build
// cache.
package site

import (
	"path/filepath"
	"strings"

	"github.com/aellingwood/respimg/internal/buildcache"
	"github.com/aellingwood/respimg/internal/config"
	tmpl "github.com/aellingwood/respimg/internal/template"
)

// Site is the build-wide context passed to plugins.
type Site struct {
	cfg         *config.SiteConfig
	projectRoot string
	engine      *tmpl.Engine
	cache       *buildcache.Cache
}

// New creates a Site. A nil cache disables markup caching.
func New(cfg *config.SiteConfig, projectRoot string, engine *tmpl.Engine, cache *buildcache.Cache) *Site {
	return &Site{
		cfg:         cfg,
		projectRoot: projectRoot,
		engine:      engine,
		cache:       cache,
	}
}

// Config returns the site configuration.
func (s *Site) Config() *config.SiteConfig { return s.cfg }

// Cache returns the build cache.
func (s *Site) Cache() *buildcache.Cache { return s.cache }

// SourcePath resolves a project-relative path to an absolute one. Absolute
// paths are returned cleaned.
func (s *Site) SourcePath(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(s.projectRoot, filepath.FromSlash(rel))
}

// SitePath returns the relative prefix leading from the directory of the
// output file destination back to the site root, e.g. "../../" for
// "blog/post/index.html" and "" for "index.html".
func (s *Site) SitePath(destination string) string {
	destination = strings.TrimPrefix(filepath.ToSlash(destination), "/")
	return strings.Repeat("../", strings.Count(destination, "/"))
}

// TemplateData returns the site-level variables made available to fragment
// templates rendered for the page at destination.
func (s *Site) TemplateData(destination string) map[string]any {
	return map[string]any{
		"site_path": s.SitePath(destination),
		"title":     s.cfg.Title,
		"base_url":  s.cfg.BaseURL,
	}
}

// RenderTemplate renders the named fragment template.
func (s *Site) RenderTemplate(name string, data any) (string, error) {
	return s.engine.Render(name, data)
}
