// Package template wraps html/template with layered template sources,
// page layout resolution and named fragment rendering.
package template

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"sync"
)

// ErrNotLoaded is returned when rendering before Load has been called.
var ErrNotLoaded = errors.New("template: engine has not been loaded")

// Engine resolves templates from an ordered stack of fs.FS layers. A template
// in a later layer overrides one with the same relative path in an earlier
// layer; fallback layers sit beneath every regular layer.
type Engine struct {
	mu        sync.RWMutex
	fallbacks []fs.FS
	layers    []fs.FS
	templates *template.Template
	funcMap   template.FuncMap
}

// NewEngine creates an empty Engine. Add layers, then call Load.
func NewEngine() *Engine {
	return &Engine{funcMap: FuncMap()}
}

// AddLayer pushes fsys on top of the existing layers. A nil fsys is ignored.
func (e *Engine) AddLayer(fsys fs.FS) {
	if fsys == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.layers = append(e.layers, fsys)
}

// AddFallback adds fsys beneath all existing layers, so that theme and user
// templates can override anything it provides.
func (e *Engine) AddFallback(fsys fs.FS) {
	if fsys == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fallbacks = append([]fs.FS{fsys}, e.fallbacks...)
}

// Load parses every .html file in every layer. It may be called again after
// adding layers.
func (e *Engine) Load() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	stack := make([]fs.FS, 0, len(e.fallbacks)+len(e.layers))
	stack = append(stack, e.fallbacks...)
	stack = append(stack, e.layers...)

	// Later layers win.
	sources := make(map[string]fs.FS)
	for i, fsys := range stack {
		names, err := collectTemplateFiles(fsys)
		if err != nil {
			return fmt.Errorf("collecting templates from layer %d: %w", i, err)
		}
		for _, name := range names {
			sources[name] = fsys
		}
	}

	funcs := template.FuncMap{}
	for k, v := range e.funcMap {
		funcs[k] = v
	}
	// The partial helper looks templates up at execution time, so a single
	// parse pass is enough.
	funcs["partial"] = func(name string, ctx any) (template.HTML, error) {
		return e.executePartial(name, ctx)
	}

	root := template.New("").Funcs(funcs)
	for name, fsys := range sources {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading template %s: %w", name, err)
		}
		if _, err := root.New(name).Parse(string(content)); err != nil {
			return fmt.Errorf("parsing template %s: %w", name, err)
		}
	}
	e.templates = root
	return nil
}

// executePartial executes a partial template and returns the rendered HTML.
// It runs while a page template is executing, so it reads e.templates without
// taking the lock again.
func (e *Engine) executePartial(name string, ctx any) (template.HTML, error) {
	tmplName := name
	if !strings.HasPrefix(name, "partials/") {
		tmplName = "partials/" + name
	}

	t := e.templates.Lookup(tmplName)
	if t == nil {
		t = e.templates.Lookup(name)
	}
	if t == nil {
		return "", fmt.Errorf("partial template %q not found", name)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("executing partial %q: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// collectTemplateFiles returns the slash-separated names of all .html files
// in fsys. A layer without templates yields an empty list.
func collectTemplateFiles(fsys fs.FS) ([]string, error) {
	var names []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || path.Ext(p) != ".html" {
			return nil
		}
		names = append(names, p)
		return nil
	})
	return names, err
}

// Resolve returns the name of the first matching layout for the given page
// type, section and explicit layout. If no layout matches, an empty string is
// returned.
func (e *Engine) Resolve(pageType, section, layout string) string {
	var candidates []string

	switch pageType {
	case "single":
		if layout != "" {
			candidates = append(candidates, section+"/"+layout+".html")
		}
		candidates = append(candidates, section+"/single.html")
		if layout != "" {
			candidates = append(candidates, "_default/"+layout+".html")
		}
		candidates = append(candidates, "_default/single.html")

	case "list":
		candidates = append(candidates,
			section+"/list.html",
			"_default/list.html",
		)

	case "home":
		candidates = append(candidates,
			"index.html",
			"_default/list.html",
		)
	}

	for _, name := range candidates {
		if e.HasTemplate(name) {
			return name
		}
	}
	return ""
}

// Execute renders the named layout with the given PageContext.
func (e *Engine) Execute(templateName string, ctx *PageContext) ([]byte, error) {
	return e.execute(templateName, ctx)
}

// Render renders a named fragment template with arbitrary data. The ".html"
// extension may be omitted from name.
func (e *Engine) Render(name string, data any) (string, error) {
	if path.Ext(name) == "" && !e.HasTemplate(name) {
		name += ".html"
	}
	out, err := e.execute(name, data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (e *Engine) execute(name string, data any) ([]byte, error) {
	e.mu.RLock()
	root := e.templates
	e.mu.RUnlock()
	if root == nil {
		return nil, ErrNotLoaded
	}

	t := root.Lookup(name)
	if t == nil {
		return nil, fmt.Errorf("template %q not found", name)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing template %q: %w", name, err)
	}
	return buf.Bytes(), nil
}

// HasTemplate reports whether a template with the given name exists.
func (e *Engine) HasTemplate(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.templates != nil && e.templates.Lookup(name) != nil
}
