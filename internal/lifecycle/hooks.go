// Package lifecycle dispatches build phase events to registered plugins.
package lifecycle

import (
	"fmt"
	"sync"

	"github.com/aellingwood/respimg/internal/content"
	"github.com/aellingwood/respimg/internal/site"
	tmpl "github.com/aellingwood/respimg/internal/template"
)

// Phase identifies a point in the build at which plugins run.
type Phase int

const (
	// PluginsInitialized fires once after all plugins are registered. Tags
	// are registered here.
	PluginsInitialized Phase = iota
	// ThemeLoaded fires before templates are parsed. Plugins add fallback
	// template layers here.
	ThemeLoaded
	// SiteWriteStarted fires once before any page is rendered.
	SiteWriteStarted
	// ContentGenerationStarted fires per page before its Markdown is
	// rendered.
	ContentGenerationStarted
	// ContentOutputGenerated fires per page after its layout is executed.
	// Handlers may replace Event.Output.
	ContentOutputGenerated
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PluginsInitialized:
		return "plugins-initialized"
	case ThemeLoaded:
		return "theme-loaded"
	case SiteWriteStarted:
		return "site-write-started"
	case ContentGenerationStarted:
		return "content-generation-started"
	case ContentOutputGenerated:
		return "content-output-generated"
	default:
		return "unknown"
	}
}

// Event carries the state relevant to a phase. Fields that do not apply to
// the phase are nil.
type Event struct {
	Site      *site.Site
	Page      *content.Page
	Output    []byte
	Tags      *content.TagParser
	Templates *tmpl.Engine
}

// Handler reacts to a phase.
type Handler func(ev *Event) error

// Hooks is a registry of phase handlers. It is safe for concurrent use;
// per-page phases fire from the render workers.
type Hooks struct {
	mu       sync.RWMutex
	handlers map[Phase][]Handler
}

// New creates an empty Hooks registry.
func New() *Hooks {
	return &Hooks{handlers: make(map[Phase][]Handler)}
}

// On registers h for phase. Handlers run in registration order.
func (h *Hooks) On(phase Phase, handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[phase] = append(h.handlers[phase], handler)
}

// Fire runs the handlers registered for phase. The first error stops the
// chain and is returned.
func (h *Hooks) Fire(phase Phase, ev *Event) error {
	h.mu.RLock()
	handlers := h.handlers[phase]
	h.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ev); err != nil {
			return fmt.Errorf("%s: %w", phase, err)
		}
	}
	return nil
}

// Len reports how many handlers are registered for phase.
func (h *Hooks) Len(phase Phase) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers[phase])
}
