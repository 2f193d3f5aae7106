package template

import (
	"html/template"
	"time"
)

// PageContext is the data passed to every page layout as ".".
type PageContext struct {
	Title           string
	Description     string
	Content         template.HTML
	Date            time.Time
	Lastmod         time.Time
	Draft           bool
	Slug            string
	URL             string
	Permalink       string
	Params          map[string]any
	TableOfContents template.HTML
	Section         string
	Type            string // "single", "list" or "home"

	// SitePath is the relative prefix from this page back to the site root,
	// e.g. "../../" for "/blog/post/". It is empty for the home page.
	SitePath string

	Site *SiteContext
}

// SiteContext holds site-wide data accessible as .Site in templates.
type SiteContext struct {
	Title       string
	Description string
	BaseURL     string
	Language    string
	Params      map[string]any
	Pages       []*PageContext
	Sections    map[string][]*PageContext
	BuildDate   time.Time
}
