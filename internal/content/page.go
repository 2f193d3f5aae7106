package content

import (
	"slices"
	"strings"
	"time"
)

// PageType represents the kind of page being rendered.
type PageType int

const (
	PageTypeSingle PageType = iota // A regular content page
	PageTypeList                   // A section listing page
	PageTypeHome                   // The site home page
)

// String returns the human-readable name for a PageType.
func (pt PageType) String() string {
	switch pt {
	case PageTypeSingle:
		return "single"
	case PageTypeList:
		return "list"
	case PageTypeHome:
		return "home"
	default:
		return "unknown"
	}
}

// Page is a single piece of content (typically a Markdown file) together with
// its metadata and rendered output.
type Page struct {
	// Core metadata
	Title       string
	Slug        string
	URL         string // Relative permalink (e.g., "/blog/my-post/")
	Permalink   string // Absolute permalink (e.g., "https://example.com/blog/my-post/")
	Description string

	// Dates
	Date    time.Time
	Lastmod time.Time

	// Content
	RawContent      string // Raw markdown
	Content         string // Rendered HTML
	TableOfContents string // Rendered TOC HTML

	// Classification
	Draft   bool
	Type    PageType
	Section string // e.g., "blog", "projects"
	Layout  string // Explicit layout override

	// Source info
	SourcePath string // Original file path relative to content dir
	SourceDir  string // Directory containing the source file
	// BundleDir is the filesystem directory of a page bundle (a directory
	// holding index.md). Inline image tags look beside the page first.
	BundleDir string

	// Arbitrary params
	Params map[string]any
}

// Destination returns the output file path of the page relative to the output
// directory, using forward slashes. "/blog/my-post/" maps to
// "blog/my-post/index.html"; a URL that already names a file is kept as is.
func (p *Page) Destination() string {
	rel := strings.TrimPrefix(p.URL, "/")
	switch {
	case rel == "":
		return "index.html"
	case strings.HasSuffix(rel, "/"):
		return rel + "index.html"
	case strings.Contains(rel[strings.LastIndex(rel, "/")+1:], "."):
		return rel
	default:
		return rel + "/index.html"
	}
}

// Newest orders pages newest first. Pages sharing a date are ordered by URL
// so repeated builds list them identically.
func Newest(pages []*Page) {
	slices.SortStableFunc(pages, func(a, b *Page) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return strings.Compare(a.URL, b.URL)
	})
}

// Published returns the pages that should be built at now. Drafts and pages
// dated after now are left out unless the matching flag asks for them. The
// input slice is not modified.
func Published(pages []*Page, drafts, future bool, now time.Time) []*Page {
	return slices.DeleteFunc(slices.Clone(pages), func(p *Page) bool {
		return (p.Draft && !drafts) || (p.Date.After(now) && !future)
	})
}
