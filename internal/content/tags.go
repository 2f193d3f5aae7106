package content

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// TagHandler renders a matched inline tag for the page being built.
type TagHandler func(page *Page, m TagMatch) (string, error)

// Tag is a registered inline shorthand. The pattern is matched against the
// first segment of a [[target|arg|key=value]] tag.
type Tag struct {
	Name     string
	Priority int
	Handler  TagHandler
	pattern  *regexp.Regexp
}

// TagMatch holds the fields parsed from one tag occurrence.
type TagMatch struct {
	// Target is the first segment of the tag.
	Target string
	// Groups holds the named capture groups of the tag pattern.
	Groups map[string]string
	// Default is the first argument that is not a key=value pair, e.g. a
	// caption.
	Default string
	// Args holds key=value arguments in the order-independent form.
	Args map[string]string
}

// ErrNoPage is reported when a tag is rendered without a page.
var ErrNoPage = errors.New("content: tag rendered outside of a page")

// TagParser holds the registered tags. Tags are tried in ascending priority
// order; ties keep registration order. It is safe for concurrent use.
type TagParser struct {
	mu   sync.RWMutex
	tags []Tag
}

// NewTagParser creates an empty TagParser.
func NewTagParser() *TagParser {
	return &TagParser{}
}

// Register adds a tag. The pattern must match the whole target segment.
func (p *TagParser) Register(name, pattern string, priority int, handler TagHandler) error {
	if handler == nil {
		return fmt.Errorf("registering tag %q: nil handler", name)
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return fmt.Errorf("registering tag %q: %w", name, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.tags = append(p.tags, Tag{Name: name, Priority: priority, Handler: handler, pattern: re})
	sort.SliceStable(p.tags, func(i, j int) bool {
		return p.tags[i].Priority < p.tags[j].Priority
	})
	return nil
}

// Len reports the number of registered tags.
func (p *TagParser) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tags)
}

// Match parses the body of a tag (the text between "[[" and "]]") and returns
// the first registered tag whose pattern matches its target.
func (p *TagParser) Match(body string) (Tag, TagMatch, bool) {
	segments := strings.Split(body, "|")
	target := strings.TrimSpace(segments[0])
	if target == "" {
		return Tag{}, TagMatch{}, false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, tag := range p.tags {
		sub := tag.pattern.FindStringSubmatch(target)
		if sub == nil {
			continue
		}
		m := TagMatch{
			Target: target,
			Groups: make(map[string]string),
			Args:   make(map[string]string),
		}
		for i, name := range tag.pattern.SubexpNames() {
			if name != "" {
				m.Groups[name] = sub[i]
			}
		}
		for _, seg := range segments[1:] {
			if key, value, ok := strings.Cut(seg, "="); ok {
				m.Args[strings.TrimSpace(key)] = strings.TrimSpace(value)
			} else if m.Default == "" {
				m.Default = strings.TrimSpace(seg)
			}
		}
		return tag, m, true
	}
	return Tag{}, TagMatch{}, false
}
