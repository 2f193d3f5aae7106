package content

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// datePrefixRe matches a leading YYYY-MM-DD- date prefix in a filename.
var datePrefixRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-`)

// Discover loads every Markdown page under contentDir with its frontmatter,
// type, section, slug and URL. Rendering and draft filtering are left to the
// caller. A missing content directory yields no pages.
//
// A directory holding index.md is a page bundle: its other Markdown files are
// not pages, and its images resolve beside the page.
func Discover(contentDir string) ([]*Page, error) {
	files, bundles, err := scanContent(contentDir)
	if err != nil {
		return nil, err
	}

	var pages []*Page
	for _, path := range files {
		dir := filepath.Dir(path)
		if bundles[dir] && filepath.Base(path) != "index.md" {
			continue
		}
		page, err := loadPage(contentDir, path)
		if err != nil {
			return nil, err
		}
		if bundles[dir] {
			page.BundleDir = dir
		}
		classify(page, filepath.Base(path))
		pages = append(pages, page)
	}
	return pages, nil
}

// scanContent lists the Markdown files under contentDir in walk order and
// the directories that are page bundles.
func scanContent(contentDir string) ([]string, map[string]bool, error) {
	bundles := make(map[string]bool)
	var files []string
	err := filepath.WalkDir(contentDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".md" {
			return nil
		}
		files = append(files, path)
		if d.Name() == "index.md" {
			bundles[filepath.Dir(path)] = true
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("walking content directory: %w", err)
	}
	return files, bundles, nil
}

func loadPage(contentDir, path string) (*Page, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	metadata, body, err := ParseFrontmatter(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	page := &Page{RawContent: string(body)}
	if metadata != nil {
		if err := PopulatePage(page, metadata); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	rel, err := filepath.Rel(contentDir, path)
	if err != nil {
		return nil, err
	}
	page.SourcePath = filepath.ToSlash(rel)
	if dir := filepath.ToSlash(filepath.Dir(rel)); dir != "." {
		page.SourceDir = dir
		page.Section, _, _ = strings.Cut(dir, "/")
	}
	return page, nil
}

// classify sets the page type, fills a missing slug and derives the URL.
func classify(page *Page, filename string) {
	switch {
	case filename == "_index.md" && page.SourceDir == "":
		page.Type = PageTypeHome
		page.URL = "/"
		return
	case filename == "_index.md":
		page.Type = PageTypeList
		page.URL = "/" + page.Section + "/"
		return
	}

	page.Type = PageTypeSingle
	if page.Slug == "" {
		name := strings.TrimSuffix(filename, ".md")
		if page.BundleDir != "" {
			name = filepath.Base(page.BundleDir)
		}
		page.Slug = slugify(datePrefixRe.ReplaceAllString(name, ""))
	}
	if page.Section == "" {
		page.URL = "/" + page.Slug + "/"
	} else {
		page.URL = "/" + page.Section + "/" + page.Slug + "/"
	}
}

// slugify lowercases name, folds accented letters to their base letter and
// keeps only a-z, 0-9 and periods. Runs of spaces, underscores and hyphens
// become a single hyphen.
func slugify(name string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
			hyphen = false
		case r == ' ' || r == '_' || r == '-':
			if !hyphen {
				b.WriteByte('-')
				hyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
