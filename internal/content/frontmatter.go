package content

import (
	"bytes"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// frontmatterFormat pairs a fence line with the decoder for the block it
// encloses.
type frontmatterFormat struct {
	fence  []byte
	decode func([]byte, any) error
}

var frontmatterFormats = []frontmatterFormat{
	{fence: []byte("---"), decode: yaml.Unmarshal},
	{fence: []byte("+++"), decode: toml.Unmarshal},
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseFrontmatter splits raw into its metadata and Markdown body. YAML is
// fenced by "---" lines and TOML by "+++" lines; the closing fence must start
// a line. Without an opening fence the whole input is body and metadata is
// nil.
func ParseFrontmatter(raw []byte) (map[string]any, []byte, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")

	for _, f := range frontmatterFormats {
		if !bytes.HasPrefix(trimmed, f.fence) {
			continue
		}
		_, rest, ok := bytes.Cut(trimmed, []byte("\n"))
		if !ok {
			return nil, raw, nil
		}

		var block []byte
		if bytes.HasPrefix(rest, f.fence) {
			rest = rest[len(f.fence):]
		} else {
			i := bytes.Index(rest, append([]byte("\n"), f.fence...))
			if i < 0 {
				return nil, raw, fmt.Errorf("frontmatter: closing %q not found", f.fence)
			}
			block, rest = rest[:i+1], rest[i+1+len(f.fence):]
		}
		_, body, _ := bytes.Cut(rest, []byte("\n"))

		metadata := make(map[string]any)
		if len(bytes.TrimSpace(block)) > 0 {
			if err := f.decode(block, &metadata); err != nil {
				return nil, nil, fmt.Errorf("frontmatter: %w", err)
			}
		}
		return metadata, body, nil
	}
	return nil, raw, nil
}

// PopulatePage copies known frontmatter keys onto page. Values are coerced
// with cast, so "true" is a valid draft flag. Title is required.
func PopulatePage(page *Page, metadata map[string]any) error {
	title, err := cast.ToStringE(metadata["title"])
	if err != nil || title == "" {
		return fmt.Errorf("frontmatter: required field \"title\" is missing or empty")
	}
	page.Title = title

	for key, dst := range map[string]*string{
		"slug":        &page.Slug,
		"description": &page.Description,
		"layout":      &page.Layout,
	} {
		if v, ok := metadata[key]; ok {
			*dst = cast.ToString(v)
		}
	}

	if v, ok := metadata["draft"]; ok {
		if page.Draft, err = cast.ToBoolE(v); err != nil {
			return fmt.Errorf("frontmatter: invalid \"draft\": %w", err)
		}
	}
	for key, dst := range map[string]*time.Time{
		"date":    &page.Date,
		"lastmod": &page.Lastmod,
	} {
		v, ok := metadata[key]
		if !ok {
			continue
		}
		if *dst, err = parseDate(v); err != nil {
			return fmt.Errorf("frontmatter: invalid %q: %w", key, err)
		}
	}
	if v, ok := metadata["params"]; ok {
		if page.Params, err = cast.ToStringMapE(v); err != nil {
			return fmt.Errorf("frontmatter: invalid \"params\": %w", err)
		}
	}
	return nil
}

// parseDate accepts the time.Time values YAML and TOML decode natively, and
// strings in one of dateLayouts.
func parseDate(v any) (time.Time, error) {
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("unsupported date type %T", v)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date %q", s)
}
