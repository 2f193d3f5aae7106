package template

import (
	"fmt"
	"html/template"
	"reflect"
	"strings"
	"time"
)

// FuncMap returns the custom template functions available to all templates.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		// String functions
		"truncate": truncate,
		"safeHTML": safeHTML,
		"join":     join,

		// Date functions
		"dateFormat": dateFormat,
		"now":        time.Now,

		// URL functions
		"relURL": relURL,

		// Helpers
		"dict":  dict,
		"slice": sliceHelper,

		// Replaced by Engine.Load with a lookup into the parsed set.
		"partial": func(name string, ctx any) template.HTML {
			return ""
		},
	}
}

// truncate truncates a string to n characters, appending "..." if truncated.
func truncate(n int, s string) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// safeHTML marks a string as safe HTML so Go templates will not escape it.
func safeHTML(s string) template.HTML {
	return template.HTML(s)
}

// join concatenates the elements of a slice with sep. Non-slice values are
// formatted with fmt.Sprint; nil yields an empty string.
func join(sep string, items any) string {
	if items == nil {
		return ""
	}
	v := reflect.ValueOf(items)
	if v.Kind() != reflect.Slice {
		return fmt.Sprint(items)
	}
	parts := make([]string, v.Len())
	for i := range parts {
		parts[i] = fmt.Sprint(v.Index(i).Interface())
	}
	return strings.Join(parts, sep)
}

// dateFormat formats a time.Time value using the given Go time layout string.
func dateFormat(layout string, t time.Time) string {
	return t.Format(layout)
}

// relURL joins a page's site path prefix with a site-relative path. Pages at
// the root get a "./" prefix so the result is always relative.
func relURL(sitePath, p string) string {
	p = strings.TrimPrefix(p, "/")
	if sitePath == "" {
		sitePath = "./"
	}
	return sitePath + p
}

// dict creates a map[string]any from alternating key-value pairs.
// Example usage in templates: {{ dict "key1" "val1" "key2" "val2" }}
func dict(values ...any) (map[string]any, error) {
	if len(values)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	m := make(map[string]any, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key at position %d is not a string", i)
		}
		m[key] = values[i+1]
	}
	return m, nil
}

// sliceHelper creates a slice from its arguments.
// Registered as "slice" in the template func map.
func sliceHelper(values ...any) []any {
	return values
}
