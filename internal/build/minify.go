package build

import (
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
)

// minifier shrinks rendered pages and stylesheets. A disabled minifier
// returns its input unchanged.
type minifier struct {
	m *minify.M
}

func newMinifier(enabled bool) *minifier {
	if !enabled {
		return &minifier{}
	}
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	return &minifier{m: m}
}

// HTML minifies an HTML document or fragment.
func (mf *minifier) HTML(data []byte) ([]byte, error) {
	if mf.m == nil {
		return data, nil
	}
	return mf.m.Bytes("text/html", data)
}

// CSS minifies a stylesheet.
func (mf *minifier) CSS(data []byte) ([]byte, error) {
	if mf.m == nil {
		return data, nil
	}
	return mf.m.Bytes("text/css", data)
}
