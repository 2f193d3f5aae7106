package responsive

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/aellingwood/respimg/internal/config"
	"github.com/aellingwood/respimg/internal/content"
)

func newPostProcessor(t *testing.T, cfg *config.SiteConfig, b Backend) *PostProcessor {
	t.Helper()
	logger, logs := logBuffer()
	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("logs:\n%s", logs)
		}
	})
	return NewPostProcessor(NewGenerator(cfg.Images, b, logger), cfg, logger)
}

func TestProcessFullDocument(t *testing.T) {
	cfg := testConfig()
	s, root := testSite(t, cfg)
	writeJPEG(t, filepath.Join(root, "assets/images/photo.jpg"), 800, 600)
	pp := newPostProcessor(t, cfg, &countingBackend{})

	page := &content.Page{URL: "/"}
	in := `<!DOCTYPE html><html><head><title>T</title></head><body>` +
		`<p>Hi</p><img fn-responsive src="/images/photo.jpg" alt="A" class="x" fn-responsive-max-width="400">` +
		`<img src="/images/plain.jpg"></body></html>`

	out, err := pp.Process(s, page, []byte(in))
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	got := string(out)
	for _, want := range []string{
		"<title>T</title>",
		"<p>Hi</p><picture>",
		`<img src="./images/responsive_images/photo.jpg@400px.jpeg" loading="lazy" alt="A" class="x"/>`,
		`<img src="/images/plain.jpg"/>`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, Marker) {
		t.Errorf("marker left in output:\n%s", got)
	}
}

func TestProcessDocumentWithOmittedTags(t *testing.T) {
	cfg := testConfig()
	s, root := testSite(t, cfg)
	writeJPEG(t, filepath.Join(root, "assets/images/photo.jpg"), 300, 200)
	pp := newPostProcessor(t, cfg, &countingBackend{})

	tests := []struct {
		name string
		in   string
	}{
		{"doctype without html", "<!DOCTYPE html>\n<head><meta charset=\"utf-8\"><title>T</title></head>\n<body><img fn-responsive src=\"/images/photo.jpg\"></body>"},
		{"lowercase doctype only", "<!doctype html><meta charset=\"utf-8\"><title>T</title><img fn-responsive src=\"/images/photo.jpg\">"},
		{"uppercase head and body", "<HEAD><title>T</title></HEAD><BODY><img fn-responsive src=\"/images/photo.jpg\"></BODY>"},
		{"body only", "<body><p>x</p><img fn-responsive src=\"/images/photo.jpg\"></body>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := pp.Process(s, &content.Page{URL: "/"}, []byte(tt.in))
			if err != nil {
				t.Fatalf("Process() error: %v", err)
			}
			got := string(out)
			order := []string{"<head>", "</head>", "<body>", "<picture>", "</body>"}
			if strings.Contains(strings.ToLower(tt.in), "<title>") {
				order = []string{"<head>", "<title>T</title>", "</head>", "<body>", "<picture>", "</body>"}
			}
			last := -1
			for _, want := range order {
				i := strings.Index(got, want)
				if i <= last {
					t.Fatalf("%q missing or out of place:\n%s", want, got)
				}
				last = i
			}
			if strings.Contains(strings.ToLower(tt.in), "<!doctype") && !strings.HasPrefix(got, "<!DOCTYPE html>") {
				t.Errorf("doctype lost:\n%s", got)
			}
		})
	}
}

func TestIsDocument(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"<!DOCTYPE html><p>x</p>", true},
		{"<Html lang=en>", true},
		{"<head><title>x</title></head>", true},
		{"<BODY>x</BODY>", true},
		{"<p>Intro</p><img src=x>", false},
		{"<header>not a head</header><bodyguard>", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isDocument([]byte(tt.in)); got != tt.want {
			t.Errorf("isDocument(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestProcessFragment(t *testing.T) {
	cfg := testConfig()
	s, root := testSite(t, cfg)
	writeJPEG(t, filepath.Join(root, "assets/images/photo.jpg"), 300, 200)
	pp := newPostProcessor(t, cfg, &countingBackend{})

	in := "<p>Intro</p>\n<img fn-responsive src=\"images/photo.jpg\">\n<p>Outro</p>"
	out, err := pp.Process(s, &content.Page{URL: "/"}, []byte(in))
	if err != nil {
		t.Fatal(err)
	}
	got := string(out)
	if !strings.HasPrefix(got, "<p>Intro</p>\n<picture>") || !strings.HasSuffix(got, "</picture>\n<p>Outro</p>") {
		t.Errorf("fragment not preserved:\n%s", got)
	}
	for _, tag := range []string{"<html", "<head", "<body"} {
		if strings.Contains(got, tag) {
			t.Errorf("fragment gained %s:\n%s", tag, got)
		}
	}
}

func TestProcessPageRelativeSource(t *testing.T) {
	cfg := testConfig()
	s, root := testSite(t, cfg)
	writeJPEG(t, filepath.Join(root, "assets/images/photo.jpg"), 300, 200)
	pp := newPostProcessor(t, cfg, &countingBackend{})

	in := `<p><img fn-responsive src="../../images/photo.jpg"></p>`
	out, err := pp.Process(s, &content.Page{URL: "/blog/post/"}, []byte(in))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `src="../../images/responsive_images/photo.jpg@300px.jpeg"`) {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestProcessLeavesPagesAlone(t *testing.T) {
	cfg := testConfig()
	s, _ := testSite(t, cfg)
	b := &countingBackend{}
	pp := newPostProcessor(t, cfg, b)

	tests := []struct {
		name string
		url  string
		in   string
	}{
		{"not html", "/feed.xml", `<img fn-responsive src="/images/photo.jpg">`},
		{"no marker", "/", `<p><img src="/images/photo.jpg"></p>`},
		{"empty src", "/", `<p><img fn-responsive src=""></p>`},
		{"missing src", "/", `<p><img fn-responsive></p>`},
		{"remote src", "/", `<p><img fn-responsive src="https://cdn.example.com/a.jpg"></p>`},
		{"escaping src", "/", `<p><img fn-responsive src="../../../etc/passwd.jpg"></p>`},
		{"marker in text only", "/", `<p>use fn-responsive on an img</p>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := pp.Process(s, &content.Page{URL: tt.url}, []byte(tt.in))
			if err != nil {
				t.Fatal(err)
			}
			if string(out) != tt.in {
				t.Errorf("Process() = %q, want input unchanged", out)
			}
		})
	}
	if b.probes != 0 {
		t.Errorf("probes = %d, want 0", b.probes)
	}
}

func TestProcessMissingImage(t *testing.T) {
	cfg := testConfig()
	s, root := testSite(t, cfg)
	writeJPEG(t, filepath.Join(root, "assets/images/photo.jpg"), 300, 200)
	pp := newPostProcessor(t, cfg, &countingBackend{})

	in := `<p><img fn-responsive src="images/gone.jpg"><img fn-responsive src="images/photo.jpg"></p>`
	out, err := pp.Process(s, &content.Page{URL: "/"}, []byte(in))
	if err != nil {
		t.Fatal(err)
	}
	got := string(out)
	if !strings.Contains(got, "Responsive Image Plugin: File [") || !strings.Contains(got, "gone.jpg] does not exist.") {
		t.Errorf("missing-file message not rendered:\n%s", got)
	}
	if strings.Count(got, "<picture>") != 1 {
		t.Errorf("want one <picture>:\n%s", got)
	}
}

func TestProcessErrorLeavesPage(t *testing.T) {
	cfg := testConfig()
	s, root := testSite(t, cfg)
	writeJPEG(t, filepath.Join(root, "assets/images/photo.jpg"), 300, 200)
	boom := errors.New("encoder failure")
	pp := newPostProcessor(t, cfg, &countingBackend{encodeErr: boom})

	in := []byte(`<p><img fn-responsive src="images/photo.jpg"></p>`)
	out, err := pp.Process(s, &content.Page{URL: "/"}, in)
	if !errors.Is(err, boom) {
		t.Fatalf("Process() error = %v, want %v", err, boom)
	}
	if out != nil {
		t.Errorf("Process() output = %q, want nil on error", out)
	}
	if string(in) != `<p><img fn-responsive src="images/photo.jpg"></p>` {
		t.Error("input buffer was modified")
	}
}

func TestExtractAttributes(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<img fn-responsive fn-responsive-preset="thumb" src=" a.jpg " alt="x" loading="eager" ` +
			`fn-responsive-alt="y" data-id="1" CLASS="c">`))
	if err != nil {
		t.Fatal(err)
	}
	raw, src := extractAttributes(doc.Find("img"))
	if src != "a.jpg" {
		t.Errorf("src = %q", src)
	}
	wantOpts := map[string]string{"preset": "thumb", "alt": "y", "loading": "eager"}
	if len(raw.Options) != len(wantOpts) {
		t.Errorf("Options = %v, want %v", raw.Options, wantOpts)
	}
	for k, v := range wantOpts {
		if raw.Options[k] != v {
			t.Errorf("Options[%s] = %q, want %q", k, raw.Options[k], v)
		}
	}
	if len(raw.HTML) != 2 || raw.HTML["data-id"] != "1" || raw.HTML["class"] != "c" {
		t.Errorf("HTML = %v", raw.HTML)
	}
}

func TestSourcePath(t *testing.T) {
	cfg := testConfig()
	cfg.BasePath = "/sub/"
	pp := NewPostProcessor(nil, cfg, nil)

	tests := []struct {
		src, sitePath string
		want          string
		ok            bool
	}{
		{"/sub/images/a.jpg", "", "assets/images/a.jpg", true},
		{"/images/a.jpg", "", "assets/images/a.jpg", true},
		{"images/a.jpg", "", "assets/images/a.jpg", true},
		{"./images/a.jpg", "", "assets/images/a.jpg", true},
		{"../images/a.jpg", "../", "assets/images/a.jpg", true},
		{"images/a%20b.jpg?v=1#top", "", "assets/images/a b.jpg", true},
		{"https://example.com/a.jpg", "", "", false},
		{"//cdn.example.com/a.jpg", "", "", false},
		{"data:image/png;base64,AAAA", "", "", false},
		{"../../etc/a.jpg", "", "", false},
		{"/", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, ok := pp.sourcePath(tt.src, tt.sitePath)
			if got != tt.want || ok != tt.ok {
				t.Errorf("sourcePath(%q, %q) = %q, %v; want %q, %v", tt.src, tt.sitePath, got, ok, tt.want, tt.ok)
			}
		})
	}
}
