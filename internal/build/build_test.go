package build

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aellingwood/respimg/internal/config"
	"github.com/aellingwood/respimg/internal/content"
)

// writeTestFile writes data to root/rel, creating parent directories.
func writeTestFile(t *testing.T, root, rel, data string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeTestJPEG(t *testing.T, root, rel string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, root, rel, buf.String())
}

// setupTestSite creates a temporary project directory with content, a theme
// whose single layout carries a responsive <img>, and a source image.
func setupTestSite(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writeTestFile(t, root, "content/_index.md", `---
title: "Home"
---
Welcome to my site.
`)
	writeTestFile(t, root, "content/blog/_index.md", `---
title: "Blog"
---
All blog posts.
`)
	writeTestFile(t, root, "content/blog/first-post.md", `---
title: "First Post"
date: 2024-01-15
---
This is my **first** post.

Photo: [[photo.jpg|A photo|max-width=200|class=inline]]
`)
	writeTestFile(t, root, "content/blog/second-post.md", `---
title: "Second Post"
date: 2024-02-20
---
This is my **second** post. [[missing.png]]
`)
	writeTestFile(t, root, "content/blog/draft-post.md", `---
title: "Draft Post"
date: 2024-03-01
draft: true
---
This is a draft.
`)

	writeTestFile(t, root, "themes/default/layouts/_default/single.html", `<!DOCTYPE html>
<html>
<head><title>{{ .Title }}</title></head>
<body>
<header><img fn-responsive fn-responsive-min-width="400" src="{{ .SitePath }}images/photo.jpg" alt="Banner"></header>
{{ .Content }}
</body>
</html>`)
	writeTestFile(t, root, "themes/default/layouts/_default/list.html", `<!DOCTYPE html>
<html>
<head><title>{{ .Title }}</title></head>
<body><h1>{{ .Title }}</h1>{{ .Content }}</body>
</html>`)
	writeTestFile(t, root, "themes/default/layouts/index.html", `<!DOCTYPE html>
<html>
<head><title>{{ .Title }}</title></head>
<body><h1>{{ .Title }}</h1>{{ .Content }}</body>
</html>`)
	writeTestFile(t, root, "themes/default/static/css/style.css", "body { margin: 0; }")
	writeTestFile(t, root, "static/robots.txt", "User-agent: *")
	writeTestJPEG(t, root, "assets/images/photo.jpg", 400, 300)

	return root
}

func testConfig() *config.SiteConfig {
	cfg := config.Default()
	cfg.Title = "Test Site"
	cfg.BaseURL = "https://example.com"
	cfg.Theme = "default"
	return cfg
}

func readOutput(t *testing.T, outputDir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(outputDir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("reading %s: %v", rel, err)
	}
	return string(data)
}

func TestBuild_FullPipeline(t *testing.T) {
	root := setupTestSite(t)
	outputDir := filepath.Join(root, "public")

	builder := NewBuilder(testConfig(), BuildOptions{
		ProjectRoot: root,
		OutputDir:   outputDir,
	})

	result, err := builder.Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if result.PagesRendered != 4 {
		t.Errorf("PagesRendered = %d, want 4 (home + blog section + 2 posts)", result.PagesRendered)
	}
	if result.FilesWritten != 4 {
		t.Errorf("FilesWritten = %d, want 4", result.FilesWritten)
	}
	if result.Duration <= 0 {
		t.Error("Duration should be positive")
	}
	if result.OutputSize <= 0 {
		t.Error("OutputSize should be positive")
	}
	if result.OutputFiles < result.FilesWritten {
		t.Errorf("OutputFiles = %d, want at least %d", result.OutputFiles, result.FilesWritten)
	}

	for _, f := range []string{
		"index.html",
		"blog/index.html",
		"blog/first-post/index.html",
		"blog/second-post/index.html",
		"css/style.css",
		"css/syntax.css",
		"robots.txt",
		"images/photo.jpg",
	} {
		if _, err := os.Stat(filepath.Join(outputDir, f)); err != nil {
			t.Errorf("expected output file %s: %v", f, err)
		}
	}
	if _, err := os.Stat(filepath.Join(outputDir, "blog", "draft-post", "index.html")); !os.IsNotExist(err) {
		t.Error("draft post should not be in output when IncludeDrafts is false")
	}

	post := readOutput(t, outputDir, "blog/first-post/index.html")
	for _, want := range []string{
		"<title>First Post</title>",
		"<strong>first</strong>",
		// Inline tag, capped at 200px.
		`<img src="../../images/responsive_images/photo.jpg@200px.jpeg" loading="lazy" alt="A photo" class="inline"/>`,
		// Layout <img>, a single rung at the source width.
		`<img src="../../images/responsive_images/photo.jpg@400px.jpeg" loading="lazy" alt="Banner"/>`,
	} {
		if !strings.Contains(post, want) {
			t.Errorf("first post missing %q:\n%s", want, post)
		}
	}
	if n := strings.Count(post, "<picture>"); n != 2 {
		t.Errorf("first post has %d <picture> elements, want 2", n)
	}
	if strings.Contains(post, "fn-responsive") {
		t.Error("marker attribute left in output")
	}

	second := readOutput(t, outputDir, "blog/second-post/index.html")
	if !strings.Contains(second, "missing.png] does not exist.") {
		t.Errorf("missing image message not rendered:\n%s", second)
	}

	// Derivatives are written under the assets directory and copied out.
	for _, f := range []string{
		"photo.jpg@200px.webp",
		"photo.jpg@200px.jpeg",
		"photo.jpg@400px.webp",
		"photo.jpg@400px.jpeg",
	} {
		if _, err := os.Stat(filepath.Join(root, "assets", "images", "responsive_images", f)); err != nil {
			t.Errorf("derivative %s not written: %v", f, err)
		}
		if _, err := os.Stat(filepath.Join(outputDir, "images", "responsive_images", f)); err != nil {
			t.Errorf("derivative %s not copied: %v", f, err)
		}
	}
}

func TestBuild_ReusesDerivatives(t *testing.T) {
	root := setupTestSite(t)
	outputDir := filepath.Join(root, "public")
	derivative := filepath.Join(root, "assets", "images", "responsive_images", "photo.jpg@400px.webp")

	if _, err := NewBuilder(testConfig(), BuildOptions{ProjectRoot: root, OutputDir: outputDir}).Build(); err != nil {
		t.Fatalf("first Build() error: %v", err)
	}
	before, err := os.Stat(derivative)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, ".respimg", "cache")); err != nil {
		t.Errorf("cache directory not created: %v", err)
	}

	if _, err := NewBuilder(testConfig(), BuildOptions{ProjectRoot: root, OutputDir: outputDir}).Build(); err != nil {
		t.Fatalf("second Build() error: %v", err)
	}
	after, err := os.Stat(derivative)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Errorf("derivative rewritten: mtime %v -> %v", before.ModTime(), after.ModTime())
	}
	if !strings.Contains(readOutput(t, outputDir, "blog/first-post/index.html"), "<picture>") {
		t.Error("cached markup missing from the second build")
	}
}

func TestBuild_ImagesDisabled(t *testing.T) {
	root := setupTestSite(t)
	outputDir := filepath.Join(root, "public")
	cfg := testConfig()
	cfg.Images.Enabled = false

	if _, err := NewBuilder(cfg, BuildOptions{ProjectRoot: root, OutputDir: outputDir}).Build(); err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	post := readOutput(t, outputDir, "blog/first-post/index.html")
	if strings.Contains(post, "<picture>") {
		t.Errorf("images disabled but <picture> rendered:\n%s", post)
	}
	if !strings.Contains(post, "fn-responsive") {
		t.Error("layout <img> should be left as written")
	}
	if _, err := os.Stat(filepath.Join(root, "assets", "images", "responsive_images")); !os.IsNotExist(err) {
		t.Error("derivative directory created with images disabled")
	}
}

func TestBuild_IncludeDrafts(t *testing.T) {
	root := setupTestSite(t)
	outputDir := filepath.Join(root, "public")

	result, err := NewBuilder(testConfig(), BuildOptions{
		ProjectRoot:   root,
		OutputDir:     outputDir,
		IncludeDrafts: true,
	}).Build()
	if err != nil {
		t.Fatalf("Build() with drafts error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(outputDir, "blog", "draft-post", "index.html")); err != nil {
		t.Error("draft post should be in output when IncludeDrafts is true")
	}
	if result.PagesRendered != 5 {
		t.Errorf("PagesRendered = %d with drafts, want 5", result.PagesRendered)
	}
}

func TestBuild_FilterFuture(t *testing.T) {
	root := setupTestSite(t)
	futureDate := time.Now().Add(24 * time.Hour * 365).Format("2006-01-02")
	writeTestFile(t, root, "content/blog/future-post.md", `---
title: "Future Post"
date: `+futureDate+`
---
This is from the future.
`)
	outputDir := filepath.Join(root, "public")
	futurePath := filepath.Join(outputDir, "blog", "future-post", "index.html")

	if _, err := NewBuilder(testConfig(), BuildOptions{ProjectRoot: root, OutputDir: outputDir}).Build(); err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if _, err := os.Stat(futurePath); !os.IsNotExist(err) {
		t.Error("future post should not be in output when IncludeFuture is false")
	}

	if _, err := NewBuilder(testConfig(), BuildOptions{ProjectRoot: root, OutputDir: outputDir, IncludeFuture: true}).Build(); err != nil {
		t.Fatalf("Build() with future error: %v", err)
	}
	if _, err := os.Stat(futurePath); err != nil {
		t.Error("future post should be in output when IncludeFuture is true")
	}
}

func TestBuild_Minify(t *testing.T) {
	root := setupTestSite(t)
	outputDir := filepath.Join(root, "public")

	if _, err := NewBuilder(testConfig(), BuildOptions{ProjectRoot: root, OutputDir: outputDir}).Build(); err != nil {
		t.Fatal(err)
	}
	plain := readOutput(t, outputDir, "blog/first-post/index.html")

	if _, err := NewBuilder(testConfig(), BuildOptions{ProjectRoot: root, OutputDir: outputDir, Minify: true}).Build(); err != nil {
		t.Fatal(err)
	}
	minified := readOutput(t, outputDir, "blog/first-post/index.html")
	if len(minified) >= len(plain) {
		t.Errorf("minified page (%d bytes) not smaller than plain (%d bytes)", len(minified), len(plain))
	}
	if !strings.Contains(minified, "<picture>") {
		t.Error("minified page lost its <picture> elements")
	}
}

func TestBuild_NoHighlightStyle(t *testing.T) {
	root := setupTestSite(t)
	outputDir := filepath.Join(root, "public")
	cfg := testConfig()
	cfg.Build.HighlightStyle = ""

	if _, err := NewBuilder(cfg, BuildOptions{ProjectRoot: root, OutputDir: outputDir}).Build(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(outputDir, "css", "syntax.css")); !os.IsNotExist(err) {
		t.Error("syntax.css written without a highlight style")
	}
}

func TestBuild_VirtualHomePage(t *testing.T) {
	root := t.TempDir()
	outputDir := filepath.Join(root, "public")
	cfg := testConfig()
	cfg.Build.HighlightStyle = ""

	result, err := NewBuilder(cfg, BuildOptions{ProjectRoot: root, OutputDir: outputDir}).Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if result.PagesRendered != 1 {
		t.Errorf("PagesRendered = %d, want 1", result.PagesRendered)
	}
	if _, err := os.Stat(filepath.Join(outputDir, "index.html")); err != nil {
		t.Errorf("index.html not written: %v", err)
	}
}

func TestBuild_CleanOutput(t *testing.T) {
	root := setupTestSite(t)
	outputDir := filepath.Join(root, "public")
	writeTestFile(t, outputDir, "stale.html", "old")

	if _, err := NewBuilder(testConfig(), BuildOptions{ProjectRoot: root, OutputDir: outputDir}).Build(); err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outputDir, "stale.html")); !os.IsNotExist(err) {
		t.Error("stale file should have been removed during build")
	}
}

func TestNewBuilder(t *testing.T) {
	cfg := config.Default()
	cfg.Title = "My Site"

	b := NewBuilder(cfg, BuildOptions{IncludeDrafts: true, OutputDir: "/tmp/output"})
	if b.config.Title != "My Site" {
		t.Errorf("config.Title = %q, want %q", b.config.Title, "My Site")
	}
	if !b.options.IncludeDrafts {
		t.Error("options.IncludeDrafts should be true")
	}
	if b.logger == nil {
		t.Error("logger should default to slog.Default")
	}
}

func TestPageToContext(t *testing.T) {
	page := &content.Page{
		Title:     "Test Page",
		Content:   "<p>hello</p>",
		Slug:      "test-page",
		URL:       "/test-page/",
		Permalink: "https://example.com/test-page/",
		Section:   "blog",
		Type:      content.PageTypeSingle,
		Date:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	ctx := pageToContext(page, nil)

	if ctx.Title != "Test Page" || ctx.Slug != "test-page" || ctx.URL != "/test-page/" {
		t.Errorf("pageToContext() = %+v", ctx)
	}
	if ctx.Type != "single" {
		t.Errorf("Type = %q, want %q", ctx.Type, "single")
	}
	if string(ctx.Content) != "<p>hello</p>" {
		t.Errorf("Content = %q", ctx.Content)
	}
	if ctx.Site != nil {
		t.Error("Site should be nil when nil is passed")
	}
}
