package responsive

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aellingwood/respimg/internal/buildcache"
	"github.com/aellingwood/respimg/internal/config"
	"github.com/aellingwood/respimg/internal/site"
	tmpl "github.com/aellingwood/respimg/internal/template"
)

// countingBackend wraps ImagingBackend and counts calls. Unless real is set,
// scaling and encoding are stubbed so tests stay fast.
type countingBackend struct {
	real      bool
	encodeErr error

	mu       sync.Mutex
	probes   int
	decodes  int
	scales   int
	flattens int
	encodes  []string // "<format>@<width>"
}

func (b *countingBackend) Probe(path string) (int, int, string, error) {
	b.mu.Lock()
	b.probes++
	b.mu.Unlock()
	return ImagingBackend{}.Probe(path)
}

func (b *countingBackend) Decode(path string) (image.Image, error) {
	b.mu.Lock()
	b.decodes++
	b.mu.Unlock()
	return ImagingBackend{}.Decode(path)
}

func (b *countingBackend) Scale(img image.Image, width, height int) image.Image {
	b.mu.Lock()
	b.scales++
	b.mu.Unlock()
	if b.real {
		return ImagingBackend{}.Scale(img, width, height)
	}
	return image.NewNRGBA(image.Rect(0, 0, width, height))
}

func (b *countingBackend) Flatten(img image.Image, bg color.Color) image.Image {
	b.mu.Lock()
	b.flattens++
	b.mu.Unlock()
	return ImagingBackend{}.Flatten(img, bg)
}

func (b *countingBackend) Encode(w io.Writer, img image.Image, format Format, quality int) error {
	b.mu.Lock()
	b.encodes = append(b.encodes, fmt.Sprintf("%s@%d", format, img.Bounds().Dx()))
	b.mu.Unlock()
	if b.encodeErr != nil {
		return b.encodeErr
	}
	if b.real {
		return ImagingBackend{}.Encode(w, img, format, quality)
	}
	_, err := fmt.Fprintf(w, "%s q=%d", format, quality)
	return err
}

func (b *countingBackend) encodeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.encodes)
}

// writeJPEG writes an opaque w x h JPEG to path.
func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, buf.Bytes())
}

// writePNG writes a w x h PNG with a transparent left half to path.
func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(255)
			if x < w/2 {
				a = 0
			}
			img.Set(x, y, color.NRGBA{R: 200, G: 10, B: 10, A: a})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, buf.Bytes())
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// logBuffer returns a debug-level logger writing text records to a buffer.
func logBuffer() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// testSite creates a project root with the default image directories and a
// site whose template engine carries the built-in fragment template.
func testSite(t *testing.T, cfg *config.SiteConfig) (*site.Site, string) {
	t.Helper()
	root := t.TempDir()

	engine := tmpl.NewEngine()
	engine.AddFallback(Templates())
	if err := engine.Load(); err != nil {
		t.Fatal(err)
	}
	store, err := buildcache.NewMemoryStore(128)
	if err != nil {
		t.Fatal(err)
	}
	cache := buildcache.New(store)
	t.Cleanup(func() { _ = cache.Close() })

	return site.New(cfg, root, engine, cache), root
}

func testConfig() *config.SiteConfig {
	cfg := config.Default()
	cfg.Title = "Test"
	return cfg
}

// listDir returns the names of the files in dir, or nil if it is missing.
func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
