package responsive

import (
	"bytes"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"golang.org/x/sync/singleflight"
)

// EncodeOptions tune a single derivative encode.
type EncodeOptions struct {
	// Quality is the compression quality; 0 selects the format default.
	Quality int
	// Background is composited under sources with alpha when the target
	// format has none. Nil leaves the pixels as they are.
	Background color.Color
}

// Writer creates derivative files. Concurrent requests for the same output
// path share one write. It is safe for concurrent use.
type Writer struct {
	backend Backend
	logger  *slog.Logger
	flights singleflight.Group
}

// NewWriter creates a Writer. A nil logger falls back to slog.Default.
func NewWriter(backend Backend, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{backend: backend, logger: logger}
}

// DerivativePath returns outDir/<slug>@<width>px.<format>.
func DerivativePath(outDir string, src *SourceImage, width int, format Format) string {
	return filepath.Join(outDir, fmt.Sprintf("%s@%dpx.%s", src.Slug(), width, format))
}

// Ensure returns the path of the derivative of src at width in format,
// writing it first unless a file at least as new as the source exists.
// A non-positive aspect uses the source's own.
func (w *Writer) Ensure(src *SourceImage, outDir string, width int, format Format, aspect float64, opts EncodeOptions) (string, error) {
	if width <= 0 {
		return "", fmt.Errorf("%w: derivative width %d", ErrInvalidDimensions, width)
	}
	if aspect <= 0 {
		if src.Height <= 0 {
			return "", fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, src.Width, src.Height)
		}
		aspect = float64(src.Width) / float64(src.Height)
	}

	path := DerivativePath(outDir, src, width, format)
	if upToDate(path, src.ModTime) {
		return path, nil
	}

	_, err, _ := w.flights.Do(path, func() (any, error) {
		// Another flight may have finished the file while we waited.
		if upToDate(path, src.ModTime) {
			return nil, nil
		}
		return nil, w.write(src, path, width, format, aspect, opts)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func (w *Writer) write(src *SourceImage, path string, width int, format Format, aspect float64, opts EncodeOptions) error {
	img, alpha, err := src.Image()
	if err != nil {
		return err
	}

	height := max(1, int(math.Round(float64(width)/aspect)))
	out := w.backend.Scale(img, width, height)
	if alpha && opts.Background != nil && !format.SupportsAlpha() {
		out = w.backend.Flatten(out, opts.Background)
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = format.DefaultQuality()
	}

	var buf bytes.Buffer
	if err := w.backend.Encode(&buf, out, format, quality); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating derivative directory: %w", err)
	}
	w.logger.Debug("writing image", "path", path, "width", width, "height", height, "format", string(format))
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	// atomic.WriteFile leaves new files readable by the owner only.
	if err := os.Chmod(path, 0o644); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}
	return nil
}

// upToDate reports whether path exists and is not older than the source.
func upToDate(path string, sourceMod time.Time) bool {
	info, err := os.Stat(path)
	return err == nil && !info.ModTime().Before(sourceMod)
}
