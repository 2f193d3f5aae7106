package responsive

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
)

// Backend performs the imaging work behind the derivative writer.
type Backend interface {
	// Probe reads the dimensions and format of the image at path without
	// decoding its pixels.
	Probe(path string) (width, height int, format string, err error)
	// Decode reads the full image at path.
	Decode(path string) (image.Image, error)
	// Scale resizes img to exactly width x height.
	Scale(img image.Image, width, height int) image.Image
	// Flatten composites img onto an opaque canvas of colour bg.
	Flatten(img image.Image, bg color.Color) image.Image
	// Encode writes img to w in format at the given quality.
	Encode(w io.Writer, img image.Image, format Format, quality int) error
}

// ImagingBackend implements Backend with disintegration/imaging for decoding
// and resampling, image/jpeg for JPEG and gen2brain/webp for WebP.
type ImagingBackend struct{}

// Probe implements Backend.
func (ImagingBackend) Probe(path string) (int, int, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, "", err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, "", fmt.Errorf("reading image header: %w", err)
	}
	return cfg.Width, cfg.Height, format, nil
}

// Decode implements Backend. EXIF orientation is not applied so derivative
// dimensions agree with the probed ones.
func (ImagingBackend) Decode(path string) (image.Image, error) {
	return imaging.Open(path)
}

// Scale implements Backend using a Lanczos filter.
func (ImagingBackend) Scale(img image.Image, width, height int) image.Image {
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// Flatten implements Backend.
func (ImagingBackend) Flatten(img image.Image, bg color.Color) image.Image {
	b := img.Bounds()
	opaque := color.NRGBAModel.Convert(bg).(color.NRGBA)
	opaque.A = 0xff
	canvas := imaging.New(b.Dx(), b.Dy(), opaque)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

// Encode implements Backend.
func (ImagingBackend) Encode(w io.Writer, img image.Image, format Format, quality int) error {
	switch format {
	case FormatWebP:
		if err := webp.Encode(w, img, webp.Options{Quality: quality}); err != nil {
			return fmt.Errorf("encoding webp: %w", err)
		}
	case FormatJPEG:
		if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
			return fmt.Errorf("encoding jpeg: %w", err)
		}
	default:
		return fmt.Errorf("unsupported derivative format %q", format)
	}
	return nil
}

// hasAlpha reports whether img carries any non-opaque pixel information.
func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model, color.YCbCrModel, color.CMYKModel:
		return false
	}
	return true
}
