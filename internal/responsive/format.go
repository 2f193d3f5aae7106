package responsive

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Format is a derivative encoding. Its value is used as the file extension.
type Format string

// Derivative formats. Every rung of a plan is written in both.
const (
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
)

// Formats lists the derivative formats in <source> order.
var Formats = []Format{FormatWebP, FormatJPEG}

// MediaType returns the MIME type used in <source type>.
func (f Format) MediaType() string {
	return "image/" + string(f)
}

// SupportsAlpha reports whether the encoding keeps an alpha channel.
func (f Format) SupportsAlpha() bool {
	return f == FormatWebP
}

// DefaultQuality is the compression quality used when none is configured.
func (f Format) DefaultQuality() int {
	if f == FormatWebP {
		return 60
	}
	return 75
}

// ParseHexColor parses "#rgb", "#rrggbb" or "#rrggbbaa".
func ParseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	rgb, alpha := s, uint8(0xff)
	switch len(s) {
	case 4, 7:
	case 9:
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
		}
		rgb, alpha = s[:7], uint8(a)
	default:
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: want #rgb, #rrggbb or #rrggbbaa", s)
	}

	c, err := colorful.Hex(rgb)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}
