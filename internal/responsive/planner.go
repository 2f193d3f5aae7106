package responsive

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidDimensions is returned for sources without a positive width
	// and height.
	ErrInvalidDimensions = errors.New("responsive: source dimensions must be positive")
	// ErrNoBreakpoints is returned when a plan would contain no positive width.
	ErrNoBreakpoints = errors.New("responsive: no positive breakpoint widths")
)

// stepTolerance absorbs floating-point drift when the ladder reaches max.
const stepTolerance = 1e-4

// Breakpoint is one rung of the ladder. HiDPIWidth is the width of the 2x
// derivative, or 0 when none is written.
type Breakpoint struct {
	Width      int
	HiDPIWidth int
}

// Plan is an ascending breakpoint ladder for one source image. The last rung
// is rendered without a media condition.
type Plan struct {
	SourceWidth  int
	SourceHeight int
	Aspect       float64
	Breakpoints  []Breakpoint
}

// Last returns the widest rung.
func (p Plan) Last() Breakpoint {
	return p.Breakpoints[len(p.Breakpoints)-1]
}

// PlanBreakpoints computes the breakpoint ladder for a source image.
//
// Widths run from min-width (200 when unset) to max-width (the source width
// when unset) in num-steps equal steps. A zero step, from min == max or
// num-steps == 0, yields a single rung. When min-width exceeds max-width the
// ladder is the single rung max-width. Steps that round to the previous
// width are skipped.
func PlanBreakpoints(sourceWidth, sourceHeight int, attrs Attributes) (Plan, error) {
	if sourceWidth <= 0 || sourceHeight <= 0 {
		return Plan{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, sourceWidth, sourceHeight)
	}

	plan := Plan{
		SourceWidth:  sourceWidth,
		SourceHeight: sourceHeight,
		Aspect:       float64(sourceWidth) / float64(sourceHeight),
	}

	lo := attrs.MinWidth
	if lo <= 0 {
		lo = DefaultMinWidth
	}
	hi := attrs.MaxWidth
	if hi <= 0 {
		hi = sourceWidth
	}
	if lo > hi {
		lo = hi
	}

	var step float64
	if attrs.NumSteps > 0 {
		step = float64(hi-lo) / float64(attrs.NumSteps)
	}

	end := float64(hi)
	for v := float64(lo); v < end || math.Abs(v-end) < stepTolerance; v += step {
		w := int(math.Round(v))
		if n := len(plan.Breakpoints); w > 0 && (n == 0 || plan.Breakpoints[n-1].Width != w) {
			bp := Breakpoint{Width: w}
			if attrs.HiDPI && 2*w < sourceWidth {
				bp.HiDPIWidth = 2 * w
			}
			plan.Breakpoints = append(plan.Breakpoints, bp)
		}
		if step == 0 {
			break
		}
	}

	if len(plan.Breakpoints) == 0 {
		return Plan{}, ErrNoBreakpoints
	}
	return plan, nil
}
