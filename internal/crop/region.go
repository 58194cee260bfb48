// Package crop implements the crop-region selector bound to a freeze-frame.
package crop

import (
	"errors"
	"fmt"
	"math"
)

// DefaultArea is the fraction of each frame dimension the initial region covers.
const DefaultArea = 0.8

var (
	// ErrInvalidRegion is returned for regions that are empty or leave the frame.
	ErrInvalidRegion = errors.New("crop: invalid region")
	// ErrInvalidFrameSize is returned when a frame has no pixels.
	ErrInvalidFrameSize = errors.New("crop: frame size must be positive")
)

// Region is a crop rectangle in integer source pixels.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect is a fractional rectangle as reported by an interactive widget.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Validate checks that r is non-empty and lies inside a frameW×frameH frame.
func (r Region) Validate(frameW, frameH int) error {
	switch {
	case r.X < 0 || r.Y < 0:
		return fmt.Errorf("%w: negative origin (%d,%d)", ErrInvalidRegion, r.X, r.Y)
	case r.Width <= 0 || r.Height <= 0:
		return fmt.Errorf("%w: empty size %dx%d", ErrInvalidRegion, r.Width, r.Height)
	case frameW > 0 && r.X+r.Width > frameW:
		return fmt.Errorf("%w: right edge %d beyond frame width %d", ErrInvalidRegion, r.X+r.Width, frameW)
	case frameH > 0 && r.Y+r.Height > frameH:
		return fmt.Errorf("%w: bottom edge %d beyond frame height %d", ErrInvalidRegion, r.Y+r.Height, frameH)
	}
	return nil
}

// DefaultRegion returns the centered region covering DefaultArea of each
// dimension.
func DefaultRegion(frameW, frameH int) (Region, error) {
	if frameW <= 0 || frameH <= 0 {
		return Region{}, fmt.Errorf("%w: %dx%d", ErrInvalidFrameSize, frameW, frameH)
	}
	w := max(1, int(math.Round(float64(frameW)*DefaultArea)))
	h := max(1, int(math.Round(float64(frameH)*DefaultArea)))
	return Region{
		X:      (frameW - w) / 2,
		Y:      (frameH - h) / 2,
		Width:  w,
		Height: h,
	}, nil
}

// Clamp rounds r to whole pixels and confines it to the frame. The size is
// clamped first so the origin can always be placed; the result is at least
// one pixel in each dimension.
func Clamp(r Rect, frameW, frameH int) (Region, error) {
	if frameW <= 0 || frameH <= 0 {
		return Region{}, fmt.Errorf("%w: %dx%d", ErrInvalidFrameSize, frameW, frameH)
	}
	for _, v := range []float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Region{}, fmt.Errorf("%w: non-finite coordinate", ErrInvalidRegion)
		}
	}

	w := clampInt(int(math.Round(r.Width)), 1, frameW)
	h := clampInt(int(math.Round(r.Height)), 1, frameH)
	x := clampInt(int(math.Round(r.X)), 0, frameW-w)
	y := clampInt(int(math.Round(r.Y)), 0, frameH-h)

	return Region{X: x, Y: y, Width: w, Height: h}, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
