package crop

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
)

// ErrNotLoaded is returned when the selector has no frame bound.
var ErrNotLoaded = errors.New("crop: no frame loaded")

// Frame is a decoded freeze-frame.
type Frame struct {
	Image image.Image
	// PNG is the encoded frame as captured.
	PNG []byte
	// At is the preview offset in seconds the frame was captured at.
	At float64
}

// Width returns the frame width in pixels.
func (f Frame) Width() int { return f.Image.Bounds().Dx() }

// Height returns the frame height in pixels.
func (f Frame) Height() int { return f.Image.Bounds().Dy() }

// DecodeFrame decodes captured image bytes into a Frame.
func DecodeFrame(data []byte, at float64) (Frame, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("crop: decode frame: %w", err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return Frame{}, fmt.Errorf("%w: %dx%d", ErrInvalidFrameSize, b.Dx(), b.Dy())
	}
	return Frame{Image: img, PNG: data, At: at}, nil
}

// ChangeFunc receives every region the selector settles on.
type ChangeFunc func(Region)

// Selector binds a crop region to a frame. One Selector lives for the whole
// session; loading a new frame re-initializes it in place.
type Selector struct {
	mu       sync.Mutex
	frame    *Frame
	region   Region
	onChange ChangeFunc
}

// NewSelector creates an empty Selector. onChange may be nil.
func NewSelector(onChange ChangeFunc) *Selector {
	return &Selector{onChange: onChange}
}

// Load binds f, resets the region to the default and emits it.
func (s *Selector) Load(f Frame) (Region, error) {
	if f.Image == nil {
		return Region{}, fmt.Errorf("%w: nil image", ErrInvalidFrameSize)
	}
	r, err := DefaultRegion(f.Width(), f.Height())
	if err != nil {
		return Region{}, err
	}

	s.mu.Lock()
	s.frame = &f
	s.region = r
	cb := s.onChange
	s.mu.Unlock()

	if cb != nil {
		cb(r)
	}
	return r, nil
}

// Adjust applies a widget rectangle, rounded and clamped to the frame, and
// emits the result.
func (s *Selector) Adjust(r Rect) (Region, error) {
	s.mu.Lock()
	if s.frame == nil {
		s.mu.Unlock()
		return Region{}, ErrNotLoaded
	}
	region, err := Clamp(r, s.frame.Width(), s.frame.Height())
	if err != nil {
		s.mu.Unlock()
		return Region{}, err
	}
	s.region = region
	cb := s.onChange
	s.mu.Unlock()

	if cb != nil {
		cb(region)
	}
	return region, nil
}

// Active reports whether a frame is bound.
func (s *Selector) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame != nil
}

// Region returns the current region, if a frame is bound.
func (s *Selector) Region() (Region, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return Region{}, false
	}
	return s.region, true
}

// Frame returns the bound frame.
func (s *Selector) Frame() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return Frame{}, false
	}
	return *s.frame, true
}

// Reset unbinds the frame. No change is emitted.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = nil
	s.region = Region{}
}

// Preview returns the part of the frame the current region keeps.
func (s *Selector) Preview() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil, ErrNotLoaded
	}
	r := s.region
	return imaging.Crop(s.frame.Image, image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)), nil
}

// PreviewPNG encodes Preview as PNG.
func (s *Selector) PreviewPNG() ([]byte, error) {
	img, err := s.Preview()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("crop: encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
