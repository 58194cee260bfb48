// Package form keeps redundant option controls consistent and turns the
// selected options into submission fields.
package form

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultTextColor is the initial overlay text color.
const DefaultTextColor = "#ffffff"

// DefaultBackgroundColor is the initial background fill.
const DefaultBackgroundColor = "#000000"

// ErrInvalidColor is returned when a value is not a #rgb or #rrggbb color.
var ErrInvalidColor = errors.New("form: invalid color")

// ParseColor normalizes a #rgb or #rrggbb string to lowercase #rrggbb.
func ParseColor(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		return "", false
	}
	hex := strings.ToLower(s[1:])
	for _, r := range hex {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return "", false
		}
	}
	switch len(hex) {
	case 6:
		return "#" + hex, true
	case 3:
		return "#" + string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]}), true
	default:
		return "", false
	}
}

// ColorPair mirrors a color swatch and a hex text field. The swatch always
// holds a valid color; the text may hold whatever the user typed.
type ColorPair struct {
	swatch string
	text   string
}

// NewColorPair creates a pair showing initial, which must be a valid color.
func NewColorPair(initial string) (*ColorPair, error) {
	c, ok := ParseColor(initial)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColor, initial)
	}
	return &ColorPair{swatch: c, text: c}, nil
}

// SetSwatch sets the swatch and mirrors it into the text field.
func (p *ColorPair) SetSwatch(color string) error {
	c, ok := ParseColor(color)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}
	p.swatch = c
	p.text = c
	return nil
}

// SetText records typed text and mirrors it into the swatch when it parses.
// It reports whether the swatch changed.
func (p *ColorPair) SetText(text string) bool {
	p.text = text
	c, ok := ParseColor(text)
	if !ok {
		return false
	}
	p.swatch = c
	return true
}

// Swatch returns the current valid color.
func (p *ColorPair) Swatch() string { return p.swatch }

// Text returns the text field contents.
func (p *ColorPair) Text() string { return p.text }

// Fill is a background choice: a color, or none.
type Fill struct {
	color string
	none  bool
}

// Some returns a Fill with the given normalized color.
func Some(color string) Fill { return Fill{color: color} }

// None returns the transparent Fill.
func None() Fill { return Fill{none: true} }

// IsNone reports whether the fill is transparent.
func (f Fill) IsNone() bool { return f.none }

// Color returns the fill color, with ok false for None.
func (f Fill) Color() (string, bool) {
	if f.none {
		return "", false
	}
	return f.color, true
}

func (f Fill) String() string {
	if f.none {
		return "none"
	}
	return f.color
}

// Background is a color pair gated by a "no background" toggle.
type Background struct {
	Pair *ColorPair
	none bool
}

// NewBackground creates an enabled background showing initial.
func NewBackground(initial string) (*Background, error) {
	pair, err := NewColorPair(initial)
	if err != nil {
		return nil, err
	}
	return &Background{Pair: pair}, nil
}

// SetNone toggles "no background". The pair keeps its last valid color.
func (b *Background) SetNone(none bool) { b.none = none }

// Enabled reports whether the color controls accept input.
func (b *Background) Enabled() bool { return !b.none }

// SetSwatch forwards to the pair when the controls are enabled.
func (b *Background) SetSwatch(color string) error {
	if b.none {
		return nil
	}
	return b.Pair.SetSwatch(color)
}

// SetText forwards to the pair when the controls are enabled.
func (b *Background) SetText(text string) bool {
	if b.none {
		return false
	}
	return b.Pair.SetText(text)
}

// Value returns the effective fill.
func (b *Background) Value() Fill {
	if b.none {
		return None()
	}
	return Some(b.Pair.Swatch())
}
