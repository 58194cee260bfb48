package form

import (
	"errors"
	"fmt"
)

// ErrUnknownTab is returned by Tabs.Show for a name it does not hold.
var ErrUnknownTab = errors.New("form: unknown tab")

// Tabs holds a set of named tabs with exactly one visible.
type Tabs struct {
	names   []string
	visible string
}

// NewTabs creates tabs with the first name visible. It panics if names is
// empty, which is a programming error.
func NewTabs(names ...string) *Tabs {
	if len(names) == 0 {
		panic("form: NewTabs needs at least one tab")
	}
	return &Tabs{names: append([]string(nil), names...), visible: names[0]}
}

// Show makes name the visible tab. Showing the visible tab is a no-op.
func (t *Tabs) Show(name string) error {
	for _, n := range t.names {
		if n == name {
			t.visible = name
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownTab, name)
}

// Visible returns the visible tab.
func (t *Tabs) Visible() string { return t.visible }

// IsVisible reports whether name is the visible tab.
func (t *Tabs) IsVisible(name string) bool { return t.visible == name }

// Names returns the tab names in order.
func (t *Tabs) Names() []string { return append([]string(nil), t.names...) }

// Disclosure is an open/closed section such as advanced options.
type Disclosure struct {
	open bool
}

// Open shows the section.
func (d *Disclosure) Open() { d.open = true }

// Close hides the section.
func (d *Disclosure) Close() { d.open = false }

// Toggle flips the section and returns the new state.
func (d *Disclosure) Toggle() bool {
	d.open = !d.open
	return d.open
}

// IsOpen reports whether the section is shown.
func (d *Disclosure) IsOpen() bool { return d.open }
