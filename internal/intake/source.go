// Package intake accepts a video from a local file, a drag-and-drop or a
// remote URL and turns it into the Media the rest of the session works on.
package intake

import (
	"math"

	"github.com/maauso/vid2gif/internal/media"
)

// Kind identifies where a Source came from.
type Kind int

const (
	// KindNone is the zero Source.
	KindNone Kind = iota
	// KindFile is a local file selected by picker or drop.
	KindFile
	// KindURL is a preview URL resolved by the backend.
	KindURL
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindURL:
		return "url"
	default:
		return "none"
	}
}

// Source is exactly one of a local file path or a server-resolved preview URL.
type Source struct {
	kind       Kind
	path       string
	previewURL string
}

// FileSource returns a Source for a local file.
func FileSource(path string) Source {
	return Source{kind: KindFile, path: path}
}

// URLSource returns a Source for a resolved preview URL.
func URLSource(previewURL string) Source {
	return Source{kind: KindURL, previewURL: previewURL}
}

// Kind returns the source kind.
func (s Source) Kind() Kind { return s.kind }

// IsZero reports whether no media is selected.
func (s Source) IsZero() bool { return s.kind == KindNone }

// Path returns the local file path, empty for URL sources.
func (s Source) Path() string { return s.path }

// PreviewURL returns the resolved preview URL, empty for file sources.
func (s Source) PreviewURL() string { return s.previewURL }

// Media is a selected video with its probed properties and default trim.
type Media struct {
	Source Source
	// Name is the display name: the file's base name or the original URL.
	Name string
	// Size is the file size in bytes, zero for URL sources.
	Size int64
	// Location is what ffmpeg opens for probing and freeze-frames.
	Location string
	// Info holds the probe result when Probed is set.
	Info   media.Info
	Probed bool
	// TrimStart and TrimEnd are the default trim bounds in seconds.
	// TrimEnd is only meaningful when HasTrimEnd is set.
	TrimStart  float64
	TrimEnd    float64
	HasTrimEnd bool
}

// applyProbe records info and derives the default trim bounds.
func (m *Media) applyProbe(info media.Info) {
	m.Info = info
	m.Probed = true
	m.TrimStart = 0
	if info.Duration > 0 {
		m.TrimEnd = math.Floor(info.Duration)
		m.HasTrimEnd = true
	}
}
