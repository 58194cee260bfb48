// Package media probes videos and captures freeze-frames by shelling out to
// ffprobe and ffmpeg. Sources may be local paths or URLs ffmpeg can open.
package media

import "context"

// Info describes the probed properties of a video source.
type Info struct {
	// Duration is the container duration in seconds.
	Duration float64
	// Width and Height are the first video stream's frame size in pixels.
	Width  int
	Height int
}

// Processor defines the interface for the media operations intake and
// cropping rely on.
type Processor interface {
	// Probe returns the duration and frame size of src.
	Probe(ctx context.Context, src string) (Info, error)

	// ExtractFrame captures the frame shown at the given offset in seconds
	// and returns it as PNG bytes.
	ExtractFrame(ctx context.Context, src string, atSeconds float64) ([]byte, error)
}
