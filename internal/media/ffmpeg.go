package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrSourceRequired is returned when no source path or URL is given.
	ErrSourceRequired = errors.New("media: source is required")
	// ErrInvalidOffset is returned when a frame offset is negative.
	ErrInvalidOffset = errors.New("media: frame offset must not be negative")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrNoVideoStream is returned when the source has no decodable video stream.
	ErrNoVideoStream = errors.New("media: no video stream")
	// ErrEmptyFrame is returned when ffmpeg exits cleanly without writing a frame.
	ErrEmptyFrame = errors.New("media: no frame at offset")
)

// Compile-time check that FFmpegProcessor implements Processor.
var _ Processor = (*FFmpegProcessor)(nil)

// FFmpegProcessor implements Processor using the ffmpeg CLI.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// Option configures an FFmpegProcessor.
type Option func(*FFmpegProcessor)

// WithFFprobePath overrides the ffprobe binary.
func WithFFprobePath(path string) Option {
	return func(p *FFmpegProcessor) {
		if path != "" {
			p.ffprobePath = path
		}
	}
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegProcessor(ffmpegPath string, opts ...Option) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	p := &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: "ffprobe"}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// probeOutput is the subset of `ffprobe -of json` output we read.
type probeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe returns the duration and frame size of src in one ffprobe call.
func (p *FFmpegProcessor) Probe(ctx context.Context, src string) (Info, error) {
	if src == "" {
		return Info{}, ErrSourceRequired
	}

	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:format=duration",
		"-of", "json",
		src,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return Info{}, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return Info{}, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	return parseProbe(stdout.Bytes())
}

func parseProbe(raw []byte) (Info, error) {
	var out probeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return Info{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 || out.Streams[0].Width <= 0 || out.Streams[0].Height <= 0 {
		return Info{}, ErrNoVideoStream
	}

	info := Info{Width: out.Streams[0].Width, Height: out.Streams[0].Height}

	// Some containers (live streams, raw elementary streams) have no duration.
	if d := strings.TrimSpace(out.Format.Duration); d != "" && d != "N/A" {
		duration, err := strconv.ParseFloat(d, 64)
		if err != nil {
			return Info{}, fmt.Errorf("parse duration: %w", err)
		}
		info.Duration = duration
	}
	return info, nil
}

// ExtractFrame seeks to atSeconds and encodes a single frame as PNG on stdout.
func (p *FFmpegProcessor) ExtractFrame(ctx context.Context, src string, atSeconds float64) ([]byte, error) {
	if src == "" {
		return nil, ErrSourceRequired
	}
	if atSeconds < 0 {
		return nil, fmt.Errorf("%w: got %.3f", ErrInvalidOffset, atSeconds)
	}

	args := []string{
		"-v", "error",
		"-ss", strconv.FormatFloat(atSeconds, 'f', 3, 64), // Seek before input for a fast keyframe seek
		"-i", src,
		"-frames:v", "1", // Output single frame (image)
		"-f", "image2pipe",
		"-c:v", "png",
		"pipe:1",
	}

	var stdout bytes.Buffer
	if err := p.runFFmpeg(ctx, args, &stdout); err != nil {
		return nil, err
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: %.3fs", ErrEmptyFrame, atSeconds)
	}
	return stdout.Bytes(), nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string, stdout io.Writer) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
