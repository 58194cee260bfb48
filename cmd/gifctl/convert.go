package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maauso/vid2gif/internal/crop"
	"github.com/maauso/vid2gif/internal/form"
	"github.com/maauso/vid2gif/internal/session"
)

type convertOptions struct {
	start        float64
	end          float64
	fps          int
	resize       string
	speed        float64
	text         string
	textSize     int
	textColor    string
	bgColor      string
	noBackground bool
	crop         string
	output       string
	json         bool
}

func newConvertCmd() *cobra.Command {
	opts := convertOptions{}
	cmd := &cobra.Command{
		Use:   "convert <file|url>",
		Short: "Convert a local video file or a remote video URL to a GIF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args[0], &opts)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.start, "start", 0, "trim start in seconds")
	f.Float64Var(&opts.end, "end", 0, "trim end in seconds (0 keeps the whole clip)")
	f.IntVar(&opts.fps, "fps", form.DefaultFPS, "frames per second")
	f.StringVar(&opts.resize, "resize", form.DefaultResize, `output width in pixels or "original"`)
	f.Float64Var(&opts.speed, "speed", form.DefaultSpeed, "playback speed multiplier")
	f.StringVar(&opts.text, "text", "", "text overlay")
	f.IntVar(&opts.textSize, "text-size", form.DefaultTextSize, "text overlay size")
	f.StringVar(&opts.textColor, "text-color", form.DefaultTextColor, "text overlay color (#rgb or #rrggbb)")
	f.StringVar(&opts.bgColor, "bg-color", form.DefaultBackgroundColor, "text background color")
	f.BoolVar(&opts.noBackground, "no-background", false, "draw the text without a background")
	f.StringVar(&opts.crop, "crop", "", "crop region x,y,width,height in source pixels")
	f.StringVarP(&opts.output, "output", "o", "", "download the GIF to this path")
	f.BoolVar(&opts.json, "json", false, "print the final session view as JSON")
	return cmd
}

// formOptions runs the flags through the form controls.
func (o *convertOptions) formOptions() (form.Options, error) {
	opts := form.DefaultOptions()
	opts.StartTime = o.start
	if o.end > 0 {
		end := o.end
		opts.EndTime = &end
	}
	opts.FPS = o.fps
	opts.Resize = o.resize
	opts.Speed = o.speed
	opts.TextOverlay = o.text
	opts.TextSize = o.textSize

	controls := form.NewControls()
	if err := controls.TextColor.SetSwatch(o.textColor); err != nil {
		return form.Options{}, fmt.Errorf("--text-color: %w", err)
	}
	controls.Background.SetNone(o.noBackground)
	if err := controls.Background.SetSwatch(o.bgColor); err != nil {
		return form.Options{}, fmt.Errorf("--bg-color: %w", err)
	}
	opts = controls.Apply(opts)

	// Catch flag mistakes before anything touches the network.
	if err := opts.Validate(); err != nil {
		return form.Options{}, err
	}
	return opts, nil
}

func runConvert(cmd *cobra.Command, src string, o *convertOptions) error {
	opts, err := o.formOptions()
	if err != nil {
		return err
	}
	var rect *crop.Rect
	if o.crop != "" {
		r, err := parseRect(o.crop)
		if err != nil {
			return err
		}
		rect = &r
	}

	ctx, stopSignals := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	stop := a.runSession(ctx)
	defer stop()

	v, convErr := convert(ctx, a.deps.Session, src, opts, rect)
	if convErr == nil && o.output != "" {
		convErr = a.download(ctx, v.Result, o.output)
	}

	out := cmd.OutOrStdout()
	if o.json {
		if err := printJSON(out, v); err != nil {
			return err
		}
	} else if v.Result != nil {
		fmt.Fprintf(out, "%s (%dx%d)\n", v.Result.URL, v.Result.Width, v.Result.Height)
		fmt.Fprintf(out, "download: %s\n", v.Result.DownloadPath)
		if o.output != "" && convErr == nil {
			fmt.Fprintf(out, "saved: %s\n", o.output)
		}
	}
	return convErr
}

// convert drives one submission cycle through the session and returns the
// final view.
func convert(ctx context.Context, sess *session.Coordinator, src string, opts form.Options, rect *crop.Rect) (session.View, error) {
	var err error
	if isRemote(src) {
		_, err = sess.EnterURL(ctx, src)
	} else {
		_, err = sess.SelectFile(ctx, src)
	}
	if err != nil {
		return session.View{}, err
	}

	v, err := sess.WaitFor(ctx, func(v session.View) bool { return !v.Loading && !v.Resolving })
	if err != nil {
		return v, err
	}
	if !v.PreviewReady {
		return v, viewError(v)
	}

	if rect != nil {
		if _, err := sess.StartCrop(ctx, opts.StartTime); err != nil {
			return v, err
		}
		v, err = sess.WaitFor(ctx, func(v session.View) bool { return !v.Capturing })
		if err != nil {
			return v, err
		}
		if !v.CropActive {
			return v, viewError(v)
		}
		if v, err = sess.AdjustCrop(ctx, *rect); err != nil {
			return v, err
		}
		if v.Error != "" {
			return v, viewError(v)
		}
	}

	v, err = sess.Submit(ctx, opts)
	if err != nil {
		return v, err
	}
	if v.State != session.StateSubmitting.String() {
		return v, viewError(v)
	}

	v, err = sess.WaitFor(ctx, session.View.Terminal)
	if err != nil {
		return v, err
	}
	if v.Result == nil {
		return v, viewError(v)
	}
	return v, nil
}

func viewError(v session.View) error {
	if v.Error == "" {
		return errors.New("conversion did not complete")
	}
	return errors.New(v.Error)
}

// download streams the result into path through a sibling temp file.
func (a *app) download(ctx context.Context, res *session.Result, path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".gifctl-*.part")
	if err != nil {
		return fmt.Errorf("create download file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := a.deps.API.Download(ctx, res.AssetName, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("download %s: %w", res.AssetName, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("save download: %w", err)
	}

	a.logger.Info("result downloaded",
		slog.String("asset", res.AssetName),
		slog.String("path", path),
		slog.Int64("bytes", n),
	)
	return nil
}
