package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maauso/vid2gif/internal/crop"
)

type frameOptions struct {
	at     float64
	crop   string
	output string
}

func newFrameCmd() *cobra.Command {
	opts := frameOptions{}
	cmd := &cobra.Command{
		Use:   "frame <file>",
		Short: "Capture a freeze-frame, optionally cropped, as PNG",
		Long: "Capture the frame at --at seconds and print the crop region the selector\n" +
			"settles on. Without --output the PNG is written to the temp directory.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFrame(cmd, args[0], &opts)
		},
	}
	f := cmd.Flags()
	f.Float64Var(&opts.at, "at", 0, "offset in seconds")
	f.StringVar(&opts.crop, "crop", "", "crop region x,y,width,height in source pixels")
	f.StringVarP(&opts.output, "output", "o", "", "write the PNG to this path")
	return cmd
}

func runFrame(cmd *cobra.Command, src string, o *frameOptions) error {
	ctx := cmd.Context()
	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	if a.deps.Processor == nil {
		return errors.New("frame capture needs ffmpeg and ffprobe on PATH or FFMPEG_PATH/FFPROBE_PATH")
	}

	media, err := a.deps.Intake.OpenFile(ctx, src)
	if err != nil {
		return err
	}
	data, err := a.deps.Processor.ExtractFrame(ctx, media.Location, o.at)
	if err != nil {
		return err
	}
	frame, err := crop.DecodeFrame(data, o.at)
	if err != nil {
		return err
	}

	sel := crop.NewSelector(nil)
	region, err := sel.Load(frame)
	if err != nil {
		return err
	}
	if o.crop != "" {
		rect, err := parseRect(o.crop)
		if err != nil {
			return err
		}
		if region, err = sel.Adjust(rect); err != nil {
			return err
		}
	}
	png, err := sel.PreviewPNG()
	if err != nil {
		return err
	}

	path := o.output
	if path == "" {
		name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		if path, err = a.deps.Temp.SaveTemp(ctx, name+"_frame", bytes.NewReader(png)); err != nil {
			return err
		}
	} else if err := os.WriteFile(path, png, 0600); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "frame: %dx%d at %.3fs\n", frame.Width(), frame.Height(), o.at)
	fmt.Fprintf(out, "crop: x=%d y=%d width=%d height=%d\n", region.X, region.Y, region.Width, region.Height)
	fmt.Fprintf(out, "saved: %s\n", path)
	return nil
}
