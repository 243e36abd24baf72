package main

import (
	"errors"
	"fmt"

	"github.com/richinsley/gofsr/media"
	"github.com/spf13/afero"
	"github.com/urfave/cli"
)

// UpscaleImage upscales one still image to the display size.
func UpscaleImage(ctx *cli.Context) error {
	opts, err := parseOptions(ctx)
	if err != nil {
		return err
	}
	if err := opts.Validate(true, true); err != nil {
		return err
	}

	osfs := afero.NewOsFs()
	img, err := media.LoadImage(osfs, opts.Input)
	if err != nil {
		return err
	}

	surf, done, err := offscreenSurface(opts)
	if err != nil {
		return err
	}
	defer done()

	s, err := openSession(opts, scratchFs(), img, surf)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.store.SetEnabled(true); err != nil {
		return err
	}

	out, err := s.renderOnce(0)
	if err != nil {
		return err
	}
	if st := s.proc.Stats(); st.Frames == 0 {
		return errors.New("upscaling failed, nothing written")
	}
	if err := media.SaveImage(osfs, opts.Output, out); err != nil {
		return err
	}
	renderW, renderH := s.proc.RenderDimensions()
	logger.Noticef("wrote %s (%dx%d from %dx%d)", opts.Output, out.Bounds().Dx(), out.Bounds().Dy(), renderW, renderH)

	if opts.Compare != "" {
		// the same render-resolution input, scaled up on the CPU
		low := media.Reference(img, renderW, renderH)
		ref := media.Reference(low, out.Bounds().Dx(), out.Bounds().Dy())
		if err := media.SaveImage(osfs, opts.Compare, ref); err != nil {
			return fmt.Errorf("write comparison: %w", err)
		}
		logger.Noticef("wrote Catmull-Rom reference %s", opts.Compare)
	}
	return nil
}
