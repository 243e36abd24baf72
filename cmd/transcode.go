package main

import (
	"context"
	"image"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/richinsley/gofsr/media"
	"github.com/urfave/cli"
)

// Transcode upscales every frame of a video.
func Transcode(ctx *cli.Context) error {
	opts, err := parseOptions(ctx)
	if err != nil {
		return err
	}
	if err := opts.Validate(true, true); err != nil {
		return err
	}

	info, err := media.Probe(opts.Input)
	if err != nil {
		return err
	}
	fps := info.FPS()
	if fps <= 0 {
		fps = 30
	}

	surf, done, err := offscreenSurface(opts)
	if err != nil {
		return err
	}
	defer done()

	blank := image.NewRGBA(image.Rect(0, 0, info.Width, info.Height))
	s, err := openSession(opts, scratchFs(), blank, surf)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.store.SetEnabled(true); err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	width, height := s.window.DisplaySize()
	tc := media.Transcoder{FFmpegPath: opts.FFmpegPath, Codec: opts.Codec}
	start := time.Now()
	frames, err := tc.Transcode(runCtx, opts.Input, opts.Output, width, height, func(index int, src *image.RGBA) (*image.RGBA, error) {
		if err := s.scene.Update(src); err != nil {
			return nil, err
		}
		ts := time.Duration(float64(index) / fps * float64(time.Second))
		return s.renderOnce(ts)
	})
	if err != nil {
		return err
	}

	st := s.proc.Stats()
	logger.Noticef("%d frames in %s, %d upscaled, %d copy-through, %d direct blit",
		frames, time.Since(start).Round(time.Millisecond), st.Frames, st.CopyThroughs, st.DirectBlits)
	return nil
}
