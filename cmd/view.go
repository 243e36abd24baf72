package main

import (
	"context"
	"errors"
	"image"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	glfw "github.com/go-gl/glfw/v3.3/glfw"
	"github.com/richinsley/gofsr/glfwcontext"
	"github.com/richinsley/gofsr/media"
	"github.com/richinsley/gofsr/metrics"
	"github.com/spf13/afero"
	"github.com/urfave/cli"
)

// View runs the interactive window.
func View(ctx *cli.Context) error {
	opts, err := parseOptions(ctx)
	if err != nil {
		return err
	}
	if err := opts.Validate(false, false); err != nil {
		return err
	}

	var img image.Image
	if opts.Input != "" {
		img, err = media.LoadImage(afero.NewOsFs(), opts.Input)
		if err != nil {
			return err
		}
	} else {
		img = media.Pattern(opts.Width, opts.Height)
	}

	if err := glfwcontext.InitGraphics(); err != nil {
		return err
	}
	defer glfwcontext.TerminateGraphics()

	win, err := glfwcontext.New(opts.Width, opts.Height, "gofsr", true)
	if err != nil {
		return err
	}
	s, err := openSession(opts, afero.NewOsFs(), img, win)
	if err != nil {
		return err
	}
	defer s.Close()

	controls := s.loop.Controls
	win.RegisterKeyCallback(glfw.KeyF10, controls.Toggle)
	win.RegisterKeyCallback(glfw.KeyF9, controls.CycleQuality)
	win.RegisterKeyCallback(glfw.KeyF8, controls.CycleVariant)
	win.RegisterKeyCallback(glfw.KeyF7, controls.ToggleFrameGeneration)

	if opts.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(s.proc))
		srv := &http.Server{Addr: opts.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Noticef("serving metrics on %s/metrics", opts.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("metrics server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = s.loop.Run(runCtx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
