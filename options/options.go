// Package options holds the command-line settings shared by the gofsr
// commands.
package options

import (
	"fmt"

	"github.com/richinsley/gofsr/config"
	"github.com/richinsley/gofsr/log"
	"github.com/richinsley/gofsr/quality"
)

type Options struct {
	// Display size of the window, or of the output for image and transcode.
	Width  int
	Height int

	// Quality and Variant override the configuration file when set.
	Quality *quality.Mode
	Variant *quality.Variant

	ConfigPath  string
	MetricsAddr string
	LogLevel    log.Level

	Input   string
	Output  string
	Compare string

	FFmpegPath string
	Codec      string
	// Headless renders on an EGL pbuffer instead of a hidden window.
	Headless bool
}

// Validate checks the sizes and the files a command needs.
func (o *Options) Validate(needInput, needOutput bool) error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("invalid size %dx%d", o.Width, o.Height)
	}
	if needInput && o.Input == "" {
		return fmt.Errorf("missing input file")
	}
	if needOutput && o.Output == "" {
		return fmt.Errorf("missing output file")
	}
	return nil
}

// Apply writes the quality and variant overrides into the store.
func (o *Options) Apply(store *config.Store) error {
	if o.Quality != nil {
		if err := store.SetQuality(*o.Quality); err != nil {
			return err
		}
	}
	if o.Variant != nil {
		if err := store.SetUpscaleVariant(*o.Variant); err != nil {
			return err
		}
	}
	return nil
}
