package main

import (
	"github.com/richinsley/gofsr/config"
	"github.com/richinsley/gofsr/log"
	"github.com/richinsley/gofsr/options"
	"github.com/richinsley/gofsr/quality"
	"github.com/urfave/cli"
)

var logger = log.New("gofsr")

func setupLogging(ctx *cli.Context) error {
	level, err := log.ParseLevel(ctx.GlobalString("log-level"))
	if err != nil {
		return err
	}
	log.SetLevel(level)
	return nil
}

var headlessFlag = cli.BoolFlag{
	Name:  "headless",
	Usage: "render on an EGL pbuffer instead of a hidden window (linux only)",
}

func commonFlags(width, height int) []cli.Flag {
	return []cli.Flag{
		cli.IntFlag{
			Name:  "width",
			Value: width,
			Usage: "display width",
		},
		cli.IntFlag{
			Name:  "height",
			Value: height,
			Usage: "display height",
		},
		cli.StringFlag{
			Name:  "quality, q",
			Usage: "ultra_quality, quality, balanced, performance or ultra_performance",
		},
		cli.StringFlag{
			Name:  "variant",
			Usage: "fsr1, fsr2 or fsr3",
		},
		cli.StringFlag{
			Name:  "config, c",
			Value: config.DefaultFile,
			Usage: "settings file",
		},
	}
}

// parseOptions reads the flags and the positional arguments of the current
// command.
func parseOptions(ctx *cli.Context) (*options.Options, error) {
	opts := &options.Options{
		Width:       ctx.Int("width"),
		Height:      ctx.Int("height"),
		ConfigPath:  ctx.String("config"),
		MetricsAddr: ctx.String("metrics-addr"),
		Compare:     ctx.String("compare"),
		FFmpegPath:  ctx.String("ffmpeg"),
		Codec:       ctx.String("codec"),
		Headless:    ctx.Bool("headless"),
		Input:       ctx.Args().Get(0),
		Output:      ctx.Args().Get(1),
	}
	level, err := log.ParseLevel(ctx.GlobalString("log-level"))
	if err != nil {
		return nil, err
	}
	opts.LogLevel = level

	if name := ctx.String("quality"); name != "" {
		mode, err := quality.ParseMode(name)
		if err != nil {
			return nil, err
		}
		opts.Quality = &mode
	}
	if name := ctx.String("variant"); name != "" {
		variant, err := quality.ParseVariant(name)
		if err != nil {
			return nil, err
		}
		opts.Variant = &variant
	}
	return opts, nil
}
