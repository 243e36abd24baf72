package main

import (
	"os"
	"runtime"

	"github.com/urfave/cli"
)

func init() {
	// glfw and every GL call must stay on the main thread
	runtime.LockOSThread()
}

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "gofsr"
	app.Usage = "real-time spatial upscaling for OpenGL frames"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "log-level, l",
			Value:  "notice",
			Usage:  "debug, info, notice, warning or error",
			EnvVar: "GOFSR_LOG_LEVEL",
		},
	}
	app.Before = setupLogging
	app.Commands = []cli.Command{
		{
			Name:  "view",
			Usage: "show an image in a window, upscaled every frame",
			Description: `
Render the image (or a test pattern) at the upscaler's render resolution and
upscale it to the window every frame.

Keys: F10 toggles upscaling, F9 cycles the quality mode, F8 cycles the
upscaler and F7 toggles frame generation.`,
			ArgsUsage: "[image]",
			Flags: append(commonFlags(1280, 720),
				cli.StringFlag{
					Name:  "metrics-addr",
					Usage: "serve Prometheus metrics on this address, e.g. :9100",
				},
			),
			Action: View,
		},
		{
			Name:        "image",
			Usage:       "upscale a still image",
			Description: `Upscale one image offscreen and write the result as PNG.`,
			ArgsUsage:   "in out",
			Flags: append(commonFlags(1920, 1080),
				headlessFlag,
				cli.StringFlag{
					Name:  "compare",
					Usage: "also write a Catmull-Rom upscale of the same render resolution to this file",
				},
			),
			Action: UpscaleImage,
		},
		{
			Name:        "transcode",
			Usage:       "upscale a video",
			Description: `Decode a video with ffmpeg, upscale every frame and encode the result.`,
			ArgsUsage:   "in out",
			Flags: append(commonFlags(1920, 1080),
				headlessFlag,
				cli.StringFlag{
					Name:  "ffmpeg",
					Usage: "path to the ffmpeg executable",
				},
				cli.StringFlag{
					Name:  "codec",
					Value: "libx264",
					Usage: "output video codec",
				},
			),
			Action: Transcode,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}
