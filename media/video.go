package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// StreamInfo describes the first video stream of a file.
type StreamInfo struct {
	Width     int
	Height    int
	FrameRate string
	Codec     string
}

// FPS returns the frame rate as a number, or 0 when it is unknown.
func (s StreamInfo) FPS() float64 {
	num, den, ok := strings.Cut(s.FrameRate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// Probe runs ffprobe on path.
func Probe(path string) (StreamInfo, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return StreamInfo{}, fmt.Errorf("probe %s: %w", path, err)
	}
	return parseProbe(out)
}

func parseProbe(data string) (StreamInfo, error) {
	var probe struct {
		Streams []struct {
			CodecType    string `json:"codec_type"`
			CodecName    string `json:"codec_name"`
			Width        int    `json:"width"`
			Height       int    `json:"height"`
			AvgFrameRate string `json:"avg_frame_rate"`
			RFrameRate   string `json:"r_frame_rate"`
		} `json:"streams"`
	}
	if err := json.Unmarshal([]byte(data), &probe); err != nil {
		return StreamInfo{}, fmt.Errorf("parse probe output: %w", err)
	}
	for _, s := range probe.Streams {
		if s.CodecType != "video" {
			continue
		}
		info := StreamInfo{Width: s.Width, Height: s.Height, FrameRate: s.RFrameRate, Codec: s.CodecName}
		if info.FPS() == 0 {
			info.FrameRate = s.AvgFrameRate
		}
		if info.Width <= 0 || info.Height <= 0 {
			return StreamInfo{}, fmt.Errorf("video stream has no size")
		}
		return info, nil
	}
	return StreamInfo{}, errors.New("no video stream")
}

// FrameFunc turns one decoded frame into one output frame of the transcode
// size. src is reused for the next frame once FrameFunc returns.
type FrameFunc func(index int, src *image.RGBA) (*image.RGBA, error)

// Transcoder runs ffmpeg twice: one process decodes to raw RGBA, the other
// encodes the frames FrameFunc returns.
type Transcoder struct {
	// FFmpegPath overrides the ffmpeg binary. Empty means ffmpeg on PATH.
	FFmpegPath string
	// Codec is the output video codec. Empty means libx264.
	Codec string
	// Log receives the ffmpeg diagnostics. Nil means os.Stderr.
	Log io.Writer
}

// Transcode upscales in to out at width x height with the default Transcoder.
func Transcode(ctx context.Context, in, out string, width, height int, fn FrameFunc) (int, error) {
	return Transcoder{}.Transcode(ctx, in, out, width, height, fn)
}

// Transcode returns the number of frames written. The input's audio is not
// carried over.
func (t Transcoder) Transcode(ctx context.Context, in, out string, width, height int, fn FrameFunc) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("transcode: invalid size %dx%d", width, height)
	}
	info, err := Probe(in)
	if err != nil {
		return 0, err
	}
	logger.Infof("transcoding %s (%dx%d %s @ %s) to %s at %dx%d", in, info.Width, info.Height, info.Codec, info.FrameRate, out, width, height)

	decR, decW := io.Pipe()
	encR, encW := io.Pipe()

	decoder := ffmpeg.Input(in).
		Output("pipe:", ffmpeg.KwArgs{"format": "rawvideo", "pix_fmt": "rgba"}).
		WithOutput(decW).WithErrorOutput(t.log())
	encoder := ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"format":  "rawvideo",
		"pix_fmt": "rgba",
		"s":       fmt.Sprintf("%dx%d", width, height),
		"r":       info.FrameRate,
	}).
		Output(out, t.outputArgs()).
		OverWriteOutput().WithInput(encR).WithErrorOutput(t.log())
	if t.FFmpegPath != "" {
		decoder = decoder.SetFfmpegPath(t.FFmpegPath)
		encoder = encoder.SetFfmpegPath(t.FFmpegPath)
	}

	decErr := make(chan error, 1)
	go func() {
		err := decoder.Run()
		decW.CloseWithError(err)
		decErr <- err
	}()
	encErr := make(chan error, 1)
	go func() {
		err := encoder.Run()
		encR.CloseWithError(err)
		encErr <- err
	}()

	frames, loopErr := t.pump(ctx, decR, encW, info, width, height, fn)
	// unblocks the decoder when the loop stopped early
	decR.CloseWithError(io.ErrClosedPipe)
	encW.Close()

	derr, eerr := <-decErr, <-encErr
	switch {
	case loopErr != nil:
		return frames, loopErr
	case eerr != nil:
		return frames, fmt.Errorf("encoder: %w", eerr)
	case derr != nil:
		return frames, fmt.Errorf("decoder: %w", derr)
	}
	logger.Infof("wrote %d frames to %s", frames, out)
	return frames, nil
}

func (t Transcoder) pump(ctx context.Context, r io.Reader, w io.Writer, info StreamInfo, width, height int, fn FrameFunc) (int, error) {
	src := image.NewRGBA(image.Rect(0, 0, info.Width, info.Height))
	for index := 0; ; index++ {
		select {
		case <-ctx.Done():
			return index, ctx.Err()
		default:
		}

		if _, err := io.ReadFull(r, src.Pix); err != nil {
			if errors.Is(err, io.EOF) {
				return index, nil
			}
			return index, fmt.Errorf("read frame %d: %w", index, err)
		}
		dst, err := fn(index, src)
		if err != nil {
			return index, fmt.Errorf("frame %d: %w", index, err)
		}
		if b := dst.Bounds(); b.Dx() != width || b.Dy() != height {
			return index, fmt.Errorf("frame %d: got %dx%d, want %dx%d", index, b.Dx(), b.Dy(), width, height)
		}
		if _, err := w.Write(dst.Pix); err != nil {
			return index, fmt.Errorf("write frame %d: %w", index, err)
		}
	}
}

func (t Transcoder) outputArgs() ffmpeg.KwArgs {
	codec := t.Codec
	if codec == "" {
		codec = "libx264"
	}
	args := ffmpeg.KwArgs{"c:v": codec, "pix_fmt": "yuv420p", "b:v": "25M"}
	if codec == "libx265" {
		args["tag:v"] = "hvc1"
	}
	return args
}

func (t Transcoder) log() io.Writer {
	if t.Log != nil {
		return t.Log
	}
	return os.Stderr
}
