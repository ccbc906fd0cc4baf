// Package video encodes an ordered PNG frame sequence into an H.264 MP4.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/nstyle/dealership/internal/system"
)

var (
	// ErrEncode wraps every ffmpeg failure.
	ErrEncode = errors.New("video encode failed")
	// ErrLocked means another run is writing the same output file.
	ErrLocked = errors.New("output is locked by another run")
)

// Encoder turns frames into a video file at output.
type Encoder interface {
	Encode(ctx context.Context, framePaths []string, fps int, output string) error
}

// FFmpegEncoder streams frames to ffmpeg's stdin as an image2pipe input.
type FFmpegEncoder struct {
	FFmpegPath  string // default "ffmpeg"
	FFprobePath string // default: ffprobe next to FFmpegPath
	Codec       string // libx264, h264_nvenc, h264_videotoolbox or "auto"
	PixelFormat string // default yuv420p
	Quality     int    // crf for libx264, cq for nvenc, bitrate/100k for videotoolbox
	Preset      string
	Verify      bool // probe the result with ffprobe before publishing it
	Logger      zerolog.Logger
}

func (e *FFmpegEncoder) ffmpegPath() string {
	if e.FFmpegPath != "" {
		return e.FFmpegPath
	}
	return "ffmpeg"
}

func (e *FFmpegEncoder) ffprobePath() string {
	if e.FFprobePath != "" {
		return e.FFprobePath
	}
	ff := e.ffmpegPath()
	base := filepath.Base(ff)
	if !strings.ContainsRune(ff, filepath.Separator) || !strings.Contains(base, "ffmpeg") {
		return "ffprobe"
	}
	return filepath.Join(filepath.Dir(ff), strings.Replace(base, "ffmpeg", "ffprobe", 1))
}

func (e *FFmpegEncoder) codec() string {
	switch e.Codec {
	case "":
		return "libx264"
	case "auto":
		return system.BestH264Encoder(e.ffmpegPath())
	}
	return e.Codec
}

// Args builds the ffmpeg command line writing to output.
func (e *FFmpegEncoder) Args(fps int, codec, output string) []string {
	pixFmt := e.PixelFormat
	if pixFmt == "" {
		pixFmt = "yuv420p"
	}
	out := ffmpeg.KwArgs{
		"f":       "mp4",
		"c:v":     codec,
		"pix_fmt": pixFmt,
		"r":       fps,
	}
	switch codec {
	case "h264_videotoolbox":
		if e.Quality > 0 {
			out["b:v"] = fmt.Sprintf("%dk", e.Quality*100)
		}
	case "h264_nvenc":
		if e.Quality > 0 {
			out["cq"] = e.Quality
		}
	default:
		if e.Quality > 0 {
			out["crf"] = e.Quality
		}
		if e.Preset != "" {
			out["preset"] = e.Preset
		}
	}

	return ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"f":         "image2pipe",
		"framerate": fps,
	}).Output(output, out).OverWriteOutput().GetArgs()
}

// partialPath keeps the container extension next to the .partial marker.
func partialPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + ".partial" + ext
}

// Encode writes the frames, in list order, into output. The file appears
// atomically: ffmpeg writes a partial file that is renamed on success and
// removed on failure.
func (e *FFmpegEncoder) Encode(ctx context.Context, framePaths []string, fps int, output string) error {
	if len(framePaths) == 0 {
		return fmt.Errorf("%w: no frames", ErrEncode)
	}
	if fps <= 0 {
		return fmt.Errorf("%w: invalid frame rate %d", ErrEncode, fps)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	lockPath := output + ".lock"
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", output, err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrLocked, output)
	}
	defer func() {
		lock.Unlock()
		os.Remove(lockPath)
	}()

	partial := partialPath(output)
	if err := e.run(ctx, framePaths, fps, partial); err != nil {
		os.Remove(partial)
		return err
	}

	if e.Verify {
		if err := verify(ctx, e.ffprobePath(), partial); err != nil {
			os.Remove(partial)
			return err
		}
	}

	if err := os.Rename(partial, output); err != nil {
		os.Remove(partial)
		return fmt.Errorf("%w: publish %s: %v", ErrEncode, output, err)
	}
	return nil
}

func (e *FFmpegEncoder) run(ctx context.Context, framePaths []string, fps int, partial string) error {
	args := e.Args(fps, e.codec(), partial)
	e.Logger.Debug().Str("ffmpeg", e.ffmpegPath()).Strs("args", args).Msg("starting encoder")

	cmd := exec.CommandContext(ctx, e.ffmpegPath(), args...)
	var diag bytes.Buffer
	cmd.Stdout = &diag
	cmd.Stderr = &diag

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: stdin pipe: %v", ErrEncode, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start ffmpeg: %v", ErrEncode, err)
	}

	// A write error usually means ffmpeg exited early; Wait reports why.
	writeErr := streamFrames(stdin, framePaths)
	stdin.Close()
	waitErr := cmd.Wait()

	switch {
	case waitErr != nil:
		return fmt.Errorf("%w: ffmpeg: %v\n%s", ErrEncode, waitErr, tail(diag.String(), 4096))
	case writeErr != nil:
		return fmt.Errorf("%w: %v", ErrEncode, writeErr)
	}
	return nil
}

func streamFrames(w io.Writer, framePaths []string) error {
	for i, p := range framePaths {
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

type probeResult struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		NbFrames  string `json:"nb_frames"`
	} `json:"streams"`
}

// probeArgs mirrors the arguments ffmpeg.Probe passes to ffprobe.
func probeArgs(path string) []string {
	return []string{"-show_format", "-show_streams", "-of", "json", path}
}

// verify checks that ffprobe sees exactly one non-empty video stream.
func verify(ctx context.Context, ffprobe, path string) error {
	var out []byte
	var err error
	if ffprobe == "ffprobe" {
		var s string
		s, err = ffmpeg.Probe(path)
		out = []byte(s)
	} else {
		var stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, ffprobe, probeArgs(path)...)
		cmd.Stderr = &stderr
		out, err = cmd.Output()
		if err != nil {
			err = fmt.Errorf("%v: %s", err, tail(stderr.String(), 1024))
		}
	}
	if err != nil {
		return fmt.Errorf("%w: probe: %v", ErrEncode, err)
	}
	var res probeResult
	if err := json.Unmarshal(out, &res); err != nil {
		return fmt.Errorf("%w: probe output: %v", ErrEncode, err)
	}

	videos := 0
	for _, s := range res.Streams {
		if s.CodecType != "video" {
			continue
		}
		videos++
		if n, err := strconv.Atoi(s.NbFrames); err == nil && n == 0 {
			return fmt.Errorf("%w: video stream has no frames", ErrEncode)
		}
	}
	if videos != 1 {
		return fmt.Errorf("%w: expected one video stream, found %d", ErrEncode, videos)
	}
	return nil
}
