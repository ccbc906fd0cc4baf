// Package engine drives the promo pipeline: validate the storyboard, render
// every frame, encode them, optionally publish the result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/nstyle/dealership/internal/frames"
	"github.com/nstyle/dealership/internal/publish"
	"github.com/nstyle/dealership/internal/raster"
	"github.com/nstyle/dealership/internal/scene"
	"github.com/nstyle/dealership/internal/storyboard"
	"github.com/nstyle/dealership/internal/video"
)

// State is the pipeline's progress.
type State int

const (
	StateInit State = iota
	StateFramesGenerated
	StateEncoded
	StatePublished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateFramesGenerated:
		return "FRAMES_GENERATED"
	case StateEncoded:
		return "ENCODED"
	case StatePublished:
		return "PUBLISHED"
	case StateFailed:
		return "FAILED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options are the per-run knobs of a PromoProject.
type Options struct {
	FPS          int
	Workers      int
	Output       string
	TempRoot     string // parent of the scoped frame dir; os.TempDir when empty
	ShowStats    bool
	BenchmarkLog string // appended when ShowStats is set
	BuildVersion string
}

// Report summarises a run.
type Report struct {
	State     State
	Frames    int
	Segments  int
	Output    string
	Location  string // set when published
	Render    time.Duration
	Encode    time.Duration
	Total     time.Duration
	FramesSec float64
}

// PromoProject owns one pipeline run.
type PromoProject struct {
	Options    Options
	Storyboard *storyboard.Storyboard
	Rasterizer raster.Rasterizer
	Encoder    video.Encoder
	Publisher  publish.Publisher // optional
	Logger     zerolog.Logger

	// NewRasterizer, when set, builds the rasterizer once the scoped frame
	// directory exists. It takes precedence over Rasterizer.
	NewRasterizer func(frameDir string) (raster.Rasterizer, error)

	state   State
	tempDir string
}

func NewPromoProject(opts Options, sb *storyboard.Storyboard, r raster.Rasterizer, enc video.Encoder, log zerolog.Logger) *PromoProject {
	return &PromoProject{
		Options:    opts,
		Storyboard: sb,
		Rasterizer: r,
		Encoder:    enc,
		Logger:     log,
	}
}

// State reports where the last Run stopped.
func (p *PromoProject) State() State { return p.state }

// Run executes the pipeline once. The scoped frame directory is removed on
// every exit path, and the output file only exists if encoding succeeded.
func (p *PromoProject) Run(ctx context.Context) (*Report, error) {
	p.state = StateInit
	report, err := p.run(ctx)
	if err != nil {
		p.state = StateFailed
		p.Logger.Error().Err(err).Msg("promo pipeline failed")
	}
	if report != nil {
		report.State = p.state
	}
	return report, err
}

func (p *PromoProject) run(ctx context.Context) (*Report, error) {
	start := time.Now()
	fps := p.Options.FPS

	if err := p.Storyboard.Validate(fps); err != nil {
		return nil, err
	}
	if p.Encoder == nil {
		return nil, errors.New("engine: no encoder")
	}
	if p.Options.Output == "" {
		return nil, errors.New("engine: no output path")
	}

	var err error
	p.tempDir, err = os.MkdirTemp(p.Options.TempRoot, "nstyle-promo-")
	if err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}
	defer os.RemoveAll(p.tempDir)

	rasterizer := p.Rasterizer
	if p.NewRasterizer != nil {
		if rasterizer, err = p.NewRasterizer(p.tempDir); err != nil {
			return nil, err
		}
	}
	if rasterizer == nil {
		return nil, errors.New("engine: no rasterizer")
	}

	total := p.Storyboard.TotalFrames(fps)
	p.Logger.Info().
		Int("segments", len(p.Storyboard.Segments)).
		Int("frames", total).
		Int("fps", fps).
		Str("output", p.Options.Output).
		Msg("rendering promo")

	builder := &frames.Builder{
		Synth:      &scene.Synthesizer{},
		Rasterizer: rasterizer,
		Dir:        p.tempDir,
		Workers:    p.Options.Workers,
		Logger:     p.Logger,
	}

	renderStart := time.Now()
	paths, err := builder.Build(ctx, p.Storyboard, fps)
	if err != nil {
		return nil, fmt.Errorf("generate frames: %w", err)
	}
	renderTime := time.Since(renderStart)
	p.state = StateFramesGenerated

	encodeStart := time.Now()
	if err := p.Encoder.Encode(ctx, paths, fps, p.Options.Output); err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.Options.Output, err)
	}
	encodeTime := time.Since(encodeStart)
	p.state = StateEncoded
	p.Logger.Info().Str("output", p.Options.Output).Msg("promo video generated")

	report := &Report{
		Frames:   len(paths),
		Segments: len(p.Storyboard.Segments),
		Output:   p.Options.Output,
		Render:   renderTime,
		Encode:   encodeTime,
	}

	if p.Publisher != nil {
		loc, err := p.Publisher.Publish(ctx, p.Options.Output)
		if err != nil {
			return report, fmt.Errorf("publish: %w", err)
		}
		report.Location = loc
		p.state = StatePublished
		p.Logger.Info().Str("location", loc).Msg("promo video published")
	}

	report.Total = time.Since(start)
	if s := report.Total.Seconds(); s > 0 {
		report.FramesSec = float64(report.Frames) / s
	}

	if p.Options.ShowStats {
		p.logStats(report)
	}
	return report, nil
}

func (p *PromoProject) logStats(r *Report) {
	p.Logger.Info().
		Str("build", p.Options.BuildVersion).
		Dur("total", r.Total).
		Dur("render", r.Render).
		Dur("encode", r.Encode).
		Float64("fps", r.FramesSec).
		Msg("performance report")

	if p.Options.BenchmarkLog == "" {
		return
	}
	line := fmt.Sprintf("[%s] Build: %s | Output: %s | Frames: %d | Total: %.2fs | Render: %.2fs | Encode: %.2fs | FPS: %.2f\n",
		time.Now().Format("2006-01-02 15:04:05"),
		p.Options.BuildVersion,
		filepath.Base(r.Output),
		r.Frames,
		r.Total.Seconds(),
		r.Render.Seconds(),
		r.Encode.Seconds(),
		r.FramesSec,
	)
	f, err := os.OpenFile(p.Options.BenchmarkLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		p.Logger.Warn().Err(err).Msg("could not write benchmark log")
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		p.Logger.Warn().Err(err).Msg("could not write benchmark log")
	}
}
