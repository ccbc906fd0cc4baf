// Package frames renders every frame of a storyboard to numbered PNG files.
package frames

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nstyle/dealership/internal/raster"
	"github.com/nstyle/dealership/internal/scene"
	"github.com/nstyle/dealership/internal/storyboard"
)

// Builder produces the ordered frame sequence for a storyboard.
type Builder struct {
	Synth      *scene.Synthesizer
	Rasterizer raster.Rasterizer
	Dir        string
	Workers    int
	Logger     zerolog.Logger

	// ProgressEvery logs a progress line every N completed frames. Zero
	// means every 30 frames.
	ProgressEvery int
}

// FileName is the PNG file name for a global frame index.
func FileName(global int) string {
	return fmt.Sprintf("frame-%06d.png", global)
}

// Build renders all frames and returns their paths in ascending global
// order. Any failed frame aborts the build.
func (b *Builder) Build(ctx context.Context, sb *storyboard.Storyboard, fps int) ([]string, error) {
	if err := sb.Validate(fps); err != nil {
		return nil, err
	}
	if b.Rasterizer == nil {
		return nil, fmt.Errorf("frames: no rasterizer")
	}
	synth := b.Synth
	if synth == nil {
		synth = &scene.Synthesizer{}
	}

	plan := sb.Plan(fps)
	paths := make([]string, len(plan))

	workers := b.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	every := b.ProgressEvery
	if every <= 0 {
		every = 30
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, f := range plan {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			path, err := b.render(gctx, synth, sb.Segments[f.Segment], f)
			if err != nil {
				return fmt.Errorf("frame %d (segment %d, local %d/%d): %w", f.Global, f.Segment, f.Local, f.Count, err)
			}
			paths[f.Global] = path

			if n := done.Add(1); n%int64(every) == 0 || n == int64(len(plan)) {
				b.Logger.Info().Int64("done", n).Int("total", len(plan)).Msg("frames rendered")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}

func (b *Builder) render(ctx context.Context, synth *scene.Synthesizer, seg storyboard.Segment, f storyboard.Frame) (string, error) {
	sc, err := synth.Synthesize(seg, f.Global, f.Progress)
	if err != nil {
		return "", err
	}
	img, err := b.Rasterizer.Rasterize(ctx, sc)
	if err != nil {
		return "", err
	}

	path := filepath.Join(b.Dir, FileName(f.Global))
	err = raster.WritePNG(path, img)
	if rel, ok := b.Rasterizer.(raster.Releaser); ok {
		rel.Release(img)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}
