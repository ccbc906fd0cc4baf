// Package raster turns synthesized scenes into bitmaps and persists them as
// PNG frames.
package raster

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"sync"

	"github.com/nstyle/dealership/internal/scene"
)

// Rasterizer renders one scene into an image of the scene's canvas size.
// Implementations must be safe for concurrent use.
type Rasterizer interface {
	Rasterize(ctx context.Context, sc *scene.Scene) (image.Image, error)
}

// Releaser is implemented by rasterizers that recycle the images they
// return. Callers release an image once they are done with it.
type Releaser interface {
	Release(img image.Image)
}

// Options selects and configures a rasterizer.
type Options struct {
	Kind     string // "vector" or "fitz"
	Fonts    FontFiles
	Dir      string // scratch directory for SVG intermediates (fitz only)
	FitzDPI  float64
	KeepSVGs bool
}

// New builds the rasterizer named by opts.Kind.
func New(opts Options) (Rasterizer, error) {
	switch opts.Kind {
	case "", "vector":
		return NewVectorRasterizer(opts.Fonts)
	case "fitz":
		return &FitzRasterizer{Dir: opts.Dir, DPI: opts.FitzDPI, KeepSVG: opts.KeepSVGs}, nil
	default:
		return nil, fmt.Errorf("unknown rasterizer %q", opts.Kind)
	}
}

type pngBufferPool struct{ p sync.Pool }

func (b *pngBufferPool) Get() *png.EncoderBuffer {
	if v, ok := b.p.Get().(*png.EncoderBuffer); ok {
		return v
	}
	return nil
}

func (b *pngBufferPool) Put(v *png.EncoderBuffer) { b.p.Put(v) }

var pngEncoder = &png.Encoder{
	CompressionLevel: png.BestSpeed,
	BufferPool:       &pngBufferPool{},
}

// WritePNG writes img to path as a lossless PNG.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriterSize(f, 1<<16)
	if err := pngEncoder.Encode(w, img); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
