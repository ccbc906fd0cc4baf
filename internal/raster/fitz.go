package raster

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/image/draw"

	"github.com/nstyle/dealership/internal/scene"
)

// FitzRasterizer renders the scene's SVG markup with MuPDF. Each call writes
// a frame-NNNNNN.svg intermediate into Dir and removes it afterwards.
type FitzRasterizer struct {
	Dir     string
	DPI     float64 // 72 maps one SVG unit to one pixel
	KeepSVG bool
}

func (f *FitzRasterizer) Rasterize(ctx context.Context, sc *scene.Scene) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := sc.SVG()
	if err != nil {
		return nil, err
	}

	dir := f.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	svgPath := filepath.Join(dir, fmt.Sprintf("frame-%06d.svg", sc.Frame))
	if err := os.WriteFile(svgPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write svg: %w", err)
	}
	if !f.KeepSVG {
		defer os.Remove(svgPath)
	}

	// fitz documents are not safe for concurrent use; one per call.
	doc, err := fitz.New(svgPath)
	if err != nil {
		return nil, fmt.Errorf("open svg frame %d: %w", sc.Frame, err)
	}
	defer doc.Close()

	dpi := f.DPI
	if dpi <= 0 {
		dpi = 72
	}
	img, err := doc.ImageDPI(0, dpi)
	if err != nil {
		return nil, fmt.Errorf("render svg frame %d: %w", sc.Frame, err)
	}

	want := image.Rect(0, 0, sc.Width, sc.Height)
	if img.Bounds().Size() == want.Size() {
		return img, nil
	}
	scaled := image.NewRGBA(want)
	draw.CatmullRom.Scale(scaled, want, img, img.Bounds(), draw.Src, nil)
	return scaled, nil
}
