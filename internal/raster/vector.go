package raster

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/nstyle/dealership/internal/renderer"
	"github.com/nstyle/dealership/internal/scene"
)

// circleK places cubic control points for a quarter circle.
const circleK = 0.5522847498

// curveSteps is how many line segments approximate one stroked cubic.
const curveSteps = 64

// VectorRasterizer draws scenes in pure Go. Canvases handed back through
// Release are reused for later frames of the same size.
type VectorRasterizer struct {
	fonts    *fontSet
	canvases sync.Pool
}

func NewVectorRasterizer(files FontFiles) (*VectorRasterizer, error) {
	fs, err := loadFonts(files)
	if err != nil {
		return nil, err
	}
	return &VectorRasterizer{fonts: fs}, nil
}

// Rasterize returns an *image.RGBA. Callers may hand it back with Release
// once it has been written out.
func (v *VectorRasterizer) Rasterize(ctx context.Context, sc *scene.Scene) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sc.Width <= 0 || sc.Height <= 0 {
		return nil, fmt.Errorf("scene %d: invalid canvas %dx%d", sc.Frame, sc.Width, sc.Height)
	}

	dst := v.canvas(sc.Width, sc.Height)
	draw.Draw(dst, dst.Bounds(), image.Transparent, image.Point{}, draw.Src)

	if err := v.draw(dst, sc); err != nil {
		v.Release(dst)
		return nil, fmt.Errorf("scene %d: %w", sc.Frame, err)
	}
	return dst, nil
}

func (v *VectorRasterizer) canvas(w, h int) *image.RGBA {
	if img, ok := v.canvases.Get().(*image.RGBA); ok && img.Rect.Dx() == w && img.Rect.Dy() == h {
		return img
	}
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

// Release recycles a canvas returned by Rasterize. The image must not be
// used afterwards.
func (v *VectorRasterizer) Release(img image.Image) {
	if rgba, ok := img.(*image.RGBA); ok {
		v.canvases.Put(rgba)
	}
}

func (v *VectorRasterizer) draw(dst *image.RGBA, sc *scene.Scene) error {
	for _, layer := range sc.Layers {
		p, err := layerPaint(sc, layer.Fill)
		if err != nil {
			return err
		}
		fillGradient(dst, p)
	}

	z := vector.NewRasterizer(sc.Width, sc.Height)
	z.DrawOp = draw.Over

	for _, g := range sc.Groups {
		if g.Stroke != "" && g.Stroke != "none" && len(g.Paths) > 0 {
			c, a, err := renderer.ParsePaint(g.Stroke)
			if err != nil {
				return fmt.Errorf("group stroke: %w", err)
			}
			width := float64(g.StrokeWidth)
			if width <= 0 {
				width = 1
			}
			for _, p := range g.Paths {
				z.Reset(sc.Width, sc.Height)
				strokeCubic(z, p.Curve, width)
				z.Draw(dst, dst.Bounds(), image.NewUniform(nrgba(c, a)), image.Point{})
			}
		}
		if g.Fill != "" && g.Fill != "none" && len(g.Circles) > 0 {
			c, a, err := renderer.ParsePaint(g.Fill)
			if err != nil {
				return fmt.Errorf("group fill: %w", err)
			}
			for _, circle := range g.Circles {
				z.Reset(sc.Width, sc.Height)
				fillCircle(z, float64(circle.CX), float64(circle.CY), float64(circle.R))
				z.Draw(dst, dst.Bounds(), image.NewUniform(nrgba(c, a)), image.Point{})
			}
		}
	}

	for _, t := range sc.Texts {
		if err := v.drawText(dst, sc, t); err != nil {
			return err
		}
	}

	if o := sc.Overlay; o != nil && o.Pixels != nil {
		r := image.Rect(o.X, o.Y, o.X+o.Width, o.Y+o.Height)
		draw.NearestNeighbor.Scale(dst, r, o.Pixels, o.Pixels.Bounds(), draw.Over, nil)
	}
	return nil
}

func nrgba(c renderer.RGB, alpha float64) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(math.Round(clamp(alpha, 0, 1) * 255))}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// stopColor is a parsed gradient stop with straight alpha.
type stopColor struct {
	off     float64
	r, g, b float64
	a       float64
}

func parseStops(stops []scene.Stop) ([]stopColor, error) {
	if len(stops) == 0 {
		return nil, fmt.Errorf("gradient without stops")
	}
	out := make([]stopColor, len(stops))
	for i, s := range stops {
		c, a, err := renderer.ParsePaint(s.Color)
		if err != nil {
			return nil, fmt.Errorf("stop %d: %w", i, err)
		}
		if s.Opacity != nil {
			a *= float64(*s.Opacity)
		}
		out[i] = stopColor{off: s.Offset, r: float64(c.R), g: float64(c.G), b: float64(c.B), a: a}
	}
	return out, nil
}

func sampleStops(stops []stopColor, t float64) stopColor {
	if t <= stops[0].off {
		return stops[0]
	}
	last := stops[len(stops)-1]
	if t >= last.off {
		return last
	}
	for i := 1; i < len(stops); i++ {
		a, b := stops[i-1], stops[i]
		if t > b.off {
			continue
		}
		span := b.off - a.off
		if span <= 0 {
			return b
		}
		k := (t - a.off) / span
		return stopColor{
			off: t,
			r:   renderer.Lerp(a.r, b.r, k),
			g:   renderer.Lerp(a.g, b.g, k),
			b:   renderer.Lerp(a.b, b.b, k),
			a:   renderer.Lerp(a.a, b.a, k),
		}
	}
	return last
}

// gradientPaint maps a point in objectBoundingBox units to a color.
type gradientPaint func(u, v float64) stopColor

func layerPaint(sc *scene.Scene, fill string) (gradientPaint, error) {
	if lg, ok := sc.Linear(fill); ok {
		stops, err := parseStops(lg.Stops)
		if err != nil {
			return nil, fmt.Errorf("gradient %s: %w", lg.ID, err)
		}
		x1, y1 := float64(lg.X1), float64(lg.Y1)
		dx, dy := float64(lg.X2)-x1, float64(lg.Y2)-y1
		den := dx*dx + dy*dy
		return func(u, v float64) stopColor {
			if den == 0 {
				return stops[len(stops)-1]
			}
			return sampleStops(stops, ((u-x1)*dx+(v-y1)*dy)/den)
		}, nil
	}
	if rg, ok := sc.Radial(fill); ok {
		stops, err := parseStops(rg.Stops)
		if err != nil {
			return nil, fmt.Errorf("gradient %s: %w", rg.ID, err)
		}
		cx, cy, r := float64(rg.CX), float64(rg.CY), float64(rg.R)
		return func(u, v float64) stopColor {
			if r <= 0 {
				return stops[len(stops)-1]
			}
			return sampleStops(stops, math.Hypot(u-cx, v-cy)/r)
		}, nil
	}
	return nil, fmt.Errorf("unresolved paint %q", fill)
}

// fillGradient composites p over every pixel of dst.
func fillGradient(dst *image.RGBA, p gradientPaint) {
	b := dst.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		v := (float64(y-b.Min.Y) + 0.5) / h
		row := dst.Pix[dst.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			c := p((float64(x)+0.5)/w, v)
			if c.a <= 0 {
				continue
			}
			i := x * 4
			inv := 1 - c.a
			row[i+0] = uint8(math.Round(c.r*c.a + float64(row[i+0])*inv))
			row[i+1] = uint8(math.Round(c.g*c.a + float64(row[i+1])*inv))
			row[i+2] = uint8(math.Round(c.b*c.a + float64(row[i+2])*inv))
			row[i+3] = uint8(math.Round(255*c.a + float64(row[i+3])*inv))
		}
	}
}

func cubicAt(c scene.Cubic, t float64) scene.Point {
	mt := 1 - t
	a := mt * mt * mt
	b := 3 * mt * mt * t
	d := 3 * mt * t * t
	e := t * t * t
	return scene.Point{
		X: a*c.Start.X + b*c.C1.X + d*c.C2.X + e*c.End.X,
		Y: a*c.Start.Y + b*c.C1.Y + d*c.C2.Y + e*c.End.Y,
	}
}

// strokeCubic adds the outline of a butt-capped stroke along c as one quad
// per flattened segment. All quads share a winding so overlaps do not cancel.
func strokeCubic(z *vector.Rasterizer, c scene.Cubic, width float64) {
	half := width / 2
	prev := cubicAt(c, 0)
	for i := 1; i <= curveSteps; i++ {
		next := cubicAt(c, float64(i)/curveSteps)
		dx, dy := next.X-prev.X, next.Y-prev.Y
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*half, dx/l*half
		z.MoveTo(float32(prev.X+nx), float32(prev.Y+ny))
		z.LineTo(float32(next.X+nx), float32(next.Y+ny))
		z.LineTo(float32(next.X-nx), float32(next.Y-ny))
		z.LineTo(float32(prev.X-nx), float32(prev.Y-ny))
		z.ClosePath()
		prev = next
	}
}

func fillCircle(z *vector.Rasterizer, cx, cy, r float64) {
	k := r * circleK
	f := func(v float64) float32 { return float32(v) }
	z.MoveTo(f(cx+r), f(cy))
	z.CubeTo(f(cx+r), f(cy+k), f(cx+k), f(cy+r), f(cx), f(cy+r))
	z.CubeTo(f(cx-k), f(cy+r), f(cx-r), f(cy+k), f(cx-r), f(cy))
	z.CubeTo(f(cx-r), f(cy-k), f(cx-k), f(cy-r), f(cx), f(cy-r))
	z.CubeTo(f(cx+k), f(cy-r), f(cx+r), f(cy-k), f(cx+r), f(cy))
	z.ClosePath()
}

func parseOpacity(s string) (float64, error) {
	if s == "" {
		return 1, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("opacity %q: %w", s, err)
	}
	return clamp(v, 0, 1), nil
}
