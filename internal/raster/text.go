package raster

import (
	"errors"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/nstyle/dealership/internal/renderer"
	"github.com/nstyle/dealership/internal/scene"
)

// FontFiles overrides the built-in Go fonts with TTF/OTF files. Fallback is
// consulted for runes the weight-matched font lacks, e.g. Japanese subtitles.
type FontFiles struct {
	Regular  string `toml:"regular"`
	Medium   string `toml:"medium"`
	Bold     string `toml:"bold"`
	Fallback string `toml:"fallback"`
}

// ErrMissingGlyph means no configured font can draw a rune of a text label.
var ErrMissingGlyph = errors.New("missing glyph")

type fontSet struct {
	regular, medium, bold *opentype.Font
	fallback              *opentype.Font
}

func loadFonts(files FontFiles) (*fontSet, error) {
	var fs fontSet
	var err error
	if fs.regular, err = loadFont(files.Regular, goregular.TTF); err != nil {
		return nil, err
	}
	if fs.medium, err = loadFont(files.Medium, gomedium.TTF); err != nil {
		return nil, err
	}
	if fs.bold, err = loadFont(files.Bold, gobold.TTF); err != nil {
		return nil, err
	}
	if files.Fallback != "" {
		if fs.fallback, err = loadFont(files.Fallback, nil); err != nil {
			return nil, err
		}
	}
	return &fs, nil
}

func loadFont(path string, builtin []byte) (*opentype.Font, error) {
	data := builtin
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read font: %w", err)
		}
		data = b
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	return f, nil
}

func (fs *fontSet) forWeight(weight int) *opentype.Font {
	switch {
	case weight >= 700:
		return fs.bold
	case weight >= 500:
		return fs.medium
	default:
		return fs.regular
	}
}

func hasGlyph(f *opentype.Font, r rune) bool {
	var buf sfnt.Buffer
	idx, err := f.GlyphIndex(&buf, r)
	return err == nil && idx != 0
}

// letterSpacing resolves "0.4em" or "3" (pixels) against the font size.
func letterSpacing(s string, size float64) (float64, error) {
	if s == "" {
		return 0, nil
	}
	unit := 1.0
	if strings.HasSuffix(s, "em") {
		s, unit = strings.TrimSuffix(s, "em"), size
	} else {
		s = strings.TrimSuffix(s, "px")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("letter-spacing %q: %w", s, err)
	}
	return v * unit, nil
}

func missingGlyph(r rune, content string, haveFallback bool) error {
	if haveFallback {
		return fmt.Errorf("%w: %q in %q is not covered by promo.fonts.fallback", ErrMissingGlyph, r, content)
	}
	return fmt.Errorf("%w: %q in %q; set promo.fonts.fallback to a font that covers it", ErrMissingGlyph, r, content)
}

type glyphRun struct {
	r    rune
	face font.Face
	adv  fixed.Int26_6
}

func (v *VectorRasterizer) drawText(dst *image.RGBA, sc *scene.Scene, t scene.Text) error {
	if t.Content == "" {
		return nil
	}
	c, alpha, err := renderer.ParsePaint(t.Fill)
	if err != nil {
		return fmt.Errorf("text fill: %w", err)
	}
	op, err := parseOpacity(t.Opacity)
	if err != nil {
		return err
	}
	size := float64(t.FontSize)
	spacing, err := letterSpacing(t.LetterSpacing, size)
	if err != nil {
		return err
	}

	opts := &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull}
	primary, err := opentype.NewFace(v.fonts.forWeight(t.FontWeight), opts)
	if err != nil {
		return err
	}
	defer primary.Close()

	var fallback font.Face
	if v.fonts.fallback != nil {
		if fallback, err = opentype.NewFace(v.fonts.fallback, opts); err != nil {
			return err
		}
		defer fallback.Close()
	}
	primaryFont := v.fonts.forWeight(t.FontWeight)

	runs := make([]glyphRun, 0, len(t.Content))
	var width fixed.Int26_6
	gap := fixed.Int26_6(spacing * 64)
	for i, r := range []rune(t.Content) {
		face := primary
		if !hasGlyph(primaryFont, r) {
			if fallback == nil || !hasGlyph(v.fonts.fallback, r) {
				return missingGlyph(r, t.Content, fallback != nil)
			}
			face = fallback
		}
		adv, _ := face.GlyphAdvance(r)
		if i > 0 {
			prev := runs[len(runs)-1]
			if prev.face == face {
				width += face.Kern(prev.r, r)
			}
			width += gap
		}
		runs = append(runs, glyphRun{r: r, face: face, adv: adv})
		width += adv
	}

	x := fixed.Int26_6(float64(t.X) / 100 * float64(sc.Width) * 64)
	switch t.TextAnchor {
	case "middle":
		x -= width / 2
	case "end":
		x -= width
	}
	y := fixed.Int26_6(float64(t.Y) / 100 * float64(sc.Height) * 64)

	d := font.Drawer{
		Dst: dst,
		Src: image.NewUniform(nrgba(c, alpha*op)),
		Dot: fixed.Point26_6{X: x, Y: y},
	}
	for i, g := range runs {
		if i > 0 {
			if prev := runs[i-1]; prev.face == g.face {
				d.Dot.X += g.face.Kern(prev.r, g.r)
			}
			d.Dot.X += gap
		}
		d.Face = g.face
		d.DrawString(string(g.r))
	}
	return nil
}
