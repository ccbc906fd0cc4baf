package renderer

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
)

// RGB is an opaque 8-bit color.
type RGB struct {
	R, G, B uint8
}

// ParseHex parses a "#rrggbb" triplet.
func ParseHex(s string) (RGB, error) {
	if len(s) != 7 || s[0] != '#' {
		return RGB{}, fmt.Errorf("invalid hex color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// MustParseHex is ParseHex for compile-time constants.
func MustParseHex(s string) RGB {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Mix blends a towards b channel by channel: round(lerp(a, b, t)).
//
// t is clamped to [0, 1]. Out-of-range t is not an error, callers just get the
// nearest endpoint instead of an extrapolated color.
func Mix(a, b RGB, t float64) RGB {
	t = clamp01(t)
	return RGB{
		R: mixChannel(a.R, b.R, t),
		G: mixChannel(a.G, b.G, t),
		B: mixChannel(a.B, b.B, t),
	}
}

func mixChannel(a, b uint8, t float64) uint8 {
	return uint8(math.Round(lerp(float64(a), float64(b), t)))
}

// String renders the color the way SVG paint attributes accept it.
func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// Hex renders the color as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Color converts to an opaque color.RGBA.
func (c RGB) Color() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

// ParsePaint accepts the paint forms the scene emits: #rrggbb, rgb(r,g,b)
// and rgba(r,g,b,a). The returned alpha is in [0, 1].
func ParsePaint(s string) (RGB, float64, error) {
	if len(s) > 0 && s[0] == '#' {
		c, err := ParseHex(s)
		return c, 1, err
	}
	var r, g, b int
	if n, _ := fmt.Sscanf(s, "rgb(%d,%d,%d)", &r, &g, &b); n == 3 {
		return RGB{R: clampByte(r), G: clampByte(g), B: clampByte(b)}, 1, nil
	}
	var a float64
	if n, _ := fmt.Sscanf(s, "rgba(%d,%d,%d,%g)", &r, &g, &b, &a); n == 4 {
		return RGB{R: clampByte(r), G: clampByte(g), B: clampByte(b)}, clamp01(a), nil
	}
	return RGB{}, 0, fmt.Errorf("unsupported paint %q", s)
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
