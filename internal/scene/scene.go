// Package scene describes one promo frame as a vector scene and serializes it
// to SVG markup.
//
// The same in-memory Scene feeds both rasterizers: the pure Go one walks the
// struct directly, MuPDF reads the marshalled SVG. All text goes through
// encoding/xml, so titles containing markup characters such as '&' are always
// escaped.
package scene

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	"strconv"
	"strings"
)

const (
	Width  = 1920
	Height = 1080

	svgNS   = "http://www.w3.org/2000/svg"
	xlinkNS = "http://www.w3.org/1999/xlink"
)

// Num is a coordinate printed with two decimals.
type Num float64

func (n Num) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	return xml.Attr{Name: name, Value: fixed(float64(n))}, nil
}

// Pct is a percentage of the canvas dimension, printed as "45%".
type Pct float64

func (p Pct) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	return xml.Attr{Name: name, Value: strconv.FormatFloat(float64(p), 'f', -1, 64) + "%"}, nil
}

// Scene is the root <svg> element.
type Scene struct {
	XMLName    xml.Name `xml:"svg"`
	Width      int      `xml:"width,attr"`
	Height     int      `xml:"height,attr"`
	ViewBox    string   `xml:"viewBox,attr"`
	Xmlns      string   `xml:"xmlns,attr"`
	XmlnsXlink string   `xml:"xmlns:xlink,attr,omitempty"`
	Defs       Defs     `xml:"defs"`
	Layers     []Rect   `xml:"rect"`
	Groups     []Group  `xml:"g"`
	Texts      []Text   `xml:"text"`
	Overlay    *Image   `xml:"image,omitempty"`

	// Frame is the global frame index the scene was synthesized for.
	Frame int `xml:"-"`
}

// Defs holds the paint servers referenced by the layers.
type Defs struct {
	Linear LinearGradient `xml:"linearGradient"`
	Radial RadialGradient `xml:"radialGradient"`
}

// Stop is a gradient color stop. Offset is a fraction in [0, 1].
type Stop struct {
	Offset  float64 `xml:"-"`
	Color   string  `xml:"stop-color,attr"`
	Opacity *Num    `xml:"stop-opacity,attr,omitempty"`

	OffsetAttr string `xml:"offset,attr"`
}

// NewStop builds a stop with its offset attribute filled in.
func NewStop(offset float64, color string, opacity *float64) Stop {
	s := Stop{
		Offset:     offset,
		Color:      color,
		OffsetAttr: strconv.FormatFloat(offset*100, 'f', -1, 64) + "%",
	}
	if opacity != nil {
		n := Num(*opacity)
		s.Opacity = &n
	}
	return s
}

// LinearGradient uses objectBoundingBox units.
type LinearGradient struct {
	ID    string `xml:"id,attr"`
	X1    Num    `xml:"x1,attr"`
	Y1    int    `xml:"y1,attr"`
	X2    int    `xml:"x2,attr"`
	Y2    int    `xml:"y2,attr"`
	Stops []Stop `xml:"stop"`
}

// RadialGradient uses objectBoundingBox units.
type RadialGradient struct {
	ID    string `xml:"id,attr"`
	CX    Num    `xml:"cx,attr"`
	CY    Num    `xml:"cy,attr"`
	R     Num    `xml:"r,attr"`
	Stops []Stop `xml:"stop"`
}

// Rect is a full-canvas layer filled with a paint server reference.
type Rect struct {
	Width  int    `xml:"width,attr"`
	Height int    `xml:"height,attr"`
	Fill   string `xml:"fill,attr"`
}

// Group carries shared paint for its paths or circles.
type Group struct {
	Fill        string   `xml:"fill,attr,omitempty"`
	Stroke      string   `xml:"stroke,attr,omitempty"`
	StrokeWidth int      `xml:"stroke-width,attr,omitempty"`
	Paths       []Path   `xml:"path"`
	Circles     []Circle `xml:"circle"`
}

// Point is a canvas coordinate in pixels.
type Point struct {
	X, Y float64
}

// Cubic is a single cubic Bézier segment.
type Cubic struct {
	Start, C1, C2, End Point
}

// Path is a stroked cubic curve.
type Path struct {
	D     string `xml:"d,attr"`
	Curve Cubic  `xml:"-"`
}

// NewPath keeps the path data string and the numeric curve in step. The
// anchor X coordinates are fixed columns and print without decimals.
func NewPath(c Cubic) Path {
	return Path{
		Curve: c,
		D: fmt.Sprintf("M%s,%s C%s,%s %s,%s %s,%s",
			whole(c.Start.X), fixed(c.Start.Y),
			fixed(c.C1.X), fixed(c.C1.Y),
			fixed(c.C2.X), fixed(c.C2.Y),
			whole(c.End.X), fixed(c.End.Y)),
	}
}

func fixed(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
func whole(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// Circle is a filled circle.
type Circle struct {
	CX Num `xml:"cx,attr"`
	CY Num `xml:"cy,attr"`
	R  int `xml:"r,attr"`
}

// Text is a centered label.
type Text struct {
	X             Pct    `xml:"x,attr"`
	Y             Pct    `xml:"y,attr"`
	Fill          string `xml:"fill,attr"`
	FontFamily    string `xml:"font-family,attr"`
	FontSize      int    `xml:"font-size,attr"`
	LetterSpacing string `xml:"letter-spacing,attr,omitempty"`
	FontWeight    int    `xml:"font-weight,attr"`
	TextAnchor    string `xml:"text-anchor,attr"`
	Opacity       string `xml:"opacity,attr,omitempty"`
	Content       string `xml:",chardata"`
}

// Image is a raster overlay such as the booking QR code.
type Image struct {
	X      int    `xml:"x,attr"`
	Y      int    `xml:"y,attr"`
	Width  int    `xml:"width,attr"`
	Height int    `xml:"height,attr"`
	Href   string `xml:"xlink:href,attr"`

	Pixels image.Image `xml:"-"`
}

// SVG marshals the scene into a standalone SVG document.
func (s *Scene) SVG() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("marshal scene %d: %w", s.Frame, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal scene %d: %w", s.Frame, err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Linear returns the linear gradient referenced by a url(#id) paint.
func (s *Scene) Linear(ref string) (*LinearGradient, bool) {
	if id, ok := paintRef(ref); ok && id == s.Defs.Linear.ID {
		return &s.Defs.Linear, true
	}
	return nil, false
}

// Radial returns the radial gradient referenced by a url(#id) paint.
func (s *Scene) Radial(ref string) (*RadialGradient, bool) {
	if id, ok := paintRef(ref); ok && id == s.Defs.Radial.ID {
		return &s.Defs.Radial, true
	}
	return nil, false
}

func paintRef(ref string) (string, bool) {
	if !strings.HasPrefix(ref, "url(#") || !strings.HasSuffix(ref, ")") {
		return "", false
	}
	return ref[len("url(#") : len(ref)-1], true
}
