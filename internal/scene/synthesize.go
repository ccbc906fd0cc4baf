package scene

import (
	"encoding/base64"
	"fmt"
	"image"
	"sync"

	"github.com/nstyle/dealership/internal/renderer"
	"github.com/nstyle/dealership/internal/storyboard"
	"github.com/skip2/go-qrcode"
)

const (
	titleFont    = "'Montserrat','Segoe UI',sans-serif"
	subtitleFont = "'Noto Sans JP','Segoe UI',sans-serif"

	qrSize   = 200
	qrMargin = 80
)

type qrEntry struct {
	href   string
	pixels image.Image
}

// Synthesizer builds scenes. It caches the QR overlay per payload since every
// frame of a segment shares it. The zero value is ready to use and safe for
// concurrent use.
type Synthesizer struct {
	mu sync.Mutex
	qr map[string]qrEntry
}

// Synthesize builds the scene for one frame of seg. global is the frame's
// index across the whole video and progress its position inside the segment.
func (s *Synthesizer) Synthesize(seg storyboard.Segment, global int, progress float64) (*Scene, error) {
	from, err := renderer.ParseHex(seg.Colors[0])
	if err != nil {
		return nil, err
	}
	to, err := renderer.ParseHex(seg.Colors[1])
	if err != nil {
		return nil, err
	}
	if _, err := renderer.ParseHex(seg.Accent); err != nil {
		return nil, err
	}

	w := renderer.Wave(progress)
	shift := renderer.ColorShift(progress)
	bgStart := renderer.Mix(from, to, shift)
	bgEnd := renderer.Mix(to, from, shift)
	glow := renderer.AccentOpacity(progress)
	transparent := 0.0

	bgID := fmt.Sprintf("bg%d", global)
	glowID := fmt.Sprintf("glow%d", global)

	sc := &Scene{
		Width:   Width,
		Height:  Height,
		ViewBox: fmt.Sprintf("0 0 %d %d", Width, Height),
		Xmlns:   svgNS,
		Frame:   global,
		Defs: Defs{
			Linear: LinearGradient{
				ID: bgID,
				X1: Num(0.2 + progress*0.6),
				Y1: 0, X2: 0, Y2: 1,
				Stops: []Stop{
					NewStop(0, bgStart.String(), nil),
					NewStop(1, bgEnd.String(), nil),
				},
			},
			Radial: RadialGradient{
				ID: glowID,
				CX: Num(0.5 + w*0.1),
				CY: Num(0.4 + w*0.05),
				R:  0.6,
				Stops: []Stop{
					NewStop(0, seg.Accent, &glow),
					NewStop(1, seg.Accent, &transparent),
				},
			},
		},
		Layers: []Rect{
			{Width: Width, Height: Height, Fill: "url(#" + bgID + ")"},
			{Width: Width, Height: Height, Fill: "url(#" + glowID + ")"},
		},
		Groups: []Group{
			{
				Fill:        "none",
				Stroke:      "rgba(24,32,54,0.15)",
				StrokeWidth: 2,
				Paths: []Path{
					NewPath(Cubic{
						Start: Point{200, 900 + w*20},
						C1:    Point{600 + progress*200, 700 + w*60},
						C2:    Point{1320 - progress*200, 920 - w*80},
						End:   Point{1720, 760 - w*20},
					}),
					NewPath(Cubic{
						Start: Point{160, 700 - w*30},
						C1:    Point{540 + w*120, 620 - w*20},
						C2:    Point{1380 - w*120, 780 + w*40},
						End:   Point{1760, 640 + w*30},
					}),
				},
			},
			{
				Fill: "rgba(255,255,255,0.12)",
				Circles: []Circle{
					{CX: Num(400 + w*60), CY: Num(260 + progress*80), R: 180},
					{CX: Num(1520 - w*40), CY: Num(340 + progress*40), R: 120},
				},
			},
		},
		Texts: []Text{
			{X: 50, Y: 45, Fill: "#182036", FontFamily: titleFont, FontSize: 96, FontWeight: 700, TextAnchor: "middle", Content: seg.Title},
			{X: 50, Y: 58, Fill: "#2a3148", FontFamily: subtitleFont, FontSize: 42, FontWeight: 400, TextAnchor: "middle", Content: seg.Subtitle},
			{X: 50, Y: 72, Fill: seg.Accent, FontFamily: titleFont, FontSize: 24, LetterSpacing: "0.4em", FontWeight: 600, TextAnchor: "middle", Opacity: "0.8", Content: storyboard.Tagline},
		},
	}

	if seg.QRCode != "" {
		qr, err := s.qrCode(seg.QRCode)
		if err != nil {
			return nil, err
		}
		sc.XmlnsXlink = xlinkNS
		sc.Overlay = &Image{
			X:      Width - qrSize - qrMargin,
			Y:      Height - qrSize - qrMargin,
			Width:  qrSize,
			Height: qrSize,
			Href:   qr.href,
			Pixels: qr.pixels,
		}
	}

	return sc, nil
}

func (s *Synthesizer) qrCode(content string) (qrEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.qr[content]; ok {
		return e, nil
	}

	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return qrEntry{}, fmt.Errorf("encode qr code: %w", err)
	}
	q.DisableBorder = true
	png, err := q.PNG(qrSize)
	if err != nil {
		return qrEntry{}, fmt.Errorf("encode qr code: %w", err)
	}

	e := qrEntry{
		href:   "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		pixels: q.Image(qrSize),
	}
	if s.qr == nil {
		s.qr = make(map[string]qrEntry)
	}
	s.qr[content] = e
	return e, nil
}

var defaultSynthesizer Synthesizer

// Synthesize builds a scene with the package-level synthesizer.
func Synthesize(seg storyboard.Segment, global int, progress float64) (*Scene, error) {
	return defaultSynthesizer.Synthesize(seg, global, progress)
}
