package storyboard

// Storyboard is the ordered list of segments that make up a promo video.
type Storyboard struct {
	Version  string    `yaml:"version"`
	Segments []Segment `yaml:"segments"`
}

// Segment is one titled interval of the video with its own color scheme.
type Segment struct {
	Duration float64   `yaml:"duration"` // seconds
	Title    string    `yaml:"title"`
	Subtitle string    `yaml:"subtitle"`
	Colors   [2]string `yaml:"colors"` // background gradient, #rrggbb
	Accent   string    `yaml:"accent"` // glow and tagline, #rrggbb
	QRCode   string    `yaml:"qr_code,omitempty"`
}

// Tagline is printed under every segment's subtitle.
const Tagline = "PREMIUM NIGHT DRIVE EXPERIENCE"

// Default returns the night-drive campaign storyboard.
func Default() *Storyboard {
	return &Storyboard{
		Version: "1.0",
		Segments: []Segment{
			{
				Duration: 3.5,
				Title:    "AlphaTheta × N-STYLE",
				Subtitle: "Night Drive Collaboration",
				Colors:   [2]string{"#f9fbff", "#e4f0ff"},
				Accent:   "#5668ff",
			},
			{
				Duration: 3.5,
				Title:    "Sound & Motion Sync",
				Subtitle: "光と音が呼応するドライブ体験",
				Colors:   [2]string{"#fff6fb", "#ffe5f2"},
				Accent:   "#ff5c8d",
			},
			{
				Duration: 3.5,
				Title:    "Book Your Night Session",
				Subtitle: "試乗 & ショールームツアー受付中",
				Colors:   [2]string{"#f3fff6", "#e4fffb"},
				Accent:   "#31c48d",
			},
		},
	}
}
