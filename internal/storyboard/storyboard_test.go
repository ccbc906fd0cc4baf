package storyboard

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func TestFrameCount(t *testing.T) {
	tests := []struct {
		duration float64
		fps      int
		want     int
	}{
		{3.5, 30, 105},
		{1, 24, 24},
		{0.05, 30, 2}, // 1.5 rounds up
		{0.01, 30, 0},
		{2.0 / 30, 30, 2},
	}

	for _, tt := range tests {
		if got := FrameCount(tt.duration, tt.fps); got != tt.want {
			t.Errorf("FrameCount(%v, %d) = %d, want %d", tt.duration, tt.fps, got, tt.want)
		}
	}
}

func TestDefaultPlan(t *testing.T) {
	sb := Default()
	if err := sb.Validate(30); err != nil {
		t.Fatalf("default storyboard invalid: %v", err)
	}

	frames := sb.Plan(30)
	if len(frames) != 315 {
		t.Fatalf("expected 315 frames, got %d", len(frames))
	}
	if sb.TotalFrames(30) != 315 {
		t.Errorf("TotalFrames = %d, want 315", sb.TotalFrames(30))
	}

	for i, f := range frames {
		if f.Global != i {
			t.Fatalf("frame %d has global index %d", i, f.Global)
		}
		if f.Progress < 0 || f.Progress >= 1 {
			t.Fatalf("frame %d progress %f outside [0,1)", i, f.Progress)
		}
		want := float64(f.Local) / float64(f.Count)
		if math.Abs(f.Progress-want) > 1e-12 {
			t.Fatalf("frame %d progress %f, want %f", i, f.Progress, want)
		}
	}

	// Segment boundaries: first segment ends at 104, second starts at 105.
	if frames[104].Segment != 0 || frames[104].Local != 104 {
		t.Errorf("frame 104 = %+v, want last frame of segment 0", frames[104])
	}
	if frames[105].Segment != 1 || frames[105].Local != 0 {
		t.Errorf("frame 105 = %+v, want first frame of segment 1", frames[105])
	}
	if frames[314].Segment != 2 || frames[314].Local != 104 {
		t.Errorf("frame 314 = %+v, want last frame of segment 2", frames[314])
	}
}

func TestPlanSumsSegmentCounts(t *testing.T) {
	sb := &Storyboard{Segments: []Segment{
		validSegment(1.0),
		validSegment(0.5),
		validSegment(2.25),
	}}
	fps := 24

	sum := 0
	for _, seg := range sb.Segments {
		sum += FrameCount(seg.Duration, fps)
	}
	if got := len(sb.Plan(fps)); got != sum {
		t.Errorf("plan has %d frames, want %d", got, sum)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		sb   *Storyboard
		fps  int
	}{
		{"nil", nil, 30},
		{"empty", &Storyboard{}, 30},
		{"zero fps", &Storyboard{Segments: []Segment{validSegment(1)}}, 0},
		{"zero duration", &Storyboard{Segments: []Segment{validSegment(0)}}, 30},
		{"negative duration", &Storyboard{Segments: []Segment{validSegment(-1)}}, 30},
		{"nan duration", &Storyboard{Segments: []Segment{validSegment(math.NaN())}}, 30},
		{"rounds to zero", &Storyboard{Segments: []Segment{validSegment(0.01)}}, 30},
		{"bad color", &Storyboard{Segments: []Segment{{Duration: 1, Colors: [2]string{"#fff", "#000000"}, Accent: "#000000"}}}, 30},
		{"bad accent", &Storyboard{Segments: []Segment{{Duration: 1, Colors: [2]string{"#ffffff", "#000000"}, Accent: "blue"}}}, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sb.Validate(tt.fps)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestWriteRead(t *testing.T) {
	sb := Default()
	sb.Segments[2].QRCode = "https://example.com/booking"

	path := filepath.Join(t.TempDir(), "storyboards", "promo.yaml")
	if err := Write(sb, path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if got.Version != sb.Version {
		t.Errorf("version mismatch: %q vs %q", got.Version, sb.Version)
	}
	if len(got.Segments) != len(sb.Segments) {
		t.Fatalf("segment count mismatch: %d vs %d", len(got.Segments), len(sb.Segments))
	}
	for i := range sb.Segments {
		if got.Segments[i] != sb.Segments[i] {
			t.Errorf("segment %d mismatch:\n got %+v\nwant %+v", i, got.Segments[i], sb.Segments[i])
		}
	}
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	sb, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(sb.Segments) != 3 {
		t.Errorf("expected default storyboard, got %d segments", len(sb.Segments))
	}
}

func validSegment(d float64) Segment {
	return Segment{
		Duration: d,
		Title:    "t",
		Subtitle: "s",
		Colors:   [2]string{"#ffffff", "#000000"},
		Accent:   "#5668ff",
	}
}
