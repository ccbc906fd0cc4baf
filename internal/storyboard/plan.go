package storyboard

import (
	"errors"
	"fmt"
	"math"

	"github.com/nstyle/dealership/internal/renderer"
)

// ErrInvalid marks a storyboard that must be rejected before any frame work.
var ErrInvalid = errors.New("invalid storyboard")

// Frame locates one output frame.
type Frame struct {
	Global   int     // index across the whole video
	Local    int     // index within the segment
	Count    int     // frames in the segment
	Segment  int     // index into Storyboard.Segments
	Progress float64 // Local / Count, in [0, 1)
}

// FrameCount is round(duration × fps), halves rounded away from zero.
func FrameCount(duration float64, fps int) int {
	return int(math.Round(duration * float64(fps)))
}

// Validate rejects storyboards that would produce an empty or truncated video.
func (s *Storyboard) Validate(fps int) error {
	if fps <= 0 {
		return fmt.Errorf("%w: frame rate must be positive, got %d", ErrInvalid, fps)
	}
	if s == nil || len(s.Segments) == 0 {
		return fmt.Errorf("%w: no segments", ErrInvalid)
	}
	for i, seg := range s.Segments {
		if math.IsNaN(seg.Duration) || math.IsInf(seg.Duration, 0) || seg.Duration <= 0 {
			return fmt.Errorf("%w: segment %d: duration must be positive, got %v", ErrInvalid, i, seg.Duration)
		}
		if n := FrameCount(seg.Duration, fps); n <= 0 {
			return fmt.Errorf("%w: segment %d: %.3fs at %d fps rounds to zero frames", ErrInvalid, i, seg.Duration, fps)
		}
		for _, c := range []string{seg.Colors[0], seg.Colors[1], seg.Accent} {
			if _, err := renderer.ParseHex(c); err != nil {
				return fmt.Errorf("%w: segment %d: %v", ErrInvalid, i, err)
			}
		}
	}
	return nil
}

// TotalFrames sums the frame counts of every segment.
func (s *Storyboard) TotalFrames(fps int) int {
	total := 0
	for _, seg := range s.Segments {
		total += FrameCount(seg.Duration, fps)
	}
	return total
}

// Plan lists every frame in global order. Call Validate first.
func (s *Storyboard) Plan(fps int) []Frame {
	frames := make([]Frame, 0, s.TotalFrames(fps))
	global := 0
	for si, seg := range s.Segments {
		count := FrameCount(seg.Duration, fps)
		for local := 0; local < count; local++ {
			frames = append(frames, Frame{
				Global:   global,
				Local:    local,
				Count:    count,
				Segment:  si,
				Progress: float64(local) / float64(count),
			})
			global++
		}
	}
	return frames
}
