package renderer

import "math"

// Wave drives the oscillating motion of a frame: sin(2πp).
func Wave(progress float64) float64 {
	return math.Sin(progress * math.Pi * 2)
}

// ColorShift eases 0 -> 1 -> 0 over the segment so the background hue sweeps
// out and back: 0 at both ends, 1 at the midpoint. The legacy Node renderer
// used (1-cos(πp))/2, a one-way ramp that never returns to the start colour;
// the full period is intentional.
func ColorShift(progress float64) float64 {
	return (1 - math.Cos(progress*math.Pi*2)) / 2
}

// AccentOpacity oscillates the glow opacity within [0.2, 0.6].
func AccentOpacity(progress float64) float64 {
	return (math.Sin(progress*math.Pi*2)+1)/2*0.4 + 0.2
}

// lerp performs linear interpolation between a and b
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Lerp is the exported form of lerp for geometry callers.
func Lerp(a, b, t float64) float64 {
	return lerp(a, b, t)
}

func clamp01(t float64) float64 {
	if t < 0 || math.IsNaN(t) {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
