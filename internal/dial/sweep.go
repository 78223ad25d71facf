package dial

import "math"

// Sweep is the glowing hand that points at the displayed slot. Its trail
// covers the span back to the previously displayed slot.
type Sweep struct {
	Angle float64 // head, radians [0, 2π)
	trail float64
}

// NewSweep creates a sweep at north.
func NewSweep() *Sweep {
	return &Sweep{trail: math.Pi / 2}
}

// Point moves the head to slot display of n and sizes the trail to one slot.
func (s *Sweep) Point(display, n int) {
	s.Angle = SlotAngle(display, n)
	if n > 0 {
		s.trail = 2 * math.Pi / float64(n)
	}
}

// Degrees returns the head angle in degrees.
func (s *Sweep) Degrees() float64 {
	return s.Angle * 180 / math.Pi
}

// Intensity returns the glow [0, 1] for a cell angle: 1 at the head, fading
// linearly to 0 at the end of the trail.
func (s *Sweep) Intensity(cellAngle float64) float64 {
	diff := NormalizeAngle(s.Angle - cellAngle)
	if diff > s.trail {
		return 0
	}
	return 1.0 - diff/s.trail
}
