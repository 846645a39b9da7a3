package lander

import (
	"math"

	"spacey/internal/filter"
)

const (
	DefaultMaxPower      = 3000.0
	DefaultAverageWindow = 60
	// thrusterAngleRate is the first-order approach rate toward the target
	// angle, in 1/s.
	thrusterAngleRate = 1.0
)

// Thruster turns normalized controller outputs into a bounded gimbal angle and
// power. Power is stored as a ratio in [0, 1]; Power scales it.
type Thruster struct {
	MaxAngle    float64
	Angle       float64
	TargetAngle float64
	MaxPower    float64

	ratio    float64
	avgPower *filter.MovingAverage
	avgAngle *filter.MovingAverage
}

func NewThruster() Thruster {
	return Thruster{
		MaxAngle: math.Pi / 2,
		MaxPower: DefaultMaxPower,
		avgPower: filter.NewMovingAverage(DefaultAverageWindow),
		avgAngle: filter.NewMovingAverage(DefaultAverageWindow),
	}
}

func (t *Thruster) Update(dt float64) {
	t.Angle += thrusterAngleRate * dt * (t.TargetAngle - t.Angle)
	t.avgAngle.Add(t.Angle)
}

// SetAngle maps a in [-1, 1] onto [-MaxAngle, MaxAngle].
func (t *Thruster) SetAngle(a float64) {
	t.TargetAngle = clamp(a, -1, 1) * t.MaxAngle
}

// SetPower stores p clamped to [0, 1] and feeds it to the power average.
func (t *Thruster) SetPower(p float64) {
	t.ratio = clamp(p, 0, 1)
	t.avgPower.Add(t.ratio)
}

func (t *Thruster) PowerRatio() float64 {
	return t.ratio
}

func (t *Thruster) Power() float64 {
	return t.ratio * t.MaxPower
}

func (t *Thruster) AvgPowerRatio() float64 {
	return t.avgPower.Get()
}

func (t *Thruster) AvgAngle() float64 {
	return t.avgAngle.Get()
}

func (t *Thruster) Reset() {
	t.ratio = 0
	t.Angle = 0
	t.TargetAngle = 0
	t.avgPower.Reset()
	t.avgAngle.Reset()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
