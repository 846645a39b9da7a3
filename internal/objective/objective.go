// Package objective sequences the waypoints a lander has to visit and keeps
// the dwell-time bookkeeping that decides when a waypoint is reached.
package objective

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"
)

const (
	DefaultTargetCount = 8
	DefaultBorderX     = 360.0
	DefaultBorderY     = 290.0
	DefaultPadY        = 900.0
)

type Config struct {
	// TargetRadius is the distance under which the lander counts as inside
	// the current waypoint.
	TargetRadius float64
	// TargetTime is the dwell, in seconds, needed to validate a waypoint.
	TargetTime float64
	RewardCoef float64
	// LandingDistance and LandingAngle bound the horizontal offset and the
	// tilt away from upright for the final pad latch.
	LandingDistance float64
	LandingAngle    float64
}

func DefaultConfig() Config {
	return Config{
		TargetRadius:    8,
		TargetTime:      1.0,
		RewardCoef:      10,
		LandingDistance: 1.0,
		LandingAngle:    0.01,
	}
}

// Objective is the per-lander waypoint state. Points is the reward budget for
// the current waypoint: the distance to it at assignment time.
type Objective struct {
	TargetID int
	TimeIn   float64
	TimeOut  float64
	Points   float64
}

// Reset puts the objective back on the first waypoint, seen from start.
func (o *Objective) Reset(start r2.Vec, targets []r2.Vec) {
	*o = Objective{}
	if len(targets) > 0 {
		o.Points = r2.Norm(r2.Sub(targets[0], start))
	}
}

func (o *Objective) Target(targets []r2.Vec) r2.Vec {
	return targets[o.TargetID]
}

// Final reports whether the current waypoint is the landing pad.
func (o *Objective) Final(targets []r2.Vec) bool {
	return o.TargetID == len(targets)-1
}

// Next moves to the following waypoint, wrapping after the last one.
func (o *Objective) Next(targets []r2.Vec) {
	o.TargetID = (o.TargetID + 1) % len(targets)
	o.TimeIn = 0
	o.TimeOut = 0
}

// CheckLanding runs before the controller on every tick. On the pad the dwell
// never accumulates; it returns true once the lander sits upright above it.
func (o *Objective) CheckLanding(cfg Config, targets []r2.Vec, position r2.Vec, angle float64) bool {
	if !o.Final(targets) {
		return false
	}
	o.TimeIn = 0
	pad := o.Target(targets)
	return math.Abs(pad.X-position.X) < cfg.LandingDistance &&
		math.Abs(angle-math.Pi/2) < cfg.LandingAngle
}

// Step accrues the dwell for one tick. dist is the distance to the waypoint
// measured before the physics update; position and angle are the state after
// it. A validated waypoint yields its reward and the objective advances by
// exactly one index. The landing pad is never validated, whatever dt is.
func (o *Objective) Step(cfg Config, targets []r2.Vec, position r2.Vec, angle, dist, dt float64) (reward float64, advanced bool) {
	if o.Final(targets) {
		return 0, false
	}
	if dist >= cfg.TargetRadius {
		o.TimeOut += dt
		return 0, false
	}

	o.TimeIn += dt
	if o.TimeIn <= cfg.TargetTime {
		return 0, false
	}

	s := math.Sin(angle)
	reward = cfg.RewardCoef * s * s * o.Points / (1 + o.TimeOut + dist)
	o.Next(targets)
	o.Points = r2.Norm(r2.Sub(position, o.Target(targets)))
	return reward, true
}

// Generate draws count-1 interior waypoints inside the arena border and
// appends the landing pad.
func Generate(rng *rand.Rand, arena r2.Vec, count int) []r2.Vec {
	if count < 1 {
		count = 1
	}
	targets := make([]r2.Vec, count)
	spanX := math.Max(0, arena.X-2*DefaultBorderX)
	spanY := math.Max(0, arena.Y-2*DefaultBorderY)
	for i := 0; i < count-1; i++ {
		targets[i] = r2.Vec{
			X: DefaultBorderX + rng.Float64()*spanX,
			Y: DefaultBorderY + rng.Float64()*spanY,
		}
	}
	targets[count-1] = Pad(arena)
	return targets
}

func Pad(arena r2.Vec) r2.Vec {
	return r2.Vec{X: arena.X * 0.5, Y: DefaultPadY}
}
