package lander

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"

	"spacey/internal/agent"
)

const (
	DefaultHeight = 120.0

	smokeVerticalOffset = 40.0
	smokeDuration       = 0.5
	smokeSpeedCoef      = 0.25
	smokePowerGain      = 4.0
	smokeFiringRatio    = 0.15
)

// DefaultGravity points down the screen, matching the arena's y axis.
var DefaultGravity = r2.Vec{X: 0, Y: 1000}

// Rocket is one simulated lander. Angle is the body orientation in radians;
// π/2 is upright.
type Rocket struct {
	agent.Unit

	Thruster        Thruster
	Position        r2.Vec
	Velocity        r2.Vec
	Angle           float64
	AngularVelocity float64
	Height          float64
	Gravity         r2.Vec
	Index           int
	LastPower       float64
	Time            float64
	Stop            bool
	Smoke           *Trail
}

// NewRocket builds a rocket with a randomly initialised controller. rng seeds
// the controller and the rocket's private particle source.
func NewRocket(arch []int, activation string, rng *rand.Rand) (*Rocket, error) {
	unit, err := agent.NewUnit(arch, activation, rng)
	if err != nil {
		return nil, err
	}
	r := &Rocket{
		Unit:     unit,
		Thruster: NewThruster(),
		Height:   DefaultHeight,
		Gravity:  DefaultGravity,
		Smoke:    NewTrail(rand.New(rand.NewSource(rng.Int63()))),
	}
	r.Reset()
	return r, nil
}

// Reset rearms the rocket for a new iteration. Position is left to the caller.
func (r *Rocket) Reset() {
	r.Velocity = r2.Vec{}
	r.Angle = math.Pi / 2
	r.AngularVelocity = 0
	r.Thruster.Reset()
	r.Alive = true
	r.Fitness = 0
	r.LastPower = 0
	r.Time = 0
	r.Stop = false
	r.Smoke.Clear()
}

// Apply implements agent.Actuatable: outputs[0] is raw power in [-1, 1],
// outputs[1] the gimbal command in [-1, 1].
func (r *Rocket) Apply(outputs []float64) {
	if len(outputs) < 2 {
		return
	}
	r.LastPower = r.Thruster.PowerRatio()
	r.Thruster.SetPower(0.5 * (outputs[0] + 1.0))
	r.Thruster.SetAngle(outputs[1])
}

func (r *Rocket) thrustMagnitude() float64 {
	return r.Thruster.AvgPowerRatio() * r.Thruster.MaxPower
}

func (r *Rocket) Thrust() r2.Vec {
	theta := r.Angle + r.Thruster.Angle
	return r2.Scale(-r.thrustMagnitude(), r2.Vec{X: math.Cos(theta), Y: math.Sin(theta)})
}

// Torque has the inertia folded into the half-height lever arm.
func (r *Rocket) Torque() float64 {
	phi := r.Thruster.Angle
	v := r2.Vec{X: math.Cos(phi), Y: math.Sin(phi)}
	return r.thrustMagnitude() / (0.5 * r.Height) * r2.Cross(v, r2.Vec{X: 1, Y: 0})
}

// Update integrates one semi-implicit Euler step.
func (r *Rocket) Update(dt float64, updateSmoke bool) {
	r.Thruster.Update(dt)

	r.Velocity = r2.Add(r.Velocity, r2.Scale(dt, r2.Add(r.Gravity, r.Thrust())))
	r.Position = r2.Add(r.Position, r2.Scale(dt, r.Velocity))

	r.AngularVelocity += r.Torque() * dt
	r.Angle += r.AngularVelocity * dt

	if updateSmoke {
		r.emitSmoke()
		r.Smoke.Update(dt)
	}

	r.Time += dt
}

func (r *Rocket) emitSmoke() {
	powerRatio := smokePowerGain * r.Thruster.AvgPowerRatio()
	if powerRatio <= smokeFiringRatio {
		return
	}
	body := r2.Vec{X: math.Cos(r.Angle), Y: math.Sin(r.Angle)}
	theta := r.Angle + r.Thruster.Angle
	exhaust := r2.Vec{X: math.Cos(theta), Y: math.Sin(theta)}
	origin := r2.Add(r.Position, r2.Add(
		r2.Scale(r.Height*0.5, body),
		r2.Scale(smokeVerticalOffset*powerRatio, exhaust),
	))
	r.Smoke.Emit(
		origin,
		exhaust,
		smokeSpeedCoef*r.Thruster.MaxPower*powerRatio,
		0.15+0.5*powerRatio,
		smokeDuration*powerRatio,
	)
}

// Finite reports whether the kinematic state is free of NaN and infinities.
func (r *Rocket) Finite() bool {
	for _, v := range []float64{r.Position.X, r.Position.Y, r.Velocity.X, r.Velocity.Y, r.Angle, r.AngularVelocity} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
