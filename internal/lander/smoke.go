package lander

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultGroundY is the height at which exhaust puffs bounce once.
const DefaultGroundY = 990.0

// Puff is one short-lived exhaust particle.
type Puff struct {
	Position    r2.Vec
	Direction   r2.Vec
	Speed       float64
	Angle       float64
	Scale       float64
	MaxLifetime float64
	Lifetime    float64
	AngleVar    float64
	Hit         bool
}

func (p *Puff) Ratio() float64 {
	return p.Lifetime / p.MaxLifetime
}

func (p *Puff) Done() bool {
	return p.Lifetime >= p.MaxLifetime
}

func (p *Puff) update(dt, groundY float64, rng *rand.Rand) {
	p.Lifetime += dt
	p.Angle += p.AngleVar * dt
	p.Scale *= 1.0 + 2.5*dt
	p.Position = r2.Add(p.Position, r2.Scale(p.Speed*dt/p.Scale, p.Direction))

	if !p.Hit && p.Position.Y > groundY {
		p.Hit = true
		side := 1.0
		if rng.Float64() > 0.5 {
			side = -1.0
		}
		p.Position.Y = groundY
		p.Direction.X = side * p.Direction.Y
		p.Direction.Y = -rng.Float64() * p.Scale * 0.5
	}
}

// Trail owns the exhaust puffs of one rocket. Puffs live in a flat slice and
// finished ones are swap-removed, so order is not preserved.
type Trail struct {
	GroundY float64

	puffs []Puff
	rng   *rand.Rand
}

func NewTrail(rng *rand.Rand) *Trail {
	return &Trail{GroundY: DefaultGroundY, rng: rng}
}

func (t *Trail) Emit(position, direction r2.Vec, speed, scale, duration float64) {
	t.puffs = append(t.puffs, Puff{
		Position:    position,
		Direction:   direction,
		Speed:       speed,
		Angle:       t.rng.Float64() * 2 * math.Pi,
		Scale:       0.25 + scale*(0.25+t.rng.Float64()),
		MaxLifetime: duration,
		AngleVar:    t.rng.Float64()*2 - 1,
	})
}

// Update advances every puff once and drops the finished ones.
func (t *Trail) Update(dt float64) {
	for i := 0; i < len(t.puffs); {
		p := &t.puffs[i]
		p.update(dt, t.GroundY, t.rng)
		if p.Done() {
			last := len(t.puffs) - 1
			t.puffs[i] = t.puffs[last]
			t.puffs = t.puffs[:last]
			continue
		}
		i++
	}
}

func (t *Trail) Len() int {
	return len(t.puffs)
}

// Puffs exposes the live puffs for read-only consumers.
func (t *Trail) Puffs() []Puff {
	return t.puffs
}

func (t *Trail) Clear() {
	t.puffs = t.puffs[:0]
}
