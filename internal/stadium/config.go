package stadium

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"spacey/internal/lander"
	"spacey/internal/objective"
)

// DefaultDT is the simulation step in seconds.
const DefaultDT = 0.007

type Config struct {
	Arena       r2.Vec
	Gravity     r2.Vec
	TargetCount int
	// Tolerance is how far outside the arena a rocket may drift and stay alive.
	Tolerance float64
	// MaxDistance is the floor of the target-vector normalisation.
	MaxDistance float64
	// TimeCeiling bounds one iteration in simulated seconds.
	TimeCeiling float64
	// JerkCoef scales |power - last power| / (1 + distance) into fitness.
	JerkCoef  float64
	Objective objective.Config
	// TickTimeout aborts a tick whose workers have not all returned in time.
	// Zero waits forever.
	TickTimeout time.Duration
	Seed        int64
}

func DefaultConfig() Config {
	return Config{
		Arena:       r2.Vec{X: 1600, Y: 900},
		Gravity:     lander.DefaultGravity,
		TargetCount: objective.DefaultTargetCount,
		Tolerance:   50,
		MaxDistance: 500,
		TimeCeiling: 90,
		JerkCoef:    10,
		Objective:   objective.DefaultConfig(),
		Seed:        1,
	}
}

func (c Config) Validate() error {
	if c.Arena.X <= 0 || c.Arena.Y <= 0 {
		return fmt.Errorf("arena must be positive, got %vx%v", c.Arena.X, c.Arena.Y)
	}
	if c.TargetCount < 1 {
		return fmt.Errorf("target count must be >= 1, got %d", c.TargetCount)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("tolerance must be >= 0, got %v", c.Tolerance)
	}
	if c.MaxDistance <= 0 {
		return fmt.Errorf("max distance must be > 0, got %v", c.MaxDistance)
	}
	if c.TimeCeiling <= 0 {
		return fmt.Errorf("time ceiling must be > 0, got %v", c.TimeCeiling)
	}
	if c.Objective.TargetRadius <= 0 || c.Objective.TargetTime <= 0 {
		return fmt.Errorf("objective radius and dwell time must be > 0")
	}
	if c.TickTimeout < 0 {
		return fmt.Errorf("tick timeout must be >= 0, got %s", c.TickTimeout)
	}
	return nil
}

// StartPosition is where every rocket is placed at iteration start.
func (c Config) StartPosition() r2.Vec {
	return r2.Vec{X: c.Arena.X * 0.5, Y: c.Arena.Y * 0.75}
}
