// Package stadium runs the population of landers tick by tick: physics,
// liveness, objectives and fitness, spread over a worker pool.
package stadium

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"

	"spacey/internal/dna"
	"spacey/internal/evo"
	"spacey/internal/lander"
	"spacey/internal/nn"
	"spacey/internal/objective"
	"spacey/internal/swarm"
)

// StopReason says why RunIteration returned.
type StopReason string

const (
	StopExtinct     StopReason = "extinct"
	StopTimeCeiling StopReason = "time_ceiling"
	StopCancelled   StopReason = "cancelled"
)

type IterationResult struct {
	Generation  int
	BestFitness float64
	Alive       int
	Time        float64
	Ticks       int
	Reason      StopReason
	// Fitness holds every rocket's final fitness in population order.
	Fitness []float64
}

// Stadium is not safe for concurrent use; only the pool workers it
// dispatches run in parallel.
type Stadium struct {
	cfg        Config
	selector   *evo.Selector[*lander.Rocket]
	pool       *swarm.Swarm
	logger     *slog.Logger
	rng        *rand.Rand
	targets    []r2.Vec
	objectives []objective.Objective
	iteration  Iteration
}

func New(cfg Config, selector *evo.Selector[*lander.Rocket], pool *swarm.Swarm, logger *slog.Logger) (*Stadium, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if selector == nil {
		return nil, errors.New("selector is required")
	}
	if pool == nil {
		return nil, errors.New("worker pool is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Stadium{
		cfg:        cfg,
		selector:   selector,
		pool:       pool,
		logger:     logger,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		objectives: make([]objective.Objective, len(selector.Population())),
	}
	for _, r := range selector.Population() {
		r.Gravity = cfg.Gravity
	}
	s.InitializeTargets()
	return s, nil
}

func (s *Stadium) Config() Config {
	return s.cfg
}

func (s *Stadium) Targets() []r2.Vec {
	return s.targets
}

func (s *Stadium) Iteration() *Iteration {
	return &s.iteration
}

func (s *Stadium) Generation() int {
	return s.selector.Generation()
}

func (s *Stadium) Population() []*lander.Rocket {
	return s.selector.Population()
}

func (s *Stadium) Objective(i int) objective.Objective {
	return s.objectives[i]
}

func (s *Stadium) InitializeTargets() {
	s.targets = objective.Generate(s.rng, s.cfg.Arena, s.cfg.TargetCount)
}

// InitializeUnits puts every rocket back at the start position and resets
// its objective.
func (s *Stadium) InitializeUnits() {
	start := s.cfg.StartPosition()
	for i, r := range s.selector.Population() {
		r.Index = i
		r.Gravity = s.cfg.Gravity
		r.Position = start
		s.objectives[i].Reset(start, s.targets)
		r.Reset()
	}
}

func (s *Stadium) InitializeIteration() {
	s.InitializeTargets()
	s.InitializeUnits()
	s.iteration.reset()
}

// CheckAlive reports whether r is inside the arena grown by the tolerance,
// not upside down and numerically sane.
func (s *Stadium) CheckAlive(r *lander.Rocket) bool {
	if !r.Finite() {
		return false
	}
	tol := s.cfg.Tolerance
	p := r.Position
	inside := p.X >= -tol && p.X <= s.cfg.Arena.X+tol &&
		p.Y >= -tol && p.Y <= s.cfg.Arena.Y+tol
	return inside && math.Sin(r.Angle) > 0
}

func (s *Stadium) AliveCount() int {
	n := 0
	for _, r := range s.selector.Population() {
		if r.Alive {
			n++
		}
	}
	return n
}

// UpdateUnit advances rocket i by one tick. Dead rockets are left untouched.
func (s *Stadium) UpdateUnit(i int, dt float64, updateSmoke bool) error {
	r := s.selector.Population()[i]
	if !r.Alive {
		return nil
	}

	obj := &s.objectives[r.Index]
	toTarget := r2.Sub(obj.Target(s.targets), r.Position)
	dist := r2.Norm(toTarget)
	toTarget = r2.Scale(1/math.Max(dist, s.cfg.MaxDistance), toTarget)

	if obj.CheckLanding(s.cfg.Objective, s.targets, r.Position, r.Angle) {
		r.Stop = true
	}

	if !r.Stop {
		inputs := []float64{
			toTarget.X,
			toTarget.Y,
			r.Velocity.X * dt,
			r.Velocity.Y * dt,
			math.Cos(r.Angle),
			math.Sin(r.Angle),
			r.AngularVelocity * dt,
		}
		if err := r.Execute(inputs, r); err != nil {
			return fmt.Errorf("rocket %d: %w", i, err)
		}
	}
	r.Update(dt, updateSmoke)
	r.Alive = s.CheckAlive(r)

	// Added, not subtracted: a jumpy throttle raises the score.
	r.Fitness += s.cfg.JerkCoef * math.Abs(r.LastPower-r.Thruster.PowerRatio()) / (1 + dist)

	reward, _ := obj.Step(s.cfg.Objective, s.targets, r.Position, r.Angle, dist, dt)
	r.Fitness += reward

	s.iteration.observe(r.Fitness)
	return nil
}

// Update runs one tick over the whole population and returns once every
// worker is done. Cancelling ctx does not interrupt a tick in flight; only
// Config.TickTimeout does, and the population is then in an undefined state.
func (s *Stadium) Update(ctx context.Context, dt float64, updateSmoke bool) error {
	blocks := Partition(len(s.selector.Population()), s.pool.Workers())
	errs := make([]error, len(blocks))

	group := s.pool.Execute(func(workerID, _ int) {
		b := blocks[workerID]
		for i := b.Start; i < b.End; i++ {
			if err := s.UpdateUnit(i, dt, updateSmoke); err != nil {
				errs[workerID] = err
				return
			}
		}
	})

	waitCtx := context.WithoutCancel(ctx)
	if s.cfg.TickTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(waitCtx, s.cfg.TickTimeout)
		defer cancel()
	}
	if err := group.Wait(waitCtx); err != nil {
		return fmt.Errorf("tick %d: %w", s.iteration.Ticks, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("tick %d: %w", s.iteration.Ticks, err)
	}

	s.iteration.Time += dt
	s.iteration.Ticks++
	return nil
}

// RunIteration plays one full episode: it reseeds targets and rockets, then
// ticks until every rocket is dead, the time ceiling is reached or ctx is
// cancelled.
func (s *Stadium) RunIteration(ctx context.Context, dt float64, updateSmoke bool) (IterationResult, error) {
	if dt <= 0 {
		return IterationResult{}, fmt.Errorf("dt must be > 0, got %v", dt)
	}
	s.InitializeIteration()
	s.logger.Debug("iteration start",
		"generation", s.Generation(),
		"population", len(s.selector.Population()),
		"targets", len(s.targets),
	)

	var reason StopReason
	for {
		if ctx.Err() != nil {
			reason = StopCancelled
			break
		}
		if s.AliveCount() == 0 {
			reason = StopExtinct
			break
		}
		if s.iteration.Time >= s.cfg.TimeCeiling {
			reason = StopTimeCeiling
			break
		}
		if err := s.Update(ctx, dt, updateSmoke); err != nil {
			return IterationResult{}, err
		}
	}

	result := IterationResult{
		Generation:  s.Generation(),
		BestFitness: s.iteration.BestFitness(),
		Alive:       s.AliveCount(),
		Time:        s.iteration.Time,
		Ticks:       s.iteration.Ticks,
		Reason:      reason,
		Fitness:     make([]float64, len(s.selector.Population())),
	}
	for i, r := range s.selector.Population() {
		result.Fitness[i] = r.Fitness
	}
	s.logger.Info("iteration done",
		"generation", result.Generation,
		"best_fitness", result.BestFitness,
		"alive", result.Alive,
		"sim_time", result.Time,
		"ticks", result.Ticks,
		"reason", string(result.Reason),
	)
	return result, nil
}

// NextIteration breeds the next generation from the final fitness values.
func (s *Stadium) NextIteration() error {
	return s.selector.NextGeneration()
}

// LoadDNAFromFile copies the records of path into the population slots, in
// order. A file with fewer records than slots is not an error: the remaining
// rockets keep their parameters. It returns how many slots were loaded.
func (s *Stadium) LoadDNAFromFile(path string) (int, error) {
	pop := s.selector.Population()
	if len(pop) == 0 {
		return 0, nil
	}
	recordBytes := dna.RecordBytes(pop[0].Network.ParameterCount())
	records, err := dna.LoadAll(path, recordBytes, len(pop))
	if err != nil {
		return 0, fmt.Errorf("load dna from %s: %w", path, err)
	}
	for i, genes := range records {
		if err := pop[i].LoadDNA(genes); err != nil {
			return i, fmt.Errorf("load dna slot %d: %w", i, err)
		}
	}
	s.logger.Info("dna loaded", "path", path, "records", len(records), "population", len(pop))
	return len(records), nil
}

// SaveDNAToFile writes the parameters of the current population in slot order.
func (s *Stadium) SaveDNAToFile(path string) error {
	pop := s.selector.Population()
	records := make([]dna.DNA, len(pop))
	for i, r := range pop {
		records[i] = r.DNA()
	}
	return dna.WriteAll(path, records)
}

// RocketView is the read-only state a renderer or report needs of one rocket.
type RocketView struct {
	Index       int
	Position    r2.Vec
	Angle       float64
	Alive       bool
	Stopped     bool
	Fitness     float64
	TargetID    int
	TimeIn      float64
	PowerRatio  float64
	ThrustAngle float64
	Smoke       int
}

type Snapshot struct {
	Generation  int
	Time        float64
	BestFitness float64
	Alive       int
	Targets     []r2.Vec
	Rockets     []RocketView
}

// Snapshot copies the public state between ticks.
func (s *Stadium) Snapshot() Snapshot {
	pop := s.selector.Population()
	snap := Snapshot{
		Generation:  s.Generation(),
		Time:        s.iteration.Time,
		BestFitness: s.iteration.BestFitness(),
		Targets:     append([]r2.Vec(nil), s.targets...),
		Rockets:     make([]RocketView, len(pop)),
	}
	for i, r := range pop {
		obj := s.objectives[r.Index]
		snap.Rockets[i] = RocketView{
			Index:       r.Index,
			Position:    r.Position,
			Angle:       r.Angle,
			Alive:       r.Alive,
			Stopped:     r.Stop,
			Fitness:     r.Fitness,
			TargetID:    obj.TargetID,
			TimeIn:      obj.TimeIn,
			PowerRatio:  r.Thruster.AvgPowerRatio(),
			ThrustAngle: r.Thruster.AvgAngle(),
			Smoke:       r.Smoke.Len(),
		}
		if r.Alive {
			snap.Alive++
		}
	}
	return snap
}

// RocketFactory builds rockets for evo.NewSelector.
func RocketFactory(arch []int, activation string) func(rng *rand.Rand) (*lander.Rocket, error) {
	if len(arch) == 0 {
		arch = nn.DefaultArchitecture
	}
	return func(rng *rand.Rand) (*lander.Rocket, error) {
		return lander.NewRocket(arch, activation, rng)
	}
}
