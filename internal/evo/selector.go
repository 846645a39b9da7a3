package evo

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"spacey/internal/dna"
)

// Individual is what the selector needs from a population member.
type Individual interface {
	Score() float64
	DNA() dna.DNA
	LoadDNA(dna.DNA) error
}

type SelectorConfig struct {
	PopulationSize int
	// SurvivorRatio is the share of the ranked population copied unchanged
	// into the next generation.
	SurvivorRatio float64
	// ParentRatio is the share of the ranked population parents are drawn from.
	ParentRatio float64
	Parent      ParentSelector
	Mutation    Mutation
	Seed        int64
}

func DefaultSelectorConfig(populationSize int) SelectorConfig {
	return SelectorConfig{
		PopulationSize: populationSize,
		SurvivorRatio:  0.05,
		ParentRatio:    0.3,
		Parent:         EliteSelector{},
		Mutation:       GaussianMutation{Rate: DefaultMutationRate, Sigma: DefaultMutationSigma},
		Seed:           1,
	}
}

// Selector owns two populations. The current one is simulated; the other one
// receives the offspring and the two are swapped by NextGeneration, so slot i
// always holds a live individual and indices stay stable within a generation.
type Selector[U Individual] struct {
	cfg        SelectorConfig
	rng        *rand.Rand
	current    []U
	next       []U
	generation int
	best       Scored
}

// NewSelector builds both buffers with factory, which is called once per slot
// and buffer.
func NewSelector[U Individual](cfg SelectorConfig, factory func(rng *rand.Rand) (U, error)) (*Selector[U], error) {
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.SurvivorRatio < 0 || cfg.SurvivorRatio > 1 {
		return nil, fmt.Errorf("survivor ratio must be in [0, 1], got %f", cfg.SurvivorRatio)
	}
	if cfg.ParentRatio <= 0 || cfg.ParentRatio > 1 {
		return nil, fmt.Errorf("parent ratio must be in (0, 1], got %f", cfg.ParentRatio)
	}
	if cfg.Parent == nil {
		return nil, errors.New("parent selector is required")
	}
	if cfg.Mutation == nil {
		return nil, errors.New("mutation is required")
	}
	if factory == nil {
		return nil, errors.New("individual factory is required")
	}

	s := &Selector[U]{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		current: make([]U, cfg.PopulationSize),
		next:    make([]U, cfg.PopulationSize),
	}
	for _, buf := range [][]U{s.current, s.next} {
		for i := range buf {
			u, err := factory(s.rng)
			if err != nil {
				return nil, fmt.Errorf("build individual %d: %w", i, err)
			}
			buf[i] = u
		}
	}
	return s, nil
}

// Population returns the current generation. The slice is reused; callers
// must not keep it across NextGeneration.
func (s *Selector[U]) Population() []U {
	return s.current
}

func (s *Selector[U]) Generation() int {
	return s.generation
}

// Best is the top individual of the last generation that went through
// NextGeneration.
func (s *Selector[U]) Best() Scored {
	return s.best
}

// Rank returns the current population sorted by fitness, best first. Ties
// keep population order.
func (s *Selector[U]) Rank() []Scored {
	ranked := make([]Scored, len(s.current))
	for i, u := range s.current {
		ranked[i] = Scored{Index: i, DNA: u.DNA(), Fitness: u.Score()}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness > ranked[j].Fitness
	})
	return ranked
}

// NextGeneration breeds the offspring into the spare buffer, swaps it in and
// bumps the generation counter. On error the current population is kept.
func (s *Selector[U]) NextGeneration() error {
	ranked := s.Rank()
	size := len(ranked)

	survivors := int(float64(size) * s.cfg.SurvivorRatio)
	if survivors < 1 && s.cfg.SurvivorRatio > 0 {
		survivors = 1
	}
	parents := int(float64(size) * s.cfg.ParentRatio)
	if parents < 1 {
		parents = 1
	}

	for i := range s.next {
		var genes dna.DNA
		if i < survivors {
			genes = ranked[i].DNA
		} else {
			child, err := s.breed(ranked, parents)
			if err != nil {
				return fmt.Errorf("breed slot %d: %w", i, err)
			}
			genes = child
		}
		if err := s.next[i].LoadDNA(genes); err != nil {
			return fmt.Errorf("load offspring %d: %w", i, err)
		}
	}

	s.best = ranked[0]
	s.current, s.next = s.next, s.current
	s.generation++
	return nil
}

func (s *Selector[U]) breed(ranked []Scored, parents int) (dna.DNA, error) {
	a, err := s.cfg.Parent.PickParent(s.rng, ranked, parents)
	if err != nil {
		return nil, err
	}
	b, err := s.cfg.Parent.PickParent(s.rng, ranked, parents)
	if err != nil {
		return nil, err
	}
	child, err := UniformCrossover(s.rng, a.DNA, b.DNA)
	if err != nil {
		return nil, err
	}
	return s.cfg.Mutation.Apply(s.rng, child)
}
