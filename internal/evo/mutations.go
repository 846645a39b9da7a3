package evo

import (
	"errors"
	"math"
	"math/rand"

	"spacey/internal/dna"
)

// GaussianMutation adds N(0, Sigma) noise to each gene with probability Rate.
type GaussianMutation struct {
	Rate  float64
	Sigma float64
}

func (GaussianMutation) Name() string {
	return "gaussian"
}

func (o GaussianMutation) Apply(rng *rand.Rand, genes dna.DNA) (dna.DNA, error) {
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	if o.Sigma <= 0 {
		return nil, errors.New("sigma must be > 0")
	}
	mutated := cloneGenes(genes)
	for i := range mutated {
		if rng.Float64() < o.Rate {
			mutated[i] += float32(rng.NormFloat64() * o.Sigma)
		}
	}
	return mutated, nil
}

// ResetMutation behaves like GaussianMutation but redraws a gene from scratch
// with probability ResetProbability.
type ResetMutation struct {
	Rate             float64
	Sigma            float64
	ResetProbability float64
}

func (ResetMutation) Name() string {
	return "gaussian_reset"
}

func (o ResetMutation) Apply(rng *rand.Rand, genes dna.DNA) (dna.DNA, error) {
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	if o.Sigma <= 0 {
		return nil, errors.New("sigma must be > 0")
	}
	mutated := cloneGenes(genes)
	for i := range mutated {
		switch {
		case rng.Float64() < o.ResetProbability:
			mutated[i] = float32(rng.Float64()*2 - 1)
		case rng.Float64() < o.Rate:
			mutated[i] += float32(rng.NormFloat64() * o.Sigma)
		}
	}
	return mutated, nil
}

// PerturbProportional perturbs each gene with probability 1/sqrt(len(genes))
// by a uniform delta in [-MaxDelta, MaxDelta]. At least one gene always moves.
type PerturbProportional struct {
	MaxDelta float64
}

func (PerturbProportional) Name() string {
	return "perturb_proportional"
}

func (o PerturbProportional) Apply(rng *rand.Rand, genes dna.DNA) (dna.DNA, error) {
	if len(genes) == 0 {
		return nil, ErrNoGenes
	}
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	if o.MaxDelta <= 0 {
		return nil, errors.New("max delta must be > 0")
	}

	mutated := cloneGenes(genes)
	mp := 1 / math.Sqrt(float64(len(mutated)))
	count := 0
	for i := range mutated {
		if rng.Float64() >= mp {
			continue
		}
		mutated[i] += float32((rng.Float64()*2 - 1) * o.MaxDelta)
		count++
	}
	if count == 0 {
		idx := rng.Intn(len(mutated))
		mutated[idx] += float32((rng.Float64()*2 - 1) * o.MaxDelta)
	}
	return mutated, nil
}

// UniformCrossover picks every gene from a or b with equal probability.
func UniformCrossover(rng *rand.Rand, a, b dna.DNA) (dna.DNA, error) {
	if len(a) != len(b) {
		return nil, &dna.ConfigurationError{ExpectedCount: len(a), ActualCount: len(b)}
	}
	child := make(dna.DNA, len(a))
	for i := range child {
		if rng.Intn(2) == 0 {
			child[i] = a[i]
		} else {
			child[i] = b[i]
		}
	}
	return child, nil
}
