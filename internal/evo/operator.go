package evo

import (
	"errors"
	"math/rand"

	"spacey/internal/dna"
)

var ErrNoGenes = errors.New("genome has no genes")

// Mutation rewrites a parameter vector. Implementations must not modify genes
// and must return a new slice.
type Mutation interface {
	Name() string
	Apply(rng *rand.Rand, genes dna.DNA) (dna.DNA, error)
}

func cloneGenes(genes dna.DNA) dna.DNA {
	return append(dna.DNA(nil), genes...)
}
