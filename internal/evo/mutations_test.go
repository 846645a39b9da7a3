package evo

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"spacey/internal/dna"
)

func TestGaussianMutationDoesNotAliasInput(t *testing.T) {
	genes := dna.DNA{1, 2, 3, 4}
	before := cloneGenes(genes)
	out, err := GaussianMutation{Rate: 1, Sigma: 0.5}.Apply(rand.New(rand.NewSource(1)), genes)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if diff := cmp.Diff(before, genes); diff != "" {
		t.Fatalf("input mutated (-want +got):\n%s", diff)
	}
	if cmp.Equal(out, genes) {
		t.Fatal("expected rate=1 mutation to change genes")
	}
}

func TestGaussianMutationZeroRateIsIdentity(t *testing.T) {
	genes := dna.DNA{1, 2, 3}
	out, err := GaussianMutation{Rate: 0, Sigma: 1}.Apply(rand.New(rand.NewSource(1)), genes)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if diff := cmp.Diff(genes, out); diff != "" {
		t.Fatalf("unexpected change (-want +got):\n%s", diff)
	}
}

func TestMutationValidation(t *testing.T) {
	if _, err := (GaussianMutation{Rate: 1, Sigma: 1}).Apply(nil, dna.DNA{1}); err == nil {
		t.Fatal("expected nil rng error")
	}
	if _, err := (ResetMutation{Rate: 1}).Apply(rand.New(rand.NewSource(1)), dna.DNA{1}); err == nil {
		t.Fatal("expected sigma error")
	}
	if _, err := (PerturbProportional{MaxDelta: 1}).Apply(rand.New(rand.NewSource(1)), nil); !errors.Is(err, ErrNoGenes) {
		t.Fatalf("expected ErrNoGenes, got %v", err)
	}
}

func TestResetMutationKeepsResetGenesInUnitRange(t *testing.T) {
	genes := make(dna.DNA, 64)
	for i := range genes {
		genes[i] = 50
	}
	out, err := ResetMutation{Rate: 0, Sigma: 1, ResetProbability: 1}.Apply(rand.New(rand.NewSource(4)), genes)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	for i, v := range out {
		if v < -1 || v > 1 {
			t.Fatalf("gene %d=%f outside [-1, 1]", i, v)
		}
	}
}

func TestPerturbProportionalMovesAtLeastOneGene(t *testing.T) {
	genes := make(dna.DNA, 400)
	out, err := PerturbProportional{MaxDelta: 0.5}.Apply(rand.New(rand.NewSource(8)), genes)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	changed := 0
	for i := range out {
		if out[i] != 0 {
			changed++
		}
		if out[i] < -0.5 || out[i] > 0.5 {
			t.Fatalf("gene %d moved beyond max delta: %f", i, out[i])
		}
	}
	if changed == 0 {
		t.Fatal("expected at least one perturbed gene")
	}
}

func TestUniformCrossoverTakesGenesFromParents(t *testing.T) {
	a := dna.DNA{1, 1, 1, 1, 1, 1, 1, 1}
	b := dna.DNA{2, 2, 2, 2, 2, 2, 2, 2}
	child, err := UniformCrossover(rand.New(rand.NewSource(3)), a, b)
	if err != nil {
		t.Fatalf("crossover: %v", err)
	}
	for i, v := range child {
		if v != 1 && v != 2 {
			t.Fatalf("gene %d=%f not from a parent", i, v)
		}
	}

	var cfgErr *dna.ConfigurationError
	if _, err := UniformCrossover(rand.New(rand.NewSource(3)), a, b[:3]); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
