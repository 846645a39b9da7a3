package evo

import (
	"errors"
	"math/rand"
	"testing"

	"spacey/internal/dna"
)

type noopMutation struct{ name string }

func (o noopMutation) Name() string { return o.name }

func (noopMutation) Apply(_ *rand.Rand, genes dna.DNA) (dna.DNA, error) {
	return cloneGenes(genes), nil
}

func TestRegisterAndResolveMutation(t *testing.T) {
	resetMutationRegistryForTests()
	t.Cleanup(resetMutationRegistryForTests)

	if err := RegisterMutation(noopMutation{name: "noop"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	op, err := ResolveMutation("noop")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if op.Name() != "noop" {
		t.Fatalf("unexpected mutation: %s", op.Name())
	}
}

func TestRegisterMutationDuplicate(t *testing.T) {
	resetMutationRegistryForTests()
	t.Cleanup(resetMutationRegistryForTests)

	if err := RegisterMutation(GaussianMutation{Sigma: 1}); !errors.Is(err, ErrMutationExists) {
		t.Fatalf("expected ErrMutationExists, got: %v", err)
	}
}

func TestRegisterMutationValidation(t *testing.T) {
	resetMutationRegistryForTests()
	t.Cleanup(resetMutationRegistryForTests)

	if err := RegisterMutation(nil); err == nil {
		t.Fatal("expected nil mutation error")
	}
	if err := RegisterMutation(noopMutation{}); err == nil {
		t.Fatal("expected empty name error")
	}
}

func TestResolveMutationNotFound(t *testing.T) {
	if _, err := ResolveMutation("missing"); !errors.Is(err, ErrMutationNotFound) {
		t.Fatalf("expected ErrMutationNotFound, got: %v", err)
	}
}

func TestListMutationsSortedWithBuiltIns(t *testing.T) {
	resetMutationRegistryForTests()
	t.Cleanup(resetMutationRegistryForTests)

	names := ListMutations()
	want := []string{"gaussian", "gaussian_reset", "perturb_proportional"}
	if len(names) != len(want) {
		t.Fatalf("unexpected mutation list: %+v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("unexpected mutation list: %+v", names)
		}
	}
}

func TestResolveParentSelector(t *testing.T) {
	for name, want := range map[string]string{"": "elite", "elite": "elite", "tournament": "tournament"} {
		sel, err := ResolveParentSelector(name)
		if err != nil {
			t.Fatalf("resolve %q: %v", name, err)
		}
		if sel.Name() != want {
			t.Fatalf("resolve %q: got %s want %s", name, sel.Name(), want)
		}
	}
	if _, err := ResolveParentSelector("roulette"); !errors.Is(err, ErrSelectorNotFound) {
		t.Fatalf("expected ErrSelectorNotFound, got: %v", err)
	}
}
