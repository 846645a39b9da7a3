package evo

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrMutationExists   = errors.New("mutation already registered")
	ErrMutationNotFound = errors.New("mutation not found")
	ErrSelectorNotFound = errors.New("parent selector not found")
)

const (
	DefaultMutationRate  = 0.05
	DefaultMutationSigma = 0.25
)

var mutationRegistry = struct {
	mu sync.RWMutex
	m  map[string]Mutation
}{
	m: make(map[string]Mutation),
}

func init() {
	initializeBuiltInMutations()
}

func initializeBuiltInMutations() {
	mustRegisterMutation(GaussianMutation{Rate: DefaultMutationRate, Sigma: DefaultMutationSigma})
	mustRegisterMutation(ResetMutation{Rate: DefaultMutationRate, Sigma: DefaultMutationSigma, ResetProbability: 0.002})
	mustRegisterMutation(PerturbProportional{MaxDelta: DefaultMutationSigma})
}

func RegisterMutation(op Mutation) error {
	if op == nil {
		return errors.New("mutation is required")
	}
	name := op.Name()
	if name == "" {
		return errors.New("mutation name is required")
	}

	mutationRegistry.mu.Lock()
	defer mutationRegistry.mu.Unlock()

	if _, exists := mutationRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrMutationExists, name)
	}
	mutationRegistry.m[name] = op
	return nil
}

func mustRegisterMutation(op Mutation) {
	if err := RegisterMutation(op); err != nil {
		panic(err)
	}
}

func ResolveMutation(name string) (Mutation, error) {
	mutationRegistry.mu.RLock()
	op, ok := mutationRegistry.m[name]
	mutationRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMutationNotFound, name)
	}
	return op, nil
}

func ListMutations() []string {
	mutationRegistry.mu.RLock()
	defer mutationRegistry.mu.RUnlock()

	names := make([]string, 0, len(mutationRegistry.m))
	for name := range mutationRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveParentSelector maps a CLI/config name onto a parent selection
// strategy with default parameters.
func ResolveParentSelector(name string) (ParentSelector, error) {
	switch name {
	case "", "elite":
		return EliteSelector{}, nil
	case "tournament":
		return TournamentSelector{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrSelectorNotFound, name)
	}
}

func resetMutationRegistryForTests() {
	mutationRegistry.mu.Lock()
	mutationRegistry.m = make(map[string]Mutation)
	mutationRegistry.mu.Unlock()
	initializeBuiltInMutations()
}
