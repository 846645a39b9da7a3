package agent

import (
	"errors"
	"fmt"
	"math/rand"

	"spacey/internal/dna"
	"spacey/internal/nn"
)

// Actuatable receives the controller outputs after every forward pass.
type Actuatable interface {
	Apply(outputs []float64)
}

// Unit is the evolvable part of a simulated agent: its controller network and
// the per-iteration fitness and liveness bookkeeping.
type Unit struct {
	Network *nn.Network
	Fitness float64
	Alive   bool
}

func NewUnit(arch []int, activation string, rng *rand.Rand) (Unit, error) {
	network, err := nn.New(arch, activation)
	if err != nil {
		return Unit{}, err
	}
	if rng != nil {
		network.Randomize(rng)
	}
	return Unit{Network: network, Alive: true}, nil
}

// Execute runs the controller on inputs and hands the outputs to handler.
func (u *Unit) Execute(inputs []float64, handler Actuatable) error {
	if u.Network == nil {
		return errors.New("unit has no controller network")
	}
	outputs, err := u.Network.Forward(inputs)
	if err != nil {
		return err
	}
	handler.Apply(outputs)
	return nil
}

func (u *Unit) Score() float64 {
	return u.Fitness
}

func (u *Unit) DNA() dna.DNA {
	return u.Network.Parameters()
}

func (u *Unit) LoadDNA(genes dna.DNA) error {
	if err := u.Network.SetParameters(genes); err != nil {
		if errors.Is(err, nn.ErrParameterCount) {
			return &dna.ConfigurationError{
				ExpectedCount: u.Network.ParameterCount(),
				ActualCount:   len(genes),
			}
		}
		return fmt.Errorf("load dna: %w", err)
	}
	return nil
}
