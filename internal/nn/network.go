package nn

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// DefaultArchitecture is the lander controller: 7 sensor inputs, two hidden
// layers of 9 and the power/angle outputs.
var DefaultArchitecture = []int{7, 9, 9, 2}

var ErrParameterCount = errors.New("parameter count mismatch")

type layer struct {
	weights *mat.Dense
	biases  *mat.VecDense
	out     *mat.VecDense
}

// Network is a fully connected feed-forward network. Parameters are laid out
// layer by layer: row-major weights (outputs x inputs) followed by biases.
// A Network is not safe for concurrent use.
type Network struct {
	arch       []int
	activation ActivationFunc
	layers     []layer
	params     []float64
}

// ParameterCount returns the number of weights and biases of arch.
func ParameterCount(arch []int) int {
	total := 0
	for i := 0; i+1 < len(arch); i++ {
		total += arch[i]*arch[i+1] + arch[i+1]
	}
	return total
}

func New(arch []int, activation string) (*Network, error) {
	if len(arch) < 2 {
		return nil, fmt.Errorf("architecture needs at least 2 layers, got %d", len(arch))
	}
	for i, size := range arch {
		if size <= 0 {
			return nil, fmt.Errorf("layer %d size must be > 0", i)
		}
	}
	if activation == "" {
		activation = "tanh"
	}
	fn, err := GetActivation(activation)
	if err != nil {
		return nil, err
	}

	n := &Network{
		arch:       append([]int(nil), arch...),
		activation: fn,
		params:     make([]float64, ParameterCount(arch)),
	}
	offset := 0
	for i := 0; i+1 < len(arch); i++ {
		in, out := arch[i], arch[i+1]
		w := n.params[offset : offset+in*out]
		offset += in * out
		b := n.params[offset : offset+out]
		offset += out
		// Layer matrices are views over n.params.
		n.layers = append(n.layers, layer{
			weights: mat.NewDense(out, in, w),
			biases:  mat.NewVecDense(out, b),
			out:     mat.NewVecDense(out, nil),
		})
	}
	return n, nil
}

func (n *Network) ParameterCount() int {
	return len(n.params)
}

// Parameters returns a float32 copy of the flattened parameter vector.
func (n *Network) Parameters() []float32 {
	out := make([]float32, len(n.params))
	for i, v := range n.params {
		out[i] = float32(v)
	}
	return out
}

func (n *Network) SetParameters(params []float32) error {
	if len(params) != len(n.params) {
		return fmt.Errorf("%w: got=%d want=%d", ErrParameterCount, len(params), len(n.params))
	}
	for i, v := range params {
		n.params[i] = float64(v)
	}
	return nil
}

// Randomize draws every parameter uniformly from [-1, 1], rounded to float32
// so that exporting and reloading the parameters is lossless.
func (n *Network) Randomize(rng *rand.Rand) {
	for i := range n.params {
		n.params[i] = float64(float32(rng.Float64()*2 - 1))
	}
}

// Forward evaluates the network. The returned slice is owned by the network
// and is overwritten by the next call.
func (n *Network) Forward(inputs []float64) ([]float64, error) {
	if len(inputs) != n.arch[0] {
		return nil, fmt.Errorf("input size mismatch: got=%d want=%d", len(inputs), n.arch[0])
	}

	var current mat.Vector = mat.NewVecDense(len(inputs), inputs)
	for i := range n.layers {
		l := &n.layers[i]
		l.out.MulVec(l.weights, current)
		l.out.AddVec(l.out, l.biases)
		raw := l.out.RawVector().Data
		for j, v := range raw {
			raw[j] = n.activation(v)
		}
		current = l.out
	}
	return n.layers[len(n.layers)-1].out.RawVector().Data, nil
}
