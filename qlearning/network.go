package qlearning

import (
	"errors"
	"fmt"

	"gorgonia.org/tensor"
)

// OutputActions is the width of every Q-value row: one score per direction.
const OutputActions = 4

// ErrShape is returned when inputs, targets or weights do not match the network.
var ErrShape = errors.New("shape mismatch")

// FitOptions controls one supervised fit.
type FitOptions struct {
	Passes    int // full passes over the batch
	BatchSize int // mini-batch size within a pass
}

// Network is a Q-value approximator. States are laid out (n, size, size, depth)
// and flattened row-major; Predict returns n rows of OutputActions scores.
type Network interface {
	Predict(states []float64, n int) ([]float64, error)
	Fit(states, targets []float64, n int, opts FitOptions) (float64, error)
	SetLearningRate(lr float64)
	LearningRate() float64
	Weights() []*tensor.Dense
	SetWeights(weights []*tensor.Dense) error
	Save(path string) error
}

// CopyWeights overwrites dst's weights with src's. It is the only way the
// target network is brought in line with the critic.
func CopyWeights(dst, src Network) error {
	if err := dst.SetWeights(src.Weights()); err != nil {
		return fmt.Errorf("copy weights: %w", err)
	}
	return nil
}

func cloneWeights(weights []*tensor.Dense) []*tensor.Dense {
	out := make([]*tensor.Dense, len(weights))
	for i, w := range weights {
		out[i] = w.Clone().(*tensor.Dense)
	}
	return out
}

func setWeights(dst, src []*tensor.Dense) error {
	if len(dst) != len(src) {
		return fmt.Errorf("%w: %d weight tensors, want %d", ErrShape, len(src), len(dst))
	}
	for i := range dst {
		if !dst[i].Shape().Eq(src[i].Shape()) {
			return fmt.Errorf("%w: weight %d has shape %v, want %v", ErrShape, i, src[i].Shape(), dst[i].Shape())
		}
	}
	for i := range dst {
		if err := tensor.Copy(dst[i], src[i]); err != nil {
			return fmt.Errorf("copy weight %d: %w", i, err)
		}
	}
	return nil
}
