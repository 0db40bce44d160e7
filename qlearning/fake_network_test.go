package qlearning

import (
	"os"

	"gorgonia.org/tensor"
)

// fakeNetwork scores action a as bias[a] + sum(state). It records fits and
// saves instead of learning; fitted batches are kept as copies.
type fakeNetwork struct {
	bias  *tensor.Dense
	input int
	lr    float64

	fits          []int
	fittedStates  [][]float64
	fittedTargets [][]float64
	saves         []string
}

func newFakeNetwork(input int, bias ...float64) *fakeNetwork {
	b := make([]float64, OutputActions)
	copy(b, bias)
	return &fakeNetwork{
		bias:  tensor.New(tensor.WithShape(OutputActions), tensor.WithBacking(b)),
		input: input,
	}
}

func (f *fakeNetwork) Predict(states []float64, n int) ([]float64, error) {
	if len(states) != n*f.input {
		return nil, ErrShape
	}
	bias := f.bias.Data().([]float64)
	out := make([]float64, 0, n*OutputActions)
	for i := 0; i < n; i++ {
		var sum float64
		for _, v := range states[i*f.input : (i+1)*f.input] {
			sum += v
		}
		for a := 0; a < OutputActions; a++ {
			out = append(out, bias[a]+sum)
		}
	}
	return out, nil
}

func (f *fakeNetwork) Fit(states, targets []float64, n int, opts FitOptions) (float64, error) {
	if len(states) != n*f.input || len(targets) != n*OutputActions {
		return 0, ErrShape
	}
	f.fits = append(f.fits, n)
	f.fittedStates = append(f.fittedStates, append([]float64(nil), states...))
	f.fittedTargets = append(f.fittedTargets, append([]float64(nil), targets...))
	return 0.5, nil
}

func (f *fakeNetwork) SetLearningRate(lr float64) { f.lr = lr }
func (f *fakeNetwork) LearningRate() float64      { return f.lr }

func (f *fakeNetwork) Weights() []*tensor.Dense {
	return cloneWeights([]*tensor.Dense{f.bias})
}

func (f *fakeNetwork) SetWeights(weights []*tensor.Dense) error {
	return setWeights([]*tensor.Dense{f.bias}, weights)
}

func (f *fakeNetwork) Save(path string) error {
	f.saves = append(f.saves, path)
	return os.WriteFile(path, []byte("fake"), 0644)
}
