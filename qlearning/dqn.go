package qlearning

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/exp/rand"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func init() {
	gob.Register(&tensor.Dense{})
}

// Weight slots in ConvQNet.weights.
const (
	convFilter = iota
	w1
	b1
	w2
	b2
	numWeights
)

const kernelSize = 3

// ConvQNetConfig sizes a ConvQNet.
type ConvQNetConfig struct {
	Size         int // board side
	Depth        int // timeslip depth (input channels)
	Filters      int // conv filters
	Hidden       int // dense hidden units
	LearningRate float64
	ClipNorm     float64 // global gradient norm cap, 0 disables clipping
	Seed         uint64
}

// CheckInput returns ErrShape unless the network reads size x size boards
// stacked depth frames deep.
func (c ConvQNetConfig) CheckInput(size, depth int) error {
	if c.Size != size || c.Depth != depth {
		return fmt.Errorf("%w: network reads %dx%d boards of depth %d, want %dx%d of depth %d",
			ErrShape, c.Size, c.Size, c.Depth, size, size, depth)
	}
	return nil
}

// ConvQNet is a small convolutional Q network: 3x3 conv + ReLU, dense + ReLU,
// dense to OutputActions. Weights live in plain tensors; every call builds a
// fresh expression graph over them so batch size can vary between calls.
type ConvQNet struct {
	cfg     ConvQNetConfig
	weights []*tensor.Dense
	rng     *rand.Rand
}

func NewConvQNet(cfg ConvQNetConfig) (*ConvQNet, error) {
	if cfg.Size <= 0 || cfg.Depth <= 0 || cfg.Filters <= 0 || cfg.Hidden <= 0 {
		return nil, fmt.Errorf("%w: invalid network config %+v", ErrShape, cfg)
	}

	flat := cfg.Filters * cfg.Size * cfg.Size
	glorot := gorgonia.GlorotU(1.0)
	newWeight := func(shape ...int) *tensor.Dense {
		return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(glorot(tensor.Float64, shape...)))
	}
	newBias := func(n int) *tensor.Dense {
		return tensor.New(tensor.WithShape(1, n), tensor.WithBacking(make([]float64, n)))
	}

	net := &ConvQNet{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
	net.weights = make([]*tensor.Dense, numWeights)
	net.weights[convFilter] = newWeight(cfg.Filters, cfg.Depth, kernelSize, kernelSize)
	net.weights[w1] = newWeight(flat, cfg.Hidden)
	net.weights[b1] = newBias(cfg.Hidden)
	net.weights[w2] = newWeight(cfg.Hidden, OutputActions)
	net.weights[b2] = newBias(OutputActions)
	return net, nil
}

// Clone returns an independent network with the same config and weights.
func (net *ConvQNet) Clone() *ConvQNet {
	return &ConvQNet{
		cfg:     net.cfg,
		weights: cloneWeights(net.weights),
		rng:     rand.New(rand.NewSource(net.cfg.Seed + 1)),
	}
}

func (net *ConvQNet) Config() ConvQNetConfig {
	return net.cfg
}

func (net *ConvQNet) SetLearningRate(lr float64) {
	net.cfg.LearningRate = lr
}

func (net *ConvQNet) LearningRate() float64 {
	return net.cfg.LearningRate
}

func (net *ConvQNet) Weights() []*tensor.Dense {
	return cloneWeights(net.weights)
}

func (net *ConvQNet) SetWeights(weights []*tensor.Dense) error {
	return setWeights(net.weights, weights)
}

func (net *ConvQNet) inputSize() int {
	return net.cfg.Size * net.cfg.Size * net.cfg.Depth
}

// toNCHW reorders (n, size, size, depth) states into the (n, depth, size, size)
// layout the convolution expects.
func (net *ConvQNet) toNCHW(states []float64, n int) []float64 {
	size, depth := net.cfg.Size, net.cfg.Depth
	out := make([]float64, len(states))
	for b := 0; b < n; b++ {
		base := b * size * size * depth
		for r := 0; r < size; r++ {
			for c := 0; c < size; c++ {
				for k := 0; k < depth; k++ {
					out[base+(k*size+r)*size+c] = states[base+(r*size+c)*depth+k]
				}
			}
		}
	}
	return out
}

type graph struct {
	g          *gorgonia.ExprGraph
	pred       *gorgonia.Node
	learnables gorgonia.Nodes
}

// build wires the forward pass for a batch of n states.
func (net *ConvQNet) build(states []float64, n int) *graph {
	g := gorgonia.NewGraph()
	size, depth := net.cfg.Size, net.cfg.Depth

	learnables := make(gorgonia.Nodes, numWeights)
	names := [numWeights]string{"conv", "w1", "b1", "w2", "b2"}
	for i, w := range net.weights {
		learnables[i] = gorgonia.NewTensor(g,
			tensor.Float64,
			w.Dims(),
			gorgonia.WithShape(w.Shape()...),
			gorgonia.WithValue(w),
			gorgonia.WithName(names[i]))
	}

	input := tensor.New(tensor.WithShape(n, depth, size, size), tensor.WithBacking(net.toNCHW(states, n)))
	x := gorgonia.NodeFromAny(g, input, gorgonia.WithName("x"))

	// Helper function per il broadcasting del bias
	expandBias := func(bias *gorgonia.Node, size int) (*gorgonia.Node, error) {
		ones := make([]float64, size)
		for i := range ones {
			ones[i] = 1.0
		}
		onesNode := gorgonia.NodeFromAny(g, tensor.New(tensor.WithShape(size, 1), tensor.WithBacking(ones)))
		return gorgonia.Mul(onesNode, bias)
	}

	conv := gorgonia.Must(gorgonia.Conv2d(x, learnables[convFilter], tensor.Shape{kernelSize, kernelSize}, []int{1, 1}, []int{1, 1}, []int{1, 1}))
	conv = gorgonia.Must(gorgonia.Rectify(conv))
	flat := gorgonia.Must(gorgonia.Reshape(conv, tensor.Shape{n, net.cfg.Filters * size * size}))

	h1 := gorgonia.Must(gorgonia.Mul(flat, learnables[w1]))
	h1 = gorgonia.Must(gorgonia.Add(h1, gorgonia.Must(expandBias(learnables[b1], n))))
	h1 = gorgonia.Must(gorgonia.Rectify(h1))

	out := gorgonia.Must(gorgonia.Mul(h1, learnables[w2]))
	pred := gorgonia.Must(gorgonia.Add(out, gorgonia.Must(expandBias(learnables[b2], n))))

	return &graph{g: g, pred: pred, learnables: learnables}
}

// Predict runs the forward pass on n states.
func (net *ConvQNet) Predict(states []float64, n int) ([]float64, error) {
	if n <= 0 || len(states) != n*net.inputSize() {
		return nil, fmt.Errorf("%w: %d values for %d states of %d", ErrShape, len(states), n, net.inputSize())
	}

	gr := net.build(states, n)
	vm := gorgonia.NewTapeMachine(gr.g)
	defer vm.Close()

	if err := vm.RunAll(); err != nil {
		return nil, fmt.Errorf("forward pass error: %w", err)
	}

	predValue := gr.pred.Value()
	if predValue == nil {
		return nil, fmt.Errorf("nil prediction value")
	}
	predTensor, ok := predValue.(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("invalid prediction tensor type %T", predValue)
	}

	predictions := make([]float64, n*OutputActions)
	copy(predictions, predTensor.Data().([]float64))
	return predictions, nil
}

// Fit trains on n (state, target) pairs with MSE loss and Adam, shuffling the
// batch each pass. It returns the mean loss of the last pass.
func (net *ConvQNet) Fit(states, targets []float64, n int, opts FitOptions) (float64, error) {
	if n <= 0 || len(states) != n*net.inputSize() || len(targets) != n*OutputActions {
		return 0, fmt.Errorf("%w: %d states, %d targets for batch of %d", ErrShape, len(states), len(targets), n)
	}
	passes := opts.Passes
	if passes <= 0 {
		passes = 1
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 || batchSize > n {
		batchSize = n
	}

	solver := gorgonia.NewAdamSolver(gorgonia.WithLearnRate(net.cfg.LearningRate))
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	var lastLoss float64
	for pass := 0; pass < passes; pass++ {
		net.rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

		var total float64
		var batches int
		for start := 0; start < n; start += batchSize {
			end := start + batchSize
			if end > n {
				end = n
			}
			xs, ys := net.gather(states, targets, order[start:end])
			loss, err := net.trainOnBatch(solver, xs, ys, end-start)
			if err != nil {
				return 0, err
			}
			total += loss
			batches++
		}
		lastLoss = total / float64(batches)
	}
	return lastLoss, nil
}

func (net *ConvQNet) gather(states, targets []float64, idx []int) ([]float64, []float64) {
	in := net.inputSize()
	xs := make([]float64, 0, len(idx)*in)
	ys := make([]float64, 0, len(idx)*OutputActions)
	for _, i := range idx {
		xs = append(xs, states[i*in:(i+1)*in]...)
		ys = append(ys, targets[i*OutputActions:(i+1)*OutputActions]...)
	}
	return xs, ys
}

// trainOnBatch esegue un passo di training su un batch di transizioni
func (net *ConvQNet) trainOnBatch(solver gorgonia.Solver, states, targets []float64, n int) (float64, error) {
	gr := net.build(states, n)

	targetTensor := tensor.New(tensor.WithBacking(targets), tensor.WithShape(n, OutputActions))
	targetNode := gorgonia.NodeFromAny(gr.g, targetTensor, gorgonia.WithName("y"))

	// MSE Loss
	diff := gorgonia.Must(gorgonia.Sub(gr.pred, targetNode))
	loss := gorgonia.Must(gorgonia.Mean(gorgonia.Must(gorgonia.Square(diff))))

	var lossVal gorgonia.Value
	gorgonia.Read(loss, &lossVal)

	if _, err := gorgonia.Grad(loss, gr.learnables...); err != nil {
		return 0, fmt.Errorf("gradient error: %w", err)
	}

	vm := gorgonia.NewTapeMachine(gr.g, gorgonia.BindDualValues(gr.learnables...))
	defer vm.Close()

	if err := vm.RunAll(); err != nil {
		return 0, fmt.Errorf("error during backprop: %w", err)
	}

	if err := net.clipGradients(gr.learnables); err != nil {
		return 0, err
	}
	if err := solver.Step(gorgonia.NodesToValueGrads(gr.learnables)); err != nil {
		return 0, fmt.Errorf("solver step: %w", err)
	}

	// Keep the canonical tensors in sync whether or not the solver updated in place.
	for i, node := range gr.learnables {
		updated, ok := node.Value().(*tensor.Dense)
		if !ok {
			return 0, fmt.Errorf("invalid weight tensor type %T", node.Value())
		}
		if updated != net.weights[i] {
			if err := tensor.Copy(net.weights[i], updated); err != nil {
				return 0, fmt.Errorf("copy weight %d: %w", i, err)
			}
		}
	}

	if lossVal == nil {
		return 0, nil
	}
	return scalar(lossVal), nil
}

// clipGradients rescales all gradients together so their global L2 norm does
// not exceed ClipNorm.
func (net *ConvQNet) clipGradients(nodes gorgonia.Nodes) error {
	if net.cfg.ClipNorm <= 0 {
		return nil
	}

	grads := make([][]float64, 0, len(nodes))
	var sq float64
	for _, n := range nodes {
		g, err := n.Grad()
		if err != nil {
			return fmt.Errorf("gradient of %s: %w", n.Name(), err)
		}
		data, ok := g.Data().([]float64)
		if !ok {
			return fmt.Errorf("unexpected gradient type %T", g.Data())
		}
		for _, v := range data {
			sq += v * v
		}
		grads = append(grads, data)
	}

	norm := math.Sqrt(sq)
	if norm <= net.cfg.ClipNorm {
		return nil
	}
	scale := net.cfg.ClipNorm / norm
	for _, data := range grads {
		for i := range data {
			data[i] *= scale
		}
	}
	return nil
}

func scalar(v gorgonia.Value) float64 {
	switch d := v.Data().(type) {
	case float64:
		return d
	case []float64:
		if len(d) > 0 {
			return d[0]
		}
	}
	return 0
}

type convQNetSnapshot struct {
	Config  ConvQNetConfig
	Weights []*tensor.Dense
}

// Save writes a gob snapshot, replacing any previous one at path.
func (net *ConvQNet) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create weights file: %w", err)
	}

	enc := gob.NewEncoder(f)
	if err := enc.Encode(convQNetSnapshot{Config: net.cfg, Weights: net.weights}); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode weights: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close weights file: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadConvQNet reads a snapshot written by Save.
func LoadConvQNet(path string) (*ConvQNet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open weights file: %w", err)
	}
	defer f.Close()

	var snap convQNetSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode weights: %w", err)
	}

	net, err := NewConvQNet(snap.Config)
	if err != nil {
		return nil, err
	}
	if err := net.SetWeights(snap.Weights); err != nil {
		return nil, err
	}
	return net, nil
}
