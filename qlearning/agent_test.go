package qlearning

import (
	"testing"

	"snake-ddqn/game/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestTDTarget(t *testing.T) {
	qCurrent := []float64{0.1, 0.2, 0.3, 0.4}
	qNext := []float64{0.5, 2.0, -1.0, 0.0}

	t.Run("bootstraps from the best next value", func(t *testing.T) {
		target := TDTarget(qCurrent, qNext, types.Left, 0.6, types.Normal, 0.9)

		assert.InDelta(t, 0.6+0.9*2.0, target[types.Left.Index()], 1e-12)
		assert.Equal(t, 0.1, target[types.Up.Index()])
		assert.Equal(t, 0.2, target[types.Down.Index()])
		assert.Equal(t, 0.4, target[types.Right.Index()])
	})

	t.Run("eat bootstraps too", func(t *testing.T) {
		target := TDTarget(qCurrent, qNext, types.Up, 1, types.Eat, 0.5)

		assert.InDelta(t, 2.0, target[types.Up.Index()], 1e-12)
	})

	t.Run("hit is terminal", func(t *testing.T) {
		target := TDTarget(qCurrent, qNext, types.Right, -1, types.Hit, 0.9)

		assert.Equal(t, []float64{0.1, 0.2, 0.3, -1}, target)
	})

	t.Run("does not alias qCurrent", func(t *testing.T) {
		TDTarget(qCurrent, qNext, types.Down, 5, types.Normal, 0.9)

		assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, qCurrent)
	})
}

func TestSoftmax(t *testing.T) {
	sm := Softmax([]float64{1, 2, 3, 4})

	var sum float64
	for i, p := range sm {
		sum += p
		if i > 0 {
			assert.Greater(t, p, sm[i-1])
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, Softmax([]float64{7, 7, 7, 7}))
}

func newFakeAgent(t *testing.T, bias ...float64) (*Agent, *fakeNetwork, *fakeNetwork) {
	t.Helper()
	critic := newFakeNetwork(2, bias...)
	target := newFakeNetwork(2)
	agent, err := NewAgent(critic, target, 0.9, 3)
	require.NoError(t, err)
	return agent, critic, target
}

func TestNewAgentSyncsTarget(t *testing.T) {
	_, critic, target := newFakeAgent(t, 1, 2, 3, 4)

	assert.Equal(t, critic.bias.Data(), target.bias.Data())
}

func TestSelectActionGreedy(t *testing.T) {
	agent, _, _ := newFakeAgent(t, 0.1, 0.2, 0.9, 0.3)

	for i := 0; i < 50; i++ {
		d, err := agent.SelectAction([]float64{0, 0}, -1)
		require.NoError(t, err)
		assert.Equal(t, types.Left, d.Direction)
		assert.False(t, d.Explored)
		assert.Len(t, d.Softmax, OutputActions)
		assert.Equal(t, []float64{0.1, 0.2, 0.9, 0.3}, d.Q)
	}
}

func TestSelectActionExplores(t *testing.T) {
	agent, _, _ := newFakeAgent(t, 0.1, 0.2, 0.9, 0.3)

	seen := map[types.Direction]int{}
	for i := 0; i < 400; i++ {
		d, err := agent.SelectAction([]float64{0, 0}, 1)
		require.NoError(t, err)
		assert.True(t, d.Explored)
		assert.Len(t, d.Softmax, OutputActions)
		seen[d.Direction]++
	}
	for _, dir := range types.Directions {
		assert.Positive(t, seen[dir], "direction %s never explored", dir)
	}
}

func TestSelectActionShapeError(t *testing.T) {
	agent, _, _ := newFakeAgent(t)

	_, err := agent.SelectAction([]float64{0, 0, 0}, 0)

	assert.ErrorIs(t, err, ErrShape)
}

func TestTeachUsesTargetForBootstrap(t *testing.T) {
	agent, critic, target := newFakeAgent(t, 0, 0, 0, 0)
	// Diverge the two networks: only the target knows the large value.
	target.bias.Data().([]float64)[3] = 10

	s := []float64{0.5, 0.5}
	next := []float64{1, 0}
	tgt, q, err := agent.Teach(s, next, types.Up, 0.2, types.Normal)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 1, 1, 1}, q)
	assert.InDelta(t, 0.2+0.9*11, tgt[types.Up.Index()], 1e-12)
	assert.Equal(t, q[1:], tgt[1:])
	assert.Equal(t, []float64{0, 0, 0, 0}, critic.bias.Data())
}

func TestSyncCopiesCriticToTarget(t *testing.T) {
	agent, critic, target := newFakeAgent(t, 0, 0, 0, 0)
	critic.bias.Data().([]float64)[1] = 4

	require.NoError(t, agent.Sync())

	qc, err := critic.Predict([]float64{1, 1}, 1)
	require.NoError(t, err)
	qt, err := target.Predict([]float64{1, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, qc, qt)

	// The copy is by value.
	critic.bias.Data().([]float64)[1] = 0
	assert.Equal(t, 4.0, target.bias.Data().([]float64)[1])
}

func TestCopyWeightsShapeMismatch(t *testing.T) {
	dst := newFakeNetwork(2)
	src := &fakeNetwork{
		bias:  tensor.New(tensor.WithShape(3), tensor.WithBacking([]float64{1, 2, 3})),
		input: 2,
	}

	err := CopyWeights(dst, src)

	assert.ErrorIs(t, err, ErrShape)
	assert.Equal(t, []float64{0, 0, 0, 0}, dst.bias.Data())
}
