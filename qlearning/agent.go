package qlearning

import (
	"fmt"
	"math"

	"snake-ddqn/game/types"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

// Agent holds the critic and target networks and picks actions with an
// epsilon-greedy policy over the critic's Q-values.
type Agent struct {
	Critic Network
	Target Network
	Gamma  float64

	rng *rand.Rand
}

// NewAgent syncs target to critic so both start from the same weights.
func NewAgent(critic, target Network, gamma float64, seed uint64) (*Agent, error) {
	if err := CopyWeights(target, critic); err != nil {
		return nil, fmt.Errorf("init target network: %w", err)
	}
	return &Agent{
		Critic: critic,
		Target: target,
		Gamma:  gamma,
		rng:    rand.New(rand.NewSource(seed)),
	}, nil
}

// Decision is the outcome of one action selection.
type Decision struct {
	Direction types.Direction
	Q         []float64
	Softmax   []float64
	Explored  bool
}

// SelectAction draws u uniformly in [0, 1). If u <= eps a random direction is
// chosen, otherwise the critic's argmax. The critic is queried in both cases
// so the softmax of its Q-values can be reported.
func (a *Agent) SelectAction(state []float64, eps float64) (Decision, error) {
	u := a.rng.Float64()

	q, err := a.Critic.Predict(state, 1)
	if err != nil {
		return Decision{}, fmt.Errorf("critic predict: %w", err)
	}

	d := Decision{Q: q, Softmax: Softmax(q)}
	if u <= eps {
		d.Direction = types.Directions[a.rng.Intn(types.NumDirections)]
		d.Explored = true
	} else {
		d.Direction = types.Directions[floats.MaxIdx(q)]
	}
	return d, nil
}

// RandomDirection picks one of the four directions uniformly.
func (a *Agent) RandomDirection() types.Direction {
	return types.Directions[a.rng.Intn(types.NumDirections)]
}

// Teach builds the TD target for the transition (s, action, reward, s') from
// the critic's view of s and the target network's view of s'.
func (a *Agent) Teach(s, next []float64, action types.Direction, reward float64, signal types.Signal) (target, qCurrent []float64, err error) {
	qCurrent, err = a.Critic.Predict(s, 1)
	if err != nil {
		return nil, nil, fmt.Errorf("critic predict: %w", err)
	}
	qNext, err := a.Target.Predict(next, 1)
	if err != nil {
		return nil, nil, fmt.Errorf("target predict: %w", err)
	}
	return TDTarget(qCurrent, qNext, action, reward, signal, a.Gamma), qCurrent, nil
}

// Sync copies the critic's weights into the target network.
func (a *Agent) Sync() error {
	return CopyWeights(a.Target, a.Critic)
}

// TDTarget returns a copy of qCurrent with the taken action's entry replaced
// by r + gamma*max(qNext), or by r alone when the step was a hit.
func TDTarget(qCurrent, qNext []float64, action types.Direction, reward float64, signal types.Signal, gamma float64) []float64 {
	t := make([]float64, len(qCurrent))
	copy(t, qCurrent)

	if signal == types.Hit {
		t[action.Index()] = reward
	} else {
		t[action.Index()] = reward + gamma*floats.Max(qNext)
	}
	return t
}

// Softmax normalises q into a probability distribution.
func Softmax(q []float64) []float64 {
	out := make([]float64, len(q))
	if len(q) == 0 {
		return out
	}
	m := floats.Max(q)
	for i, v := range q {
		out[i] = math.Exp(v - m)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}
