package qlearning

import (
	"math"

	"snake-ddqn/game/types"
)

// Schedule is an exponentially decaying value: At(step) = Init * Decay^step.
type Schedule struct {
	Init  float64
	Decay float64
}

func (s Schedule) At(step int) float64 {
	return s.Init * math.Pow(s.Decay, float64(step))
}

// Stamina shapes the reward of ordinary moves: it is refilled by eating and
// drains by one per move, so wandering pays less the longer it goes on.
type Stamina struct {
	Max     int
	counter int
}

// NewStamina returns a full counter.
func NewStamina(max int) *Stamina {
	return &Stamina{Max: max, counter: max}
}

// Reset refills the counter.
func (s *Stamina) Reset() {
	s.counter = s.Max
}

func (s *Stamina) Value() int {
	return s.counter
}

// Reward maps a step signal to its reward and advances the counter.
func (s *Stamina) Reward(signal types.Signal) float64 {
	switch signal {
	case types.Hit:
		s.counter = 0
		return -1
	case types.Eat:
		s.counter = s.Max
		return 1
	default:
		if s.Max <= 0 {
			return 0
		}
		r := float64(s.counter) / float64(s.Max)
		if s.counter > 0 {
			s.counter--
		}
		return r
	}
}
