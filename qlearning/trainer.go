package qlearning

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"snake-ddqn/game"
	"snake-ddqn/game/types"
	"snake-ddqn/stats"
)

// Snapshot file names inside the checkpoint directory.
const (
	CriticFile = "ddqn_critic.gob"
	TargetFile = "ddqn_target.gob"
	StatsFile  = "stats.json"
)

// ErrInvalidTrainerOptions is returned by NewTrainer for unusable options.
var ErrInvalidTrainerOptions = errors.New("invalid trainer options")

// Logger is the subset of *log.Logger the trainer writes to.
type Logger interface {
	Printf(format string, v ...any)
}

type Options struct {
	MaxEpochs        int
	MaxSteps         int // steps per epoch
	BatchSize        int // mini-batch size for the end-of-epoch fit
	CriticNetEpochs  int // passes over the epoch batch
	Epsilon          Schedule
	LearningRate     Schedule
	TargetUpdateFreq int
	CheckpointEvery  int
	CheckpointDir    string // empty disables checkpoints
	Verbose          bool
}

func (o Options) validate() error {
	switch {
	case o.MaxEpochs < 0:
		return fmt.Errorf("%w: max epochs %d", ErrInvalidTrainerOptions, o.MaxEpochs)
	case o.MaxSteps <= 0:
		return fmt.Errorf("%w: max steps %d", ErrInvalidTrainerOptions, o.MaxSteps)
	case o.BatchSize <= 0:
		return fmt.Errorf("%w: batch size %d", ErrInvalidTrainerOptions, o.BatchSize)
	case o.CriticNetEpochs <= 0:
		return fmt.Errorf("%w: critic net epochs %d", ErrInvalidTrainerOptions, o.CriticNetEpochs)
	case o.TargetUpdateFreq <= 0:
		return fmt.Errorf("%w: target update frequency %d", ErrInvalidTrainerOptions, o.TargetUpdateFreq)
	case o.CheckpointDir != "" && o.CheckpointEvery <= 0:
		return fmt.Errorf("%w: checkpoint every %d", ErrInvalidTrainerOptions, o.CheckpointEvery)
	}
	return nil
}

// StepInfo describes one training step. Board and Snake are copies and can be
// handed to other goroutines.
type StepInfo struct {
	Epoch        int
	Step         int
	TotalSteps   int
	Action       types.Direction // action taken this step
	Next         types.Direction // action chosen for the next step
	Signal       types.Signal
	Reward       float64
	Target       []float64
	Predicted    []float64
	Softmax      []float64
	Epsilon      float64
	LearningRate float64
	Board        string
	Snake        []types.Point
	Food         types.Point
	Heading      types.Direction
	Summary      stats.Summary
}

// Trainer runs the online DDQN loop: it plays the environment, labels every
// transition with a TD target and fits the critic on each epoch's samples.
type Trainer struct {
	Env    *game.GreedySnake
	Agent  *Agent
	Stats  *stats.GameStats
	Logger Logger

	// OnStep, when set, is called after every training step.
	OnStep func(StepInfo)
	// OnEpoch, when set, is called after every end-of-epoch fit.
	OnEpoch func(epoch int, loss float64)

	opts       Options
	timeslip   *Timeslip
	stamina    *Stamina
	totalSteps int
}

func NewTrainer(env *game.GreedySnake, agent *Agent, st *stats.GameStats, timeslipSize int, opts Options, logger Logger) (*Trainer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if timeslipSize <= 0 {
		return nil, fmt.Errorf("%w: timeslip size %d", ErrInvalidTrainerOptions, timeslipSize)
	}

	t := &Trainer{
		Env:      env,
		Agent:    agent,
		Stats:    st,
		Logger:   logger,
		opts:     opts,
		timeslip: NewTimeslip(env.Size(), timeslipSize),
		stamina:  NewStamina(env.Size()),
	}
	agent.Critic.SetLearningRate(t.LearningRate())
	return t, nil
}

// TotalSteps is the number of training steps taken since the trainer was built.
func (t *Trainer) TotalSteps() int {
	return t.totalSteps
}

func (t *Trainer) Epsilon() float64 {
	return t.opts.Epsilon.At(t.totalSteps)
}

func (t *Trainer) LearningRate() float64 {
	return t.opts.LearningRate.At(t.totalSteps)
}

func (t *Trainer) Timeslip() *Timeslip {
	return t.timeslip
}

func (t *Trainer) logf(format string, v ...any) {
	if t.Logger != nil {
		t.Logger.Printf(format, v...)
	}
}

// WarmUp plays timeslip depth + 1 random moves so the timeslip holds real
// frames before training. These steps are not counted or learned from.
func (t *Trainer) WarmUp(ctx context.Context) error {
	for i := 0; i < t.timeslip.Depth()+1; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.Env.Step(t.Agent.RandomDirection().Action())
		display := t.timeslip.Observe(t.Env)
		if t.opts.Verbose {
			t.logf("initial step %d\n%s", i, display)
		}
	}
	return nil
}

// Run warms up and then trains for MaxEpochs epochs. It stops between steps
// when ctx is cancelled and returns ctx's error.
func (t *Trainer) Run(ctx context.Context) error {
	if err := t.WarmUp(ctx); err != nil {
		return err
	}
	for e := 0; e < t.opts.MaxEpochs; e++ {
		loss, err := t.RunEpoch(ctx, e)
		if err != nil {
			return err
		}
		if t.OnEpoch != nil {
			t.OnEpoch(e, loss)
		}
	}
	return nil
}

// RunEpoch plays MaxSteps steps, then fits the critic on the collected
// (state, target) pairs.
func (t *Trainer) RunEpoch(ctx context.Context, epoch int) (float64, error) {
	n := t.opts.MaxSteps
	inputSize := len(t.timeslip.Tensor())
	states := make([]float64, 0, n*inputSize)
	targets := make([]float64, 0, n*OutputActions)

	t.stamina.Reset()

	current := t.timeslip.Tensor()
	decision, err := t.Agent.SelectAction(current, t.Epsilon())
	if err != nil {
		return 0, err
	}
	action := decision.Direction

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		signal := t.Env.Step(action.Action())
		reward := t.stamina.Reward(signal)

		display := t.timeslip.Observe(t.Env)
		next := t.timeslip.Tensor()

		decision, err = t.Agent.SelectAction(next, t.Epsilon())
		if err != nil {
			return 0, err
		}

		target, predicted, err := t.Agent.Teach(current, next, action, reward, signal)
		if err != nil {
			return 0, err
		}
		states = append(states, current...)
		targets = append(targets, target...)

		t.totalSteps++
		t.Agent.Critic.SetLearningRate(t.LearningRate())

		if t.Stats != nil {
			t.Stats.RecordStep(t.Env.Len(), signal == types.Hit, signal == types.Eat)
		}

		info := StepInfo{
			Epoch:        epoch,
			Step:         i,
			TotalSteps:   t.totalSteps,
			Action:       action,
			Next:         decision.Direction,
			Signal:       signal,
			Reward:       reward,
			Target:       target,
			Predicted:    predicted,
			Softmax:      decision.Softmax,
			Epsilon:      t.Epsilon(),
			LearningRate: t.LearningRate(),
			Board:        display,
			Snake:        t.Env.Snake(),
			Food:         t.Env.Food(),
			Heading:      t.Env.Heading(),
		}
		if t.Stats != nil {
			info.Summary = t.Stats.Summary()
		}
		if t.opts.Verbose {
			t.logStep(info)
		}

		if t.totalSteps%t.opts.TargetUpdateFreq == 0 {
			if err := t.Agent.Sync(); err != nil {
				return 0, err
			}
			t.logf("synced target network at step %d", t.totalSteps)
		}
		if t.opts.CheckpointDir != "" && t.totalSteps%t.opts.CheckpointEvery == 0 {
			if err := t.Checkpoint(); err != nil {
				return 0, err
			}
			t.logf("models saved at step %d", t.totalSteps)
		}

		if t.OnStep != nil {
			t.OnStep(info)
		}

		current = next
		action = decision.Direction
	}

	loss, err := t.Agent.Critic.Fit(states, targets, n, FitOptions{
		Passes:    t.opts.CriticNetEpochs,
		BatchSize: t.opts.BatchSize,
	})
	if err != nil {
		return 0, fmt.Errorf("fit epoch %d: %w", epoch, err)
	}
	t.logf("epoch %d done, total steps %d, loss %.6f", epoch, t.totalSteps, loss)
	return loss, nil
}

// Checkpoint saves both networks and the run statistics, replacing earlier
// snapshots.
func (t *Trainer) Checkpoint() error {
	dir := t.opts.CheckpointDir
	if err := t.Agent.Critic.Save(filepath.Join(dir, CriticFile)); err != nil {
		return fmt.Errorf("save critic: %w", err)
	}
	if err := t.Agent.Target.Save(filepath.Join(dir, TargetFile)); err != nil {
		return fmt.Errorf("save target: %w", err)
	}
	if t.Stats != nil {
		if err := t.Stats.SaveToFile(filepath.Join(dir, StatsFile)); err != nil {
			return fmt.Errorf("save stats: %w", err)
		}
	}
	return nil
}

func (t *Trainer) logStep(info StepInfo) {
	diff := make([]float64, len(info.Target))
	for i := range diff {
		d := info.Target[i] - info.Predicted[i]
		if d < 0 {
			d = -d
		}
		diff[i] = d
	}
	t.logf("step %d / epoch %d / total steps %d", info.Step, info.Epoch, info.TotalSteps)
	t.logf("action = %s / reward = %.3f / signal = %s", info.Next, info.Reward, info.Signal)
	t.logf("target(Q) = %.4f / predict(Q) = %.4f / diff = %.4f", info.Target, info.Predicted, diff)
	t.logf("thousand steps average score = %.3f / max avg. score = %.3f", info.Summary.Average, info.Summary.MaxAverage)
	t.logf("hit rate = %.4f / eat rate = %.4f\n%s", info.Summary.HitRate, info.Summary.EatRate, info.Board)
}
