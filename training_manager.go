package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"snake-ddqn/qlearning"
	"snake-ddqn/ui"
)

// historyEvery is how many steps separate two points of the score history.
const historyEvery = 100

// TrainingManager runs the trainer in its own goroutine and publishes a
// snapshot of every step for the viewer.
type TrainingManager struct {
	trainer     *qlearning.Trainer
	snapshotsCh chan ui.Snapshot
	doneCh      chan struct{}
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mutex       sync.RWMutex
	isTraining  bool
	err         error
	history     []float64
	startTime   time.Time
}

func NewTrainingManager(trainer *qlearning.Trainer) *TrainingManager {
	tm := &TrainingManager{
		trainer:     trainer,
		snapshotsCh: make(chan ui.Snapshot, 1), // buffer di 1 per evitare blocchi
		doneCh:      make(chan struct{}),
		startTime:   time.Now(),
	}
	trainer.OnStep = tm.publish
	return tm
}

// StartTraining avvia il loop di training in un goroutine separato
func (tm *TrainingManager) StartTraining(ctx context.Context) {
	tm.mutex.Lock()
	if tm.isTraining {
		tm.mutex.Unlock()
		return
	}
	tm.isTraining = true
	ctx, tm.cancel = context.WithCancel(ctx)
	tm.mutex.Unlock()

	tm.wg.Add(1)
	go tm.trainingLoop(ctx)
}

// StopTraining cancels the trainer and waits for it to return.
func (tm *TrainingManager) StopTraining() {
	tm.mutex.RLock()
	cancel := tm.cancel
	tm.mutex.RUnlock()

	if cancel != nil {
		cancel()
	}
	tm.wg.Wait()
}

func (tm *TrainingManager) trainingLoop(ctx context.Context) {
	defer tm.wg.Done()
	defer close(tm.doneCh)

	err := tm.trainer.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	tm.mutex.Lock()
	tm.isTraining = false
	tm.err = err
	tm.mutex.Unlock()
}

// publish runs on the training goroutine.
func (tm *TrainingManager) publish(info qlearning.StepInfo) {
	if info.TotalSteps%historyEvery == 0 {
		tm.history = append(tm.history, info.Summary.Average)
	}
	history := make([]float64, len(tm.history))
	copy(history, tm.history)

	state := ui.Snapshot{
		Size:         tm.trainer.Env.Size(),
		Snake:        info.Snake,
		Food:         info.Food,
		Heading:      info.Heading,
		Epoch:        info.Epoch,
		TotalSteps:   info.TotalSteps,
		Signal:       info.Signal,
		Reward:       info.Reward,
		Epsilon:      info.Epsilon,
		LearningRate: info.LearningRate,
		Softmax:      info.Softmax,
		Summary:      info.Summary,
		History:      history,
		StartTime:    tm.startTime,
	}

	// Invio non bloccante dello stato
	select {
	case tm.snapshotsCh <- state:
	default:
		// Se il canale è pieno, scartiamo lo stato
	}
}

// Snapshots delivers the most recent step states. Snapshots are dropped
// while the reader is behind.
func (tm *TrainingManager) Snapshots() <-chan ui.Snapshot {
	return tm.snapshotsCh
}

// Done is closed when the trainer returns.
func (tm *TrainingManager) Done() <-chan struct{} {
	return tm.doneCh
}

// Err reports why training stopped. Cancellation is not an error.
func (tm *TrainingManager) Err() error {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()
	return tm.err
}

func (tm *TrainingManager) IsTraining() bool {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()
	return tm.isTraining
}
