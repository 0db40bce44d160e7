package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"snake-ddqn/config"
	"snake-ddqn/game"
	"snake-ddqn/qlearning"
	"snake-ddqn/stats"
	"snake-ddqn/ui"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/google/uuid"
)

var appLogger = log.New(os.Stdout, fmt.Sprintf("%s[APP]%s ", config.ColorGreen, config.ColorReset), log.LstdFlags)

func main() {
	configPath := flag.String("config", "", "Path to the YAML config (default ddqn.yaml, or $SNAKE_CONFIG)")
	env := flag.String("env", "", "Config section to train with (default: the file's env key, or $SNAKE_ENV)")
	gui := flag.Bool("gui", false, "Show the raylib viewer while training")
	verbose := flag.Bool("verbose", false, "Log every step with the board")
	resume := flag.String("resume", "", "Run directory whose critic snapshot to start from")
	writeConfig := flag.String("write-config", "", "Write the default config to this path and exit")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.Write(*writeConfig, config.Default()); err != nil {
			appLogger.Fatalf("%s[ERROR]%s %v", config.LogErrorColor, config.LogColorReset, err)
		}
		appLogger.Printf("%s[INFO]%s wrote default config to %s", config.LogInfoColor, config.LogColorReset, *writeConfig)
		return
	}

	config.LoadEnv()
	path, section := config.ResolvePath(*configPath, *env)
	cfg, err := config.Load(path, section)
	if err != nil {
		appLogger.Fatalf("%s[ERROR]%s %v", config.LogErrorColor, config.LogColorReset, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.New().String()
	trainer, err := buildTrainer(cfg, runID, *resume, *verbose)
	if err != nil {
		appLogger.Fatalf("%s[ERROR]%s %v", config.LogErrorColor, config.LogColorReset, err)
	}
	appLogger.Printf("%s[INFO]%s run %s: env %s, board %dx%d, snapshots in %s",
		config.LogInfoColor, config.LogColorReset, runID, cfg.Env, cfg.Game.Size, cfg.Game.Size, cfg.RunDir(runID))

	if *gui {
		err = runWithViewer(ctx, trainer)
	} else {
		err = trainer.Run(ctx)
	}

	if errors.Is(err, context.Canceled) {
		appLogger.Printf("%s[INFO]%s interrupted after %d steps", config.LogInfoColor, config.LogColorReset, trainer.TotalSteps())
		err = nil
	}
	if saveErr := trainer.Checkpoint(); saveErr != nil {
		appLogger.Printf("%s[ERROR]%s final checkpoint: %v", config.LogErrorColor, config.LogColorReset, saveErr)
	}
	if err != nil {
		appLogger.Fatalf("%s[ERROR]%s %v", config.LogErrorColor, config.LogColorReset, err)
	}
	sum := trainer.Stats.Summary()
	appLogger.Printf("%s[INFO]%s done: %d steps, max avg. score %.3f, hit rate %.4f, eat rate %.4f",
		config.LogInfoColor, config.LogColorReset, sum.TotalSteps, sum.MaxAverage, sum.HitRate, sum.EatRate)
}

func buildTrainer(cfg *config.Config, runID, resume string, verbose bool) (*qlearning.Trainer, error) {
	opts, err := cfg.GameOptions()
	if err != nil {
		return nil, err
	}
	env, err := game.New(opts)
	if err != nil {
		return nil, err
	}

	critic, err := newCritic(cfg, resume)
	if err != nil {
		return nil, fmt.Errorf("build critic: %w", err)
	}

	agent, err := qlearning.NewAgent(critic, critic.Clone(), cfg.Train.Gamma, cfg.Train.Seed)
	if err != nil {
		return nil, err
	}

	trainLogger := log.New(os.Stdout, fmt.Sprintf("%s[TRAIN]%s ", config.ColorCyan, config.ColorReset), log.LstdFlags)
	trainer, err := qlearning.NewTrainer(env, agent, stats.NewGameStats(runID), cfg.Train.TimeslipSize,
		cfg.TrainerOptions(cfg.RunDir(runID), verbose), trainLogger)
	if err != nil {
		return nil, err
	}
	return trainer, nil
}

// newCritic builds a fresh critic, or loads the one saved in the resume run
// directory. A loaded critic must match the configured board and timeslip.
func newCritic(cfg *config.Config, resume string) (*qlearning.ConvQNet, error) {
	if resume == "" {
		return qlearning.NewConvQNet(cfg.NetConfig())
	}
	critic, err := qlearning.LoadConvQNet(filepath.Join(resume, qlearning.CriticFile))
	if err != nil {
		return nil, err
	}
	if err := critic.Config().CheckInput(cfg.Game.Size, cfg.Train.TimeslipSize); err != nil {
		return nil, fmt.Errorf("snapshot in %s: %w", resume, err)
	}
	return critic, nil
}

func runWithViewer(ctx context.Context, trainer *qlearning.Trainer) error {
	rl.InitWindow(1280, 800, "Snake AI - DDQN")
	rl.SetWindowState(rl.FlagWindowResizable)
	defer rl.CloseWindow()
	rl.SetTargetFPS(60)

	tm := NewTrainingManager(trainer)
	tm.StartTraining(ctx)
	defer tm.StopTraining()

	renderer := ui.NewRenderer()
	var last ui.Snapshot

	for !rl.WindowShouldClose() {
		if rl.IsKeyPressed(rl.KeyQ) {
			break
		}
		if rl.IsWindowResized() {
			renderer.UpdateDimensions()
		}

		select {
		case s := <-tm.Snapshots():
			last = s
		case <-tm.Done():
			tm.StopTraining()
			return tm.Err()
		default:
		}

		renderer.Draw(last)
	}

	tm.StopTraining()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return tm.Err()
}
