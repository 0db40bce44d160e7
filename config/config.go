package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"snake-ddqn/game"
	"snake-ddqn/game/types"
	"snake-ddqn/qlearning"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file location and section.
const (
	EnvConfigPath = "SNAKE_CONFIG"
	EnvSection    = "SNAKE_ENV"
)

const DefaultPath = "ddqn.yaml"

var ErrInvalidConfig = errors.New("invalid config")

// Config is the full run configuration: the board layout plus the
// hyperparameters of the selected environment section.
type Config struct {
	Env   string
	Game  GameConfig
	Train TrainConfig
}

// GameConfig describes the board. Cells are [row, col] pairs.
type GameConfig struct {
	Size        int      `yaml:"size"`
	InitSnake   [][2]int `yaml:"init_snake"`
	InitFood    [2]int   `yaml:"init_food"`
	InitHeading string   `yaml:"init_heading"`
	Seed        uint64   `yaml:"seed"`
}

// TrainConfig holds one named section of training hyperparameters.
type TrainConfig struct {
	MaxEpochs               int     `yaml:"max_epochs"`
	MaxSteps                int     `yaml:"max_steps"`
	BatchSize               int     `yaml:"batch_size"`
	MemorySize              int     `yaml:"memory_size"`     // accepted, unused: every epoch is fitted whole
	MiniBatchSize           int     `yaml:"mini_batch_size"` // accepted, unused: every epoch is fitted whole
	CriticNetEpochs         int     `yaml:"critic_net_epochs"`
	Gamma                   float64 `yaml:"gamma"`
	EpsilonInit             float64 `yaml:"epsilon_init"`
	EpsilonDecay            float64 `yaml:"epsilon_decay"`
	CriticNetLearnrateInit  float64 `yaml:"critic_net_learnrate_init"`
	CriticNetLearnrateDecay float64 `yaml:"critic_net_learnrate_decay"`
	CriticNetClipnorm       float64 `yaml:"critic_net_clipnorm"`
	TargetUpdateFreq        int     `yaml:"target_update_freq"`
	TimeslipSize            int     `yaml:"timeslip_size"`
	CheckpointEvery         int     `yaml:"checkpoint_every"`
	HiddenSize              int     `yaml:"hidden_size"`
	ConvFilters             int     `yaml:"conv_filters"`
	DataDir                 string  `yaml:"data_dir"`
	Seed                    uint64  `yaml:"seed"`
}

// outerConfig is the raw file shape. Sections are re-decoded with yaml so
// missing keys keep their defaults.
type outerConfig struct {
	Env  string                    `mapstructure:"env"`
	Game map[string]any            `mapstructure:"game"`
	Envs map[string]map[string]any `mapstructure:"envs"`
}

func DefaultGame() GameConfig {
	return GameConfig{
		Size:        8,
		InitSnake:   [][2]int{{4, 4}, {4, 5}},
		InitFood:    [2]int{1, 1},
		InitHeading: "left",
		Seed:        1,
	}
}

func DefaultTrain() TrainConfig {
	return TrainConfig{
		MaxEpochs:               1000,
		MaxSteps:                1000,
		BatchSize:               64,
		MemorySize:              1000,
		MiniBatchSize:           32,
		CriticNetEpochs:         1,
		Gamma:                   0.9,
		EpsilonInit:             1.0,
		EpsilonDecay:            0.9995,
		CriticNetLearnrateInit:  0.001,
		CriticNetLearnrateDecay: 0.99999,
		CriticNetClipnorm:       1.0,
		TargetUpdateFreq:        100,
		TimeslipSize:            4,
		CheckpointEvery:         1000,
		HiddenSize:              128,
		ConvFilters:             16,
		DataDir:                 "data",
		Seed:                    1,
	}
}

func Default() Config {
	return Config{Env: "train", Game: DefaultGame(), Train: DefaultTrain()}
}

// LoadEnv loads a .env file when one is present. A missing file is not an error.
func LoadEnv(filenames ...string) {
	if err := godotenv.Load(filenames...); err != nil {
		log.Printf("[APP] [INFO] .env file not found or could not be loaded: %v", err)
	}
}

// ResolvePath returns the config path and section to use. Non-empty flag
// values win over the environment, which wins over the defaults.
func ResolvePath(flagPath, flagEnv string) (path, env string) {
	path, env = DefaultPath, ""
	if v, ok := os.LookupEnv(EnvConfigPath); ok && v != "" {
		path = v
	}
	if v, ok := os.LookupEnv(EnvSection); ok && v != "" {
		env = v
	}
	if flagPath != "" {
		path = flagPath
	}
	if flagEnv != "" {
		env = flagEnv
	}
	return path, env
}

// Load reads the YAML file at path and selects the section named by env, or
// by the file's own env key when env is empty.
func Load(path, env string) (*Config, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	if err := vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	outer := &outerConfig{}
	if err := vp.Unmarshal(outer); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	cfg := Default()
	cfg.Env = outer.Env
	if env != "" {
		cfg.Env = env
	}
	if cfg.Env == "" {
		return nil, fmt.Errorf("%w: no env selected", ErrInvalidConfig)
	}

	if outer.Game != nil {
		if err := redecode(outer.Game, &cfg.Game); err != nil {
			return nil, fmt.Errorf("decode game section: %w", err)
		}
	}

	// viper lower-cases keys, section names included.
	section, ok := outer.Envs[strings.ToLower(cfg.Env)]
	if !ok {
		return nil, fmt.Errorf("%w: env section %q not found", ErrInvalidConfig, cfg.Env)
	}
	if err := redecode(section, &cfg.Train); err != nil {
		return nil, fmt.Errorf("decode env section %q: %w", cfg.Env, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func redecode(section any, out any) error {
	raw, err := yaml.Marshal(section)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, out)
}

// Write stores cfg as a single-section YAML file readable by Load.
func Write(path string, cfg Config) error {
	doc := struct {
		Env  string                 `yaml:"env"`
		Game GameConfig             `yaml:"game"`
		Envs map[string]TrainConfig `yaml:"envs"`
	}{
		Env:  cfg.Env,
		Game: cfg.Game,
		Envs: map[string]TrainConfig{cfg.Env: cfg.Train},
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if _, err := c.GameOptions(); err != nil {
		return err
	}

	t := c.Train
	positive := map[string]int{
		"max_steps":          t.MaxSteps,
		"batch_size":         t.BatchSize,
		"critic_net_epochs":  t.CriticNetEpochs,
		"target_update_freq": t.TargetUpdateFreq,
		"timeslip_size":      t.TimeslipSize,
		"checkpoint_every":   t.CheckpointEvery,
		"hidden_size":        t.HiddenSize,
		"conv_filters":       t.ConvFilters,
	}
	for key, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, key, v)
		}
	}
	if t.MaxEpochs < 0 {
		return fmt.Errorf("%w: max_epochs must not be negative", ErrInvalidConfig)
	}
	if t.Gamma < 0 || t.Gamma > 1 {
		return fmt.Errorf("%w: gamma %v outside [0, 1]", ErrInvalidConfig, t.Gamma)
	}
	if t.EpsilonDecay <= 0 || t.CriticNetLearnrateDecay <= 0 {
		return fmt.Errorf("%w: decays must be positive", ErrInvalidConfig)
	}
	if t.CriticNetLearnrateInit <= 0 {
		return fmt.Errorf("%w: critic_net_learnrate_init must be positive", ErrInvalidConfig)
	}
	if t.CriticNetClipnorm < 0 {
		return fmt.Errorf("%w: critic_net_clipnorm must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ParseHeading converts a heading name into a Direction.
func ParseHeading(s string) (types.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return types.Up, nil
	case "down":
		return types.Down, nil
	case "left":
		return types.Left, nil
	case "right":
		return types.Right, nil
	default:
		return 0, fmt.Errorf("%w: unknown heading %q", ErrInvalidConfig, s)
	}
}

// GameOptions converts the game section, checking it with the environment's
// own validation.
func (c *Config) GameOptions() (game.Options, error) {
	heading, err := ParseHeading(c.Game.InitHeading)
	if err != nil {
		return game.Options{}, err
	}

	snake := make([]types.Point, len(c.Game.InitSnake))
	for i, cell := range c.Game.InitSnake {
		snake[i] = types.Point{Row: cell[0], Col: cell[1]}
	}
	opts := game.Options{
		Size:        c.Game.Size,
		InitSnake:   snake,
		InitFood:    types.Point{Row: c.Game.InitFood[0], Col: c.Game.InitFood[1]},
		InitHeading: heading,
		Seed:        c.Game.Seed,
	}
	if err := opts.Validate(); err != nil {
		return game.Options{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return opts, nil
}

// TrainerOptions converts the training section. Checkpoints go to runDir.
func (c *Config) TrainerOptions(runDir string, verbose bool) qlearning.Options {
	t := c.Train
	return qlearning.Options{
		MaxEpochs:        t.MaxEpochs,
		MaxSteps:         t.MaxSteps,
		BatchSize:        t.BatchSize,
		CriticNetEpochs:  t.CriticNetEpochs,
		Epsilon:          qlearning.Schedule{Init: t.EpsilonInit, Decay: t.EpsilonDecay},
		LearningRate:     qlearning.Schedule{Init: t.CriticNetLearnrateInit, Decay: t.CriticNetLearnrateDecay},
		TargetUpdateFreq: t.TargetUpdateFreq,
		CheckpointEvery:  t.CheckpointEvery,
		CheckpointDir:    runDir,
		Verbose:          verbose,
	}
}

// NetConfig sizes the critic network for the configured board.
func (c *Config) NetConfig() qlearning.ConvQNetConfig {
	return qlearning.ConvQNetConfig{
		Size:         c.Game.Size,
		Depth:        c.Train.TimeslipSize,
		Filters:      c.Train.ConvFilters,
		Hidden:       c.Train.HiddenSize,
		LearningRate: c.Train.CriticNetLearnrateInit,
		ClipNorm:     c.Train.CriticNetClipnorm,
		Seed:         c.Train.Seed,
	}
}

// RunDir is where a run's snapshots and statistics are written.
func (c *Config) RunDir(runID string) string {
	return filepath.Join(c.Train.DataDir, runID)
}
