package main

import (
	"path/filepath"
	"testing"

	"snake-ddqn/config"
	"snake-ddqn/qlearning"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCriticResume(t *testing.T) {
	dir := t.TempDir()
	saved, err := qlearning.NewConvQNet(qlearning.ConvQNetConfig{
		Size: 4, Depth: 2, Filters: 2, Hidden: 8, LearningRate: 0.001, Seed: 5,
	})
	require.NoError(t, err)
	require.NoError(t, saved.Save(filepath.Join(dir, qlearning.CriticFile)))

	cfg := config.Default()
	cfg.Game.Size = 4
	cfg.Train.TimeslipSize = 2

	t.Run("matching snapshot", func(t *testing.T) {
		critic, err := newCritic(&cfg, dir)
		require.NoError(t, err)
		assert.Equal(t, saved.Config(), critic.Config())
	})

	t.Run("board size mismatch", func(t *testing.T) {
		other := cfg
		other.Game.Size = 8
		_, err := newCritic(&other, dir)
		assert.ErrorIs(t, err, qlearning.ErrShape)
	})

	t.Run("timeslip mismatch", func(t *testing.T) {
		other := cfg
		other.Train.TimeslipSize = 3
		_, err := newCritic(&other, dir)
		assert.ErrorIs(t, err, qlearning.ErrShape)
	})

	t.Run("missing snapshot", func(t *testing.T) {
		_, err := newCritic(&cfg, t.TempDir())
		assert.Error(t, err)
	})
}

func TestNewCriticFresh(t *testing.T) {
	cfg := config.Default()

	critic, err := newCritic(&cfg, "")

	require.NoError(t, err)
	assert.Equal(t, cfg.NetConfig(), critic.Config())
}
