package game

import (
	"testing"

	"snake-ddqn/game/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func pt(row, col int) types.Point {
	return types.Point{Row: row, Col: col}
}

func newGame(t *testing.T, size int, snake []types.Point, food types.Point, heading types.Direction) *GreedySnake {
	t.Helper()
	g, err := New(Options{
		Size:        size,
		InitSnake:   snake,
		InitFood:    food,
		InitHeading: heading,
		Seed:        7,
	})
	require.NoError(t, err)
	return g
}

func TestStepNormalMove(t *testing.T) {
	g := newGame(t, 5, []types.Point{pt(2, 2), pt(2, 3)}, pt(0, 0), types.Left)

	signal := g.Step(types.ActionStraight)

	assert.Equal(t, types.Normal, signal)
	assert.Equal(t, []types.Point{pt(2, 1), pt(2, 2)}, g.Snake())
	assert.Equal(t, types.Left, g.Heading())
	assert.Equal(t, pt(0, 0), g.Food())
}

func TestStepTurnUpdatesHeading(t *testing.T) {
	g := newGame(t, 5, []types.Point{pt(2, 2), pt(2, 3), pt(2, 4)}, pt(0, 0), types.Left)

	signal := g.Step(types.ActionUp)

	assert.Equal(t, types.Normal, signal)
	assert.Equal(t, types.Up, g.Heading())
	assert.Equal(t, []types.Point{pt(1, 2), pt(2, 2), pt(2, 3)}, g.Snake())
}

func TestStepReversalIsStraight(t *testing.T) {
	cases := []struct {
		name     string
		heading  types.Direction
		reversal types.Action
		snake    []types.Point
	}{
		{"left/right", types.Left, types.ActionRight, []types.Point{pt(2, 2), pt(2, 3)}},
		{"right/left", types.Right, types.ActionLeft, []types.Point{pt(2, 2), pt(2, 1)}},
		{"up/down", types.Up, types.ActionDown, []types.Point{pt(2, 2), pt(3, 2)}},
		{"down/up", types.Down, types.ActionUp, []types.Point{pt(2, 2), pt(1, 2)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reversed := newGame(t, 5, tc.snake, pt(0, 0), tc.heading)
			straight := newGame(t, 5, tc.snake, pt(0, 0), tc.heading)

			assert.Equal(t, straight.Step(types.ActionStraight), reversed.Step(tc.reversal))
			assert.Equal(t, straight.Snake(), reversed.Snake())
			assert.Equal(t, tc.heading, reversed.Heading())
		})
	}
}

func TestStepEatGrows(t *testing.T) {
	oldSnake := []types.Point{pt(2, 2), pt(2, 3)}
	oldFood := pt(2, 1)
	g := newGame(t, 5, oldSnake, oldFood, types.Left)

	signal := g.Step(types.ActionStraight)

	require.Equal(t, types.Eat, signal)
	assert.Equal(t, []types.Point{pt(2, 1), pt(2, 2), pt(2, 3)}, g.Snake())
	assert.NotEqual(t, oldFood, g.Food())
	assert.NotContains(t, oldSnake, g.Food())
	assert.Equal(t, -1, g.IndexOf(g.Food().Row, g.Food().Col))
}

func TestStepWallHitResets(t *testing.T) {
	initSnake := []types.Point{pt(2, 1), pt(2, 2)}
	g := newGame(t, 5, initSnake, pt(4, 4), types.Left)

	require.Equal(t, types.Normal, g.Step(types.ActionStraight))
	require.Equal(t, []types.Point{pt(2, 0), pt(2, 1)}, g.Snake())

	// Head would land on column -1.
	signal := g.Step(types.ActionStraight)

	assert.Equal(t, types.Hit, signal)
	assert.Equal(t, initSnake, g.Snake())
	assert.Equal(t, types.Left, g.Heading())
}

func TestStepHitRestoresInitialHeading(t *testing.T) {
	g := newGame(t, 5, []types.Point{pt(1, 2), pt(1, 3)}, pt(4, 4), types.Left)

	require.Equal(t, types.Normal, g.Step(types.ActionUp))
	require.Equal(t, types.Up, g.Heading())

	assert.Equal(t, types.Hit, g.Step(types.ActionStraight))
	assert.Equal(t, types.Left, g.Heading())
	assert.Equal(t, []types.Point{pt(1, 2), pt(1, 3)}, g.Snake())
}

func TestStepSelfHit(t *testing.T) {
	snake := []types.Point{pt(2, 2), pt(2, 3), pt(3, 3), pt(3, 2), pt(3, 1)}
	g := newGame(t, 6, snake, pt(0, 0), types.Left)

	assert.Equal(t, types.Hit, g.Step(types.ActionDown))
	assert.Equal(t, snake, g.Snake())
}

func TestStepIntoTailIsHit(t *testing.T) {
	snake := []types.Point{pt(1, 1), pt(1, 2), pt(2, 2), pt(2, 1)}
	g := newGame(t, 5, snake, pt(4, 4), types.Left)

	assert.Equal(t, types.Hit, g.Step(types.ActionDown))
}

func TestResetKeepsFoodAwayFromSnake(t *testing.T) {
	g := newGame(t, 8, []types.Point{pt(4, 4), pt(4, 5)}, pt(0, 0), types.Left)

	for i := 0; i < 200; i++ {
		g.Reset()
		food := g.Food()
		for _, p := range g.Snake() {
			d := food.Sub(p)
			near := d.Row >= -1 && d.Row <= 1 && d.Col >= -1 && d.Col <= 1
			assert.False(t, near, "food %v inside halo of %v", food, p)
		}
	}
}

func TestResetFallsBackToInitialFood(t *testing.T) {
	// Every cell of a 3x3 board is within one cell of the centre column.
	g := newGame(t, 3, []types.Point{pt(1, 1), pt(0, 1)}, pt(2, 2), types.Down)

	g.Reset()

	assert.Equal(t, pt(2, 2), g.Food())
}

func TestEatFillingBoardFallsBackToInitialFood(t *testing.T) {
	initFood := pt(1, 0)
	g := newGame(t, 2, []types.Point{pt(0, 0), pt(0, 1), pt(1, 1)}, initFood, types.Left)

	require.Equal(t, types.Eat, g.Step(types.ActionDown))
	assert.Equal(t, 4, g.Len())
	assert.Equal(t, initFood, g.Food())
	assert.Equal(t, 0, g.IndexOf(initFood.Row, initFood.Col))

	assert.Equal(t, types.Hit, g.Step(types.ActionStraight))
	assert.Equal(t, 3, g.Len())
}

func TestRandomPlayInvariants(t *testing.T) {
	g := newGame(t, 8, []types.Point{pt(4, 4), pt(4, 5)}, pt(1, 1), types.Left)
	rng := rand.New(rand.NewSource(42))
	actions := []types.Action{types.ActionUp, types.ActionDown, types.ActionLeft, types.ActionRight, types.ActionStraight}

	eats := 0
	for i := 0; i < 5000; i++ {
		before := g.Len()
		signal := g.Step(actions[rng.Intn(len(actions))])

		switch signal {
		case types.Eat:
			eats++
			assert.Equal(t, before+1, g.Len())
		case types.Normal:
			assert.Equal(t, before, g.Len())
		case types.Hit:
			assert.Equal(t, 2, g.Len())
		}
		assert.Equal(t, -1, g.IndexOf(g.Food().Row, g.Food().Col), "food on snake at step %d", i)

		body := g.Snake()
		for j := 1; j < len(body); j++ {
			assert.True(t, body[j].Adjacent(body[j-1]), "broken chain at step %d", i)
		}
	}
	assert.Positive(t, eats)
}

func TestNewRejectsBadOptions(t *testing.T) {
	cases := map[string]Options{
		"tiny board":    {Size: 1, InitSnake: []types.Point{pt(0, 0)}, InitFood: pt(0, 0)},
		"empty snake":   {Size: 5, InitFood: pt(0, 0)},
		"off board":     {Size: 5, InitSnake: []types.Point{pt(5, 0)}, InitFood: pt(0, 0)},
		"gap in chain":  {Size: 5, InitSnake: []types.Point{pt(1, 1), pt(1, 3)}, InitFood: pt(0, 0)},
		"food on snake": {Size: 5, InitSnake: []types.Point{pt(1, 1), pt(1, 2)}, InitFood: pt(1, 2)},
		"bad heading":   {Size: 5, InitSnake: []types.Point{pt(1, 1)}, InitFood: pt(0, 0), InitHeading: types.Direction(9)},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(opts)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestString(t *testing.T) {
	g := newGame(t, 3, []types.Point{pt(1, 1), pt(1, 2)}, pt(0, 0), types.Left)

	assert.Equal(t, "#--\n-@O\n---\n", g.String())
}
