package game

import (
	"errors"
	"fmt"
	"strings"

	"snake-ddqn/game/entity"
	"snake-ddqn/game/manager"
	"snake-ddqn/game/types"

	"golang.org/x/exp/rand"
)

// ErrInvalidOptions is returned by New when the initial layout cannot be played.
var ErrInvalidOptions = errors.New("invalid game options")

// Options fixes the board size and the layout the game resets to.
type Options struct {
	Size        int
	InitSnake   []types.Point
	InitFood    types.Point
	InitHeading types.Direction
	Seed        uint64
}

// DefaultOptions mirrors the stock greedysnake layout: an 8x8 board with a
// two-cell snake heading left.
func DefaultOptions() Options {
	return Options{
		Size:        8,
		InitSnake:   []types.Point{{Row: 4, Col: 4}, {Row: 4, Col: 5}},
		InitFood:    types.Point{Row: 1, Col: 1},
		InitHeading: types.Left,
		Seed:        1,
	}
}

// GreedySnake is the environment. It is the only mutator of snake, food and
// heading; callers observe it through accessors and drive it with Step.
type GreedySnake struct {
	Grid types.Grid

	snake   *entity.Snake
	food    types.Point
	heading types.Direction

	initSnake   []types.Point
	initFood    types.Point
	initHeading types.Direction

	collisionMgr *manager.CollisionManager
	foodMgr      *manager.FoodManager
}

func New(opts Options) (*GreedySnake, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	grid := types.Grid{Size: opts.Size}
	rng := rand.New(rand.NewSource(opts.Seed))

	initSnake := make([]types.Point, len(opts.InitSnake))
	copy(initSnake, opts.InitSnake)

	g := &GreedySnake{
		Grid:         grid,
		snake:        entity.NewSnake(initSnake),
		food:         opts.InitFood,
		heading:      opts.InitHeading,
		initSnake:    initSnake,
		initFood:     opts.InitFood,
		initHeading:  opts.InitHeading,
		collisionMgr: manager.NewCollisionManager(grid),
		foodMgr:      manager.NewFoodManager(grid, opts.InitFood, rng),
	}
	return g, nil
}

// Validate checks that the layout is playable.
func (o Options) Validate() error {
	if o.Size < 2 {
		return fmt.Errorf("%w: size %d", ErrInvalidOptions, o.Size)
	}
	if len(o.InitSnake) == 0 {
		return fmt.Errorf("%w: empty initial snake", ErrInvalidOptions)
	}
	switch o.InitHeading {
	case types.Up, types.Down, types.Left, types.Right:
	default:
		return fmt.Errorf("%w: heading %d", ErrInvalidOptions, int(o.InitHeading))
	}

	grid := types.Grid{Size: o.Size}
	seen := make(map[types.Point]struct{}, len(o.InitSnake))
	for i, p := range o.InitSnake {
		if !grid.Contains(p) {
			return fmt.Errorf("%w: snake cell %v off the board", ErrInvalidOptions, p)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("%w: snake cell %v repeated", ErrInvalidOptions, p)
		}
		seen[p] = struct{}{}
		if i > 0 && !p.Adjacent(o.InitSnake[i-1]) {
			return fmt.Errorf("%w: snake cells %v and %v are not adjacent", ErrInvalidOptions, o.InitSnake[i-1], p)
		}
	}
	if !grid.Contains(o.InitFood) {
		return fmt.Errorf("%w: food %v off the board", ErrInvalidOptions, o.InitFood)
	}
	if _, onSnake := seen[o.InitFood]; onSnake {
		return fmt.Errorf("%w: food %v on the snake", ErrInvalidOptions, o.InitFood)
	}
	return nil
}

// Step advances the game by one tick and reports what happened.
// A hit resets the game before returning.
func (g *GreedySnake) Step(action types.Action) types.Signal {
	g.heading = action.Resolve(g.heading)
	newHead := g.snake.GetHead().Add(g.heading.ToPoint())

	var signal types.Signal
	switch {
	case g.collisionMgr.CheckCollision(newHead, g.snake) != types.NoCollision:
		signal = types.Hit
	case g.collisionMgr.IsFoodCollision(newHead, g.food):
		// Pick against the pre-growth body and the eaten cell; the new head is the eaten cell.
		// If this meal fills the board no cell is free, and food falls back to the
		// initial food cell even though the snake covers it. The next step is a hit.
		next := g.foodMgr.AfterEat(g.snake, g.food)
		g.snake.Grow(g.food)
		g.food = next
		signal = types.Eat
	default:
		g.snake.Move(newHead)
		signal = types.Normal
	}

	if signal == types.Hit {
		g.Reset()
	}
	return signal
}

// Reset restores the initial snake and heading and drops food away from the snake.
func (g *GreedySnake) Reset() {
	g.snake.Set(g.initSnake)
	g.heading = g.initHeading
	g.food = g.foodMgr.AfterReset(g.snake)
}

// Snake returns a copy of the body, head first.
func (g *GreedySnake) Snake() []types.Point {
	return g.snake.Cells()
}

func (g *GreedySnake) Len() int {
	return g.snake.Len()
}

func (g *GreedySnake) Food() types.Point {
	return g.food
}

func (g *GreedySnake) Heading() types.Direction {
	return g.heading
}

func (g *GreedySnake) Size() int {
	return g.Grid.Size
}

// IndexOf returns the body index at (row, col), or -1 if no segment is there.
func (g *GreedySnake) IndexOf(row, col int) int {
	return g.snake.IndexOf(types.Point{Row: row, Col: col})
}

// CellAt classifies the board cell at (row, col).
func (g *GreedySnake) CellAt(row, col int) types.Cell {
	switch idx := g.IndexOf(row, col); {
	case idx == 0:
		return types.Head
	case idx > 0:
		return types.Body
	case g.food == types.Point{Row: row, Col: col}:
		return types.Food
	default:
		return types.Empty
	}
}

// Board returns the cell classes of the whole grid, row by row.
func (g *GreedySnake) Board() [][]types.Cell {
	board := make([][]types.Cell, g.Grid.Size)
	for row := range board {
		board[row] = make([]types.Cell, g.Grid.Size)
		for col := range board[row] {
			board[row][col] = g.CellAt(row, col)
		}
	}
	return board
}

// String dumps the board, one character per cell and one line per row.
func (g *GreedySnake) String() string {
	var sb strings.Builder
	sb.Grow(g.Grid.Cells() + g.Grid.Size)
	for _, row := range g.Board() {
		for _, c := range row {
			sb.WriteRune(c.Rune())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
