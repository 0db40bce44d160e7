package manager

import (
	"snake-ddqn/game/entity"
	"snake-ddqn/game/types"

	"golang.org/x/exp/rand"
)

// FoodManager picks food cells. Both spawn rules draw uniformly from an
// explicit candidate list and fall back to the initial food cell when the
// list is empty.
type FoodManager struct {
	grid     types.Grid
	initFood types.Point
	rng      *rand.Rand
}

func NewFoodManager(grid types.Grid, initFood types.Point, rng *rand.Rand) *FoodManager {
	return &FoodManager{
		grid:     grid,
		initFood: initFood,
		rng:      rng,
	}
}

// AfterEat picks the next food once eaten has been consumed. Candidates are
// all cells not on the snake (as it was before growing) and not eaten.
func (fm *FoodManager) AfterEat(snake *entity.Snake, eaten types.Point) types.Point {
	blocked := make(map[types.Point]struct{}, snake.Len()+1)
	for _, p := range snake.Body {
		blocked[p] = struct{}{}
	}
	blocked[eaten] = struct{}{}
	return fm.pick(blocked)
}

// AfterReset picks food for a freshly reset snake, keeping a one-cell halo
// (the 8-neighbourhood) around every segment free of food.
func (fm *FoodManager) AfterReset(snake *entity.Snake) types.Point {
	blocked := make(map[types.Point]struct{}, snake.Len()*9)
	for _, p := range snake.Body {
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				blocked[types.Point{Row: p.Row + dr, Col: p.Col + dc}] = struct{}{}
			}
		}
	}
	return fm.pick(blocked)
}

func (fm *FoodManager) pick(blocked map[types.Point]struct{}) types.Point {
	candidates := make([]types.Point, 0, fm.grid.Cells())
	for i := 0; i < fm.grid.Cells(); i++ {
		p := fm.grid.At(i)
		if _, ok := blocked[p]; !ok {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return fm.initFood
	}
	return candidates[fm.rng.Intn(len(candidates))]
}
