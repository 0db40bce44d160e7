package manager

import (
	"testing"

	"snake-ddqn/game/entity"
	"snake-ddqn/game/types"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/exp/rand"
)

func pt(row, col int) types.Point {
	return types.Point{Row: row, Col: col}
}

func TestCollisionManager(t *testing.T) {
	Convey("Given a 4x4 grid and a three-cell snake", t, func() {
		cm := NewCollisionManager(types.Grid{Size: 4})
		snake := entity.NewSnake([]types.Point{pt(1, 1), pt(1, 2), pt(2, 2)})

		Convey("Cells off the grid are wall collisions", func() {
			So(cm.CheckCollision(pt(-1, 0), snake), ShouldEqual, types.WallCollision)
			So(cm.CheckCollision(pt(0, 4), snake), ShouldEqual, types.WallCollision)
		})

		Convey("Any body cell is a self collision, tail included", func() {
			So(cm.CheckCollision(pt(1, 2), snake), ShouldEqual, types.SelfCollision)
			So(cm.CheckCollision(pt(2, 2), snake), ShouldEqual, types.SelfCollision)
		})

		Convey("Free cells do not collide", func() {
			So(cm.CheckCollision(pt(0, 1), snake), ShouldEqual, types.NoCollision)
		})

		Convey("Food collision is exact position equality", func() {
			So(cm.IsFoodCollision(pt(3, 3), pt(3, 3)), ShouldBeTrue)
			So(cm.IsFoodCollision(pt(3, 2), pt(3, 3)), ShouldBeFalse)
		})
	})
}

func TestFoodManager(t *testing.T) {
	Convey("Given a food manager on a 5x5 grid", t, func() {
		grid := types.Grid{Size: 5}
		fm := NewFoodManager(grid, pt(4, 4), rand.New(rand.NewSource(3)))
		snake := entity.NewSnake([]types.Point{pt(2, 2), pt(2, 3)})

		Convey("After eating, food avoids the snake and the eaten cell", func() {
			for i := 0; i < 200; i++ {
				food := fm.AfterEat(snake, pt(2, 1))
				So(grid.Contains(food), ShouldBeTrue)
				So(snake.Contains(food), ShouldBeFalse)
				So(food, ShouldNotResemble, pt(2, 1))
			}
		})

		Convey("After a reset, food stays outside the halo", func() {
			for i := 0; i < 200; i++ {
				food := fm.AfterReset(snake)
				So(food.Row == 0 || food.Row == 4 || food.Col == 0, ShouldBeTrue)
			}
		})

		Convey("When no cell qualifies, the initial food cell is used", func() {
			body := make([]types.Point, 0, grid.Cells())
			for row := 0; row < 5; row++ {
				for c := 0; c < 5; c++ {
					col := c
					if row%2 == 1 {
						col = 4 - c
					}
					body = append(body, pt(row, col))
				}
			}
			full := entity.NewSnake(body)

			So(fm.AfterEat(full, pt(0, 0)), ShouldResemble, pt(4, 4))
			So(fm.AfterReset(full), ShouldResemble, pt(4, 4))
		})
	})
}
