package types

import "fmt"

// Grid represents the square board. Cells are addressed (row, col) in [0, Size-1].
type Grid struct {
	Size int
}

// Contains reports whether p lies on the grid.
func (g Grid) Contains(p Point) bool {
	return p.Row >= 0 && p.Col >= 0 && p.Row < g.Size && p.Col < g.Size
}

// Cells returns the number of cells on the grid.
func (g Grid) Cells() int {
	return g.Size * g.Size
}

// Index flattens p into row-major order.
func (g Grid) Index(p Point) int {
	return p.Row*g.Size + p.Col
}

// At is the inverse of Index.
func (g Grid) At(index int) Point {
	return Point{Row: index / g.Size, Col: index % g.Size}
}

// Point is a (row, col) grid position.
type Point struct {
	Row, Col int
}

func (p Point) Add(q Point) Point {
	return Point{Row: p.Row + q.Row, Col: p.Col + q.Col}
}

func (p Point) Sub(q Point) Point {
	return Point{Row: p.Row - q.Row, Col: p.Col - q.Col}
}

// Adjacent reports whether p and q are orthogonal neighbours.
func (p Point) Adjacent(q Point) bool {
	d := p.Sub(q)
	return abs(d.Row)+abs(d.Col) == 1
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Direction is a heading. It is the only type ever stored as the snake's heading.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

// NumDirections is the size of the action space seen by the network.
const NumDirections = 4

// Directions lists every heading in network output order.
var Directions = [NumDirections]Direction{Up, Down, Left, Right}

// ToPoint converts a Direction into its unit displacement.
func (d Direction) ToPoint() Point {
	switch d {
	case Up:
		return Point{Row: -1, Col: 0}
	case Down:
		return Point{Row: 1, Col: 0}
	case Left:
		return Point{Row: 0, Col: -1}
	case Right:
		return Point{Row: 0, Col: 1}
	default:
		panic(fmt.Sprintf("types: unknown direction %d", int(d)))
	}
}

// Opposite returns the heading pointing the other way.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	default:
		panic(fmt.Sprintf("types: unknown direction %d", int(d)))
	}
}

// Index is the network output slot for d.
func (d Direction) Index() int {
	return int(d)
}

// Action converts d into the equivalent explicit Action.
func (d Direction) Action() Action {
	switch d {
	case Up:
		return ActionUp
	case Down:
		return ActionDown
	case Left:
		return ActionLeft
	case Right:
		return ActionRight
	default:
		panic(fmt.Sprintf("types: unknown direction %d", int(d)))
	}
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	case Left:
		return "LEFT"
	case Right:
		return "RIGHT"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Action is what a player asks the snake to do on one tick.
type Action int

const (
	ActionUp Action = iota
	ActionDown
	ActionLeft
	ActionRight
	// ActionStraight keeps the current heading.
	ActionStraight
)

// Resolve turns a into the heading the snake will actually move along.
// Actions on the heading's own axis (a reversal, or repeating the heading)
// collapse to Straight, so the snake can never fold back onto itself.
func (a Action) Resolve(heading Direction) Direction {
	var d Direction
	switch a {
	case ActionStraight:
		return heading
	case ActionUp:
		d = Up
	case ActionDown:
		d = Down
	case ActionLeft:
		d = Left
	case ActionRight:
		d = Right
	default:
		panic(fmt.Sprintf("types: unknown action %d", int(a)))
	}
	if d == heading || d == heading.Opposite() {
		return heading
	}
	return d
}

// Direction returns the heading named by a. ok is false for ActionStraight.
func (a Action) Direction() (d Direction, ok bool) {
	switch a {
	case ActionUp:
		return Up, true
	case ActionDown:
		return Down, true
	case ActionLeft:
		return Left, true
	case ActionRight:
		return Right, true
	case ActionStraight:
		return 0, false
	default:
		panic(fmt.Sprintf("types: unknown action %d", int(a)))
	}
}

func (a Action) String() string {
	if a == ActionStraight {
		return "STRAIGHT"
	}
	if d, ok := a.Direction(); ok {
		return d.String()
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Signal is the outcome of a single step.
type Signal int

const (
	Normal Signal = iota
	Hit
	Eat
)

func (s Signal) String() string {
	switch s {
	case Normal:
		return "NORMAL"
	case Hit:
		return "HIT"
	case Eat:
		return "EAT"
	default:
		return fmt.Sprintf("Signal(%d)", int(s))
	}
}

// CollisionType represents the type of collision
type CollisionType int

const (
	NoCollision CollisionType = iota
	WallCollision
	SelfCollision
)

func (c CollisionType) String() string {
	switch c {
	case NoCollision:
		return "none"
	case WallCollision:
		return "wall"
	case SelfCollision:
		return "self"
	default:
		return fmt.Sprintf("CollisionType(%d)", int(c))
	}
}

// Cell is the content class of a board cell.
type Cell int

const (
	Empty Cell = iota
	Head
	Body
	Food
)

// Rune is the character used for c in text board dumps.
func (c Cell) Rune() rune {
	switch c {
	case Head:
		return '@'
	case Body:
		return 'O'
	case Food:
		return '#'
	case Empty:
		return '-'
	default:
		panic(fmt.Sprintf("types: unknown cell %d", int(c)))
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
