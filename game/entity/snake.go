package entity

import (
	"snake-ddqn/game/types"
)

// Snake is an ordered chain of cells, head first.
// occupied maps each cell to its position in Body so membership is O(1).
type Snake struct {
	Body     []types.Point
	occupied map[types.Point]int
}

func NewSnake(body []types.Point) *Snake {
	s := &Snake{}
	s.Set(body)
	return s
}

// Set replaces the whole body with a copy of body.
func (s *Snake) Set(body []types.Point) {
	s.Body = make([]types.Point, len(body))
	copy(s.Body, body)
	s.reindex()
}

func (s *Snake) reindex() {
	s.occupied = make(map[types.Point]int, len(s.Body))
	for i, p := range s.Body {
		s.occupied[p] = i
	}
}

func (s *Snake) GetHead() types.Point {
	return s.Body[0]
}

func (s *Snake) Len() int {
	return len(s.Body)
}

// IndexOf returns the body index of p, or -1 if p is not part of the snake.
func (s *Snake) IndexOf(p types.Point) int {
	if i, ok := s.occupied[p]; ok {
		return i
	}
	return -1
}

func (s *Snake) Contains(p types.Point) bool {
	_, ok := s.occupied[p]
	return ok
}

// Grow inserts newHead in front of the current head. Nothing is removed.
func (s *Snake) Grow(newHead types.Point) {
	s.Body = append(s.Body, types.Point{})
	copy(s.Body[1:], s.Body[:len(s.Body)-1])
	s.Body[0] = newHead
	s.reindex()
}

// Move shifts the chain by one cell: the head takes newHead and every other
// segment takes the cell its predecessor held before the move.
func (s *Snake) Move(newHead types.Point) {
	if len(s.Body) == 0 {
		return
	}
	tail := s.Body[len(s.Body)-1]
	copy(s.Body[1:], s.Body[:len(s.Body)-1])
	s.Body[0] = newHead

	delete(s.occupied, tail)
	for i, p := range s.Body {
		s.occupied[p] = i
	}
}

// Cells returns a copy of the body.
func (s *Snake) Cells() []types.Point {
	out := make([]types.Point, len(s.Body))
	copy(out, s.Body)
	return out
}
