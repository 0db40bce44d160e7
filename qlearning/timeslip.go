package qlearning

import (
	"strings"

	"snake-ddqn/game/types"
)

// Frame intensities.
const (
	HeadValue  = 0.5
	BodyValue  = 0.3
	FoodValue  = 1.0
	EmptyValue = 0.0
)

// Observable is the read-only view of the board a frame is rendered from.
type Observable interface {
	Size() int
	CellAt(row, col int) types.Cell
}

// Frame is one rendered board, row-major, Size*Size values.
type Frame []float64

// Timeslip is a fixed-depth stack of frames, newest first. It starts filled
// with empty frames.
type Timeslip struct {
	size   int
	frames []Frame
}

func NewTimeslip(size, depth int) *Timeslip {
	ts := &Timeslip{size: size, frames: make([]Frame, depth)}
	for i := range ts.frames {
		ts.frames[i] = make(Frame, size*size)
	}
	return ts
}

func (ts *Timeslip) Depth() int {
	return len(ts.frames)
}

func (ts *Timeslip) Size() int {
	return ts.size
}

// Push inserts f as the newest frame and drops the oldest.
func (ts *Timeslip) Push(f Frame) {
	copy(ts.frames[1:], ts.frames[:len(ts.frames)-1])
	ts.frames[0] = f
}

// Frames returns the stack, newest first. The frames are shared.
func (ts *Timeslip) Frames() []Frame {
	out := make([]Frame, len(ts.frames))
	copy(out, ts.frames)
	return out
}

// Tensor flattens the stack into a fresh (size, size, depth) slice: channel k
// of cell (r, c) is at (r*size+c)*depth+k, with k=0 the newest frame.
func (ts *Timeslip) Tensor() []float64 {
	depth := len(ts.frames)
	out := make([]float64, ts.size*ts.size*depth)
	for k, f := range ts.frames {
		for i, v := range f {
			out[i*depth+k] = v
		}
	}
	return out
}

// Observe renders obs, pushes the frame and returns the text dump.
func (ts *Timeslip) Observe(obs Observable) string {
	f, display := Render(obs)
	ts.Push(f)
	return display
}

// Render builds a frame from obs along with its text dump.
func Render(obs Observable) (Frame, string) {
	size := obs.Size()
	frame := make(Frame, size*size)

	var sb strings.Builder
	sb.Grow(size * (size + 1))
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			cell := obs.CellAt(row, col)
			frame[row*size+col] = intensity(cell)
			sb.WriteRune(cell.Rune())
		}
		sb.WriteByte('\n')
	}
	return frame, sb.String()
}

func intensity(c types.Cell) float64 {
	switch c {
	case types.Head:
		return HeadValue
	case types.Body:
		return BodyValue
	case types.Food:
		return FoodValue
	default:
		return EmptyValue
	}
}
