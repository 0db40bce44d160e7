package ui

import (
	"fmt"
	"time"

	"snake-ddqn/game/types"
	"snake-ddqn/stats"

	rl "github.com/gen2brain/raylib-go/raylib"
)

const (
	maxScores     = 200 // Maximum number of scores to show in graph
	borderPadding = 10  // Reduced padding around game area
)

// Snapshot is an immutable copy of what the viewer draws for one step.
type Snapshot struct {
	Size         int
	Snake        []types.Point
	Food         types.Point
	Heading      types.Direction
	Epoch        int
	TotalSteps   int
	Signal       types.Signal
	Reward       float64
	Epsilon      float64
	LearningRate float64
	Softmax      []float64
	Summary      stats.Summary
	History      []float64 // rolling average score, oldest first
	StartTime    time.Time
}

type Renderer struct {
	cellSize        int32
	screenWidth     int32
	screenHeight    int32
	graphHeight     int32
	graphWidth      int32
	gameWidth       int32
	gameHeight      int32
	statsPanel      int32
	totalGridWidth  int32
	totalGridHeight int32
	offsetX         int32
	offsetY         int32
}

func NewRenderer() *Renderer {
	r := &Renderer{}
	r.UpdateDimensions()
	return r
}

func (r *Renderer) UpdateDimensions() {
	r.screenWidth = int32(rl.GetScreenWidth())
	r.screenHeight = int32(rl.GetScreenHeight())

	// Stats panel takes a third of the window; the board gets the rest.
	r.statsPanel = r.screenWidth / 3
	r.gameWidth = r.screenWidth - r.statsPanel
	r.gameHeight = r.screenHeight

	r.graphWidth = r.statsPanel - 20
	r.graphHeight = r.screenHeight / 4
}

// Draw renders one frame. A zero Snapshot (nothing received yet) draws a
// waiting message.
func (r *Renderer) Draw(s Snapshot) {
	r.UpdateDimensions()
	rl.BeginDrawing()
	defer rl.EndDrawing()
	rl.ClearBackground(rl.Black)

	fontSize := min(r.screenHeight/40, r.statsPanel/15)
	lineHeight := fontSize + fontSize/2

	if s.Size == 0 {
		rl.DrawText("warming up...", borderPadding, borderPadding, fontSize, rl.White)
		return
	}

	availableWidth := r.gameWidth - (borderPadding * 2)
	availableHeight := r.gameHeight - (borderPadding * 2)
	r.cellSize = min(availableWidth/int32(s.Size), availableHeight/int32(s.Size))

	r.totalGridWidth = r.cellSize * int32(s.Size)
	r.totalGridHeight = r.cellSize * int32(s.Size)
	r.offsetX = borderPadding
	r.offsetY = (r.screenHeight - r.totalGridHeight) / 2

	rl.DrawRectangle(r.offsetX-1, r.offsetY-1, r.totalGridWidth+2, r.totalGridHeight+2, rl.DarkGray)
	for row := 0; row < s.Size; row++ {
		for col := 0; col < s.Size; col++ {
			x, y := r.cellOrigin(types.Point{Row: row, Col: col})
			rl.DrawRectangleLines(x, y, r.cellSize, r.cellSize, rl.Gray)
		}
	}

	x, y := r.cellOrigin(s.Food)
	rl.DrawRectangle(x, y, r.cellSize, r.cellSize, rl.Red)

	// Head is index 0; draw it last so the heading marker stays on top.
	for j := len(s.Snake) - 1; j >= 0; j-- {
		x, y := r.cellOrigin(s.Snake[j])
		color := rl.Green
		if j == 0 {
			color = rl.Lime
		}
		rl.DrawRectangle(x, y, r.cellSize, r.cellSize, color)
		if j == 0 {
			r.drawHeading(x, y, s.Heading)
		}
	}

	if s.Signal == types.Hit {
		text := "Hit! (Restarting...)"
		textWidth := rl.MeasureText(text, fontSize)
		rl.DrawText(text, r.offsetX+(r.totalGridWidth-textWidth)/2, r.offsetY+r.totalGridHeight/2, fontSize, rl.Yellow)
	}

	r.drawStatsPanel(s, fontSize, lineHeight)
}

func (r *Renderer) cellOrigin(p types.Point) (int32, int32) {
	return r.offsetX + int32(p.Col)*r.cellSize, r.offsetY + int32(p.Row)*r.cellSize
}

func (r *Renderer) drawHeading(headX, headY int32, heading types.Direction) {
	halfCell := r.cellSize / 2
	switch heading {
	case types.Right:
		rl.DrawTriangle(
			rl.Vector2{X: float32(headX + r.cellSize), Y: float32(headY + halfCell)},
			rl.Vector2{X: float32(headX + halfCell), Y: float32(headY)},
			rl.Vector2{X: float32(headX + halfCell), Y: float32(headY + r.cellSize)},
			rl.Yellow)
	case types.Left:
		rl.DrawTriangle(
			rl.Vector2{X: float32(headX), Y: float32(headY + halfCell)},
			rl.Vector2{X: float32(headX + halfCell), Y: float32(headY + r.cellSize)},
			rl.Vector2{X: float32(headX + halfCell), Y: float32(headY)},
			rl.Yellow)
	case types.Down:
		rl.DrawTriangle(
			rl.Vector2{X: float32(headX + halfCell), Y: float32(headY + r.cellSize)},
			rl.Vector2{X: float32(headX + r.cellSize), Y: float32(headY + halfCell)},
			rl.Vector2{X: float32(headX), Y: float32(headY + halfCell)},
			rl.Yellow)
	default: // Up
		rl.DrawTriangle(
			rl.Vector2{X: float32(headX + halfCell), Y: float32(headY)},
			rl.Vector2{X: float32(headX), Y: float32(headY + halfCell)},
			rl.Vector2{X: float32(headX + r.cellSize), Y: float32(headY + halfCell)},
			rl.Yellow)
	}
}

func (r *Renderer) drawStatsPanel(s Snapshot, fontSize, lineHeight int32) {
	statsX := r.gameWidth + 5
	statsY := int32(10)

	rl.DrawRectangle(statsX-5, 0, r.statsPanel+5, r.screenHeight, rl.DarkGray)

	lines := []string{
		fmt.Sprintf("Epoch: %d", s.Epoch),
		fmt.Sprintf("Steps: %d", s.TotalSteps),
		fmt.Sprintf("Length: %d", len(s.Snake)),
		fmt.Sprintf("Reward: %.3f", s.Reward),
		fmt.Sprintf("Epsilon: %.4f", s.Epsilon),
		fmt.Sprintf("LR: %.6f", s.LearningRate),
		"",
		fmt.Sprintf("Avg (1000): %.3f", s.Summary.Average),
		fmt.Sprintf("Max avg: %.3f", s.Summary.MaxAverage),
		fmt.Sprintf("Hit rate: %.4f", s.Summary.HitRate),
		fmt.Sprintf("Eat rate: %.4f", s.Summary.EatRate),
		fmt.Sprintf("Games: %d", s.Summary.GamesPlayed),
		fmt.Sprintf("Best length: %d", s.Summary.MaxScore),
	}
	for _, line := range lines {
		rl.DrawText(line, statsX, statsY, fontSize, rl.White)
		statsY += lineHeight
	}

	if len(s.Softmax) == types.NumDirections {
		statsY += lineHeight / 2
		rl.DrawText("Policy:", statsX, statsY, fontSize, rl.White)
		statsY += lineHeight
		barMax := r.statsPanel - 80
		for _, d := range types.Directions {
			p := s.Softmax[d.Index()]
			rl.DrawText(d.String(), statsX+5, statsY, fontSize, rl.LightGray)
			rl.DrawRectangle(statsX+70, statsY, int32(float64(barMax)*p), fontSize, rl.SkyBlue)
			statsY += lineHeight
		}
	}

	r.drawPerformanceGraph(s, statsX, fontSize)
}

func (r *Renderer) drawPerformanceGraph(s Snapshot, graphX, fontSize int32) {
	graphHeight := r.graphHeight
	graphY := r.screenHeight - graphHeight - fontSize*2

	rl.DrawRectangleLines(graphX, graphY, r.graphWidth, graphHeight, rl.White)
	rl.DrawText("Performance", graphX, graphY-fontSize-5, fontSize, rl.White)

	duration := time.Since(s.StartTime)
	hours := int(duration.Hours())
	minutes := int(duration.Minutes()) % 60
	seconds := int(duration.Seconds()) % 60
	timeText := fmt.Sprintf("%02d:%02d:%02d - Steps: %d", hours, minutes, seconds, s.TotalSteps)
	rl.DrawText(timeText, graphX, r.screenHeight-fontSize-5, fontSize, rl.White)

	scores := s.History
	if len(scores) > maxScores {
		scores = scores[len(scores)-maxScores:]
	}
	if len(scores) < 2 {
		return
	}

	maxScore := 1.0
	for _, v := range scores {
		if v > maxScore {
			maxScore = v
		}
	}

	for j := 1; j < len(scores); j++ {
		x1 := graphX + int32(float32(r.graphWidth)*float32(j-1)/float32(maxScores))
		y1 := graphY + graphHeight - int32(float32(graphHeight)*float32(scores[j-1]/maxScore))
		x2 := graphX + int32(float32(r.graphWidth)*float32(j)/float32(maxScores))
		y2 := graphY + graphHeight - int32(float32(graphHeight)*float32(scores[j]/maxScore))
		rl.DrawLine(x1, y1, x2, y2, rl.Green)
	}

	// Dashed line at the best rolling average seen.
	maxY := graphY + graphHeight - int32(float32(graphHeight)*float32(s.Summary.MaxAverage/maxScore))
	for x := graphX; x < graphX+r.graphWidth; x += 5 {
		rl.DrawLine(x, maxY, x+2, maxY, rl.Yellow)
	}
}
