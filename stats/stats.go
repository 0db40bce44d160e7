package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	// WindowSize is the number of most recent steps the rolling score covers.
	WindowSize = 1000
	// GroupSize is how many records are folded into one compressed record.
	GroupSize = 100
)

// GameStats tracks training progress. Step-level counters feed the rolling
// score and hit/eat rates; every life (from reset to the next hit) becomes a
// GameRecord, and old records are compressed in groups of GroupSize.
type GameStats struct {
	RunID      string       `json:"runId"`
	StartTime  time.Time    `json:"startTime"`
	TotalSteps int          `json:"totalSteps"`
	Hits       int          `json:"hits"`
	Eats       int          `json:"eats"`
	MaxAverage float64      `json:"maxAverage"`
	Games      []GameRecord `json:"games"`

	window    []float64
	next      int
	lifeStart time.Time
	lifeSteps int
	lifeMax   int
	mutex     sync.RWMutex
}

// GameRecord represents one life, or a compressed group of lives.
type GameRecord struct {
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	Score            int       `json:"score"`            // longest length reached, single records only
	Steps            int       `json:"steps"`            // single records only
	CompressionIndex int       `json:"compressionIndex"` // 0 for single lives, >0 for groups
	GamesCount       int       `json:"gamesCount"`
	AverageScore     float64   `json:"averageScore"`
	MedianScore      float64   `json:"medianScore"`
	MaxScore         int       `json:"maxScore"`
	MinScore         int       `json:"minScore"`
	AverageSteps     float64   `json:"averageSteps"`
}

// Summary is a point-in-time copy of the headline numbers.
type Summary struct {
	TotalSteps   int
	Average      float64
	MaxAverage   float64
	HitRate      float64
	EatRate      float64
	GamesPlayed  int
	MaxScore     int
	AverageScore float64
}

func NewGameStats(runID string) *GameStats {
	now := time.Now()
	return &GameStats{
		RunID:     runID,
		StartTime: now,
		Games:     make([]GameRecord, 0),
		window:    make([]float64, 0, WindowSize),
		lifeStart: now,
	}
}

// RecordStep accounts for one environment step. length is the snake length
// after the step; hit and eat mirror the step signal.
func (s *GameStats) RecordStep(length int, hit, eat bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.TotalSteps++
	s.lifeSteps++
	if hit {
		s.Hits++
	}
	if eat {
		s.Eats++
	}
	if length > s.lifeMax {
		s.lifeMax = length
	}

	if len(s.window) < WindowSize {
		s.window = append(s.window, float64(length))
	} else {
		s.window[s.next] = float64(length)
		s.next = (s.next + 1) % WindowSize
	}
	if avg := stat.Mean(s.window, nil); avg > s.MaxAverage {
		s.MaxAverage = avg
	}

	if hit {
		s.addGame(s.lifeMax, s.lifeSteps, s.lifeStart, time.Now())
		s.lifeStart = time.Now()
		s.lifeSteps = 0
		s.lifeMax = 0
	}
}

// AddGame appends a finished life.
func (s *GameStats) AddGame(score, steps int, startTime, endTime time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.addGame(score, steps, startTime, endTime)
}

func (s *GameStats) addGame(score, steps int, startTime, endTime time.Time) {
	s.Games = append(s.Games, GameRecord{
		StartTime:        startTime,
		EndTime:          endTime,
		Score:            score,
		Steps:            steps,
		CompressionIndex: 0,
		GamesCount:       1,
		AverageScore:     float64(score),
		MedianScore:      float64(score),
		MaxScore:         score,
		MinScore:         score,
		AverageSteps:     float64(steps),
	})
	s.groupGames()
}

// groupGames folds every full run of GroupSize records at one compression
// level into a single record one level up.
func (s *GameStats) groupGames() {
	sort.SliceStable(s.Games, func(i, j int) bool {
		if s.Games[i].CompressionIndex != s.Games[j].CompressionIndex {
			return s.Games[i].CompressionIndex < s.Games[j].CompressionIndex
		}
		return s.Games[i].StartTime.Before(s.Games[j].StartTime)
	})

	for level := 0; ; level++ {
		records := make([]GameRecord, 0)
		for _, g := range s.Games {
			if g.CompressionIndex == level {
				records = append(records, g)
			}
		}
		if len(records) < GroupSize {
			break
		}

		var merged []GameRecord
		for i := 0; i < len(records); i += GroupSize {
			end := i + GroupSize
			if end > len(records) {
				merged = append(merged, records[i:]...)
				break
			}
			merged = append(merged, compress(records[i:end], level+1))
		}

		remaining := make([]GameRecord, 0, len(s.Games))
		for _, g := range s.Games {
			if g.CompressionIndex != level {
				remaining = append(remaining, g)
			}
		}
		s.Games = append(remaining, merged...)
	}
}

func compress(group []GameRecord, level int) GameRecord {
	out := GameRecord{
		StartTime:        group[0].StartTime,
		EndTime:          group[0].EndTime,
		CompressionIndex: level,
		MaxScore:         group[0].MaxScore,
		MinScore:         group[0].MinScore,
	}

	var scores, weights, steps []float64
	for _, g := range group {
		if g.MaxScore > out.MaxScore {
			out.MaxScore = g.MaxScore
		}
		if g.MinScore < out.MinScore {
			out.MinScore = g.MinScore
		}
		if g.StartTime.Before(out.StartTime) {
			out.StartTime = g.StartTime
		}
		if g.EndTime.After(out.EndTime) {
			out.EndTime = g.EndTime
		}
		out.GamesCount += g.GamesCount
		scores = append(scores, g.AverageScore)
		steps = append(steps, g.AverageSteps)
		weights = append(weights, float64(g.GamesCount))
	}
	out.AverageScore = stat.Mean(scores, weights)
	out.AverageSteps = stat.Mean(steps, weights)
	out.MedianScore = weightedMedian(group)
	return out
}

func weightedMedian(records []GameRecord) float64 {
	all := make([]float64, 0)
	for _, g := range records {
		for i := 0; i < g.GamesCount; i++ {
			all = append(all, g.MedianScore)
		}
	}
	if len(all) == 0 {
		return 0
	}
	sort.Float64s(all)
	if len(all)%2 == 0 {
		return (all[len(all)/2-1] + all[len(all)/2]) / 2
	}
	return all[len(all)/2]
}

// Summary returns the current headline numbers.
func (s *GameStats) Summary() Summary {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	sum := Summary{
		TotalSteps: s.TotalSteps,
		MaxAverage: s.MaxAverage,
	}
	if len(s.window) > 0 {
		sum.Average = stat.Mean(s.window, nil)
	}
	if s.TotalSteps > 0 {
		sum.HitRate = float64(s.Hits) / float64(s.TotalSteps)
		sum.EatRate = float64(s.Eats) / float64(s.TotalSteps)
	}

	var scores, weights []float64
	for _, g := range s.Games {
		sum.GamesPlayed += g.GamesCount
		if g.MaxScore > sum.MaxScore {
			sum.MaxScore = g.MaxScore
		}
		scores = append(scores, g.AverageScore)
		weights = append(weights, float64(g.GamesCount))
	}
	if len(scores) > 0 {
		sum.AverageScore = stat.Mean(scores, weights)
	}
	return sum
}

// GetStats returns a copy of the recorded games.
func (s *GameStats) GetStats() []GameRecord {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]GameRecord, len(s.Games))
	copy(out, s.Games)
	return out
}

// SaveToFile writes the statistics as JSON, creating parent directories.
func (s *GameStats) SaveToFile(path string) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create stats directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats data: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	return nil
}

// LoadFromFile reads statistics written by SaveToFile. Rolling-window state
// is not persisted and starts empty.
func LoadFromFile(path string) (*GameStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	s := NewGameStats("")
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to decode stats file: %w", err)
	}
	return s, nil
}
