package renderer

import "github.com/df07/go-raymarcher/pkg/march"

// RenderStats contains statistics about the rendering process
type RenderStats struct {
	TotalPixels  int     `json:"totalPixels"`  // Total number of pixels rendered
	Hits         int     `json:"hits"`         // Primary rays that reached a surface
	Misses       int     `json:"misses"`       // Primary rays that fell through to the environment
	TotalSteps   int     `json:"totalSteps"`   // Field evaluations of all primary marches
	AverageSteps float64 `json:"averageSteps"` // Mean field evaluations per pixel
	MaxSteps     int     `json:"maxSteps"`     // Most field evaluations taken by a single pixel
}

// Record adds one primary march result
func (s *RenderStats) Record(result march.Result) {
	s.TotalPixels++
	if result.Hit {
		s.Hits++
	} else {
		s.Misses++
	}
	s.TotalSteps += result.Steps
	s.MaxSteps = max(s.MaxSteps, result.Steps)
}

// Merge folds other into s and refreshes the average
func (s *RenderStats) Merge(other RenderStats) {
	s.TotalPixels += other.TotalPixels
	s.Hits += other.Hits
	s.Misses += other.Misses
	s.TotalSteps += other.TotalSteps
	s.MaxSteps = max(s.MaxSteps, other.MaxSteps)
	s.finalize()
}

// HitRate returns the fraction of pixels that hit a surface
func (s RenderStats) HitRate() float64 {
	if s.TotalPixels == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.TotalPixels)
}

func (s *RenderStats) finalize() {
	if s.TotalPixels == 0 {
		s.AverageSteps = 0
		return
	}
	s.AverageSteps = float64(s.TotalSteps) / float64(s.TotalPixels)
}
