// Package march implements sphere tracing of rays through a distance field.
package march

import (
	"math"

	"github.com/df07/go-raymarcher/pkg/core"
	"github.com/df07/go-raymarcher/pkg/sdf"
)

// MinAccuracy replaces non-positive accuracy thresholds so the hit test
// stays meaningful
const MinAccuracy = 1e-6

// Field is the distance field a ray is marched through
type Field interface {
	Evaluate(p core.Vec3) sdf.Sample
}

// Result is the outcome of a march. When Hit is false only Steps is set.
type Result struct {
	Hit      bool
	Point    core.Vec3  // Surface point
	Distance float64    // Distance traveled along the ray
	Steps    int        // Field evaluations performed
	Sample   sdf.Sample // Field sample at the hit point
}

// Step describes one field evaluation during a march
type Step struct {
	Iteration int     // 1-based evaluation count
	T         float64 // Distance traveled before this evaluation
	Distance  float64 // Field distance at the sample point
}

// Marcher advances rays through a field. It holds no per-ray state and is
// safe for concurrent use as long as the field is.
type Marcher struct {
	field Field
}

// NewMarcher creates a marcher over the given field
func NewMarcher(field Field) *Marcher {
	return &Marcher{field: field}
}

// Field returns the field being marched
func (m *Marcher) Field() Field {
	return m.field
}

// March sphere-traces the ray. The direction should be unit length so that
// accuracy and maxDistance are in world units.
func (m *Marcher) March(ray core.Ray, maxDistance, accuracy float64, maxIterations int) Result {
	return m.Trace(ray, maxDistance, accuracy, maxIterations, nil)
}

// Trace runs the same loop as March and reports every field evaluation to
// visit before deciding whether to stop
func (m *Marcher) Trace(ray core.Ray, maxDistance, accuracy float64, maxIterations int, visit func(Step)) Result {
	if accuracy <= 0 || math.IsNaN(accuracy) {
		accuracy = MinAccuracy
	}

	t := 0.0
	for i := 0; i < maxIterations; i++ {
		p := ray.At(t)
		sample := m.field.Evaluate(p)
		if visit != nil {
			visit(Step{Iteration: i + 1, T: t, Distance: sample.Distance})
		}

		if sample.Distance <= accuracy {
			return Result{Hit: true, Point: p, Distance: t, Steps: i + 1, Sample: sample}
		}
		if t > maxDistance {
			return Result{Steps: i + 1}
		}
		t += sample.Distance
	}

	return Result{Steps: max(maxIterations, 0)}
}
