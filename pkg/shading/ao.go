package shading

import (
	"github.com/df07/go-raymarcher/pkg/core"
	"github.com/df07/go-raymarcher/pkg/march"
)

// AOEvaluator estimates ambient occlusion by sampling the field along the
// surface normal
type AOEvaluator struct {
	field march.Field
}

// NewAOEvaluator creates an ambient occlusion evaluator over field
func NewAOEvaluator(field march.Field) *AOEvaluator {
	return &AOEvaluator{field: field}
}

// Occlusion returns a darkening factor in [0,1], 1 meaning unoccluded.
// Sample i sits at point + normal·stepSize·i and contributes the amount by
// which the field is closer than the sample's own offset, weighted by 1/2^i.
func (e *AOEvaluator) Occlusion(point, normal core.Vec3, stepSize, intensity float64, steps int) float64 {
	if steps <= 0 || stepSize <= 0 {
		return 1
	}

	occlusion := 0.0
	weight := 1.0
	for i := 1; i <= steps; i++ {
		weight *= 0.5
		offset := float64(i) * stepSize
		d := e.field.Evaluate(point.Add(normal.Multiply(offset))).Distance
		occlusion += max(0, offset-d) * weight
	}

	return max(0, min(1, 1-intensity*occlusion))
}
