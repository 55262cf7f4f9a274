package sdf

// SmoothMin blends two distances with the polynomial smooth minimum.
//
// k is the blend radius in world units: distances further apart than k are
// combined with a plain minimum, closer ones are pulled together by up to k/4.
// k <= 0 degrades to the hard minimum. The returned weight h is the share of a
// in the blend and is reused for color so that color follows the surface.
func SmoothMin(a, b, k float64) (d, h float64) {
	h = BlendWeight(a, b, k)
	if k <= 0 {
		return min(a, b), h
	}
	return b*(1-h) + a*h - k*h*(1-h), h
}

// BlendWeight returns the share of a in the smooth minimum of a and b
func BlendWeight(a, b, k float64) float64 {
	if k <= 0 {
		if a <= b {
			return 1
		}
		return 0
	}
	return clamp01(0.5 + 0.5*(b-a)/k)
}

func clamp01(x float64) float64 {
	return max(0, min(1, x))
}
