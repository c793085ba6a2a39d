package ai

import "math"

// NormalizeVector scales a vector to unit length so dot-product
// similarity behaves as cosine similarity. Every vector persisted or
// compared against the store goes through this at the embed boundary.
// A zero vector stays zero.
func NormalizeVector(v []float32) []float32 {
	var magnitude float32
	for _, val := range v {
		magnitude += val * val
	}
	magnitude = float32(math.Sqrt(float64(magnitude)))

	result := make([]float32, len(v))
	if magnitude == 0 {
		return result
	}

	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}
