package ai

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name  string
		input []float32
	}{
		{name: "simple", input: []float32{3, 4}},
		{name: "already normalized", input: []float32{1, 0, 0}},
		{name: "negative components", input: []float32{-2, 2, -2}},
		{name: "large magnitude", input: []float32{200, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeVector(tt.input)
			require.Len(t, result, len(tt.input))

			var sumSquares float64
			for _, v := range result {
				sumSquares += float64(v) * float64(v)
			}
			assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-5)
		})
	}
}

func TestNormalizeVector_Zero(t *testing.T) {
	result := NormalizeVector([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, result)
}

func TestNormalizeVector_PreservesDirection(t *testing.T) {
	result := NormalizeVector([]float32{2, 0, 0, 0})
	assert.Equal(t, []float32{1, 0, 0, 0}, result)
}
