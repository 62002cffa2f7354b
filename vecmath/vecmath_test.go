package vecmath

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCosineIdentical(t *testing.T) {
	a := []float32{1, 2, 3}
	require.InDelta(t, 1.0, Cosine(a, a), 1e-6)
}

func TestCosineOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	require.InDelta(t, 0.0, Cosine(a, b), 1e-6)
}

func TestCosineZeroNorm(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 3}
	require.Equal(t, float32(0), Cosine(a, b))
	require.Equal(t, float32(0), Cosine(b, a))
}

func TestMeanPool(t *testing.T) {
	vs := [][]float32{{1, 2}, {3, 4}, {5, 6}}
	got := MeanPool(vs)
	require.InDeltaSlice(t, []float64{3, 4}, toF64Slice(got), 1e-6)
}

func toF64Slice(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func TestMeanPoolEmpty(t *testing.T) {
	require.Nil(t, MeanPool(nil))
}
