// Package vecmath provides the small set of vector kernels the HNSW index
// and semantic/vector search paths need: dot product, L2 norm, cosine
// similarity and mean pooling. It is built on gonum/floats rather than
// hand-rolled loops so the same BLAS-backed kernels the rest of the Go
// numerical ecosystem uses are exercised here too; klauspost/cpuid backs
// HasAVX2, an informational flag reporting whether the CPU supports AVX2
// (it says nothing about how gonum was built), and vecmath itself never
// drops to assembly — true SIMD here would require gonum's
// internal asm package, which is intentionally not vendored in.
package vecmath

import (
	"github.com/klauspost/cpuid/v2"
	"gonum.org/v1/gonum/floats"
)

// HasAVX2 reports whether the CPU this process is running on supports
// AVX2. It is informational only — exposed so callers can log it
// alongside index build parameters, not to branch into a different code
// path.
func HasAVX2() bool {
	return cpuid.CPU.Has(cpuid.AVX2)
}

// Dot returns the dot product of a and b. Panics if the lengths differ,
// matching floats.Dot's own contract.
func Dot(a, b []float32) float32 {
	return float32(floats.Dot(toF64(a), toF64(b)))
}

// Norm returns the Euclidean (L2) norm of v.
func Norm(v []float32) float32 {
	return float32(floats.Norm(toF64(v), 2))
}

// Cosine returns the cosine similarity between a and b, in [-1, 1]. Per
// spec.md's zero-norm handling rule, a zero-norm vector on either side
// yields a similarity of 0 rather than NaN.
func Cosine(a, b []float32) float32 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// MeanPool averages a set of equal-length vectors element-wise. Returns
// nil if vectors is empty.
func MeanPool(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	for _, v := range vectors {
		for i, f := range v {
			sum[i] += float64(f)
		}
	}
	out := make([]float32, dim)
	n := float64(len(vectors))
	for i, s := range sum {
		out[i] = float32(s / n)
	}
	return out
}

func toF64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
