// Package similarity provides vector similarity functions for float32 embeddings.
package similarity

import "math"

// Cosine returns the cosine similarity of a and b, accumulated in float64.
// Mismatched lengths, empty vectors and zero-norm vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		af, bf := float64(a[i]), float64(b[i])
		dot += af * bf
		na += af * af
		nb += bf * bf
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// MeanCosine returns the average cosine similarity of query against each vector in set.
// An empty set yields 0.
func MeanCosine(query []float32, set [][]float32) float64 {
	if len(set) == 0 {
		return 0
	}
	var sum float64
	for _, v := range set {
		sum += Cosine(query, v)
	}
	return sum / float64(len(set))
}

// Distance converts a cosine distance (as reported by RediSearch) into a similarity.
func Distance(d float64) float64 { return 1 - d }
