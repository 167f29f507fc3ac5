package vector

import "math"

// InnerProduct returns the inner product of two vectors (for normalized vectors equals cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// CosineSimilarity returns the cosine similarity of a and b, or 0 when either is a zero vector.
func CosineSimilarity(a, b []float32) float64 {
	na, nb := InnerProduct(a, a), InnerProduct(b, b)
	if na == 0 || nb == 0 {
		return 0
	}
	return InnerProduct(a, b) / (math.Sqrt(na) * math.Sqrt(nb))
}
