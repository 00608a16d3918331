package deliver

import "math"

// NormalizeVector scales a vector to unit length in place and returns
// it. Zero and empty vectors are returned unchanged; the downstream
// store compares by cosine similarity, which unit length makes a plain
// dot product.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
