// Package embed turns text into fixed-length unit vectors with a fully
// local pipeline: tokenization, embedding-table lookup, mean pooling,
// and L2 normalization. No network calls, no external runtime.
package embed

import "math"

// Backend produces deterministic unit vectors for text.
type Backend interface {
	// Embed returns a unit-length vector for the text.
	Embed(text string) ([]float32, error)

	// EmbedBatch embeds each text independently; a failed entry is nil
	// in the result rather than failing the batch.
	EmbedBatch(texts []string) ([][]float32, error)

	// Dims returns the vector dimensionality.
	Dims() int
}

// fallbackVector is the substitute for inputs that resolve to zero
// tokens or pool to a zero vector: all zeros except the first element.
func fallbackVector(dims int) []float32 {
	v := make([]float32, dims)
	if dims > 0 {
		v[0] = 1.0
	}
	return v
}

// meanPool averages rows elementwise. Rows must share a length.
func meanPool(rows [][]float32, dims int) []float32 {
	if len(rows) == 0 {
		return fallbackVector(dims)
	}
	pooled := make([]float64, dims)
	for _, row := range rows {
		for i, f := range row {
			pooled[i] += float64(f)
		}
	}
	out := make([]float32, dims)
	n := float64(len(rows))
	for i, sum := range pooled {
		out[i] = float32(sum / n)
	}
	return out
}

// l2Normalize scales the vector to unit length, substituting the fixed
// fallback vector when the norm is zero.
func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return fallbackVector(len(v))
	}
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}
