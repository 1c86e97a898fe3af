package embed

import (
	"crypto/sha256"
	"encoding/binary"
)

// Mock is a deterministic hash-derived backend for testing. Vectors are
// expanded from SHA-256 of the input and pass through the same L2
// normalization as the production pipeline.
type Mock struct {
	dims int
}

// NewMock creates a mock backend with the given dimensionality.
func NewMock(dims int) *Mock {
	if dims <= 0 {
		dims = 64
	}
	return &Mock{dims: dims}
}

// Dims returns the vector dimensionality.
func (m *Mock) Dims() int {
	return m.dims
}

// Embed derives a unit vector from the text's hash.
func (m *Mock) Embed(text string) ([]float32, error) {
	v := make([]float32, m.dims)
	seed := sha256.Sum256([]byte(text))

	// Stretch the digest by rehashing a counter-suffixed copy until
	// every dimension is filled.
	block := seed
	idx := 0
	counter := byte(0)
	for idx < m.dims {
		for off := 0; off+4 <= len(block) && idx < m.dims; off += 4 {
			bits := binary.LittleEndian.Uint32(block[off:])
			// map to [-1, 1)
			v[idx] = float32(int32(bits)) / float32(1<<31)
			idx++
		}
		counter++
		block = sha256.Sum256(append(seed[:], counter))
	}

	return l2Normalize(v), nil
}

// EmbedBatch embeds each text independently.
func (m *Mock) EmbedBatch(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.Embed(text)
		if err != nil {
			continue
		}
		out[i] = v
	}
	return out, nil
}
