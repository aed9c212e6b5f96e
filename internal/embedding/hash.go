package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// HashEmbedder derives deterministic pseudo-vectors from text content.
// Identical texts always map to identical unit vectors, which makes it
// useful for tests and offline smoke runs; it carries no semantics.
type HashEmbedder struct {
	Dim int
}

func (e *HashEmbedder) Dimension() int {
	if e.Dim <= 0 {
		return 8
	}
	return e.Dim
}

func (e *HashEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	dim := e.Dimension()
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, dim)
		sum := sha256.Sum256([]byte(text))
		var norm float64
		for j := 0; j < dim; j++ {
			// Re-hash per component to decorrelate dimensions.
			component := sha256.Sum256(append(sum[:], byte(j)))
			v := float32(binary.BigEndian.Uint32(component[:4])%2000)/1000.0 - 1.0
			vec[j] = v
			norm += float64(v) * float64(v)
		}
		if norm > 0 {
			scale := float32(1.0 / math.Sqrt(norm))
			for j := range vec {
				vec[j] *= scale
			}
		}
		out[i] = vec
	}
	return out, nil
}
