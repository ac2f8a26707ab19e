// Package index implements the append-only, similarity-queryable fragment
// stores, one per source kind, plus their snapshot persistence.
package index

import (
	"hash/fnv"
	"math"
	"strings"
)

// HashingEmbedder is the default Embedder: a deterministic token-hash
// vectorizer. It carries no model dependency; real embedding models plug
// in behind the same interface.
type HashingEmbedder struct {
	dim int
}

// NewHashingEmbedder builds an embedder producing vectors of dim
// dimensions.
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &HashingEmbedder{dim: dim}
}

// Embed maps text to an L2-normalized bag-of-hashed-tokens vector.
// Equal inputs always produce equal vectors.
func (e *HashingEmbedder) Embed(text string) []float32 {
	vec := make([]float32, e.dim)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(token, ".,;:!?()[]\"'")))
		vec[h.Sum32()%uint32(e.dim)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// cosine computes the similarity of two vectors of equal length. Vectors
// from HashingEmbedder are pre-normalized so this is a dot product, but
// arbitrary embedders may not normalize.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
