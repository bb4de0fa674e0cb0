package dedupe

import (
	"github.com/viterin/vek/vek32"
)

// cosine is the similarity between two title embeddings. Mismatched or
// empty vectors never match.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	return float64(vek32.CosineSimilarity(a, b))
}
