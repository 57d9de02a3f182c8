package ai

import (
	"context"
	"math"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// SafeEmbedder applies the degraded-embedding contract on top of an
// IEmbedder: whitespace-only input or a provider failure yields the zero
// vector of the configured dimension instead of an error. Callers treat a
// zero vector as "no usable semantic content"; cosine similarity against it
// is defined as 0.
type SafeEmbedder struct {
	next IEmbedder
	dims int
}

func NewSafeEmbedder(next IEmbedder, dims int) *SafeEmbedder {
	return &SafeEmbedder{next: next, dims: dims}
}

func (s *SafeEmbedder) Dimensions() int {
	return s.dims
}

func (s *SafeEmbedder) ModelName() string {
	if s.next == nil {
		return ""
	}
	return s.next.ModelName()
}

func (s *SafeEmbedder) Embed(ctx context.Context, text string, taskType string) []float32 {
	if strings.TrimSpace(text) == "" {
		return make([]float32, s.dims)
	}
	if s.next == nil {
		return make([]float32, s.dims)
	}
	values, err := s.next.Embed(ctx, text, taskType)
	if err != nil {
		logutil.GetLogger(ctx).Warn("embedding degraded to zero vector",
			zap.String("task_type", taskType), zap.Error(err))
		return make([]float32, s.dims)
	}
	if len(values) != s.dims {
		logutil.GetLogger(ctx).Warn("embedding dimension mismatch, degrading to zero vector",
			zap.Int("got", len(values)), zap.Int("want", s.dims))
		return make([]float32, s.dims)
	}
	return values
}

// EmbedMany preserves input order and applies the per-element degrade rule;
// one degenerate element never fails the batch.
func (s *SafeEmbedder) EmbedMany(ctx context.Context, texts []string, taskType string) [][]float32 {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		results[i] = s.Embed(ctx, text, taskType)
	}
	return results
}

func IsZeroVector(values []float32) bool {
	for _, v := range values {
		if v != 0 {
			return false
		}
	}
	return true
}

func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
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
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
