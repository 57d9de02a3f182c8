package service_test

import (
	"context"
)

// stubEmbedder returns canned vectors by exact text, and a fixed fallback
// for anything else. It stands in for the provider chain in service tests.
type stubEmbedder struct {
	vecs     map[string][]float32
	fallback []float32
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{
		vecs:     make(map[string][]float32),
		fallback: basisVec(7),
	}
}

func (s *stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if v, ok := s.vecs[text]; ok {
		return v, nil
	}
	return s.fallback, nil
}

func (s *stubEmbedder) ModelName() string {
	return "stub-model"
}

func basisVec(axis int) []float32 {
	v := make([]float32, 768)
	v[axis] = 1
	return v
}

func diagVec(axes ...int) []float32 {
	v := make([]float32, 768)
	for _, axis := range axes {
		v[axis] = 1
	}
	return v
}
