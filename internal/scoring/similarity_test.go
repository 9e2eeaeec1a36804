package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarityIdentical(t *testing.T) {
	v := []float32{0.3, 0.5, 0.2}
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
}

func TestCosineSimilarityOpposite(t *testing.T) {
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 2}, []float32{-1, -2}), 1e-9)
}

func TestCosineSimilarityScaleInvariant(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{10, 20, 30}
	assert.InDelta(t, 1.0, CosineSimilarity(a, b), 1e-6)
}

// 零向量、空向量与维度不一致都约定返回 0，调用方不需要区分这些退化情况。
func TestCosineSimilarityDegenerateInputs(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
	}{
		{"zero vector left", []float32{0, 0}, []float32{1, 1}},
		{"zero vector right", []float32{1, 1}, []float32{0, 0}},
		{"both empty", nil, nil},
		{"dimension mismatch", []float32{1, 2}, []float32{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 0.0, CosineSimilarity(tt.a, tt.b))
		})
	}
}

func TestDivergenceIdenticalVectors(t *testing.T) {
	v := []float32{0.1, 0.9, 0.4}
	assert.InDelta(t, 0.0, Divergence(v, v), 1e-9)
}

func TestDivergenceOrthogonalVectors(t *testing.T) {
	assert.InDelta(t, 1.0, Divergence([]float32{1, 0}, []float32{0, 1}), 1e-9)
}

// 余弦为负时偏离度会超过 1，函数不做截断。
func TestDivergenceCanExceedOne(t *testing.T) {
	d := Divergence([]float32{1, 0}, []float32{-1, 0})
	assert.InDelta(t, 2.0, d, 1e-9)
}

func TestDivergenceZeroVectorConvention(t *testing.T) {
	// 退化 embedding 的余弦为 0，偏离度落在 1
	assert.InDelta(t, 1.0, Divergence([]float32{0, 0}, []float32{1, 1}), 1e-9)
}
