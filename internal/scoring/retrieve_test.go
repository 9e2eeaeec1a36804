package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lcrs-go/internal/model"
)

func chunkWith(index int, embedding []float32) *model.ManifestChunk {
	return &model.ManifestChunk{
		VersionID:  "v1",
		ChunkIndex: index,
		Content:    "chunk",
		Embedding:  embedding,
	}
}

func TestRetrieveOrdersBySimilarity(t *testing.T) {
	query := []float32{1, 0}
	chunks := []*model.ManifestChunk{
		chunkWith(0, []float32{0, 1}),     // 相似度 0
		chunkWith(1, []float32{1, 0}),     // 相似度 1
		chunkWith(2, []float32{-1, 0}),    // 相似度 -1
		chunkWith(3, []float32{0.7, 0.7}), // 相似度 ~0.707
	}

	ranked := Retrieve(query, chunks, 10)

	require.Len(t, ranked, 4)
	assert.Equal(t, 1, ranked[0].Chunk.ChunkIndex)
	assert.Equal(t, 3, ranked[1].Chunk.ChunkIndex)
	assert.Equal(t, 0, ranked[2].Chunk.ChunkIndex)
	assert.Equal(t, 2, ranked[3].Chunk.ChunkIndex)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Similarity, ranked[i].Similarity)
	}
}

func TestRetrieveLimitsToK(t *testing.T) {
	query := []float32{1, 0}
	chunks := []*model.ManifestChunk{
		chunkWith(0, []float32{1, 0}),
		chunkWith(1, []float32{0.9, 0.1}),
		chunkWith(2, []float32{0, 1}),
	}

	ranked := Retrieve(query, chunks, 2)

	require.Len(t, ranked, 2)
	assert.Equal(t, 0, ranked[0].Chunk.ChunkIndex)
	assert.Equal(t, 1, ranked[1].Chunk.ChunkIndex)
}

// 相似度相同的分块保持文档内的原始顺序。
func TestRetrieveStableTies(t *testing.T) {
	query := []float32{1, 0}
	same := []float32{0.5, 0.5}
	chunks := []*model.ManifestChunk{
		chunkWith(0, same),
		chunkWith(1, same),
		chunkWith(2, same),
	}

	ranked := Retrieve(query, chunks, 3)

	require.Len(t, ranked, 3)
	assert.Equal(t, 0, ranked[0].Chunk.ChunkIndex)
	assert.Equal(t, 1, ranked[1].Chunk.ChunkIndex)
	assert.Equal(t, 2, ranked[2].Chunk.ChunkIndex)
}

func TestRetrieveDefaultTopK(t *testing.T) {
	query := []float32{1, 0}
	chunks := make([]*model.ManifestChunk, 0, 8)
	for i := 0; i < 8; i++ {
		chunks = append(chunks, chunkWith(i, []float32{1, float32(i)}))
	}

	ranked := Retrieve(query, chunks, 0)

	assert.Len(t, ranked, DefaultTopK)
}

func TestRetrieveFewerChunksThanK(t *testing.T) {
	query := []float32{1, 0}
	chunks := []*model.ManifestChunk{chunkWith(0, []float32{1, 0})}

	ranked := Retrieve(query, chunks, 5)

	assert.Len(t, ranked, 1)
}

func TestRetrieveEmptyChunks(t *testing.T) {
	assert.Empty(t, Retrieve([]float32{1, 0}, nil, 5))
}
