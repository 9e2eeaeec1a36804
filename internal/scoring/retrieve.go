package scoring

import (
	"sort"

	"lcrs-go/internal/model"
)

// DefaultTopK 是检索段落数的缺省值。
const DefaultTopK = 5

// RankedChunk 是一次检索命中的分块及其相似度。
type RankedChunk struct {
	Chunk      *model.ManifestChunk
	Similarity float64
}

// Retrieve 在进程内按余弦相似度对分块排序，返回前 k 个。
// 排序是稳定的：相似度相同的分块保持原始顺序。k<=0 时使用 DefaultTopK。
func Retrieve(queryVector []float32, chunks []*model.ManifestChunk, k int) []RankedChunk {
	if k <= 0 {
		k = DefaultTopK
	}

	ranked := make([]RankedChunk, 0, len(chunks))
	for _, chunk := range chunks {
		ranked = append(ranked, RankedChunk{
			Chunk:      chunk,
			Similarity: CosineSimilarity(queryVector, chunk.Embedding),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}
