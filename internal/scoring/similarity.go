// Package scoring 实现仿真评分的纯计算部分：
// 余弦相似度、语义偏离度，以及把两路信号合成最终得分的聚合规则。
// 这里没有任何 IO，全部函数都是确定性的。
package scoring

import "math"

// CosineSimilarity 计算两个向量的余弦相似度 dot(a,b) / (||a||*||b||)。
// 维度不一致、向量为空或任一向量为零向量时返回 0（退化 embedding 的约定值）。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Divergence 计算语义偏离度 1 - cosineSimilarity。
// 理论范围是 [0,2]（余弦可以为负），语义相关的文本通常落在 [0,1]；
// 这里不做截断，越界值由调用方记录后原样上报。
func Divergence(docEmbedding, answerEmbedding []float32) float64 {
	return 1.0 - CosineSimilarity(docEmbedding, answerEmbedding)
}
