package scoring

import (
	"math"

	"lcrs-go/internal/model"
)

// 聚合权重与幻觉阈值。
// 偏离度权重 0.4、声明准确率权重 0.6，accuracyPercent 低于 55 即判为幻觉。
const (
	divergenceWeight       = 0.4
	claimAccuracyWeight    = 0.6
	hallucinationThreshold = 55.0
)

// ClaimAccuracy 计算声明准确率：supported 的数量除以声明总数。
// not_mentioned 保持中立，不计入支持也不计入反驳。没有声明时返回 0。
func ClaimAccuracy(verdicts []string) float64 {
	if len(verdicts) == 0 {
		return 0.0
	}
	supported := 0
	for _, verdict := range verdicts {
		if verdict == model.VerdictSupported {
			supported++
		}
	}
	return float64(supported) / float64(len(verdicts))
}

// HasContradiction 判断裁定列表中是否存在 contradicted。
func HasContradiction(verdicts []string) bool {
	for _, verdict := range verdicts {
		if verdict == model.VerdictContradicted {
			return true
		}
	}
	return false
}

// Aggregate 把偏离度与声明裁定合成最终评分。
// blended = 0.4*(1-divergence) + 0.6*claimAccuracy，换算成百分比后保留一位小数。
// 幻觉标记是一个 OR 规则：accuracyPercent 低于阈值，或任何一条声明被反驳。
// 只要有一条事实被答案反驳，无论总分多高都要打标记。
func Aggregate(divergence float64, verdicts []string) model.ScoreResult {
	claimAccuracy := ClaimAccuracy(verdicts)
	blended := divergenceWeight*(1.0-divergence) + claimAccuracyWeight*claimAccuracy
	accuracyPercent := math.Round(blended*1000) / 10

	return model.ScoreResult{
		Divergence:      divergence,
		ClaimAccuracy:   claimAccuracy,
		AccuracyPercent: accuracyPercent,
		Hallucination:   accuracyPercent < hallucinationThreshold || HasContradiction(verdicts),
	}
}
