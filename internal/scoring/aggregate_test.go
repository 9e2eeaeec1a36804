package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lcrs-go/internal/model"
)

func TestClaimAccuracy(t *testing.T) {
	tests := []struct {
		name     string
		verdicts []string
		want     float64
	}{
		{"all supported", []string{model.VerdictSupported, model.VerdictSupported}, 1.0},
		{"half supported", []string{model.VerdictSupported, model.VerdictContradicted}, 0.5},
		{"none supported", []string{model.VerdictContradicted, model.VerdictNotMentioned}, 0.0},
		{"not_mentioned 不算支持", []string{model.VerdictSupported, model.VerdictNotMentioned}, 0.5},
		{"empty verdicts", nil, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ClaimAccuracy(tt.verdicts), 1e-9)
		})
	}
}

func TestHasContradiction(t *testing.T) {
	assert.True(t, HasContradiction([]string{model.VerdictSupported, model.VerdictContradicted}))
	assert.False(t, HasContradiction([]string{model.VerdictSupported, model.VerdictNotMentioned}))
	assert.False(t, HasContradiction(nil))
}

// TestAggregateBlend 验证文档里的基准算例：
// 偏离度 0.1、声明准确率 0.8 时 blended = 0.4*0.9 + 0.6*0.8 = 0.84，即 84.0 分。
func TestAggregateBlend(t *testing.T) {
	verdicts := []string{
		model.VerdictSupported,
		model.VerdictSupported,
		model.VerdictSupported,
		model.VerdictSupported,
		model.VerdictContradicted,
	}

	score := Aggregate(0.1, verdicts)

	assert.InDelta(t, 0.1, score.Divergence, 1e-9)
	assert.InDelta(t, 0.8, score.ClaimAccuracy, 1e-9)
	assert.InDelta(t, 84.0, score.AccuracyPercent, 1e-9)
	// 即便 84 分远高于阈值，有一条声明被反驳就必须打幻觉标记
	assert.True(t, score.Hallucination)
}

func TestAggregateHallucinationFlag(t *testing.T) {
	tests := []struct {
		name       string
		divergence float64
		verdicts   []string
		wantFlag   bool
	}{
		{
			name:       "高分且无反驳",
			divergence: 0.0,
			verdicts:   []string{model.VerdictSupported, model.VerdictSupported},
			wantFlag:   false,
		},
		{
			name:       "高分但存在反驳",
			divergence: 0.0,
			verdicts:   []string{model.VerdictSupported, model.VerdictContradicted},
			wantFlag:   true,
		},
		{
			name:       "低分且无反驳",
			divergence: 0.9,
			verdicts:   []string{model.VerdictNotMentioned, model.VerdictNotMentioned},
			wantFlag:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := Aggregate(tt.divergence, tt.verdicts)
			assert.Equal(t, tt.wantFlag, score.Hallucination)
		})
	}
}

// 阈值判断是严格小于：恰好 55.0 分不打标记。
func TestAggregateThresholdBoundary(t *testing.T) {
	// 0.4*(1-0.375) + 0.6*0.5 = 0.25 + 0.30 = 0.55
	verdicts := []string{model.VerdictSupported, model.VerdictNotMentioned}

	score := Aggregate(0.375, verdicts)

	require.InDelta(t, 55.0, score.AccuracyPercent, 1e-9)
	assert.False(t, score.Hallucination)
}

func TestAggregateRoundsToOneDecimal(t *testing.T) {
	// 0.4*0.877 + 0.6*1.0 = 0.9508 → 95.1
	verdicts := []string{model.VerdictSupported}

	score := Aggregate(0.123, verdicts)

	assert.InDelta(t, 95.1, score.AccuracyPercent, 1e-9)
}

func TestAggregateEmptyVerdicts(t *testing.T) {
	// 没有任何裁定时声明准确率为 0，得分只剩偏离度的贡献
	score := Aggregate(0.0, nil)

	assert.InDelta(t, 40.0, score.AccuracyPercent, 1e-9)
	assert.True(t, score.Hallucination)
}
