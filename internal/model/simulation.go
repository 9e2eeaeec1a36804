// Package model 包含了应用的数据模型定义。
package model

// 声明校验的三种裁定结果。
// not_mentioned 保持中立：答案对某条事实保持沉默，不算支持也不算反驳。
const (
	VerdictSupported    = "supported"
	VerdictContradicted = "contradicted"
	VerdictNotMentioned = "not_mentioned"
)

// SimulationRequest 是仿真边界的请求体。
// 租户身份来自经过认证的请求主体，而不是请求体本身。
type SimulationRequest struct {
	Prompt          string `json:"prompt" binding:"required"`
	ManifestVersion string `json:"manifestVersion" binding:"required"`
}

// ScoreResult 是单个模型回答的最终评分。
// 一旦为某个缓存键存储过，就不再重新计算。
type ScoreResult struct {
	Divergence      float64 `json:"divergence"`
	ClaimAccuracy   float64 `json:"claimAccuracy"`
	AccuracyPercent float64 `json:"accuracyPercent"`
	Hallucination   bool    `json:"hasHallucination"`
}

// ProviderResult 是仿真响应中单个提供商的条目。
// Score 为 nil 表示该提供商在重试耗尽后仍然失败，此时 Error 描述原因；
// 单个提供商的失败从不影响其他提供商的结果。
type ProviderResult struct {
	Provider  string       `json:"provider"`
	Answer    string       `json:"answer,omitempty"`
	Error     string       `json:"error,omitempty"`
	Synthetic bool         `json:"synthetic,omitempty"`
	Verdicts  []string     `json:"verdicts,omitempty"`
	Score     *ScoreResult `json:"score,omitempty"`
}

// SimulationResponse 是仿真边界的响应体。
type SimulationResponse struct {
	Results []ProviderResult `json:"perProviderResults"`
	Cached  bool             `json:"cached"`
}

// WebSocket 流式仿真的帧类型。
const (
	FrameProviderResult = "provider_result"
	FrameDone           = "done"
	FrameError          = "error"
)

// StreamFrame 是流式仿真下发的单帧：每个提供商完成评分后推送一帧
// provider_result，全部结束后推送一帧 done。
type StreamFrame struct {
	Type   string          `json:"type"`
	Result *ProviderResult `json:"result,omitempty"`
	Cached bool            `json:"cached,omitempty"`
	Error  string          `json:"error,omitempty"`
}
