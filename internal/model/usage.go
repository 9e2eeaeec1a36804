// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// UsageRecord 对应于数据库中的 'usage_records' 表。
// 每次成功的非缓存仿真追加一行，无论有多少提供商参与。
// 账本只追加：引擎从不更新或删除其中的记录，配额按账期内的行数统计。
type UsageRecord struct {
	ID            uint                   `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID      uint                   `gorm:"not null;index:idx_tenant_created" json:"tenantId"`
	VersionID     string                 `gorm:"type:varchar(36);not null" json:"versionId"`
	PromptHash    string                 `gorm:"type:varchar(64);not null" json:"promptHash"`
	ProviderCount int                    `gorm:"not null" json:"providerCount"`
	Scores        []ProviderScoreSummary `gorm:"type:longtext;serializer:json" json:"scores"`
	CreatedAt     time.Time              `gorm:"autoCreateTime;index:idx_tenant_created" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (UsageRecord) TableName() string {
	return "usage_records"
}

// ProviderScoreSummary 是账本中记录的单个提供商的最终得分摘要。
type ProviderScoreSummary struct {
	Provider        string  `json:"provider"`
	AccuracyPercent float64 `json:"accuracyPercent"`
	Hallucination   bool    `json:"hasHallucination"`
	Synthetic       bool    `json:"synthetic,omitempty"`
	Failed          bool    `json:"failed,omitempty"`
}

// UsageReport 是返回给调用方的当前账期用量汇总。
type UsageReport struct {
	Plan       string        `json:"plan"`
	CycleStart LocalTime     `json:"cycleStart"`
	Used       int64         `json:"used"`
	Cap        int           `json:"cap"`
	Remaining  int64         `json:"remaining"`
	Records    []UsageRecord `json:"records"`
}
