// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Manifest 的处理状态。
const (
	ManifestStatusProcessing = "processing"
	ManifestStatusReady      = "ready"
	ManifestStatusFailed     = "failed"
)

// Vector 是以 JSON 形式存储在数据库列中的向量。
type Vector []float32

// Manifest 对应于数据库中的 'manifests' 表。
// 一条记录是一个文档版本：同一文档再次上传会生成新的版本，
// 已写入的版本除 status 和 latest 指针外不再变更。
type Manifest struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	VersionID       string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"versionId"`
	TenantID        uint      `gorm:"not null;index" json:"tenantId"`
	Title           string    `gorm:"type:varchar(255);not null" json:"title"`
	FullText        string    `gorm:"type:longtext" json:"-"`
	GlobalEmbedding Vector    `gorm:"type:longtext;serializer:json" json:"-"`
	EmbeddingModel  string    `gorm:"type:varchar(100)" json:"embeddingModel"`
	EmbeddingDims   int       `gorm:"default:0" json:"embeddingDims"`
	Status          string    `gorm:"type:varchar(20);not null;default:processing" json:"status"`
	FailReason      string    `gorm:"type:varchar(500)" json:"failReason,omitempty"`
	ChunkCount      int       `gorm:"default:0" json:"chunkCount"`
	ClaimCount      int       `gorm:"default:0" json:"claimCount"`
	Latest          bool      `gorm:"not null;default:false" json:"latest"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Manifest) TableName() string {
	return "manifests"
}

// ManifestChunk 对应于数据库中的 'manifest_chunks' 表。
// 每条记录是文档版本的一个重叠分块，按 (version_id, chunk_index) 寻址，
// 创建后不再变更，只随父版本一起删除。
type ManifestChunk struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	VersionID  string `gorm:"type:varchar(36);not null;uniqueIndex:uk_version_chunk" json:"versionId"`
	ChunkIndex int    `gorm:"not null;uniqueIndex:uk_version_chunk" json:"chunkIndex"`
	Content    string `gorm:"type:text;not null" json:"content"`
	Embedding  Vector `gorm:"type:longtext;serializer:json" json:"-"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ManifestChunk) TableName() string {
	return "manifest_chunks"
}

// ManifestClaim 对应于数据库中的 'manifest_claims' 表。
// 声明由确定性抽取（temperature 0）得到，同一版本重新抽取会得到同样的列表。
type ManifestClaim struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	VersionID  string `gorm:"type:varchar(36);not null;index" json:"versionId"`
	ClaimIndex int    `gorm:"not null" json:"claimIndex"`
	Content    string `gorm:"type:text;not null" json:"content"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ManifestClaim) TableName() string {
	return "manifest_claims"
}

// ManifestSummary 是返回给调用方的版本列表条目。
type ManifestSummary struct {
	VersionID  string    `json:"versionId"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	Latest     bool      `json:"latest"`
	ChunkCount int       `json:"chunkCount"`
	ClaimCount int       `json:"claimCount"`
	CreatedAt  LocalTime `json:"createdAt"`
}

// ManifestDetail 是单个版本的详情，包含提取出的声明摘要。
type ManifestDetail struct {
	ManifestSummary
	EmbeddingModel string   `json:"embeddingModel"`
	FailReason     string   `json:"failReason,omitempty"`
	Claims         []string `json:"claims"`
}
