// Package model 定义了与数据库表对应的 Go 结构体。
package model

// EsPassage 定义了存储在 Elasticsearch 中的段落结构。
// 它与 MySQL 中的 manifest_chunks 一一对应，只服务于段落检索接口；
// 仿真本身的检索走进程内余弦排序，不依赖这个索引。
type EsPassage struct {
	PassageID    string    `json:"passage_id"` // 唯一标识，versionId + chunkIndex
	TenantID     uint      `json:"tenant_id"`
	VersionID    string    `json:"version_id"`
	ChunkIndex   int       `json:"chunk_index"`
	Content      string    `json:"content"`
	Vector       []float32 `json:"vector"` // 段落内容的向量表示
	ModelVersion string    `json:"model_version"`
}

// PassageHit 定义了返回给调用方的段落搜索结果结构。
type PassageHit struct {
	VersionID  string  `json:"versionId"`
	Title      string  `json:"title"`
	ChunkIndex int     `json:"chunkIndex"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}
