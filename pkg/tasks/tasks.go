// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// DocumentProcessingTask represents one manifest version waiting to be processed.
// ObjectName 指向 MinIO 暂存桶里的原始文件，处理完成后对象会被删除。
type DocumentProcessingTask struct {
	TenantID   uint   `json:"tenant_id"`
	VersionID  string `json:"version_id"`
	ObjectName string `json:"object_name"`
	FileName   string `json:"file_name"`
	Title      string `json:"title"`
}
