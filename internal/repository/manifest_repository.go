// Package repository 提供了数据访问层的实现。
package repository

import (
	"gorm.io/gorm"
	"lcrs-go/internal/model"
)

// ManifestRepository 定义了对 manifests 与 manifest_chunks 表的数据操作接口。
// 版本一旦写成 ready 就不再变更内容，latest 指针是唯一可变的部分。
type ManifestRepository interface {
	Create(manifest *model.Manifest) error
	FindByVersionID(versionID string) (*model.Manifest, error)
	FindByVersionIDs(versionIDs []string) ([]*model.Manifest, error)
	ListByTenant(tenantID uint) ([]*model.Manifest, error)
	// FinishProcessing 把处理结果写回版本记录并将状态置为 ready，
	// 同一事务里把该租户的 latest 指针移到这个版本上。
	FinishProcessing(manifest *model.Manifest) error
	MarkFailed(versionID string, reason string) error
	DeleteByVersionID(versionID string) error

	BatchCreateChunks(chunks []*model.ManifestChunk) error
	FindChunksByVersionID(versionID string) ([]*model.ManifestChunk, error)
	DeleteChunksByVersionID(versionID string) error
}

type manifestRepository struct {
	db *gorm.DB
}

// NewManifestRepository 创建一个新的 ManifestRepository 实例。
func NewManifestRepository(db *gorm.DB) ManifestRepository {
	return &manifestRepository{db: db}
}

// Create 创建一条新的文档版本记录。
func (r *manifestRepository) Create(manifest *model.Manifest) error {
	return r.db.Create(manifest).Error
}

// FindByVersionID 根据版本ID查找文档版本。
func (r *manifestRepository) FindByVersionID(versionID string) (*model.Manifest, error) {
	var manifest model.Manifest
	err := r.db.Where("version_id = ?", versionID).First(&manifest).Error
	if err != nil {
		return nil, err
	}
	return &manifest, nil
}

// FindByVersionIDs 批量查找文档版本，用于检索结果的标题回填。
func (r *manifestRepository) FindByVersionIDs(versionIDs []string) ([]*model.Manifest, error) {
	if len(versionIDs) == 0 {
		return []*model.Manifest{}, nil
	}
	var manifests []*model.Manifest
	err := r.db.Where("version_id IN ?", versionIDs).Find(&manifests).Error
	return manifests, err
}

// ListByTenant 列出租户的所有文档版本，新的在前。
func (r *manifestRepository) ListByTenant(tenantID uint) ([]*model.Manifest, error) {
	var manifests []*model.Manifest
	err := r.db.Where("tenant_id = ?", tenantID).Order("created_at DESC").Find(&manifests).Error
	return manifests, err
}

// FinishProcessing 写回处理结果并移动 latest 指针，两个动作在同一事务内完成。
func (r *manifestRepository) FinishProcessing(manifest *model.Manifest) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"full_text":        manifest.FullText,
			"global_embedding": manifest.GlobalEmbedding,
			"embedding_model":  manifest.EmbeddingModel,
			"embedding_dims":   manifest.EmbeddingDims,
			"chunk_count":      manifest.ChunkCount,
			"claim_count":      manifest.ClaimCount,
			"status":           model.ManifestStatusReady,
			"fail_reason":      "",
		}
		if err := tx.Model(&model.Manifest{}).
			Where("version_id = ?", manifest.VersionID).
			Updates(updates).Error; err != nil {
			return err
		}

		// 同租户旧的 latest 指针清零，最新处理完成的版本成为 latest
		if err := tx.Model(&model.Manifest{}).
			Where("tenant_id = ? AND latest = ?", manifest.TenantID, true).
			Update("latest", false).Error; err != nil {
			return err
		}
		return tx.Model(&model.Manifest{}).
			Where("version_id = ?", manifest.VersionID).
			Update("latest", true).Error
	})
}

// MarkFailed 把版本标记为处理失败并记录原因。
func (r *manifestRepository) MarkFailed(versionID string, reason string) error {
	if len(reason) > 500 {
		reason = reason[:500]
	}
	return r.db.Model(&model.Manifest{}).
		Where("version_id = ?", versionID).
		Updates(map[string]interface{}{
			"status":      model.ManifestStatusFailed,
			"fail_reason": reason,
		}).Error
}

// DeleteByVersionID 删除一个版本及其全部分块与声明。
func (r *manifestRepository) DeleteByVersionID(versionID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("version_id = ?", versionID).Delete(&model.ManifestChunk{}).Error; err != nil {
			return err
		}
		if err := tx.Where("version_id = ?", versionID).Delete(&model.ManifestClaim{}).Error; err != nil {
			return err
		}
		return tx.Where("version_id = ?", versionID).Delete(&model.Manifest{}).Error
	})
}

// BatchCreateChunks 批量创建分块记录。
func (r *manifestRepository) BatchCreateChunks(chunks []*model.ManifestChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.CreateInBatches(chunks, 100).Error // 每100条记录一批
}

// FindChunksByVersionID 按分块顺序返回一个版本的全部分块。
func (r *manifestRepository) FindChunksByVersionID(versionID string) ([]*model.ManifestChunk, error) {
	var chunks []*model.ManifestChunk
	err := r.db.Where("version_id = ?", versionID).Order("chunk_index ASC").Find(&chunks).Error
	return chunks, err
}

// DeleteChunksByVersionID 删除一个版本的全部分块记录。
func (r *manifestRepository) DeleteChunksByVersionID(versionID string) error {
	return r.db.Where("version_id = ?", versionID).Delete(&model.ManifestChunk{}).Error
}
