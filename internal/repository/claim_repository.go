package repository

import (
	"gorm.io/gorm"
	"lcrs-go/internal/model"
)

// ClaimRepository 定义了对 manifest_claims 表的数据操作接口。
type ClaimRepository interface {
	// ReplaceForVersion 原子地替换一个版本的声明集合。
	// 抽取是确定性的，重新处理同一版本会写入同样的列表。
	ReplaceForVersion(versionID string, claims []string) error
	FindByVersionID(versionID string) ([]*model.ManifestClaim, error)
	DeleteByVersionID(versionID string) error
}

type claimRepository struct {
	db *gorm.DB
}

// NewClaimRepository 创建一个新的 ClaimRepository 实例。
func NewClaimRepository(db *gorm.DB) ClaimRepository {
	return &claimRepository{db: db}
}

// ReplaceForVersion 在同一事务里删除旧声明并写入新声明。
func (r *claimRepository) ReplaceForVersion(versionID string, claims []string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("version_id = ?", versionID).Delete(&model.ManifestClaim{}).Error; err != nil {
			return err
		}
		if len(claims) == 0 {
			return nil
		}
		records := make([]*model.ManifestClaim, 0, len(claims))
		for i, claim := range claims {
			records = append(records, &model.ManifestClaim{
				VersionID:  versionID,
				ClaimIndex: i,
				Content:    claim,
			})
		}
		return tx.Create(records).Error
	})
}

// FindByVersionID 按抽取顺序返回一个版本的全部声明。
func (r *claimRepository) FindByVersionID(versionID string) ([]*model.ManifestClaim, error) {
	var claims []*model.ManifestClaim
	err := r.db.Where("version_id = ?", versionID).Order("claim_index ASC").Find(&claims).Error
	return claims, err
}

// DeleteByVersionID 删除一个版本的全部声明。
func (r *claimRepository) DeleteByVersionID(versionID string) error {
	return r.db.Where("version_id = ?", versionID).Delete(&model.ManifestClaim{}).Error
}
