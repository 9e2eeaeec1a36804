package repository

import (
	"time"

	"gorm.io/gorm"
	"lcrs-go/internal/model"
)

// UsageRepository 定义了对 usage_records 账本的数据操作接口。
// 账本只追加：接口上没有任何更新或删除操作。
type UsageRepository interface {
	Append(record *model.UsageRecord) error
	CountForTenantSince(tenantID uint, since time.Time) (int64, error)
	ListForTenantSince(tenantID uint, since time.Time) ([]model.UsageRecord, error)
}

type usageRepository struct {
	db *gorm.DB
}

// NewUsageRepository 创建一个新的 UsageRepository 实例。
func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

// Append 追加一条账本记录。
func (r *usageRepository) Append(record *model.UsageRecord) error {
	return r.db.Create(record).Error
}

// CountForTenantSince 统计租户自指定时间以来的账本行数，用于配额判断。
func (r *usageRepository) CountForTenantSince(tenantID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.UsageRecord{}).
		Where("tenant_id = ? AND created_at >= ?", tenantID, since).
		Count(&count).Error
	return count, err
}

// ListForTenantSince 返回租户自指定时间以来的账本记录，新的在前。
func (r *usageRepository) ListForTenantSince(tenantID uint, since time.Time) ([]model.UsageRecord, error) {
	var records []model.UsageRecord
	err := r.db.Where("tenant_id = ? AND created_at >= ?", tenantID, since).
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}
