package repository

import (
	"gorm.io/gorm"
	"lcrs-go/internal/model"
)

// TenantRepository 接口定义了租户数据的持久化操作。
type TenantRepository interface {
	Create(tenant *model.Tenant) error
	FindByID(tenantID uint) (*model.Tenant, error)
}

// tenantRepository 是 TenantRepository 接口的 GORM 实现。
type tenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository 创建一个新的 TenantRepository 实例。
func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepository{db: db}
}

// Create 在数据库中创建一个新的租户记录。
func (r *tenantRepository) Create(tenant *model.Tenant) error {
	return r.db.Create(tenant).Error
}

// FindByID 根据租户 ID 从数据库中查找一个租户。
func (r *tenantRepository) FindByID(tenantID uint) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.First(&tenant, tenantID).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}
