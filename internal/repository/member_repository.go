// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"gorm.io/gorm"
	"lcrs-go/internal/model"
)

// MemberRepository 接口定义了成员数据的持久化操作。
type MemberRepository interface {
	Create(member *model.Member) error
	FindByEmail(email string) (*model.Member, error)
	FindByID(memberID uint) (*model.Member, error)
	ListByTenant(tenantID uint) ([]model.Member, error)
}

// memberRepository 是 MemberRepository 接口的 GORM 实现。
type memberRepository struct {
	db *gorm.DB
}

// NewMemberRepository 创建一个新的 MemberRepository 实例。
func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{db: db}
}

// Create 在数据库中创建一个新的成员记录。
func (r *memberRepository) Create(member *model.Member) error {
	return r.db.Create(member).Error
}

// FindByEmail 根据邮箱从数据库中查找一个成员。
func (r *memberRepository) FindByEmail(email string) (*model.Member, error) {
	var member model.Member
	err := r.db.Where("email = ?", email).First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// FindByID 根据成员 ID 从数据库中查找一个成员。
func (r *memberRepository) FindByID(memberID uint) (*model.Member, error) {
	var member model.Member
	err := r.db.First(&member, memberID).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// ListByTenant 列出一个租户下的全部成员。
func (r *memberRepository) ListByTenant(tenantID uint) ([]model.Member, error) {
	var members []model.Member
	err := r.db.Where("tenant_id = ?", tenantID).Find(&members).Error
	return members, err
}
