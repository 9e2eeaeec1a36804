// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// 成员角色。
const (
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

// Tenant 对应于数据库中的 'tenants' 表。
// Plan 决定租户可用的提供商数量与每月仿真配额，具体能力在配置的 plans 段定义。
type Tenant struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Plan      string    `gorm:"type:varchar(50);not null;default:starter" json:"plan"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Tenant) TableName() string {
	return "tenants"
}

// Member 对应于数据库中的 'members' 表。
// 一个成员只属于一个租户，是所有请求的认证主体。
type Member struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID     uint      `gorm:"not null;index" json:"tenantId"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"type:varchar(100);not null" json:"-"`
	Role         string    `gorm:"type:varchar(20);not null;default:MEMBER" json:"role"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Member) TableName() string {
	return "members"
}
