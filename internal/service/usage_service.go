package service

import (
	"context"
	"fmt"
	"time"

	"lcrs-go/internal/config"
	"lcrs-go/internal/model"
	"lcrs-go/internal/repository"
	"lcrs-go/pkg/log"
)

// UsageService 定义了用量查询服务的接口。
// 账期按 UTC 日历月对齐，每月一日零点重置。
type UsageService interface {
	// Report 返回租户当前账期的用量汇总与逐条账目。
	Report(ctx context.Context, tenantID uint) (*model.UsageReport, error)
}

type usageService struct {
	usageRepo  repository.UsageRepository
	tenantRepo repository.TenantRepository
}

// NewUsageService 创建用量查询服务实例。
func NewUsageService(usageRepo repository.UsageRepository, tenantRepo repository.TenantRepository) UsageService {
	return &usageService{usageRepo: usageRepo, tenantRepo: tenantRepo}
}

// Report 汇总当前账期的仿真次数。Cap 为 0 表示套餐不限次数。
func (s *usageService) Report(ctx context.Context, tenantID uint) (*model.UsageReport, error) {
	tenant, err := s.tenantRepo.FindByID(tenantID)
	if err != nil {
		log.Errorf("[UsageService] 查询租户失败, tenant: %d, Error: %v", tenantID, err)
		return nil, fmt.Errorf("查询租户失败: %w", err)
	}
	plan := config.PlanFor(tenant.Plan)
	cycleStart := cycleStartUTC(time.Now())

	used, err := s.usageRepo.CountForTenantSince(tenantID, cycleStart)
	if err != nil {
		log.Errorf("[UsageService] 统计账期用量失败, tenant: %d, Error: %v", tenantID, err)
		return nil, fmt.Errorf("统计账期用量失败: %w", err)
	}
	records, err := s.usageRepo.ListForTenantSince(tenantID, cycleStart)
	if err != nil {
		log.Errorf("[UsageService] 查询账期记录失败, tenant: %d, Error: %v", tenantID, err)
		return nil, fmt.Errorf("查询账期记录失败: %w", err)
	}

	remaining := int64(0)
	if plan.MonthlySimulations > 0 {
		remaining = int64(plan.MonthlySimulations) - used
		if remaining < 0 {
			remaining = 0
		}
	}
	return &model.UsageReport{
		Plan:       tenant.Plan,
		CycleStart: model.LocalTime(cycleStart),
		Used:       used,
		Cap:        plan.MonthlySimulations,
		Remaining:  remaining,
		Records:    records,
	}, nil
}

// cycleStartUTC 返回包含 now 的账期起点：UTC 日历月第一天的零点。
func cycleStartUTC(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
