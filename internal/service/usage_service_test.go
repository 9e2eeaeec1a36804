package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lcrs-go/internal/config"
	"lcrs-go/internal/model"
)

func TestCycleStartUTC(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "月中",
			now:  time.Date(2026, 8, 24, 15, 4, 5, 0, time.UTC),
			want: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "月初第一秒",
			now:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			// 东八区的 3 月 1 日凌晨仍在 UTC 的 2 月，账期按 UTC 对齐
			name: "时区跨月",
			now:  time.Date(2026, 3, 1, 0, 30, 0, 0, time.FixedZone("UTC+8", 8*3600)),
			want: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cycleStartUTC(tt.now)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func newUsageFixture(t *testing.T, plan string) (*fakeUsageRepo, UsageService) {
	t.Helper()
	usageRepo := &fakeUsageRepo{}
	tenantRepo := newFakeTenantRepo(&model.Tenant{ID: 1, Name: "测试租户", Plan: plan})
	return usageRepo, NewUsageService(usageRepo, tenantRepo)
}

func TestUsageReport(t *testing.T) {
	usageRepo, svc := newUsageFixture(t, "pro")
	seedPlans(t, map[string]config.PlanConfig{
		"pro": {MaxProviders: 3, MonthlySimulations: 10},
	})
	for i := 0; i < 3; i++ {
		require.NoError(t, usageRepo.Append(&model.UsageRecord{TenantID: 1, VersionID: "v1", ProviderCount: 2}))
	}

	report, err := svc.Report(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, "pro", report.Plan)
	assert.Equal(t, int64(3), report.Used)
	assert.Equal(t, 10, report.Cap)
	assert.Equal(t, int64(7), report.Remaining)
	assert.Len(t, report.Records, 3)

	cycleStart := time.Time(report.CycleStart)
	assert.Equal(t, 1, cycleStart.Day())
}

// Cap 为 0 表示不限次数，此时 Remaining 不参与语义。
func TestUsageReportUnlimitedPlan(t *testing.T) {
	usageRepo, svc := newUsageFixture(t, "enterprise")
	seedPlans(t, map[string]config.PlanConfig{
		"enterprise": {MaxProviders: 0, MonthlySimulations: 0},
	})
	require.NoError(t, usageRepo.Append(&model.UsageRecord{TenantID: 1}))

	report, err := svc.Report(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 0, report.Cap)
	assert.Equal(t, int64(0), report.Remaining)
	assert.Equal(t, int64(1), report.Used)
}

func TestUsageReportClampsRemainingAtZero(t *testing.T) {
	usageRepo, svc := newUsageFixture(t, "starter")
	seedPlans(t, map[string]config.PlanConfig{
		"starter": {MaxProviders: 1, MonthlySimulations: 2},
	})
	usageRepo.used = 5

	report, err := svc.Report(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, int64(5), report.Used)
	assert.Equal(t, int64(0), report.Remaining)
}

func TestUsageReportTenantNotFound(t *testing.T) {
	_, svc := newUsageFixture(t, "pro")

	_, err := svc.Report(context.Background(), 99)

	require.Error(t, err)
}
