// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"lcrs-go/internal/model"
)

// SimulationCacheRepository 定义了仿真结果缓存的操作接口。
// 缓存按内容寻址：键是 (prompt, manifestVersion) 的内容哈希，按租户隔离。
// 命中即返回存储的评分集合，调用方必须在发起任何提供商调用之前先查缓存。
type SimulationCacheRepository interface {
	// Get 查询缓存。未命中时返回 (nil, false, nil)。
	Get(ctx context.Context, tenantID uint, prompt, versionID string) ([]model.ProviderResult, bool, error)
	// Put 写入缓存，TTL 由构造时的配置决定。
	Put(ctx context.Context, tenantID uint, prompt, versionID string, results []model.ProviderResult) error
}

type redisSimulationCacheRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewSimulationCacheRepository 创建一个新的 SimulationCacheRepository 实例。
func NewSimulationCacheRepository(redisClient *redis.Client, ttl time.Duration) SimulationCacheRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisSimulationCacheRepository{redisClient: redisClient, ttl: ttl}
}

// cacheKey 计算租户隔离的内容寻址键。
// prompt 与版本之间用单元分隔符连接，保证 (a,b) 与 (ab,"") 不会撞键。
func (r *redisSimulationCacheRepository) cacheKey(tenantID uint, prompt, versionID string) string {
	sum := sha256.Sum256([]byte(prompt + "\x1f" + versionID))
	return fmt.Sprintf("lcrs:sim:%d:%x", tenantID, sum)
}

// Get 查询仿真结果缓存。
func (r *redisSimulationCacheRepository) Get(ctx context.Context, tenantID uint, prompt, versionID string) ([]model.ProviderResult, bool, error) {
	jsonData, err := r.redisClient.Get(ctx, r.cacheKey(tenantID, prompt, versionID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached simulation: %w", err)
	}

	var results []model.ProviderResult
	if err := json.Unmarshal([]byte(jsonData), &results); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached simulation: %w", err)
	}
	return results, true, nil
}

// Put 写入仿真结果缓存。
func (r *redisSimulationCacheRepository) Put(ctx context.Context, tenantID uint, prompt, versionID string, results []model.ProviderResult) error {
	jsonData, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal simulation results: %w", err)
	}
	if err := r.redisClient.Set(ctx, r.cacheKey(tenantID, prompt, versionID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cached simulation: %w", err)
	}
	return nil
}
