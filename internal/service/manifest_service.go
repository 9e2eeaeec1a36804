package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"lcrs-go/internal/config"
	"lcrs-go/internal/model"
	"lcrs-go/internal/repository"
	"lcrs-go/pkg/es"
	"lcrs-go/pkg/log"
)

// ErrManifestNotFound 表示请求的文档版本不存在。
var ErrManifestNotFound = errors.New("文档版本不存在")

// ManifestService 定义了文档版本查询与管理服务的接口。
type ManifestService interface {
	// GetDetail 返回单个版本的状态详情和已抽取的声明列表。
	GetDetail(ctx context.Context, principal *model.Member, versionID string) (*model.ManifestDetail, error)
	// List 返回租户全部文档版本, 新的在前。
	List(ctx context.Context, tenantID uint) ([]model.ManifestSummary, error)
	// Delete 删除一个版本及其分块、声明与段落索引, 仅限管理员调用。
	Delete(ctx context.Context, principal *model.Member, versionID string) error
}

type manifestService struct {
	manifestRepo repository.ManifestRepository
	claimRepo    repository.ClaimRepository
	esCfg        config.ElasticsearchConfig
}

// NewManifestService 创建文档版本服务实例。
func NewManifestService(manifestRepo repository.ManifestRepository, claimRepo repository.ClaimRepository, esCfg config.ElasticsearchConfig) ManifestService {
	return &manifestService{
		manifestRepo: manifestRepo,
		claimRepo:    claimRepo,
		esCfg:        esCfg,
	}
}

// GetDetail 查询版本详情。processing 状态的版本声明列表为空,
// 调用方可以轮询此接口等待版本就绪。
func (s *manifestService) GetDetail(ctx context.Context, principal *model.Member, versionID string) (*model.ManifestDetail, error) {
	manifest, err := s.manifestRepo.FindByVersionID(versionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, versionID)
		}
		return nil, fmt.Errorf("查询文档版本失败: %w", err)
	}
	if manifest.TenantID != principal.TenantID {
		log.Warnf("[ManifestService] 跨租户访问被拒绝, member: %d, tenant: %d, version: %s", principal.ID, principal.TenantID, versionID)
		return nil, &model.UnauthorizedTenantAccessError{MemberID: principal.ID, TenantID: principal.TenantID}
	}

	claims := make([]string, 0)
	if manifest.Status == model.ManifestStatusReady {
		stored, err := s.claimRepo.FindByVersionID(versionID)
		if err != nil {
			return nil, fmt.Errorf("加载文档声明失败: %w", err)
		}
		for _, c := range stored {
			claims = append(claims, c.Content)
		}
	}

	return &model.ManifestDetail{
		ManifestSummary: toSummary(manifest),
		EmbeddingModel:  manifest.EmbeddingModel,
		FailReason:      manifest.FailReason,
		Claims:          claims,
	}, nil
}

// List 按创建时间倒序返回租户名下的全部版本。
func (s *manifestService) List(ctx context.Context, tenantID uint) ([]model.ManifestSummary, error) {
	manifests, err := s.manifestRepo.ListByTenant(tenantID)
	if err != nil {
		log.Errorf("[ManifestService] 查询版本列表失败, tenant: %d, Error: %v", tenantID, err)
		return nil, fmt.Errorf("查询版本列表失败: %w", err)
	}
	summaries := make([]model.ManifestSummary, 0, len(manifests))
	for _, m := range manifests {
		summaries = append(summaries, toSummary(m))
	}
	return summaries, nil
}

// Delete 删除版本。数据库里的分块和声明随版本一起在事务中删除,
// 段落索引的清理失败只记录日志, 不阻塞删除。
func (s *manifestService) Delete(ctx context.Context, principal *model.Member, versionID string) error {
	manifest, err := s.manifestRepo.FindByVersionID(versionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrManifestNotFound, versionID)
		}
		return fmt.Errorf("查询文档版本失败: %w", err)
	}
	if manifest.TenantID != principal.TenantID {
		log.Warnf("[ManifestService] 跨租户删除被拒绝, member: %d, tenant: %d, version: %s", principal.ID, principal.TenantID, versionID)
		return &model.UnauthorizedTenantAccessError{MemberID: principal.ID, TenantID: principal.TenantID}
	}

	log.Infof("[ManifestService] 步骤1: 删除版本数据库记录, version: %s", versionID)
	if err := s.manifestRepo.DeleteByVersionID(versionID); err != nil {
		log.Errorf("[ManifestService] 删除版本记录失败, version: %s, Error: %v", versionID, err)
		return fmt.Errorf("删除版本记录失败: %w", err)
	}

	log.Infof("[ManifestService] 步骤2: 清理版本段落索引, version: %s", versionID)
	if err := es.DeletePassagesByVersion(ctx, s.esCfg.IndexName, versionID); err != nil {
		log.Warnf("[ManifestService] 清理段落索引失败 (version=%s): %v", versionID, err)
	}

	log.Infof("[ManifestService] 版本删除完成, version: %s", versionID)
	return nil
}

func toSummary(m *model.Manifest) model.ManifestSummary {
	return model.ManifestSummary{
		VersionID:  m.VersionID,
		Title:      m.Title,
		Status:     m.Status,
		Latest:     m.Latest,
		ChunkCount: m.ChunkCount,
		ClaimCount: m.ClaimCount,
		CreatedAt:  model.LocalTime(m.CreatedAt),
	}
}
