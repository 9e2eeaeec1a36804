package service

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"lcrs-go/internal/config"
	"lcrs-go/internal/model"
	"lcrs-go/internal/repository"
	"lcrs-go/pkg/kafka"
	"lcrs-go/pkg/log"
	"lcrs-go/pkg/storage"
	"lcrs-go/pkg/tasks"
)

// IngestService 定义了文档接入服务的接口。
// 上传路径只做三件事：暂存原始字节、登记版本、投递处理任务，
// 真正的解析与向量化由消费者异步完成。
type IngestService interface {
	// Upload 接收上传的文档并登记一个处理中的版本。
	// 超过大小上限的文档在读取内容之前即被拒绝。
	Upload(ctx context.Context, tenantID uint, title, fileName, contentType string, size int64, reader io.Reader) (*model.Manifest, error)
}

type ingestService struct {
	manifestRepo repository.ManifestRepository
	minioCfg     config.MinIOConfig
	ingestCfg    config.IngestConfig
}

// NewIngestService 创建文档接入服务实例。
func NewIngestService(manifestRepo repository.ManifestRepository, minioCfg config.MinIOConfig, ingestCfg config.IngestConfig) IngestService {
	return &ingestService{
		manifestRepo: manifestRepo,
		minioCfg:     minioCfg,
		ingestCfg:    ingestCfg,
	}
}

// Upload 处理文档上传：大小校验、写入暂存桶、登记版本、投递异步任务。
func (s *ingestService) Upload(ctx context.Context, tenantID uint, title, fileName, contentType string, size int64, reader io.Reader) (*model.Manifest, error) {
	// 1. 大小上限在读取任何内容之前检查
	if s.ingestCfg.MaxUploadBytes > 0 && size > s.ingestCfg.MaxUploadBytes {
		log.Warnf("[IngestService] 拒绝超限文档, tenant: %d, file: %s, size: %d, limit: %d", tenantID, fileName, size, s.ingestCfg.MaxUploadBytes)
		return nil, &model.OversizedDocumentError{Size: size, Limit: s.ingestCfg.MaxUploadBytes}
	}

	versionID := uuid.NewString()
	objectName := fmt.Sprintf("staging/%d/%s/%s", tenantID, versionID, fileName)
	if title == "" {
		title = fileName
	}

	// 2. 原始字节写入暂存桶，消费者处理完成后删除
	log.Infof("[IngestService] 步骤1: 写入暂存对象, version: %s, object: %s, size: %d", versionID, objectName, size)
	if err := storage.PutStagingObject(ctx, s.minioCfg.BucketName, objectName, reader, size, contentType); err != nil {
		log.Errorf("[IngestService] 写入暂存对象失败, Error: %v", err)
		return nil, fmt.Errorf("写入暂存对象失败: %w", err)
	}

	// 3. 登记处理中的版本记录
	manifest := &model.Manifest{
		VersionID: versionID,
		TenantID:  tenantID,
		Title:     title,
		Status:    model.ManifestStatusProcessing,
	}
	log.Infof("[IngestService] 步骤2: 登记文档版本, version: %s, title: %s", versionID, title)
	if err := s.manifestRepo.Create(manifest); err != nil {
		log.Errorf("[IngestService] 登记文档版本失败, Error: %v", err)
		if removeErr := storage.RemoveStagingObject(ctx, s.minioCfg.BucketName, objectName); removeErr != nil {
			log.Warnf("[IngestService] 回收暂存对象失败 (object=%s): %v", objectName, removeErr)
		}
		return nil, fmt.Errorf("登记文档版本失败: %w", err)
	}

	// 4. 投递异步处理任务
	task := tasks.DocumentProcessingTask{
		TenantID:   tenantID,
		VersionID:  versionID,
		ObjectName: objectName,
		FileName:   fileName,
		Title:      title,
	}
	log.Infof("[IngestService] 步骤3: 投递文档处理任务, version: %s", versionID)
	if err := kafka.ProduceDocumentTask(ctx, task); err != nil {
		log.Errorf("[IngestService] 投递文档处理任务失败, Error: %v", err)
		if markErr := s.manifestRepo.MarkFailed(versionID, "任务投递失败"); markErr != nil {
			log.Errorf("[IngestService] 标记版本失败状态出错, version: %s, Error: %v", versionID, markErr)
		}
		if removeErr := storage.RemoveStagingObject(ctx, s.minioCfg.BucketName, objectName); removeErr != nil {
			log.Warnf("[IngestService] 回收暂存对象失败 (object=%s): %v", objectName, removeErr)
		}
		return nil, fmt.Errorf("投递文档处理任务失败: %w", err)
	}

	log.Infof("[IngestService] 文档接收完成, version: %s, 等待异步处理", versionID)
	return manifest, nil
}
