// Package pipeline 定义了文档接入处理的核心流程。
// 消费者把 CPU 密集的解析、分块与向量化工作放在这里执行，
// HTTP 请求路径只负责暂存字节和投递任务。
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"lcrs-go/internal/config"
	"lcrs-go/internal/model"
	"lcrs-go/internal/repository"
	"lcrs-go/internal/service"
	"lcrs-go/pkg/embedding"
	"lcrs-go/pkg/es"
	"lcrs-go/pkg/log"
	"lcrs-go/pkg/provider"
	"lcrs-go/pkg/storage"
	"lcrs-go/pkg/tasks"
	"lcrs-go/pkg/tika"
)

// Processor 封装了文档处理的所有依赖和逻辑。
type Processor struct {
	tikaClient      *tika.Client
	embeddingClient embedding.Client
	claimService    service.ClaimService
	manifestRepo    repository.ManifestRepository
	claimRepo       repository.ClaimRepository
	retryPolicy     provider.RetryPolicy
	esCfg           config.ElasticsearchConfig
	minioCfg        config.MinIOConfig
	scoringCfg      config.ScoringConfig
	verifyCfg       config.VerificationConfig
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	tikaClient *tika.Client,
	embeddingClient embedding.Client,
	claimService service.ClaimService,
	manifestRepo repository.ManifestRepository,
	claimRepo repository.ClaimRepository,
	retryPolicy provider.RetryPolicy,
	esCfg config.ElasticsearchConfig,
	minioCfg config.MinIOConfig,
	scoringCfg config.ScoringConfig,
	verifyCfg config.VerificationConfig,
) *Processor {
	return &Processor{
		tikaClient:      tikaClient,
		embeddingClient: embeddingClient,
		claimService:    claimService,
		manifestRepo:    manifestRepo,
		claimRepo:       claimRepo,
		retryPolicy:     retryPolicy,
		esCfg:           esCfg,
		minioCfg:        minioCfg,
		scoringCfg:      scoringCfg,
		verifyCfg:       verifyCfg,
	}
}

// Process 是文档处理的主函数：抽取文本、分块、向量化、抽取声明、建立索引。
// 任何一步失败都返回错误，由消费者按投递次数决定是否重试；
// 整个流程是幂等的，重新投递会先清理旧的分块与声明。
func (p *Processor) Process(ctx context.Context, task tasks.DocumentProcessingTask) error {
	log.Infof("[Processor] 开始处理文档版本, version: %s, file: %s, tenant: %d", task.VersionID, task.FileName, task.TenantID)

	manifest, err := p.manifestRepo.FindByVersionID(task.VersionID)
	if err != nil {
		return fmt.Errorf("查找文档版本失败: %w", err)
	}
	if manifest.Status == model.ManifestStatusReady {
		// 重复投递，已处理完成的版本直接跳过
		log.Warnf("[Processor] 版本 %s 已是 ready 状态, 跳过重复处理", task.VersionID)
		return nil
	}

	// 1. 从 MinIO 暂存桶读取原始文件
	log.Infof("[Processor] 步骤1: 读取暂存对象, Bucket: %s, Object: %s", p.minioCfg.BucketName, task.ObjectName)
	object, err := storage.GetStagingObject(ctx, p.minioCfg.BucketName, task.ObjectName)
	if err != nil {
		log.Errorf("[Processor] 读取暂存对象失败, Object: %s, Error: %v", task.ObjectName, err)
		return fmt.Errorf("读取暂存对象失败: %w", err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	size, err := buf.ReadFrom(object)
	if err != nil {
		log.Errorf("[Processor] 从暂存对象流中读取内容失败, Error: %v", err)
		return fmt.Errorf("读取暂存对象流失败: %w", err)
	}
	log.Infof("[Processor] 步骤1: 暂存对象读取成功, 大小: %d 字节", size)
	if size == 0 {
		return errors.New("暂存对象内容为空")
	}

	// 2. 使用 Tika 提取文本
	log.Info("[Processor] 步骤2: 使用Tika提取文本内容")
	textContent, err := p.tikaClient.ExtractText(ctx, bytes.NewReader(buf.Bytes()), task.FileName)
	if err != nil {
		log.Errorf("[Processor] 使用Tika提取文本失败, file: %s, Error: %v", task.FileName, err)
		return fmt.Errorf("使用 Tika 提取文本失败: %w", err)
	}
	log.Infof("[Processor] 步骤2: 文本提取成功, 内容长度: %d 字符", utf8.RuneCountInString(textContent))

	// 3. 文本切块
	log.Infof("[Processor] 步骤3: 进行文本分块, chunkSize: %d, chunkOverlap: %d", p.scoringCfg.ChunkSize, p.scoringCfg.ChunkOverlap)
	chunkTexts := SplitText(textContent, p.scoringCfg.ChunkSize, p.scoringCfg.ChunkOverlap)
	log.Infof("[Processor] 步骤3: 文本分块完成, 共生成 %d 个分块", len(chunkTexts))

	// 为避免重复投递导致的累计膨胀，处理前先清理该版本既有的分块、声明与索引（幂等）
	if err := p.manifestRepo.DeleteChunksByVersionID(task.VersionID); err != nil {
		log.Warnf("[Processor] 清理旧分块记录失败 (version=%s): %v", task.VersionID, err)
	}
	if err := p.claimRepo.DeleteByVersionID(task.VersionID); err != nil {
		log.Warnf("[Processor] 清理旧声明记录失败 (version=%s): %v", task.VersionID, err)
	}
	if err := es.DeletePassagesByVersion(ctx, p.esCfg.IndexName, task.VersionID); err != nil {
		log.Warnf("[Processor] 清理旧段落索引失败 (version=%s): %v", task.VersionID, err)
	}

	// 空文档不是错误：落一个没有分块和声明的 ready 版本
	if len(chunkTexts) == 0 {
		log.Warnf("[Processor] 文档没有可用文本, 以空版本完成, version: %s", task.VersionID)
		manifest.FullText = ""
		manifest.GlobalEmbedding = nil
		manifest.EmbeddingModel = p.embeddingClient.Model()
		manifest.ChunkCount = 0
		manifest.ClaimCount = 0
		if err := p.manifestRepo.FinishProcessing(manifest); err != nil {
			return fmt.Errorf("写回空版本失败: %w", err)
		}
		p.removeStagingObject(ctx, task)
		return nil
	}

	// 4. 批量向量化全部分块
	log.Infof("[Processor] 步骤4: 批量向量化 %d 个分块", len(chunkTexts))
	var chunkVectors [][]float32
	err = p.retryPolicy.Do(ctx, "chunk-embedding", func(ctx context.Context) error {
		var embedErr error
		chunkVectors, embedErr = p.embeddingClient.EmbedBatch(ctx, chunkTexts)
		return embedErr
	})
	if err != nil {
		log.Errorf("[Processor] 分块向量化失败, Error: %v", err)
		return fmt.Errorf("分块向量化失败: %w", err)
	}

	// 5. 分块连同向量一起入库
	log.Info("[Processor] 步骤5: 将分块与向量存入数据库")
	chunks := make([]*model.ManifestChunk, 0, len(chunkTexts))
	for i, text := range chunkTexts {
		chunks = append(chunks, &model.ManifestChunk{
			VersionID:  task.VersionID,
			ChunkIndex: i,
			Content:    text,
			Embedding:  chunkVectors[i],
		})
	}
	if err := p.manifestRepo.BatchCreateChunks(chunks); err != nil {
		log.Errorf("[Processor] 批量保存分块到数据库失败, Error: %v", err)
		return fmt.Errorf("批量保存分块失败: %w", err)
	}

	// 6. 计算文档级全局向量（有界前缀，和声明抽取共用同一个边界）
	log.Info("[Processor] 步骤6: 计算文档全局向量")
	globalText := boundedPrefix(textContent, p.verifyCfg.DocumentPrefixChars)
	var globalEmbedding []float32
	err = p.retryPolicy.Do(ctx, "global-embedding", func(ctx context.Context) error {
		var embedErr error
		globalEmbedding, embedErr = p.embeddingClient.CreateEmbedding(ctx, globalText)
		return embedErr
	})
	if err != nil {
		log.Errorf("[Processor] 文档全局向量化失败, Error: %v", err)
		return fmt.Errorf("文档全局向量化失败: %w", err)
	}

	// 7. 确定性抽取声明并存储
	log.Info("[Processor] 步骤7: 抽取文档声明")
	claims, err := p.claimService.ExtractClaims(ctx, textContent)
	if err != nil {
		log.Errorf("[Processor] 声明抽取失败, version: %s, Error: %v", task.VersionID, err)
		return fmt.Errorf("声明抽取失败: %w", err)
	}
	if err := p.claimRepo.ReplaceForVersion(task.VersionID, claims); err != nil {
		log.Errorf("[Processor] 保存声明失败, Error: %v", err)
		return fmt.Errorf("保存声明失败: %w", err)
	}
	log.Infof("[Processor] 步骤7: 共抽取 %d 条声明", len(claims))

	// 8. 将分块索引到 Elasticsearch 供段落检索使用
	log.Info("[Processor] 步骤8: 将分块索引到 Elasticsearch")
	for i, chunk := range chunks {
		passage := model.EsPassage{
			PassageID:    fmt.Sprintf("%s_%d", chunk.VersionID, chunk.ChunkIndex),
			TenantID:     task.TenantID,
			VersionID:    chunk.VersionID,
			ChunkIndex:   chunk.ChunkIndex,
			Content:      chunk.Content,
			Vector:       chunk.Embedding,
			ModelVersion: p.embeddingClient.Model(),
		}
		if err := es.IndexPassage(ctx, p.esCfg.IndexName, passage); err != nil {
			log.Errorf("[Processor] 索引分块 %d 到Elasticsearch失败, Error: %v", chunk.ChunkIndex, err)
			return fmt.Errorf("索引块 %d 到 Elasticsearch 失败: %w", chunk.ChunkIndex, err)
		}
		if (i+1)%50 == 0 {
			log.Infof("[Processor] 已索引 %d/%d 个分块", i+1, len(chunks))
		}
	}

	// 9. 写回版本记录并移动 latest 指针
	log.Info("[Processor] 步骤9: 写回版本记录")
	manifest.FullText = textContent
	manifest.GlobalEmbedding = globalEmbedding
	manifest.EmbeddingModel = p.embeddingClient.Model()
	manifest.EmbeddingDims = len(globalEmbedding)
	manifest.ChunkCount = len(chunks)
	manifest.ClaimCount = len(claims)
	if err := p.manifestRepo.FinishProcessing(manifest); err != nil {
		log.Errorf("[Processor] 写回版本记录失败, Error: %v", err)
		return fmt.Errorf("写回版本记录失败: %w", err)
	}

	// 10. 文本已经抽取完成，删除暂存的原始字节
	p.removeStagingObject(ctx, task)

	log.Infof("[Processor] 文档版本处理成功完成, version: %s, chunks: %d, claims: %d", task.VersionID, len(chunks), len(claims))
	return nil
}

// Abandon 在任务达到最大投递次数后把版本标记为失败并清理暂存对象。
func (p *Processor) Abandon(ctx context.Context, task tasks.DocumentProcessingTask, cause error) {
	log.Errorf("[Processor] 放弃文档任务, version: %s, cause: %v", task.VersionID, cause)
	reason := "processing failed"
	if cause != nil {
		reason = cause.Error()
	}
	if err := p.manifestRepo.MarkFailed(task.VersionID, reason); err != nil {
		log.Errorf("[Processor] 标记版本失败状态出错, version: %s, Error: %v", task.VersionID, err)
	}
	p.removeStagingObject(ctx, task)
}

// removeStagingObject 删除暂存的原始文件，原始字节从不长期保存。
func (p *Processor) removeStagingObject(ctx context.Context, task tasks.DocumentProcessingTask) {
	if err := storage.RemoveStagingObject(ctx, p.minioCfg.BucketName, task.ObjectName); err != nil {
		log.Warnf("[Processor] 删除暂存对象失败 (object=%s): %v", task.ObjectName, err)
	}
}

// boundedPrefix 返回文本的有界前缀（按 rune 截断）。
func boundedPrefix(text string, limit int) string {
	if limit <= 0 {
		limit = 10000
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
