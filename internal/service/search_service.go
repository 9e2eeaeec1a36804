// Package service 包含了应用的业务逻辑层。
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"

	"lcrs-go/internal/config"
	"lcrs-go/internal/model"
	"lcrs-go/internal/repository"
	"lcrs-go/pkg/embedding"
	"lcrs-go/pkg/log"
)

// SearchService 接口定义了段落检索操作。
// 这是一个面向调用方的辅助检索面，仿真内部的上下文检索不走这里。
type SearchService interface {
	// SearchPassages 在租户自己的段落索引里做混合检索。
	// versionID 非空时只在该版本内检索。
	SearchPassages(ctx context.Context, tenantID uint, query string, topK int, versionID string) ([]model.PassageHit, error)
}

type searchService struct {
	embeddingClient embedding.Client
	esClient        *elasticsearch.Client
	manifestRepo    repository.ManifestRepository
	esCfg           config.ElasticsearchConfig
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(embeddingClient embedding.Client, esClient *elasticsearch.Client, manifestRepo repository.ManifestRepository, esCfg config.ElasticsearchConfig) SearchService {
	return &searchService{
		embeddingClient: embeddingClient,
		esClient:        esClient,
		manifestRepo:    manifestRepo,
		esCfg:           esCfg,
	}
}

// SearchPassages 执行两阶段混合检索：kNN 召回加 BM25 重排。
// 租户过滤在查询里强制携带，索引里永远不会返回别的租户的段落。
func (s *searchService) SearchPassages(ctx context.Context, tenantID uint, query string, topK int, versionID string) ([]model.PassageHit, error) {
	log.Infof("[SearchService] 开始执行段落检索, tenant: %d, query: '%s', topK: %d", tenantID, query, topK)
	if topK <= 0 {
		topK = 10
	}
	if topK > 100 {
		topK = 100
	}

	// 1. 向量化查询
	log.Info("[SearchService] 步骤1: 开始向量化查询")
	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		log.Errorf("[SearchService] 向量化查询失败: %v", err)
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}
	log.Infof("[SearchService] 步骤1: 向量化查询成功, 向量维度: %d", len(queryVector))

	// 2. 构建混合检索查询：kNN 召回, BM25 重排, 租户过滤强制生效
	log.Info("[SearchService] 步骤2: 开始构建 Elasticsearch 混合检索查询")
	filters := []map[string]interface{}{
		{"term": map[string]interface{}{"tenant_id": tenantID}},
	}
	if versionID != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"version_id": versionID},
		})
	}
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   queryVector,
			"k":              topK * 30,
			"num_candidates": topK * 30,
			"filter":         filters,
		},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"match": map[string]interface{}{
						"content": query,
					},
				},
				"filter": filters,
			},
		},
		"rescore": map[string]interface{}{
			"window_size": topK * 30,
			"query": map[string]interface{}{
				"rescore_query": map[string]interface{}{
					"match": map[string]interface{}{
						"content": map[string]interface{}{
							"query":    query,
							"operator": "and",
						},
					},
				},
				"query_weight":         0.2,
				"rescore_query_weight": 1.0,
			},
		},
		"size": topK,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		log.Errorf("[SearchService] 序列化 Elasticsearch 查询失败: %v", err)
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	// 3. 执行搜索
	log.Info("[SearchService] 步骤3: 开始向 Elasticsearch 发送搜索请求")
	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.esCfg.IndexName),
		s.esClient.Search.WithBody(&buf),
		s.esClient.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		log.Errorf("[SearchService] 向 Elasticsearch 发送搜索请求失败: %v", err)
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[SearchService] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.String())
	}

	// 4. 解析结果
	log.Info("[SearchService] 步骤4: 开始解析 Elasticsearch 响应")
	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.EsPassage `json:"_source"`
				Score  float64         `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		log.Errorf("[SearchService] 解析 Elasticsearch 响应失败: %v", err)
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}
	if len(esResponse.Hits.Hits) == 0 {
		log.Infof("[SearchService] Elasticsearch 返回 0 条命中结果")
		return []model.PassageHit{}, nil
	}

	// 5. 批量回填版本标题
	log.Info("[SearchService] 步骤5: 批量回填版本标题")
	uniqueVersions := make(map[string]struct{})
	for _, hit := range esResponse.Hits.Hits {
		uniqueVersions[hit.Source.VersionID] = struct{}{}
	}
	versionList := make([]string, 0, len(uniqueVersions))
	for v := range uniqueVersions {
		versionList = append(versionList, v)
	}
	manifests, err := s.manifestRepo.FindByVersionIDs(versionList)
	if err != nil {
		log.Errorf("[SearchService] 批量查询版本信息失败: %v", err)
		return nil, fmt.Errorf("批量查询版本信息失败: %w", err)
	}
	titleMap := make(map[string]string)
	for _, m := range manifests {
		titleMap[m.VersionID] = m.Title
	}

	// 6. 组装最终结果
	results := make([]model.PassageHit, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		title := titleMap[hit.Source.VersionID]
		if title == "" {
			log.Warnf("[SearchService] 未找到版本 '%s' 对应的标题", hit.Source.VersionID)
			title = "未知文档"
		}
		results = append(results, model.PassageHit{
			VersionID:  hit.Source.VersionID,
			Title:      title,
			ChunkIndex: hit.Source.ChunkIndex,
			Content:    hit.Source.Content,
			Score:      hit.Score,
		})
	}

	log.Infof("[SearchService] 段落检索完毕, 返回 %d 条结果", len(results))
	return results, nil
}
