package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"lcrs-go/internal/config"
	"lcrs-go/internal/model"
	"lcrs-go/internal/repository"
	"lcrs-go/internal/scoring"
	"lcrs-go/pkg/embedding"
	"lcrs-go/pkg/log"
	"lcrs-go/pkg/provider"
)

// 单个参考段落在提示词中的最大长度
const maxSnippetLen = 1500

// 后台缓存与用量落库的超时时间
const finalizeTimeout = 10 * time.Second

const answerSystemPromptTemplate = `你是一名企业知识问答助手。请依据下列参考段落回答用户的问题。
参考段落:
%s
如果参考段落中没有足够的信息，请如实说明。`

// SimulationService 定义了仿真评分服务的接口。
// 一次仿真的完整流程：缓存查询、配额校验、检索上下文、
// 并发调用全部提供商、对每个回答做偏离度与声明校验评分。
type SimulationService interface {
	// Run 执行一次仿真并返回逐提供商的评分结果。
	Run(ctx context.Context, principal *model.Member, req *model.SimulationRequest) (*model.SimulationResponse, error)
	// Stream 执行一次仿真并通过 WebSocket 逐提供商推送结果帧。
	Stream(ctx context.Context, conn *websocket.Conn, principal *model.Member, req *model.SimulationRequest) error
}

type simulationService struct {
	providers       []provider.Provider
	embeddingClient embedding.Client
	claimService    ClaimService
	manifestRepo    repository.ManifestRepository
	claimRepo       repository.ClaimRepository
	usageRepo       repository.UsageRepository
	tenantRepo      repository.TenantRepository
	cacheRepo       repository.SimulationCacheRepository
	retryPolicy     provider.RetryPolicy
	scoringCfg      config.ScoringConfig
}

// NewSimulationService 创建仿真评分服务实例。
func NewSimulationService(
	providers []provider.Provider,
	embeddingClient embedding.Client,
	claimService ClaimService,
	manifestRepo repository.ManifestRepository,
	claimRepo repository.ClaimRepository,
	usageRepo repository.UsageRepository,
	tenantRepo repository.TenantRepository,
	cacheRepo repository.SimulationCacheRepository,
	retryPolicy provider.RetryPolicy,
	scoringCfg config.ScoringConfig,
) SimulationService {
	return &simulationService{
		providers:       providers,
		embeddingClient: embeddingClient,
		claimService:    claimService,
		manifestRepo:    manifestRepo,
		claimRepo:       claimRepo,
		usageRepo:       usageRepo,
		tenantRepo:      tenantRepo,
		cacheRepo:       cacheRepo,
		retryPolicy:     retryPolicy,
		scoringCfg:      scoringCfg,
	}
}

// Run 执行一次仿真。缓存命中直接返回存储的结果，不触发任何模型调用，
// 也不计入配额；未命中时先过配额闸门再开始任何提供商调用。
func (s *simulationService) Run(ctx context.Context, principal *model.Member, req *model.SimulationRequest) (*model.SimulationResponse, error) {
	return s.run(ctx, principal, req, nil)
}

// Stream 执行一次仿真并把每个提供商的评分结果实时推送给 WebSocket 连接。
// 帧的写入全部发生在汇聚协程中，不存在并发写同一连接的问题。
func (s *simulationService) Stream(ctx context.Context, conn *websocket.Conn, principal *model.Member, req *model.SimulationRequest) error {
	emit := func(frame model.StreamFrame) {
		if err := conn.WriteJSON(frame); err != nil {
			log.Warnf("[SimulationService] 推送结果帧失败: %v", err)
		}
	}
	resp, err := s.run(ctx, principal, req, func(result model.ProviderResult) {
		emit(model.StreamFrame{Type: model.FrameProviderResult, Result: &result})
	})
	if err != nil {
		emit(model.StreamFrame{Type: model.FrameError, Error: err.Error()})
		return err
	}
	if resp.Cached {
		// 缓存命中时没有逐个完成的过程，把存储的结果按原始顺序回放
		for i := range resp.Results {
			emit(model.StreamFrame{Type: model.FrameProviderResult, Result: &resp.Results[i]})
		}
	}
	emit(model.StreamFrame{Type: model.FrameDone, Cached: resp.Cached})
	return nil
}

func (s *simulationService) run(ctx context.Context, principal *model.Member, req *model.SimulationRequest, emit func(model.ProviderResult)) (*model.SimulationResponse, error) {
	log.Infof("[SimulationService] 收到仿真请求, tenant: %d, member: %d, version: %s", principal.TenantID, principal.ID, req.ManifestVersion)

	// 1. 缓存查询在一切校验之前：命中即返回，不消耗配额
	cached, hit, err := s.cacheRepo.Get(ctx, principal.TenantID, req.Prompt, req.ManifestVersion)
	if err != nil {
		log.Warnf("[SimulationService] 查询结果缓存失败, 继续完整执行: %v", err)
	}
	if hit {
		log.Infof("[SimulationService] 缓存命中, tenant: %d, version: %s", principal.TenantID, req.ManifestVersion)
		return &model.SimulationResponse{Results: cached, Cached: true}, nil
	}

	// 2. 配额闸门：在任何提供商调用开始之前拒绝超额请求
	tenant, err := s.tenantRepo.FindByID(principal.TenantID)
	if err != nil {
		log.Errorf("[SimulationService] 查询租户失败, tenant: %d, Error: %v", principal.TenantID, err)
		return nil, fmt.Errorf("查询租户失败: %w", err)
	}
	plan := config.PlanFor(tenant.Plan)
	cycleStart := cycleStartUTC(time.Now())
	if plan.MonthlySimulations > 0 {
		used, err := s.usageRepo.CountForTenantSince(principal.TenantID, cycleStart)
		if err != nil {
			log.Errorf("[SimulationService] 统计本周期用量失败, tenant: %d, Error: %v", principal.TenantID, err)
			return nil, fmt.Errorf("统计本周期用量失败: %w", err)
		}
		if used >= int64(plan.MonthlySimulations) {
			log.Warnf("[SimulationService] 配额耗尽, tenant: %d, used: %d, cap: %d", principal.TenantID, used, plan.MonthlySimulations)
			return nil, &model.QuotaExceededError{TenantID: principal.TenantID, Used: used, Cap: plan.MonthlySimulations}
		}
	}

	// 3. 加载文档版本并校验归属与状态
	manifest, err := s.manifestRepo.FindByVersionID(req.ManifestVersion)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, req.ManifestVersion)
		}
		return nil, fmt.Errorf("查询文档版本失败: %w", err)
	}
	if manifest.TenantID != principal.TenantID {
		log.Warnf("[SimulationService] 跨租户访问被拒绝, member: %d, tenant: %d, version: %s", principal.ID, principal.TenantID, req.ManifestVersion)
		return nil, &model.UnauthorizedTenantAccessError{MemberID: principal.ID, TenantID: principal.TenantID}
	}
	if manifest.Status != model.ManifestStatusReady {
		return nil, fmt.Errorf("文档版本尚未就绪, 当前状态: %s", manifest.Status)
	}
	if manifest.EmbeddingModel != "" && manifest.EmbeddingModel != s.embeddingClient.Model() {
		// 不同向量模型的相似度没有可比性，直接拒绝而不是算出一个错误的分数
		return nil, fmt.Errorf("向量模型不一致: 文档使用 %s, 当前配置为 %s, 请重新接入该文档", manifest.EmbeddingModel, s.embeddingClient.Model())
	}

	chunks, err := s.manifestRepo.FindChunksByVersionID(req.ManifestVersion)
	if err != nil {
		return nil, fmt.Errorf("加载文档分块失败: %w", err)
	}
	storedClaims, err := s.claimRepo.FindByVersionID(req.ManifestVersion)
	if err != nil {
		return nil, fmt.Errorf("加载文档声明失败: %w", err)
	}
	claims := make([]string, 0, len(storedClaims))
	for _, c := range storedClaims {
		claims = append(claims, c.Content)
	}
	if len(claims) == 0 {
		// 没有声明就算不出声明准确率，与抽取输出不可解析同级处理
		log.Warnf("[SimulationService] 版本没有可用声明, 拒绝仿真, version: %s", req.ManifestVersion)
		return nil, &model.ClaimExtractionParseError{Err: fmt.Errorf("版本 %s 没有可用的声明", req.ManifestVersion)}
	}

	// 4. 提示词向量化并检索最相关的分块
	log.Infof("[SimulationService] 步骤1: 提示词向量化并检索上下文, topK: %d", s.scoringCfg.TopK)
	var promptVector []float32
	err = s.retryPolicy.Do(ctx, "prompt-embedding", func(ctx context.Context) error {
		var embedErr error
		promptVector, embedErr = s.embeddingClient.CreateEmbedding(ctx, req.Prompt)
		return embedErr
	})
	if err != nil {
		log.Errorf("[SimulationService] 提示词向量化失败, Error: %v", err)
		return nil, fmt.Errorf("提示词向量化失败: %w", err)
	}
	ranked := scoring.Retrieve(promptVector, chunks, s.scoringCfg.TopK)
	contextText := buildContextText(ranked)
	messages := buildAnswerMessages(contextText, req.Prompt)

	// 5. 按套餐截取提供商列表, 分发前完成, 超出名额的提供商不会被调用
	selected := s.providers
	if plan.MaxProviders > 0 && plan.MaxProviders < len(selected) {
		selected = selected[:plan.MaxProviders]
	}
	if len(selected) == 0 {
		return nil, errors.New("没有配置任何模型提供商")
	}
	log.Infof("[SimulationService] 步骤2: 并发调用 %d 个提供商 (套餐 %s)", len(selected), tenant.Plan)

	// 6. 扇出扇入：每个提供商一个协程, 汇聚协程保持配置顺序
	type indexedResult struct {
		index  int
		result model.ProviderResult
	}
	resultCh := make(chan indexedResult, len(selected))
	var wg sync.WaitGroup
	for i, prov := range selected {
		wg.Add(1)
		go func(idx int, prov provider.Provider) {
			defer wg.Done()
			resultCh <- indexedResult{index: idx, result: s.generateAndScore(ctx, prov, messages, manifest.GlobalEmbedding, claims)}
		}(i, prov)
	}
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]model.ProviderResult, len(selected))
	for ir := range resultCh {
		results[ir.index] = ir.result
		if emit != nil {
			emit(ir.result)
		}
	}

	// 7. 响应先行, 缓存写入与用量落账在后台完成
	go s.finalize(principal.TenantID, req, results, len(selected))

	log.Infof("[SimulationService] 仿真完成, tenant: %d, providers: %d", principal.TenantID, len(selected))
	return &model.SimulationResponse{Results: results, Cached: false}, nil
}

// generateAndScore 完成单个提供商的生成与评分。
// 任何一步失败只影响当前提供商的条目，结果中 Score 为 nil 且 Error 给出原因。
func (s *simulationService) generateAndScore(ctx context.Context, prov provider.Provider, messages []provider.Message, globalEmbedding []float32, claims []string) model.ProviderResult {
	result := model.ProviderResult{Provider: prov.Name(), Synthetic: prov.Synthetic()}

	var answer string
	err := s.retryPolicy.Do(ctx, prov.Name(), func(ctx context.Context) error {
		var genErr error
		answer, genErr = prov.Complete(ctx, messages, provider.Deterministic())
		return genErr
	})
	if err != nil {
		log.Errorf("[SimulationService] 提供商 %s 生成回答失败: %v", prov.Name(), err)
		result.Error = err.Error()
		return result
	}
	result.Answer = answer

	var answerVector []float32
	err = s.retryPolicy.Do(ctx, prov.Name()+"-answer-embedding", func(ctx context.Context) error {
		var embedErr error
		answerVector, embedErr = s.embeddingClient.CreateEmbedding(ctx, answer)
		return embedErr
	})
	if err != nil {
		log.Errorf("[SimulationService] 提供商 %s 回答向量化失败: %v", prov.Name(), err)
		result.Error = err.Error()
		return result
	}

	divergence := scoring.Divergence(globalEmbedding, answerVector)
	if divergence < 0 || divergence > 1 {
		// 余弦为负时偏离度会越过 1，按约定如实上报而不是截断
		log.Warnf("[SimulationService] 提供商 %s 偏离度超出常规区间 [0,1]: %f", prov.Name(), divergence)
	}

	verdicts, err := s.claimService.VerifyAnswer(ctx, claims, answer)
	if err != nil {
		log.Errorf("[SimulationService] 提供商 %s 声明校验失败: %v", prov.Name(), err)
		result.Error = err.Error()
		return result
	}
	result.Verdicts = verdicts

	score := scoring.Aggregate(divergence, verdicts)
	result.Score = &score
	return result
}

// finalize 在响应返回后写缓存并追加用量账目。
// 用量写入失败重试一次, 仍失败则记录对账日志, 账本只追加不回滚。
func (s *simulationService) finalize(tenantID uint, req *model.SimulationRequest, results []model.ProviderResult, providerCount int) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	if err := s.cacheRepo.Put(ctx, tenantID, req.Prompt, req.ManifestVersion, results); err != nil {
		log.Warnf("[SimulationService] 写入结果缓存失败 (tenant=%d, version=%s): %v", tenantID, req.ManifestVersion, err)
	}

	record := &model.UsageRecord{
		TenantID:      tenantID,
		VersionID:     req.ManifestVersion,
		PromptHash:    promptHash(req.Prompt),
		ProviderCount: providerCount,
		Scores:        summarizeResults(results),
	}
	if err := s.usageRepo.Append(record); err != nil {
		log.Warnf("[SimulationService] 用量记录写入失败, 重试一次: %v", err)
		if err := s.usageRepo.Append(record); err != nil {
			log.Errorf("[SimulationService] 用量记录写入最终失败, 等待对账 (tenant=%d, prompt_hash=%s), Error: %v", tenantID, record.PromptHash, err)
		}
	}
}

// summarizeResults 把完整结果压缩成账目里保存的评分摘要。
func summarizeResults(results []model.ProviderResult) []model.ProviderScoreSummary {
	summaries := make([]model.ProviderScoreSummary, 0, len(results))
	for _, r := range results {
		summary := model.ProviderScoreSummary{
			Provider:  r.Provider,
			Synthetic: r.Synthetic,
			Failed:    r.Error != "",
		}
		if r.Score != nil {
			summary.AccuracyPercent = r.Score.AccuracyPercent
			summary.Hallucination = r.Score.Hallucination
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// buildContextText 把检索到的分块拼接成编号的参考段落。
func buildContextText(ranked []scoring.RankedChunk) string {
	if len(ranked) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, rc := range ranked {
		snippet := rc.Chunk.Content
		if utf8.RuneCountInString(snippet) > maxSnippetLen {
			snippet = string([]rune(snippet)[:maxSnippetLen]) + "..."
		}
		sb.WriteString(fmt.Sprintf("[%d] %s\n\n", i+1, snippet))
	}
	return sb.String()
}

// buildAnswerMessages 组装发送给提供商的消息列表。
func buildAnswerMessages(contextText, prompt string) []provider.Message {
	system := "你是一名企业知识问答助手，请回答用户的问题。"
	if contextText != "" {
		system = fmt.Sprintf(answerSystemPromptTemplate, contextText)
	}
	return []provider.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	}
}

// promptHash 计算提示词的摘要, 账本里只存哈希不存原文。
func promptHash(prompt string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(prompt)))
}
