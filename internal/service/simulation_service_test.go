package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lcrs-go/internal/config"
	"lcrs-go/internal/model"
	"lcrs-go/internal/scoring"
	"lcrs-go/pkg/provider"
)

// simFixture 把一次仿真需要的全部依赖组装成可控的测试替身：
// 一个 ready 状态的文档版本、两条声明、默认全部 supported 的裁定，
// 以及与全局向量相同的回答向量（偏离度为 0）。
type simFixture struct {
	providers    []*fakeProvider
	embedder     *fakeEmbedder
	claimSvc     *fakeClaimService
	manifestRepo *fakeManifestRepo
	claimRepo    *fakeClaimRepo
	usageRepo    *fakeUsageRepo
	tenantRepo   *fakeTenantRepo
	cacheRepo    *fakeCacheRepo
	tenant       *model.Tenant
	member       *model.Member
	req          *model.SimulationRequest
	svc          SimulationService
}

func newSimFixture(t *testing.T, providerNames ...string) *simFixture {
	t.Helper()

	f := &simFixture{
		embedder:     newFakeEmbedder([]float32{1, 0}),
		claimSvc:     &fakeClaimService{verdicts: []string{model.VerdictSupported, model.VerdictSupported}},
		manifestRepo: newFakeManifestRepo(),
		claimRepo:    newFakeClaimRepo(),
		usageRepo:    &fakeUsageRepo{},
		cacheRepo:    newFakeCacheRepo(),
		tenant:       &model.Tenant{ID: 1, Name: "测试租户", Plan: "pro"},
		member:       &model.Member{ID: 10, TenantID: 1, Email: "member@test.local", Role: model.RoleMember},
		req:          &model.SimulationRequest{Prompt: "保修期是多久", ManifestVersion: "v-ready"},
	}
	f.tenantRepo = newFakeTenantRepo(f.tenant)

	require.NoError(t, f.manifestRepo.Create(&model.Manifest{
		VersionID:       "v-ready",
		TenantID:        1,
		Title:           "保修政策",
		Status:          model.ManifestStatusReady,
		GlobalEmbedding: model.Vector{1, 0},
		EmbeddingModel:  "test-embedding",
		ChunkCount:      2,
		ClaimCount:      2,
	}))
	require.NoError(t, f.manifestRepo.BatchCreateChunks([]*model.ManifestChunk{
		{VersionID: "v-ready", ChunkIndex: 0, Content: "全系产品保修期为两年。", Embedding: model.Vector{1, 0}},
		{VersionID: "v-ready", ChunkIndex: 1, Content: "电池等易耗部件保修一年。", Embedding: model.Vector{0.8, 0.2}},
	}))
	require.NoError(t, f.claimRepo.ReplaceForVersion("v-ready", []string{"保修期为两年", "电池保修一年"}))

	for _, name := range providerNames {
		f.providers = append(f.providers, &fakeProvider{name: name, answer: "来自 " + name + " 的回答"})
	}
	provs := make([]provider.Provider, 0, len(f.providers))
	for _, p := range f.providers {
		provs = append(provs, p)
	}

	f.svc = NewSimulationService(
		provs, f.embedder, f.claimSvc,
		f.manifestRepo, f.claimRepo, f.usageRepo, f.tenantRepo, f.cacheRepo,
		fastRetry(), config.ScoringConfig{TopK: 2},
	)
	return f
}

// waitForFinalize 等待后台协程完成缓存写入与账本追加。
func (f *simFixture) waitForFinalize(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.usageRepo.count() == 1 && f.cacheRepo.putCount() == 1
	}, 2*time.Second, 10*time.Millisecond, "后台落账应在响应返回后完成")
}

func TestSimulationRunScoresAllProviders(t *testing.T) {
	f := newSimFixture(t, "p1", "p2")

	resp, err := f.svc.Run(context.Background(), f.member, f.req)

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.False(t, resp.Cached)
	require.Len(t, resp.Results, 2)

	// 结果顺序与配置顺序一致，与完成先后无关
	assert.Equal(t, "p1", resp.Results[0].Provider)
	assert.Equal(t, "p2", resp.Results[1].Provider)

	for _, result := range resp.Results {
		assert.Empty(t, result.Error)
		assert.NotEmpty(t, result.Answer)
		require.NotNil(t, result.Score)
		assert.InDelta(t, 0.0, result.Score.Divergence, 1e-9)
		assert.InDelta(t, 1.0, result.Score.ClaimAccuracy, 1e-9)
		assert.InDelta(t, 100.0, result.Score.AccuracyPercent, 1e-9)
		assert.False(t, result.Score.Hallucination)
		assert.Equal(t, []string{model.VerdictSupported, model.VerdictSupported}, result.Verdicts)
	}

	// 账本在响应之后异步追加：每次仿真一行，带提供商数与评分摘要
	f.waitForFinalize(t)
	record := f.usageRepo.last()
	assert.Equal(t, uint(1), record.TenantID)
	assert.Equal(t, "v-ready", record.VersionID)
	assert.Len(t, record.PromptHash, 64)
	assert.Equal(t, 2, record.ProviderCount)
	require.Len(t, record.Scores, 2)
	assert.Equal(t, "p1", record.Scores[0].Provider)
	assert.False(t, record.Scores[0].Failed)
}

func TestSimulationRunCacheHit(t *testing.T) {
	f := newSimFixture(t, "p1")
	stored := []model.ProviderResult{{
		Provider: "p1",
		Answer:   "缓存的回答",
		Score:    &model.ScoreResult{AccuracyPercent: 91.5},
	}}
	require.NoError(t, f.cacheRepo.Put(context.Background(), 1, f.req.Prompt, f.req.ManifestVersion, stored))

	resp, err := f.svc.Run(context.Background(), f.member, f.req)

	require.NoError(t, err)
	assert.True(t, resp.Cached)
	assert.Equal(t, stored, resp.Results)
	// 命中路径不触发任何提供商调用，也不追加账本
	assert.Equal(t, 0, f.providers[0].callCount())
	assert.Equal(t, 0, f.usageRepo.count())
}

// 同一 (租户, 提示词, 版本) 的第二次请求必须由缓存短路：
// 结果一致、提供商不再被调用、账本不再追加。
func TestSimulationRunSecondRequestServedFromCache(t *testing.T) {
	f := newSimFixture(t, "p1", "p2")

	first, err := f.svc.Run(context.Background(), f.member, f.req)
	require.NoError(t, err)
	require.False(t, first.Cached)
	f.waitForFinalize(t)
	callsAfterFirst := f.providers[0].callCount() + f.providers[1].callCount()

	second, err := f.svc.Run(context.Background(), f.member, f.req)

	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, callsAfterFirst, f.providers[0].callCount()+f.providers[1].callCount())
	assert.Equal(t, 1, f.usageRepo.count(), "缓存命中不应再追加账本")
}

func TestSimulationRunQuotaExceeded(t *testing.T) {
	f := newSimFixture(t, "p1")
	seedPlans(t, map[string]config.PlanConfig{
		"pro": {MaxProviders: 3, MonthlySimulations: 5},
	})
	f.usageRepo.used = 5

	resp, err := f.svc.Run(context.Background(), f.member, f.req)

	require.Error(t, err)
	assert.Nil(t, resp)
	var quotaErr *model.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, uint(1), quotaErr.TenantID)
	assert.Equal(t, int64(5), quotaErr.Used)
	assert.Equal(t, 5, quotaErr.Cap)
	// 拒绝发生在任何提供商调用之前
	assert.Equal(t, 0, f.providers[0].callCount())
	assert.Equal(t, 0, f.usageRepo.count())
}

func TestSimulationRunPlanCapsProviderCount(t *testing.T) {
	f := newSimFixture(t, "p1", "p2", "p3")
	seedPlans(t, map[string]config.PlanConfig{
		"pro": {MaxProviders: 2, MonthlySimulations: 100},
	})

	resp, err := f.svc.Run(context.Background(), f.member, f.req)

	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "p1", resp.Results[0].Provider)
	assert.Equal(t, "p2", resp.Results[1].Provider)
	// 超出套餐名额的提供商根本不会被调用
	assert.Equal(t, 0, f.providers[2].callCount())
}

// 未配置的套餐名回落到 starter 的能力边界。
func TestSimulationRunUnknownPlanFallsBackToStarter(t *testing.T) {
	f := newSimFixture(t, "p1", "p2")
	f.tenant.Plan = "legacy-gold"
	seedPlans(t, map[string]config.PlanConfig{
		"starter": {MaxProviders: 1, MonthlySimulations: 100},
	})

	resp, err := f.svc.Run(context.Background(), f.member, f.req)

	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 0, f.providers[1].callCount())
}

func TestSimulationRunProviderFailureIsolated(t *testing.T) {
	f := newSimFixture(t, "p1", "p2", "p3")
	f.providers[1].err = &model.ProviderTransportError{
		Provider: "p2",
		Err:      errors.New("connection refused"),
	}

	resp, err := f.svc.Run(context.Background(), f.member, f.req)

	require.NoError(t, err, "单个提供商失败不应使整次仿真失败")
	require.Len(t, resp.Results, 3)

	failed := resp.Results[1]
	assert.Equal(t, "p2", failed.Provider)
	assert.NotEmpty(t, failed.Error)
	assert.Nil(t, failed.Score)
	assert.Empty(t, failed.Answer)

	for _, i := range []int{0, 2} {
		assert.Empty(t, resp.Results[i].Error)
		require.NotNil(t, resp.Results[i].Score)
	}
	// 失败的提供商经历了完整的重试次数
	assert.Equal(t, 3, f.providers[1].callCount())
}

func TestSimulationRunManifestNotFound(t *testing.T) {
	f := newSimFixture(t, "p1")
	f.req.ManifestVersion = "v-missing"

	_, err := f.svc.Run(context.Background(), f.member, f.req)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrManifestNotFound)
}

func TestSimulationRunCrossTenantRejected(t *testing.T) {
	f := newSimFixture(t, "p1")
	require.NoError(t, f.manifestRepo.Create(&model.Manifest{
		VersionID:       "v-other-tenant",
		TenantID:        2,
		Status:          model.ManifestStatusReady,
		GlobalEmbedding: model.Vector{1, 0},
		EmbeddingModel:  "test-embedding",
	}))
	f.req.ManifestVersion = "v-other-tenant"

	_, err := f.svc.Run(context.Background(), f.member, f.req)

	require.Error(t, err)
	var accessErr *model.UnauthorizedTenantAccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, uint(10), accessErr.MemberID)
	assert.Equal(t, 0, f.providers[0].callCount())
}

func TestSimulationRunManifestNotReady(t *testing.T) {
	f := newSimFixture(t, "p1")
	require.NoError(t, f.manifestRepo.Create(&model.Manifest{
		VersionID: "v-processing",
		TenantID:  1,
		Status:    model.ManifestStatusProcessing,
	}))
	f.req.ManifestVersion = "v-processing"

	_, err := f.svc.Run(context.Background(), f.member, f.req)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "尚未就绪")
}

// 没有声明就算不出声明准确率，整次仿真以解析错误类失败。
func TestSimulationRunNoClaimsRejected(t *testing.T) {
	f := newSimFixture(t, "p1")
	require.NoError(t, f.claimRepo.DeleteByVersionID("v-ready"))

	_, err := f.svc.Run(context.Background(), f.member, f.req)

	require.Error(t, err)
	var parseErr *model.ClaimExtractionParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 0, f.providers[0].callCount())
}

// 文档入库时用的 embedding 模型与当前配置不同则拒绝仿真，
// 不同模型的向量放在一起比相似度没有意义。
func TestSimulationRunEmbeddingModelMismatch(t *testing.T) {
	f := newSimFixture(t, "p1")
	manifest, err := f.manifestRepo.FindByVersionID("v-ready")
	require.NoError(t, err)
	manifest.EmbeddingModel = "older-model"

	_, err = f.svc.Run(context.Background(), f.member, f.req)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "向量模型不一致")
	assert.Equal(t, 0, f.providers[0].callCount())
}

// 只要有一条声明被反驳就打幻觉标记，总分高于阈值也一样。
func TestSimulationRunContradictionForcesHallucination(t *testing.T) {
	f := newSimFixture(t, "p1")
	f.claimSvc.verdicts = []string{model.VerdictSupported, model.VerdictContradicted}

	resp, err := f.svc.Run(context.Background(), f.member, f.req)

	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	score := resp.Results[0].Score
	require.NotNil(t, score)
	assert.InDelta(t, 70.0, score.AccuracyPercent, 1e-9)
	assert.True(t, score.Hallucination)
}

// 声明校验失败只影响当前提供商的条目，不影响其他提供商。
func TestSimulationRunVerificationFailureIsolated(t *testing.T) {
	f := newSimFixture(t, "p1")
	f.claimSvc.verifyErr = errors.New("verifier unavailable")

	resp, err := f.svc.Run(context.Background(), f.member, f.req)

	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.NotEmpty(t, resp.Results[0].Error)
	assert.Nil(t, resp.Results[0].Score)
}

// 流式路径复用同一套扇出扇入逻辑：每个提供商完成评分就推送一帧。
func TestSimulationRunEmitsPerProviderResults(t *testing.T) {
	f := newSimFixture(t, "p1", "p2")
	inner, ok := f.svc.(*simulationService)
	require.True(t, ok)

	var emitted []model.ProviderResult
	resp, err := inner.run(context.Background(), f.member, f.req, func(result model.ProviderResult) {
		emitted = append(emitted, result)
	})

	require.NoError(t, err)
	require.Len(t, emitted, 2)
	names := map[string]bool{}
	for _, result := range emitted {
		names[result.Provider] = true
	}
	assert.True(t, names["p1"])
	assert.True(t, names["p2"])
	assert.Len(t, resp.Results, 2)
}

// 缓存读失败按完整执行降级，不能因为缓存故障拒绝请求。
func TestSimulationRunCacheGetFailureDegrades(t *testing.T) {
	f := newSimFixture(t, "p1")
	f.cacheRepo.getErr = errors.New("redis unreachable")

	resp, err := f.svc.Run(context.Background(), f.member, f.req)

	require.NoError(t, err)
	assert.False(t, resp.Cached)
	require.Len(t, resp.Results, 1)
	require.NotNil(t, resp.Results[0].Score)
}

// ---- 辅助函数 ----

func TestBuildContextTextNumbersSnippets(t *testing.T) {
	ranked := []scoring.RankedChunk{
		{Chunk: &model.ManifestChunk{Content: "第一段内容"}},
		{Chunk: &model.ManifestChunk{Content: "第二段内容"}},
	}

	text := buildContextText(ranked)

	assert.Equal(t, "[1] 第一段内容\n\n[2] 第二段内容\n\n", text)
}

func TestBuildContextTextTruncatesLongSnippet(t *testing.T) {
	long := strings.Repeat("甲", maxSnippetLen+100)
	ranked := []scoring.RankedChunk{{Chunk: &model.ManifestChunk{Content: long}}}

	text := buildContextText(ranked)

	assert.Equal(t, "[1] "+strings.Repeat("甲", maxSnippetLen)+"...\n\n", text)
}

func TestBuildContextTextEmpty(t *testing.T) {
	assert.Equal(t, "", buildContextText(nil))
}

func TestBuildAnswerMessages(t *testing.T) {
	messages := buildAnswerMessages("[1] 段落\n\n", "保修期是多久")

	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Contains(t, messages[0].Content, "参考段落")
	assert.Contains(t, messages[0].Content, "[1] 段落")
	assert.Equal(t, "user", messages[1].Role)
	assert.Equal(t, "保修期是多久", messages[1].Content)
}

func TestBuildAnswerMessagesWithoutContext(t *testing.T) {
	messages := buildAnswerMessages("", "问题")

	require.Len(t, messages, 2)
	assert.NotContains(t, messages[0].Content, "参考段落")
}

func TestPromptHash(t *testing.T) {
	// sha256("abc") 的标准测试向量
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		promptHash("abc"))
	assert.Equal(t, promptHash("同一提示词"), promptHash("同一提示词"))
	assert.NotEqual(t, promptHash("a"), promptHash("b"))
}

func TestSummarizeResults(t *testing.T) {
	results := []model.ProviderResult{
		{
			Provider: "p1",
			Score:    &model.ScoreResult{AccuracyPercent: 84.0, Hallucination: true},
		},
		{
			Provider: "p2",
			Error:    "transport failure",
		},
	}

	summaries := summarizeResults(results)

	require.Len(t, summaries, 2)
	assert.Equal(t, "p1", summaries[0].Provider)
	assert.InDelta(t, 84.0, summaries[0].AccuracyPercent, 1e-9)
	assert.True(t, summaries[0].Hallucination)
	assert.False(t, summaries[0].Failed)
	assert.True(t, summaries[1].Failed)
	assert.Zero(t, summaries[1].AccuracyPercent)
}
