// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"lcrs-go/internal/config"
	"lcrs-go/internal/model"
	"lcrs-go/pkg/log"
	"lcrs-go/pkg/provider"
)

// ClaimService 定义了声明抽取与校验的接口。
// 两条操作都使用 temperature 0 的确定性调用：同一文档版本重复抽取
// 必须得到同样的声明列表，同一 (声明, 回答) 重复校验必须得到同样的裁定。
type ClaimService interface {
	// ExtractClaims 从文档前缀中抽取至多 maxClaims 条原子事实声明。
	// 模型输出必须能解析成字符串列表，否则返回 ClaimExtractionParseError。
	ExtractClaims(ctx context.Context, documentText string) ([]string, error)
	// VerifyAnswer 把全部声明与一个模型回答比对，返回与声明顺序对齐的裁定列表，
	// 每项是 supported、contradicted、not_mentioned 之一。
	VerifyAnswer(ctx context.Context, claims []string, answer string) ([]string, error)
}

type claimService struct {
	verifier    provider.Provider
	retryPolicy provider.RetryPolicy
	cfg         config.VerificationConfig
}

// NewClaimService 创建一个新的 ClaimService 实例。
// verifier 是配置里指定的校验提供商，抽取与校验共用同一个。
func NewClaimService(verifier provider.Provider, retryPolicy provider.RetryPolicy, cfg config.VerificationConfig) ClaimService {
	if cfg.MaxClaims <= 0 {
		cfg.MaxClaims = 10
	}
	if cfg.DocumentPrefixChars <= 0 {
		cfg.DocumentPrefixChars = 10000
	}
	return &claimService{
		verifier:    verifier,
		retryPolicy: retryPolicy,
		cfg:         cfg,
	}
}

const extractSystemPrompt = `You extract atomic factual claims from corporate documents.
Return ONLY a JSON array of strings. Each string is one self-contained, verifiable factual statement from the document (a price, a policy, a limit, a date, a capability).
Do not include opinions, headings or formatting. Return at most %d claims. No text outside the JSON array.`

const verifySystemPrompt = `You verify factual claims against an answer produced by a language model.
For each numbered claim, decide whether the answer supports it, contradicts it, or does not mention it.
Return ONLY a JSON array of strings, one entry per claim in the same order, each entry exactly one of: "supported", "contradicted", "not_mentioned". No text outside the JSON array.`

// ExtractClaims 以确定性生成调用抽取声明。
func (s *claimService) ExtractClaims(ctx context.Context, documentText string) ([]string, error) {
	runes := []rune(documentText)
	if len(runes) == 0 {
		return nil, nil
	}
	// 只取有界前缀，控制抽取成本
	if len(runes) > s.cfg.DocumentPrefixChars {
		runes = runes[:s.cfg.DocumentPrefixChars]
	}

	messages := []provider.Message{
		{Role: "system", Content: fmt.Sprintf(extractSystemPrompt, s.cfg.MaxClaims)},
		{Role: "user", Content: string(runes)},
	}

	var raw string
	err := s.retryPolicy.Do(ctx, "claim-extraction", func(ctx context.Context) error {
		var callErr error
		raw, callErr = s.verifier.Complete(ctx, messages, provider.Deterministic())
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("claim extraction call failed: %w", err)
	}

	claims, err := parseStringArray(raw)
	if err != nil {
		log.Errorf("[ClaimService] 声明抽取输出无法解析: %v, raw: %s", err, truncateForLog(raw))
		return nil, &model.ClaimExtractionParseError{Raw: raw, Err: err}
	}

	// 去掉空白项并裁剪到上限
	cleaned := make([]string, 0, len(claims))
	for _, claim := range claims {
		claim = strings.TrimSpace(claim)
		if claim == "" {
			continue
		}
		cleaned = append(cleaned, claim)
		if len(cleaned) == s.cfg.MaxClaims {
			break
		}
	}
	log.Infof("[ClaimService] 声明抽取完成, 共 %d 条", len(cleaned))
	return cleaned, nil
}

// VerifyAnswer 以一次确定性调用校验全部声明。
func (s *claimService) VerifyAnswer(ctx context.Context, claims []string, answer string) ([]string, error) {
	if len(claims) == 0 {
		return nil, nil
	}

	var userBuilder strings.Builder
	userBuilder.WriteString("Claims:\n")
	for i, claim := range claims {
		userBuilder.WriteString(fmt.Sprintf("%d. %s\n", i+1, claim))
	}
	userBuilder.WriteString("\nAnswer:\n")
	userBuilder.WriteString(answer)

	messages := []provider.Message{
		{Role: "system", Content: verifySystemPrompt},
		{Role: "user", Content: userBuilder.String()},
	}

	var raw string
	err := s.retryPolicy.Do(ctx, "claim-verification", func(ctx context.Context) error {
		var callErr error
		raw, callErr = s.verifier.Complete(ctx, messages, provider.Deterministic())
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("claim verification call failed: %w", err)
	}

	verdicts, err := parseStringArray(raw)
	if err != nil {
		return nil, fmt.Errorf("claim verification output unparseable: %w", err)
	}
	if len(verdicts) != len(claims) {
		return nil, fmt.Errorf("claim verification returned %d verdicts for %d claims", len(verdicts), len(claims))
	}

	normalized := make([]string, len(verdicts))
	for i, verdict := range verdicts {
		switch strings.ToLower(strings.TrimSpace(verdict)) {
		case model.VerdictSupported:
			normalized[i] = model.VerdictSupported
		case model.VerdictContradicted:
			normalized[i] = model.VerdictContradicted
		case model.VerdictNotMentioned, "not mentioned":
			normalized[i] = model.VerdictNotMentioned
		default:
			return nil, fmt.Errorf("claim verification returned unknown verdict %q", verdict)
		}
	}
	return normalized, nil
}

// parseStringArray 从模型输出中解析 JSON 字符串数组。
// 模型偶尔会用代码块或说明文字包住 JSON，这里只取第一个 '[' 到
// 最后一个 ']' 之间的内容再解析。
func parseStringArray(raw string) ([]string, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array found in output")
	}

	var items []string
	if err := json.Unmarshal([]byte(raw[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("invalid JSON array: %w", err)
	}
	return items, nil
}

func truncateForLog(raw string) string {
	if len(raw) > 200 {
		return raw[:200] + "…"
	}
	return raw
}
