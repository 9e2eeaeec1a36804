// Package provider 封装了参与仿真的各个大语言模型提供商。
// 所有提供商都实现同一个 Provider 接口，彼此可以互换；
// 重试策略由调用方统一施加，适配器本身不做重试。
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"lcrs-go/internal/config"
	"lcrs-go/internal/model"
)

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Deterministic 返回 temperature 固定为 0 的生成参数，
// 用于声明抽取与校验这类要求可复现输出的调用。
func Deterministic() *GenerationParams {
	zero := 0.0
	return &GenerationParams{Temperature: &zero}
}

// Provider defines the interface for a single LLM provider.
type Provider interface {
	// Name 返回提供商的标识，出现在每个提供商的结果条目中。
	Name() string
	// Synthetic 标记该提供商的回答是否为合成占位内容。
	Synthetic() bool
	// Complete 以 role-based 消息调用聊天接口，返回完整回答文本。
	Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error)
}

type openAICompatibleProvider struct {
	cfg    config.ProviderConfig
	client *http.Client
}

// New 根据配置构造一个提供商适配器。
// 未配置 API key 的条目返回 NullProvider，评分逻辑不需要再关心 key 是否存在。
func New(cfg config.ProviderConfig) Provider {
	if cfg.APIKey == "" {
		return NewNull(cfg.Name)
	}
	return &openAICompatibleProvider{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// FromConfigs 按配置顺序构造全部提供商适配器。
func FromConfigs(cfgs []config.ProviderConfig) []Provider {
	providers := make([]Provider, 0, len(cfgs))
	for _, cfg := range cfgs {
		providers = append(providers, New(cfg))
	}
	return providers
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *openAICompatibleProvider) Name() string {
	return p.cfg.Name
}

func (p *openAICompatibleProvider) Synthetic() bool {
	return false
}

// Complete calls the OpenAI-compatible chat completions API and returns the full answer.
func (p *openAICompatibleProvider) Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	reqBody := chatRequest{
		Model:    p.cfg.Model,
		Messages: messages,
		Stream:   false,
	}
	// 从配置或传参注入生成参数（传参优先生效）
	if gen != nil {
		reqBody.Temperature = gen.Temperature
		reqBody.TopP = gen.TopP
		reqBody.MaxTokens = gen.MaxTokens
	} else {
		if p.cfg.TopP != 0 {
			topP := p.cfg.TopP
			reqBody.TopP = &topP
		}
		if p.cfg.MaxTokens != 0 {
			maxTokens := p.cfg.MaxTokens
			reqBody.MaxTokens = &maxTokens
		}
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &model.ProviderTransportError{Provider: p.cfg.Name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", &model.ProviderTransportError{
			Provider: p.cfg.Name,
			Err:      fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes)),
		}
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("chat api returned no choices")
	}
	return chatResp.Choices[0].Message.Content, nil
}
