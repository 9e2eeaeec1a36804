package provider

import "context"

// nullAnswer 是 NullProvider 的固定占位回答。
// 内容固定不变，保证同一请求的缓存结果可复现。
const nullAnswer = "This is a synthetic placeholder answer: no model provider is configured for this slot, so no external call was made."

// nullProvider 是未配置 API key 时的占位提供商。
// 它返回固定的合成回答并打上 synthetic 标记，让仿真链路
// 在没有真实 key 的环境下也能完整跑通。
type nullProvider struct {
	name string
}

// NewNull 构造一个占位提供商。
func NewNull(name string) Provider {
	if name == "" {
		name = "null"
	}
	return &nullProvider{name: name}
}

func (p *nullProvider) Name() string {
	return p.name
}

func (p *nullProvider) Synthetic() bool {
	return true
}

// Complete 直接返回固定占位回答，不发起任何外部调用。
func (p *nullProvider) Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return nullAnswer, nil
}
