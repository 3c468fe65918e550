package llm

import (
	"context"
	"strings"
)

// DefaultSystemPrompt 过渡语生成的系统提示词
const DefaultSystemPrompt = "You are a French news assistant that replaces the " +
	"word TRANSITION with a short, natural and context-aware " +
	"phrase (5–10 words) that logically connects the two sentences."

// MaxExamples 提示词中最多附带的示例数量
const MaxExamples = 10

// TransitionGenerator 基于大模型的过渡语生成器
// 实现 transition.PhraseSource 接口
type TransitionGenerator struct {
	client       Client
	systemPrompt string
	examples     []string
	marker       string
	maxTokens    int
	temperature  float32
}

// GeneratorOption 生成器配置选项
type GeneratorOption func(*TransitionGenerator)

// WithSystemPrompt 替换系统提示词
func WithSystemPrompt(prompt string) GeneratorOption {
	return func(g *TransitionGenerator) {
		if prompt != "" {
			g.systemPrompt = prompt
		}
	}
}

// WithExamples 附带示例过渡语，超出 MaxExamples 的部分丢弃
func WithExamples(examples []string) GeneratorOption {
	return func(g *TransitionGenerator) {
		if len(examples) > MaxExamples {
			examples = examples[:MaxExamples]
		}
		g.examples = examples
	}
}

// WithPromptMarker 用户消息中使用的标记
func WithPromptMarker(marker string) GeneratorOption {
	return func(g *TransitionGenerator) {
		if marker != "" {
			g.marker = marker
		}
	}
}

// WithReplyLimits 设置回复的Token上限和采样温度
func WithReplyLimits(maxTokens int, temperature float32) GeneratorOption {
	return func(g *TransitionGenerator) {
		g.maxTokens = maxTokens
		g.temperature = temperature
	}
}

// NewTransitionGenerator 创建过渡语生成器
func NewTransitionGenerator(client Client, opts ...GeneratorOption) *TransitionGenerator {
	g := &TransitionGenerator{
		client:       client,
		systemPrompt: DefaultSystemPrompt,
		marker:       "TRANSITION",
		maxTokens:    20,
		temperature:  0.7,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name 返回底层模型名称
func (g *TransitionGenerator) Name() string {
	return g.client.Name()
}

// Generate 根据前后文生成一条过渡语
func (g *TransitionGenerator) Generate(ctx context.Context, left, right string) (string, error) {
	resp, err := g.client.Chat(ctx, g.Messages(left, right),
		WithChatMaxTokens(g.maxTokens),
		WithChatTemperature(g.temperature),
	)
	if err != nil {
		return "", err
	}

	phrase := cleanReply(resp.Text)
	if phrase == "" {
		return "", NewLLMError(ErrCodeEmptyResponse, ErrMsgEmptyResponse)
	}
	return phrase, nil
}

// Messages 构造发送给模型的消息
func (g *TransitionGenerator) Messages(left, right string) []Message {
	system := g.systemPrompt
	if len(g.examples) > 0 {
		var sb strings.Builder
		sb.WriteString(system)
		sb.WriteString("\n\nExamples of transitions in the expected style:")
		for _, ex := range g.examples {
			sb.WriteString("\n- ")
			sb.WriteString(ex)
		}
		system = sb.String()
	}

	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: left + "\n" + g.marker + "\n" + right},
	}
}

// 成对出现时去除的包裹符号
var quotePairs = [][2]string{
	{"\"", "\""},
	{"'", "'"},
	{"«", "»"},
	{"“", "”"},
}

// cleanReply 去除首尾空白和包裹引号
func cleanReply(text string) string {
	text = strings.TrimSpace(text)
	for _, q := range quotePairs {
		if len(text) >= len(q[0])+len(q[1]) &&
			strings.HasPrefix(text, q[0]) && strings.HasSuffix(text, q[1]) {
			text = strings.TrimSpace(text[len(q[0]) : len(text)-len(q[1])])
			break
		}
	}
	return text
}
