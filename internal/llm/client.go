package llm

import (
	"context"
	"sort"
	"time"
)

// Client 大模型客户端接口
type Client interface {
	// Generate 单轮提示词生成
	Generate(ctx context.Context, prompt string, options ...ChatOption) (*Response, error)

	// Chat 多轮消息对话
	Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error)

	// Name 返回模型名称
	Name() string
}

// Config 大模型客户端配置
type Config struct {
	APIKey      string        // API密钥
	BaseURL     string        // API基础URL，为空时使用各客户端的默认端点
	Model       string        // 模型名称，为空时使用各客户端的默认模型
	Timeout     time.Duration // 单次请求超时时间
	MaxRetries  int           // 最大重试次数
	MaxTokens   int           // 最大生成Token数
	Temperature float32       // 采样温度(0.0-2.0)
	TopP        float32       // 核采样概率阈值，0表示不设置
}

// DefaultConfig 返回默认配置
// 过渡语很短，默认参数与生成短句的场景匹配
func DefaultConfig() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		MaxRetries:  2,
		MaxTokens:   20,
		Temperature: 0.7,
	}
}

// Option 客户端配置选项函数类型
type Option func(*Config)

// WithAPIKey 设置API密钥
func WithAPIKey(apiKey string) Option {
	return func(c *Config) {
		c.APIKey = apiKey
	}
}

// WithBaseURL 设置API基础URL
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithModel 设置模型名称
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTimeout 设置请求超时时间
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxRetries 设置最大重试次数
func WithMaxRetries(retries int) Option {
	return func(c *Config) {
		c.MaxRetries = retries
	}
}

// WithMaxTokens 设置最大生成Token数
func WithMaxTokens(tokens int) Option {
	return func(c *Config) {
		c.MaxTokens = tokens
	}
}

// WithTemperature 设置采样温度
func WithTemperature(temp float32) Option {
	return func(c *Config) {
		c.Temperature = temp
	}
}

// WithTopP 设置核采样概率阈值
func WithTopP(topP float32) Option {
	return func(c *Config) {
		c.TopP = topP
	}
}

// NewConfig 创建配置并应用选项
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// ChatOption 单次请求的选项
type ChatOption func(*ChatOptions)

// ChatOptions 单次请求的选项集合，nil 表示沿用客户端配置
type ChatOptions struct {
	MaxTokens   *int
	Temperature *float32
	TopP        *float32
}

// WithChatMaxTokens 设置本次请求的最大Token数
func WithChatMaxTokens(tokens int) ChatOption {
	return func(o *ChatOptions) {
		o.MaxTokens = &tokens
	}
}

// WithChatTemperature 设置本次请求的采样温度
func WithChatTemperature(temp float32) ChatOption {
	return func(o *ChatOptions) {
		o.Temperature = &temp
	}
}

// WithChatTopP 设置本次请求的核采样概率阈值
func WithChatTopP(topP float32) ChatOption {
	return func(o *ChatOptions) {
		o.TopP = &topP
	}
}

// resolve 合并客户端配置与单次请求选项
func (c *Config) resolve(options []ChatOption) (maxTokens int, temperature, topP float32) {
	opts := &ChatOptions{}
	for _, opt := range options {
		opt(opts)
	}

	maxTokens, temperature, topP = c.MaxTokens, c.Temperature, c.TopP
	if opts.MaxTokens != nil {
		maxTokens = *opts.MaxTokens
	}
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	if opts.TopP != nil {
		topP = *opts.TopP
	}
	return maxTokens, temperature, topP
}

// backoff 第 attempt 次重试前的等待时间
func backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * 100 * time.Millisecond
}

// Factory 大模型客户端工厂函数类型
type Factory func(opts ...Option) (Client, error)

// 全局注册的大模型客户端工厂函数
var clientFactories = make(map[string]Factory)

// RegisterClient 注册大模型客户端工厂函数
func RegisterClient(name string, factory Factory) {
	clientFactories[name] = factory
}

// NewClient 根据名称创建大模型客户端
func NewClient(name string, opts ...Option) (Client, error) {
	factory, exists := clientFactories[name]
	if !exists {
		return nil, NewLLMError(
			ErrCodeInvalidRequest,
			"llm client type not registered: "+name)
	}
	return factory(opts...)
}

// Providers 返回已注册的客户端名称
func Providers() []string {
	names := make([]string, 0, len(clientFactories))
	for name := range clientFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
