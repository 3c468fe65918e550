package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient OpenAI聊天补全客户端
type OpenAIClient struct {
	client *openai.Client
	cfg    *Config
	model  string
}

// NewOpenAIClient 创建一个新的OpenAI客户端
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	model := cfg.Model
	if model == "" {
		model = ModelGPT4
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		model:  model,
	}, nil
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string {
	return c.model
}

// Generate 单轮提示词生成
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, options ...ChatOption) (*Response, error) {
	if prompt == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}
	return c.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, options...)
}

// Chat 多轮消息对话，限流和服务端错误按指数退避重试
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, "messages cannot be empty")
	}

	maxTokens, temperature, topP := c.cfg.resolve(options)
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return nil, NewLLMError(ErrCodeEmptyResponse, ErrMsgEmptyResponse)
			}
			return &Response{
				Text:       resp.Choices[0].Message.Content,
				TokenCount: resp.Usage.TotalTokens,
				ModelName:  c.model,
				FinishTime: time.Now(),
			}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = classifyOpenAIError(err)
		if !IsRetryable(lastErr) {
			break
		}
	}

	return nil, lastErr
}

// classifyOpenAIError 将SDK错误转换为LLMError
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewLLMError(CodeForStatus(apiErr.HTTPStatusCode),
			fmt.Sprintf("API error (status %d): %s", apiErr.HTTPStatusCode, apiErr.Message))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewLLMError(CodeForStatus(reqErr.HTTPStatusCode),
			fmt.Sprintf("request error (status %d): %v", reqErr.HTTPStatusCode, reqErr.Err))
	}

	return NewLLMError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", err))
}

func init() {
	RegisterClient("openai", NewOpenAIClient)
}
