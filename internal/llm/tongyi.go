package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// 通义千问API端点
	defaultTongyiEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"
)

// tongyiRequest 通义千问请求结构
type tongyiRequest struct {
	Model      string           `json:"model"`
	Input      tongyiInput      `json:"input"`
	Parameters tongyiParameters `json:"parameters"`
}

type tongyiInput struct {
	Messages []Message `json:"messages"`
}

type tongyiParameters struct {
	Temperature  *float32 `json:"temperature,omitempty"`
	TopP         *float32 `json:"top_p,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
	ResultFormat string   `json:"result_format"` // message或text
}

// tongyiResponse 通义千问响应结构
type tongyiResponse struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Output    struct {
		Text    *string `json:"text"`
		Choices []struct {
			FinishReason string  `json:"finish_reason"`
			Message      Message `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// TongyiClient 通义千问大模型客户端实现
type TongyiClient struct {
	cfg        *Config
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewTongyiClient 创建新的通义千问大模型客户端
func NewTongyiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTongyiEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = ModelQwenTurbo
	}

	return &TongyiClient{
		cfg:        cfg,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name 返回模型名称
func (c *TongyiClient) Name() string {
	return c.model
}

// Generate 单轮提示词生成
func (c *TongyiClient) Generate(ctx context.Context, prompt string, options ...ChatOption) (*Response, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}
	return c.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, options...)
}

// Chat 多轮消息对话
func (c *TongyiClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, "messages cannot be empty")
	}

	maxTokens, temperature, topP := c.cfg.resolve(options)
	params := tongyiParameters{ResultFormat: "message"}
	if maxTokens > 0 {
		params.MaxTokens = &maxTokens
	}
	if temperature > 0 {
		params.Temperature = &temperature
	}
	if topP > 0 {
		params.TopP = &topP
	}

	payload, err := json.Marshal(tongyiRequest{
		Model:      c.model,
		Input:      tongyiInput{Messages: messages},
		Parameters: params,
	})
	if err != nil {
		return nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
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

		resp, err := c.send(ctx, payload)
		if err == nil {
			return c.toResponse(resp)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !IsRetryable(err) {
			break
		}
	}

	return nil, lastErr
}

// send 发送一次请求，每次重试都重新构造请求体
func (c *TongyiClient) send(ctx context.Context, payload []byte) (*tongyiResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewLLMError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewLLMError(ErrCodeNetworkError, fmt.Sprintf("failed to read response: %v", err))
	}

	var tongyiResp tongyiResponse
	jsonErr := json.Unmarshal(body, &tongyiResp)

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if jsonErr == nil && tongyiResp.Message != "" {
			msg = fmt.Sprintf("API error: %s (%s)", tongyiResp.Message, tongyiResp.Code)
		}
		return nil, NewLLMError(CodeForStatus(resp.StatusCode), msg)
	}

	if jsonErr != nil {
		return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", jsonErr))
	}
	if tongyiResp.Code != "" {
		return nil, NewLLMError(ErrCodeServerError,
			fmt.Sprintf("API error: %s (%s)", tongyiResp.Message, tongyiResp.Code))
	}

	return &tongyiResp, nil
}

// toResponse 提取文本输出
func (c *TongyiClient) toResponse(resp *tongyiResponse) (*Response, error) {
	result := &Response{
		ModelName:  c.model,
		TokenCount: resp.Usage.TotalTokens,
		FinishTime: time.Now(),
	}

	switch {
	case resp.Output.Text != nil:
		result.Text = *resp.Output.Text
	case len(resp.Output.Choices) > 0:
		result.Text = resp.Output.Choices[0].Message.Content
	default:
		return nil, NewLLMError(ErrCodeEmptyResponse, ErrMsgEmptyResponse)
	}

	return result, nil
}

// 在包初始化时注册通义千问客户端
func init() {
	RegisterClient("tongyi", NewTongyiClient)
}
