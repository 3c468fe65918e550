package llm

import "time"

// MessageRole 消息角色类型
type MessageRole string

const (
	// RoleSystem 系统角色
	RoleSystem MessageRole = "system"
	// RoleUser 用户角色
	RoleUser MessageRole = "user"
	// RoleAssistant 助手角色
	RoleAssistant MessageRole = "assistant"
)

// Message 对话消息结构
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Response 统一的响应结构
type Response struct {
	Text       string    // 生成的文本
	TokenCount int       // 使用的token数
	ModelName  string    // 实际使用的模型
	FinishTime time.Time // 完成时间
}

// Model 常用模型名称
const (
	ModelGPT4      = "gpt-4"       // 默认的OpenAI模型
	ModelGPT4oMini = "gpt-4o-mini" // 低成本的OpenAI模型
	ModelQwenTurbo = "qwen-turbo"  // 通义千问-Turbo模型
	ModelQwenPlus  = "qwen-plus"   // 通义千问-Plus模型
	ModelQwenMax   = "qwen-max"    // 通义千问-Max模型
)
