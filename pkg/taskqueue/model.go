package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskWeave 异步执行一次过渡语插入
	TaskWeave TaskType = "transition_weave"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Finished 是否处于终态
func (s TaskStatus) Finished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task 任务记录，保存在Redis中供查询
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	RunID       string          `json:"run_id"`       // 关联的处理记录ID
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷
	Result      json.RawMessage `json:"result"`       // 任务结果
	Error       string          `json:"error"`        // 错误信息
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 尝试次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// WeavePayload 过渡语插入任务载荷
// 输入文本保存在处理记录中，载荷只携带记录ID
type WeavePayload struct {
	RunID string `json:"run_id"`
}

// WeaveResult 过渡语插入任务结果摘要
type WeaveResult struct {
	RunID      string `json:"run_id"`     // 处理记录ID
	Boundaries int    `json:"boundaries"` // 标记数量
	Skipped    int    `json:"skipped"`    // 跳过的边界数量
	Failures   int    `json:"failures"`   // 生成失败的边界数量
}
