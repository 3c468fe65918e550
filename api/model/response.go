package model

import (
	"time"

	"github.com/fyerfyer/doc-transition/internal/models"
	"github.com/fyerfyer/doc-transition/internal/transition"
	"github.com/fyerfyer/doc-transition/pkg/taskqueue"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// WeaveResponse 同步处理结果
type WeaveResponse struct {
	RunID       string                       `json:"run_id,omitempty"`  // 处理记录ID，没有标记时为空
	Boundaries  int                          `json:"boundaries"`        // 标记数量
	Skipped     int                          `json:"skipped"`           // 跳过的边界数量
	Phrases     []string                     `json:"phrases"`           // 过渡语
	Suggestions []string                     `json:"suggestions"`       // 带序号的过渡语
	Failures    []transition.BoundaryFailure `json:"failures"`          // 生成失败的边界
	Text        string                       `json:"text"`              // 最终文本
	Warning     string                       `json:"warning,omitempty"` // 提示信息
}

// NewWeaveResponse 从处理结果构造响应
func NewWeaveResponse(run *models.Run, res *transition.Result) *WeaveResponse {
	failures := res.Failures
	if failures == nil {
		failures = []transition.BoundaryFailure{}
	}
	phrases := res.Phrases
	if phrases == nil {
		phrases = []string{}
	}
	return &WeaveResponse{
		RunID:       run.ID,
		Boundaries:  res.Boundaries,
		Skipped:     res.Skipped,
		Phrases:     phrases,
		Suggestions: res.Numbered(),
		Failures:    failures,
		Text:        res.Text,
	}
}

// NoMarkerResponse 没有标记时的响应，原文原样返回
func NoMarkerResponse(text, marker string) *WeaveResponse {
	return &WeaveResponse{
		Phrases:     []string{},
		Suggestions: []string{},
		Failures:    []transition.BoundaryFailure{},
		Text:        text,
		Warning:     transition.NoMarkerWarning(marker),
	}
}

// SubmitResponse 异步提交响应
type SubmitResponse struct {
	RunID  string `json:"run_id"`  // 处理记录ID
	TaskID string `json:"task_id"` // 异步任务ID
	Status string `json:"status"`  // 记录状态
}

// RunInfo 处理记录信息
type RunInfo struct {
	ID          string                       `json:"id"`
	Source      string                       `json:"source"`
	FileName    string                       `json:"filename,omitempty"`
	Status      string                       `json:"status"`
	Model       string                       `json:"model,omitempty"`
	Marker      string                       `json:"marker,omitempty"`
	Boundaries  int                          `json:"boundaries"`
	Skipped     int                          `json:"skipped"`
	Phrases     []string                     `json:"phrases,omitempty"`
	Failures    []transition.BoundaryFailure `json:"failures,omitempty"`
	Input       string                       `json:"input,omitempty"`
	Output      string                       `json:"output,omitempty"`
	Error       string                       `json:"error,omitempty"`
	TaskID      string                       `json:"task_id,omitempty"`
	CreatedAt   time.Time                    `json:"created_at"`
	CompletedAt *time.Time                   `json:"completed_at,omitempty"`
}

// NewRunInfo 转换处理记录，detail 为 false 时不返回正文
func NewRunInfo(run *models.Run, failures []transition.BoundaryFailure, detail bool) RunInfo {
	info := RunInfo{
		ID:          run.ID,
		Source:      string(run.Source),
		FileName:    run.FileName,
		Status:      string(run.Status),
		Model:       run.Model,
		Marker:      run.Marker,
		Boundaries:  run.Boundaries,
		Skipped:     run.Skipped,
		Error:       run.Error,
		TaskID:      run.TaskID,
		CreatedAt:   run.CreatedAt,
		CompletedAt: run.CompletedAt,
		Failures:    failures,
	}
	if detail {
		info.Phrases, _ = run.PhraseList()
		info.Input = run.Input
		info.Output = run.Output
	}
	return info
}

// RunListResponse 处理记录列表响应
type RunListResponse struct {
	PaginationResponse
	Runs []RunInfo `json:"runs"`
}

// TaskResponse 异步任务响应
type TaskResponse struct {
	*taskqueue.TaskInfo
	Run *RunInfo `json:"run,omitempty"` // 任务完成后附带处理记录
}

// PaginationResponse 分页响应信息
type PaginationResponse struct {
	Total    int64 `json:"total"`     // 总记录数
	Page     int   `json:"page"`      // 当前页码
	PageSize int   `json:"page_size"` // 每页大小
}
