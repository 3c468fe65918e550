package model

import "mime/multipart"

// PaginationRequest 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// Offset 当前页的偏移量
func (p *PaginationRequest) Offset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// WeaveRequest 文本处理请求
type WeaveRequest struct {
	Text   string `json:"text" binding:"required,notblank"`         // 含标记的文档
	Marker string `json:"marker" binding:"omitempty,marker,max=64"` // 自定义标记
}

// WeaveFileRequest 文件处理请求
type WeaveFileRequest struct {
	File   *multipart.FileHeader `form:"file" binding:"required"`                  // .txt 或 .md 文件
	Marker string                `form:"marker" binding:"omitempty,marker,max=64"` // 自定义标记
}

// RunIDRequest 处理记录ID
type RunIDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// TaskIDRequest 异步任务ID
type TaskIDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// RunListRequest 处理记录列表请求
type RunListRequest struct {
	PaginationRequest
	Status string `form:"status" binding:"omitempty,oneof=pending processing completed failed"` // 状态过滤
	Source string `form:"source" binding:"omitempty,oneof=text file"`                           // 来源过滤
	Model  string `form:"model" binding:"omitempty,max=50"`                                     // 模型过滤
}

// Filters 转换为仓储过滤条件
func (r *RunListRequest) Filters() map[string]interface{} {
	filters := make(map[string]interface{})
	if r.Status != "" {
		filters["status"] = r.Status
	}
	if r.Source != "" {
		filters["source"] = r.Source
	}
	if r.Model != "" {
		filters["model"] = r.Model
	}
	return filters
}
