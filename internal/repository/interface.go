package repository

import (
	"context"

	"github.com/fyerfyer/doc-transition/internal/models"
)

// RunRepository 处理记录仓储接口
type RunRepository interface {
	// Create 创建处理记录
	Create(run *models.Run) error

	// Update 保存整条记录
	Update(run *models.Run) error

	// GetByID 根据ID获取记录，不存在时返回 models.ErrRunNotFound
	GetByID(id string) (*models.Run, error)

	// List 按创建时间倒序分页列出记录
	// filters 支持 status、source、model
	List(offset, limit int, filters map[string]interface{}) ([]*models.Run, int64, error)

	// Delete 删除记录
	Delete(id string) error

	// UpdateStatus 更新状态和错误信息
	UpdateStatus(id string, status models.RunStatus, errorMsg string) error

	// SetTaskID 关联异步任务
	SetTaskID(id, taskID string) error

	// WithContext 返回绑定上下文的仓储
	WithContext(ctx context.Context) RunRepository
}
