package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fyerfyer/doc-transition/internal/database"
	"github.com/fyerfyer/doc-transition/internal/models"
)

// runRepository 处理记录仓储实现
type runRepository struct {
	db  *gorm.DB
	ctx context.Context
}

// NewRunRepository 使用全局数据库连接创建仓储
func NewRunRepository() RunRepository {
	return NewRunRepositoryWithDB(nil)
}

// NewRunRepositoryWithDB 使用指定的数据库连接创建仓储
func NewRunRepositoryWithDB(db *gorm.DB) RunRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &runRepository{
		db:  db,
		ctx: context.Background(),
	}
}

// WithContext 返回绑定上下文的仓储
func (r *runRepository) WithContext(ctx context.Context) RunRepository {
	return &runRepository{db: r.db, ctx: ctx}
}

func (r *runRepository) conn() *gorm.DB {
	return r.db.WithContext(r.ctx)
}

// Create 创建处理记录
func (r *runRepository) Create(run *models.Run) error {
	if run.ID == "" {
		return errors.New("run ID cannot be empty")
	}
	return r.conn().Create(run).Error
}

// Update 保存整条记录
func (r *runRepository) Update(run *models.Run) error {
	if run.ID == "" {
		return errors.New("run ID cannot be empty")
	}
	return r.conn().Save(run).Error
}

// GetByID 根据ID获取记录
func (r *runRepository) GetByID(id string) (*models.Run, error) {
	var run models.Run
	err := r.conn().Where("id = ?", id).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrRunNotFound, id)
		}
		return nil, err
	}
	return &run, nil
}

// List 按创建时间倒序分页列出记录
func (r *runRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.Run, int64, error) {
	var runs []*models.Run
	var total int64

	query := r.conn().Model(&models.Run{})
	for _, field := range []string{"status", "source", "model"} {
		value, ok := filters[field]
		if !ok {
			continue
		}
		if s := fmt.Sprintf("%v", value); s != "" {
			query = query.Where(field+" = ?", s)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// Delete 删除记录
func (r *runRepository) Delete(id string) error {
	result := r.conn().Where("id = ?", id).Delete(&models.Run{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrRunNotFound, id)
	}
	return nil
}

// UpdateStatus 更新状态和错误信息，进入终态时记录完成时间
func (r *runRepository) UpdateStatus(id string, status models.RunStatus, errorMsg string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %s", models.ErrInvalidRunStatus, status)
	}

	updates := map[string]interface{}{
		"status":     status,
		"error":      errorMsg,
		"updated_at": time.Now(),
	}
	if status == models.RunStatusCompleted || status == models.RunStatusFailed {
		updates["completed_at"] = time.Now()
	}

	result := r.conn().Model(&models.Run{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrRunNotFound, id)
	}
	return nil
}

// SetTaskID 关联异步任务
func (r *runRepository) SetTaskID(id, taskID string) error {
	result := r.conn().Model(&models.Run{}).Where("id = ?", id).
		Updates(map[string]interface{}{"task_id": taskID, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrRunNotFound, id)
	}
	return nil
}
