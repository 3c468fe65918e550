package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RunStatus 处理记录状态类型
type RunStatus string

const (
	// RunStatusPending 已提交，等待处理
	RunStatusPending RunStatus = "pending"
	// RunStatusProcessing 处理中
	RunStatusProcessing RunStatus = "processing"
	// RunStatusCompleted 处理完成
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed 处理失败
	RunStatusFailed RunStatus = "failed"
)

// Valid 是否为已知状态
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusPending, RunStatusProcessing, RunStatusCompleted, RunStatusFailed:
		return true
	}
	return false
}

// RunSource 输入来源
type RunSource string

const (
	// SourceText 直接提交的文本
	SourceText RunSource = "text"
	// SourceFile 上传的文件
	SourceFile RunSource = "file"
)

// Run 一次过渡语插入的处理记录
type Run struct {
	ID          string         `gorm:"primaryKey;size:36"`     // 记录ID
	Source      RunSource      `gorm:"size:10;not null"`       // 输入来源
	FileName    string         `gorm:"size:255"`               // 原始文件名
	FileID      string         `gorm:"size:36"`                // 存储中的文件ID
	Input       string         `gorm:"type:text;not null"`     // 输入文本
	Output      string         `gorm:"type:text"`              // 最终文本
	Phrases     datatypes.JSON `gorm:"type:json"`              // 过渡语列表
	Failures    datatypes.JSON `gorm:"type:json"`              // 失败的边界
	Boundaries  int            `gorm:"not null;default:0"`     // 标记数量
	Skipped     int            `gorm:"not null;default:0"`     // 跳过的边界数量
	Status      RunStatus      `gorm:"size:20;not null;index"` // 处理状态
	Error       string         `gorm:"type:text"`              // 错误信息
	Model       string         `gorm:"size:50"`                // 使用的模型
	Marker      string         `gorm:"size:64"`                // 使用的标记，为空表示默认标记
	TaskID      string         `gorm:"size:64;index"`          // 异步任务ID
	CreatedAt   time.Time      `gorm:"not null;index"`         // 创建时间
	UpdatedAt   time.Time      `gorm:"not null"`               // 更新时间
	CompletedAt *time.Time     `gorm:"index"`                  // 完成时间
}

// BeforeCreate GORM的钩子函数，创建记录前设置默认值
func (r *Run) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = RunStatusPending
	}
	if r.Source == "" {
		r.Source = SourceText
	}
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前设置更新时间
func (r *Run) BeforeUpdate(tx *gorm.DB) error {
	r.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Run) TableName() string {
	return "runs"
}

// SetPhrases 以JSON保存过渡语列表
func (r *Run) SetPhrases(phrases []string) error {
	if phrases == nil {
		phrases = []string{}
	}
	b, err := json.Marshal(phrases)
	if err != nil {
		return err
	}
	r.Phrases = datatypes.JSON(b)
	return nil
}

// PhraseList 解析过渡语列表
func (r *Run) PhraseList() ([]string, error) {
	var phrases []string
	if len(r.Phrases) == 0 {
		return phrases, nil
	}
	err := json.Unmarshal(r.Phrases, &phrases)
	return phrases, err
}

// SetFailures 以JSON保存失败记录
func (r *Run) SetFailures(failures any) error {
	b, err := json.Marshal(failures)
	if err != nil {
		return err
	}
	r.Failures = datatypes.JSON(b)
	return nil
}

// Finished 是否已经处于终态
func (r *Run) Finished() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}
