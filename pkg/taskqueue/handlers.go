package taskqueue

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// RunProcessor 执行一次已保存的处理记录
type RunProcessor interface {
	ProcessRun(ctx context.Context, runID string) (*WeaveResult, error)
}

// WeaveHandler 处理 TaskWeave 任务
type WeaveHandler struct {
	processor RunProcessor
	logger    *logrus.Logger
}

// NewWeaveHandler 创建过渡语任务处理器
func NewWeaveHandler(processor RunProcessor, logger *logrus.Logger) *WeaveHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &WeaveHandler{processor: processor, logger: logger}
}

// ProcessTask 解析载荷并执行处理记录
func (h *WeaveHandler) ProcessTask(ctx context.Context, task *Task) (interface{}, error) {
	var payload WeavePayload
	if err := UnmarshalPayload(task.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.RunID == "" {
		payload.RunID = task.RunID
	}
	if payload.RunID == "" {
		return nil, fmt.Errorf("%w: missing run_id", ErrInvalidPayload)
	}

	log := h.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"run_id":  payload.RunID,
	})
	log.Info("Processing weave task")

	result, err := h.processor.ProcessRun(ctx, payload.RunID)
	if err != nil {
		log.WithError(err).Error("Weave task failed")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"boundaries": result.Boundaries,
		"failures":   result.Failures,
	}).Info("Weave task completed")
	return result, nil
}

// GetTaskTypes 返回支持的任务类型
func (h *WeaveHandler) GetTaskTypes() []TaskType {
	return []TaskType{TaskWeave}
}
