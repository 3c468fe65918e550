package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/doc-transition/internal/document"
	"github.com/fyerfyer/doc-transition/internal/export"
	"github.com/fyerfyer/doc-transition/internal/models"
	"github.com/fyerfyer/doc-transition/internal/repository"
	"github.com/fyerfyer/doc-transition/internal/transition"
	"github.com/fyerfyer/doc-transition/pkg/storage"
	"github.com/fyerfyer/doc-transition/pkg/taskqueue"
)

var (
	// ErrAsyncDisabled 未配置任务队列
	ErrAsyncDisabled = errors.New("async processing is not enabled")

	// ErrRunNotFinished 处理记录尚未完成
	ErrRunNotFinished = errors.New("run is not completed")

	// ErrEmptyInput 输入为空
	ErrEmptyInput = errors.New("input text is empty")
)

// TransitionService 过渡语插入服务
// 同步处理直接调用 Weaver，异步处理通过任务队列调度，结果都写入处理记录
type TransitionService struct {
	weaver  *transition.Weaver
	repo    repository.RunRepository
	queue   taskqueue.Queue
	store   storage.Storage
	model   string
	timeout time.Duration
	logger  *logrus.Logger
}

// ServiceOption 服务配置选项
type ServiceOption func(*TransitionService)

// WithTaskQueue 启用异步处理
func WithTaskQueue(queue taskqueue.Queue) ServiceOption {
	return func(s *TransitionService) {
		s.queue = queue
	}
}

// WithStorage 保存上传的原始文件
func WithStorage(store storage.Storage) ServiceOption {
	return func(s *TransitionService) {
		s.store = store
	}
}

// WithModel 设置记录中的模型名
func WithModel(model string) ServiceOption {
	return func(s *TransitionService) {
		s.model = model
	}
}

// WithTimeout 单次处理的超时时间
func WithTimeout(timeout time.Duration) ServiceOption {
	return func(s *TransitionService) {
		s.timeout = timeout
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) ServiceOption {
	return func(s *TransitionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewTransitionService 创建过渡语插入服务
func NewTransitionService(weaver *transition.Weaver, repo repository.RunRepository, opts ...ServiceOption) *TransitionService {
	s := &TransitionService{
		weaver: weaver,
		repo:   repo,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AsyncEnabled 是否配置了任务队列
func (s *TransitionService) AsyncEnabled() bool {
	return s.queue != nil
}

// Marker 当前使用的标记
func (s *TransitionService) Marker() string {
	return s.weaver.Marker()
}

// RunOption 单次处理的选项
type RunOption func(*models.Run)

// WithRunMarker 本次处理使用的标记，为空时使用默认标记
func WithRunMarker(marker string) RunOption {
	return func(r *models.Run) {
		r.Marker = marker
	}
}

// Weave 同步处理文本并保存记录
// 没有标记时返回 transition.ErrNoMarker，不创建记录
func (s *TransitionService) Weave(ctx context.Context, text string, opts ...RunOption) (*models.Run, *transition.Result, error) {
	run, err := s.newRun(text, models.SourceText, opts)
	if err != nil {
		return nil, nil, err
	}
	return s.weaveRun(ctx, run)
}

// WeaveFile 解析上传的文件后同步处理
// 配置了存储时原文件会被保存，记录中保留文件ID
func (s *TransitionService) WeaveFile(ctx context.Context, r io.Reader, filename string, opts ...RunOption) (*models.Run, *transition.Result, error) {
	run, err := s.newFileRun(ctx, r, filename, opts)
	if err != nil {
		return nil, nil, err
	}
	return s.weaveRun(ctx, run)
}

// Submit 创建记录并加入异步队列，返回记录和任务ID
func (s *TransitionService) Submit(ctx context.Context, text string, opts ...RunOption) (*models.Run, string, error) {
	run, err := s.newRun(text, models.SourceText, opts)
	if err != nil {
		return nil, "", err
	}
	return s.submitRun(ctx, run)
}

// SubmitFile 解析上传的文件后加入异步队列
func (s *TransitionService) SubmitFile(ctx context.Context, r io.Reader, filename string, opts ...RunOption) (*models.Run, string, error) {
	run, err := s.newFileRun(ctx, r, filename, opts)
	if err != nil {
		return nil, "", err
	}
	return s.submitRun(ctx, run)
}

// ProcessRun 执行已保存的记录，实现 taskqueue.RunProcessor
func (s *TransitionService) ProcessRun(ctx context.Context, runID string) (*taskqueue.WeaveResult, error) {
	run, err := s.repo.WithContext(ctx).GetByID(runID)
	if err != nil {
		return nil, err
	}
	if run.Status == models.RunStatusCompleted {
		// 重复投递的任务直接返回已有结果
		return weaveSummary(run), nil
	}

	run, _, err = s.weaveRun(ctx, run)
	if err != nil {
		return nil, err
	}
	return weaveSummary(run), nil
}

// GetRun 获取处理记录
func (s *TransitionService) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	return s.repo.WithContext(ctx).GetByID(runID)
}

// ListRuns 分页列出处理记录
func (s *TransitionService) ListRuns(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Run, int64, error) {
	return s.repo.WithContext(ctx).List(offset, limit, filters)
}

// DeleteRun 删除记录、关联的任务和上传的文件
func (s *TransitionService) DeleteRun(ctx context.Context, runID string) error {
	repo := s.repo.WithContext(ctx)
	run, err := repo.GetByID(runID)
	if err != nil {
		return err
	}

	if s.queue != nil && run.TaskID != "" {
		if err := s.queue.DeleteTask(ctx, run.TaskID); err != nil && !errors.Is(err, taskqueue.ErrTaskNotFound) {
			s.logger.WithError(err).WithField("task_id", run.TaskID).Warn("Failed to delete task")
		}
	}
	if s.store != nil && run.FileID != "" {
		if err := s.store.Delete(ctx, run.FileID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.WithError(err).WithField("file_id", run.FileID).Warn("Failed to delete stored file")
		}
	}

	return repo.Delete(runID)
}

// GetTask 查询异步任务
func (s *TransitionService) GetTask(ctx context.Context, taskID string) (*taskqueue.Task, error) {
	if s.queue == nil {
		return nil, ErrAsyncDisabled
	}
	return s.queue.GetTask(ctx, taskID)
}

// WaitForRun 等待异步记录完成
func (s *TransitionService) WaitForRun(ctx context.Context, runID string, timeout time.Duration) (*models.Run, error) {
	if s.queue == nil {
		return nil, ErrAsyncDisabled
	}
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Finished() || run.TaskID == "" {
		return run, nil
	}
	if _, err := s.queue.WaitForTask(ctx, run.TaskID, timeout); err != nil {
		return nil, err
	}
	return s.GetRun(ctx, runID)
}

// ExportPDF 将已完成的记录导出为PDF
func (s *TransitionService) ExportPDF(ctx context.Context, runID string) ([]byte, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != models.RunStatusCompleted {
		return nil, ErrRunNotFinished
	}

	phrases, err := run.PhraseList()
	if err != nil {
		return nil, fmt.Errorf("failed to decode phrases: %w", err)
	}
	failures, err := RunFailures(run)
	if err != nil {
		return nil, err
	}
	indices := make([]int, 0, len(failures))
	for _, f := range failures {
		indices = append(indices, f.Index)
	}

	title := run.FileName
	if title == "" {
		title = "Transitions " + shortID(run.ID)
	}
	return export.PDF(export.Report{
		Title:     title,
		Text:      run.Output,
		Phrases:   phrases,
		Failures:  indices,
		Model:     run.Model,
		CreatedAt: run.CreatedAt,
	})
}

// newRun 校验输入并构造记录，不写入数据库
func (s *TransitionService) newRun(text string, source models.RunSource, opts []RunOption) (*models.Run, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	run := &models.Run{
		ID:     uuid.New().String(),
		Source: source,
		Input:  text,
		Model:  s.model,
	}
	for _, opt := range opts {
		opt(run)
	}
	if run.Marker == s.weaver.Marker() {
		run.Marker = ""
	}
	if !transition.Segment(text, s.weaverFor(run).Marker()).HasBoundaries() {
		return nil, transition.ErrNoMarker
	}
	return run, nil
}

// weaverFor 返回记录对应的 Weaver
func (s *TransitionService) weaverFor(run *models.Run) *transition.Weaver {
	if run.Marker == "" {
		return s.weaver
	}
	return s.weaver.With(transition.WithMarker(run.Marker))
}

// newFileRun 解析文件内容，校验通过后才保存原文件
func (s *TransitionService) newFileRun(ctx context.Context, r io.Reader, filename string, opts []RunOption) (*models.Run, error) {
	parser, err := document.ParserFactory(filename)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	text, err := parser.ParseReader(bytes.NewReader(data), filename)
	if err != nil {
		return nil, err
	}

	run, err := s.newRun(text, models.SourceFile, opts)
	if err != nil {
		return nil, err
	}
	run.FileName = filepath.Base(filename)

	if s.store != nil {
		info, err := s.store.Save(ctx, bytes.NewReader(data), run.FileName)
		if err != nil {
			return nil, fmt.Errorf("failed to store upload: %w", err)
		}
		run.FileID = info.ID
	}
	return run, nil
}

// submitRun 保存待处理记录并入队
func (s *TransitionService) submitRun(ctx context.Context, run *models.Run) (*models.Run, string, error) {
	if s.queue == nil {
		return nil, "", ErrAsyncDisabled
	}

	repo := s.repo.WithContext(ctx)
	run.Status = models.RunStatusPending
	if err := repo.Create(run); err != nil {
		return nil, "", fmt.Errorf("failed to create run: %w", err)
	}

	taskID, err := s.queue.Enqueue(ctx, taskqueue.TaskWeave, run.ID, &taskqueue.WeavePayload{RunID: run.ID})
	if err != nil {
		_ = repo.UpdateStatus(run.ID, models.RunStatusFailed, err.Error())
		return nil, "", fmt.Errorf("failed to enqueue run: %w", err)
	}
	if err := repo.SetTaskID(run.ID, taskID); err != nil {
		return nil, "", err
	}
	run.TaskID = taskID

	s.logger.WithFields(logrus.Fields{
		"run_id":  run.ID,
		"task_id": taskID,
	}).Info("Run submitted for async processing")
	return run, taskID, nil
}

// weaveRun 执行处理并保存结果，记录不存在时先创建
func (s *TransitionService) weaveRun(ctx context.Context, run *models.Run) (*models.Run, *transition.Result, error) {
	repo := s.repo.WithContext(ctx)
	log := s.logger.WithField("run_id", run.ID)

	run.Status = models.RunStatusProcessing
	run.Error = ""
	var saveErr error
	if run.CreatedAt.IsZero() {
		saveErr = repo.Create(run)
	} else {
		saveErr = repo.Update(run)
	}
	if saveErr != nil {
		return nil, nil, fmt.Errorf("failed to save run: %w", saveErr)
	}

	weaveCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		weaveCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.weaverFor(run).Weave(weaveCtx, run.Input)
	if err != nil {
		log.WithError(err).Error("Weave failed")
		// 请求上下文可能已经取消，状态写入使用独立上下文
		if updateErr := s.repo.WithContext(context.Background()).UpdateStatus(run.ID, models.RunStatusFailed, err.Error()); updateErr != nil {
			log.WithError(updateErr).Error("Failed to mark run as failed")
		}
		return nil, nil, err
	}

	now := time.Now()
	run.Output = result.Text
	run.Boundaries = result.Boundaries
	run.Skipped = result.Skipped
	run.Status = models.RunStatusCompleted
	run.CompletedAt = &now
	if err := run.SetPhrases(result.Phrases); err != nil {
		return nil, nil, err
	}
	failures := result.Failures
	if failures == nil {
		failures = []transition.BoundaryFailure{}
	}
	if err := run.SetFailures(failures); err != nil {
		return nil, nil, err
	}
	if err := repo.Update(run); err != nil {
		return nil, nil, fmt.Errorf("failed to save run result: %w", err)
	}

	log.WithFields(logrus.Fields{
		"boundaries": result.Boundaries,
		"skipped":    result.Skipped,
		"failures":   len(result.Failures),
		"duration":   time.Since(start).String(),
	}).Info("Run completed")
	return run, result, nil
}

// RunFailures 解析记录中的失败边界
func RunFailures(run *models.Run) ([]transition.BoundaryFailure, error) {
	var failures []transition.BoundaryFailure
	if len(run.Failures) == 0 {
		return failures, nil
	}
	if err := json.Unmarshal(run.Failures, &failures); err != nil {
		return nil, fmt.Errorf("failed to decode failures: %w", err)
	}
	return failures, nil
}

func weaveSummary(run *models.Run) *taskqueue.WeaveResult {
	failures, _ := RunFailures(run)
	return &taskqueue.WeaveResult{
		RunID:      run.ID,
		Boundaries: run.Boundaries,
		Skipped:    run.Skipped,
		Failures:   len(failures),
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
