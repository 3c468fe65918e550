package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fyerfyer/doc-transition/internal/database"
	"github.com/fyerfyer/doc-transition/internal/document"
	"github.com/fyerfyer/doc-transition/internal/models"
	"github.com/fyerfyer/doc-transition/internal/repository"
	"github.com/fyerfyer/doc-transition/internal/transition"
	"github.com/fyerfyer/doc-transition/pkg/storage"
	"github.com/fyerfyer/doc-transition/pkg/taskqueue"
)

const sampleText = "Le feu est éteint.\nTRANSITION\nLes routes rouvrent."

// stubSource 固定回复，可按调用序号注入错误
type stubSource struct {
	mu    sync.Mutex
	reply string
	fail  map[int]error
	calls int
}

func (s *stubSource) Generate(_ context.Context, _, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.fail[s.calls]; err != nil {
		return "", err
	}
	return s.reply, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := database.Open(sqlite.Open(dsn), quietLogger())
	require.NoError(t, err)
	return db
}

func newTestService(t *testing.T, source transition.PhraseSource, opts ...ServiceOption) (*TransitionService, repository.RunRepository) {
	t.Helper()
	repo := repository.NewRunRepositoryWithDB(setupTestDB(t))
	weaver := transition.NewWeaver(source, transition.WithLogger(quietLogger()))
	opts = append([]ServiceOption{WithLogger(quietLogger()), WithModel("gpt-4")}, opts...)
	return NewTransitionService(weaver, repo, opts...), repo
}

func newTestQueue(t *testing.T) *taskqueue.RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	queue, err := taskqueue.NewRedisQueue(&taskqueue.Config{RedisAddr: mr.Addr(), RetryLimit: 1})
	require.NoError(t, err)
	queue.SetLogger(quietLogger())
	t.Cleanup(func() { _ = queue.Close() })
	return queue
}

// TestWeave 同步处理并保存记录
func TestWeave(t *testing.T) {
	svc, repo := newTestService(t, &stubSource{reply: "Ensuite"})
	ctx := context.Background()

	run, res, err := svc.Weave(ctx, sampleText)
	require.NoError(t, err)
	assert.Equal(t, "Le feu est éteint.\nEnsuite\nLes routes rouvrent.", res.Text)

	stored, err := repo.GetByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, stored.Status)
	assert.Equal(t, models.SourceText, stored.Source)
	assert.Equal(t, res.Text, stored.Output)
	assert.Equal(t, 1, stored.Boundaries)
	assert.Equal(t, "gpt-4", stored.Model)
	assert.NotNil(t, stored.CompletedAt)

	phrases, err := stored.PhraseList()
	require.NoError(t, err)
	assert.Equal(t, []string{"Ensuite"}, phrases)

	failures, err := RunFailures(stored)
	require.NoError(t, err)
	assert.Empty(t, failures)
}

// TestWeaveInvalidInput 空输入和没有标记的输入不创建记录
func TestWeaveInvalidInput(t *testing.T) {
	source := &stubSource{reply: "Ensuite"}
	svc, repo := newTestService(t, source)
	ctx := context.Background()

	_, _, err := svc.Weave(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, _, err = svc.Weave(ctx, "Aucun marqueur ici.")
	assert.ErrorIs(t, err, transition.ErrNoMarker)

	runs, total, err := repo.List(0, 10, nil)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, runs)
	assert.Zero(t, source.calls)
}

// TestWeaveRecordsFailures 生成失败的边界写入记录
func TestWeaveRecordsFailures(t *testing.T) {
	source := &stubSource{reply: "Ensuite", fail: map[int]error{2: errors.New("rate limited")}}
	svc, _ := newTestService(t, source)

	text := "A.\nTRANSITION\nB.\nTRANSITION\nC."
	run, res, err := svc.Weave(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)

	failures, err := RunFailures(run)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, 2, failures[0].Index)

	phrases, err := run.PhraseList()
	require.NoError(t, err)
	assert.Equal(t, []string{"Ensuite", transition.ErrorSentinel}, phrases)
}

// TestWeaveCancelled 处理中途取消时记录标记为失败
func TestWeaveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, repo := newTestService(t, transition.PhraseSourceFunc(func(ctx context.Context, _, _ string) (string, error) {
		cancel()
		return "", ctx.Err()
	}))

	_, _, err := svc.Weave(ctx, sampleText)
	assert.ErrorIs(t, err, context.Canceled)

	runs, _, err := repo.List(0, 10, nil)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusFailed, runs[0].Status)
	assert.Empty(t, runs[0].Output)
}

// TestWeaveFile 上传文件时保存原文件
func TestWeaveFile(t *testing.T) {
	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)
	svc, _ := newTestService(t, &stubSource{reply: "Ensuite"}, WithStorage(store))
	ctx := context.Background()

	run, res, err := svc.WeaveFile(ctx, strings.NewReader(sampleText), "depeche.txt")
	require.NoError(t, err)
	assert.Equal(t, models.SourceFile, run.Source)
	assert.Equal(t, "depeche.txt", run.FileName)
	assert.Contains(t, res.Text, "Ensuite")

	require.NotEmpty(t, run.FileID)
	exists, err := store.Exists(ctx, run.FileID)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, svc.DeleteRun(ctx, run.ID))
	exists, err = store.Exists(ctx, run.FileID)
	require.NoError(t, err)
	assert.False(t, exists)
}

// TestWeaveFileMarkdown Markdown 输入先转换为纯文本
func TestWeaveFileMarkdown(t *testing.T) {
	svc, _ := newTestService(t, &stubSource{reply: "Ensuite"})

	md := "# Faits divers\n\nLe feu est **éteint**.\nTRANSITION\nLes routes rouvrent."
	run, res, err := svc.WeaveFile(context.Background(), strings.NewReader(md), "depeche.md")
	require.NoError(t, err)
	assert.NotContains(t, run.Input, "**")
	assert.Contains(t, res.Text, "Faits divers")
	assert.Contains(t, res.Text, "Ensuite")
}

// TestWeaveFileErrors 不支持的类型和没有标记的文件不保存
func TestWeaveFileErrors(t *testing.T) {
	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)
	svc, _ := newTestService(t, &stubSource{reply: "Ensuite"}, WithStorage(store))
	ctx := context.Background()

	_, _, err = svc.WeaveFile(ctx, strings.NewReader(sampleText), "depeche.pdf")
	assert.ErrorIs(t, err, document.ErrUnsupportedType)

	_, _, err = svc.WeaveFile(ctx, strings.NewReader("sans marqueur"), "depeche.txt")
	assert.ErrorIs(t, err, transition.ErrNoMarker)

	files, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)
}

// TestSubmitAndProcess 异步提交后由处理器执行
func TestSubmitAndProcess(t *testing.T) {
	queue := newTestQueue(t)
	source := &stubSource{reply: "Ensuite"}
	svc, repo := newTestService(t, source, WithTaskQueue(queue))
	ctx := context.Background()
	require.True(t, svc.AsyncEnabled())

	run, taskID, err := svc.Submit(ctx, sampleText)
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	stored, err := repo.GetByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, stored.Status)
	assert.Equal(t, taskID, stored.TaskID)

	task, err := svc.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, task.RunID)
	assert.Equal(t, taskqueue.TaskWeave, task.Type)

	handler := taskqueue.NewWeaveHandler(svc, quietLogger())
	out, err := handler.ProcessTask(ctx, task)
	require.NoError(t, err)
	summary := out.(*taskqueue.WeaveResult)
	assert.Equal(t, 1, summary.Boundaries)

	stored, err = repo.GetByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, stored.Status)
	assert.Equal(t, "Le feu est éteint.\nEnsuite\nLes routes rouvrent.", stored.Output)

	// 重复投递不再调用生成服务
	_, err = svc.ProcessRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)

	_, err = svc.ProcessRun(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrRunNotFound)
}

// TestSubmitWithoutQueue 未配置队列
func TestSubmitWithoutQueue(t *testing.T) {
	svc, _ := newTestService(t, &stubSource{reply: "Ensuite"})
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, sampleText)
	assert.ErrorIs(t, err, ErrAsyncDisabled)

	_, err = svc.GetTask(ctx, "t1")
	assert.ErrorIs(t, err, ErrAsyncDisabled)
}

// TestDeleteRun 删除记录时同时删除任务
func TestDeleteRun(t *testing.T) {
	queue := newTestQueue(t)
	svc, _ := newTestService(t, &stubSource{reply: "Ensuite"}, WithTaskQueue(queue))
	ctx := context.Background()

	run, taskID, err := svc.Submit(ctx, sampleText)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRun(ctx, run.ID))
	_, err = svc.GetRun(ctx, run.ID)
	assert.ErrorIs(t, err, models.ErrRunNotFound)
	_, err = queue.GetTask(ctx, taskID)
	assert.ErrorIs(t, err, taskqueue.ErrTaskNotFound)

	assert.ErrorIs(t, svc.DeleteRun(ctx, run.ID), models.ErrRunNotFound)
}

// TestListRuns 按状态过滤
func TestListRuns(t *testing.T) {
	queue := newTestQueue(t)
	svc, _ := newTestService(t, &stubSource{reply: "Ensuite"}, WithTaskQueue(queue))
	ctx := context.Background()

	_, _, err := svc.Weave(ctx, sampleText)
	require.NoError(t, err)
	_, _, err = svc.Submit(ctx, sampleText)
	require.NoError(t, err)

	runs, total, err := svc.ListRuns(ctx, 0, 10, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, runs, 2)

	runs, total, err = svc.ListRuns(ctx, 0, 10, map[string]interface{}{"status": string(models.RunStatusPending)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusPending, runs[0].Status)
}

// TestExportPDF 只有完成的记录可以导出
func TestExportPDF(t *testing.T) {
	queue := newTestQueue(t)
	svc, _ := newTestService(t, &stubSource{reply: "Ensuite"}, WithTaskQueue(queue))
	ctx := context.Background()

	run, _, err := svc.Weave(ctx, sampleText)
	require.NoError(t, err)

	data, err := svc.ExportPDF(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF-"))

	pending, _, err := svc.Submit(ctx, sampleText)
	require.NoError(t, err)
	_, err = svc.ExportPDF(ctx, pending.ID)
	assert.ErrorIs(t, err, ErrRunNotFinished)

	_, err = svc.ExportPDF(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrRunNotFound)
}

// TestWeaveCustomMarker 单次处理使用自定义标记，异步处理沿用记录中的标记
func TestWeaveCustomMarker(t *testing.T) {
	queue := newTestQueue(t)
	svc, _ := newTestService(t, &stubSource{reply: "Ensuite"}, WithTaskQueue(queue))
	ctx := context.Background()

	text := "Le feu est éteint.\n[[T]]\nLes routes rouvrent."
	_, _, err := svc.Weave(ctx, text)
	assert.ErrorIs(t, err, transition.ErrNoMarker)

	run, res, err := svc.Weave(ctx, text, WithRunMarker("[[T]]"))
	require.NoError(t, err)
	assert.Equal(t, "[[T]]", run.Marker)
	assert.Equal(t, "Le feu est éteint.\nEnsuite\nLes routes rouvrent.", res.Text)

	// 与默认标记相同时不记录
	run, _, err = svc.Weave(ctx, sampleText, WithRunMarker("TRANSITION"))
	require.NoError(t, err)
	assert.Empty(t, run.Marker)

	pending, _, err := svc.Submit(ctx, text, WithRunMarker("[[T]]"))
	require.NoError(t, err)
	summary, err := svc.ProcessRun(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Boundaries)
}
