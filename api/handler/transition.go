package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/doc-transition/api/middleware"
	"github.com/fyerfyer/doc-transition/api/model"
	"github.com/fyerfyer/doc-transition/internal/models"
	"github.com/fyerfyer/doc-transition/internal/services"
	"github.com/fyerfyer/doc-transition/internal/transition"
	"github.com/fyerfyer/doc-transition/pkg/taskqueue"
)

// DefaultMaxUpload 默认上传大小上限
const DefaultMaxUpload int64 = 5 << 20

// TransitionHandler 处理过渡语插入相关的API请求
type TransitionHandler struct {
	svc       *services.TransitionService
	maxUpload int64
	logger    *logrus.Logger
}

// NewTransitionHandler 创建处理器，maxUpload 为0时使用默认值
func NewTransitionHandler(svc *services.TransitionService, maxUpload int64) *TransitionHandler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &TransitionHandler{
		svc:       svc,
		maxUpload: maxUpload,
		logger:    middleware.GetLogger(),
	}
}

// input 一次请求解析出的输入
type input struct {
	text     string // JSON请求的文本
	file     *model.WeaveFileRequest
	marker   string
	fileName string
}

// bind 解析JSON或multipart请求
func (h *TransitionHandler) bind(c *gin.Context) (*input, bool) {
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		var req model.WeaveFileRequest
		if err := c.ShouldBind(&req); err != nil {
			middleware.HandleError(c, middleware.NewValidationError("invalid upload request", middleware.ValidationDetails(err)...))
			return nil, false
		}
		if req.File.Size > h.maxUpload {
			middleware.HandleError(c, middleware.NewTooLargeError(fmt.Sprintf("file exceeds %d bytes", h.maxUpload)))
			return nil, false
		}
		return &input{file: &req, marker: req.Marker, fileName: req.File.Filename}, true
	}

	var req model.WeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid request", middleware.ValidationDetails(err)...))
		return nil, false
	}
	return &input{text: req.Text, marker: req.Marker}, true
}

func (h *TransitionHandler) marker(in *input) string {
	if in.marker != "" {
		return in.marker
	}
	return h.svc.Marker()
}

// Weave 同步处理
// POST /api/transitions
func (h *TransitionHandler) Weave(c *gin.Context) {
	in, ok := h.bind(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	opt := services.WithRunMarker(in.marker)

	var (
		run *models.Run
		res *transition.Result
		err error
	)
	if in.file != nil {
		f, openErr := in.file.File.Open()
		if openErr != nil {
			middleware.HandleError(c, middleware.NewValidationError("cannot read uploaded file", openErr.Error()))
			return
		}
		defer f.Close()
		run, res, err = h.svc.WeaveFile(ctx, f, in.fileName, opt)
	} else {
		run, res, err = h.svc.Weave(ctx, in.text, opt)
	}

	if errors.Is(err, transition.ErrNoMarker) {
		c.JSON(http.StatusOK, model.NewSuccessResponse(model.NoMarkerResponse(in.text, h.marker(in))))
		return
	}
	if err != nil {
		middleware.HandleError(c, serviceError(err))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"run_id":     run.ID,
		"boundaries": res.Boundaries,
		"failures":   len(res.Failures),
	}).Info("Transitions generated")

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewWeaveResponse(run, res)))
}

// Submit 异步处理
// POST /api/transitions/async
func (h *TransitionHandler) Submit(c *gin.Context) {
	if !h.svc.AsyncEnabled() {
		middleware.HandleError(c, serviceError(services.ErrAsyncDisabled))
		return
	}

	in, ok := h.bind(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	opt := services.WithRunMarker(in.marker)

	var (
		run    *models.Run
		taskID string
		err    error
	)
	if in.file != nil {
		f, openErr := in.file.File.Open()
		if openErr != nil {
			middleware.HandleError(c, middleware.NewValidationError("cannot read uploaded file", openErr.Error()))
			return
		}
		defer f.Close()
		run, taskID, err = h.svc.SubmitFile(ctx, f, in.fileName, opt)
	} else {
		run, taskID, err = h.svc.Submit(ctx, in.text, opt)
	}

	if errors.Is(err, transition.ErrNoMarker) {
		c.JSON(http.StatusOK, model.NewSuccessResponse(model.NoMarkerResponse(in.text, h.marker(in))))
		return
	}
	if err != nil {
		middleware.HandleError(c, serviceError(err))
		return
	}

	c.JSON(http.StatusAccepted, model.NewSuccessResponse(&model.SubmitResponse{
		RunID:  run.ID,
		TaskID: taskID,
		Status: string(run.Status),
	}))
}

// GetTask 查询异步任务，完成后附带处理记录
// GET /api/transitions/tasks/:id
func (h *TransitionHandler) GetTask(c *gin.Context) {
	var req model.TaskIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid task id"))
		return
	}

	ctx := c.Request.Context()
	task, err := h.svc.GetTask(ctx, req.ID)
	if err != nil {
		middleware.HandleError(c, serviceError(err))
		return
	}

	resp := &model.TaskResponse{TaskInfo: taskqueue.NewTaskInfo(task)}
	if task.Status.Finished() && task.RunID != "" {
		run, err := h.svc.GetRun(ctx, task.RunID)
		if err == nil {
			failures, _ := services.RunFailures(run)
			info := model.NewRunInfo(run, failures, true)
			resp.Run = &info
		} else if !errors.Is(err, models.ErrRunNotFound) {
			middleware.HandleError(c, serviceError(err))
			return
		}
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}
