package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/doc-transition/api/middleware"
	"github.com/fyerfyer/doc-transition/api/model"
	"github.com/fyerfyer/doc-transition/internal/services"
)

// RunHandler 处理记录相关的API请求
type RunHandler struct {
	svc    *services.TransitionService
	logger *logrus.Logger
}

// NewRunHandler 创建处理记录处理器
func NewRunHandler(svc *services.TransitionService) *RunHandler {
	return &RunHandler{
		svc:    svc,
		logger: middleware.GetLogger(),
	}
}

// ListRuns 分页列出处理记录
// GET /api/runs
func (h *RunHandler) ListRuns(c *gin.Context) {
	var req model.RunListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid query parameters", middleware.ValidationDetails(err)...))
		return
	}

	runs, total, err := h.svc.ListRuns(c.Request.Context(), req.Offset(), req.GetPageSize(), req.Filters())
	if err != nil {
		middleware.HandleError(c, serviceError(err))
		return
	}

	infos := make([]model.RunInfo, 0, len(runs))
	for _, run := range runs {
		infos = append(infos, model.NewRunInfo(run, nil, false))
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(&model.RunListResponse{
		PaginationResponse: model.PaginationResponse{
			Total:    total,
			Page:     req.GetPage(),
			PageSize: req.GetPageSize(),
		},
		Runs: infos,
	}))
}

// GetRun 获取处理记录详情
// GET /api/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	var req model.RunIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid run id"))
		return
	}

	run, err := h.svc.GetRun(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, serviceError(err))
		return
	}
	failures, err := services.RunFailures(run)
	if err != nil {
		middleware.HandleError(c, serviceError(err))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewRunInfo(run, failures, true)))
}

// ExportPDF 导出处理记录
// GET /api/runs/:id/pdf
func (h *RunHandler) ExportPDF(c *gin.Context) {
	var req model.RunIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid run id"))
		return
	}

	data, err := h.svc.ExportPDF(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, serviceError(err))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="transitions-%s.pdf"`, req.ID))
	c.Data(http.StatusOK, "application/pdf", data)
}

// DeleteRun 删除处理记录
// DELETE /api/runs/:id
func (h *RunHandler) DeleteRun(c *gin.Context) {
	var req model.RunIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid run id"))
		return
	}

	if err := h.svc.DeleteRun(c.Request.Context(), req.ID); err != nil {
		middleware.HandleError(c, serviceError(err))
		return
	}

	h.logger.WithField("run_id", req.ID).Info("Run deleted")
	c.JSON(http.StatusOK, model.NewSuccessResponse(gin.H{"run_id": req.ID, "deleted": true}))
}
