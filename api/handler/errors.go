package handler

import (
	"context"
	"errors"

	"github.com/fyerfyer/doc-transition/api/middleware"
	"github.com/fyerfyer/doc-transition/internal/document"
	"github.com/fyerfyer/doc-transition/internal/models"
	"github.com/fyerfyer/doc-transition/internal/services"
	"github.com/fyerfyer/doc-transition/pkg/taskqueue"
)

// serviceError 将服务层错误转换为 AppError
func serviceError(err error) error {
	switch {
	case errors.Is(err, services.ErrEmptyInput):
		return middleware.NewValidationError("text is empty")
	case errors.Is(err, document.ErrUnsupportedType):
		return middleware.NewValidationError("unsupported file type, use .txt or .md", err.Error())
	case errors.Is(err, models.ErrRunNotFound):
		return middleware.NewNotFoundError("run not found")
	case errors.Is(err, taskqueue.ErrTaskNotFound):
		return middleware.NewNotFoundError("task not found")
	case errors.Is(err, services.ErrRunNotFinished):
		return middleware.NewConflictError("run is not completed yet")
	case errors.Is(err, services.ErrAsyncDisabled):
		return middleware.NewUnavailableError("async processing is not enabled")
	case errors.Is(err, context.DeadlineExceeded):
		return middleware.NewUnavailableError("transition generation timed out", err.Error())
	default:
		return middleware.NewInternalError("failed to process request", err.Error())
	}
}
