package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/doc-transition/api/model"
)

// 应用中的错误类型
const (
	ErrorTypeValidation  = "VALIDATION_ERROR"  // 输入验证错误
	ErrorTypeNotFound    = "NOT_FOUND_ERROR"   // 资源不存在错误
	ErrorTypeConflict    = "CONFLICT_ERROR"    // 资源状态不允许该操作
	ErrorTypeTooLarge    = "TOO_LARGE_ERROR"   // 请求体过大
	ErrorTypeUnavailable = "UNAVAILABLE_ERROR" // 依赖服务不可用
	ErrorTypeInternal    = "INTERNAL_ERROR"    // 内部服务器错误
)

// AppError 应用错误结构体
type AppError struct {
	Type    string // 错误类型
	Message string // 返回给客户端的消息
	Details string // 详细错误信息，只在调试模式返回
	Code    int    // HTTP状态码
}

// Error 实现error接口的方法
func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func newAppError(errType string, code int, message string, details []string) AppError {
	return AppError{
		Type:    errType,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    code,
	}
}

// NewValidationError 创建输入验证错误
func NewValidationError(message string, details ...string) AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message, details)
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, message, nil)
}

// NewConflictError 创建状态冲突错误
func NewConflictError(message string, details ...string) AppError {
	return newAppError(ErrorTypeConflict, http.StatusConflict, message, details)
}

// NewTooLargeError 创建请求体过大错误
func NewTooLargeError(message string) AppError {
	return newAppError(ErrorTypeTooLarge, http.StatusRequestEntityTooLarge, message, nil)
}

// NewUnavailableError 创建依赖服务不可用错误
func NewUnavailableError(message string, details ...string) AppError {
	return newAppError(ErrorTypeUnavailable, http.StatusServiceUnavailable, message, details)
}

// NewInternalError 创建内部服务器错误
func NewInternalError(message string, details ...string) AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message, details)
}

// ErrorMiddleware 统一错误处理中间件
// 处理器通过 c.Error 记录错误，这里统一转换为 model.Response
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithFields(logrus.Fields{
					FieldError:   rec,
					"stack":      string(debug.Stack()),
					FieldPath:    c.Request.URL.Path,
					FieldTraceID: c.GetString(traceIDKey),
				}).Error("Panic recovered in API request")

				resp := model.NewErrorResponse(http.StatusInternalServerError, "An unexpected error occurred")
				if gin.Mode() == gin.DebugMode {
					resp.Message = fmt.Sprintf("Panic: %v", rec)
				}
				resp.TraceID = c.GetString(traceIDKey)
				c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		traceID := c.GetString(traceIDKey)

		var appErr AppError
		var appErrPtr *AppError
		switch {
		case errors.As(err, &appErr):
		case errors.As(err, &appErrPtr):
			appErr = *appErrPtr
		default:
			appErr = NewInternalError("Internal server error", err.Error())
		}

		entry := log.WithFields(logrus.Fields{
			"error_type": appErr.Type,
			FieldTraceID: traceID,
			FieldPath:    c.Request.URL.Path,
		})
		if appErr.Details != "" {
			entry = entry.WithField(FieldError, appErr.Details)
		}
		if appErr.Code >= http.StatusInternalServerError {
			entry.Error(appErr.Message)
		} else {
			entry.Warn(appErr.Message)
		}

		resp := model.NewErrorResponse(appErr.Code, appErr.Message)
		if gin.Mode() == gin.DebugMode && appErr.Details != "" {
			resp.Message = appErr.Message + ": " + appErr.Details
		}
		resp.TraceID = traceID

		c.AbortWithStatusJSON(appErr.Code, resp)
	}
}

// HandleError 在处理器中使用的错误处理辅助函数
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
}
