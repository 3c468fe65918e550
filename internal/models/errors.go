package models

import "errors"

var (
	// ErrRunNotFound 处理记录不存在
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidRunStatus 无效的处理状态
	ErrInvalidRunStatus = errors.New("invalid run status")
)
