package middleware

import (
	"errors"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators 在gin的校验引擎上注册自定义规则
//
//	notblank: 去掉空白后不能为空
//	marker:   非空且不包含空白字符
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("notblank", notBlank); err != nil {
		return err
	}
	return v.RegisterValidation("marker", validMarker)
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validMarker(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s != "" && strings.IndexFunc(s, unicode.IsSpace) < 0
}

// ValidationDetails 将校验错误转换为 "字段: 规则" 列表
func ValidationDetails(err error) []string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return []string{err.Error()}
	}
	details := make([]string, 0, len(errs))
	for _, fe := range errs {
		details = append(details, fe.Field()+": "+fe.Tag())
	}
	return details
}
