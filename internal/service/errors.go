package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation 请求参数不合法
	ErrValidation = errors.New("请求参数不合法")
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("记录不存在")
	// ErrPersistenceDisabled 未配置MySQL，历史记录相关功能不可用
	ErrPersistenceDisabled = errors.New("未配置持久化存储")
	// ErrUnauthorized 令牌无效或已过期
	ErrUnauthorized = errors.New("未授权")
	// ErrInvalidCredentials 用户名或密码错误
	ErrInvalidCredentials = errors.New("用户名或密码错误")
)

// ValidationError 字段级校验错误
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s (字段:%s): %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError 判断是否为字段校验错误
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
