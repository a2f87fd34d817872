package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat 不支持的文件格式
	ErrUnsupportedFormat = errors.New("不支持的文件格式")
	// ErrExtractFailed 文件无法读取或已损坏
	ErrExtractFailed = errors.New("提取文件文本失败")
)

// ExtractionError 文本提取失败, 原样返回给调用方
type ExtractionError struct {
	File    string
	Format  string
	BaseErr error
	Detail  string
}

func (e *ExtractionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (文件:%s, 格式:%s): %s", e.BaseErr, e.File, e.Format, e.Detail)
	}
	return fmt.Sprintf("%s (文件:%s, 格式:%s)", e.BaseErr, e.File, e.Format)
}

func (e *ExtractionError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ExtractionError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

func newUnsupportedError(file, format string) error {
	return &ExtractionError{File: file, Format: format, BaseErr: ErrUnsupportedFormat}
}

func newExtractError(file, format string, cause error) error {
	return &ExtractionError{File: file, Format: format, BaseErr: ErrExtractFailed, Detail: cause.Error()}
}

// IsExtractionError 判断是否为文本提取错误
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}
