package analyzer

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput 归一化后输入为空
	ErrEmptyInput = errors.New("输入文本为空")
	// ErrEmptyVocabulary 去除停用词后词表为空, TF-IDF无法计算
	ErrEmptyVocabulary = errors.New("empty vocabulary; documents may only contain stop words")
)

// InputError 调用方输入错误（简历或岗位描述归一化后为空），不重试
type InputError struct {
	Field string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s (字段:%s)", ErrEmptyInput, e.Field)
}

func (e *InputError) Unwrap() error {
	return ErrEmptyInput
}

// NewInputError 构造输入错误
func NewInputError(field string) error {
	return &InputError{Field: field}
}

// IsInputError 判断是否为调用方输入错误
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
