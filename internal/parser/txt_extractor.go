package parser

import (
	"context"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// PlainTextExtractor 读取 .txt, 先按UTF-8解码, 不合法时按 Latin-1 解码
type PlainTextExtractor struct{}

// Extract 实现 Extractor 接口
func (PlainTextExtractor) Extract(_ context.Context, data []byte, _ string) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode text as latin-1: %w", err)
	}
	return string(decoded), nil
}
