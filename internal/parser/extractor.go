package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ats-optimizer/internal/analyzer"
	"ats-optimizer/internal/logger"
)

// Extractor 单一格式的文本提取器
type Extractor interface {
	Extract(ctx context.Context, data []byte, name string) (string, error)
}

// TextExtractor 按扩展名分派到具体提取器, 输出经过规范化
type TextExtractor struct {
	extractors map[string]Extractor
}

// Option 文本提取器选项
type Option func(*TextExtractor)

// WithExtractor 为某个扩展名注册（或替换）提取器
func WithExtractor(ext string, e Extractor) Option {
	return func(t *TextExtractor) {
		t.extractors[normalizeExt(ext)] = e
	}
}

// WithTika 配置Tika服务器, 用于 .doc 文件
func WithTika(serverURL string, timeout time.Duration) Option {
	return func(t *TextExtractor) {
		if serverURL == "" {
			return
		}
		t.extractors[".doc"] = NewTikaExtractor(serverURL, WithTikaTimeout(timeout))
	}
}

// NewTextExtractor 创建默认的文本提取器: pdf、docx、txt
func NewTextExtractor(ctx context.Context, opts ...Option) (*TextExtractor, error) {
	pdfExtractor, err := NewEinoPDFTextExtractor(ctx)
	if err != nil {
		return nil, err
	}

	t := &TextExtractor{
		extractors: map[string]Extractor{
			".pdf":  pdfExtractor,
			".docx": DocxExtractor{},
			".txt":  PlainTextExtractor{},
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// SupportedFormats 返回可提取的扩展名（不含点号, 已排序）
func (t *TextExtractor) SupportedFormats() []string {
	formats := make([]string, 0, len(t.extractors))
	for ext := range t.extractors {
		formats = append(formats, strings.TrimPrefix(ext, "."))
	}
	sort.Strings(formats)
	return formats
}

// Supports 判断文件名对应的格式是否可提取
func (t *TextExtractor) Supports(name string) bool {
	_, ok := t.extractors[fileExt(name)]
	return ok
}

// ExtractFile 从本地文件提取文本
func (t *TextExtractor) ExtractFile(ctx context.Context, path string) (string, error) {
	if !t.Supports(path) {
		return "", newUnsupportedError(filepath.Base(path), fileExt(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", newExtractError(filepath.Base(path), fileExt(path), err)
	}
	return t.ExtractBytes(ctx, data, path)
}

// ExtractBytes 根据文件名的扩展名从内存数据提取文本
// 不支持的格式或损坏的文件返回 *ExtractionError
func (t *TextExtractor) ExtractBytes(ctx context.Context, data []byte, name string) (string, error) {
	ext := fileExt(name)
	base := filepath.Base(name)

	e, ok := t.extractors[ext]
	if !ok {
		return "", newUnsupportedError(base, ext)
	}

	startTime := time.Now()
	text, err := t.safeExtract(ctx, e, data, base)
	if err != nil {
		logger.Warn().Err(err).Str("file", base).Str("format", ext).Msg("文本提取失败")
		return "", newExtractError(base, ext, err)
	}

	normalized := analyzer.Normalize(text)
	logger.Info().
		Str("file", base).
		Int("bytes", len(data)).
		Int("chars", len(normalized)).
		Dur("duration", time.Since(startTime)).
		Msg("文本提取完成")
	return normalized, nil
}

// safeExtract 第三方解析库遇到损坏文件可能panic, 统一转为错误
func (t *TextExtractor) safeExtract(ctx context.Context, e Extractor, data []byte, name string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("解析器panic: %v", r)
		}
	}()
	return e.Extract(ctx, data, name)
}

func fileExt(name string) string {
	return normalizeExt(filepath.Ext(name))
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
