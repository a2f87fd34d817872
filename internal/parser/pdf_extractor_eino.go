package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"ats-optimizer/internal/logger"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	ledongthuc "github.com/ledongthuc/pdf"
)

// 单个PDF的解析超时
const pdfParseTimeout = 30 * time.Second

// EinoPDFTextExtractor 使用 Eino PDF Parser 提取文本, 没有结果时退回 ledongthuc/pdf 逐页提取
type EinoPDFTextExtractor struct {
	parser      *pdf.PDFParser
	useFallback bool
}

// EinoPDFOption PDF提取器的配置选项
type EinoPDFOption func(*EinoPDFTextExtractor)

// WithoutFallback 关闭逐页提取的兜底
func WithoutFallback() EinoPDFOption {
	return func(e *EinoPDFTextExtractor) {
		e.useFallback = false
	}
}

// NewEinoPDFTextExtractor 初始化 Eino PDF 文本提取器
// 不按页面分割，以获取整个文档的连续文本
func NewEinoPDFTextExtractor(ctx context.Context, options ...EinoPDFOption) (*EinoPDFTextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Eino PDF parser: %w", err)
	}

	extractor := &EinoPDFTextExtractor{
		parser:      p,
		useFallback: true,
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor, nil
}

// Extract 实现 Extractor 接口
func (e *EinoPDFTextExtractor) Extract(ctx context.Context, data []byte, name string) (string, error) {
	startTime := time.Now()

	text, err := e.ExtractTextFromReader(ctx, bytes.NewReader(data), name)
	if err == nil && strings.TrimSpace(text) != "" {
		logger.Debug().
			Str("file", name).
			Int("chars", len(text)).
			Dur("duration", time.Since(startTime)).
			Msg("PDF提取完成")
		return text, nil
	}
	if !e.useFallback {
		if err == nil {
			return "", nil
		}
		return "", err
	}

	logger.Warn().Err(err).Str("file", name).Msg("Eino未提取到文本, 改用逐页提取")
	fallbackText, fbErr := extractPDFPages(data)
	if fbErr != nil {
		if err != nil {
			return "", fmt.Errorf("%v; fallback: %w", err, fbErr)
		}
		return "", fbErr
	}
	return fallbackText, nil
}

// ExtractTextFromReader 从 io.Reader 中提取文本
func (e *EinoPDFTextExtractor) ExtractTextFromReader(ctx context.Context, reader io.Reader, uri string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, pdfParseTimeout)
	defer cancel()

	docs, err := e.parser.Parse(ctx, reader,
		einoParser.WithURI(uri),
		einoParser.WithExtraMeta(map[string]any{
			"extraction_time": time.Now().Format(time.RFC3339),
		}),
	)
	if err != nil {
		return "", fmt.Errorf("eino PDF parser failed for URI %s: %w", uri, err)
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("eino PDF parser returned no documents for URI %s", uri)
	}

	// 合并所有文档的内容（以防万一返回了多个）
	var sb strings.Builder
	for i, doc := range docs {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(doc.Content)
	}
	return sb.String(), nil
}

// extractPDFPages 使用 ledongthuc/pdf 逐页提取纯文本, 跳过空页
func extractPDFPages(data []byte) (string, error) {
	r, err := ledongthuc.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read pdf page %d: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
