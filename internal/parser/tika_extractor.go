package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ats-optimizer/internal/tracing"
	"ats-optimizer/pkg/ratelimit"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tikaTracer = otel.Tracer("ats-optimizer/parser/tika")

const (
	defaultTikaQPM     = 120 // 每分钟最多发往Tika的请求数
	defaultTikaRetries = 2
)

// 各格式上传给Tika时使用的Content-Type
var tikaContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// TikaExtractor 基于Apache Tika服务器的文本提取器, 用于本地库无法处理的 .doc
type TikaExtractor struct {
	// Tika服务器地址，例如 http://localhost:9998
	ServerURL string
	// HTTP客户端，可配置超时等参数
	Client *http.Client
	// 限流并对 429/503 和网络错误退避重试
	limiter *ratelimit.TokenBucket
}

// TikaOption 定义配置选项函数
type TikaOption func(*TikaExtractor)

// WithTikaTimeout 设置请求超时
func WithTikaTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaExtractor) {
		if timeout > 0 {
			e.Client.Timeout = timeout
		}
	}
}

// WithTikaClient 使用自定义HTTP客户端
func WithTikaClient(client *http.Client) TikaOption {
	return func(e *TikaExtractor) {
		if client != nil {
			e.Client = client
		}
	}
}

// WithTikaRateLimit 设置每分钟请求数和最大重试次数
func WithTikaRateLimit(qpm, maxRetries int) TikaOption {
	return func(e *TikaExtractor) {
		e.limiter = ratelimit.NewTokenBucket(qpm, 0).WithRetryPolicy(500*time.Millisecond, maxRetries)
	}
}

// NewTikaExtractor 创建Tika提取器
func NewTikaExtractor(serverURL string, options ...TikaOption) *TikaExtractor {
	extractor := &TikaExtractor{
		ServerURL: strings.TrimRight(serverURL, "/"),
		Client:    &http.Client{Timeout: 60 * time.Second},
		limiter:   ratelimit.NewTokenBucket(defaultTikaQPM, 0).WithRetryPolicy(500*time.Millisecond, defaultTikaRetries),
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor
}

// Extract 实现 Extractor 接口: PUT /tika, 以纯文本返回
func (e *TikaExtractor) Extract(ctx context.Context, data []byte, name string) (string, error) {
	ctx, span := tikaTracer.Start(ctx, "Tika.Extract", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.url", e.ServerURL+"/tika"),
		attribute.Int("file.size", len(data)),
	)

	attempts := 0
	var text string
	err := e.limiter.RetryWithBackoff(ctx, func() error {
		attempts++
		var callErr error
		text, callErr = e.call(ctx, span, data, name)
		return callErr
	})
	span.SetAttributes(attribute.Int("tika.attempts", attempts))
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
	}
	return text, err
}

func (e *TikaExtractor) call(ctx context.Context, span trace.Span, data []byte, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.ServerURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("创建HTTP请求失败: %w", err)
	}

	if ct, ok := tikaContentTypes[fileExt(name)]; ok {
		req.Header.Set("Content-Type", ct)
	}
	req.Header.Set("Accept", "text/plain")
	if name != "" {
		req.Header.Set("X-Tika-Resource-Name", name)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			return "", ratelimit.Retryable(err)
		}
		return "", err
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取Tika响应失败: %w", err)
	}
	return string(text), nil
}
