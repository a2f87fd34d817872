package generator

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"ats-optimizer/internal/types"

	"baliance.com/gooxml/document"
)

// ErrGenerateFailed 生成文档失败
var ErrGenerateFailed = errors.New("生成优化简历失败")

// GenerationError 文档生成失败, 原样返回给调用方
type GenerationError struct {
	Op      string
	BaseErr error
	Detail  string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s (操作:%s): %s", e.BaseErr, e.Op, e.Detail)
}

func (e *GenerationError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *GenerationError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

func newGenerationError(op string, cause error) error {
	return &GenerationError{Op: op, BaseErr: ErrGenerateFailed, Detail: cause.Error()}
}

// IsGenerationError 判断是否为文档生成错误
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

// DocxGenerator 生成包含简历正文和优化建议的 .docx 文档
type DocxGenerator struct {
	tempDir string
}

// Option 生成器选项
type Option func(*DocxGenerator)

// WithTempDir 指定临时文件目录, 默认使用系统临时目录
func WithTempDir(dir string) Option {
	return func(g *DocxGenerator) {
		g.tempDir = dir
	}
}

// NewDocxGenerator 创建文档生成器
func NewDocxGenerator(opts ...Option) *DocxGenerator {
	g := &DocxGenerator{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Render 生成优化后的简历文档, 返回临时文件路径, 调用方负责删除
func (g *DocxGenerator) Render(resumeText string, suggestions []types.Suggestion) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newGenerationError("render", fmt.Errorf("panic: %v", r))
		}
	}()

	doc := BuildDocument(resumeText, suggestions)

	f, err := os.CreateTemp(g.tempDir, "optimized-*.docx")
	if err != nil {
		return "", newGenerationError("create_temp", err)
	}
	path = f.Name()
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", newGenerationError("create_temp", err)
	}

	if err := doc.SaveToFile(path); err != nil {
		os.Remove(path)
		return "", newGenerationError("save", err)
	}
	return path, nil
}

// BuildDocument 组装文档: 标题、简历正文、分页、逐条建议
func BuildDocument(resumeText string, suggestions []types.Suggestion) *document.Document {
	doc := document.New()

	addHeading(doc, "Optimized Resume", "Title")
	addHeading(doc, "Resume Content", "Heading1")

	for _, line := range strings.Split(asciiOnly(resumeText), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			doc.AddParagraph().AddRun().AddText(line)
		}
	}

	doc.AddParagraph().AddRun().AddPageBreak()
	addHeading(doc, "Optimization Suggestions", "Heading1")

	for i, s := range suggestions {
		addHeading(doc, fmt.Sprintf("%d. %s", i+1, s.Title), "Heading2")
		doc.AddParagraph().AddRun().AddText("Priority: " + strings.ToUpper(string(s.Priority)))
		doc.AddParagraph().AddRun().AddText(s.Description)
		doc.AddParagraph()
	}
	return doc
}

func addHeading(doc *document.Document, text, style string) {
	p := doc.AddParagraph()
	p.SetStyle(style)
	p.AddRun().AddText(text)
}

// asciiOnly 去掉非ASCII字符
func asciiOnly(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r < 128 {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
