package parser

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

var (
	docxParagraphEndRe = regexp.MustCompile(`</w:p>`)
	docxBreakRe        = regexp.MustCompile(`<w:(br|cr)\s*/>`)
	docxTabRe          = regexp.MustCompile(`<w:tab\s*/>`)
	xmlTagRe           = regexp.MustCompile(`<[^>]+>`)
)

// DocxExtractor 提取 .docx 正文, 每个段落一行
type DocxExtractor struct{}

// Extract 实现 Extractor 接口
func (DocxExtractor) Extract(_ context.Context, data []byte, _ string) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer r.Close()

	return docxXMLToText(r.Editable().GetContent()), nil
}

// docxXMLToText 把 word/document.xml 转成纯文本
func docxXMLToText(content string) string {
	content = docxParagraphEndRe.ReplaceAllString(content, "\n")
	content = docxBreakRe.ReplaceAllString(content, "\n")
	content = docxTabRe.ReplaceAllString(content, "\t")
	content = xmlTagRe.ReplaceAllString(content, "")
	return strings.TrimSpace(html.UnescapeString(content))
}
