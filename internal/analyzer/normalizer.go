package analyzer

import (
	"regexp"
	"strings"
)

var (
	// 保留字母、数字、下划线、空白以及 . , ; : - @ # +
	unwantedCharRe = regexp.MustCompile(`[^\p{L}\p{N}_\s.,;:@#+\-]`)
	// 换行连同其两侧的空白折叠为单个换行
	newlineRunRe = regexp.MustCompile(`[^\S\n]*\n\s*`)
	// 除换行外的空白折叠为单个空格
	horizontalSpaceRe = regexp.MustCompile(`[^\S\n]+`)
)

// Normalize 清洗抽取出的原始文本, 输出供下游分析器共用的规范文本
// 空输入返回空字符串; 对已规范化的文本再次调用结果不变
func Normalize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	text := strings.ToValidUTF8(raw, " ")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	// 先替换非法字符再折叠空白, 否则替换出的空格会破坏幂等性
	text = unwantedCharRe.ReplaceAllString(text, " ")
	text = newlineRunRe.ReplaceAllString(text, "\n")
	text = horizontalSpaceRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
