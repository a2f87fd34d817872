package analyzer

import (
	"regexp"
	"strings"
)

const (
	minWordCount      = 200
	maxWordCount      = 1000
	condenseWordCount = 1200
)

var (
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	// 可选国家码 + 10位号码
	phoneRe = regexp.MustCompile(`(\+?\d{1,3}[- ]?)?\d{10}`)
)

// scoredSections 计入格式分的章节标题
var scoredSections = []string{"experience", "education", "skills", "summary", "objective"}

// requiredSections 缺失时需要给出建议的章节
var requiredSections = []string{"experience", "education", "skills"}

// FormatReport 简历结构与联系方式信号
type FormatReport struct {
	SectionsFound []string
	HasEmail      bool
	HasPhone      bool
	WordCount     int
	Score         int
}

// InspectFormat 检查章节标题、邮箱、电话和篇幅, 并计算格式分
func InspectFormat(resume string) FormatReport {
	lower := strings.ToLower(resume)
	r := FormatReport{
		HasEmail:  emailRe.MatchString(resume),
		HasPhone:  phoneRe.MatchString(resume),
		WordCount: len(strings.Fields(resume)),
	}

	score := 0
	for _, section := range scoredSections {
		if strings.Contains(lower, section) {
			r.SectionsFound = append(r.SectionsFound, section)
			score += 10
		}
	}
	if r.HasEmail {
		score += 10
	}
	if r.HasPhone {
		score += 10
	}
	if r.WordCount >= minWordCount && r.WordCount <= maxWordCount {
		score += 20
	}
	r.Score = clampInt(score, 0, 100)
	return r
}

// FormatScore 格式子分数 (0-100)
func FormatScore(resume string) int {
	return InspectFormat(resume).Score
}

// HasSection 章节标题是否出现（子串匹配）
func (r FormatReport) HasSection(section string) bool {
	for _, s := range r.SectionsFound {
		if s == section {
			return true
		}
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
