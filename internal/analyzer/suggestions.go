package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"ats-optimizer/internal/types"
)

// 建议描述中最多列出的条目数
const maxListedItems = 5

// 百分比、时长或两位以上数字
var achievementRe = regexp.MustCompile(`\d+%|\d+\s+(years?|months?)|\d{2,}`)

var actionVerbs = []string{
	"managed", "developed", "created", "implemented", "improved",
	"increased", "reduced", "led", "designed", "built",
}

var (
	engineeringRoleWords = []string{"developer", "software", "engineer"}
	technicalTerms       = []string{"api", "database", "algorithm", "debug", "framework", "testing"}
)

// GenerateSuggestions 按规则顺序生成改进建议: 技能 -> 关键词 -> 格式 -> 内容
// 输出保持规则执行顺序, 不按优先级重排
func GenerateSuggestions(resume, job string, gap types.SkillGapReport) []types.Suggestion {
	suggestions := make([]types.Suggestion, 0, 8)

	if len(gap.MissingSkills) > 0 {
		suggestions = append(suggestions, types.Suggestion{
			Type:        types.SuggestionSkills,
			Title:       "Add Missing Technical Skills",
			Description: "Consider adding these skills: " + strings.Join(firstN(gap.MissingSkills, maxListedItems), ", "),
			Priority:    types.PriorityHigh,
		})
	}

	if missing := MissingKeywords(resume, job); len(missing) > 0 {
		suggestions = append(suggestions, types.Suggestion{
			Type:        types.SuggestionKeywords,
			Title:       "Include Relevant Keywords",
			Description: "Add these keywords naturally: " + strings.Join(firstN(missing, maxListedItems), ", "),
			Priority:    types.PriorityHigh,
		})
	}

	suggestions = append(suggestions, formatSuggestions(resume)...)
	suggestions = append(suggestions, contentSuggestions(resume, job)...)
	return suggestions
}

// MissingKeywords 岗位粗粒度关键词中简历没有的部分, 按岗位描述中首次出现的顺序
func MissingKeywords(resume, job string) []string {
	have := toSet(ExtractImportantKeywords(resume)...)
	var missing []string
	for _, k := range ExtractImportantKeywords(job) {
		if _, ok := have[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

func formatSuggestions(resume string) []types.Suggestion {
	report := InspectFormat(resume)
	var out []types.Suggestion

	if !report.HasEmail {
		out = append(out, types.Suggestion{
			Type:        types.SuggestionFormat,
			Title:       "Add Email Address",
			Description: "Include a professional email address at the top of your resume.",
			Priority:    types.PriorityHigh,
		})
	}
	if !report.HasPhone {
		out = append(out, types.Suggestion{
			Type:        types.SuggestionFormat,
			Title:       "Add Phone Number",
			Description: "Include your phone number (e.g., +91 9876543210).",
			Priority:    types.PriorityMedium,
		})
	}

	for _, section := range requiredSections {
		if report.HasSection(section) {
			continue
		}
		out = append(out, types.Suggestion{
			Type:        types.SuggestionFormat,
			Title:       fmt.Sprintf("Missing %s Section", strings.ToUpper(section[:1])+section[1:]),
			Description: fmt.Sprintf("Your resume should include a %s section.", section),
			Priority:    types.PriorityHigh,
		})
	}

	// 过短和过长互斥
	switch {
	case report.WordCount < minWordCount:
		out = append(out, types.Suggestion{
			Type:        types.SuggestionFormat,
			Title:       "Expand Resume Content",
			Description: "Your resume is too short. Add more details and achievements.",
			Priority:    types.PriorityMedium,
		})
	case report.WordCount > condenseWordCount:
		out = append(out, types.Suggestion{
			Type:        types.SuggestionFormat,
			Title:       "Condense Resume Content",
			Description: "Your resume appears too long. Keep only relevant information.",
			Priority:    types.PriorityLow,
		})
	}
	return out
}

func contentSuggestions(resume, job string) []types.Suggestion {
	lower := strings.ToLower(resume)
	var out []types.Suggestion

	if !achievementRe.MatchString(resume) {
		out = append(out, types.Suggestion{
			Type:        types.SuggestionContent,
			Title:       "Add Quantifiable Achievements",
			Description: "Include numbers or metrics to demonstrate your contributions.",
			Priority:    types.PriorityHigh,
		})
	}

	if countContained(lower, actionVerbs) < 3 {
		out = append(out, types.Suggestion{
			Type:        types.SuggestionContent,
			Title:       "Use Strong Action Verbs",
			Description: `Start bullet points with words like "developed", "managed", "designed".`,
			Priority:    types.PriorityMedium,
		})
	}

	if countContained(strings.ToLower(job), engineeringRoleWords) > 0 && countContained(lower, technicalTerms) < 2 {
		out = append(out, types.Suggestion{
			Type:        types.SuggestionContent,
			Title:       "Add Technical Terminology",
			Description: "Include more technical terms relevant to engineering roles.",
			Priority:    types.PriorityMedium,
		})
	}
	return out
}

// countContained 统计 words 中作为子串出现在 text 里的个数
func countContained(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
