package types

// SuggestionType 建议类型
type SuggestionType string

const (
	// SuggestionSkills 技能缺口
	SuggestionSkills SuggestionType = "skills"
	// SuggestionKeywords 关键词缺口
	SuggestionKeywords SuggestionType = "keywords"
	// SuggestionFormat 格式问题
	SuggestionFormat SuggestionType = "format"
	// SuggestionContent 内容质量
	SuggestionContent SuggestionType = "content"
)

// Priority 建议优先级
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Suggestion 一条简历改进建议
type Suggestion struct {
	Type        SuggestionType `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    Priority       `json:"priority"`
}

// KeywordFrequency 关键词及其出现次数
type KeywordFrequency struct {
	Term      string `json:"term"`
	Frequency int    `json:"frequency"`
}

// SkillGapReport 技能匹配报告
// 不变量: Matched 与 Missing 不相交, 二者并集等于岗位描述中识别出的技能集合
type SkillGapReport struct {
	MatchedSkills     []string `json:"matched_skills"`
	MissingSkills     []string `json:"missing_skills"`
	MatchPercentage   float64  `json:"match_percentage"`
	TotalJobSkills    int      `json:"total_job_skills"`
	TotalResumeSkills int      `json:"total_resume_skills"`
}

// ScoreBreakdown 四项子分数（加权前, 0-100）以及最终ATS分数
type ScoreBreakdown struct {
	KeywordMatch   float64 `json:"keyword_match"`
	SkillsMatch    float64 `json:"skills_match"`
	TextSimilarity float64 `json:"text_similarity"`
	FormatScore    float64 `json:"format_score"`
	Total          int     `json:"total"`
}

// AnalysisResult 一次简历分析的完整输出
type AnalysisResult struct {
	ATSScore    int            `json:"ats_score"`
	Breakdown   ScoreBreakdown `json:"score_breakdown"`
	SkillGap    SkillGapReport `json:"skill_gap"`
	Suggestions []Suggestion   `json:"suggestions"`

	// 归一化后的输入文本, 供持久化和文档生成使用
	ResumeText     string `json:"resume_text,omitempty"`
	JobDescription string `json:"job_description,omitempty"`
}
