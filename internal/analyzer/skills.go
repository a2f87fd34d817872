package analyzer

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"ats-optimizer/internal/types"

	"gopkg.in/yaml.v3"
)

// SkillTaxonomy 技能分类表: 类别 -> 技能列表
// 构造后只读, 可在并发请求间共享
type SkillTaxonomy struct {
	categories []string
	skills     map[string][]string
}

// TaxonomyCategory YAML文件中的一个类别
type TaxonomyCategory struct {
	Name   string   `yaml:"name"`
	Skills []string `yaml:"skills"`
}

// NewSkillTaxonomy 根据给定的类别构造分类表, 技能统一转为小写并拷贝
func NewSkillTaxonomy(categories []TaxonomyCategory) (*SkillTaxonomy, error) {
	t := &SkillTaxonomy{skills: make(map[string][]string)}
	for _, c := range categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("技能类别名称不能为空")
		}
		if _, dup := t.skills[name]; dup {
			return nil, fmt.Errorf("技能类别重复: %s", name)
		}
		list := make([]string, 0, len(c.Skills))
		for _, s := range c.Skills {
			s = strings.ToLower(strings.TrimSpace(s))
			if s != "" {
				list = append(list, s)
			}
		}
		t.categories = append(t.categories, name)
		t.skills[name] = list
	}
	return t, nil
}

// DefaultSkillTaxonomy 内置技能分类表
func DefaultSkillTaxonomy() *SkillTaxonomy {
	t, _ := NewSkillTaxonomy([]TaxonomyCategory{
		{Name: "programming", Skills: []string{"python", "java", "javascript", "c++", "c#", "php", "ruby", "go", "rust", "swift", "kotlin"}},
		{Name: "web", Skills: []string{"html", "css", "react", "angular", "vue", "node.js", "express", "django", "flask", "spring"}},
		{Name: "database", Skills: []string{"sql", "mysql", "postgresql", "mongodb", "redis", "elasticsearch", "oracle", "sqlite"}},
		{Name: "cloud", Skills: []string{"aws", "azure", "gcp", "docker", "kubernetes", "terraform", "jenkins", "ci/cd"}},
		{Name: "data", Skills: []string{"pandas", "numpy", "scikit-learn", "tensorflow", "pytorch", "tableau", "power bi", "excel"}},
		{Name: "tools", Skills: []string{"git", "jira", "confluence", "slack", "trello", "figma", "photoshop", "illustrator"}},
	})
	return t
}

// LoadSkillTaxonomyFile 从YAML文件加载技能分类表
func LoadSkillTaxonomyFile(path string) (*SkillTaxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取技能分类文件失败: %w", err)
	}
	var doc struct {
		Categories []TaxonomyCategory `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("解析技能分类文件失败: %w", err)
	}
	if len(doc.Categories) == 0 {
		return nil, fmt.Errorf("技能分类文件 %s 中没有类别", path)
	}
	return NewSkillTaxonomy(doc.Categories)
}

// Categories 返回类别名称（按定义顺序）
func (t *SkillTaxonomy) Categories() []string {
	return append([]string(nil), t.categories...)
}

// Skills 返回某类别下的技能
func (t *SkillTaxonomy) Skills(category string) []string {
	return append([]string(nil), t.skills[category]...)
}

// SkillSet 文档中识别出的技能 -> 所属类别
type SkillSet map[string]string

// Names 按字母序返回技能名称
func (s SkillSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Matches 大小写不敏感的字面子串匹配
// 不做单词边界检查: "go" 会命中 "good", 这是有意保留的召回/精度取舍
func Matches(text, pattern string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(pattern))
}

// SkillMatcher 基于分类表的技能识别
type SkillMatcher struct {
	taxonomy *SkillTaxonomy
}

// NewSkillMatcher 创建技能匹配器, taxonomy 为空时使用内置分类表
func NewSkillMatcher(taxonomy *SkillTaxonomy) *SkillMatcher {
	if taxonomy == nil {
		taxonomy = DefaultSkillTaxonomy()
	}
	return &SkillMatcher{taxonomy: taxonomy}
}

// Match 返回文本中出现的所有技能; 同一技能出现在多个类别时取第一个类别
func (m *SkillMatcher) Match(text string) SkillSet {
	lower := strings.ToLower(text)
	found := make(SkillSet)
	for _, category := range m.taxonomy.categories {
		for _, skill := range m.taxonomy.skills[category] {
			if _, ok := found[skill]; ok {
				continue
			}
			if strings.Contains(lower, skill) {
				found[skill] = category
			}
		}
	}
	return found
}

// SkillsMatchScore 岗位技能在简历中的覆盖率 (0-100)
// 岗位描述中没有识别出任何技能时返回中性值50
func (m *SkillMatcher) SkillsMatchScore(resume, job string) float64 {
	jobSkills := m.Match(job)
	if len(jobSkills) == 0 {
		return neutralSkillsScore
	}
	resumeSkills := m.Match(resume)

	matched := 0
	for skill := range jobSkills {
		if _, ok := resumeSkills[skill]; ok {
			matched++
		}
	}
	return clampFloat(float64(matched)/float64(len(jobSkills))*100, 0, 100)
}

// AnalyzeSkillsMatch 生成技能缺口报告
func (m *SkillMatcher) AnalyzeSkillsMatch(resume, job string) types.SkillGapReport {
	jobSkills := m.Match(job)
	resumeSkills := m.Match(resume)

	report := types.SkillGapReport{
		MatchedSkills:     []string{},
		MissingSkills:     []string{},
		TotalJobSkills:    len(jobSkills),
		TotalResumeSkills: len(resumeSkills),
	}
	for _, skill := range jobSkills.Names() {
		if _, ok := resumeSkills[skill]; ok {
			report.MatchedSkills = append(report.MatchedSkills, skill)
		} else {
			report.MissingSkills = append(report.MissingSkills, skill)
		}
	}
	if len(jobSkills) > 0 {
		pct := float64(len(report.MatchedSkills)) / float64(len(jobSkills)) * 100
		report.MatchPercentage = math.Round(pct*10) / 10
	}
	return report
}
