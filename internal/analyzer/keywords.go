package analyzer

import (
	"regexp"
	"sort"
	"strings"

	"ats-optimizer/internal/types"
)

// MaxKeywords 每份文档保留的关键词数量上限
const MaxKeywords = 50

var (
	rankedTokenRe = regexp.MustCompile(`\b[a-z]{3,}\b`)
	// 普通单词或大写/数字缩写（AWS、K8S、2024）
	importantTokenRe = regexp.MustCompile(`\b[A-Za-z]{3,}\b|\b[A-Z0-9]{2,}\b`)
)

// 排名关键词使用的停用词
var rankedStopWords = toSet(
	"the", "and", "for", "are", "but", "not", "you", "all", "can", "had", "her", "was", "one", "our", "out",
	"day", "get", "has", "him", "his", "how", "man", "new", "now", "old", "see", "two", "way", "who", "boy",
	"did", "its", "let", "put", "say", "she", "too", "use",
)

// 建议生成使用的停用词（更小的集合）
var importantStopWords = toSet(
	"this", "that", "with", "have", "from", "your", "been", "will", "they", "their", "there",
	"into", "about", "such", "very", "more", "than", "then", "them", "over", "also", "only",
)

// ExtractKeywords 按词频返回前 MaxKeywords 个关键词
// 频次相同的词保持首次出现的顺序
func ExtractKeywords(text string) []types.KeywordFrequency {
	counts := make(map[string]int)
	var order []string
	for _, w := range rankedTokenRe.FindAllString(strings.ToLower(text), -1) {
		if _, stop := rankedStopWords[w]; stop {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > MaxKeywords {
		order = order[:MaxKeywords]
	}

	keywords := make([]types.KeywordFrequency, len(order))
	for i, w := range order {
		keywords[i] = types.KeywordFrequency{Term: w, Frequency: counts[w]}
	}
	return keywords
}

// KeywordTerms 只取关键词本身
func KeywordTerms(keywords []types.KeywordFrequency) []string {
	terms := make([]string, len(keywords))
	for i, k := range keywords {
		terms[i] = k.Term
	}
	return terms
}

// ExtractImportantKeywords 粗粒度关键词提取, 用于生成建议而非打分
// 偏向召回技术名词和缩写, 结果去重, 按首次出现顺序返回
func ExtractImportantKeywords(text string) []string {
	seen := make(map[string]struct{})
	var keywords []string
	for _, w := range importantTokenRe.FindAllString(text, -1) {
		w = strings.ToLower(w)
		if len(w) <= 3 {
			continue
		}
		if _, stop := importantStopWords[w]; stop {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		keywords = append(keywords, w)
	}
	return keywords
}

// KeywordMatchScore 岗位关键词在简历关键词中的覆盖率 (0-100)
// 岗位没有关键词时返回0
func KeywordMatchScore(resume, job string) float64 {
	jobKeywords := KeywordTerms(ExtractKeywords(strings.ToLower(job)))
	if len(jobKeywords) == 0 {
		return 0
	}
	resumeKeywords := toSet(KeywordTerms(ExtractKeywords(strings.ToLower(resume)))...)

	matched := 0
	for _, k := range jobKeywords {
		if _, ok := resumeKeywords[k]; ok {
			matched++
		}
	}
	return clampFloat(float64(matched)/float64(len(jobKeywords))*100, 0, 100)
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
