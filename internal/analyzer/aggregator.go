package analyzer

import "ats-optimizer/internal/types"

// 子分数权重, 合计为1
const (
	KeywordWeight    = 0.4
	SkillsWeight     = 0.3
	SimilarityWeight = 0.2
	FormatWeight     = 0.1

	neutralSkillsScore = 50.0
)

// Aggregate 加权合成最终ATS分数: 截断取整并限制在 [0,100]
func Aggregate(b types.ScoreBreakdown) int {
	total := b.KeywordMatch*KeywordWeight +
		b.SkillsMatch*SkillsWeight +
		b.TextSimilarity*SimilarityWeight +
		b.FormatScore*FormatWeight
	return clampInt(int(total), 0, 100)
}
