package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"ats-optimizer/internal/analyzer"
	"ats-optimizer/internal/generator"
	"ats-optimizer/internal/types"
)

func loadJobDescription() (string, error) {
	if strings.TrimSpace(*jobText) != "" {
		return *jobText, nil
	}
	if *jobFile == "" {
		return "", fmt.Errorf("必须提供岗位描述，使用 --job 或 --job-text 参数")
	}
	data, err := os.ReadFile(*jobFile)
	if err != nil {
		return "", fmt.Errorf("读取岗位描述失败: %w", err)
	}
	return string(data), nil
}

func newAnalyzer() (*analyzer.Analyzer, error) {
	if *taxonomy == "" {
		return analyzer.NewAnalyzer(), nil
	}
	t, err := analyzer.LoadSkillTaxonomyFile(*taxonomy)
	if err != nil {
		return nil, err
	}
	return analyzer.NewAnalyzer(analyzer.WithTaxonomy(t)), nil
}

func runScore(optimize bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	job, err := loadJobDescription()
	if err != nil {
		return err
	}
	a, err := newAnalyzer()
	if err != nil {
		return err
	}
	_, text, err := extractResume(ctx)
	if err != nil {
		return err
	}

	result, err := a.Analyze(ctx, text, job)
	if err != nil {
		return err
	}
	printResult(result)

	if !optimize {
		if *output == "" {
			return nil
		}
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(*output, data, 0644); err != nil {
			return fmt.Errorf("保存结果失败: %w", err)
		}
		fmt.Printf("\n结果已保存到: %s\n", *output)
		return nil
	}

	target := *output
	if target == "" {
		target = "optimized_resume.docx"
	}
	if err := generator.BuildDocument(text, result.Suggestions).SaveToFile(target); err != nil {
		return fmt.Errorf("生成优化简历失败: %w", err)
	}
	fmt.Printf("\n优化简历已保存到: %s\n", target)
	return nil
}

func printResult(r *types.AnalysisResult) {
	fmt.Printf("===== ATS 评分: %d / 100 =====\n", r.ATSScore)
	fmt.Printf("  关键词匹配: %.1f\n", r.Breakdown.KeywordMatch)
	fmt.Printf("  技能匹配:   %.1f\n", r.Breakdown.SkillsMatch)
	fmt.Printf("  文本相似度: %.1f\n", r.Breakdown.TextSimilarity)
	fmt.Printf("  格式得分:   %.0f\n", r.Breakdown.FormatScore)

	fmt.Printf("\n===== 技能匹配 %.1f%% (%d 项岗位技能) =====\n", r.SkillGap.MatchPercentage, r.SkillGap.TotalJobSkills)
	fmt.Printf("  已具备: %s\n", strings.Join(r.SkillGap.MatchedSkills, ", "))
	fmt.Printf("  缺失:   %s\n", strings.Join(r.SkillGap.MissingSkills, ", "))

	if len(r.Suggestions) == 0 {
		return
	}
	fmt.Println("\n===== 改进建议 =====")
	for i, s := range r.Suggestions {
		fmt.Printf("%d. [%s] %s\n   %s\n", i+1, s.Priority, s.Title, s.Description)
	}
}
