package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ats-optimizer/internal/logger"
	"ats-optimizer/internal/tracing"
	"ats-optimizer/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "ats-optimizer/analyzer"

// Analyzer 简历与岗位描述的匹配分析器
// 无可变状态, 可被多个请求并发使用
type Analyzer struct {
	matcher *SkillMatcher
	tracer  trace.Tracer
}

// Option 分析器选项
type Option func(*Analyzer)

// WithTracer 指定链路追踪的 Tracer
func WithTracer(t trace.Tracer) Option {
	return func(a *Analyzer) {
		if t != nil {
			a.tracer = t
		}
	}
}

// WithTaxonomy 使用自定义技能分类表
func WithTaxonomy(t *SkillTaxonomy) Option {
	return func(a *Analyzer) {
		a.matcher = NewSkillMatcher(t)
	}
}

// NewAnalyzer 创建分析器, 默认使用内置技能分类表和全局 TracerProvider
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		matcher: NewSkillMatcher(nil),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Matcher 返回分析器使用的技能匹配器
func (a *Analyzer) Matcher() *SkillMatcher {
	return a.matcher
}

// Analyze 计算ATS分数、技能缺口报告和改进建议
// 任一输入归一化后为空时返回 *InputError; 单个子分数计算失败只会降级为0, 不会中断分析
func (a *Analyzer) Analyze(ctx context.Context, resume, job string) (*types.AnalysisResult, error) {
	_, span := a.tracer.Start(ctx, "Analyzer.Analyze")
	defer span.End()

	resumeText := Normalize(resume)
	if resumeText == "" {
		err := NewInputError("resume_text")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	jobText := Normalize(job)
	if jobText == "" {
		err := NewInputError("job_description")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("resume.length", len(resumeText)),
		attribute.Int("job.length", len(jobText)),
	)

	var (
		wg        sync.WaitGroup
		breakdown types.ScoreBreakdown
		gap       types.SkillGapReport
	)
	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					a.recordFallback(span, name, fmt.Errorf("子分析器 %s 发生panic: %v", name, r))
				}
			}()
			if err := fn(); err != nil {
				a.recordFallback(span, name, err)
			}
		}()
	}

	// 每个goroutine只写自己的字段
	run("keyword_match", func() error {
		breakdown.KeywordMatch = KeywordMatchScore(resumeText, jobText)
		return nil
	})
	run("skills_match", func() error {
		breakdown.SkillsMatch = a.matcher.SkillsMatchScore(resumeText, jobText)
		return nil
	})
	run("text_similarity", func() error {
		score, err := TextSimilarityScore(resumeText, jobText)
		breakdown.TextSimilarity = score
		return err
	})
	run("format_score", func() error {
		breakdown.FormatScore = float64(FormatScore(resumeText))
		return nil
	})
	run("skill_gap", func() error {
		gap = a.matcher.AnalyzeSkillsMatch(resumeText, jobText)
		return nil
	})
	wg.Wait()

	if gap.MatchedSkills == nil {
		gap.MatchedSkills = []string{}
	}
	if gap.MissingSkills == nil {
		gap.MissingSkills = []string{}
	}

	breakdown.Total = Aggregate(breakdown)
	result := &types.AnalysisResult{
		ATSScore:       breakdown.Total,
		Breakdown:      breakdown,
		SkillGap:       gap,
		Suggestions:    GenerateSuggestions(resumeText, jobText, gap),
		ResumeText:     resumeText,
		JobDescription: jobText,
	}

	span.SetAttributes(
		attribute.Int("ats.score", result.ATSScore),
		attribute.Int("ats.suggestions", len(result.Suggestions)),
	)
	logger.Debug().
		Int("ats_score", result.ATSScore).
		Float64("keyword_match", breakdown.KeywordMatch).
		Float64("skills_match", breakdown.SkillsMatch).
		Float64("text_similarity", breakdown.TextSimilarity).
		Float64("format_score", breakdown.FormatScore).
		Msg("简历分析完成")
	return result, nil
}

// recordFallback 子分数降级: 词表为空属于预期情况只记debug, 其他错误要能在日志和链路中区分出来
func (a *Analyzer) recordFallback(span trace.Span, name string, err error) {
	if errors.Is(err, ErrEmptyVocabulary) {
		logger.Debug().Str("component", name).Msg("文本相似度词表为空, 使用默认值0")
		span.AddEvent("fallback", trace.WithAttributes(
			attribute.String("component", name),
			attribute.String("reason", "empty_vocabulary"),
		))
		return
	}
	logger.Error().Err(err).Str("component", name).Msg("子分析器失败, 使用默认值0")
	tracing.RecordErrorWithInfo(span, err, tracing.ErrorTypeInternal, attribute.String("component", name))
}
