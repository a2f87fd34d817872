package handler

import (
	"context"
	"errors"
	"strconv"

	"ats-optimizer/internal/analyzer"
	"ats-optimizer/internal/generator"
	"ats-optimizer/internal/logger"
	"ats-optimizer/internal/parser"
	"ats-optimizer/internal/service"
	"ats-optimizer/internal/storage/models"
	"ats-optimizer/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// 返回给前端的简历文本预览长度（字符数）
const resumePreviewLength = 500

// AnalysisResponse 分析接口的响应体
type AnalysisResponse struct {
	ID                   uint64               `json:"id"`
	AnalysisUUID         string               `json:"analysis_uuid"`
	Filename             string               `json:"filename,omitempty"`
	Cached               bool                 `json:"cached"`
	ATSScore             int                  `json:"ats_score"`
	SkillMatchPercentage float64              `json:"skill_match_percentage"`
	MatchedSkills        []string             `json:"matched_skills"`
	MissingSkills        []string             `json:"missing_skills"`
	TotalJobSkills       int                  `json:"total_job_skills"`
	TotalResumeSkills    int                  `json:"total_resume_skills"`
	Suggestions          []types.Suggestion   `json:"suggestions"`
	ScoreBreakdown       types.ScoreBreakdown `json:"score_breakdown"`
	ResumeText           string               `json:"resume_text"`
}

// HistoryItem 历史记录列表中的一项
type HistoryItem struct {
	ID                   uint64   `json:"id"`
	AnalysisUUID         string   `json:"analysis_uuid"`
	Filename             string   `json:"filename"`
	ATSScore             int      `json:"ats_score"`
	SkillMatchPercentage float64  `json:"skill_match_percentage"`
	MissingSkills        []string `json:"missing_skills"`
	CreatedAt            string   `json:"created_at"`
}

// HistoryResponse 历史记录分页响应
type HistoryResponse struct {
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Total    int64         `json:"total"`
	Items    []HistoryItem `json:"items"`
}

func newAnalysisResponse(outcome *service.AnalysisOutcome) AnalysisResponse {
	r := outcome.Result
	resp := AnalysisResponse{
		ID:                   outcome.ID,
		AnalysisUUID:         outcome.AnalysisUUID,
		Filename:             outcome.Filename,
		Cached:               outcome.Cached,
		ATSScore:             r.ATSScore,
		SkillMatchPercentage: r.SkillGap.MatchPercentage,
		MatchedSkills:        nonNil(r.SkillGap.MatchedSkills),
		MissingSkills:        nonNil(r.SkillGap.MissingSkills),
		TotalJobSkills:       r.SkillGap.TotalJobSkills,
		TotalResumeSkills:    r.SkillGap.TotalResumeSkills,
		Suggestions:          r.Suggestions,
		ScoreBreakdown:       r.Breakdown,
		ResumeText:           previewText(r.ResumeText, resumePreviewLength),
	}
	if resp.Suggestions == nil {
		resp.Suggestions = []types.Suggestion{}
	}
	return resp
}

func newHistoryItem(record models.ResumeAnalysis) HistoryItem {
	return HistoryItem{
		ID:                   record.ID,
		AnalysisUUID:         record.AnalysisUUID,
		Filename:             record.Filename,
		ATSScore:             record.ATSScore,
		SkillMatchPercentage: record.SkillMatchPercentage,
		MissingSkills:        models.StringsFromJSON(record.MissingSkills),
		CreatedAt:            record.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// previewText 按字符截断，超出部分以 "..." 结尾
func previewText(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// statusFor 将业务错误映射为HTTP状态码
func statusFor(err error) int {
	switch {
	case analyzer.IsInputError(err), service.IsValidationError(err), parser.IsExtractionError(err):
		return consts.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return consts.StatusNotFound
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrInvalidCredentials):
		return consts.StatusUnauthorized
	case errors.Is(err, service.ErrPersistenceDisabled):
		return consts.StatusServiceUnavailable
	default:
		return consts.StatusInternalServerError
	}
}

// writeError 输出 {"error": "..."}，5xx 只返回通用信息
func writeError(ctx context.Context, c *app.RequestContext, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == consts.StatusInternalServerError {
		logger.Ctx(ctx).Error().Err(err).Str("path", string(c.Path())).Msg("请求处理失败")
		msg = "服务器内部错误"
		if generator.IsGenerationError(err) {
			msg = "生成优化简历失败"
		}
	} else {
		logger.Ctx(ctx).Warn().Err(err).Int("status", status).Str("path", string(c.Path())).Msg("请求被拒绝")
	}
	c.JSON(status, utils.H{"error": msg})
}

func badRequest(c *app.RequestContext, msg string) {
	c.JSON(consts.StatusBadRequest, utils.H{"error": msg})
}

// parseID 读取路径参数 :id
func parseID(c *app.RequestContext) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "无效的记录ID")
		return 0, false
	}
	return id, true
}
