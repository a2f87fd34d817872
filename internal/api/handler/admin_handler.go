package handler

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"ats-optimizer/internal/constants"
	"ats-optimizer/internal/logger"
	"ats-optimizer/internal/service"
	"ats-optimizer/internal/storage/models"
	"ats-optimizer/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// AdminHandler 管理后台接口
type AdminHandler struct {
	admins   *service.AdminService
	analyses *service.AnalysisService
}

// NewAdminHandler 创建管理后台处理器
func NewAdminHandler(admins *service.AdminService, analyses *service.AnalysisService) *AdminHandler {
	return &AdminHandler{admins: admins, analyses: analyses}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UpdateHistoryRequest 修改历史记录
type UpdateHistoryRequest struct {
	JobDescription string `json:"job_description"`
	ResumeText     string `json:"resume_text"`
}

// HistoryDetail 单条历史记录详情
type HistoryDetail struct {
	HistoryItem
	JobDescription string               `json:"job_description"`
	ResumeText     string               `json:"resume_text"`
	MatchedSkills  []string             `json:"matched_skills"`
	Suggestions    []types.Suggestion   `json:"suggestions"`
	ScoreBreakdown types.ScoreBreakdown `json:"score_breakdown"`
}

// Login 管理员登录，返回 Bearer 令牌
func (h *AdminHandler) Login(ctx context.Context, c *app.RequestContext) {
	var req LoginRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		badRequest(c, "请求体不是合法的JSON")
		return
	}
	token, err := h.admins.Login(ctx, req.Username, req.Password)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"token": token, "token_type": "Bearer"})
}

// Logout 注销当前令牌
func (h *AdminHandler) Logout(ctx context.Context, c *app.RequestContext) {
	token := c.GetString(ContextKeyToken)
	if err := h.admins.Logout(ctx, token); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"status": "ok"})
}

// Dashboard 看板统计
func (h *AdminHandler) Dashboard(ctx context.Context, c *app.RequestContext) {
	stats, err := h.analyses.DashboardStats(ctx)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, stats)
}

// History 分页列出历史记录，参数 page / page_size
func (h *AdminHandler) History(ctx context.Context, c *app.RequestContext) {
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", constants.DefaultPageSize)
	if pageSize > constants.MaxPageSize {
		pageSize = constants.MaxPageSize
	}

	records, total, err := h.analyses.ListHistory(ctx, page, pageSize)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	items := make([]HistoryItem, 0, len(records))
	for _, r := range records {
		items = append(items, newHistoryItem(r))
	}
	c.JSON(consts.StatusOK, HistoryResponse{Page: page, PageSize: pageSize, Total: total, Items: items})
}

// GetHistory 查看单条记录
func (h *AdminHandler) GetHistory(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	record, err := h.analyses.GetAnalysis(ctx, id)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, newHistoryDetail(record))
}

// UpdateHistory 修改记录的岗位描述和简历文本
func (h *AdminHandler) UpdateHistory(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UpdateHistoryRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		badRequest(c, "请求体不是合法的JSON")
		return
	}
	if strings.TrimSpace(req.JobDescription) == "" && strings.TrimSpace(req.ResumeText) == "" {
		badRequest(c, "job_description 和 resume_text 不能同时为空")
		return
	}

	if err := h.analyses.UpdateAnalysis(ctx, id, req.JobDescription, req.ResumeText); err != nil {
		writeError(ctx, c, err)
		return
	}
	logger.Ctx(ctx).Info().Uint64("resume_id", id).Str("admin", c.GetString(ContextKeyAdmin)).Msg("历史记录已修改")
	c.JSON(consts.StatusOK, utils.H{"status": "ok"})
}

// DownloadHistory 以 .txt 附件导出简历文本
func (h *AdminHandler) DownloadHistory(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	name, body, err := h.analyses.ExportText(ctx, id)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	attachment(c, name)
	c.Data(consts.StatusOK, "text/plain; charset=utf-8", body)
}

func newHistoryDetail(record *models.ResumeAnalysis) HistoryDetail {
	d := HistoryDetail{
		HistoryItem:    newHistoryItem(*record),
		JobDescription: record.JobDescription,
		ResumeText:     record.ResumeText,
		MatchedSkills:  models.StringsFromJSON(record.MatchedSkills),
		Suggestions:    []types.Suggestion{},
	}
	if len(record.Suggestions) > 0 {
		if err := json.Unmarshal(record.Suggestions, &d.Suggestions); err != nil {
			d.Suggestions = []types.Suggestion{}
		}
	}
	if len(record.ScoreBreakdown) > 0 {
		_ = json.Unmarshal(record.ScoreBreakdown, &d.ScoreBreakdown)
	}
	return d
}

func queryInt(c *app.RequestContext, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
