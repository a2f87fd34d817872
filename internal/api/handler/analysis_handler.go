package handler

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"ats-optimizer/internal/logger"
	"ats-optimizer/internal/service"
	"ats-optimizer/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const (
	docxContentType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	optimizedResumeName = "optimized_resume.docx"
	formFieldResumeFile = "resume_file"
	formFieldJobDesc    = "job_description"
)

// AnalysisHandler 处理公开的分析与下载接口
type AnalysisHandler struct {
	svc *service.AnalysisService
}

// NewAnalysisHandler 创建分析处理器
func NewAnalysisHandler(svc *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{svc: svc}
}

// AnalyzeTextRequest 纯文本分析请求
type AnalyzeTextRequest struct {
	ResumeText     string `json:"resume_text"`
	JobDescription string `json:"job_description"`
}

// DownloadRequest 生成优化简历请求
type DownloadRequest struct {
	ResumeID    uint64             `json:"resume_id"`
	ResumeText  string             `json:"resume_text"`
	Suggestions []types.Suggestion `json:"suggestions"`
}

// Health 健康检查
func (h *AnalysisHandler) Health(_ context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"status": "ok"})
}

// Analyze 处理简历文件上传并评分
func (h *AnalysisHandler) Analyze(ctx context.Context, c *app.RequestContext) {
	fileHeader, err := c.FormFile(formFieldResumeFile)
	if err != nil {
		badRequest(c, "未找到上传的简历文件")
		return
	}
	jobDescription := string(c.FormValue(formFieldJobDesc))

	file, err := fileHeader.Open()
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(ctx, c, err)
		return
	}

	logger.Ctx(ctx).Info().
		Str("filename", fileHeader.Filename).
		Int64("size", fileHeader.Size).
		Msg("收到简历分析请求")

	outcome, err := h.svc.AnalyzeUpload(ctx, fileHeader.Filename, data, jobDescription)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, newAnalysisResponse(outcome))
}

// AnalyzeText 对粘贴的简历文本评分
func (h *AnalysisHandler) AnalyzeText(ctx context.Context, c *app.RequestContext) {
	var req AnalyzeTextRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		badRequest(c, "请求体不是合法的JSON")
		return
	}
	outcome, err := h.svc.AnalyzeText(ctx, req.ResumeText, req.JobDescription)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, newAnalysisResponse(outcome))
}

// DownloadOptimized 生成并返回优化后的DOCX简历
func (h *AnalysisHandler) DownloadOptimized(ctx context.Context, c *app.RequestContext) {
	var req DownloadRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		badRequest(c, "请求体不是合法的JSON")
		return
	}

	path, err := h.svc.RenderOptimized(ctx, service.RenderRequest{
		AnalysisID:  req.ResumeID,
		ResumeText:  req.ResumeText,
		Suggestions: req.Suggestions,
	})
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil {
			logger.Ctx(ctx).Warn().Err(rmErr).Str("path", path).Msg("删除临时文件失败")
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	attachment(c, optimizedResumeName)
	c.Data(consts.StatusOK, docxContentType, data)
}

func attachment(c *app.RequestContext, filename string) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
}
