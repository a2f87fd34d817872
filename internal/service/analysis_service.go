package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ats-optimizer/internal/analyzer"
	"ats-optimizer/internal/config"
	"ats-optimizer/internal/constants"
	"ats-optimizer/internal/generator"
	"ats-optimizer/internal/logger"
	"ats-optimizer/internal/parser"
	"ats-optimizer/internal/storage"
	"ats-optimizer/internal/storage/models"
	"ats-optimizer/internal/tracing"
	"ats-optimizer/internal/types"
	"ats-optimizer/pkg/utils"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AnalysisRepository 分析记录持久化，由 storage.MySQL 实现
type AnalysisRepository interface {
	CreateAnalysisWithOutbox(ctx context.Context, record *models.ResumeAnalysis, msg *models.OutboxMessage) error
	GetAnalysis(ctx context.Context, id uint64) (*models.ResumeAnalysis, error)
	ListAnalyses(ctx context.Context, limit, offset int) ([]models.ResumeAnalysis, int64, error)
	UpdateAnalysisText(ctx context.Context, id uint64, jobDescription, resumeText string) error
	CreateDownloadLog(ctx context.Context, entry *models.DownloadLog) error
	GetAnalysisStats(ctx context.Context) (*models.AnalysisStats, error)
}

// ResultCache 分析结果与看板统计缓存，由 storage.Redis 实现
type ResultCache interface {
	GetCachedResult(ctx context.Context, textMD5 string) (*types.AnalysisResult, error)
	CacheResult(ctx context.Context, textMD5 string, result *types.AnalysisResult) error
	GetStats(ctx context.Context) (*models.AnalysisStats, error)
	SetStats(ctx context.Context, stats *models.AnalysisStats) error
	InvalidateStats(ctx context.Context) error
	AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error)
	ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error)
}

// TextExtractor 从上传文件中提取文本，由 parser.TextExtractor 实现
type TextExtractor interface {
	ExtractBytes(ctx context.Context, data []byte, name string) (string, error)
}

// DocumentRenderer 生成优化简历文档，由 generator.DocxGenerator 实现
type DocumentRenderer interface {
	Render(resumeText string, suggestions []types.Suggestion) (string, error)
}

// AnalysisOutcome 一次分析的结果及其持久化信息
type AnalysisOutcome struct {
	ID           uint64                `json:"id"`
	AnalysisUUID string                `json:"analysis_uuid"`
	Filename     string                `json:"filename,omitempty"`
	Cached       bool                  `json:"cached"`
	Result       *types.AnalysisResult `json:"result"`
}

// RenderRequest 生成优化简历的请求
type RenderRequest struct {
	AnalysisID  uint64
	ResumeText  string
	Suggestions []types.Suggestion
}

// Option 配置 AnalysisService 的可选依赖
type Option func(*AnalysisService)

// WithRepository 启用MySQL持久化
func WithRepository(repo AnalysisRepository) Option {
	return func(s *AnalysisService) { s.repo = repo }
}

// WithCache 启用Redis缓存
func WithCache(cache ResultCache) Option {
	return func(s *AnalysisService) { s.cache = cache }
}

// WithObjectStorage 启用MinIO对象存储
func WithObjectStorage(objects storage.ObjectStorage) Option {
	return func(s *AnalysisService) { s.objects = objects }
}

// WithEvents 分析完成后写入发件箱事件
func WithEvents(exchange, routingKey string) Option {
	return func(s *AnalysisService) {
		s.eventExchange = exchange
		s.eventRoutingKey = routingKey
	}
}

// AnalysisService 编排文本提取、评分、持久化和文档生成
type AnalysisService struct {
	upload    config.UploadConfig
	analyzer  *analyzer.Analyzer
	extractor TextExtractor
	renderer  DocumentRenderer

	repo    AnalysisRepository
	cache   ResultCache
	objects storage.ObjectStorage

	eventExchange   string
	eventRoutingKey string

	tracer trace.Tracer
}

// NewAnalysisService 创建服务，存储相关依赖通过 Option 注入，均为可选
func NewAnalysisService(upload config.UploadConfig, a *analyzer.Analyzer, extractor TextExtractor, renderer DocumentRenderer, opts ...Option) *AnalysisService {
	if a == nil {
		a = analyzer.NewAnalyzer()
	}
	s := &AnalysisService{
		upload:    upload,
		analyzer:  a,
		extractor: extractor,
		renderer:  renderer,
		tracer:    otel.Tracer("ats-optimizer/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PersistenceEnabled 是否配置了MySQL
func (s *AnalysisService) PersistenceEnabled() bool {
	return s.repo != nil
}

// AnalyzeUpload 校验上传文件、提取文本并分析
func (s *AnalysisService) AnalyzeUpload(ctx context.Context, filename string, data []byte, jobDescription string) (*AnalysisOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "AnalysisService.AnalyzeUpload")
	defer span.End()
	span.SetAttributes(
		attribute.String("file.name", tracing.SafeAttributeValue("file.name", filename, tracing.DefaultMaxLength)),
		attribute.Int("file.size", len(data)),
	)

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if filename == "" || len(data) == 0 {
		err := newValidationError("resume_file", "未上传文件")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if !s.upload.AllowedExtension(ext) {
		err := newValidationError("resume_file", fmt.Sprintf("不支持的文件类型: %q", ext))
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if s.upload.MaxBytes > 0 && int64(len(data)) > s.upload.MaxBytes {
		err := newValidationError("resume_file", fmt.Sprintf("文件超过大小限制 %d 字节", s.upload.MaxBytes))
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if strings.TrimSpace(jobDescription) == "" {
		err := newValidationError("job_description", "岗位描述不能为空")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	text, err := s.extractor.ExtractBytes(ctx, data, filename)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		return nil, err
	}
	if text == "" {
		err := newValidationError("resume_file", "无法从文件中提取文本")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	return s.analyzeAndPersist(ctx, filepath.Base(filename), "."+ext, data, text, jobDescription)
}

// AnalyzeText 直接分析简历文本，不保存原始文件
func (s *AnalysisService) AnalyzeText(ctx context.Context, resumeText, jobDescription string) (*AnalysisOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "AnalysisService.AnalyzeText")
	defer span.End()
	return s.analyzeAndPersist(ctx, "", "", nil, resumeText, jobDescription)
}

func (s *AnalysisService) analyzeAndPersist(ctx context.Context, filename, ext string, original []byte, resumeText, jobDescription string) (*AnalysisOutcome, error) {
	span := trace.SpanFromContext(ctx)
	log := logger.Ctx(ctx)

	cacheKey := utils.CalculateTextsMD5(constants.ScoringVersion, analyzer.Normalize(resumeText), analyzer.Normalize(jobDescription))
	outcome := &AnalysisOutcome{Filename: filename}

	if s.cache != nil {
		cached, err := s.cache.GetCachedResult(ctx, cacheKey)
		switch {
		case err == nil:
			outcome.Result = cached
			outcome.Cached = true
		case !errors.Is(err, storage.ErrNotFound):
			log.Warn().Err(err).Msg("读取分析结果缓存失败")
		}
	}

	if outcome.Result == nil {
		result, err := s.analyzer.Analyze(ctx, resumeText, jobDescription)
		if err != nil {
			return nil, err
		}
		outcome.Result = result
	}
	span.SetAttributes(
		attribute.String("analysis.job_description", tracing.SafeJobDescription(jobDescription)),
		attribute.Int("analysis.ats_score", outcome.Result.ATSScore),
		attribute.Bool("analysis.cached", outcome.Cached),
	)

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成分析ID失败: %w", err)
	}
	outcome.AnalysisUUID = id.String()

	var objectKey string
	if s.objects != nil && len(original) > 0 {
		objectKey, err = s.objects.UploadOriginal(ctx, outcome.AnalysisUUID, ext, original)
		if err != nil {
			// 原始文件保存失败不影响分析结果
			log.Warn().Err(err).Str("analysis_uuid", outcome.AnalysisUUID).Msg("保存原始简历失败")
			tracing.RecordErrorWithInfo(span, err, tracing.ErrorTypeObjectStore)
			objectKey = ""
		}
	}

	if s.repo != nil {
		record, msg, err := s.buildRecord(outcome, cacheKey, jobDescription, objectKey)
		if err != nil {
			return nil, err
		}
		if err := s.repo.CreateAnalysisWithOutbox(ctx, record, msg); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return nil, fmt.Errorf("保存分析记录失败: %w", err)
		}
		outcome.ID = record.ID
	}

	if s.cache != nil && !outcome.Cached {
		if err := s.cache.CacheResult(ctx, cacheKey, outcome.Result); err != nil {
			log.Warn().Err(err).Msg("写入分析结果缓存失败")
		}
	}

	log.Info().
		Str("analysis_uuid", outcome.AnalysisUUID).
		Uint64("id", outcome.ID).
		Int("ats_score", outcome.Result.ATSScore).
		Bool("cached", outcome.Cached).
		Msg("简历分析完成")
	return outcome, nil
}

func (s *AnalysisService) buildRecord(outcome *AnalysisOutcome, textMD5, jobDescription, objectKey string) (*models.ResumeAnalysis, *models.OutboxMessage, error) {
	result := outcome.Result

	suggestions, err := models.ToJSON(result.Suggestions)
	if err != nil {
		return nil, nil, fmt.Errorf("序列化建议失败: %w", err)
	}
	breakdown, err := models.ToJSON(result.Breakdown)
	if err != nil {
		return nil, nil, fmt.Errorf("序列化分数明细失败: %w", err)
	}

	job := result.JobDescription
	if job == "" {
		job = analyzer.Normalize(jobDescription)
	}

	record := &models.ResumeAnalysis{
		AnalysisUUID:         outcome.AnalysisUUID,
		Filename:             outcome.Filename,
		JobDescription:       job,
		ResumeText:           result.ResumeText,
		ResumeTextMD5:        textMD5,
		ATSScore:             result.ATSScore,
		MatchedSkills:        utils.ConvertArrayToJSON(result.SkillGap.MatchedSkills),
		MissingSkills:        utils.ConvertArrayToJSON(result.SkillGap.MissingSkills),
		SkillMatchPercentage: result.SkillGap.MatchPercentage,
		Suggestions:          suggestions,
		ScoreBreakdown:       breakdown,
		OriginalObjectKey:    objectKey,
	}

	if s.eventExchange == "" {
		return record, nil, nil
	}

	event := storage.AnalysisCompletedEvent{
		AnalysisUUID:         outcome.AnalysisUUID,
		Filename:             outcome.Filename,
		ATSScore:             result.ATSScore,
		SkillMatchPercentage: result.SkillGap.MatchPercentage,
		MissingSkills:        result.SkillGap.MissingSkills,
		ScoringVersion:       constants.ScoringVersion,
		OriginalObjectKey:    objectKey,
		CompletedAt:          time.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, nil, fmt.Errorf("序列化分析完成事件失败: %w", err)
	}
	msg := &models.OutboxMessage{
		AggregateID:      outcome.AnalysisUUID,
		EventType:        constants.EventTypeAnalysisCompleted,
		Payload:          string(payload),
		TargetExchange:   s.eventExchange,
		TargetRoutingKey: s.eventRoutingKey,
		Status:           models.OutboxStatusPending,
	}
	return record, msg, nil
}

// RenderOptimized 生成优化简历并记录下载，返回临时文件路径，调用方负责删除
func (s *AnalysisService) RenderOptimized(ctx context.Context, req RenderRequest) (string, error) {
	ctx, span := s.tracer.Start(ctx, "AnalysisService.RenderOptimized")
	defer span.End()
	span.SetAttributes(attribute.Int64("analysis.id", int64(req.AnalysisID)))

	if strings.TrimSpace(req.ResumeText) == "" {
		return "", newValidationError("resume_text", "简历文本不能为空")
	}
	if req.AnalysisID == 0 {
		return "", newValidationError("resume_id", "缺少简历ID")
	}

	path, err := s.renderer.Render(req.ResumeText, req.Suggestions)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeGeneration)
		return "", err
	}

	log := logger.Ctx(ctx)
	var objectKey string
	if s.objects != nil {
		objectKey, err = s.objects.UploadOptimized(ctx, fmt.Sprintf("resume-%d", req.AnalysisID), path)
		if err != nil {
			log.Warn().Err(err).Uint64("resume_id", req.AnalysisID).Msg("上传优化简历失败")
			objectKey = ""
		}
	}

	if s.repo != nil {
		entry := &models.DownloadLog{ResumeID: req.AnalysisID, ObjectKey: objectKey, DownloadTime: time.Now()}
		if err := s.repo.CreateDownloadLog(ctx, entry); err != nil {
			os.Remove(path)
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return "", fmt.Errorf("记录下载日志失败: %w", err)
		}
	}

	log.Info().Uint64("resume_id", req.AnalysisID).Str("object_key", objectKey).Msg("优化简历已生成")
	return path, nil
}

// DashboardStats 看板统计，优先读取缓存
func (s *AnalysisService) DashboardStats(ctx context.Context) (*models.AnalysisStats, error) {
	if s.repo == nil {
		return nil, ErrPersistenceDisabled
	}
	log := logger.Ctx(ctx)

	if s.cache != nil {
		stats, err := s.cache.GetStats(ctx)
		if err == nil {
			return stats, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Msg("读取看板统计缓存失败")
		}
	}

	stats, err := s.repo.GetAnalysisStats(ctx)
	if err != nil {
		return nil, err
	}

	// 只有拿到锁的请求回写缓存
	if s.cache != nil {
		lockValue, err := s.cache.AcquireLock(ctx, constants.KeyDashboardStatsLock, constants.StatsLockTTL)
		if err != nil {
			log.Warn().Err(err).Msg("获取统计重算锁失败")
		} else if lockValue != "" {
			if err := s.cache.SetStats(ctx, stats); err != nil {
				log.Warn().Err(err).Msg("写入看板统计缓存失败")
			}
			if _, err := s.cache.ReleaseLock(ctx, constants.KeyDashboardStatsLock, lockValue); err != nil {
				log.Warn().Err(err).Msg("释放统计重算锁失败")
			}
		}
	}
	return stats, nil
}

// ListHistory 分页返回历史记录，按创建时间倒序
func (s *AnalysisService) ListHistory(ctx context.Context, page, pageSize int) ([]models.ResumeAnalysis, int64, error) {
	if s.repo == nil {
		return nil, 0, ErrPersistenceDisabled
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	if pageSize > constants.MaxPageSize {
		pageSize = constants.MaxPageSize
	}
	return s.repo.ListAnalyses(ctx, pageSize, (page-1)*pageSize)
}

// GetAnalysis 按ID读取记录
func (s *AnalysisService) GetAnalysis(ctx context.Context, id uint64) (*models.ResumeAnalysis, error) {
	if s.repo == nil {
		return nil, ErrPersistenceDisabled
	}
	record, err := s.repo.GetAnalysis(ctx, id)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return record, err
}

// UpdateAnalysis 修改记录的岗位描述和简历文本，不重新评分
func (s *AnalysisService) UpdateAnalysis(ctx context.Context, id uint64, jobDescription, resumeText string) error {
	if s.repo == nil {
		return ErrPersistenceDisabled
	}
	err := s.repo.UpdateAnalysisText(ctx, id, jobDescription, resumeText)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// ExportText 导出记录的简历文本，返回下载文件名和内容
func (s *AnalysisService) ExportText(ctx context.Context, id uint64) (string, []byte, error) {
	record, err := s.GetAnalysis(ctx, id)
	if err != nil {
		return "", nil, err
	}
	name := record.Filename
	if name == "" {
		name = fmt.Sprintf("resume_%d", record.ID)
	}
	return name + ".txt", []byte(record.ResumeText), nil
}

// HandleAnalysisCompleted 消费分析完成事件，使看板统计缓存失效
// 返回 false 时消息重新入队
func (s *AnalysisService) HandleAnalysisCompleted(ctx context.Context, body []byte) bool {
	var event storage.AnalysisCompletedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		// 格式错误的消息重试也无法处理，直接确认丢弃
		logger.Ctx(ctx).Error().Err(err).Msg("解析分析完成事件失败")
		return true
	}
	if s.cache == nil {
		return true
	}
	if err := s.cache.InvalidateStats(ctx); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("analysis_uuid", event.AnalysisUUID).Msg("清除看板统计缓存失败")
		return false
	}
	logger.Ctx(ctx).Debug().Str("analysis_uuid", event.AnalysisUUID).Msg("看板统计缓存已失效")
	return true
}

// 编译期检查
var (
	_ TextExtractor    = (*parser.TextExtractor)(nil)
	_ DocumentRenderer = (*generator.DocxGenerator)(nil)
)
