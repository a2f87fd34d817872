package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"ats-optimizer/internal/config"
	"ats-optimizer/internal/storage/models"
	"ats-optimizer/internal/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("ats-optimizer/storage/mysql")

// ErrRecordNotFound 记录不存在
var ErrRecordNotFound = errors.New("记录不存在")

// 看板展示的最近记录数
const recentStatsLimit = 10

type gormSpanKey struct{}

// GormTracingPlugin 是一个GORM插件，用于向OpenTelemetry中添加数据库操作的追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("INSERT")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after())
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		}
		if sql := db.Statement.SQL.String(); sql != "" {
			opts = append(opts, trace.WithAttributes(attribute.String("db.statement", tracing.SafeSQL(sql))))
		}

		newCtx, span := p.tracer.Start(ctx, fmt.Sprintf("%s %s", operation, tableName), opts...)
		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

		switch {
		case db.Error == nil:
			span.SetStatus(codes.Ok, "")
		case errors.Is(db.Error, gorm.ErrRecordNotFound):
			// 未找到记录属于正常业务情况
			span.SetAttributes(attribute.String("error.type", "record_not_found"))
			span.SetStatus(codes.Ok, "record not found")
		default:
			tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
		}
	}
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// MySQL 分析记录、下载日志、管理员和发件箱的持久化
type MySQL struct {
	db     *gorm.DB
	dbName string
}

// NewMySQL 创建MySQL客户端并迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Error
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m, err := NewMySQLWithDB(db, cfg.Database)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	if err := m.AutoMigrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// NewMySQLWithDB 基于已有的GORM连接创建存储并注册追踪插件
func NewMySQLWithDB(db *gorm.DB, dbName string) (*MySQL, error) {
	if err := db.Use(NewGormTracingPlugin(dbName)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}
	return &MySQL{db: db, dbName: dbName}, nil
}

// AutoMigrate 使用GORM自动迁移数据库表结构
func (m *MySQL) AutoMigrate() error {
	silentDB := m.db.Session(&gorm.Session{Logger: m.db.Logger.LogMode(logger.Silent)})
	if err := silentDB.AutoMigrate(
		&models.ResumeAnalysis{},
		&models.DownloadLog{},
		&models.Admin{},
		&models.OutboxMessage{},
	); err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// CreateAnalysisWithOutbox 在同一事务中写入分析记录和发件箱消息
// 发件箱消息的 AggregateID 为空时使用分析记录的UUID
func (m *MySQL) CreateAnalysisWithOutbox(ctx context.Context, record *models.ResumeAnalysis, msg *models.OutboxMessage) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.CreateAnalysisWithOutbox", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("db.name", m.dbName),
		attribute.String("analysis.uuid", record.AnalysisUUID),
	)

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("写入分析记录失败: %w", err)
		}
		if msg == nil {
			return nil
		}
		if msg.AggregateID == "" {
			msg.AggregateID = record.AnalysisUUID
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("写入发件箱消息失败: %w", err)
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return err
	}
	span.SetAttributes(attribute.Int64("analysis.id", int64(record.ID)))
	return nil
}

// GetAnalysis 按ID获取分析记录
func (m *MySQL) GetAnalysis(ctx context.Context, id uint64) (*models.ResumeAnalysis, error) {
	var record models.ResumeAnalysis
	err := m.db.WithContext(ctx).First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询分析记录失败: %w", err)
	}
	return &record, nil
}

// ListAnalyses 按创建时间倒序分页查询
func (m *MySQL) ListAnalyses(ctx context.Context, limit, offset int) ([]models.ResumeAnalysis, int64, error) {
	var total int64
	if err := m.db.WithContext(ctx).Model(&models.ResumeAnalysis{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计分析记录失败: %w", err)
	}

	records := []models.ResumeAnalysis{}
	err := m.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询分析记录失败: %w", err)
	}
	return records, total, nil
}

// UpdateAnalysisText 修改记录的岗位描述和简历正文
func (m *MySQL) UpdateAnalysisText(ctx context.Context, id uint64, jobDescription, resumeText string) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.ResumeAnalysis
		if err := tx.Select("id").First(&record, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecordNotFound
			}
			return fmt.Errorf("查询分析记录失败: %w", err)
		}
		err := tx.Model(&record).Updates(map[string]interface{}{
			"job_description": jobDescription,
			"resume_text":     resumeText,
		}).Error
		if err != nil {
			return fmt.Errorf("更新分析记录失败: %w", err)
		}
		return nil
	})
}

// CreateDownloadLog 记录一次优化简历下载
func (m *MySQL) CreateDownloadLog(ctx context.Context, entry *models.DownloadLog) error {
	if err := m.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("写入下载记录失败: %w", err)
	}
	return nil
}

// GetAnalysisStats 看板统计: 总数、平均分、最近记录（从旧到新）
func (m *MySQL) GetAnalysisStats(ctx context.Context) (*models.AnalysisStats, error) {
	db := m.db.WithContext(ctx)
	stats := &models.AnalysisStats{Recent: []models.DailyScore{}}

	if err := db.Model(&models.ResumeAnalysis{}).Count(&stats.TotalResumes).Error; err != nil {
		return nil, fmt.Errorf("统计分析记录失败: %w", err)
	}

	var avg struct {
		AvgATS   float64
		AvgSkill float64
	}
	err := db.Model(&models.ResumeAnalysis{}).
		Select("COALESCE(AVG(ats_score), 0) AS avg_ats, COALESCE(AVG(skill_match_percentage), 0) AS avg_skill").
		Scan(&avg).Error
	if err != nil {
		return nil, fmt.Errorf("计算平均分失败: %w", err)
	}
	stats.AvgATSScore = roundTo2(avg.AvgATS)
	stats.AvgSkillMatch = roundTo2(avg.AvgSkill)

	var rows []struct {
		CreatedAt            time.Time
		ATSScore             int
		SkillMatchPercentage float64
	}
	err = db.Model(&models.ResumeAnalysis{}).
		Select("created_at, ats_score, skill_match_percentage").
		Order("created_at DESC").
		Limit(recentStatsLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询最近记录失败: %w", err)
	}
	for i := len(rows) - 1; i >= 0; i-- {
		stats.Recent = append(stats.Recent, models.DailyScore{
			Date:                 rows[i].CreatedAt.Format("2006-01-02"),
			ATSScore:             rows[i].ATSScore,
			SkillMatchPercentage: rows[i].SkillMatchPercentage,
		})
	}
	return stats, nil
}

// FindAdmin 按用户名查找管理员
func (m *MySQL) FindAdmin(ctx context.Context, username string) (*models.Admin, error) {
	var admin models.Admin
	err := m.db.WithContext(ctx).Where("username = ?", username).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询管理员失败: %w", err)
	}
	return &admin, nil
}

// EnsureAdmin 管理员表为空时创建初始管理员，返回是否创建
func (m *MySQL) EnsureAdmin(ctx context.Context, username, passwordHash string) (bool, error) {
	var count int64
	if err := m.db.WithContext(ctx).Model(&models.Admin{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("统计管理员失败: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	admin := &models.Admin{Username: username, PasswordHash: passwordHash}
	if err := m.db.WithContext(ctx).Create(admin).Error; err != nil {
		return false, fmt.Errorf("创建初始管理员失败: %w", err)
	}
	return true, nil
}

func roundTo2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
