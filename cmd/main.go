package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ats-optimizer/internal/analyzer"
	"ats-optimizer/internal/api/handler"
	"ats-optimizer/internal/api/router"
	"ats-optimizer/internal/config"
	"ats-optimizer/internal/generator"
	"ats-optimizer/internal/logger"
	"ats-optimizer/internal/outbox"
	"ats-optimizer/internal/parser"
	"ats-optimizer/internal/service"
	"ats-optimizer/internal/storage"
	"ats-optimizer/internal/tracing"
	"ats-optimizer/pkg/ratelimit"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"
)

var (
	version     = "1.0.0"         //nolint:gochecknoglobals
	serviceName = "ats-optimizer" //nolint:gochecknoglobals
)

func main() {
	var (
		configPath string
		initConfig string
	)
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径，为空时在常见位置查找 config.yaml")
	pflag.StringVar(&initConfig, "init-config", "", "生成示例配置文件到指定路径后退出")
	pflag.Parse()

	if initConfig != "" {
		if err := config.CreateSampleConfig(initConfig); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("示例配置已写入 %s\n", initConfig)
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	initLogger(cfg.Logger)
	logger.Info().Str("config", configPath).Msg("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化链路追踪失败")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()

	analysisSvc, adminSvc, err := buildServices(ctx, cfg, storageManager)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化服务失败")
	}
	if err := adminSvc.EnsureSeedAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		logger.Error().Err(err).Msg("创建初始管理员失败")
	}

	// 发件箱中继需要MySQL和RabbitMQ同时可用
	var messageRelay *outbox.MessageRelay
	if storageManager.MySQL != nil && storageManager.RabbitMQ != nil {
		messageRelay = outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ,
			outbox.WithPollingInterval(config.GetDuration(cfg.Outbox.PollInterval, 0)),
			outbox.WithBatchSize(cfg.Outbox.BatchSize),
			outbox.WithMaxRetries(cfg.Outbox.MaxRetries),
		)
		messageRelay.Start(ctx)
		logger.Info().Msg("消息中继服务已启动")

		if err := storageManager.RabbitMQ.StartConsumer(ctx, cfg.RabbitMQ.AnalysisCompletedQueue,
			cfg.RabbitMQ.PrefetchCount, analysisSvc.HandleAnalysisCompleted); err != nil {
			logger.Error().Err(err).Msg("启动分析完成事件消费者失败")
		}
	}

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		server.WithMaxRequestBodySize(int(cfg.Upload.MaxBytes)+1<<20),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg), handler.RequestID(), handler.AccessLog())

	var analyzeGuards []app.HandlerFunc
	if cfg.Server.AnalyzeRateLimit > 0 {
		analyzeGuards = append(analyzeGuards, handler.RateLimit(ratelimit.NewTokenBucket(cfg.Server.AnalyzeRateLimit, 0)))
	}
	router.RegisterRoutes(h,
		handler.NewAnalysisHandler(analysisSvc),
		handler.NewAdminHandler(adminSvc, analysisSvc),
		handler.AdminAuth(adminSvc),
		analyzeGuards...,
	)
	logger.Info().Str("address", cfg.Server.Address).Str("version", version).Msg("HTTP 服务器启动中")

	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出...")

	// 先停止中继和消费者，再关闭HTTP服务
	if messageRelay != nil {
		messageRelay.Stop()
		logger.Info().Msg("消息中继服务已停止")
	}
	cancel()

	shutdownTimeout := config.GetDuration(cfg.Server.ShutdownTimeout, 10*time.Second)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("关闭链路追踪失败")
	}
	logger.Info().Msg("服务已退出")
}

// buildServices 按已初始化的存储组件组装服务，未初始化的组件不注入
func buildServices(ctx context.Context, cfg *config.Config, s *storage.Storage) (*service.AnalysisService, *service.AdminService, error) {
	taxonomy := analyzer.DefaultSkillTaxonomy()
	if cfg.Scoring.TaxonomyFile != "" {
		loaded, err := analyzer.LoadSkillTaxonomyFile(cfg.Scoring.TaxonomyFile)
		if err != nil {
			return nil, nil, err
		}
		taxonomy = loaded
		logger.Info().Str("file", cfg.Scoring.TaxonomyFile).Msg("已加载技能分类表")
	}

	var extractorOpts []parser.Option
	if cfg.Tika.ServerURL != "" {
		extractorOpts = append(extractorOpts, parser.WithTika(cfg.Tika.ServerURL, time.Duration(cfg.Tika.Timeout)*time.Second))
	}
	extractor, err := parser.NewTextExtractor(ctx, extractorOpts...)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Strs("formats", extractor.SupportedFormats()).Msg("文本提取器初始化成功")

	var opts []service.Option
	if s.MySQL != nil {
		opts = append(opts, service.WithRepository(s.MySQL))
		if s.RabbitMQ != nil {
			opts = append(opts, service.WithEvents(cfg.RabbitMQ.EventsExchange, cfg.RabbitMQ.AnalysisCompletedRoutingKey))
		}
	}
	if s.Redis != nil {
		opts = append(opts, service.WithCache(s.Redis))
	}
	if s.MinIO != nil {
		opts = append(opts, service.WithObjectStorage(s.MinIO))
	}

	analysisSvc := service.NewAnalysisService(
		cfg.Upload,
		analyzer.NewAnalyzer(analyzer.WithTaxonomy(taxonomy)),
		extractor,
		generator.NewDocxGenerator(generator.WithTempDir(cfg.Upload.TempDir)),
		opts...,
	)

	var (
		admins service.AdminRepository
		tokens service.TokenStore
	)
	if s.MySQL != nil && s.Redis != nil {
		admins, tokens = s.MySQL, s.Redis
	} else {
		logger.Warn().Msg("MySQL或Redis不可用，管理后台已禁用")
	}
	adminSvc := service.NewAdminService(admins, tokens, config.GetDuration(cfg.Admin.TokenTTL, 0))
	return analysisSvc, adminSvc, nil
}

func initLogger(cfg config.LoggerConfig) {
	logger.Init(logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		TimeFormat:   cfg.TimeFormat,
		ReportCaller: cfg.ReportCaller,
	})
	logger.Logger = logger.Logger.With().Str("app", serviceName).Str("version", version).Logger()

	// hertz 内部日志复用同一个 zerolog 实例
	glog.SetLogger(hertzadapter.From(logger.Logger))
}
