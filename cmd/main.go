package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mock-interview-go/internal/api/handler"
	"mock-interview-go/internal/api/router"
	"mock-interview-go/internal/config"
	"mock-interview-go/internal/interview"
	"mock-interview-go/internal/jobs"
	appCoreLogger "mock-interview-go/internal/logger"
	"mock-interview-go/internal/metrics"
	"mock-interview-go/internal/outbox"
	"mock-interview-go/internal/parser"
	"mock-interview-go/internal/processor"
	"mock-interview-go/internal/questionbank"
	"mock-interview-go/internal/reporting"
	"mock-interview-go/internal/scoring"
	"mock-interview-go/internal/storage"
	"mock-interview-go/internal/tracing"
	"mock-interview-go/pkg/ratelimit"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/spf13/pflag"

	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var configPath string
	var sampleConfig string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.StringVar(&sampleConfig, "write-sample-config", "", "Write a sample config to the given path and exit")
	pflag.Parse()

	if sampleConfig != "" {
		if err := config.CreateSampleConfig(sampleConfig); err != nil {
			glog.Fatalf("生成示例配置失败: %v", err)
		}
		glog.Infof("示例配置已写入 %s", sampleConfig)
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}

	logFile := initLogger(cfg)
	if logFile != nil {
		defer logFile.Close()
	}
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		glog.Fatalf("初始化链路追踪失败: %v", err)
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	// 面试会话
	bank, err := loadQuestionBank(cfg.Interview.QuestionBankPath)
	if err != nil {
		glog.Fatalf("加载题库失败: %v", err)
	}
	sessionOpts := []interview.Option{
		interview.WithRevealDelay(config.GetDuration(cfg.Interview.RevealDelay, 2*time.Second)),
		interview.WithLogger(appCoreLogger.Component("interview")),
	}
	if storageManager.Redis != nil {
		sessionOpts = append(sessionOpts,
			interview.WithSnapshotCache(storageManager.Redis),
			interview.WithTerminationLatch(storageManager.Redis),
		)
	}
	manager := interview.NewManager(interview.Deps{
		Bank:       bank,
		Scorer:     scoring.NewDefaultScorer(),
		Summarizer: scoring.NewSummarizer(bank.Role()),
		Store:      storageManager.Interviews,
	}, sessionOpts...)

	runner := interview.NewRunner(manager, config.GetDuration(cfg.Interview.TickInterval, time.Second), appCoreLogger.Component("runner"))
	runner.Start()
	glog.Info("面试计时器已启动")

	// 简历入库
	pdfExtractor, err := parser.NewEinoPDFTextExtractor(ctx, parser.WithEinoLogger(appCoreLogger.Component("pdf")))
	if err != nil {
		glog.Fatalf("创建Eino PDF提取器失败: %v", err)
	}
	intakeOpts := []processor.IntakeOption{processor.WithLogger(appCoreLogger.Component("intake"))}
	if storageManager.Redis != nil {
		intakeOpts = append(intakeOpts, processor.WithDeduplicator(storageManager.Redis))
	}
	if storageManager.MinIO != nil {
		intakeOpts = append(intakeOpts, processor.WithFileStore(storageManager.MinIO))
	}
	intake := processor.NewIntakeService(parser.NewDocumentParser(pdfExtractor), storageManager.Interviews, intakeOpts...)

	// 面试结束事件：outbox -> RabbitMQ -> 排行榜
	var relay *outbox.MessageRelay
	if storageManager.RabbitMQ != nil {
		relay = outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ, appCoreLogger.Component("outbox"),
			outbox.WithPollingInterval(config.GetDuration(cfg.RabbitMQ.RelayInterval, 5*time.Second)),
			outbox.WithBatchSize(cfg.RabbitMQ.RelayBatchSize),
		)
		relay.Start()
		glog.Info("消息中继服务已启动")

		if storageManager.Redis != nil {
			consumer := reporting.NewConsumer(storageManager.RabbitMQ, storageManager.Redis,
				cfg.RabbitMQ.ReportQueue, cfg.RabbitMQ.PrefetchCount, appCoreLogger.Component("reporting"))
			if _, err := consumer.Start(ctx); err != nil {
				glog.Errorf("启动排行榜消费者失败: %v", err)
			} else {
				glog.Info("排行榜消费者已启动")
			}
		}
	} else {
		glog.Warn("RabbitMQ不可用，面试结束事件将保留在outbox中")
	}

	// 定时任务
	var cleaner jobs.OutboxCleaner
	if relay != nil {
		cleaner = relay
	}
	var locker jobs.Locker
	if storageManager.Redis != nil {
		locker = storageManager.Redis
	}
	scheduler := jobs.NewScheduler(jobs.Config{
		IdleSweepSpec:     cfg.Jobs.IdleSweepSpec,
		IdleTimeout:       config.GetDuration(cfg.Interview.IdleTimeout, 2*time.Hour),
		OutboxCleanupSpec: cfg.Jobs.OutboxCleanupSpec,
		OutboxRetention:   time.Duration(cfg.Jobs.OutboxRetentionDays) * 24 * time.Hour,
	}, manager, cleaner, locker, appCoreLogger.Component("jobs"))
	if err := scheduler.Start(); err != nil {
		glog.Fatalf("启动定时任务失败: %v", err)
	}

	// HTTP
	candidateOpts := []handler.CandidateHandlerOption{handler.WithCandidateLogger(appCoreLogger.Component("api"))}
	if storageManager.MinIO != nil {
		candidateOpts = append(candidateOpts, handler.WithResumeFiles(storageManager.MinIO))
	}
	var snapshots handler.SnapshotReader
	if storageManager.Redis != nil {
		candidateOpts = append(candidateOpts, handler.WithCandidateCache(storageManager.Redis))
		snapshots = storageManager.Redis
	}

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		ctx.Next(c)
		glog.CtxDebugf(c, "%s %s -> %d", string(ctx.Method()), string(ctx.Path()), ctx.Response.StatusCode())
	})
	if cfg.Metrics.Enabled {
		h.Use(metrics.Middleware())
		h.GET(cfg.Metrics.Path, metrics.Handler())
	}

	router.RegisterRoutes(h, router.Handlers{
		Candidates:    handler.NewCandidateHandler(intake, storageManager.Interviews, manager, candidateOpts...),
		Interviews:    handler.NewInterviewHandler(manager, storageManager.Interviews, snapshots),
		UploadLimiter: ratelimit.NewTokenBucket(cfg.RateLimit.UploadQPM, cfg.RateLimit.UploadCapacity),
	})
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}

	scheduler.Stop()
	runner.Stop()
	if relay != nil {
		relay.Stop()
		glog.Info("消息中继服务已停止")
	}
	cancel()

	if err := shutdownTracing(shutdownCtx); err != nil {
		glog.Warnf("关闭链路追踪失败: %v", err)
	}
	glog.Infof("优雅退出完成，内存中剩余会话 %d 个", manager.Len())
}

func loadQuestionBank(path string) (*questionbank.Bank, error) {
	if path == "" {
		return questionbank.NewDefaultBank()
	}
	return questionbank.LoadBank(path)
}

// initLogger 初始化 zerolog，并通过适配器接管 Hertz 的日志
func initLogger(cfg *config.Config) io.Closer {
	closer, err := appCoreLogger.Init(appCoreLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
		File:         cfg.Logger.File,
	})
	if err != nil {
		glog.Fatalf("初始化日志失败: %v", err)
	}

	glog.SetLogger(hertzadapter.From(appCoreLogger.Logger))
	switch cfg.Logger.Level {
	case "debug":
		glog.SetLevel(glog.LevelDebug)
	case "warn":
		glog.SetLevel(glog.LevelWarn)
	case "error":
		glog.SetLevel(glog.LevelError)
	default:
		glog.SetLevel(glog.LevelInfo)
	}
	return closer
}
