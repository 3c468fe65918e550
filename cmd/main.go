package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/doc-transition/api"
	"github.com/fyerfyer/doc-transition/api/handler"
	"github.com/fyerfyer/doc-transition/api/middleware"
	appconfig "github.com/fyerfyer/doc-transition/config"
	"github.com/fyerfyer/doc-transition/internal/app"
	"github.com/fyerfyer/doc-transition/internal/database"
	"github.com/fyerfyer/doc-transition/internal/repository"
	"github.com/fyerfyer/doc-transition/internal/services"
	"github.com/fyerfyer/doc-transition/pkg/storage"
	"github.com/fyerfyer/doc-transition/pkg/taskqueue"
)

// 命令行选项，显式设置时覆盖配置文件
type options struct {
	ConfigFile   string        // 配置文件路径
	EnvFile      string        // .env 文件路径
	Port         int           // 服务端口
	Mode         string        // 运行模式 (debug/release)
	LogLevel     string        // 日志级别
	Queue        bool          // 是否启用任务队列
	Worker       bool          // 是否在本进程内运行队列工作者
	RedisAddr    string        // 任务队列 Redis 地址
	ReadTimeout  time.Duration // 读取超时
	WriteTimeout time.Duration // 写入超时
}

func main() {
	opts, set := parseFlags()

	if err := appconfig.LoadEnvFile(opts.EnvFile); err != nil {
		logrus.Fatalf("Failed to load env file: %v", err)
	}

	cfg, err := appconfig.Load(opts.ConfigFile)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, opts, set)

	gin.SetMode(cfg.Server.Mode)

	logger, err := setupLogger(cfg.Log)
	if err != nil {
		logrus.Fatalf("Failed to configure logger: %v", err)
	}
	logger.Info("Starting transition service...")

	ctx := context.Background()

	if err := setupDatabase(cfg.Database, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	fileStorage, err := app.NewStorage(ctx, cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	llmClient, err := app.NewLLMClient(cfg.LLM)
	if err != nil {
		logger.Fatalf("Failed to initialize LLM client: %v", err)
	}

	pipeline, err := app.NewPipeline(ctx, cfg, llmClient, fileStorage, logger)
	if err != nil {
		logger.Fatalf("Failed to build transition pipeline: %v", err)
	}

	var queue taskqueue.Queue
	if cfg.Queue.Enable {
		queue, err = setupTaskQueue(cfg.Queue, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
	}

	svc := setupService(cfg, pipeline, fileStorage, queue, logger)

	if queue != nil && opts.Worker {
		worker, err := startWorker(queue, cfg.Queue, svc, logger)
		if err != nil {
			logger.Fatalf("Failed to start task worker: %v", err)
		}
		defer worker.Stop()
	}

	maxUpload := int64(cfg.Server.MaxUploadMB) << 20
	r := api.SetupRouter(
		handler.NewTransitionHandler(svc, maxUpload),
		handler.NewRunHandler(svc),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}

	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// parseFlags 解析命令行参数，返回显式设置过的参数名
func parseFlags() (options, map[string]bool) {
	opts := options{}

	flag.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to config file")
	flag.StringVar(&opts.EnvFile, "env", ".env", "Path to .env file")
	flag.IntVar(&opts.Port, "port", 8080, "Server port")
	flag.StringVar(&opts.Mode, "mode", "release", "Run mode (debug/release)")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug/info/warn/error)")
	flag.BoolVar(&opts.Queue, "queue", false, "Enable async task queue")
	flag.BoolVar(&opts.Worker, "worker", true, "Run the task worker in this process")
	flag.StringVar(&opts.RedisAddr, "redis-addr", "localhost:6379", "Redis address for task queue")
	flag.DurationVar(&opts.ReadTimeout, "read-timeout", 30*time.Second, "Read timeout")
	flag.DurationVar(&opts.WriteTimeout, "write-timeout", 5*time.Minute, "Write timeout")

	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return opts, set
}

// applyFlags 只覆盖命令行上明确设置的参数
func applyFlags(cfg *appconfig.Config, opts options, set map[string]bool) {
	if set["port"] {
		cfg.Server.Port = opts.Port
	}
	if set["mode"] {
		cfg.Server.Mode = opts.Mode
	}
	if set["log-level"] {
		cfg.Log.Level = opts.LogLevel
	}
	if set["queue"] {
		cfg.Queue.Enable = opts.Queue
	}
	if set["redis-addr"] {
		cfg.Queue.RedisAddr = opts.RedisAddr
	}
}

// setupLogger 设置日志系统
func setupLogger(cfg appconfig.LogConfig) (*logrus.Logger, error) {
	err := middleware.ConfigureLogger(middleware.LogOptions{
		Level:      cfg.Level,
		File:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
	return middleware.GetLogger(), err
}

// setupDatabase 设置数据库
func setupDatabase(cfg appconfig.DatabaseConfig, logger *logrus.Logger) error {
	dbConfig := database.DefaultConfig()
	dbConfig.Type = cfg.Type
	dbConfig.DSN = cfg.DSN
	return database.Setup(dbConfig, logger)
}

// setupTaskQueue 设置任务队列
func setupTaskQueue(cfg appconfig.QueueConfig, logger *logrus.Logger) (taskqueue.Queue, error) {
	queueConfig := taskqueue.DefaultConfig()
	queueConfig.RedisAddr = cfg.RedisAddr
	queueConfig.RedisPassword = cfg.RedisPassword
	queueConfig.RedisDB = cfg.RedisDB
	if cfg.Concurrency > 0 {
		queueConfig.Concurrency = cfg.Concurrency
	}
	queueConfig.RetryLimit = cfg.RetryLimit
	if cfg.RetryDelay > 0 {
		queueConfig.RetryDelay = appconfig.Seconds(cfg.RetryDelay)
	}
	if cfg.TaskTimeout > 0 {
		queueConfig.TaskTimeout = appconfig.Seconds(cfg.TaskTimeout)
	}

	logger.WithFields(logrus.Fields{
		"type":        cfg.Type,
		"redis_addr":  cfg.RedisAddr,
		"concurrency": queueConfig.Concurrency,
		"retry_limit": queueConfig.RetryLimit,
	}).Info("Setting up task queue")

	return taskqueue.NewQueue(cfg.Type, queueConfig)
}

// setupService 创建过渡语业务服务
func setupService(cfg *appconfig.Config, pipeline *app.Pipeline, store storage.Storage, queue taskqueue.Queue, logger *logrus.Logger) *services.TransitionService {
	opts := []services.ServiceOption{
		services.WithStorage(store),
		services.WithModel(pipeline.Model),
		services.WithLogger(logger),
	}
	if cfg.Transition.Timeout > 0 {
		opts = append(opts, services.WithTimeout(appconfig.Seconds(cfg.Transition.Timeout)))
	}
	if queue != nil {
		opts = append(opts, services.WithTaskQueue(queue))
		logger.Info("Async transition runs enabled")
	}
	return services.NewTransitionService(pipeline.Weaver, repository.NewRunRepository(), opts...)
}

// startWorker 在本进程内启动队列工作者
func startWorker(queue taskqueue.Queue, cfg appconfig.QueueConfig, svc *services.TransitionService, logger *logrus.Logger) (taskqueue.Worker, error) {
	redisQueue, ok := queue.(*taskqueue.RedisQueue)
	if !ok {
		return nil, fmt.Errorf("queue type %s has no worker implementation", cfg.Type)
	}

	worker := taskqueue.NewRedisWorker(redisQueue, nil)
	worker.RegisterHandler(taskqueue.TaskWeave, taskqueue.NewWeaveHandler(svc, logger))
	if err := worker.Start(); err != nil {
		return nil, err
	}
	logger.Info("Task worker started")
	return worker, nil
}
