// Package app 根据配置组装过渡语生成流水线，供服务端和命令行共用
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/doc-transition/config"
	"github.com/fyerfyer/doc-transition/internal/cache"
	"github.com/fyerfyer/doc-transition/internal/examples"
	"github.com/fyerfyer/doc-transition/internal/llm"
	"github.com/fyerfyer/doc-transition/internal/transition"
	"github.com/fyerfyer/doc-transition/pkg/storage"
)

// StoragePrefix 示例文件位于文件存储中时 examples_file 的前缀
const StoragePrefix = "storage://"

// Pipeline 组装好的生成流水线
type Pipeline struct {
	Weaver   *transition.Weaver
	Model    string      // 生成模型名称，记录在处理结果中
	Cache    cache.Cache // 未启用缓存时为nil
	Examples int         // 附带的示例数量
}

// NewStorage 按配置创建文件存储
func NewStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case "", "local":
		return storage.NewLocalStorage(storage.LocalConfig{Path: cfg.Path})
	case "minio":
		return storage.NewMinioStorage(ctx, storage.MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// NewLLMClient 按配置创建大模型客户端
func NewLLMClient(cfg config.LLMConfig) (llm.Client, error) {
	opts := []llm.Option{
		llm.WithAPIKey(cfg.APIKey),
		llm.WithModel(cfg.Model),
		llm.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, llm.WithBaseURL(cfg.Endpoint))
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(cfg.MaxTokens))
	}
	if cfg.Temperature > 0 {
		opts = append(opts, llm.WithTemperature(cfg.Temperature))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, llm.WithTimeout(config.Seconds(cfg.Timeout)))
	}
	return llm.NewClient(cfg.Provider, opts...)
}

// NewCache 按配置创建缓存，未启用时返回nil
func NewCache(cfg config.CacheConfig) (cache.Cache, error) {
	if !cfg.Enable {
		return nil, nil
	}
	cacheCfg := cache.DefaultConfig()
	cacheCfg.Type = cfg.Type
	cacheCfg.RedisAddr = cfg.Address
	cacheCfg.RedisPassword = cfg.Password
	cacheCfg.RedisDB = cfg.DB
	if cfg.Prefix != "" {
		cacheCfg.KeyPrefix = cfg.Prefix
	}
	if cfg.TTL > 0 {
		cacheCfg.DefaultTTL = config.Seconds(cfg.TTL)
	}
	return cache.NewCache(cacheCfg)
}

// LoadExamples 加载示例过渡语
// examples_file 以 storage:// 开头时从文件存储读取，否则按本地路径读取
func LoadExamples(ctx context.Context, cfg config.TransitionConfig, store storage.Storage) ([]string, error) {
	if cfg.ExamplesFile == "" {
		return nil, nil
	}
	if id, ok := strings.CutPrefix(cfg.ExamplesFile, StoragePrefix); ok {
		if store == nil {
			return nil, fmt.Errorf("examples %s: no storage configured", id)
		}
		return examples.LoadFromStorage(ctx, store, id, cfg.ExamplesField, cfg.ExamplesLimit)
	}
	return examples.LoadFile(cfg.ExamplesFile, cfg.ExamplesField, cfg.ExamplesLimit)
}

// NewPipeline 组装 客户端 -> 生成器 -> 缓存 -> 编织器
func NewPipeline(ctx context.Context, cfg *config.Config, client llm.Client, store storage.Storage, logger *logrus.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	samples, err := LoadExamples(ctx, cfg.Transition, store)
	if err != nil {
		return nil, err
	}

	genOpts := []llm.GeneratorOption{
		llm.WithExamples(samples),
		llm.WithPromptMarker(cfg.Transition.Marker),
	}
	if cfg.LLM.MaxTokens > 0 {
		genOpts = append(genOpts, llm.WithReplyLimits(cfg.LLM.MaxTokens, cfg.LLM.Temperature))
	}
	if cfg.Transition.SystemPrompt != "" {
		genOpts = append(genOpts, llm.WithSystemPrompt(cfg.Transition.SystemPrompt))
	}
	generator := llm.NewTransitionGenerator(client, genOpts...)

	p := &Pipeline{Model: generator.Name(), Examples: len(samples)}

	var source transition.PhraseSource = generator
	p.Cache, err = NewCache(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	if p.Cache != nil {
		source = cache.NewCachedSource(generator, p.Cache, p.Model, config.Seconds(cfg.Cache.TTL), logger)
	}

	p.Weaver = transition.NewWeaver(source,
		transition.WithMarker(cfg.Transition.Marker),
		transition.WithSkipHeader(cfg.Transition.SkipHeader),
		transition.WithCleanup(cfg.Transition.Cleanup),
		transition.WithLogger(logger),
	)

	logger.WithFields(logrus.Fields{
		"provider": cfg.LLM.Provider,
		"model":    p.Model,
		"examples": p.Examples,
		"cache":    p.Cache != nil,
	}).Info("Transition pipeline ready")

	return p, nil
}
