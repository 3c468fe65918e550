package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Transition TransitionConfig `mapstructure:"transition"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host        string `mapstructure:"host"`          // 服务器主机
	Port        int    `mapstructure:"port"`          // 服务器端口
	Mode        string `mapstructure:"mode"`          // gin运行模式：debug 或 release
	MaxUploadMB int    `mapstructure:"max_upload_mb"` // 上传文件大小上限
}

// Addr 监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LLMConfig 大语言模型配置
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`    // 提供商：openai 或 tongyi
	Model       string  `mapstructure:"model"`       // 模型名称
	APIKey      string  `mapstructure:"api_key"`     // API密钥，支持 ${ENV} 写法
	Endpoint    string  `mapstructure:"endpoint"`    // API端点
	MaxTokens   int     `mapstructure:"max_tokens"`  // 过渡语最大token数
	Temperature float32 `mapstructure:"temperature"` // 采样温度
	Timeout     int     `mapstructure:"timeout"`     // 请求超时（秒）
	MaxRetries  int     `mapstructure:"max_retries"` // 最大重试次数
}

// TransitionConfig 过渡语插入配置
type TransitionConfig struct {
	Marker        string `mapstructure:"marker"`         // 文档中的占位标记
	SkipHeader    string `mapstructure:"skip_header"`    // 不生成过渡语的标题
	Cleanup       bool   `mapstructure:"cleanup"`        // 是否执行最终清理
	SystemPrompt  string `mapstructure:"system_prompt"`  // 自定义系统提示词，为空时使用默认值
	ExamplesFile  string `mapstructure:"examples_file"`  // JSONL示例文件
	ExamplesField string `mapstructure:"examples_field"` // 示例字段名
	ExamplesLimit int    `mapstructure:"examples_limit"` // 示例数量上限
	Timeout       int    `mapstructure:"timeout"`        // 单个文档的处理超时（秒）
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`   // 是否启用缓存
	Type     string `mapstructure:"type"`     // 缓存类型：memory 或 redis
	Address  string `mapstructure:"address"`  // Redis地址
	Password string `mapstructure:"password"` // Redis密码
	DB       int    `mapstructure:"db"`       // Redis数据库
	TTL      int    `mapstructure:"ttl"`      // 缓存TTL（秒）
	Prefix   string `mapstructure:"prefix"`   // 键前缀
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool   `mapstructure:"enable"`         // 是否启用任务队列
	Type          string `mapstructure:"type"`           // 队列类型
	RedisAddr     string `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string `mapstructure:"redis_password"` // Redis密码
	RedisDB       int    `mapstructure:"redis_db"`       // Redis数据库编号
	Concurrency   int    `mapstructure:"concurrency"`    // 同时处理的文档数
	RetryLimit    int    `mapstructure:"retry_limit"`    // 任务最大重试次数
	RetryDelay    int    `mapstructure:"retry_delay"`    // 重试延迟(秒)
	TaskTimeout   int    `mapstructure:"task_timeout"`   // 单个任务超时(秒)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // 数据库类型，目前只支持 sqlite
	DSN  string `mapstructure:"dsn"`  // 数据源名称
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type"`     // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`     // 本地存储路径
	Bucket    string `mapstructure:"bucket"`   // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"` // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`        // 日志级别
	File       string `mapstructure:"file"`         // 日志文件，为空时只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // 单个日志文件大小上限
	MaxBackups int    `mapstructure:"max_backups"`  // 保留的旧文件数量
	MaxAgeDays int    `mapstructure:"max_age_days"` // 旧文件保留天数
	Compress   bool   `mapstructure:"compress"`     // 是否压缩旧文件
}

// Seconds 将秒数配置转换为 time.Duration
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// LoadEnvFile 加载 .env 文件，文件不存在时忽略
// 已存在的环境变量不会被覆盖
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// Load 从文件和环境变量加载配置
// 配置文件不存在时使用默认值并写出一份默认配置
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		logrus.WithField("path", configPath).Warn("Config file not found, using defaults")
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err == nil {
			if err := v.WriteConfigAs(configPath); err != nil {
				logrus.WithError(err).WithField("path", configPath).Warn("Could not write default config")
			}
		}
	} else if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	} else {
		logrus.WithField("path", v.ConfigFileUsed()).Info("Using config file")
	}

	// 环境变量覆盖，例如 LLM_API_KEY 对应 llm.api_key
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	processEnvironmentVariables(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Transition.Marker) == "" || strings.ContainsAny(c.Transition.Marker, " \t\r\n") {
		return fmt.Errorf("invalid transition.marker %q: must be non-empty without whitespace", c.Transition.Marker)
	}
	if c.Transition.ExamplesLimit < 0 || c.Transition.ExamplesLimit > 10 {
		return fmt.Errorf("invalid transition.examples_limit %d: must be between 0 and 10", c.Transition.ExamplesLimit)
	}
	switch c.LLM.Provider {
	case "openai", "tongyi":
	default:
		return fmt.Errorf("unsupported llm.provider: %s", c.LLM.Provider)
	}
	switch c.Storage.Type {
	case "local", "minio":
	default:
		return fmt.Errorf("unsupported storage.type: %s", c.Storage.Type)
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported cache.type: %s", c.Cache.Type)
	}
	return nil
}

// processEnvironmentVariables 展开配置中的 ${VAR} 引用
func processEnvironmentVariables(cfg *Config) {
	for _, field := range []*string{
		&cfg.LLM.APIKey,
		&cfg.LLM.Endpoint,
		&cfg.Cache.Password,
		&cfg.Queue.RedisPassword,
		&cfg.Storage.AccessKey,
		&cfg.Storage.SecretKey,
		&cfg.Storage.Endpoint,
	} {
		if strings.Contains(*field, "${") {
			*field = os.ExpandEnv(*field)
		}
	}
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.max_upload_mb", 5)

	// LLM默认配置
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4")
	v.SetDefault("llm.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("llm.endpoint", "https://api.openai.com/v1")
	v.SetDefault("llm.max_tokens", 20)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout", 30)
	v.SetDefault("llm.max_retries", 2)

	// 过渡语默认配置
	v.SetDefault("transition.marker", "TRANSITION")
	v.SetDefault("transition.skip_header", "A savoir également dans votre département")
	v.SetDefault("transition.cleanup", true)
	v.SetDefault("transition.system_prompt", "")
	v.SetDefault("transition.examples_file", "")
	v.SetDefault("transition.examples_field", "transition")
	v.SetDefault("transition.examples_limit", 10)
	v.SetDefault("transition.timeout", 300)

	// 缓存默认配置
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.ttl", 86400) // 1天
	v.SetDefault("cache.prefix", "transition")

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.type", "redis")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.retry_limit", 1)
	v.SetDefault("queue.retry_delay", 10)
	v.SetDefault("queue.task_timeout", 600)

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/transitions.db")

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./uploads")
	v.SetDefault("storage.bucket", "transitions")
	v.SetDefault("storage.use_ssl", false)

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
}
