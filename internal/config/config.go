// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig          `mapstructure:"server"`
	Database      DatabaseConfig        `mapstructure:"database"`
	JWT           JWTConfig             `mapstructure:"jwt"`
	Log           LogConfig             `mapstructure:"log"`
	Kafka         KafkaConfig           `mapstructure:"kafka"`
	Tika          TikaConfig            `mapstructure:"tika"`
	Elasticsearch ElasticsearchConfig   `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig           `mapstructure:"minio"`
	Embedding     EmbeddingConfig       `mapstructure:"embedding"`
	Providers     []ProviderConfig      `mapstructure:"providers"`
	Verification  VerificationConfig    `mapstructure:"verification"`
	Scoring       ScoringConfig         `mapstructure:"scoring"`
	Cache         CacheConfig           `mapstructure:"cache"`
	Retry         RetryConfig           `mapstructure:"retry"`
	Ingest        IngestConfig          `mapstructure:"ingest"`
	Plans         map[string]PlanConfig `mapstructure:"plans"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// TikaConfig 存储 Tika 服务器相关的配置。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
// 这里的 bucket 只用于暂存上传的原始文件，文本抽取完成后对象即被删除。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
// 全局只有这一份 embedding 配置：文档分块、全文向量、查询与回答向量
// 必须来自同一个模型，否则余弦相似度没有意义。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size"`
}

// ProviderConfig 描述一个参与仿真的 LLM 提供商。
// APIKey 为空的条目会被构造成 NullProvider（合成回答，结果打 synthetic 标记）。
type ProviderConfig struct {
	Name      string  `mapstructure:"name"`
	BaseURL   string  `mapstructure:"base_url"`
	APIKey    string  `mapstructure:"api_key"`
	Model     string  `mapstructure:"model"`
	MaxTokens int     `mapstructure:"max_tokens"`
	TopP      float64 `mapstructure:"top_p"`
}

// VerificationConfig 配置声明抽取与校验所用的提供商及其边界。
type VerificationConfig struct {
	Provider            string `mapstructure:"provider"`
	MaxClaims           int    `mapstructure:"max_claims"`
	DocumentPrefixChars int    `mapstructure:"document_prefix_chars"`
}

// ScoringConfig 配置分块与检索参数。
type ScoringConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	TopK         int `mapstructure:"top_k"`
}

// CacheConfig 配置仿真结果缓存。
type CacheConfig struct {
	TTLHours int `mapstructure:"ttl_hours"`
}

// RetryConfig 配置对提供商调用统一生效的重试策略。
type RetryConfig struct {
	MaxAttempts       int `mapstructure:"max_attempts"`
	BaseBackoffSecond int `mapstructure:"base_backoff_seconds"`
	MaxBackoffSecond  int `mapstructure:"max_backoff_seconds"`
}

// IngestConfig 配置文档接入边界。
type IngestConfig struct {
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// PlanConfig 描述一个订阅套餐的能力边界。
type PlanConfig struct {
	MaxProviders       int `mapstructure:"max_providers"`
	MonthlySimulations int `mapstructure:"monthly_simulations"`
}

// PlanFor 返回指定套餐的能力配置。
// 未配置的套餐名回落到 starter，starter 也缺失时返回零值（即不设限）。
func PlanFor(name string) PlanConfig {
	if plan, ok := Conf.Plans[name]; ok {
		return plan
	}
	if plan, ok := Conf.Plans["starter"]; ok {
		return plan
	}
	return PlanConfig{}
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 算法参数的缺省值，配置文件可以覆盖
	viper.SetDefault("embedding.batch_size", 16)
	viper.SetDefault("verification.max_claims", 10)
	viper.SetDefault("verification.document_prefix_chars", 10000)
	viper.SetDefault("scoring.chunk_size", 2000)
	viper.SetDefault("scoring.chunk_overlap", 200)
	viper.SetDefault("scoring.top_k", 5)
	viper.SetDefault("cache.ttl_hours", 24)
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.base_backoff_seconds", 2)
	viper.SetDefault("retry.max_backoff_seconds", 10)
	viper.SetDefault("ingest.max_upload_bytes", 10*1024*1024)

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}
