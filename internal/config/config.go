// Package config 负责加载和校验应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
// 进程启动时读取一次，之后以值的形式传给各个组件，不再修改。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Upload        UploadConfig        `mapstructure:"upload"`
	Loader        LoaderConfig        `mapstructure:"loader"`
	Chunking      ChunkingConfig      `mapstructure:"chunking"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Retry         RetryConfig         `mapstructure:"retry"`
	VectorStore   VectorStoreConfig   `mapstructure:"vectorstore"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Search        SearchConfig        `mapstructure:"search"`
	Redis         RedisConfig         `mapstructure:"redis"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
}

// ServerConfig 存储 HTTP 服务器相关的配置。
type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// Addr 返回 HTTP 服务监听地址。
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// UploadConfig 存储文件上传限制。
type UploadConfig struct {
	MaxFileSize       int64    `mapstructure:"max_file_size"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
	// SeedDir 中的文件在启动时导入，已存在同名文档的文件会被跳过。
	SeedDir string `mapstructure:"seed_dir"`
}

// IsAllowed 判断扩展名（不区分大小写，可带或不带点）是否在允许列表中。
func (u UploadConfig) IsAllowed(ext string) bool {
	ext = NormalizeExtension(ext)
	for _, allowed := range u.AllowedExtensions {
		if NormalizeExtension(allowed) == ext {
			return true
		}
	}
	return false
}

// NormalizeExtension 去掉前导点和空白并转为小写。
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// LoaderConfig 存储可选的 Apache Tika 文本提取配置。
// TikaURL 非空时，TikaTypes 中的扩展名交给 Tika 服务器解析；这些扩展名仍需出现在 upload.allowed_extensions 中。
type LoaderConfig struct {
	TikaURL     string        `mapstructure:"tika_url"`
	TikaTypes   []string      `mapstructure:"tika_types"`
	TikaTimeout time.Duration `mapstructure:"tika_timeout"`
}

// ChunkingConfig 存储文本分块参数，单位为字符。
type ChunkingConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	Provider          string        `mapstructure:"provider"` // openai | hashing
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	Dimensions        int           `mapstructure:"dimensions"`
	BatchSize         int           `mapstructure:"batch_size"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
}

// 支持的 Embedding 实现。hashing 为本地确定性实现，不调用外部 API。
const (
	EmbeddingProviderOpenAI  = "openai"
	EmbeddingProviderHashing = "hashing"
)

// RetryConfig 定义了对外部服务瞬时故障的重试策略。
type RetryConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

// VectorStoreConfig 选择向量库实现。
type VectorStoreConfig struct {
	Provider string        `mapstructure:"provider"` // elasticsearch | memory
	Timeout  time.Duration `mapstructure:"timeout"`
}

// 支持的向量库实现。
const (
	ProviderElasticsearch = "elasticsearch"
	ProviderMemory        = "memory"
)

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses          []string `mapstructure:"addresses"`
	Username           string   `mapstructure:"username"`
	Password           string   `mapstructure:"password"`
	APIKey             string   `mapstructure:"api_key"`
	CloudID            string   `mapstructure:"cloud_id"`
	IndexName          string   `mapstructure:"index_name"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
}

// SearchConfig 存储检索参数。
type SearchConfig struct {
	DefaultK                int `mapstructure:"default_k"`
	MaxK                    int `mapstructure:"max_k"`
	SimilarCandidatesFactor int `mapstructure:"similar_candidates_factor"`
}

// RedisConfig 存储 Redis 的配置，Addr 为空时禁用向量缓存。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MinIOConfig 存储原始文件归档的配置。
type MinIOConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// KafkaConfig 存储文档事件流的配置，Brokers 为空时不发布事件。
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// 旧版部署使用的环境变量名，按优先级排列。
var envAliases = map[string][]string{
	"server.host":               {"SERVER_HOST", "FLASK_HOST"},
	"server.port":               {"SERVER_PORT", "FLASK_PORT"},
	"upload.max_file_size":      {"UPLOAD_MAX_FILE_SIZE", "MAX_FILE_SIZE"},
	"upload.allowed_extensions": {"UPLOAD_ALLOWED_EXTENSIONS", "ALLOWED_EXTENSIONS"},
	"chunking.size":             {"CHUNKING_SIZE", "CHUNK_SIZE"},
	"chunking.overlap":          {"CHUNKING_OVERLAP", "CHUNK_OVERLAP"},
	"embedding.api_key":         {"EMBEDDING_API_KEY", "OPENAI_API_KEY"},
	"embedding.timeout":         {"EMBEDDING_TIMEOUT"},
	"retry.max_retries":         {"RETRY_MAX_RETRIES", "MAX_RETRIES"},
	"elasticsearch.addresses":   {"ELASTICSEARCH_ADDRESSES"},
	"elasticsearch.api_key":     {"ELASTICSEARCH_API_KEY"},
	"elasticsearch.index_name":  {"ELASTICSEARCH_INDEX_NAME", "VECTOR_INDEX_NAME", "PINECONE_INDEX_NAME"},
	"redis.addr":                {"REDIS_ADDR"},
	"loader.tika_url":           {"TIKA_URL"},
	"kafka.brokers":             {"KAFKA_BROKERS"},
	"vectorstore.provider":      {"VECTORSTORE_PROVIDER"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("upload.max_file_size", 16*1024*1024)
	v.SetDefault("upload.allowed_extensions", []string{"pdf", "txt", "docx", "xlsx"})
	v.SetDefault("upload.seed_dir", "initfile")

	v.SetDefault("loader.tika_url", "")
	v.SetDefault("loader.tika_types", []string{"doc", "ppt", "pptx", "rtf", "odt", "html"})
	v.SetDefault("loader.tika_timeout", 60*time.Second)

	v.SetDefault("chunking.size", 1000)
	v.SetDefault("chunking.overlap", 200)

	v.SetDefault("embedding.provider", EmbeddingProviderOpenAI)
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", "text-embedding-ada-002")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("embedding.batch_size", 100)
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("embedding.requests_per_second", 0)
	v.SetDefault("embedding.cache_ttl", 24*time.Hour)

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.initial_interval", 500*time.Millisecond)
	v.SetDefault("retry.max_interval", 5*time.Second)
	v.SetDefault("retry.max_elapsed_time", 30*time.Second)

	v.SetDefault("vectorstore.provider", ProviderElasticsearch)
	v.SetDefault("vectorstore.timeout", 30*time.Second)

	v.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.api_key", "")
	v.SetDefault("elasticsearch.cloud_id", "")
	v.SetDefault("elasticsearch.index_name", "langchain-documents")
	v.SetDefault("elasticsearch.insecure_skip_verify", false)

	v.SetDefault("search.default_k", 5)
	v.SetDefault("search.max_k", 100)
	v.SetDefault("search.similar_candidates_factor", 4)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "docvector-uploads")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "docvector.documents")
}

// Load 读取 .env、可选的 YAML 配置文件和环境变量，返回校验后的配置。
// configPath 指向的文件不存在时只使用默认值和环境变量。
func Load(configPath string) (*Config, error) {
	// .env 只在存在时加载，已有的环境变量不会被覆盖
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 文件失败: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envAliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("绑定环境变量 %s 失败: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize 清理从环境变量拆分出的列表项。
func (c *Config) normalize() {
	exts := make([]string, 0, len(c.Upload.AllowedExtensions))
	for _, ext := range c.Upload.AllowedExtensions {
		if ext = NormalizeExtension(ext); ext != "" {
			exts = append(exts, ext)
		}
	}
	c.Upload.AllowedExtensions = exts
	tikaTypes := make([]string, 0, len(c.Loader.TikaTypes))
	for _, t := range c.Loader.TikaTypes {
		if t = NormalizeExtension(t); t != "" {
			tikaTypes = append(tikaTypes, t)
		}
	}
	c.Loader.TikaTypes = tikaTypes
	c.Elasticsearch.Addresses = compact(c.Elasticsearch.Addresses)
	c.Kafka.Brokers = compact(c.Kafka.Brokers)
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate 检查配置是否可以启动服务。
func (c *Config) Validate() error {
	var errs []error
	switch c.Embedding.Provider {
	case EmbeddingProviderOpenAI:
		if c.Embedding.APIKey == "" {
			errs = append(errs, errors.New("embedding.api_key (OPENAI_API_KEY) 未设置"))
		}
	case EmbeddingProviderHashing:
	default:
		errs = append(errs, fmt.Errorf("未知的 embedding.provider: %q", c.Embedding.Provider))
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("embedding.dimensions 必须为正数, 当前为 %d", c.Embedding.Dimensions))
	}
	if c.Embedding.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embedding.batch_size 必须为正数, 当前为 %d", c.Embedding.BatchSize))
	}
	if c.Chunking.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunking.size 必须为正数, 当前为 %d", c.Chunking.Size))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, fmt.Errorf("chunking.overlap 必须满足 0 <= overlap < size, 当前为 %d", c.Chunking.Overlap))
	}
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("upload.max_file_size 必须为正数, 当前为 %d", c.Upload.MaxFileSize))
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		errs = append(errs, errors.New("upload.allowed_extensions 不能为空"))
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries 不能为负数, 当前为 %d", c.Retry.MaxRetries))
	}
	switch c.VectorStore.Provider {
	case ProviderElasticsearch:
		if len(c.Elasticsearch.Addresses) == 0 && c.Elasticsearch.CloudID == "" {
			errs = append(errs, errors.New("elasticsearch.addresses 与 elasticsearch.cloud_id 至少需要设置一个"))
		}
		if c.Elasticsearch.IndexName == "" {
			errs = append(errs, errors.New("elasticsearch.index_name 不能为空"))
		}
	case ProviderMemory:
	default:
		errs = append(errs, fmt.Errorf("未知的 vectorstore.provider: %q", c.VectorStore.Provider))
	}
	if c.Search.MaxK <= 0 || c.Search.DefaultK <= 0 || c.Search.DefaultK > c.Search.MaxK {
		errs = append(errs, fmt.Errorf("search.default_k 必须在 1..max_k 之间 (default_k=%d, max_k=%d)", c.Search.DefaultK, c.Search.MaxK))
	}
	if c.Search.SimilarCandidatesFactor <= 0 {
		errs = append(errs, fmt.Errorf("search.similar_candidates_factor 必须为正数, 当前为 %d", c.Search.SimilarCandidatesFactor))
	}
	if c.MinIO.Enabled && c.MinIO.BucketName == "" {
		errs = append(errs, errors.New("启用 minio 时 minio.bucket_name 不能为空"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("配置了 kafka.brokers 时 kafka.topic 不能为空"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("配置校验失败: %w", errors.Join(errs...))
	}
	return nil
}
