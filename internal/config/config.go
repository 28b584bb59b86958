// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Log           LogConfig           `mapstructure:"log"`
	Storage       StorageConfig       `mapstructure:"storage"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Upload        UploadConfig        `mapstructure:"upload"`
	Thumbnail     ThumbnailConfig     `mapstructure:"thumbnail"`
	Session       SessionConfig       `mapstructure:"session"`
	CORS          CORSConfig          `mapstructure:"cors"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
// Driver 取值 mysql 或 sqlite，本地开发可以直接使用 sqlite 文件。
type DatabaseConfig struct {
	Driver string       `mapstructure:"driver"`
	MySQL  MySQLConfig  `mapstructure:"mysql"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
	Redis  RedisConfig  `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// SQLiteConfig 存储 SQLite 数据库文件路径。
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// StorageConfig 选择模型文件的存储后端：minio 或 disk。
type StorageConfig struct {
	Driver string     `mapstructure:"driver"`
	Disk   DiskConfig `mapstructure:"disk"`
}

// DiskConfig 存储本地磁盘存储的根目录。
type DiskConfig struct {
	Root string `mapstructure:"root"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	// PresignExpiryMinutes>0 时下载接口重定向到签名直链。
	PresignExpiryMinutes int `mapstructure:"presign_expiry_minutes"`
}

// KafkaConfig 存储 Kafka 相关的配置。
// Enabled=false 时资产事件在进程内同步处理。
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// UploadConfig 存储模型上传的校验规则。
type UploadConfig struct {
	MaxFileSize      int64    `mapstructure:"max_file_size"`
	AllowedMimeTypes []string `mapstructure:"allowed_mime_types"`
	PublicURLPrefix  string   `mapstructure:"public_url_prefix"`
	SeedDir          string   `mapstructure:"seed_dir"`
}

// ThumbnailConfig 配置缩略图生成服务。
type ThumbnailConfig struct {
	Provider       string `mapstructure:"provider"`
	ServerURL      string `mapstructure:"server_url"`
	DefaultURL     string `mapstructure:"default_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SessionConfig 配置会话令牌的签发与解析。
type SessionConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
	Header      string `mapstructure:"header"`
	Cookie      string `mapstructure:"cookie"`
}

// CORSConfig 配置允许的跨域来源。
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DefaultMaxFileSize 是默认的单文件大小上限 (50MB)。
const DefaultMaxFileSize int64 = 50 * 1024 * 1024

// DefaultThumbnailURL 是缩略图服务不可用时使用的占位图。
const DefaultThumbnailURL = "https://images.unsplash.com/photo-1618005198919-d3d4b5a92ead?w=400&h=300&fit=crop"

// setDefaults 注册所有配置项的默认值。
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.sqlite.path", "data/viewer.db")
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("storage.driver", "minio")
	v.SetDefault("storage.disk.root", "uploads")
	v.SetDefault("minio.bucket_name", "models")
	v.SetDefault("minio.presign_expiry_minutes", 0)
	v.SetDefault("kafka.topic", "model-asset-events")
	v.SetDefault("kafka.group_id", "model-viewer-go-indexer")
	v.SetDefault("elasticsearch.index_name", "model_assets")
	v.SetDefault("upload.max_file_size", DefaultMaxFileSize)
	v.SetDefault("upload.allowed_mime_types", []string{
		"model/gltf-binary",
		"model/gltf+json",
		"application/octet-stream",
		"application/json",
	})
	v.SetDefault("upload.public_url_prefix", "/uploads")
	v.SetDefault("upload.seed_dir", "initfile")
	v.SetDefault("thumbnail.provider", "placeholder")
	v.SetDefault("thumbnail.default_url", DefaultThumbnailURL)
	v.SetDefault("thumbnail.timeout_seconds", 5)
	v.SetDefault("session.expire_hours", 24*30)
	v.SetDefault("session.header", "X-Session-ID")
	v.SetDefault("session.cookie", "sessionId")
}

// Default 返回只包含默认值的配置，主要用于测试。
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		panic(fmt.Errorf("无法解析默认配置: %w", err))
	}
	return c
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
// 环境变量 VIEWER_<SECTION>_<KEY> 可以覆盖文件中的值。
func Init(configPath string) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("viewer")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := v.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}
