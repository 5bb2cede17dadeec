package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultConfigYAML 内置默认配置
//
//go:embed default.yaml
var DefaultConfigYAML []byte

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Lookup    LookupConfig    `mapstructure:"lookup"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Email     EmailConfig     `mapstructure:"email"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port      string `mapstructure:"port"`
	Mode      string `mapstructure:"mode"`
	BaseURL   string `mapstructure:"base_url"`
	LogFormat string `mapstructure:"log_format"` // console 或 json
	LogLevel  string `mapstructure:"log_level"`
}

// DatabaseConfig 数据库配置
// Driver 取值 sqlite / mysql / postgres，sqlite 时只使用 Path
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Charset  string `mapstructure:"charset"`
	SSLMode  string `mapstructure:"sslmode"`
	LogLevel string `mapstructure:"log_level"`
}

// AuthConfig 访问凭证配置
type AuthConfig struct {
	Clients []ClientConfig `mapstructure:"clients"`
}

// ClientConfig 一个客户端的共享密钥，Name 作为审计日志中的操作者
// Token 与 TokenBcrypt 二选一，TokenBcrypt 优先
type ClientConfig struct {
	Name        string `mapstructure:"name"`
	Token       string `mapstructure:"token"`
	TokenBcrypt string `mapstructure:"token_bcrypt"`
}

// LookupConfig 查找引擎配置
type LookupConfig struct {
	Strategy        string `mapstructure:"strategy"`
	BenchIterations int    `mapstructure:"bench_iterations"`
}

// IngestConfig 导入配置
type IngestConfig struct {
	TimestampLayout string `mapstructure:"timestamp_layout"`
}

// RateLimitConfig API 限流配置
type RateLimitConfig struct {
	Max           int           `mapstructure:"max"`
	WindowSeconds int           `mapstructure:"window_seconds"`
	Window        time.Duration `mapstructure:"-"`
}

// EmailConfig 邮件配置（审计报表发送）
type EmailConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

var (
	// GlobalConfig 全局配置实例
	GlobalConfig *Config
)

// LoadConfig 加载配置
// 优先级: 环境变量 > 外部配置文件 > 嵌入的默认配置
// configPath: 可选的外部配置文件路径
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 1. 首先加载嵌入的默认配置
	if err := v.ReadConfig(bytes.NewReader(DefaultConfigYAML)); err != nil {
		return nil, fmt.Errorf("读取内置配置失败: %w", err)
	}

	// 2. 尝试加载外部配置文件（可选，用于覆盖默认配置）
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.MergeInConfig(); err != nil {
			log.Printf("警告: 无法读取指定配置文件 %s: %v", configPath, err)
		} else {
			log.Printf("已合并外部配置文件: %s", configPath)
		}
	} else {
		externalViper := viper.New()
		externalViper.SetConfigName("config")
		externalViper.SetConfigType("yaml")
		externalViper.AddConfigPath(".")
		externalViper.AddConfigPath("./config")
		externalViper.AddConfigPath("/etc/momo")
		externalViper.AddConfigPath("$HOME/.momo")

		if err := externalViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(externalViper.AllSettings()); err != nil {
				log.Printf("警告: 合并外部配置失败: %v", err)
			} else {
				log.Printf("已合并外部配置文件: %s", externalViper.ConfigFileUsed())
			}
		}
	}

	// 3. .env 文件中的变量并入进程环境（已存在的环境变量不会被覆盖）
	if err := godotenv.Load(); err == nil {
		log.Println("已加载 .env 文件")
	}

	// 4. 环境变量覆盖，如 MOMO_DATABASE_DRIVER
	v.SetEnvPrefix("MOMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 单客户端的快捷环境变量：MOMO_API_TOKEN
	if token := v.GetString("api_token"); token != "" {
		cfg.Auth.Clients = []ClientConfig{{Name: "api-client", Token: token}}
	}

	if cfg.RateLimit.WindowSeconds <= 0 {
		cfg.RateLimit.WindowSeconds = 60
	}
	cfg.RateLimit.Window = time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
	if cfg.Lookup.BenchIterations <= 0 {
		cfg.Lookup.BenchIterations = 10000
	}
	if cfg.Ingest.TimestampLayout == "" {
		cfg.Ingest.TimestampLayout = time.DateTime
	}

	GlobalConfig = &cfg

	return &cfg, nil
}

// MustLoadConfig 加载配置，失败则 panic
func MustLoadConfig(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("加载配置失败: %v", err))
	}
	return cfg
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	if GlobalConfig == nil {
		panic("配置未初始化，请先调用 LoadConfig")
	}
	return GlobalConfig
}

// PrintConfig 打印当前配置（隐藏敏感信息）
func PrintConfig() {
	if GlobalConfig == nil {
		return
	}
	log.Printf("当前配置:")
	log.Printf("  服务器: %s (模式: %s)", GlobalConfig.Server.Port, GlobalConfig.Server.Mode)
	if GlobalConfig.Database.Driver == "sqlite" {
		log.Printf("  数据库: sqlite %s", GlobalConfig.Database.Path)
	} else {
		log.Printf("  数据库: %s %s@%s:%s/%s",
			GlobalConfig.Database.Driver,
			GlobalConfig.Database.Username,
			GlobalConfig.Database.Host,
			GlobalConfig.Database.Port,
			GlobalConfig.Database.DBName)
	}
	for _, c := range GlobalConfig.Auth.Clients {
		log.Printf("  客户端: %s (token: %s)", c.Name, MaskSecret(c.Token))
	}
	log.Printf("  查找策略: %s", GlobalConfig.Lookup.Strategy)
	log.Printf("  邮件服务: %v", GlobalConfig.Email.Enabled)
}

// MaskSecret 只保留前 4 位
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}

// SafeErrorMessage 生产环境下不向客户端暴露内部错误详情，避免信息泄露
// release 模式返回 fallback；其他模式（或配置未加载）返回 err.Error()
func SafeErrorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if GlobalConfig != nil && GlobalConfig.Server.Mode == "release" {
		return fallback
	}
	return err.Error()
}
