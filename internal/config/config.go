package config

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Comment   CommentConfig   `mapstructure:"comment"`
	Markdown  MarkdownConfig  `mapstructure:"markdown"`
	Snowflake SnowflakeConfig `mapstructure:"snowflake"`
	Cron      CronConfig      `mapstructure:"cron"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name           string        `mapstructure:"name"`
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Cors           CorsConfig    `mapstructure:"cors"`
}

// CorsConfig 跨域配置
type CorsConfig struct {
	AllowOrigins     []string `mapstructure:"allow_origins"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
	ExposedHeaders   []string `mapstructure:"expose_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	SecretKey           string `mapstructure:"secret_key"`
	AccessExpireSeconds int    `mapstructure:"access_expire_seconds"`
	BufferSeconds       int    `mapstructure:"buffer_seconds"`
	Issuer              string `mapstructure:"issuer"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql | postgres | sqlite，sqlite 时 database 为文件路径
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Charset      string `mapstructure:"charset"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

// DSN 获取数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			c.Host, c.Port, c.Username, c.Password, c.Database, sslMode)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// Addr 获取Redis地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
	Stdout     bool   `mapstructure:"stdout"`
}

// CommentConfig 评论配置
type CommentConfig struct {
	// Limits 各提交入口的内容字节上限，comment 为评论发布与编辑，article 为文章下的顶层评论
	Limits         map[string]int `mapstructure:"limits"`
	Cooldown       time.Duration  `mapstructure:"cooldown"`
	EditRetries    uint           `mapstructure:"edit_retries"`
	SensitiveWords string         `mapstructure:"sensitive_words"` // 敏感词词典路径，为空则不过滤
	CountCacheTTL  time.Duration  `mapstructure:"count_cache_ttl"`
}

// MarkdownConfig Markdown渲染配置
type MarkdownConfig struct {
	Engine string `mapstructure:"engine"` // blackfriday | goldmark
}

// SnowflakeConfig 雪花ID配置
type SnowflakeConfig struct {
	StartTime string `mapstructure:"start_time"`
	MachineID int64  `mapstructure:"machine_id"`
}

// CronConfig 定时任务配置
type CronConfig struct {
	Timezone    string `mapstructure:"timezone"`
	RecountSpec string `mapstructure:"recount_spec"`
}

var (
	// GlobalConfig 全局配置实例
	GlobalConfig *Config
	// 配置Viper实例
	viperInstance *viper.Viper

	listenersMu sync.Mutex
	listeners   []func(*Config)
)

// Init 初始化配置
func Init(configPath string) error {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := newViper()
	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("读取配置文件失败: %v", err)
	}

	config, err := decode(v)
	if err != nil {
		return err
	}

	GlobalConfig = config
	viperInstance = v
	return nil
}

// Watch 监听配置文件变化，重新解析后通知已注册的监听者
func Watch() {
	if viperInstance == nil {
		return
	}
	v := viperInstance
	v.OnConfigChange(func(e fsnotify.Event) {
		config, err := decode(v)
		if err != nil {
			log.Printf("重新加载配置失败: %v", err)
			return
		}
		GlobalConfig = config

		listenersMu.Lock()
		fns := append([]func(*Config){}, listeners...)
		listenersMu.Unlock()
		for _, fn := range fns {
			fn(config)
		}
	})
	v.WatchConfig()
}

// OnChange 注册配置变更回调
func OnChange(fn func(*Config)) {
	listenersMu.Lock()
	defer listenersMu.Unlock()
	listeners = append(listeners, fn)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.mode", "release")
	v.SetDefault("app.request_timeout", "10s")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("comment.limits.comment", 5000)
	v.SetDefault("comment.limits.article", 10000)
	v.SetDefault("comment.cooldown", "10s")
	v.SetDefault("comment.edit_retries", 5)
	v.SetDefault("comment.count_cache_ttl", "30m")
	v.SetDefault("markdown.engine", "blackfriday")
	v.SetDefault("snowflake.start_time", "2024-01-01")
	v.SetDefault("snowflake.machine_id", 1)
	v.SetDefault("cron.timezone", "UTC")
	v.SetDefault("cron.recount_spec", "0 */10 * * * *")
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}
	return &config, nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	return GlobalConfig
}
