package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Admission AdmissionConfig `mapstructure:"admission"`
	Documents DocumentsConfig `mapstructure:"documents"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port    int        `mapstructure:"port"`
	BaseURL string     `mapstructure:"base_url"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置（支付幂等锁、限流）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
// Token 由外部认证服务签发，本服务只负责校验
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AdmissionConfig 录取与学费规则配置
type AdmissionConfig struct {
	EarlyPaymentWindowDays      int    `mapstructure:"early_payment_window_days"`
	EarlyPaymentDiscountPercent string `mapstructure:"early_payment_discount_percent"` // 十进制字符串，避免浮点误差
	DepositPercent              string `mapstructure:"deposit_percent"`
	OfferResponseDays           int    `mapstructure:"offer_response_days"`
	Currency                    string `mapstructure:"currency"`
	InstitutionalEmailDomain    string `mapstructure:"institutional_email_domain"`
	// FeeTable 覆盖默认学费表：degree_level → fee_category → 金额
	FeeTable map[string]map[string]string `mapstructure:"fee_table"`
	// SchoolCategories 覆盖默认学院 → 收费类别映射
	SchoolCategories map[string]string `mapstructure:"school_categories"`
}

// DocumentsConfig 文档/通知网关配置
type DocumentsConfig struct {
	ServiceURL    string        `mapstructure:"service_url"`     // 文档渲染服务地址，为空时直接使用规范地址
	PublicBaseURL string        `mapstructure:"public_base_url"` // 录取通知书的规范访问地址前缀
	Timeout       time.Duration `mapstructure:"timeout"`
}

// PaymentConfig 支付网关配置
type PaymentConfig struct {
	MidtransServerKey  string        `mapstructure:"midtrans_server_key"` // 为空时停用在线刷卡
	Production         bool          `mapstructure:"production"`
	SettlementCurrency string        `mapstructure:"settlement_currency"` // 网关结算币种
	FXRate             string        `mapstructure:"fx_rate"`             // 1 单位通知币种折合结算币种
	LockTTL            time.Duration `mapstructure:"lock_ttl"`            // 同一幂等键的分布式锁时长
	RateLimit          int           `mapstructure:"rate_limit"`          // 每分钟每 IP 缴费请求上限
}

// WorkerConfig 后台补偿任务配置
type WorkerConfig struct {
	RetrySpec   string `mapstructure:"retry_spec"`
	MaxAttempts int    `mapstructure:"max_attempts"`
	BatchSize   int    `mapstructure:"batch_size"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "admitflow")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Europe/Berlin")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.issuer", "admitflow")
	v.SetDefault("auth.access_token_ttl", "15m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("admission.early_payment_window_days", 14)
	v.SetDefault("admission.early_payment_discount_percent", "25")
	v.SetDefault("admission.deposit_percent", "50")
	v.SetDefault("admission.offer_response_days", 30)
	v.SetDefault("admission.currency", "EUR")
	v.SetDefault("admission.institutional_email_domain", "student.admitflow.eu")

	v.SetDefault("documents.service_url", "")
	v.SetDefault("documents.public_base_url", "http://localhost:8080/documents")
	v.SetDefault("documents.timeout", "10s")

	v.SetDefault("payment.production", false)
	v.SetDefault("payment.settlement_currency", "IDR")
	v.SetDefault("payment.fx_rate", "17500")
	v.SetDefault("payment.lock_ttl", "2m")
	v.SetDefault("payment.rate_limit", 10)

	v.SetDefault("worker.retry_spec", "@every 5m")
	v.SetDefault("worker.max_attempts", 5)
	v.SetDefault("worker.batch_size", 50)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("ADMIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Admission.EarlyPaymentWindowDays < 0 {
		return fmt.Errorf("配置校验失败: admission.early_payment_window_days 不能为负数")
	}
	if c.Admission.OfferResponseDays <= 0 {
		return fmt.Errorf("配置校验失败: admission.offer_response_days 必须大于 0")
	}
	if c.Admission.Currency == "" {
		return fmt.Errorf("配置校验失败: admission.currency 不能为空")
	}
	return nil
}
