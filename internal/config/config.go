package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// Config 保存应用程序配置。
type Config struct {
	App     AppConfig     `json:"app"`
	Walk    WalkConfig    `json:"walk"`
	MySQL   MySQLConfig   `json:"mysql"`
	Redis   RedisConfig   `json:"redis"`
	Browser BrowserConfig `json:"browser"`
	Output  OutputConfig  `json:"output"`
	Email   EmailConfig   `json:"email"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env            string        `json:"env"`              // 运行环境: local / prod
	LogLevel       string        `json:"log_level"`        // 日志级别: debug / info / warn / error
	MetricsAddr    string        `json:"metrics_addr"`     // Prometheus 指标监听地址
	WorkerPoolSize int           `json:"worker_pool_size"` // 抓取任务组 worker 数
	QueueCapacity  int           `json:"queue_capacity"`   // 抓取任务组容量
	RateLimit      float64       `json:"rate_limit"`       // 主动抓取限流速率（token/s）
	RateBurst      int           `json:"rate_burst"`       // 主动抓取限流桶容量
	DedupWindow    int           `json:"dedup_window"`     // 工作项载荷去重窗口（秒）
	PopTimeout     time.Duration `json:"pop_timeout"`      // 工作项队列轮询超时（如 "30s"）
	RunOnce        bool          `json:"run_once"`         // 处理一个工作项后退出
}

// WalkConfig 遍历行为配置。
type WalkConfig struct {
	WalkTimeout     time.Duration `json:"walk_timeout"`      // 单次遍历总超时
	MaxScrollPasses int           `json:"max_scroll_passes"` // 单批次滚动扫描上限
	ScrollMinWaitMs int           `json:"scroll_min_wait_ms"`
	ScrollMaxWaitMs int           `json:"scroll_max_wait_ms"`
	MinAssetWidth   int           `json:"min_asset_width"` // 被动捕获的最小资源宽度
	AssetDir        string        `json:"asset_dir"`       // 捕获资源的落盘目录
}

// MySQLConfig MySQL 数据库配置。
type MySQLConfig struct {
	DSN string `json:"dsn"` // 数据库连接字符串，为空禁用持久化
}

// RedisConfig Redis 队列配置。
type RedisConfig struct {
	Addr     string `json:"addr"`     // Redis 地址 (host:port)
	Password string `json:"password"` // Redis 密码
}

// BrowserConfig 浏览器配置。
type BrowserConfig struct {
	BinPath  string `json:"bin_path"`  // 浏览器可执行文件路径
	ProxyURL string `json:"proxy_url"` // 代理服务器 URL
	Headless bool   `json:"headless"`  // 是否使用无头模式
	BaseURL  string `json:"base_url"`  // 目标站点根地址
}

// OutputConfig 结果输出配置。
type OutputConfig struct {
	Dir string `json:"dir"` // xlsx 输出目录
}

// EmailConfig 邮件通知配置。
type EmailConfig struct {
	SMTPHost  string `json:"smtp_host"`
	SMTPPort  int    `json:"smtp_port"`
	SMTPUser  string `json:"smtp_user"`
	SMTPPass  string `json:"smtp_pass"`
	FromEmail string `json:"from_email"`
	ToEmail   string `json:"to_email"` // 为空不发送通知
}

// Load 从 JSON 文件加载配置。
//
// 它会尝试读取 configs/config.json 文件，如果不存在则使用默认值。
//
// 参数:
//
//	configPath: 配置文件路径（如果为空则使用默认路径 "configs/config.json")
//
// 返回值:
//
//	*Config: 加载完成的配置对象
//	error: 加载失败返回错误
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	// 如果配置文件不存在，使用默认配置
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		// 即使没有配置文件，也允许环境变量覆盖默认值
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	// 应用默认值（对于未设置的字段）
	applyDefaults(cfg)

	// 环境变量优先覆盖配置
	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadOrDefault 加载配置，如果失败则返回默认配置（不报错）。
func LoadOrDefault(configPath ...string) *Config {
	cfg, err := Load(configPath...)
	if err != nil {
		fallback := getDefaultConfig()
		applyEnvOverrides(fallback)
		return fallback
	}
	return cfg
}

// Save 保存配置到 JSON 文件。
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:            "local",
			LogLevel:       "info",
			MetricsAddr:    ":2112",
			WorkerPoolSize: 8,
			QueueCapacity:  256,
			RateLimit:      3,
			RateBurst:      5,
			DedupWindow:    3600,
			PopTimeout:     30 * time.Second,
			RunOnce:        false,
		},
		Walk: WalkConfig{
			WalkTimeout:     20 * time.Minute,
			MaxScrollPasses: 40,
			ScrollMinWaitMs: 400,
			ScrollMaxWaitMs: 1200,
			MinAssetWidth:   400,
			AssetDir:        "output/assets",
		},
		MySQL: MySQLConfig{
			DSN: "",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
		},
		Browser: BrowserConfig{
			BinPath:  "",
			ProxyURL: "",
			Headless: true,
			BaseURL:  "https://www.reuters.com",
		},
		Output: OutputConfig{
			Dir: "output",
		},
		Email: EmailConfig{
			SMTPHost:  "smtp.gmail.com",
			SMTPPort:  587,
			SMTPUser:  "",
			SMTPPass:  "",
			FromEmail: "",
			ToEmail:   "",
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.MetricsAddr == "" {
		cfg.App.MetricsAddr = defaults.App.MetricsAddr
	}
	if cfg.App.WorkerPoolSize == 0 {
		cfg.App.WorkerPoolSize = defaults.App.WorkerPoolSize
	}
	if cfg.App.QueueCapacity == 0 {
		cfg.App.QueueCapacity = defaults.App.QueueCapacity
	}
	if cfg.App.RateLimit == 0 {
		cfg.App.RateLimit = defaults.App.RateLimit
	}
	if cfg.App.RateBurst == 0 {
		cfg.App.RateBurst = defaults.App.RateBurst
	}
	if cfg.App.DedupWindow == 0 {
		cfg.App.DedupWindow = defaults.App.DedupWindow
	}
	if cfg.App.PopTimeout == 0 {
		cfg.App.PopTimeout = defaults.App.PopTimeout
	}
	if cfg.Walk.WalkTimeout == 0 {
		cfg.Walk.WalkTimeout = defaults.Walk.WalkTimeout
	}
	if cfg.Walk.MaxScrollPasses == 0 {
		cfg.Walk.MaxScrollPasses = defaults.Walk.MaxScrollPasses
	}
	if cfg.Walk.ScrollMinWaitMs == 0 {
		cfg.Walk.ScrollMinWaitMs = defaults.Walk.ScrollMinWaitMs
	}
	if cfg.Walk.ScrollMaxWaitMs == 0 {
		cfg.Walk.ScrollMaxWaitMs = defaults.Walk.ScrollMaxWaitMs
	}
	if cfg.Walk.MinAssetWidth == 0 {
		cfg.Walk.MinAssetWidth = defaults.Walk.MinAssetWidth
	}
	if cfg.Walk.AssetDir == "" {
		cfg.Walk.AssetDir = defaults.Walk.AssetDir
	}
	if cfg.Browser.BaseURL == "" {
		cfg.Browser.BaseURL = defaults.Browser.BaseURL
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = defaults.Output.Dir
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("db_host", "DB_HOST")
	_ = viper.BindEnv("db_password", "DB_PASSWORD")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("smtp_pass", "SMTP_PASS")
	_ = viper.BindEnv("chrome_bin", "CHROME_BIN")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_METRICS_ADDR"); v != "" {
		cfg.App.MetricsAddr = v
	}
	if v := os.Getenv("APP_WORKER_POOL_SIZE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.WorkerPoolSize = i
		}
	}
	if v := os.Getenv("APP_QUEUE_CAPACITY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.QueueCapacity = i
		}
	}
	if v := os.Getenv("APP_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.RateLimit = f
		}
	}
	if v := os.Getenv("APP_RATE_BURST"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.RateBurst = i
		}
	}
	if v := os.Getenv("APP_DEDUP_WINDOW"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.DedupWindow = i
		}
	}
	if v := os.Getenv("APP_POP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.PopTimeout = d
		}
	}
	if v := os.Getenv("APP_RUN_ONCE"); v != "" {
		cfg.App.RunOnce = v == "true" || v == "1"
	}

	if v := os.Getenv("WALK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Walk.WalkTimeout = d
		}
	}
	if v := os.Getenv("WALK_MAX_SCROLL_PASSES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Walk.MaxScrollPasses = i
		}
	}
	if v := os.Getenv("WALK_MIN_ASSET_WIDTH"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Walk.MinAssetWidth = i
		}
	}
	if v := os.Getenv("WALK_ASSET_DIR"); v != "" {
		cfg.Walk.AssetDir = v
	}

	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.MySQL.DSN = v
	} else if hasAnyEnv("DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME") || viper.GetString("db_host") != "" || viper.GetString("db_password") != "" {
		parsed := parseMySQLDSN(cfg.MySQL.DSN)
		if v := viper.GetString("db_host"); v != "" {
			host := v
			port := getenvDefault("DB_PORT", parsed.Addr, "3306")
			parsed.Addr = host + ":" + port
		} else if v := os.Getenv("DB_PORT"); v != "" {
			host := parsed.Addr
			if strings.Contains(host, ":") {
				host = strings.Split(host, ":")[0]
			}
			parsed.Addr = host + ":" + v
		}
		if v := os.Getenv("DB_USER"); v != "" {
			parsed.User = v
		}
		if v := viper.GetString("db_password"); v != "" {
			parsed.Passwd = v
		}
		if v := os.Getenv("DB_NAME"); v != "" {
			parsed.DBName = v
		}
		cfg.MySQL.DSN = parsed.FormatDSN()
	}

	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}

	if v := viper.GetString("chrome_bin"); v != "" {
		cfg.Browser.BinPath = v
	}
	if v := os.Getenv("HTTP_PROXY"); v != "" {
		cfg.Browser.ProxyURL = v
	} else if v := os.Getenv("BROWSER_PROXY_URL"); v != "" {
		cfg.Browser.ProxyURL = v
	}
	if v := os.Getenv("BROWSER_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Browser.Headless = b
		}
	}
	if v := os.Getenv("BROWSER_BASE_URL"); v != "" {
		cfg.Browser.BaseURL = v
	}

	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = i
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.Email.SMTPUser = v
	}
	if v := viper.GetString("smtp_pass"); v != "" {
		cfg.Email.SMTPPass = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.Email.FromEmail = v
	}
	if v := os.Getenv("SMTP_TO"); v != "" {
		cfg.Email.ToEmail = v
	}
}

func hasAnyEnv(keys ...string) bool {
	for _, key := range keys {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func getenvDefault(envKey, fallbackAddr, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if fallbackAddr == "" {
		return defaultValue
	}
	if strings.Contains(fallbackAddr, ":") {
		parts := strings.Split(fallbackAddr, ":")
		if len(parts) == 2 && parts[1] != "" {
			return parts[1]
		}
	}
	return defaultValue
}

func parseMySQLDSN(dsn string) *mysql.Config {
	if dsn == "" {
		return &mysql.Config{
			User:   "root",
			Passwd: "",
			Net:    "tcp",
			Addr:   "localhost:3306",
			DBName: "newswalker",
			Params: map[string]string{
				"parseTime": "true",
				"loc":       "Local",
			},
		}
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return &mysql.Config{
			User:   "root",
			Passwd: "",
			Net:    "tcp",
			Addr:   "localhost:3306",
			DBName: "newswalker",
			Params: map[string]string{
				"parseTime": "true",
				"loc":       "Local",
			},
		}
	}
	return parsed
}

// UnmarshalJSON 自定义 JSON 解析，支持 Duration 字符串。
func (a *AppConfig) UnmarshalJSON(data []byte) error {
	type Alias AppConfig
	aux := &struct {
		PopTimeout string `json:"pop_timeout"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.PopTimeout != "" {
		duration, err := time.ParseDuration(aux.PopTimeout)
		if err != nil {
			return fmt.Errorf("invalid pop_timeout format: %w", err)
		}
		a.PopTimeout = duration
	}

	return nil
}

// MarshalJSON 自定义 JSON 序列化，将 Duration 转为字符串。
func (a AppConfig) MarshalJSON() ([]byte, error) {
	type Alias AppConfig
	return json.Marshal(&struct {
		PopTimeout string `json:"pop_timeout"`
		*Alias
	}{
		PopTimeout: a.PopTimeout.String(),
		Alias:      (*Alias)(&a),
	})
}

// UnmarshalJSON 自定义 JSON 解析，支持 Duration 字符串。
func (w *WalkConfig) UnmarshalJSON(data []byte) error {
	type Alias WalkConfig
	aux := &struct {
		WalkTimeout string `json:"walk_timeout"`
		*Alias
	}{
		Alias: (*Alias)(w),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.WalkTimeout != "" {
		duration, err := time.ParseDuration(aux.WalkTimeout)
		if err != nil {
			return fmt.Errorf("invalid walk_timeout format: %w", err)
		}
		w.WalkTimeout = duration
	}

	return nil
}

// MarshalJSON 自定义 JSON 序列化，将 Duration 转为字符串。
func (w WalkConfig) MarshalJSON() ([]byte, error) {
	type Alias WalkConfig
	return json.Marshal(&struct {
		WalkTimeout string `json:"walk_timeout"`
		*Alias
	}{
		WalkTimeout: w.WalkTimeout.String(),
		Alias:       (*Alias)(&w),
	})
}
