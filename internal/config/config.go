// 包 config：服务配置，来自环境变量（可由 .env 提供）与标签参数 YAML 文件
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"globe-api/internal/logger"
)

// 文档注释：服务运行参数
// 背景：全部来自环境变量，缺省值适合本地开发；进程启动时读取一次。
// 约束：数值解析失败时回退到缺省值，不中断启动。
type Config struct {
	Addr    string
	APIBase string
	DataDir string

	LabelsConfig string // 标签参数 YAML，空表示使用默认值

	CellSizeDeg float64       // 命中判定网格边长（度）
	CacheSize   int           // 进程内命中结果缓存条数，<= 0 关闭
	CacheTTL    time.Duration // 进程内与 Redis 缓存的过期时间
	ApproxKm    float64       // /country 近似兜底的最大距离

	SessionCap int           // 标签会话上限
	SessionTTL time.Duration // 标签会话空闲过期时间

	PGEnable bool
	MMDBPath string
	XDBPath  string
	IPDBPath string
	IPDBLang string
	AMapKey  string // 高德 Web 服务密钥，空表示不启用在线 IP 定位

	TLSEnable bool
	TLSCert   string
	TLSKey    string

	RateLimitRPS int // <= 0 关闭限流
}

// Load 依次加载 .env 与 data/env/.env（已存在的环境变量优先），再读取配置
func Load() Config {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	return FromEnv()
}

// FromEnv 只读取当前进程环境变量
func FromEnv() Config {
	c := Config{
		Addr:         getenv("ADDR", ":8080"),
		APIBase:      getenv("API_BASE", "/api"),
		DataDir:      getenv("DATA_DIR", "data"),
		LabelsConfig: os.Getenv("LABELS_CONFIG"),
		CellSizeDeg:  getenvFloat("HITTEST_CELL_DEG", 1),
		CacheSize:    getenvInt("HITTEST_CACHE_SIZE", 4096),
		CacheTTL:     getenvDuration("HITTEST_CACHE_TTL", time.Hour),
		ApproxKm:     getenvFloat("HITTEST_APPROX_KM", 300),
		SessionCap:   getenvInt("LABEL_SESSION_CAP", 1024),
		SessionTTL:   getenvDuration("LABEL_SESSION_TTL", 10*time.Minute),
		PGEnable:     os.Getenv("PG_ENABLE") == "true",
		MMDBPath:     os.Getenv("GEOIP_MMDB_PATH"),
		XDBPath:      os.Getenv("IP2REGION_V4_PATH"),
		IPDBPath:     os.Getenv("IPIP_PATH"),
		IPDBLang:     getenv("IPIP_LANG", "CN"),
		AMapKey:      os.Getenv("AMAP_SERVER_KEY"),
		TLSEnable:    os.Getenv("TLS_ENABLE") == "true",
		TLSCert:      getenv("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt")),
		TLSKey:       getenv("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key")),
		RateLimitRPS: getenvInt("RATE_LIMIT_RPS", 0),
	}
	logger.L().Debug("config_loaded", "addr", c.Addr, "api_base", c.APIBase, "data_dir", c.DataDir, "pg", c.PGEnable, "tls", c.TLSEnable)
	return c
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		logger.L().Warn("config_invalid", "key", key, "value", v)
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		logger.L().Warn("config_invalid", "key", key, "value", v)
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		logger.L().Warn("config_invalid", "key", key, "value", v)
	}
	return def
}
