package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string

	// PostgresDSN 为空时使用进程内存储（重启即丢失），便于本地试用
	PostgresDSN string
	// RedisAddr 为空时不缓存最近一次快讯快照
	RedisAddr string

	CronSpec     string
	FetchTimeout time.Duration
	ProxyBase    string
	Timezone     string

	// RefreshPartial 为 true 时单个源失败不影响其它源的结果；默认任一源失败整轮作废
	RefreshPartial bool
	// InteractionGC 为 true 时每轮刷新后清理不在当前快讯中的互动记录
	InteractionGC bool

	SourcesFile string
	Sources     []SourceConfig

	BasicAuthUser string
	BasicAuthPass string

	// WebRoot 前端构建产物目录，为空时只提供 API
	WebRoot string
}

func Load() *Config {
	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:        getEnv("APP_PORT", "9000"),
		PostgresDSN:    getEnv("POSTGRES_DSN", ""),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		CronSpec:       getEnv("CRON_SPEC", "*/5 * * * *"),
		FetchTimeout:   getDuration("FETCH_TIMEOUT", 15*time.Second),
		ProxyBase:      getEnv("PROXY_BASE", ""),
		Timezone:       getEnv("TIMEZONE", "Asia/Jerusalem"),
		RefreshPartial: getBool("REFRESH_PARTIAL", false),
		InteractionGC:  getBool("INTERACTION_GC", false),
		SourcesFile:    getEnv("SOURCES_FILE", ""),
		BasicAuthUser:  getEnv("APP_BASIC_USER", ""),
		BasicAuthPass:  getEnv("APP_BASIC_PASS", ""),
		WebRoot:        getEnv("WEB_ROOT", ""),
	}

	if cfg.SourcesFile != "" {
		sources, err := LoadSources(cfg.SourcesFile)
		if err != nil {
			log.Printf("warn: load sources file %s: %v, using built-in sources", cfg.SourcesFile, err)
		} else {
			cfg.Sources = sources
		}
	}

	log.Printf("config loaded: port=%s cron=%s timeout=%s partial=%v", cfg.AppPort, cfg.CronSpec, cfg.FetchTimeout, cfg.RefreshPartial)
	return cfg
}

// Location 返回快讯时间使用的时区，无法加载时退回固定 UTC+2
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.FixedZone("IST", 2*60*60)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("warn: invalid %s=%q, using %v", key, v, def)
		return def
	}
	return b
}

// getDuration 支持 "15s" 这类写法，也接受纯数字毫秒
func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	log.Printf("warn: invalid %s=%q, using %s", key, v, def)
	return def
}
