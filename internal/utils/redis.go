package utils

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"globe-api/internal/logger"
	"globe-api/internal/metrics"
)

// OpenRedis：使用地址与密码打开 Redis 客户端
// 背景：保留直接传入参数的能力，用于测试与手工注入场景
func OpenRedis(addr, pass string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass})
}

// OpenRedisFromEnv：从环境变量打开 Redis 客户端，支持 REDIS_DB 选择
// 约束：REDIS_ENABLE=false 时返回 nil（命中判定缓存退回进程内 LRU）；REDIS_DB 非法时回退到 0
func OpenRedisFromEnv() *redis.Client {
	if getenv("REDIS_ENABLE", "true") == "false" {
		return nil
	}
	addr := getenv("REDIS_HOST", "127.0.0.1") + ":" + getenv("REDIS_PORT", "6379")
	db := getenvInt("REDIS_DB", 0)
	if db < 0 {
		db = 0
	}
	logger.L().Debug("redis_env", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: getenv("REDIS_PASS", ""), DB: db})
}

// 单次格子缓存读写的超时，Redis 不可用时不拖慢命中判定
const redisCellTimeout = 200 * time.Millisecond

// 文档注释：基于 Redis 的格子候选缓存（实现 revgeo.CellStore）
// 背景：多实例共享同一份格子候选，值为 JSON 数组形式的要素下标。
// 约束：读写失败只记指标与调试日志，按未命中处理。
type RedisCells struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRedisCells(rc *redis.Client, ttl time.Duration) *RedisCells {
	if rc == nil {
		return nil
	}
	return &RedisCells{rc: rc, ttl: ttl}
}

func (c *RedisCells) Get(key string) ([]int, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisCellTimeout)
	defer cancel()
	b, err := c.rc.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			metrics.CacheErrorsTotal.WithLabelValues("redis").Inc()
			logger.L().Debug("redis_cell_get_error", "key", key, "err", err)
		}
		return nil, false
	}
	var ids []int
	if err := json.Unmarshal(b, &ids); err != nil {
		return nil, false
	}
	return ids, true
}

func (c *RedisCells) Set(key string, ids []int) {
	b, err := json.Marshal(ids)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisCellTimeout)
	defer cancel()
	if err := c.rc.Set(ctx, key, b, c.ttl).Err(); err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("redis").Inc()
		logger.L().Debug("redis_cell_set_error", "key", key, "err", err)
	}
}
