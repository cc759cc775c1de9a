package middleware

import (
	"net/http"
	"sync"
	"time"

	"globe-api/internal/logger"
	"globe-api/internal/metrics"
)

// 文档注释：令牌桶限流中间件（每秒）
// 背景：标签请求按帧到达，单个异常客户端即可压满筛选循环；入口按秒限速保护命中判定与标签引擎。
// 约束：简化实现，不做队列排队，仅丢弃并返回 429；令牌在秒边界整体补满。
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	mu       sync.Mutex
	now      func() int64
}

func NewTokenBucket(perSecond int) *TokenBucket {
	tb := &TokenBucket{capacity: perSecond, tokens: perSecond, now: func() int64 { return time.Now().Unix() }}
	tb.lastSec = tb.now()
	return tb
}

func (tb *TokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	nowSec := tb.now()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wrap 按每秒 rps 个请求限流；rps <= 0 时原样返回
func Wrap(next http.Handler, rps int) http.Handler {
	if rps <= 0 {
		return next
	}
	return Limit(next, NewTokenBucket(rps))
}

func Limit(next http.Handler, tb *TokenBucket) http.Handler {
	logger.L().Debug("rate_limit_enabled", "rps", tb.capacity)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tb.allow() {
			metrics.RateLimitedTotal.Inc()
			w.Header().Set("retry-after", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
