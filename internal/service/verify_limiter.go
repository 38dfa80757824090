package service

import (
	"context"
	"fmt"
	"hire_assessment_backend/internal/util"
	"hire_assessment_backend/pkg/logger"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// VerifyLimiter 会话口令错误次数限制，按 (资源, 客户端) 计数
// 启用 redis 时多实例共享计数，否则退化为进程内计数
type VerifyLimiter struct {
	Redis    *redis.Client
	Settings *AssessmentSettings

	mu    sync.Mutex
	local map[string]*failureCount
	now   func() time.Time
}

type failureCount struct {
	n         int
	expiresAt time.Time
}

func NewVerifyLimiter(rdb *redis.Client, settings *AssessmentSettings) *VerifyLimiter {
	return &VerifyLimiter{
		Redis:    rdb,
		Settings: settings,
		local:    make(map[string]*failureCount),
		now:      time.Now,
	}
}

func verifyKey(scope, resourceID, client string) string {
	return fmt.Sprintf("session_verify:%s:%s:%s", scope, resourceID, client)
}

func (l *VerifyLimiter) limit() int {
	if l.Settings == nil {
		return 0
	}
	return l.Settings.Get().VerifyAttemptLimit
}

// Allow 超过阈值时返回 TooManyRequests
func (l *VerifyLimiter) Allow(ctx context.Context, scope, resourceID, client string) error {
	if l == nil {
		return nil
	}
	limit := l.limit()
	if limit <= 0 {
		return nil
	}

	key := verifyKey(scope, resourceID, client)
	var count int
	if l.Redis != nil {
		n, err := l.Redis.Get(ctx, key).Int()
		if err != nil && err != redis.Nil {
			logger.Log.Warn("verify limiter unavailable", zap.Error(err))
			return nil
		}
		count = n
	} else {
		count = l.localCount(key)
	}
	if count >= limit {
		return util.NewTooManyRequestsError("Too many incorrect session password attempts, try again later")
	}
	return nil
}

// RecordFailure 记录一次失败，窗口期内累计
func (l *VerifyLimiter) RecordFailure(ctx context.Context, scope, resourceID, client string) {
	if l == nil || l.limit() <= 0 {
		return
	}
	key := verifyKey(scope, resourceID, client)
	if l.Redis == nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		now := l.now()
		entry, ok := l.local[key]
		if !ok || !now.Before(entry.expiresAt) {
			entry = &failureCount{expiresAt: now.Add(l.window())}
			l.local[key] = entry
		}
		entry.n++
		return
	}

	pipe := l.Redis.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window())
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Log.Warn("verify limiter record failed", zap.Error(err))
	}
}

// Reset 校验成功后清零
func (l *VerifyLimiter) Reset(ctx context.Context, scope, resourceID, client string) {
	if l == nil {
		return
	}
	key := verifyKey(scope, resourceID, client)
	if l.Redis == nil {
		l.mu.Lock()
		delete(l.local, key)
		l.mu.Unlock()
		return
	}
	l.Redis.Del(ctx, key)
}

func (l *VerifyLimiter) localCount(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.local[key]
	if !ok {
		return 0
	}
	if !l.now().Before(entry.expiresAt) {
		delete(l.local, key)
		return 0
	}
	return entry.n
}

func (l *VerifyLimiter) window() time.Duration {
	if l.Settings == nil {
		return 15 * time.Minute
	}
	return l.Settings.VerifyWindow()
}
