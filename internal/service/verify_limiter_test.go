package service

import (
	"context"
	"hire_assessment_backend/internal/config"
	"hire_assessment_backend/internal/util"
	"testing"
	"time"
)

func TestVerifyLimiterLocal(t *testing.T) {
	clock := newTestClock()
	l := NewVerifyLimiter(nil, testSettings(config.AssessmentConfig{VerifyAttemptLimit: 2, VerifyWindowMinutes: 10}))
	l.now = clock.Now
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Allow(ctx, "attempt", "a1", testClient); err != nil {
			t.Fatalf("Allow #%d: %v", i, err)
		}
		l.RecordFailure(ctx, "attempt", "a1", testClient)
	}
	requireKind(t, l.Allow(ctx, "attempt", "a1", testClient), util.KindTooManyRequests)

	if err := l.Allow(ctx, "avatar", "a1", testClient); err != nil {
		t.Fatalf("scopes share a counter: %v", err)
	}

	l.Reset(ctx, "attempt", "a1", testClient)
	if err := l.Allow(ctx, "attempt", "a1", testClient); err != nil {
		t.Fatalf("Allow after Reset: %v", err)
	}

	l.RecordFailure(ctx, "attempt", "a1", testClient)
	l.RecordFailure(ctx, "attempt", "a1", testClient)
	clock.Advance(11 * time.Minute)
	if err := l.Allow(ctx, "attempt", "a1", testClient); err != nil {
		t.Fatalf("Allow after window: %v", err)
	}
}

func TestVerifyLimiterDisabled(t *testing.T) {
	l := NewVerifyLimiter(nil, testSettings(config.AssessmentConfig{}))
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		l.RecordFailure(ctx, "attempt", "a1", testClient)
	}
	if err := l.Allow(ctx, "attempt", "a1", testClient); err != nil {
		t.Fatalf("limit 0 must not block: %v", err)
	}
	var nilLimiter *VerifyLimiter
	if err := nilLimiter.Allow(ctx, "attempt", "a1", testClient); err != nil {
		t.Fatalf("nil limiter: %v", err)
	}
}
