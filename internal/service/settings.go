package service

import (
	"hire_assessment_backend/internal/config"
	"sync"
	"time"
)

// AssessmentSettings 可热更新的测评参数
type AssessmentSettings struct {
	mu  sync.RWMutex
	cfg config.AssessmentConfig
}

func NewAssessmentSettings(cfg config.AssessmentConfig) *AssessmentSettings {
	return &AssessmentSettings{cfg: normalizeAssessmentConfig(cfg)}
}

// Apply 配置热更新回调
func (s *AssessmentSettings) Apply(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = normalizeAssessmentConfig(cfg.Assessment)
	s.mu.Unlock()
}

func (s *AssessmentSettings) Get() config.AssessmentConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *AssessmentSettings) VerifyWindow() time.Duration {
	return time.Duration(s.Get().VerifyWindowMinutes) * time.Minute
}

func normalizeAssessmentConfig(c config.AssessmentConfig) config.AssessmentConfig {
	if c.TopPerformers <= 0 {
		c.TopPerformers = 5
	}
	if c.RecentActivity <= 0 {
		c.RecentActivity = 10
	}
	if c.RecentActivityDays <= 0 {
		c.RecentActivityDays = 7
	}
	if c.TrendMonths <= 0 {
		c.TrendMonths = 6
	}
	if c.ShortlistThreshold <= 0 {
		c.ShortlistThreshold = 70
	}
	if c.VerifyWindowMinutes <= 0 {
		c.VerifyWindowMinutes = 15
	}
	if c.DefaultDurationMins <= 0 {
		c.DefaultDurationMins = 60
	}
	if c.MaxGeneratedQuestion <= 0 {
		c.MaxGeneratedQuestion = 50
	}
	if c.MaxRecordingSizeMB <= 0 {
		c.MaxRecordingSizeMB = 500
	}
	return c
}
