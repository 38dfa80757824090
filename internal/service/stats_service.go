package service

import (
	"context"
	"encoding/json"
	"fmt"
	"hire_assessment_backend/internal/model"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/internal/util"
	"hire_assessment_backend/pkg/logger"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type StatsService struct {
	StageRepo     *repository.AssessmentStageRepository
	InterviewRepo *repository.InterviewRepository
	Redis         *redis.Client
	Settings      *AssessmentSettings
	now           func() time.Time
}

func NewStatsService(stageRepo *repository.AssessmentStageRepository, interviewRepo *repository.InterviewRepository,
	rdb *redis.Client, settings *AssessmentSettings) *StatsService {
	return &StatsService{
		StageRepo:     stageRepo,
		InterviewRepo: interviewRepo,
		Redis:         rdb,
		Settings:      settings,
		now:           time.Now,
	}
}

// StatsFilter 统计过滤条件
type StatsFilter struct {
	JobPostID     string     `form:"jobPostId"`
	InterviewerID *uint      `form:"interviewerId"`
	DateFrom      *time.Time `form:"-"`
	DateTo        *time.Time `form:"-"`
}

type StatsOverview struct {
	TotalStages     int     `json:"totalStages"`
	CompletedStages int     `json:"completedStages"`
	PendingStages   int     `json:"pendingStages"`
	TotalCandidates int     `json:"totalCandidates"`
	AverageScore    float64 `json:"averageScore"`
	CompletionRate  float64 `json:"completionRate"`
}

type TopPerformer struct {
	StageID       string          `json:"stageId"`
	ResumeID      string          `json:"resumeId"`
	CandidateName string          `json:"candidateName"`
	JobTitle      string          `json:"jobTitle"`
	Type          model.StageType `json:"type"`
	Score         float64         `json:"score"`
}

type ActivityItem struct {
	StageID       string            `json:"stageId"`
	CandidateName string            `json:"candidateName"`
	JobTitle      string            `json:"jobTitle"`
	Type          model.StageType   `json:"type"`
	Status        model.StageStatus `json:"status"`
	Score         *float64          `json:"score"`
	At            time.Time         `json:"at"` // 创建时间
	CompletedAt   *time.Time        `json:"completedAt,omitempty"`
}

type MonthlyTrend struct {
	Month        string  `json:"month"`
	Total        int     `json:"total"`
	Completed    int     `json:"completed"`
	AverageScore float64 `json:"averageScore"`
}

type TypeDistribution struct {
	Type         model.StageType `json:"type"`
	Count        int             `json:"count"`
	Percentage   float64         `json:"percentage"`
	AverageScore float64         `json:"averageScore"`
}

type AttemptRollup struct {
	Total             int                         `json:"total"`
	ByStatus          map[model.AttemptStatus]int `json:"byStatus"`
	AveragePercentage float64                     `json:"averagePercentage"`
}

type AssessmentStats struct {
	Overview         StatsOverview             `json:"overview"`
	StagesByType     map[model.StageType]int   `json:"stagesByType"`
	StagesByStatus   map[model.StageStatus]int `json:"stagesByStatus"`
	TopPerformers    []TopPerformer            `json:"topPerformers"`
	RecentActivity   []ActivityItem            `json:"recentActivity"`
	MonthlyTrends    []MonthlyTrend            `json:"monthlyTrends"`
	TypeDistribution []TypeDistribution        `json:"typeDistribution"`
	Attempts         AttemptRollup             `json:"attempts"`
	GeneratedAt      time.Time                 `json:"generatedAt"`
}

type AggregateOptions struct {
	Now         time.Time
	TopN        int
	RecentN     int
	RecentDays  int
	TrendMonths int
}

var (
	allStageTypes    = []model.StageType{model.StageMCQ, model.StageAvatar, model.StageManual}
	allStageStatuses = []model.StageStatus{model.StagePending, model.StageInProgress, model.StageCompleted, model.StageCancelled, model.StageNoShow}
	allAttemptStates = []model.AttemptStatus{model.AttemptInProgress, model.AttemptCompleted, model.AttemptSubmitted, model.AttemptExpired, model.AttemptTerminated}
)

// AggregateStages 纯函数汇总；输入为空时返回全零结构
func AggregateStages(stages []repository.StageSnapshot, attempts []repository.AttemptSnapshot, opts AggregateOptions) *AssessmentStats {
	stats := &AssessmentStats{
		StagesByType:     make(map[model.StageType]int, len(allStageTypes)),
		StagesByStatus:   make(map[model.StageStatus]int, len(allStageStatuses)),
		TopPerformers:    []TopPerformer{},
		RecentActivity:   []ActivityItem{},
		MonthlyTrends:    []MonthlyTrend{},
		TypeDistribution: []TypeDistribution{},
		GeneratedAt:      opts.Now,
	}
	for _, t := range allStageTypes {
		stats.StagesByType[t] = 0
	}
	for _, s := range allStageStatuses {
		stats.StagesByStatus[s] = 0
	}

	candidates := make(map[string]bool)
	typeScoreSum := make(map[model.StageType]float64)
	typeScoreCount := make(map[model.StageType]int)
	var scoreSum float64
	var scored int

	for _, st := range stages {
		stats.StagesByType[st.Type]++
		stats.StagesByStatus[st.Status]++
		if st.ResumeID != "" {
			candidates[st.ResumeID] = true
		}
		if st.Status == model.StageCompleted && st.ResultScore != nil {
			scoreSum += *st.ResultScore
			scored++
			typeScoreSum[st.Type] += *st.ResultScore
			typeScoreCount[st.Type]++
		}
	}

	total := len(stages)
	stats.Overview = StatsOverview{
		TotalStages:     total,
		CompletedStages: stats.StagesByStatus[model.StageCompleted],
		PendingStages:   stats.StagesByStatus[model.StagePending],
		TotalCandidates: len(candidates),
		CompletionRate:  util.Round2(util.Percentage(float64(stats.StagesByStatus[model.StageCompleted]), float64(total))),
	}
	if scored > 0 {
		stats.Overview.AverageScore = util.Round2(scoreSum / float64(scored))
	}

	stats.TopPerformers = topPerformers(stages, opts.TopN)
	stats.RecentActivity = recentActivity(stages, opts)
	stats.MonthlyTrends = monthlyTrends(stages, opts)

	for _, t := range allStageTypes {
		d := TypeDistribution{
			Type:       t,
			Count:      stats.StagesByType[t],
			Percentage: util.Round2(util.Percentage(float64(stats.StagesByType[t]), float64(total))),
		}
		if typeScoreCount[t] > 0 {
			d.AverageScore = util.Round2(typeScoreSum[t] / float64(typeScoreCount[t]))
		}
		stats.TypeDistribution = append(stats.TypeDistribution, d)
	}

	stats.Attempts = rollupAttempts(attempts)
	return stats
}

// topPerformers 按分数降序，同分保持输入顺序
func topPerformers(stages []repository.StageSnapshot, n int) []TopPerformer {
	list := make([]TopPerformer, 0)
	for _, st := range stages {
		if st.Status != model.StageCompleted || st.ResultScore == nil {
			continue
		}
		list = append(list, TopPerformer{
			StageID:       st.ID,
			ResumeID:      st.ResumeID,
			CandidateName: st.CandidateName,
			JobTitle:      st.JobTitle,
			Type:          st.Type,
			Score:         *st.ResultScore,
		})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Score > list[j].Score })
	if n > 0 && len(list) > n {
		list = list[:n]
	}
	return list
}

func recentActivity(stages []repository.StageSnapshot, opts AggregateOptions) []ActivityItem {
	cutoff := opts.Now.AddDate(0, 0, -opts.RecentDays)
	items := make([]ActivityItem, 0)
	for _, st := range stages {
		at := st.CreatedAt
		if at.Before(cutoff) || at.After(opts.Now) {
			continue
		}
		items = append(items, ActivityItem{
			StageID:       st.ID,
			CandidateName: st.CandidateName,
			JobTitle:      st.JobTitle,
			Type:          st.Type,
			Status:        st.Status,
			Score:         st.ResultScore,
			At:            at,
			CompletedAt:   st.CompletedAt,
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].At.After(items[j].At) })
	if opts.RecentN > 0 && len(items) > opts.RecentN {
		items = items[:opts.RecentN]
	}
	return items
}

// monthlyTrends 以当前月为终点的滚动窗口，没有数据的月份补零
func monthlyTrends(stages []repository.StageSnapshot, opts AggregateOptions) []MonthlyTrend {
	months := opts.TrendMonths
	if months <= 0 {
		return []MonthlyTrend{}
	}
	current := time.Date(opts.Now.Year(), opts.Now.Month(), 1, 0, 0, 0, 0, opts.Now.Location())

	trends := make([]MonthlyTrend, months)
	index := make(map[string]int, months)
	for i := 0; i < months; i++ {
		key := current.AddDate(0, i-months+1, 0).Format(util.MonthFormat)
		trends[i] = MonthlyTrend{Month: key}
		index[key] = i
	}

	sums := make([]float64, months)
	counts := make([]int, months)
	for _, st := range stages {
		i, ok := index[st.CreatedAt.In(opts.Now.Location()).Format(util.MonthFormat)]
		if !ok {
			continue
		}
		trends[i].Total++
		if st.Status == model.StageCompleted {
			trends[i].Completed++
			if st.ResultScore != nil {
				sums[i] += *st.ResultScore
				counts[i]++
			}
		}
	}
	for i := range trends {
		if counts[i] > 0 {
			trends[i].AverageScore = util.Round2(sums[i] / float64(counts[i]))
		}
	}
	return trends
}

func rollupAttempts(attempts []repository.AttemptSnapshot) AttemptRollup {
	rollup := AttemptRollup{ByStatus: make(map[model.AttemptStatus]int, len(allAttemptStates))}
	for _, s := range allAttemptStates {
		rollup.ByStatus[s] = 0
	}

	var sum float64
	var n int
	for _, a := range attempts {
		rollup.Total++
		rollup.ByStatus[a.Status]++
		if a.Status == model.AttemptCompleted && a.MaxScore > 0 {
			sum += util.Percentage(float64(a.Score), float64(a.MaxScore))
			n++
		}
	}
	if n > 0 {
		rollup.AveragePercentage = util.Round2(sum / float64(n))
	}
	return rollup
}

// Stats 汇总统计，启用 redis 时按过滤条件短时缓存
func (s *StatsService) Stats(ctx context.Context, claims *util.Claims, f StatsFilter) (*AssessmentStats, error) {
	scope := companyScope(claims)
	cacheKey := statsCacheKey(scope, f)
	if cached := s.readCache(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	stages, err := s.StageRepo.ListSnapshots(ctx, repository.StageFilter{
		CompanyID:     scope,
		JobPostID:     f.JobPostID,
		InterviewerID: f.InterviewerID,
		DateFrom:      f.DateFrom,
		DateTo:        f.DateTo,
	})
	if err != nil {
		return nil, util.NewInternalError("load stages", err)
	}
	attempts, err := s.InterviewRepo.ListAttemptSnapshots(ctx, scope, f.InterviewerID, f.DateFrom, f.DateTo)
	if err != nil {
		return nil, util.NewInternalError("load attempts", err)
	}

	cfg := s.Settings.Get()
	stats := AggregateStages(stages, attempts, AggregateOptions{
		Now:         s.now(),
		TopN:        cfg.TopPerformers,
		RecentN:     cfg.RecentActivity,
		RecentDays:  cfg.RecentActivityDays,
		TrendMonths: cfg.TrendMonths,
	})
	s.writeCache(ctx, cacheKey, stats, time.Duration(cfg.StatsCacheSeconds)*time.Second)
	return stats, nil
}

func statsCacheKey(scope *uint, f StatsFilter) string {
	company := "all"
	if scope != nil {
		company = fmt.Sprint(*scope)
	}
	interviewer := ""
	if f.InterviewerID != nil {
		interviewer = fmt.Sprint(*f.InterviewerID)
	}
	from, to := "", ""
	if f.DateFrom != nil {
		from = f.DateFrom.Format(util.DateFormat)
	}
	if f.DateTo != nil {
		to = f.DateTo.Format(util.DateFormat)
	}
	return fmt.Sprintf("assessment_stats:%s:%s:%s:%s:%s", company, f.JobPostID, interviewer, from, to)
}

func (s *StatsService) readCache(ctx context.Context, key string) *AssessmentStats {
	if s.Redis == nil || s.Settings.Get().StatsCacheSeconds <= 0 {
		return nil
	}
	raw, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warn("stats cache read failed", zap.Error(err))
		}
		return nil
	}
	var stats AssessmentStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil
	}
	return &stats
}

func (s *StatsService) writeCache(ctx context.Context, key string, stats *AssessmentStats, ttl time.Duration) {
	if s.Redis == nil || ttl <= 0 {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, key, raw, ttl).Err(); err != nil {
		logger.Log.Warn("stats cache write failed", zap.Error(err))
	}
}

type ShortlistStatus string

const (
	ShortlistShortlisted    ShortlistStatus = "SHORTLISTED"
	ShortlistNotShortlisted ShortlistStatus = "NOT_SHORTLISTED"
	ShortlistPending        ShortlistStatus = "PENDING"
)

type ShortlistEntry struct {
	ResumeID        string          `json:"resumeId"`
	CandidateName   string          `json:"candidateName"`
	JobPostID       string          `json:"jobPostId"`
	JobTitle        string          `json:"jobTitle"`
	TotalStages     int             `json:"totalStages"`
	CompletedStages int             `json:"completedStages"`
	AverageScore    *float64        `json:"averageScore"`
	Status          ShortlistStatus `json:"status"`
}

// BuildShortlist 按候选人汇总已完成阶段的平均分，没有已完成阶段的为 PENDING
func BuildShortlist(stages []repository.StageSnapshot, threshold float64) []ShortlistEntry {
	order := make([]string, 0)
	byResume := make(map[string]*ShortlistEntry)
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for _, st := range stages {
		key := st.ResumeID + "|" + st.JobPostID
		e, ok := byResume[key]
		if !ok {
			e = &ShortlistEntry{
				ResumeID:      st.ResumeID,
				CandidateName: st.CandidateName,
				JobPostID:     st.JobPostID,
				JobTitle:      st.JobTitle,
			}
			byResume[key] = e
			order = append(order, key)
		}
		e.TotalStages++
		if st.Status == model.StageCompleted {
			e.CompletedStages++
			if st.ResultScore != nil {
				sums[key] += *st.ResultScore
				counts[key]++
			}
		}
	}

	entries := make([]ShortlistEntry, 0, len(order))
	for _, key := range order {
		e := byResume[key]
		switch {
		case counts[key] == 0:
			e.Status = ShortlistPending
		default:
			avg := util.Round2(sums[key] / float64(counts[key]))
			e.AverageScore = &avg
			if avg >= threshold {
				e.Status = ShortlistShortlisted
			} else {
				e.Status = ShortlistNotShortlisted
			}
		}
		entries = append(entries, *e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].AverageScore, entries[j].AverageScore
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return *a > *b
	})
	return entries
}

func (s *StatsService) Shortlist(ctx context.Context, claims *util.Claims, f StatsFilter) ([]ShortlistEntry, error) {
	stages, err := s.StageRepo.ListSnapshots(ctx, repository.StageFilter{
		CompanyID:     companyScope(claims),
		JobPostID:     f.JobPostID,
		InterviewerID: f.InterviewerID,
		DateFrom:      f.DateFrom,
		DateTo:        f.DateTo,
	})
	if err != nil {
		return nil, util.NewInternalError("load stages", err)
	}
	return BuildShortlist(stages, s.Settings.Get().ShortlistThreshold), nil
}
