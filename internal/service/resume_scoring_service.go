package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hire_assessment_backend/internal/model"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/internal/util"
	"hire_assessment_backend/pkg/logger"
	"hire_assessment_backend/pkg/tracing"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	RecommendShortlist = "Shortlist"
	RecommendConsider  = "Consider"
	RecommendReject    = "Reject"

	// 模型不可用时给出的临时分数
	provisionalScore   = 50
	provisionalSummary = "AI service unavailable; provisional score assigned."

	scoringWorkers = 4
)

const resumeScorerRole = "You are an expert HR analyst who compares resumes against job requirements objectively."

type ResumeScoringService struct {
	Jobs *repository.JobRepository
	AI   Completer
	now  func() time.Time
}

func NewResumeScoringService(jobs *repository.JobRepository, ai Completer) *ResumeScoringService {
	return &ResumeScoringService{Jobs: jobs, AI: ai, now: time.Now}
}

type ScoreResumesRequest struct {
	// 为空时对职位下全部简历评分
	ResumeIDs []string `json:"resumeIds"`
}

// ResumeScore 模型返回的评分
type ResumeScore struct {
	MatchScore     float64  `json:"match_score"`
	MatchedSkills  []string `json:"matched_skills"`
	Recommendation string   `json:"recommendation"`
	Summary        string   `json:"summary"`
}

type ResumeRanking struct {
	ResumeID       string   `json:"resumeId"`
	CandidateName  string   `json:"candidateName"`
	CandidateEmail string   `json:"candidateEmail"`
	MatchScore     float64  `json:"matchScore"`
	MatchedSkills  []string `json:"matchedSkills"`
	Recommendation string   `json:"recommendation"`
	Summary        string   `json:"summary"`
	// Provisional 为 true 表示模型不可用，分数仅供参考
	Provisional bool `json:"provisional"`
}

// ScoreJob 对职位下的简历逐份评分并按分数降序返回；单份失败退化为临时分数，不影响整体
func (s *ResumeScoringService) ScoreJob(ctx context.Context, claims *util.Claims, jobID string, req ScoreResumesRequest) ([]ResumeRanking, error) {
	ctx, span := tracing.StartSpan(ctx, "ResumeScoringService.ScoreJob")
	defer tracing.EndSpan(span, nil)

	job, err := s.Jobs.FindJobByID(ctx, jobID)
	if err != nil {
		return nil, lookupError(err, "Job post")
	}
	if err := ensureCompanyAccess(claims, job.CompanyID, "Job post"); err != nil {
		return nil, err
	}

	resumes, err := s.Jobs.ListResumes(ctx, job.ID)
	if err != nil {
		return nil, util.NewInternalError("list resumes", err)
	}
	resumes, err = selectResumes(resumes, req.ResumeIDs)
	if err != nil {
		return nil, err
	}
	if len(resumes) == 0 {
		return nil, util.NewValidationError("job has no resumes to score")
	}

	rankings := make([]ResumeRanking, len(resumes))
	sem := make(chan struct{}, scoringWorkers)
	var wg sync.WaitGroup
	for i := range resumes {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			rankings[i] = s.scoreResume(ctx, job, &resumes[i])
		}(i)
	}
	wg.Wait()

	sort.SliceStable(rankings, func(i, j int) bool {
		if rankings[i].MatchScore != rankings[j].MatchScore {
			return rankings[i].MatchScore > rankings[j].MatchScore
		}
		return rankings[i].CandidateName < rankings[j].CandidateName
	})

	logger.Log.Info("resumes scored", zap.String("jobId", job.ID), zap.Int("count", len(rankings)))
	return rankings, nil
}

func selectResumes(all []model.Resume, ids []string) ([]model.Resume, error) {
	if len(ids) == 0 {
		return all, nil
	}
	byID := make(map[string]model.Resume, len(all))
	for _, r := range all {
		byID[r.ID] = r
	}
	out := make([]model.Resume, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		r, ok := byID[id]
		if !ok {
			return nil, util.NewNotFoundError("Resume not found for this job").With("resumeId", id)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *ResumeScoringService) scoreResume(ctx context.Context, job *model.JobPost, resume *model.Resume) ResumeRanking {
	score, err := s.requestScore(ctx, job, resume)
	provisional := err != nil
	if provisional {
		if !errors.Is(err, ErrGeneratorDisabled) {
			logger.Log.Warn("resume scoring failed, using provisional score",
				zap.String("resumeId", resume.ID), zap.Error(err))
		}
		score = &ResumeScore{MatchScore: provisionalScore, Recommendation: RecommendConsider, Summary: provisionalSummary}
	}

	ranking := ResumeRanking{
		ResumeID:       resume.ID,
		CandidateName:  resume.CandidateName,
		CandidateEmail: resume.CandidateEmail,
		MatchScore:     score.MatchScore,
		MatchedSkills:  score.MatchedSkills,
		Recommendation: score.Recommendation,
		Summary:        score.Summary,
		Provisional:    provisional,
	}

	// 临时分数不覆盖已有的模型评分
	if provisional && resume.MatchScore != nil {
		return ranking
	}
	now := s.now()
	updates := map[string]interface{}{
		"match_score":    score.MatchScore,
		"matched_skills": jsonSlice(score.MatchedSkills),
		"recommendation": score.Recommendation,
		"match_summary":  score.Summary,
		"scored_at":      now,
	}
	if err := s.Jobs.UpdateResumeScore(ctx, resume.ID, updates); err != nil {
		logger.Log.Error("save resume score failed", zap.String("resumeId", resume.ID), zap.Error(err))
	}
	return ranking
}

// requestScore 超时或 5xx 时重试一次
func (s *ResumeScoringService) requestScore(ctx context.Context, job *model.JobPost, resume *model.Resume) (*ResumeScore, error) {
	if s.AI == nil {
		return nil, ErrGeneratorDisabled
	}
	prompt := buildScoringPrompt(job, resume)
	text, err := s.AI.Complete(ctx, resumeScorerRole, prompt)
	if err != nil && retryable(err) {
		text, err = s.AI.Complete(ctx, resumeScorerRole, prompt)
	}
	if err != nil {
		return nil, err
	}
	return ParseResumeScore(text)
}

func jsonSlice(v []string) datatypes.JSONSlice[string] {
	if v == nil {
		return datatypes.JSONSlice[string]{}
	}
	return datatypes.JSONSlice[string](v)
}

func retryable(err error) bool {
	if errors.Is(err, ErrGeneratorDisabled) || errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *AIStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return true
}

func buildScoringPrompt(job *model.JobPost, resume *model.Resume) string {
	var b strings.Builder
	b.WriteString("Evaluate how well this candidate matches the job.\n\n")
	b.WriteString("## JOB\n")
	fmt.Fprintf(&b, "Title: %s\n", job.Title)
	if job.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", job.Location)
	}
	fmt.Fprintf(&b, "Description:\n%s\n\n", job.Description)

	b.WriteString("## CANDIDATE\n")
	fmt.Fprintf(&b, "Name: %s\n", resume.CandidateName)
	if resume.Content != "" {
		fmt.Fprintf(&b, "Resume:\n%s\n\n", resume.Content)
	} else {
		fmt.Fprintf(&b, "Resume text is not available. Resume file: %s\n\n", resume.FileURL)
	}

	b.WriteString(`Respond with a JSON object only, no markdown, with the fields:
"match_score" (number 0-100), "matched_skills" (array of strings),
"recommendation" (one of "Shortlist", "Consider", "Reject"), "summary" (two or three sentences).`)
	return b.String()
}

// ParseResumeScore 截取模型输出中的 JSON 对象并校正取值范围
func ParseResumeScore(raw string) (*ResumeScore, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, errors.New("no JSON object in scoring response")
	}

	var score ResumeScore
	if err := json.Unmarshal([]byte(raw[start:end+1]), &score); err != nil {
		return nil, fmt.Errorf("decode resume score: %w", err)
	}

	switch {
	case score.MatchScore < 0:
		score.MatchScore = 0
	case score.MatchScore > 100:
		score.MatchScore = 100
	}
	score.MatchScore = util.Round2(score.MatchScore)
	score.Summary = strings.TrimSpace(score.Summary)

	switch strings.ToLower(strings.TrimSpace(score.Recommendation)) {
	case "shortlist":
		score.Recommendation = RecommendShortlist
	case "consider":
		score.Recommendation = RecommendConsider
	case "reject":
		score.Recommendation = RecommendReject
	default:
		score.Recommendation = recommendationFor(score.MatchScore)
	}
	return &score, nil
}

func recommendationFor(score float64) string {
	switch {
	case score >= 75:
		return RecommendShortlist
	case score >= 50:
		return RecommendConsider
	}
	return RecommendReject
}
