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
	"hire_assessment_backend/pkg/monitoring"
	"hire_assessment_backend/pkg/tracing"
	"time"

	"github.com/jinzhu/copier"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AttemptEvent 推送给监控端的作答事件
type AttemptEvent struct {
	Type       string              `json:"type"`
	CompanyID  uint                `json:"companyId"`
	AttemptID  string              `json:"attemptId"`
	Status     model.AttemptStatus `json:"status"`
	Violations int                 `json:"violations,omitempty"`
	At         time.Time           `json:"at"`
}

// AttemptEventPublisher 由 websocket 监控实现，可为空
type AttemptEventPublisher interface {
	Publish(event AttemptEvent)
}

type AttemptService struct {
	Repo      *repository.InterviewRepository
	DB        *gorm.DB
	Passwords *SessionPasswordService
	Limiter   *VerifyLimiter
	Settings  *AssessmentSettings
	Events    AttemptEventPublisher
	now       func() time.Time
}

func NewAttemptService(repo *repository.InterviewRepository, db *gorm.DB, passwords *SessionPasswordService,
	limiter *VerifyLimiter, settings *AssessmentSettings) *AttemptService {
	return &AttemptService{
		Repo:      repo,
		DB:        db,
		Passwords: passwords,
		Limiter:   limiter,
		Settings:  settings,
		now:       time.Now,
	}
}

// Create 新建进行中的作答；同一面试已有进行中作答时返回 Conflict
func (s *AttemptService) Create(ctx context.Context, interviewID string, interviewerID uint) (*model.InterviewAttempt, error) {
	attempt := &model.InterviewAttempt{
		InterviewID:   interviewID,
		InterviewerID: interviewerID,
		Status:        model.AttemptInProgress,
		StartedAt:     s.now(),
	}
	if err := s.Repo.CreateAttempt(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrActiveAttemptExists) {
			return nil, util.NewConflictError("An attempt is already in progress for this interview").
				With("interviewId", interviewID)
		}
		return nil, util.NewInternalError("create attempt", err)
	}
	return attempt, nil
}

// VerifyPassword 候选人进入前校验会话口令
func (s *AttemptService) VerifyPassword(ctx context.Context, attemptID, secret, client string) error {
	_, err := s.loadForCandidate(ctx, attemptID, secret, client)
	return err
}

func credentialOf(interview *model.Interview) SessionCredential {
	return CredentialFrom(interview.SessionPasswordHash, interview.SessionPassword)
}

// CandidateQuestion 候选人视图，不含标准答案
type CandidateQuestion struct {
	ID         string             `json:"id"`
	Text       string             `json:"text"`
	Type       model.QuestionType `json:"type"`
	Options    []string           `json:"options"`
	Points     int                `json:"points"`
	OrderIndex int                `json:"orderIndex"`
}

type CandidateAttemptInfo struct {
	ID          string              `json:"id"`
	Status      model.AttemptStatus `json:"status"`
	StartedAt   time.Time           `json:"startedAt"`
	TimeElapsed int                 `json:"timeElapsed"`
}

type CandidateInterviewView struct {
	InterviewID   string               `json:"interviewId"`
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	Duration      int                  `json:"duration"`
	TimeRemaining int                  `json:"timeRemaining"`
	Questions     []CandidateQuestion  `json:"questions"`
	Attempt       CandidateAttemptInfo `json:"attempt"`
}

// Take 返回作答页面数据；超时的作答在此处置为 EXPIRED
func (s *AttemptService) Take(ctx context.Context, attemptID, secret, client string) (view *CandidateInterviewView, err error) {
	ctx, span := tracing.StartSpan(ctx, "AttemptService.Take", attribute.String("attempt.id", attemptID))
	defer func() { tracing.EndSpan(span, err) }()

	attempt, err := s.loadForCandidate(ctx, attemptID, secret, client)
	if err != nil {
		return nil, err
	}
	if err := s.ensureOpen(ctx, attempt); err != nil {
		return nil, err
	}

	questions, err := s.Repo.ListQuestions(ctx, attempt.InterviewID)
	if err != nil {
		return nil, util.NewInternalError("load questions", err)
	}
	sanitized := make([]CandidateQuestion, 0, len(questions))
	if err := copier.Copy(&sanitized, &questions); err != nil {
		return nil, util.NewInternalError("map questions", err)
	}

	duration := s.durationMinutes(attempt.Interview)
	elapsed := s.elapsedSeconds(attempt)
	remaining := duration*60 - elapsed
	if remaining < 0 {
		remaining = 0
	}

	return &CandidateInterviewView{
		InterviewID:   attempt.InterviewID,
		Title:         attempt.Interview.Title,
		Description:   attempt.Interview.Description,
		Duration:      duration,
		TimeRemaining: remaining,
		Questions:     sanitized,
		Attempt: CandidateAttemptInfo{
			ID:          attempt.ID,
			Status:      attempt.Status,
			StartedAt:   attempt.StartedAt,
			TimeElapsed: elapsed,
		},
	}, nil
}

type AttemptAnswerInput struct {
	QuestionID string          `json:"questionId" binding:"required"`
	Answer     json.RawMessage `json:"answer"`
	TimeSpent  int             `json:"timeSpent" binding:"min=0"`
}

type AttemptSubmitRequest struct {
	Answers []AttemptAnswerInput `json:"answers" binding:"required,dive"`
}

type AttemptSubmitResult struct {
	AttemptID         string              `json:"attemptId"`
	Status            model.AttemptStatus `json:"status"`
	Score             int                 `json:"score"`
	MaxScore          int                 `json:"maxScore"`
	Percentage        float64             `json:"percentage"`
	TotalQuestions    int                 `json:"totalQuestions"`
	AnsweredQuestions int                 `json:"answeredQuestions"`
	CorrectAnswers    int                 `json:"correctAnswers"`
	TimeSpent         int                 `json:"timeSpent"`
	CompletedAt       time.Time           `json:"completedAt"`
}

// ScoreAttempt 按题型比较作答，问答题等无标准答案的题目不计分
func ScoreAttempt(attemptID string, questions []model.InterviewQuestion, inputs []AttemptAnswerInput, now time.Time) ([]model.InterviewAnswer, *AttemptSubmitResult, error) {
	byID := make(map[string]*model.InterviewQuestion, len(questions))
	result := &AttemptSubmitResult{AttemptID: attemptID, TotalQuestions: len(questions)}
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
		result.MaxScore += questions[i].Points
	}

	seen := make(map[string]bool, len(inputs))
	answers := make([]model.InterviewAnswer, 0, len(inputs))
	for _, in := range inputs {
		q, ok := byID[in.QuestionID]
		if !ok {
			return nil, nil, util.NewValidationError(fmt.Sprintf("Question with ID %s not found", in.QuestionID)).
				With("questionId", in.QuestionID)
		}
		if seen[in.QuestionID] {
			return nil, nil, util.NewValidationError(fmt.Sprintf("Duplicate answer for question %s", in.QuestionID)).
				With("questionId", in.QuestionID)
		}
		seen[in.QuestionID] = true

		correct := q.Type != model.QuestionEssay && AnswersMatch(in.Answer, json.RawMessage(q.CorrectAnswer))
		points := 0
		if correct {
			points = q.Points
			result.CorrectAnswers++
		}
		result.Score += points

		raw := in.Answer
		if len(raw) == 0 {
			raw = json.RawMessage("null")
		}
		answers = append(answers, model.InterviewAnswer{
			AttemptID:    attemptID,
			QuestionID:   q.ID,
			Answer:       datatypes.JSON(raw),
			IsCorrect:    correct,
			PointsEarned: points,
			TimeSpent:    in.TimeSpent,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	result.AnsweredQuestions = len(answers)
	result.Percentage = util.Round2(util.Percentage(float64(result.Score), float64(result.MaxScore)))
	return answers, result, nil
}

// Submit 评分并完成作答；重复提交或并发提交只有一个生效
func (s *AttemptService) Submit(ctx context.Context, attemptID, secret, client string, req AttemptSubmitRequest) (result *AttemptSubmitResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "AttemptService.Submit", attribute.String("attempt.id", attemptID))
	defer func() {
		tracing.EndSpan(span, err)
		if err != nil {
			monitoring.SubmissionCounter.WithLabelValues("interview", string(util.KindOf(err))).Inc()
		}
	}()

	attempt, err := s.loadForCandidate(ctx, attemptID, secret, client)
	if err != nil {
		return nil, err
	}
	if err := s.ensureOpen(ctx, attempt); err != nil {
		return nil, err
	}

	questions, err := s.Repo.ListQuestions(ctx, attempt.InterviewID)
	if err != nil {
		return nil, util.NewInternalError("load questions", err)
	}

	now := s.now()
	answers, result, err := ScoreAttempt(attempt.ID, questions, req.Answers, now)
	if err != nil {
		return nil, err
	}
	result.TimeSpent = int(now.Sub(attempt.StartedAt).Seconds())
	result.CompletedAt = now
	result.Status = model.AttemptCompleted

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.Repo.WithTx(tx)
		if err := repo.UpsertAnswers(ctx, answers); err != nil {
			return util.NewInternalError("save answers", err)
		}
		rows, err := repo.TransitionAttempt(ctx, attempt.ID, model.AttemptInProgress, model.AttemptCompleted, map[string]interface{}{
			"completed_at": now,
			"submitted_at": now,
			"score":        result.Score,
			"max_score":    result.MaxScore,
			"time_spent":   result.TimeSpent,
		})
		if err != nil {
			return util.NewInternalError("complete attempt", err)
		}
		if rows == 0 {
			return util.NewConflictError("Attempt has already been submitted").With("status", model.AttemptCompleted)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.SubmissionCounter.WithLabelValues("interview", "ok").Inc()
	logger.Log.Info("interview attempt submitted",
		zap.String("attemptId", attempt.ID),
		zap.Int("score", result.Score),
		zap.Int("maxScore", result.MaxScore),
	)
	s.publish(AttemptEvent{Type: "submitted", CompanyID: attempt.Interview.CompanyID, AttemptID: attempt.ID, Status: model.AttemptCompleted, At: now})
	return result, nil
}

type AttemptQuestionResult struct {
	QuestionID   string             `json:"questionId"`
	Text         string             `json:"text"`
	Type         model.QuestionType `json:"type"`
	Options      []string           `json:"options"`
	Correct      datatypes.JSON     `json:"correct"`
	Points       int                `json:"points"`
	Answer       datatypes.JSON     `json:"answer"`
	Answered     bool               `json:"answered"`
	IsCorrect    bool               `json:"isCorrect"`
	PointsEarned int                `json:"pointsEarned"`
	TimeSpent    int                `json:"timeSpent"`
}

type AttemptTrackView struct {
	Attempt    *model.InterviewAttempt `json:"attempt"`
	Percentage float64                 `json:"percentage"`
	Results    []AttemptQuestionResult `json:"results"`
}

// Track 面试官查看作答详情
func (s *AttemptService) Track(ctx context.Context, claims *util.Claims, attemptID string) (*AttemptTrackView, error) {
	attempt, err := s.loadForRecruiter(ctx, claims, attemptID)
	if err != nil {
		return nil, err
	}
	if err := s.expireIfOverdue(ctx, attempt); err != nil {
		return nil, err
	}

	questions, err := s.Repo.ListQuestions(ctx, attempt.InterviewID)
	if err != nil {
		return nil, util.NewInternalError("load questions", err)
	}
	answers, err := s.Repo.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, util.NewInternalError("load answers", err)
	}
	byQuestion := make(map[string]model.InterviewAnswer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	results := make([]AttemptQuestionResult, 0, len(questions))
	for _, q := range questions {
		r := AttemptQuestionResult{
			QuestionID: q.ID,
			Text:       q.Text,
			Type:       q.Type,
			Options:    q.Options,
			Correct:    q.CorrectAnswer,
			Points:     q.Points,
		}
		if a, ok := byQuestion[q.ID]; ok {
			r.Answer = a.Answer
			r.Answered = true
			r.IsCorrect = a.IsCorrect
			r.PointsEarned = a.PointsEarned
			r.TimeSpent = a.TimeSpent
		}
		results = append(results, r)
	}

	return &AttemptTrackView{
		Attempt:    attempt,
		Percentage: util.Round2(util.Percentage(float64(attempt.Score), float64(attempt.MaxScore))),
		Results:    results,
	}, nil
}

type AttemptStatusRequest struct {
	Status model.AttemptStatus `json:"status" binding:"required"`
	Reason string              `json:"reason"`
}

// UpdateStatus 面试官手动结束作答，只允许从进行中转为终态
func (s *AttemptService) UpdateStatus(ctx context.Context, claims *util.Claims, attemptID string, req AttemptStatusRequest) (*model.InterviewAttempt, error) {
	if !req.Status.Valid() || !req.Status.Terminal() {
		return nil, util.NewValidationError("status must be one of COMPLETED, SUBMITTED, EXPIRED, TERMINATED").
			With("status", req.Status)
	}

	attempt, err := s.loadForRecruiter(ctx, claims, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status.Terminal() {
		return nil, util.NewConflictError("Attempt is already " + string(attempt.Status)).With("status", attempt.Status)
	}

	now := s.now()
	updates := map[string]interface{}{
		"completed_at": now,
		"time_spent":   int(now.Sub(attempt.StartedAt).Seconds()),
	}
	if req.Status == model.AttemptSubmitted {
		updates["submitted_at"] = now
	}
	rows, err := s.Repo.TransitionAttempt(ctx, attempt.ID, model.AttemptInProgress, req.Status, updates)
	if err != nil {
		return nil, util.NewInternalError("update attempt", err)
	}
	if rows == 0 {
		return nil, util.NewConflictError("Attempt status changed concurrently")
	}

	logger.Log.Info("attempt status updated",
		zap.String("attemptId", attempt.ID),
		zap.String("status", string(req.Status)),
		zap.String("reason", req.Reason),
		zap.Uint("by", claims.UserID),
	)
	s.publish(AttemptEvent{Type: "status", CompanyID: attempt.Interview.CompanyID, AttemptID: attempt.ID, Status: req.Status, At: now})

	updated, err := s.Repo.FindAttempt(ctx, attempt.ID)
	if err != nil {
		return nil, util.NewInternalError("reload attempt", err)
	}
	return updated, nil
}

type ViolationResult struct {
	AttemptID     string              `json:"attemptId"`
	Violations    int                 `json:"violations"`
	MaxViolations int                 `json:"maxViolations"`
	Status        model.AttemptStatus `json:"status"`
}

// RecordViolation 记录一次切屏等违规，达到上限后终止作答
func (s *AttemptService) RecordViolation(ctx context.Context, attemptID, secret, client string) (*ViolationResult, error) {
	attempt, err := s.loadForCandidate(ctx, attemptID, secret, client)
	if err != nil {
		return nil, err
	}
	if err := s.ensureOpen(ctx, attempt); err != nil {
		return nil, err
	}

	rows, err := s.Repo.IncrementViolations(ctx, attempt.ID)
	if err != nil {
		return nil, util.NewInternalError("record violation", err)
	}
	if rows == 0 {
		return nil, util.NewConflictError("Attempt is no longer in progress")
	}

	now := s.now()
	violations := attempt.Violations + 1
	status := model.AttemptInProgress
	max := s.Settings.Get().MaxViolations
	if max > 0 && violations >= max {
		rows, err := s.Repo.TransitionAttempt(ctx, attempt.ID, model.AttemptInProgress, model.AttemptTerminated, map[string]interface{}{
			"completed_at": now,
			"time_spent":   int(now.Sub(attempt.StartedAt).Seconds()),
		})
		if err != nil {
			return nil, util.NewInternalError("terminate attempt", err)
		}
		if rows > 0 {
			status = model.AttemptTerminated
			logger.Log.Warn("attempt terminated after violations",
				zap.String("attemptId", attempt.ID),
				zap.Int("violations", violations),
			)
		}
	}

	s.publish(AttemptEvent{Type: "violation", CompanyID: attempt.Interview.CompanyID, AttemptID: attempt.ID, Status: status, Violations: violations, At: now})
	return &ViolationResult{
		AttemptID:     attempt.ID,
		Violations:    violations,
		MaxViolations: max,
		Status:        status,
	}, nil
}

func (s *AttemptService) ListByInterview(ctx context.Context, claims *util.Claims, interviewID string) ([]model.InterviewAttempt, error) {
	interview, err := s.Repo.FindByID(ctx, interviewID)
	if err != nil {
		return nil, lookupError(err, "Interview")
	}
	if err := ensureCompanyAccess(claims, interview.CompanyID, "Interview"); err != nil {
		return nil, err
	}
	attempts, err := s.Repo.ListAttempts(ctx, interviewID)
	if err != nil {
		return nil, util.NewInternalError("list attempts", err)
	}
	return attempts, nil
}

// loadForCandidate 读取作答并校验会话口令，错误次数按 (作答, 客户端) 限制
func (s *AttemptService) loadForCandidate(ctx context.Context, attemptID, secret, client string) (*model.InterviewAttempt, error) {
	if err := s.Limiter.Allow(ctx, "attempt", attemptID, client); err != nil {
		return nil, err
	}
	attempt, err := s.Repo.FindAttempt(ctx, attemptID)
	if err != nil {
		return nil, lookupError(err, "Attempt")
	}
	if attempt.Interview == nil {
		return nil, util.NewNotFoundError("Interview not found")
	}
	if !s.Passwords.Check(credentialOf(attempt.Interview), secret) {
		s.Limiter.RecordFailure(ctx, "attempt", attemptID, client)
		return nil, util.NewUnauthorizedError("Invalid session password").With("verified", false)
	}
	s.Limiter.Reset(ctx, "attempt", attemptID, client)
	return attempt, nil
}

func (s *AttemptService) loadForRecruiter(ctx context.Context, claims *util.Claims, attemptID string) (*model.InterviewAttempt, error) {
	attempt, err := s.Repo.FindAttempt(ctx, attemptID)
	if err != nil {
		return nil, lookupError(err, "Attempt")
	}
	if attempt.Interview == nil {
		return nil, util.NewNotFoundError("Attempt not found")
	}
	if err := ensureCompanyAccess(claims, attempt.Interview.CompanyID, "Attempt"); err != nil {
		return nil, err
	}
	return attempt, nil
}

// ensureOpen 先做惰性过期，再检查终态
func (s *AttemptService) ensureOpen(ctx context.Context, attempt *model.InterviewAttempt) error {
	if err := s.expireIfOverdue(ctx, attempt); err != nil {
		return err
	}
	switch attempt.Status {
	case model.AttemptInProgress:
		return nil
	case model.AttemptExpired:
		return util.NewTimeLimitExceededError("Time limit exceeded").With("status", attempt.Status)
	default:
		return util.NewConflictError("Attempt is already " + string(attempt.Status)).With("status", attempt.Status)
	}
}

// durationMinutes 历史数据时长为 0 时按默认时长计时，倒计时和过期判断保持一致
func (s *AttemptService) durationMinutes(interview *model.Interview) int {
	if interview.Duration > 0 {
		return interview.Duration
	}
	return s.Settings.Get().DefaultDurationMins
}

// expireIfOverdue 超过时长的进行中作答写为 EXPIRED，attempt.Status 同步更新
func (s *AttemptService) expireIfOverdue(ctx context.Context, attempt *model.InterviewAttempt) error {
	if attempt.Status != model.AttemptInProgress || attempt.Interview == nil {
		return nil
	}
	limit := time.Duration(s.durationMinutes(attempt.Interview)) * time.Minute
	if s.now().Sub(attempt.StartedAt) <= limit {
		return nil
	}

	rows, err := s.Repo.TransitionAttempt(ctx, attempt.ID, model.AttemptInProgress, model.AttemptExpired, nil)
	if err != nil {
		return util.NewInternalError("expire attempt", err)
	}
	if rows > 0 {
		monitoring.AttemptExpirations.Inc()
		logger.Log.Info("attempt expired", zap.String("attemptId", attempt.ID))
		attempt.Status = model.AttemptExpired
		s.publish(AttemptEvent{Type: "expired", CompanyID: attempt.Interview.CompanyID, AttemptID: attempt.ID, Status: model.AttemptExpired, At: s.now()})
		return nil
	}

	// 并发请求已先行转为终态
	latest, err := s.Repo.FindAttempt(ctx, attempt.ID)
	if err != nil {
		return util.NewInternalError("reload attempt", err)
	}
	attempt.Status = latest.Status
	return nil
}

func (s *AttemptService) elapsedSeconds(attempt *model.InterviewAttempt) int {
	elapsed := int(s.now().Sub(attempt.StartedAt).Seconds())
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func (s *AttemptService) publish(event AttemptEvent) {
	if s.Events != nil {
		s.Events.Publish(event)
	}
}
