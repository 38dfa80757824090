package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"hire_assessment_backend/internal/model"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/internal/util"
	"hire_assessment_backend/pkg/logger"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type InterviewService struct {
	Repo      *repository.InterviewRepository
	MCQRepo   *repository.MCQRepository
	DB        *gorm.DB
	Attempts  *AttemptService
	Passwords *SessionPasswordService
	Notifier  *NotificationService
	Settings  *AssessmentSettings
	now       func() time.Time
}

func NewInterviewService(repo *repository.InterviewRepository, mcqRepo *repository.MCQRepository, db *gorm.DB,
	attempts *AttemptService, passwords *SessionPasswordService, notifier *NotificationService,
	settings *AssessmentSettings) *InterviewService {
	return &InterviewService{
		Repo:      repo,
		MCQRepo:   mcqRepo,
		DB:        db,
		Attempts:  attempts,
		Passwords: passwords,
		Notifier:  notifier,
		Settings:  settings,
		now:       time.Now,
	}
}

type InterviewQuestionInput struct {
	Text    string             `json:"text" binding:"required"`
	Type    model.QuestionType `json:"type" binding:"required"`
	Options []string           `json:"options"`
	Correct json.RawMessage    `json:"correct"`
	Points  int                `json:"points" binding:"min=0"`
}

type CreateInterviewRequest struct {
	Title          string                   `json:"title" binding:"required"`
	Description    string                   `json:"description"`
	JobPostID      *string                  `json:"jobPostId"`
	ResumeID       *string                  `json:"resumeId"`
	CandidateName  string                   `json:"candidateName"`
	CandidateEmail string                   `json:"candidateEmail" binding:"omitempty,email"`
	Duration       int                      `json:"duration" binding:"min=0"`
	TemplateIDs    []string                 `json:"templateIds"`
	Questions      []InterviewQuestionInput `json:"questions" binding:"dive"`
}

// BuildInterviewQuestions 校验题型与选项；判断题缺省选项为 True/False
func BuildInterviewQuestions(inputs []InterviewQuestionInput, offset int) ([]model.InterviewQuestion, error) {
	questions := make([]model.InterviewQuestion, 0, len(inputs))
	for i, in := range inputs {
		if !in.Type.Valid() {
			return nil, util.NewValidationError(fmt.Sprintf("question %d has an invalid type", i+1)).With("type", in.Type)
		}
		options := in.Options
		switch in.Type {
		case model.QuestionMultipleChoice:
			if len(options) < 2 {
				return nil, util.NewValidationError(fmt.Sprintf("question %d needs at least 2 options", i+1))
			}
		case model.QuestionTrueFalse:
			if len(options) == 0 {
				options = []string{"True", "False"}
			}
		}
		if len(in.Correct) > 0 && !json.Valid(in.Correct) {
			return nil, util.NewValidationError(fmt.Sprintf("question %d has an invalid correct answer", i+1))
		}

		points := in.Points
		if points == 0 {
			points = 1
		}
		q := model.InterviewQuestion{
			Text:       in.Text,
			Type:       in.Type,
			Options:    options,
			Points:     points,
			OrderIndex: offset + i,
		}
		if len(in.Correct) > 0 {
			q.CorrectAnswer = datatypes.JSON(in.Correct)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (s *InterviewService) Create(ctx context.Context, claims *util.Claims, req CreateInterviewRequest) (*model.Interview, error) {
	if claims == nil {
		return nil, util.NewUnauthorizedError("authentication required")
	}
	questions, err := BuildInterviewQuestions(req.Questions, 0)
	if err != nil {
		return nil, err
	}

	if len(req.TemplateIDs) > 0 {
		templates, err := s.MCQRepo.FindTemplatesByIDs(ctx, req.TemplateIDs)
		if err != nil {
			return nil, util.NewInternalError("load templates", err)
		}
		if len(templates) != len(req.TemplateIDs) {
			return nil, util.NewValidationError("one or more templates were not found")
		}
		for i, t := range templates {
			if err := ensureCompanyAccess(claims, t.CompanyID, "Template"); err != nil {
				return nil, err
			}
			correct, _ := json.Marshal(t.CorrectAnswer)
			questions = append(questions, model.InterviewQuestion{
				Text:          t.Question,
				Type:          model.QuestionMultipleChoice,
				Options:       t.Options,
				CorrectAnswer: datatypes.JSON(correct),
				Points:        t.Points,
				OrderIndex:    len(req.Questions) + i,
			})
		}
	}
	if len(questions) == 0 {
		return nil, util.NewValidationError("an interview needs at least one question")
	}

	duration := req.Duration
	if duration == 0 {
		duration = s.Settings.Get().DefaultDurationMins
	}
	interview := &model.Interview{
		CompanyID:      claims.CompanyID,
		JobPostID:      req.JobPostID,
		ResumeID:       req.ResumeID,
		Title:          req.Title,
		Description:    req.Description,
		CandidateName:  req.CandidateName,
		CandidateEmail: req.CandidateEmail,
		Duration:       duration,
		Status:         model.InterviewDraft,
		CreatedByID:    claims.UserID,
		Questions:      questions,
	}
	if err := s.Repo.Create(ctx, interview); err != nil {
		return nil, util.NewInternalError("create interview", err)
	}
	return interview, nil
}

func (s *InterviewService) Get(ctx context.Context, claims *util.Claims, id string) (*model.Interview, error) {
	interview, err := s.Repo.FindWithQuestions(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Interview")
	}
	if err := ensureCompanyAccess(claims, interview.CompanyID, "Interview"); err != nil {
		return nil, err
	}
	return interview, nil
}

func (s *InterviewService) List(ctx context.Context, claims *util.Claims, page, limit int) (*util.PageResponse, error) {
	page, limit = util.ClampPage(page, limit)
	list, total, err := s.Repo.List(ctx, companyScope(claims), page, limit)
	if err != nil {
		return nil, util.NewInternalError("list interviews", err)
	}
	return &util.PageResponse{List: list, Total: total, Page: page, Limit: limit}, nil
}

type SendInterviewRequest struct {
	CandidateName  string `json:"candidateName"`
	CandidateEmail string `json:"candidateEmail" binding:"omitempty,email"`
	InterviewerID  *uint  `json:"interviewerId"`
}

// SendInterviewResult SessionPassword 只在此处返回一次
type SendInterviewResult struct {
	InterviewID     string    `json:"interviewId"`
	AttemptID       string    `json:"attemptId"`
	TestLink        string    `json:"testLink"`
	SessionPassword string    `json:"sessionPassword"`
	ExpiresAt       time.Time `json:"expiresAt"`
	QRCode          string    `json:"qrCode,omitempty"`
}

// Send 生成会话口令和作答记录，并通知候选人；已有进行中或已完成的作答时拒绝
func (s *InterviewService) Send(ctx context.Context, claims *util.Claims, id string, req SendInterviewRequest) (*SendInterviewResult, error) {
	interview, err := s.Get(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if len(interview.Questions) == 0 {
		return nil, util.NewValidationError("Interview has no questions")
	}
	if interview.Status == model.InterviewArchived {
		return nil, util.NewConflictError("Interview is archived").With("status", interview.Status)
	}
	if interview.Duration <= 0 {
		return nil, util.NewValidationError("Interview duration must be positive")
	}
	if err := s.ensureSendable(ctx, interview); err != nil {
		return nil, err
	}

	email := req.CandidateEmail
	if email == "" {
		email = interview.CandidateEmail
	}
	name := req.CandidateName
	if name == "" {
		name = interview.CandidateName
	}
	interviewerID := claims.UserID
	if req.InterviewerID != nil {
		interviewerID = *req.InterviewerID
	}

	secret, digest, err := s.Passwords.GenerateAndHash()
	if err != nil {
		return nil, util.NewInternalError("generate session password", err)
	}

	now := s.now()
	attempt := &model.InterviewAttempt{
		InterviewID:   interview.ID,
		InterviewerID: interviewerID,
		Status:        model.AttemptInProgress,
		StartedAt:     now,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.Repo.WithTx(tx)
		if err := repo.CreateAttempt(ctx, attempt); err != nil {
			return err
		}
		return repo.UpdateFields(ctx, interview.ID, map[string]interface{}{
			"session_password_hash": digest,
			"session_password":      "",
			"status":                model.InterviewPublished,
			"candidate_email":       email,
			"candidate_name":        name,
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrActiveAttemptExists) {
			return nil, util.NewConflictError("An attempt is already in progress for this interview")
		}
		return nil, util.NewInternalError("send interview", err)
	}

	result := &SendInterviewResult{
		InterviewID:     interview.ID,
		AttemptID:       attempt.ID,
		TestLink:        s.testLink(attempt.ID),
		SessionPassword: secret,
		ExpiresAt:       now.Add(time.Duration(interview.Duration) * time.Minute),
	}
	if png, err := qrcode.Encode(result.TestLink, qrcode.Medium, 256); err == nil {
		result.QRCode = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	} else {
		logger.Log.Warn("qr code generation failed", zap.Error(err))
	}

	s.Notifier.Notify(ctx, Notification{
		Email:   email,
		Name:    name,
		Subject: "Your interview: " + interview.Title,
		Body: fmt.Sprintf("Hello %s,\n\nYou have been invited to complete the assessment \"%s\".\n\n"+
			"Link: %s\nSession password: %s\nTime limit: %d minutes (expires %s)\n",
			name, interview.Title, result.TestLink, secret, interview.Duration, result.ExpiresAt.Format(util.TimeFormat)),
		Alert: fmt.Sprintf("Interview \"%s\" sent to %s (attempt %s)", interview.Title, name, attempt.ID),
	})

	logger.Log.Info("interview sent",
		zap.String("interviewId", interview.ID),
		zap.String("attemptId", attempt.ID),
		zap.Uint("by", claims.UserID),
	)
	return result, nil
}

// ensureSendable 过期的进行中作答先落为 EXPIRED，过期或终止的作答允许重新发送
func (s *InterviewService) ensureSendable(ctx context.Context, interview *model.Interview) error {
	attempts, err := s.Repo.ListAttempts(ctx, interview.ID)
	if err != nil {
		return util.NewInternalError("list attempts", err)
	}
	for i := range attempts {
		a := &attempts[i]
		a.Interview = interview
		if err := s.Attempts.expireIfOverdue(ctx, a); err != nil {
			return err
		}
		switch a.Status {
		case model.AttemptInProgress, model.AttemptCompleted, model.AttemptSubmitted:
			return util.NewConflictError("Interview already has an active or finished attempt").
				With("attemptId", a.ID).
				With("status", a.Status)
		}
	}
	return nil
}

func (s *InterviewService) testLink(attemptID string) string {
	base := strings.TrimRight(s.Settings.Get().CandidateBaseURL, "/")
	return base + "/interview/" + attemptID
}
