package service

import (
	"context"
	"encoding/json"
	"fmt"
	"hire_assessment_backend/internal/model"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/internal/util"
	"hire_assessment_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type AssessmentStageService struct {
	Repo      *repository.AssessmentStageRepository
	JobRepo   *repository.JobRepository
	MCQRepo   *repository.MCQRepository
	Passwords *SessionPasswordService
	now       func() time.Time
}

func NewAssessmentStageService(repo *repository.AssessmentStageRepository, jobRepo *repository.JobRepository,
	mcqRepo *repository.MCQRepository, passwords *SessionPasswordService) *AssessmentStageService {
	return &AssessmentStageService{
		Repo:      repo,
		JobRepo:   jobRepo,
		MCQRepo:   mcqRepo,
		Passwords: passwords,
		now:       time.Now,
	}
}

type MCQQuestionInput struct {
	Question      string   `json:"question" binding:"required"`
	Options       []string `json:"options" binding:"required,min=2"`
	CorrectAnswer *int     `json:"correctAnswer" binding:"required,min=0"`
	Points        int      `json:"points" binding:"min=0"`
	Explanation   string   `json:"explanation"`
	Difficulty    string   `json:"difficulty"`
	Category      string   `json:"category"`
}

type MCQStageInput struct {
	Title        string             `json:"title"`
	TimeLimit    int                `json:"timeLimit" binding:"min=0"`
	PassingScore int                `json:"passingScore" binding:"min=0,max=100"`
	Topics       []string           `json:"topics"`
	Difficulty   string             `json:"difficulty"`
	Questions    []MCQQuestionInput `json:"questions" binding:"dive"`
	TemplateIDs  []string           `json:"templateIds"`
}

type AvatarStageInput struct {
	AvatarType      string `json:"avatarType"`
	Language        string `json:"language"`
	Instructions    string `json:"instructions"`
	TimeLimit       int    `json:"timeLimit" binding:"min=0"`
	RequirePassword bool   `json:"requirePassword"`
}

type ManualStageInput struct {
	MeetingType string `json:"meetingType"`
	MeetingLink string `json:"meetingLink"`
	Location    string `json:"location"`
}

type CreateStageRequest struct {
	Type          model.StageType   `json:"type" binding:"required"`
	JobPostID     string            `json:"jobPostId" binding:"required"`
	ResumeID      string            `json:"resumeId" binding:"required"`
	InterviewerID *uint             `json:"interviewerId"`
	ScheduledAt   *time.Time        `json:"scheduledAt"`
	Duration      int               `json:"duration" binding:"min=0"`
	SequenceOrder int               `json:"sequenceOrder"`
	Notes         string            `json:"notes"`
	Metadata      json.RawMessage   `json:"metadata"`
	MCQ           *MCQStageInput    `json:"mcq"`
	Avatar        *AvatarStageInput `json:"avatar"`
	Manual        *ManualStageInput `json:"manual"`
}

// CreateStageResult SessionPassword 只在创建时返回一次
type CreateStageResult struct {
	Stage           *model.AssessmentStage `json:"stage"`
	SessionPassword string                 `json:"sessionPassword,omitempty"`
}

// BuildMCQQuestions 校验并转换题目输入，正确答案必须落在选项范围内
func BuildMCQQuestions(inputs []MCQQuestionInput) ([]model.MCQQuestion, error) {
	questions := make([]model.MCQQuestion, 0, len(inputs))
	for i, in := range inputs {
		if len(in.Options) < 2 {
			return nil, util.NewValidationError(fmt.Sprintf("question %d needs at least 2 options", i+1))
		}
		if in.CorrectAnswer == nil || *in.CorrectAnswer < 0 || *in.CorrectAnswer >= len(in.Options) {
			return nil, util.NewValidationError(fmt.Sprintf("question %d has an out-of-range correctAnswer", i+1))
		}
		points := in.Points
		if points == 0 {
			points = 1
		}
		questions = append(questions, model.MCQQuestion{
			Question:      in.Question,
			Options:       in.Options,
			CorrectAnswer: *in.CorrectAnswer,
			Points:        points,
			Explanation:   in.Explanation,
			Difficulty:    in.Difficulty,
			Category:      in.Category,
			SortOrder:     i,
		})
	}
	return questions, nil
}

func templatesToQuestions(templates []model.MCQTemplate, offset int) []model.MCQQuestion {
	questions := make([]model.MCQQuestion, 0, len(templates))
	for i, t := range templates {
		questions = append(questions, model.MCQQuestion{
			Question:      t.Question,
			Options:       t.Options,
			CorrectAnswer: t.CorrectAnswer,
			Points:        t.Points,
			Explanation:   t.Explanation,
			Difficulty:    t.Difficulty,
			Category:      t.Category,
			SortOrder:     offset + i,
		})
	}
	return questions
}

func (s *AssessmentStageService) Create(ctx context.Context, claims *util.Claims, req CreateStageRequest) (*CreateStageResult, error) {
	if !req.Type.Valid() {
		return nil, util.NewValidationError("type must be one of MCQ, AVATAR, MANUAL").With("type", req.Type)
	}

	job, err := s.JobRepo.FindJobByID(ctx, req.JobPostID)
	if err != nil {
		return nil, lookupError(err, "Job post")
	}
	if err := ensureCompanyAccess(claims, job.CompanyID, "Job post"); err != nil {
		return nil, err
	}
	resume, err := s.JobRepo.FindResumeByID(ctx, req.ResumeID)
	if err != nil {
		return nil, lookupError(err, "Resume")
	}
	if resume.JobPostID != job.ID {
		return nil, util.NewValidationError("resume does not belong to the job post")
	}

	stage := &model.AssessmentStage{
		Type:          req.Type,
		JobPostID:     job.ID,
		ResumeID:      resume.ID,
		InterviewerID: req.InterviewerID,
		Status:        model.StagePending,
		ScheduledAt:   req.ScheduledAt,
		Duration:      req.Duration,
		SequenceOrder: req.SequenceOrder,
		Notes:         req.Notes,
	}
	if len(req.Metadata) > 0 {
		stage.Metadata = datatypes.JSON(req.Metadata)
	}

	result := &CreateStageResult{Stage: stage}
	var details repository.StageDetails
	switch req.Type {
	case model.StageMCQ:
		details.MCQ, err = s.buildMCQ(ctx, claims, req.MCQ)
		if err != nil {
			return nil, err
		}
	case model.StageAvatar:
		in := req.Avatar
		if in == nil {
			in = &AvatarStageInput{}
		}
		avatar := &model.AvatarAssessment{
			AvatarType:   in.AvatarType,
			Language:     in.Language,
			Instructions: in.Instructions,
			TimeLimit:    in.TimeLimit,
		}
		if in.RequirePassword {
			secret, digest, err := s.Passwords.GenerateAndHash()
			if err != nil {
				return nil, util.NewInternalError("generate session password", err)
			}
			avatar.SessionPasswordHash = digest
			result.SessionPassword = secret
		}
		details.Avatar = avatar
	case model.StageManual:
		in := req.Manual
		if in == nil {
			in = &ManualStageInput{}
		}
		details.Manual = &model.ManualMeeting{
			MeetingType: in.MeetingType,
			MeetingLink: in.MeetingLink,
			Location:    in.Location,
		}
	}

	if err := s.Repo.Create(ctx, stage, details); err != nil {
		return nil, util.NewInternalError("create stage", err)
	}

	logger.Log.Info("assessment stage created",
		zap.String("stageId", stage.ID),
		zap.String("type", string(stage.Type)),
		zap.Uint("by", claims.UserID),
	)
	return result, nil
}

func (s *AssessmentStageService) buildMCQ(ctx context.Context, claims *util.Claims, in *MCQStageInput) (*model.MCQAssessment, error) {
	if in == nil {
		return nil, util.NewValidationError("mcq details are required for MCQ stages")
	}
	questions, err := BuildMCQQuestions(in.Questions)
	if err != nil {
		return nil, err
	}

	if len(in.TemplateIDs) > 0 {
		templates, err := s.MCQRepo.FindTemplatesByIDs(ctx, in.TemplateIDs)
		if err != nil {
			return nil, util.NewInternalError("load templates", err)
		}
		if len(templates) != len(in.TemplateIDs) {
			return nil, util.NewValidationError("one or more templates were not found")
		}
		for _, t := range templates {
			if err := ensureCompanyAccess(claims, t.CompanyID, "Template"); err != nil {
				return nil, err
			}
		}
		questions = append(questions, templatesToQuestions(templates, len(questions))...)
	}
	if len(questions) == 0 {
		return nil, util.NewValidationError("an MCQ stage needs at least one question")
	}

	title := in.Title
	if title == "" {
		title = "MCQ Assessment"
	}
	return &model.MCQAssessment{
		Title:        title,
		TimeLimit:    in.TimeLimit,
		PassingScore: float64(in.PassingScore),
		Topics:       in.Topics,
		Difficulty:   in.Difficulty,
		Questions:    questions,
	}, nil
}

type StageListQuery struct {
	JobPostID     string `form:"jobPostId"`
	ResumeID      string `form:"resumeId"`
	InterviewerID *uint  `form:"interviewerId"`
	Type          string `form:"type"`
	Status        string `form:"status"`
	DateFrom      string `form:"dateFrom"`
	DateTo        string `form:"dateTo"`
	Page          int    `form:"page"`
	Limit         int    `form:"limit"`
}

func (s *AssessmentStageService) List(ctx context.Context, claims *util.Claims, q StageListQuery) (*util.PageResponse, error) {
	from, err := util.ParseDate(q.DateFrom)
	if err != nil {
		return nil, util.NewValidationError("invalid dateFrom")
	}
	to, err := util.ParseDate(q.DateTo)
	if err != nil {
		return nil, util.NewValidationError("invalid dateTo")
	}
	if q.Type != "" && !model.StageType(q.Type).Valid() {
		return nil, util.NewValidationError("invalid type filter")
	}
	if q.Status != "" && !model.StageStatus(q.Status).Valid() {
		return nil, util.NewValidationError("invalid status filter")
	}

	page, limit := util.ClampPage(q.Page, q.Limit)
	stages, total, err := s.Repo.List(ctx, repository.StageFilter{
		CompanyID:     companyScope(claims),
		JobPostID:     q.JobPostID,
		ResumeID:      q.ResumeID,
		InterviewerID: q.InterviewerID,
		Type:          model.StageType(q.Type),
		Status:        model.StageStatus(q.Status),
		DateFrom:      from,
		DateTo:        to,
		Page:          page,
		Limit:         limit,
	})
	if err != nil {
		return nil, util.NewInternalError("list stages", err)
	}
	return &util.PageResponse{List: stages, Total: total, Page: page, Limit: limit}, nil
}

func (s *AssessmentStageService) Get(ctx context.Context, claims *util.Claims, id string) (*model.AssessmentStage, error) {
	stage, err := s.Repo.FindWithDetails(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Assessment stage")
	}
	if stage.JobPost == nil {
		return nil, util.NewNotFoundError("Assessment stage not found")
	}
	if err := ensureCompanyAccess(claims, stage.JobPost.CompanyID, "Assessment stage"); err != nil {
		return nil, err
	}
	return stage, nil
}

type UpdateStageRequest struct {
	Status        *model.StageStatus `json:"status"`
	ResultScore   *float64           `json:"resultScore" binding:"omitempty,min=0,max=100"`
	Notes         *string            `json:"notes"`
	ScheduledAt   *time.Time         `json:"scheduledAt"`
	InterviewerID *uint              `json:"interviewerId"`
	Duration      *int               `json:"duration" binding:"omitempty,min=0"`
	Feedback      *string            `json:"feedback"`
	Rating        *int               `json:"rating" binding:"omitempty,min=1,max=5"`
}

// Update 状态只能前进；分数只允许在 COMPLETED 时写入
func (s *AssessmentStageService) Update(ctx context.Context, claims *util.Claims, id string, req UpdateStageRequest) (*model.AssessmentStage, error) {
	stage, err := s.Get(ctx, claims, id)
	if err != nil {
		return nil, err
	}

	next := stage.Status
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, util.NewValidationError("invalid status").With("status", *req.Status)
		}
		if !stage.Status.CanTransitionTo(*req.Status) {
			return nil, util.NewConflictError(fmt.Sprintf("Cannot change status from %s to %s", stage.Status, *req.Status)).
				With("status", stage.Status)
		}
		next = *req.Status
	}
	if req.ResultScore != nil && next != model.StageCompleted {
		return nil, util.NewValidationError("resultScore can only be set on a COMPLETED stage")
	}

	updates := map[string]interface{}{}
	if next != stage.Status {
		updates["status"] = next
		if next == model.StageCompleted {
			updates["completed_at"] = s.now()
		}
	}
	if req.ResultScore != nil {
		updates["result_score"] = util.Round2(*req.ResultScore)
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if req.ScheduledAt != nil {
		updates["scheduled_at"] = *req.ScheduledAt
	}
	if req.InterviewerID != nil {
		updates["interviewer_id"] = *req.InterviewerID
	}
	if req.Duration != nil {
		updates["duration"] = *req.Duration
	}

	if len(updates) > 0 {
		rows, err := s.Repo.UpdateIfStatus(ctx, stage.ID, stage.Status, updates)
		if err != nil {
			return nil, util.NewInternalError("update stage", err)
		}
		if rows == 0 {
			return nil, util.NewConflictError("Assessment stage was modified concurrently")
		}
	}

	if stage.Type == model.StageManual && (req.Feedback != nil || req.Rating != nil) {
		meeting := map[string]interface{}{}
		if req.Feedback != nil {
			meeting["feedback"] = *req.Feedback
		}
		if req.Rating != nil {
			meeting["rating"] = *req.Rating
		}
		if err := s.Repo.UpdateManualMeeting(ctx, stage.ID, meeting); err != nil {
			return nil, util.NewInternalError("update meeting", err)
		}
	}

	return s.Get(ctx, claims, id)
}

func (s *AssessmentStageService) Delete(ctx context.Context, claims *util.Claims, id string) error {
	stage, err := s.Get(ctx, claims, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, stage.ID); err != nil {
		return util.NewInternalError("delete stage", err)
	}
	logger.Log.Info("assessment stage deleted", zap.String("stageId", stage.ID), zap.Uint("by", claims.UserID))
	return nil
}
