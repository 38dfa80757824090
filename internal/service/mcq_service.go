package service

import (
	"context"
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
	"gorm.io/gorm"
)

type MCQService struct {
	Repo      *repository.MCQRepository
	StageRepo *repository.AssessmentStageRepository
	DB        *gorm.DB
	now       func() time.Time
}

func NewMCQService(repo *repository.MCQRepository, stageRepo *repository.AssessmentStageRepository, db *gorm.DB) *MCQService {
	return &MCQService{Repo: repo, StageRepo: stageRepo, DB: db, now: time.Now}
}

type MCQAnswerInput struct {
	QuestionID     string `json:"questionId" binding:"required"`
	SelectedAnswer *int   `json:"selectedAnswer" binding:"required,min=0"`
	TimeSpent      int    `json:"timeSpent" binding:"min=0"`
}

// MCQSubmitRequest final 缺省为 true；false 时只保存草稿，阶段保持进行中
type MCQSubmitRequest struct {
	Answers []MCQAnswerInput `json:"answers" binding:"required,min=1,dive"`
	Final   *bool            `json:"final"`
}

func (r MCQSubmitRequest) IsFinal() bool {
	return r.Final == nil || *r.Final
}

type MCQScoreResult struct {
	AssessmentID      string            `json:"assessmentId"`
	StageID           string            `json:"stageId"`
	StageStatus       model.StageStatus `json:"stageStatus"`
	TotalScore        int               `json:"totalScore"`
	TotalPossible     int               `json:"totalPossible"`
	Percentage        float64           `json:"percentage"`
	CorrectAnswers    int               `json:"correctAnswers"`
	AnsweredQuestions int               `json:"answeredQuestions"`
	TotalQuestions    int               `json:"totalQuestions"`
	Answers           []model.MCQAnswer `json:"answers"`
}

// Summary 阶段备注
func (r *MCQScoreResult) Summary() string {
	return fmt.Sprintf("MCQ Assessment completed. Score: %d/%d (%.2f%%). Correct answers: %d/%d",
		r.TotalScore, r.TotalPossible, r.Percentage, r.CorrectAnswers, r.TotalQuestions)
}

// ScoreMCQ 逐题比对选项下标，答对得满分，否则 0 分；总分按全部题目计算
func ScoreMCQ(assessmentID string, questions []model.MCQQuestion, inputs []MCQAnswerInput) (*MCQScoreResult, error) {
	byID := make(map[string]*model.MCQQuestion, len(questions))
	result := &MCQScoreResult{AssessmentID: assessmentID, TotalQuestions: len(questions)}
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
		result.TotalPossible += questions[i].Points
	}

	seen := make(map[string]bool, len(inputs))
	answers := make([]model.MCQAnswer, 0, len(inputs))
	for _, in := range inputs {
		q, ok := byID[in.QuestionID]
		if !ok {
			return nil, util.NewValidationError(fmt.Sprintf("Question with ID %s not found", in.QuestionID)).
				With("questionId", in.QuestionID)
		}
		if seen[in.QuestionID] {
			return nil, util.NewValidationError(fmt.Sprintf("Duplicate answer for question %s", in.QuestionID)).
				With("questionId", in.QuestionID)
		}
		seen[in.QuestionID] = true

		if in.SelectedAnswer == nil {
			return nil, util.NewValidationError("selectedAnswer is required").With("questionId", in.QuestionID)
		}
		selected := *in.SelectedAnswer
		if selected < 0 || (len(q.Options) > 0 && selected >= len(q.Options)) {
			return nil, util.NewValidationError(fmt.Sprintf("selectedAnswer %d out of range for question %s", selected, in.QuestionID)).
				With("questionId", in.QuestionID)
		}

		correct := selected == q.CorrectAnswer
		points := 0
		if correct {
			points = q.Points
			result.CorrectAnswers++
		}
		result.TotalScore += points
		answers = append(answers, model.MCQAnswer{
			MCQAssessmentID: assessmentID,
			QuestionID:      q.ID,
			SelectedAnswer:  selected,
			IsCorrect:       correct,
			PointsEarned:    points,
			TimeSpent:       in.TimeSpent,
		})
	}

	result.AnsweredQuestions = len(answers)
	result.Answers = answers
	result.Percentage = util.Round2(util.Percentage(float64(result.TotalScore), float64(result.TotalPossible)))
	return result, nil
}

// Submit 替换作答并在同一事务内完成阶段；并发提交只有一个能完成，其余返回 Conflict
func (s *MCQService) Submit(ctx context.Context, claims *util.Claims, assessmentID string, req MCQSubmitRequest) (result *MCQScoreResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "MCQService.Submit", attribute.String("assessment.id", assessmentID))
	defer func() { tracing.EndSpan(span, err) }()

	assessment, err := s.loadForCaller(ctx, claims, assessmentID)
	if err != nil {
		return nil, err
	}
	stage := assessment.Stage
	if stage.Status.Terminal() {
		return nil, util.NewConflictError("Assessment stage is already " + string(stage.Status)).
			With("status", stage.Status)
	}

	questions, err := s.Repo.ListQuestions(ctx, assessmentID)
	if err != nil {
		return nil, util.NewInternalError("load questions", err)
	}

	result, err = ScoreMCQ(assessmentID, questions, req.Answers)
	if err != nil {
		return nil, err
	}
	result.StageID = stage.ID

	final := req.IsFinal()
	now := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Repo.WithTx(tx).ReplaceAnswers(ctx, assessmentID, result.Answers); err != nil {
			return util.NewInternalError("replace answers", err)
		}

		stageRepo := s.StageRepo.WithTx(tx)
		if !final {
			if err := stageRepo.StartIfPending(ctx, stage.ID); err != nil {
				return util.NewInternalError("start stage", err)
			}
			return nil
		}

		rows, err := stageRepo.CompleteIfOpen(ctx, stage.ID, result.Percentage, result.Summary(), now)
		if err != nil {
			return util.NewInternalError("complete stage", err)
		}
		if rows == 0 {
			return util.NewConflictError("Assessment stage is already completed").With("status", model.StageCompleted)
		}
		return nil
	})
	if err != nil {
		monitoring.SubmissionCounter.WithLabelValues("mcq", string(util.KindOf(err))).Inc()
		return nil, err
	}

	if final {
		result.StageStatus = model.StageCompleted
	} else {
		result.StageStatus = model.StageInProgress
	}
	monitoring.SubmissionCounter.WithLabelValues("mcq", "ok").Inc()
	logger.Log.Info("MCQ answers saved",
		zap.String("assessmentId", assessmentID),
		zap.Bool("final", final),
		zap.Int("score", result.TotalScore),
		zap.Int("possible", result.TotalPossible),
	)
	return result, nil
}

// SaveDraft 保存草稿，阶段保持进行中，可在最终提交前修改
func (s *MCQService) SaveDraft(ctx context.Context, claims *util.Claims, assessmentID string, answers []MCQAnswerInput) (*MCQScoreResult, error) {
	final := false
	return s.Submit(ctx, claims, assessmentID, MCQSubmitRequest{Answers: answers, Final: &final})
}

type MCQAnswerView struct {
	model.MCQAnswer
	Question *model.MCQQuestion `json:"question,omitempty"`
}

type MCQAnswersResult struct {
	AssessmentID string            `json:"assessmentId"`
	StageStatus  model.StageStatus `json:"stageStatus"`
	ResultScore  *float64          `json:"resultScore"`
	Answers      []MCQAnswerView   `json:"answers"`
}

func (s *MCQService) ListAnswers(ctx context.Context, claims *util.Claims, assessmentID string, includeQuestions bool) (*MCQAnswersResult, error) {
	assessment, err := s.loadForCaller(ctx, claims, assessmentID)
	if err != nil {
		return nil, err
	}

	answers, err := s.Repo.ListAnswers(ctx, assessmentID)
	if err != nil {
		return nil, util.NewInternalError("load answers", err)
	}

	var questions map[string]*model.MCQQuestion
	if includeQuestions {
		qs, err := s.Repo.ListQuestions(ctx, assessmentID)
		if err != nil {
			return nil, util.NewInternalError("load questions", err)
		}
		questions = make(map[string]*model.MCQQuestion, len(qs))
		for i := range qs {
			questions[qs[i].ID] = &qs[i]
		}
	}

	views := make([]MCQAnswerView, 0, len(answers))
	for _, a := range answers {
		v := MCQAnswerView{MCQAnswer: a}
		if questions != nil {
			v.Question = questions[a.QuestionID]
		}
		views = append(views, v)
	}

	return &MCQAnswersResult{
		AssessmentID: assessmentID,
		StageStatus:  assessment.Stage.Status,
		ResultScore:  assessment.Stage.ResultScore,
		Answers:      views,
	}, nil
}

// MCQQuestionView 作答视图，不含正确答案和解析
type MCQQuestionView struct {
	ID         string   `json:"id"`
	Question   string   `json:"question"`
	Options    []string `json:"options"`
	Points     int      `json:"points"`
	Difficulty string   `json:"difficulty"`
	Category   string   `json:"category"`
	SortOrder  int      `json:"sortOrder"`
}

type MCQPaperView struct {
	AssessmentID string            `json:"assessmentId"`
	Title        string            `json:"title"`
	TimeLimit    int               `json:"timeLimit"`
	StageStatus  model.StageStatus `json:"stageStatus"`
	Questions    []MCQQuestionView `json:"questions"`
}

func (s *MCQService) GetPaper(ctx context.Context, claims *util.Claims, assessmentID string) (*MCQPaperView, error) {
	assessment, err := s.loadForCaller(ctx, claims, assessmentID)
	if err != nil {
		return nil, err
	}
	questions, err := s.Repo.ListQuestions(ctx, assessmentID)
	if err != nil {
		return nil, util.NewInternalError("load questions", err)
	}

	views := make([]MCQQuestionView, 0, len(questions))
	if err := copier.Copy(&views, &questions); err != nil {
		return nil, util.NewInternalError("map questions", err)
	}

	return &MCQPaperView{
		AssessmentID: assessment.ID,
		Title:        assessment.Title,
		TimeLimit:    assessment.TimeLimit,
		StageStatus:  assessment.Stage.Status,
		Questions:    views,
	}, nil
}

func (s *MCQService) loadForCaller(ctx context.Context, claims *util.Claims, assessmentID string) (*model.MCQAssessment, error) {
	assessment, err := s.Repo.FindAssessment(ctx, assessmentID)
	if err != nil {
		return nil, lookupError(err, "MCQ assessment")
	}
	if assessment.Stage == nil || assessment.Stage.JobPost == nil {
		return nil, util.NewNotFoundError("MCQ assessment not found")
	}
	if err := ensureCompanyAccess(claims, assessment.Stage.JobPost.CompanyID, "MCQ assessment"); err != nil {
		return nil, err
	}
	return assessment, nil
}
