package service

import (
	"context"
	"hire_assessment_backend/internal/model"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/internal/util"
	"testing"

	"gorm.io/gorm"
)

func intPtr(v int) *int { return &v }

func seedMCQStage(t *testing.T, db *gorm.DB) (*model.AssessmentStage, *model.MCQAssessment) {
	t.Helper()
	job, resume := seedJob(t, db, 1)
	stage := &model.AssessmentStage{
		Type:      model.StageMCQ,
		JobPostID: job.ID,
		ResumeID:  resume.ID,
		Status:    model.StagePending,
	}
	mcq := &model.MCQAssessment{
		Title:     "Go basics",
		TimeLimit: 20,
		Questions: []model.MCQQuestion{
			{Question: "q1", Options: []string{"a", "b", "c"}, CorrectAnswer: 1, Points: 1, SortOrder: 0},
			{Question: "q2", Options: []string{"a", "b", "c"}, CorrectAnswer: 2, Points: 1, SortOrder: 1},
			{Question: "q3", Options: []string{"a", "b", "c"}, CorrectAnswer: 0, Points: 1, SortOrder: 2},
		},
	}
	repo := repository.NewAssessmentStageRepository(db)
	if err := repo.Create(context.Background(), stage, repository.StageDetails{MCQ: mcq}); err != nil {
		t.Fatalf("create stage: %v", err)
	}
	return stage, mcq
}

func newMCQService(db *gorm.DB) *MCQService {
	svc := NewMCQService(repository.NewMCQRepository(db), repository.NewAssessmentStageRepository(db), db)
	svc.now = newTestClock().Now
	return svc
}

func answersFor(mcq *model.MCQAssessment, selected ...int) []MCQAnswerInput {
	inputs := make([]MCQAnswerInput, 0, len(selected))
	for i, s := range selected {
		inputs = append(inputs, MCQAnswerInput{QuestionID: mcq.Questions[i].ID, SelectedAnswer: intPtr(s), TimeSpent: 10})
	}
	return inputs
}

func TestScoreMCQ(t *testing.T) {
	questions := []model.MCQQuestion{
		{UUIDBase: model.UUIDBase{ID: "q1"}, Options: []string{"a", "b"}, CorrectAnswer: 1, Points: 2},
		{UUIDBase: model.UUIDBase{ID: "q2"}, Options: []string{"a", "b"}, CorrectAnswer: 0, Points: 1},
	}

	result, err := ScoreMCQ("mcq-1", questions, []MCQAnswerInput{{QuestionID: "q1", SelectedAnswer: intPtr(1)}})
	if err != nil {
		t.Fatalf("ScoreMCQ: %v", err)
	}
	if result.TotalScore != 2 || result.TotalPossible != 3 {
		t.Fatalf("score = %d/%d, want 2/3", result.TotalScore, result.TotalPossible)
	}
	if result.Percentage != 66.67 {
		t.Fatalf("percentage = %v, want 66.67", result.Percentage)
	}
	if result.AnsweredQuestions != 1 || result.TotalQuestions != 2 {
		t.Fatalf("answered %d of %d", result.AnsweredQuestions, result.TotalQuestions)
	}

	_, err = ScoreMCQ("mcq-1", questions, []MCQAnswerInput{{QuestionID: "missing", SelectedAnswer: intPtr(0)}})
	requireKind(t, err, util.KindValidation)

	_, err = ScoreMCQ("mcq-1", questions, []MCQAnswerInput{{QuestionID: "q1", SelectedAnswer: intPtr(5)}})
	requireKind(t, err, util.KindValidation)

	_, err = ScoreMCQ("mcq-1", questions, []MCQAnswerInput{
		{QuestionID: "q1", SelectedAnswer: intPtr(1)},
		{QuestionID: "q1", SelectedAnswer: intPtr(0)},
	})
	requireKind(t, err, util.KindValidation)
}

func TestScoreMCQNoQuestions(t *testing.T) {
	result, err := ScoreMCQ("mcq-1", nil, nil)
	if err != nil {
		t.Fatalf("ScoreMCQ: %v", err)
	}
	if result.Percentage != 0 || result.TotalPossible != 0 {
		t.Fatalf("expected zero result, got %+v", result)
	}
}

func TestMCQSubmitCompletesStage(t *testing.T) {
	db := newTestDB(t)
	stage, mcq := seedMCQStage(t, db)
	svc := newMCQService(db)
	ctx := context.Background()
	claims := recruiterClaims(1)

	result, err := svc.Submit(ctx, claims, mcq.ID, MCQSubmitRequest{Answers: answersFor(mcq, 1, 2, 1)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Percentage != 66.67 {
		t.Fatalf("percentage = %v, want 66.67", result.Percentage)
	}
	if result.CorrectAnswers != 2 || result.StageStatus != model.StageCompleted {
		t.Fatalf("unexpected result %+v", result)
	}

	stored, err := repository.NewAssessmentStageRepository(db).FindByID(ctx, stage.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.Status != model.StageCompleted {
		t.Fatalf("stage status = %s, want COMPLETED", stored.Status)
	}
	if stored.ResultScore == nil || *stored.ResultScore != 66.67 {
		t.Fatalf("result score = %v, want 66.67", stored.ResultScore)
	}
	if stored.CompletedAt == nil {
		t.Fatal("completedAt not set")
	}

	_, err = svc.Submit(ctx, claims, mcq.ID, MCQSubmitRequest{Answers: answersFor(mcq, 1, 2, 0)})
	requireKind(t, err, util.KindConflict)

	answers, err := svc.ListAnswers(ctx, claims, mcq.ID, true)
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(answers.Answers) != 3 {
		t.Fatalf("stored %d answers, want 3", len(answers.Answers))
	}
	for _, a := range answers.Answers {
		if a.Question == nil {
			t.Fatalf("answer %s missing question", a.QuestionID)
		}
	}
}

func TestMCQDraftKeepsStageOpen(t *testing.T) {
	db := newTestDB(t)
	stage, mcq := seedMCQStage(t, db)
	svc := newMCQService(db)
	ctx := context.Background()
	claims := recruiterClaims(1)

	draft, err := svc.SaveDraft(ctx, claims, mcq.ID, answersFor(mcq, 0))
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if draft.StageStatus != model.StageInProgress {
		t.Fatalf("draft stage status = %s", draft.StageStatus)
	}

	stageRepo := repository.NewAssessmentStageRepository(db)
	stored, _ := stageRepo.FindByID(ctx, stage.ID)
	if stored.Status != model.StageInProgress || stored.ResultScore != nil {
		t.Fatalf("after draft: status %s score %v", stored.Status, stored.ResultScore)
	}

	// 最终提交覆盖草稿
	if _, err := svc.Submit(ctx, claims, mcq.ID, MCQSubmitRequest{Answers: answersFor(mcq, 1, 2, 0)}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	stored, _ = stageRepo.FindByID(ctx, stage.ID)
	if stored.ResultScore == nil || *stored.ResultScore != 100 {
		t.Fatalf("result score = %v, want 100", stored.ResultScore)
	}
	answers, _ := repository.NewMCQRepository(db).ListAnswers(ctx, mcq.ID)
	if len(answers) != 3 {
		t.Fatalf("stored %d answers, want 3", len(answers))
	}
}

func TestMCQPaperHidesAnswers(t *testing.T) {
	db := newTestDB(t)
	_, mcq := seedMCQStage(t, db)
	svc := newMCQService(db)

	paper, err := svc.GetPaper(context.Background(), recruiterClaims(1), mcq.ID)
	if err != nil {
		t.Fatalf("GetPaper: %v", err)
	}
	if len(paper.Questions) != 3 {
		t.Fatalf("paper has %d questions", len(paper.Questions))
	}
	if paper.Questions[0].Question != "q1" || len(paper.Questions[0].Options) != 3 {
		t.Fatalf("unexpected first question %+v", paper.Questions[0])
	}
}

func TestMCQCrossTenantIsNotFound(t *testing.T) {
	db := newTestDB(t)
	_, mcq := seedMCQStage(t, db)
	svc := newMCQService(db)

	_, err := svc.Submit(context.Background(), recruiterClaims(2), mcq.ID, MCQSubmitRequest{Answers: answersFor(mcq, 1)})
	requireKind(t, err, util.KindNotFound)

	_, err = svc.GetPaper(context.Background(), recruiterClaims(1), "does-not-exist")
	requireKind(t, err, util.KindNotFound)
}
