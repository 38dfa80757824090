package service

import (
	"context"
	"hire_assessment_backend/internal/model"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/internal/util"
	"testing"

	"gorm.io/gorm"
)

func newStageService(db *gorm.DB) *AssessmentStageService {
	return NewAssessmentStageService(
		repository.NewAssessmentStageRepository(db),
		repository.NewJobRepository(db),
		repository.NewMCQRepository(db),
		fastPasswords(),
	)
}

func TestStageCreateMCQStoresPassingScore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	job, resume := seedJob(t, db, 1)
	svc := newStageService(db)

	result, err := svc.Create(ctx, recruiterClaims(1), CreateStageRequest{
		Type:      model.StageMCQ,
		JobPostID: job.ID,
		ResumeID:  resume.ID,
		MCQ: &MCQStageInput{
			TimeLimit:    30,
			PassingScore: 70,
			Questions: []MCQQuestionInput{
				{Question: "Zero value of a map?", Options: []string{"nil", "{}"}, CorrectAnswer: intPtr(0)},
				{Question: "Goroutine keyword?", Options: []string{"go", "async"}, CorrectAnswer: intPtr(0), Points: 3},
			},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.SessionPassword != "" || result.Stage.Status != model.StagePending {
		t.Fatalf("result = %+v", result)
	}

	stored, err := svc.Repo.FindWithDetails(ctx, result.Stage.ID)
	if err != nil {
		t.Fatalf("FindWithDetails: %v", err)
	}
	mcq := stored.MCQAssessment
	if mcq == nil || mcq.PassingScore != 70 || mcq.Title != "MCQ Assessment" || len(mcq.Questions) != 2 {
		t.Fatalf("mcq = %+v", mcq)
	}
	if mcq.Questions[0].Points != 1 || mcq.Questions[1].Points != 3 {
		t.Fatalf("points = %d, %d", mcq.Questions[0].Points, mcq.Questions[1].Points)
	}
}

func TestStageCreateValidation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	job, resume := seedJob(t, db, 1)
	svc := newStageService(db)

	cases := []struct {
		name string
		req  CreateStageRequest
		kind util.ErrorKind
	}{
		{"unknown type", CreateStageRequest{Type: "PHONE", JobPostID: job.ID, ResumeID: resume.ID}, util.KindValidation},
		{"mcq without details", CreateStageRequest{Type: model.StageMCQ, JobPostID: job.ID, ResumeID: resume.ID}, util.KindValidation},
		{"answer out of range", CreateStageRequest{Type: model.StageMCQ, JobPostID: job.ID, ResumeID: resume.ID, MCQ: &MCQStageInput{
			Questions: []MCQQuestionInput{{Question: "q", Options: []string{"a", "b"}, CorrectAnswer: intPtr(2)}},
		}}, util.KindValidation},
		{"missing job", CreateStageRequest{Type: model.StageManual, JobPostID: "missing", ResumeID: resume.ID}, util.KindNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, recruiterClaims(1), tc.req)
			requireKind(t, err, tc.kind)
		})
	}

	_, err := svc.Create(ctx, recruiterClaims(2), CreateStageRequest{Type: model.StageManual, JobPostID: job.ID, ResumeID: resume.ID})
	requireKind(t, err, util.KindNotFound)
}
