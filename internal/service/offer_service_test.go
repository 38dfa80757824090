package service

import (
	"context"
	"hire_assessment_backend/internal/model"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/internal/util"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"
)

type offerFixture struct {
	db       *gorm.DB
	clock    *testClock
	svc      *OfferService
	notifier *stubNotifier
	stage    *model.AssessmentStage
}

func newOfferFixture(t *testing.T) *offerFixture {
	t.Helper()
	db := newTestDB(t)
	clock := newTestClock()
	stage, _ := seedMCQStage(t, db)

	companyID := uint(1)
	author := &model.User{BaseModel: model.BaseModel{ID: 7}, Name: "Rita Gomez", Email: "rita@example.com", Password: "x", CompanyID: &companyID}
	if err := db.Create(author).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	notifier := &stubNotifier{}
	svc := NewOfferService(
		repository.NewOfferRepository(db),
		repository.NewJobRepository(db),
		repository.NewUserRepository(db),
		repository.NewAssessmentStageRepository(db),
		NewNotificationServiceWith(notifier),
	)
	svc.now = clock.Now
	return &offerFixture{db: db, clock: clock, svc: svc, notifier: notifier, stage: stage}
}

func (f *offerFixture) create(t *testing.T) *model.OfferLetter {
	t.Helper()
	joining := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	offer, err := f.svc.Create(context.Background(), recruiterClaims(1), CreateOfferRequest{
		JobPostID:       f.stage.JobPostID,
		ResumeID:        f.stage.ResumeID,
		OfferedPosition: " Senior Backend Engineer ",
		Salary:          "USD 120,000",
		JoiningDate:     &joining,
		Notes:           "Remote <friendly>",
	})
	if err != nil {
		t.Fatalf("Create offer: %v", err)
	}
	return offer
}

func strPtr(s string) *string { return &s }

func statusPtr(s model.OfferStatus) *model.OfferStatus { return &s }

func TestOfferCreate(t *testing.T) {
	f := newOfferFixture(t)
	ctx := context.Background()

	offer := f.create(t)
	if offer.Status != model.OfferPending || offer.OfferedPosition != "Senior Backend Engineer" || offer.CompanyID != 1 {
		t.Fatalf("offer = %+v", offer)
	}
	if !offer.OfferDate.Equal(f.clock.Now()) || offer.CreatedByID != 7 {
		t.Fatalf("offer date / author = %v / %d", offer.OfferDate, offer.CreatedByID)
	}

	// 同一候选人已有未结束的录用通知
	_, err := f.svc.Create(ctx, recruiterClaims(1), CreateOfferRequest{
		JobPostID: f.stage.JobPostID, ResumeID: f.stage.ResumeID, OfferedPosition: "Engineer", Salary: "1",
	})
	requireKind(t, err, util.KindConflict)

	_, err = f.svc.Create(ctx, recruiterClaims(2), CreateOfferRequest{
		JobPostID: f.stage.JobPostID, ResumeID: f.stage.ResumeID, OfferedPosition: "Engineer", Salary: "1",
	})
	requireKind(t, err, util.KindNotFound)

	other := &model.JobPost{CompanyID: 1, Title: "Other", Status: model.JobOpen}
	if err := f.db.Create(other).Error; err != nil {
		t.Fatalf("create job: %v", err)
	}
	_, err = f.svc.Create(ctx, recruiterClaims(1), CreateOfferRequest{
		JobPostID: other.ID, ResumeID: f.stage.ResumeID, OfferedPosition: "Engineer", Salary: "1",
	})
	requireKind(t, err, util.KindNotFound)

	_, err = f.svc.Create(ctx, recruiterClaims(1), CreateOfferRequest{
		JobPostID: f.stage.JobPostID, ResumeID: f.stage.ResumeID, OfferedPosition: "  ", Salary: "1",
	})
	requireKind(t, err, util.KindValidation)

	// 撤回后可以重新发放
	if _, err := f.svc.Update(ctx, recruiterClaims(1), offer.ID, UpdateOfferRequest{Status: statusPtr(model.OfferWithdrawn)}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := f.svc.Create(ctx, recruiterClaims(1), CreateOfferRequest{
		JobPostID: f.stage.JobPostID, ResumeID: f.stage.ResumeID, OfferedPosition: "Engineer", Salary: "1",
	}); err != nil {
		t.Fatalf("Create after withdraw: %v", err)
	}
}

func TestOfferStatusFlow(t *testing.T) {
	f := newOfferFixture(t)
	ctx := context.Background()
	offer := f.create(t)

	_, err := f.svc.Update(ctx, recruiterClaims(1), offer.ID, UpdateOfferRequest{Status: statusPtr(model.OfferAccepted)})
	requireKind(t, err, util.KindConflict)
	_, err = f.svc.Update(ctx, recruiterClaims(1), offer.ID, UpdateOfferRequest{Status: statusPtr("DRAFT")})
	requireKind(t, err, util.KindValidation)
	_, err = f.svc.Update(ctx, recruiterClaims(1), offer.ID, UpdateOfferRequest{Salary: strPtr(" ")})
	requireKind(t, err, util.KindValidation)

	f.clock.Advance(time.Hour)
	sent, err := f.svc.Update(ctx, recruiterClaims(1), offer.ID, UpdateOfferRequest{
		Status: statusPtr(model.OfferSent),
		Salary: strPtr("USD 125,000"),
	})
	if err != nil {
		t.Fatalf("send offer: %v", err)
	}
	if sent.Status != model.OfferSent || sent.SentAt == nil || !sent.SentAt.Equal(f.clock.Now()) || sent.Salary != "USD 125,000" {
		t.Fatalf("sent offer = %+v", sent)
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.notifier.sent))
	}
	n := f.notifier.sent[0]
	if n.Email != "lin@example.com" || !strings.Contains(n.Body, "Senior Backend Engineer") || !strings.Contains(n.Subject, "Company 1") {
		t.Fatalf("notification = %+v", n)
	}

	f.clock.Advance(24 * time.Hour)
	accepted, err := f.svc.Update(ctx, recruiterClaims(1), offer.ID, UpdateOfferRequest{
		Status:        statusPtr(model.OfferAccepted),
		ResponseNotes: strPtr("Happy to join"),
	})
	if err != nil {
		t.Fatalf("accept offer: %v", err)
	}
	if accepted.RespondedAt == nil || !accepted.RespondedAt.Equal(f.clock.Now()) || accepted.ResponseNotes != "Happy to join" {
		t.Fatalf("accepted offer = %+v", accepted)
	}

	_, err = f.svc.Update(ctx, recruiterClaims(1), offer.ID, UpdateOfferRequest{Notes: strPtr("late edit")})
	requireKind(t, err, util.KindConflict)
	if len(f.notifier.sent) != 1 {
		t.Fatalf("accepting must not notify again")
	}
}

func TestOfferGetIncludesAssessments(t *testing.T) {
	f := newOfferFixture(t)
	ctx := context.Background()
	offer := f.create(t)

	detail, err := f.svc.Get(ctx, recruiterClaims(1), offer.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if detail.MCQResult != nil || detail.MeetingNotes != nil {
		t.Fatalf("open stages must not be reported: %+v", detail)
	}

	done := f.clock.Now()
	if err := f.db.Model(&model.AssessmentStage{}).Where("id = ?", f.stage.ID).Updates(map[string]interface{}{
		"status": model.StageCompleted, "result_score": 66.67, "completed_at": done,
	}).Error; err != nil {
		t.Fatalf("complete mcq: %v", err)
	}
	rating := 4
	manual := &model.AssessmentStage{Type: model.StageManual, JobPostID: f.stage.JobPostID, ResumeID: f.stage.ResumeID,
		Status: model.StageCompleted, Notes: "Good culture fit", CompletedAt: &done}
	err = f.svc.Stages.Create(ctx, manual, repository.StageDetails{Manual: &model.ManualMeeting{Feedback: "Clear communicator", Rating: &rating}})
	if err != nil {
		t.Fatalf("create manual stage: %v", err)
	}

	detail, err = f.svc.Get(ctx, recruiterClaims(1), offer.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if detail.MCQResult == nil || detail.MCQResult.Score != 66.67 || detail.MCQResult.TotalQuestions != 3 {
		t.Fatalf("mcq result = %+v", detail.MCQResult)
	}
	if detail.MeetingNotes == nil || detail.MeetingNotes.Feedback != "Clear communicator" ||
		detail.MeetingNotes.Rating == nil || *detail.MeetingNotes.Rating != 4 || detail.MeetingNotes.Notes != "Good culture fit" {
		t.Fatalf("meeting notes = %+v", detail.MeetingNotes)
	}

	_, err = f.svc.Get(ctx, recruiterClaims(2), offer.ID)
	requireKind(t, err, util.KindNotFound)
}

func TestOfferLetter(t *testing.T) {
	f := newOfferFixture(t)
	ctx := context.Background()
	offer := f.create(t)

	html, err := f.svc.Letter(ctx, recruiterClaims(1), offer.ID)
	if err != nil {
		t.Fatalf("Letter: %v", err)
	}
	letter := string(html)
	for _, want := range []string{
		"Dear Lin Chen,",
		"<strong>Senior Backend Engineer</strong> at Company 1",
		"USD 120,000",
		"April 1, 2025",
		"March 17, 2025",
		"Rita Gomez",
		"Remote &lt;friendly&gt;",
	} {
		if !strings.Contains(letter, want) {
			t.Fatalf("letter missing %q", want)
		}
	}

	_, err = f.svc.Letter(ctx, recruiterClaims(2), offer.ID)
	requireKind(t, err, util.KindNotFound)
}

func TestOfferListAndDelete(t *testing.T) {
	f := newOfferFixture(t)
	ctx := context.Background()
	offer := f.create(t)

	page, err := f.svc.List(ctx, recruiterClaims(1), OfferListQuery{JobPostID: f.stage.JobPostID, Status: model.OfferPending})
	if err != nil || page.Total != 1 {
		t.Fatalf("List = %+v, %v", page, err)
	}
	page, _ = f.svc.List(ctx, recruiterClaims(1), OfferListQuery{Status: model.OfferSent})
	if page.Total != 0 {
		t.Fatalf("status filter ignored: %d", page.Total)
	}
	page, _ = f.svc.List(ctx, recruiterClaims(2), OfferListQuery{})
	if page.Total != 0 {
		t.Fatalf("cross-tenant list = %d", page.Total)
	}
	_, err = f.svc.List(ctx, recruiterClaims(1), OfferListQuery{Status: "DRAFT"})
	requireKind(t, err, util.KindValidation)

	requireKind(t, f.svc.Delete(ctx, recruiterClaims(2), offer.ID), util.KindNotFound)
	if err := f.svc.Delete(ctx, recruiterClaims(1), offer.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = f.svc.Get(ctx, recruiterClaims(1), offer.ID)
	requireKind(t, err, util.KindNotFound)
}
