package service

import (
	"context"
	"encoding/json"
	"hire_assessment_backend/internal/config"
	"hire_assessment_backend/internal/model"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/internal/util"
	"strings"
	"sync"
	"testing"
	"time"
)

type stubNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (s *stubNotifier) Channel() string { return "stub" }

func (s *stubNotifier) Send(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return s.err
}

type interviewFixture struct {
	clock    *testClock
	svc      *InterviewService
	attempts *AttemptService
	notifier *stubNotifier
}

func newInterviewFixture(t *testing.T) *interviewFixture {
	t.Helper()
	db := newTestDB(t)
	clock := newTestClock()
	passwords := fastPasswords()
	settings := testSettings(config.AssessmentConfig{DefaultDurationMins: 45})
	repo := repository.NewInterviewRepository(db)

	attempts := NewAttemptService(repo, db, passwords, NewVerifyLimiter(nil, settings), settings)
	attempts.now = clock.Now
	notifier := &stubNotifier{}
	svc := NewInterviewService(repo, repository.NewMCQRepository(db), db, attempts, passwords,
		NewNotificationServiceWith(notifier), settings)
	svc.now = clock.Now
	return &interviewFixture{clock: clock, svc: svc, attempts: attempts, notifier: notifier}
}

func (f *interviewFixture) create(t *testing.T, claims *util.Claims) *model.Interview {
	t.Helper()
	interview, err := f.svc.Create(context.Background(), claims, CreateInterviewRequest{
		Title:          "Backend screen",
		CandidateName:  "Ana Silva",
		CandidateEmail: "ana@example.com",
		Questions: []InterviewQuestionInput{
			{Text: "2+2", Type: model.QuestionFillBlank, Correct: json.RawMessage(`"4"`)},
			{Text: "Channels are goroutine safe", Type: model.QuestionTrueFalse, Correct: json.RawMessage(`true`)},
		},
	})
	if err != nil {
		t.Fatalf("Create interview: %v", err)
	}
	return interview
}

func TestBuildInterviewQuestions(t *testing.T) {
	questions, err := BuildInterviewQuestions([]InterviewQuestionInput{
		{Text: "tf", Type: model.QuestionTrueFalse},
		{Text: "mc", Type: model.QuestionMultipleChoice, Options: []string{"x", "y"}, Points: 3},
	}, 2)
	if err != nil {
		t.Fatalf("BuildInterviewQuestions: %v", err)
	}
	if len(questions[0].Options) != 2 || questions[0].Options[0] != "True" {
		t.Fatalf("true/false options = %v", questions[0].Options)
	}
	if questions[0].Points != 1 || questions[1].Points != 3 {
		t.Fatalf("points = %d, %d", questions[0].Points, questions[1].Points)
	}
	if questions[1].OrderIndex != 3 {
		t.Fatalf("order index = %d, want 3", questions[1].OrderIndex)
	}

	_, err = BuildInterviewQuestions([]InterviewQuestionInput{{Text: "mc", Type: model.QuestionMultipleChoice, Options: []string{"only"}}}, 0)
	requireKind(t, err, util.KindValidation)

	_, err = BuildInterviewQuestions([]InterviewQuestionInput{{Text: "?", Type: "ORAL"}}, 0)
	requireKind(t, err, util.KindValidation)
}

func TestInterviewCreateDefaults(t *testing.T) {
	f := newInterviewFixture(t)
	interview := f.create(t, recruiterClaims(1))

	if interview.Duration != 45 {
		t.Fatalf("duration = %d, want default 45", interview.Duration)
	}
	if interview.CompanyID != 1 || interview.Status != model.InterviewDraft {
		t.Fatalf("unexpected interview %+v", interview)
	}

	_, err := f.svc.Create(context.Background(), recruiterClaims(1), CreateInterviewRequest{Title: "empty"})
	requireKind(t, err, util.KindValidation)

	_, err = f.svc.Get(context.Background(), recruiterClaims(2), interview.ID)
	requireKind(t, err, util.KindNotFound)
}

func TestInterviewSend(t *testing.T) {
	f := newInterviewFixture(t)
	claims := recruiterClaims(1)
	interview := f.create(t, claims)
	ctx := context.Background()

	result, err := f.svc.Send(ctx, claims, interview.ID, SendInterviewRequest{})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(result.SessionPassword) != sessionPasswordLength {
		t.Fatalf("session password %q has wrong length", result.SessionPassword)
	}
	if result.TestLink != "https://hire.example.com/interview/"+result.AttemptID {
		t.Fatalf("test link = %s", result.TestLink)
	}
	if !result.ExpiresAt.Equal(f.clock.Now().Add(45 * time.Minute)) {
		t.Fatalf("expiresAt = %v", result.ExpiresAt)
	}
	if !strings.HasPrefix(result.QRCode, "data:image/png;base64,") {
		t.Fatalf("missing qr code")
	}

	stored, err := f.svc.Repo.FindByID(ctx, interview.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.SessionPasswordHash == "" || stored.SessionPasswordHash == result.SessionPassword {
		t.Fatalf("session password must be stored as a digest")
	}
	if stored.Status != model.InterviewPublished {
		t.Fatalf("status = %s, want PUBLISHED", stored.Status)
	}

	if len(f.notifier.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(f.notifier.sent))
	}
	n := f.notifier.sent[0]
	if n.Email != "ana@example.com" || !strings.Contains(n.Body, result.SessionPassword) {
		t.Fatalf("candidate mail missing credentials: %+v", n)
	}
	if strings.Contains(n.Alert, result.SessionPassword) {
		t.Fatalf("alert leaks the session password: %s", n.Alert)
	}

	if err := f.attempts.VerifyPassword(ctx, result.AttemptID, result.SessionPassword, "10.0.0.1"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
}

func TestInterviewSendRejectsActiveAttempt(t *testing.T) {
	f := newInterviewFixture(t)
	claims := recruiterClaims(1)
	interview := f.create(t, claims)
	ctx := context.Background()

	first, err := f.svc.Send(ctx, claims, interview.ID, SendInterviewRequest{})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	_, err = f.svc.Send(ctx, claims, interview.ID, SendInterviewRequest{})
	requireKind(t, err, util.KindConflict)

	// 过期后允许重新发送，旧口令随之失效
	f.clock.Advance(46 * time.Minute)
	second, err := f.svc.Send(ctx, claims, interview.ID, SendInterviewRequest{CandidateEmail: "other@example.com"})
	if err != nil {
		t.Fatalf("resend after expiry: %v", err)
	}
	if second.AttemptID == first.AttemptID {
		t.Fatal("resend reused the expired attempt")
	}

	old, err := f.svc.Repo.FindAttempt(ctx, first.AttemptID)
	if err != nil {
		t.Fatalf("FindAttempt: %v", err)
	}
	if old.Status != model.AttemptExpired {
		t.Fatalf("first attempt status = %s, want EXPIRED", old.Status)
	}
	if first.SessionPassword != second.SessionPassword {
		err = f.attempts.VerifyPassword(ctx, second.AttemptID, first.SessionPassword, "10.0.0.1")
		requireKind(t, err, util.KindUnauthorized)
	}
}

func TestInterviewSendAfterSubmitIsConflict(t *testing.T) {
	f := newInterviewFixture(t)
	claims := recruiterClaims(1)
	interview := f.create(t, claims)
	ctx := context.Background()

	sent, err := f.svc.Send(ctx, claims, interview.ID, SendInterviewRequest{})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := f.attempts.Submit(ctx, sent.AttemptID, sent.SessionPassword, testClient, AttemptSubmitRequest{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	_, err = f.svc.Send(ctx, claims, interview.ID, SendInterviewRequest{})
	requireKind(t, err, util.KindConflict)
}

func TestInterviewSendRejectsZeroDuration(t *testing.T) {
	f := newInterviewFixture(t)
	claims := recruiterClaims(1)
	interview := f.create(t, claims)
	if err := f.svc.Repo.DB.Model(&model.Interview{}).Where("id = ?", interview.ID).Update("duration", 0).Error; err != nil {
		t.Fatalf("reset duration: %v", err)
	}

	_, err := f.svc.Send(context.Background(), claims, interview.ID, SendInterviewRequest{})
	requireKind(t, err, util.KindValidation)
	if len(f.notifier.sent) != 0 {
		t.Fatalf("notified for a rejected send: %+v", f.notifier.sent)
	}
}
