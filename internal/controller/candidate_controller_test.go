package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"hire_assessment_backend/internal/config"
	"hire_assessment_backend/internal/model"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/internal/service"
	"hire_assessment_backend/internal/util"
	"hire_assessment_backend/pkg/database"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const candidateSecret = "K7P2QX9M"

type candidateFixture struct {
	router    *gin.Engine
	attemptID string
	question  string
}

func newCandidateFixture(t *testing.T) *candidateFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(candidateSecret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	interview := &model.Interview{
		CompanyID:           1,
		Title:               "Screen",
		Duration:            60,
		SessionPasswordHash: string(digest),
		Questions: []model.InterviewQuestion{
			{Text: "Pick b", Type: model.QuestionMultipleChoice, Options: []string{"a", "b"}, CorrectAnswer: datatypes.JSON(`"b"`), Points: 1},
		},
	}
	repo := repository.NewInterviewRepository(db)
	if err := repo.Create(context.Background(), interview); err != nil {
		t.Fatalf("create interview: %v", err)
	}

	settings := service.NewAssessmentSettings(config.AssessmentConfig{})
	attempts := service.NewAttemptService(repo, db, service.NewSessionPasswordService(), service.NewVerifyLimiter(nil, settings), settings)
	attempt, err := attempts.Create(context.Background(), interview.ID, 1)
	if err != nil {
		t.Fatalf("create attempt: %v", err)
	}

	ctrl := NewCandidateController(attempts, nil)
	r := gin.New()
	g := r.Group("/api/candidate/attempts/:attemptId")
	g.POST("/verify", ctrl.VerifyAttempt)
	g.GET("", ctrl.TakeAttempt)
	g.POST("/submit", ctrl.SubmitAttempt)

	return &candidateFixture{router: r, attemptID: attempt.ID, question: interview.Questions[0].ID}
}

func (f *candidateFixture) do(method, path, body, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/candidate/attempts/"+f.attemptID+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(util.SessionPasswordHeader, secret)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeKind(t *testing.T, w *httptest.ResponseRecorder) util.ErrorKind {
	t.Helper()
	var resp util.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal %s: %v", w.Body.String(), err)
	}
	return resp.Kind
}

func TestCandidateVerify(t *testing.T) {
	f := newCandidateFixture(t)

	if w := f.do(http.MethodPost, "/verify", `{"password":"WRONG000"}`, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d", w.Code)
	}
	w := f.do(http.MethodPost, "/verify", `{"password":"`+candidateSecret+`"}`, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"verified":true`) {
		t.Fatalf("verify: status %d body %s", w.Code, w.Body.String())
	}
}

func TestCandidateTakeRequiresSecret(t *testing.T) {
	f := newCandidateFixture(t)

	if w := f.do(http.MethodGet, "", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no secret: status %d", w.Code)
	}
	w := f.do(http.MethodGet, "", "", candidateSecret)
	if w.Code != http.StatusOK {
		t.Fatalf("take: status %d body %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), `"correct"`) {
		t.Fatalf("candidate view leaks answers: %s", w.Body.String())
	}
}

func TestCandidateSubmit(t *testing.T) {
	f := newCandidateFixture(t)
	body := `{"answers":[{"questionId":"` + f.question + `","answer":"b","timeSpent":12}]}`

	w := f.do(http.MethodPost, "/submit", `{"answers":[],"score":100}`, candidateSecret)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: status %d body %s", w.Code, w.Body.String())
	}

	w = f.do(http.MethodPost, "/submit", body, candidateSecret)
	if w.Code != http.StatusOK {
		t.Fatalf("submit: status %d body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data service.AttemptSubmitResult `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data.Score != 1 || resp.Data.Percentage != 100 || resp.Data.Status != model.AttemptCompleted {
		t.Fatalf("result = %+v", resp.Data)
	}

	w = f.do(http.MethodPost, "/submit", body, candidateSecret)
	if w.Code != http.StatusConflict || decodeKind(t, w) != util.KindConflict {
		t.Fatalf("second submit: status %d body %s", w.Code, w.Body.String())
	}
}

func TestCandidateSubmitPasswordInBody(t *testing.T) {
	f := newCandidateFixture(t)
	body := `{"password":"` + candidateSecret + `","answers":[{"questionId":"` + f.question + `","answer":"a"}]}`

	w := f.do(http.MethodPost, "/submit", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("submit: status %d body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"score":0`) {
		t.Fatalf("wrong answer scored: %s", w.Body.String())
	}
}
