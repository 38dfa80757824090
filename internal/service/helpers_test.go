package service

import (
	"fmt"
	"hire_assessment_backend/internal/config"
	"hire_assessment_backend/internal/model"
	"hire_assessment_backend/internal/util"
	"hire_assessment_backend/pkg/database"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testClient = "10.0.0.1"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fastPasswords 测试中使用最低 bcrypt 代价
func fastPasswords() *SessionPasswordService {
	return &SessionPasswordService{cost: bcrypt.MinCost}
}

func testSettings(cfg config.AssessmentConfig) *AssessmentSettings {
	if cfg.CandidateBaseURL == "" {
		cfg.CandidateBaseURL = "https://hire.example.com/"
	}
	return NewAssessmentSettings(cfg)
}

func recruiterClaims(companyID uint) *util.Claims {
	return &util.Claims{UserID: 7, Role: model.RoleRecruiter, CompanyID: companyID, Email: "recruiter@example.com"}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// seedJob 创建公司、职位和简历
func seedJob(t *testing.T, db *gorm.DB, companyID uint) (*model.JobPost, *model.Resume) {
	t.Helper()
	company := &model.Company{BaseModel: model.BaseModel{ID: companyID}, Name: fmt.Sprintf("Company %d", companyID)}
	if err := db.Create(company).Error; err != nil {
		t.Fatalf("create company: %v", err)
	}
	job := &model.JobPost{CompanyID: companyID, Title: "Backend Engineer", Status: model.JobOpen}
	if err := db.Create(job).Error; err != nil {
		t.Fatalf("create job: %v", err)
	}
	resume := &model.Resume{JobPostID: job.ID, CandidateName: "Lin Chen", CandidateEmail: "lin@example.com"}
	if err := db.Create(resume).Error; err != nil {
		t.Fatalf("create resume: %v", err)
	}
	return job, resume
}

func requireKind(t *testing.T, err error, kind util.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := util.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []AttemptEvent
}

func (p *recordingPublisher) Publish(ev AttemptEvent) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}
