package service

import (
	"context"
	"errors"
	"hire_assessment_backend/internal/model"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/internal/util"
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm"
)

// stubCompleter 按提示词中的候选人姓名返回预设结果，失败次数用尽后才返回成功
type stubCompleter struct {
	mu        sync.Mutex
	replies   map[string]string
	failures  map[string][]error
	calls     map[string]int
	lastRoles []string
}

func newStubCompleter() *stubCompleter {
	return &stubCompleter{replies: map[string]string{}, failures: map[string][]error{}, calls: map[string]int{}}
}

func (c *stubCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRoles = append(c.lastRoles, system)
	for name, reply := range c.replies {
		if !strings.Contains(prompt, "Name: "+name+"\n") {
			continue
		}
		c.calls[name]++
		if errs := c.failures[name]; len(errs) > 0 {
			c.failures[name] = errs[1:]
			return "", errs[0]
		}
		return reply, nil
	}
	return "", errors.New("unexpected prompt")
}

func (c *stubCompleter) callsFor(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func seedResumes(t *testing.T, db *gorm.DB, jobID string, names ...string) []*model.Resume {
	t.Helper()
	out := make([]*model.Resume, 0, len(names))
	for _, name := range names {
		r := &model.Resume{JobPostID: jobID, CandidateName: name, Content: name + " has 5 years of Go experience"}
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("create resume: %v", err)
		}
		out = append(out, r)
	}
	return out
}

func newScoringService(db *gorm.DB, ai Completer) *ResumeScoringService {
	svc := NewResumeScoringService(repository.NewJobRepository(db), ai)
	svc.now = newTestClock().Now
	return svc
}

func TestScoreJobRanksAndPersists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	job, seeded := seedJob(t, db, 1)
	extra := seedResumes(t, db, job.ID, "Ana Silva", "Bo Park")

	ai := newStubCompleter()
	ai.replies["Lin Chen"] = "```json\n{\"match_score\": 62.5, \"matched_skills\": [\"Go\"], \"recommendation\": \"consider\", \"summary\": \"Solid.\"}\n```"
	ai.replies["Ana Silva"] = `{"match_score": 91, "matched_skills": ["Go", "Kubernetes"], "recommendation": "Shortlist", "summary": "Strong match."}`
	ai.replies["Bo Park"] = `Here you go: {"match_score": 140, "matched_skills": [], "summary": "Over the top."}`
	svc := newScoringService(db, ai)

	rankings, err := svc.ScoreJob(ctx, recruiterClaims(1), job.ID, ScoreResumesRequest{})
	if err != nil {
		t.Fatalf("ScoreJob: %v", err)
	}
	if len(rankings) != 3 {
		t.Fatalf("rankings = %d, want 3", len(rankings))
	}
	got := []string{rankings[0].CandidateName, rankings[1].CandidateName, rankings[2].CandidateName}
	if strings.Join(got, ",") != "Bo Park,Ana Silva,Lin Chen" {
		t.Fatalf("order = %v", got)
	}
	if rankings[0].MatchScore != 100 || rankings[0].Recommendation != RecommendShortlist {
		t.Fatalf("clamped ranking = %+v", rankings[0])
	}
	if rankings[2].Recommendation != RecommendConsider || rankings[2].Provisional {
		t.Fatalf("ranking = %+v", rankings[2])
	}
	for _, role := range ai.lastRoles {
		if role != resumeScorerRole {
			t.Fatalf("system prompt = %q", role)
		}
	}

	stored, err := svc.Jobs.FindResumeByID(ctx, extra[0].ID)
	if err != nil {
		t.Fatalf("FindResumeByID: %v", err)
	}
	if stored.MatchScore == nil || *stored.MatchScore != 91 || stored.Recommendation != RecommendShortlist {
		t.Fatalf("stored score = %v / %q", stored.MatchScore, stored.Recommendation)
	}
	if len(stored.MatchedSkills) != 2 || stored.MatchSummary != "Strong match." {
		t.Fatalf("stored details = %v / %q", stored.MatchedSkills, stored.MatchSummary)
	}
	if stored.ScoredAt == nil || !stored.ScoredAt.Equal(newTestClock().Now()) {
		t.Fatalf("scoredAt = %v", stored.ScoredAt)
	}

	// 只评指定简历
	only, err := svc.ScoreJob(ctx, recruiterClaims(1), job.ID, ScoreResumesRequest{ResumeIDs: []string{seeded.ID, seeded.ID}})
	if err != nil || len(only) != 1 || only[0].ResumeID != seeded.ID {
		t.Fatalf("ScoreJob subset = %+v, %v", only, err)
	}
}

func TestScoreJobRetriesOnceThenFallsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	job, _ := seedJob(t, db, 1)
	seedResumes(t, db, job.ID, "Ana Silva", "Bo Park")

	ai := newStubCompleter()
	reply := `{"match_score": 80, "recommendation": "Shortlist", "summary": "ok"}`
	ai.replies["Lin Chen"] = reply
	ai.replies["Ana Silva"] = reply
	ai.replies["Bo Park"] = reply
	ai.failures["Lin Chen"] = []error{&AIStatusError{StatusCode: 503}}
	ai.failures["Ana Silva"] = []error{&AIStatusError{StatusCode: 400}}
	ai.failures["Bo Park"] = []error{errors.New("timeout"), errors.New("timeout")}
	svc := newScoringService(db, ai)

	rankings, err := svc.ScoreJob(ctx, recruiterClaims(1), job.ID, ScoreResumesRequest{})
	if err != nil {
		t.Fatalf("ScoreJob: %v", err)
	}
	byName := map[string]ResumeRanking{}
	for _, r := range rankings {
		byName[r.CandidateName] = r
	}

	if r := byName["Lin Chen"]; r.Provisional || r.MatchScore != 80 || ai.callsFor("Lin Chen") != 2 {
		t.Fatalf("5xx should be retried once: %+v calls=%d", r, ai.callsFor("Lin Chen"))
	}
	if r := byName["Ana Silva"]; !r.Provisional || r.MatchScore != provisionalScore || ai.callsFor("Ana Silva") != 1 {
		t.Fatalf("4xx should fall back without retry: %+v calls=%d", r, ai.callsFor("Ana Silva"))
	}
	if r := byName["Bo Park"]; !r.Provisional || r.Recommendation != RecommendConsider || r.Summary != provisionalSummary {
		t.Fatalf("second failure should fall back: %+v", r)
	}
	if ai.callsFor("Bo Park") != 2 {
		t.Fatalf("Bo Park calls = %d, want 2", ai.callsFor("Bo Park"))
	}
}

func TestScoreJobWithoutAIKeepsExistingScore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	job, resume := seedJob(t, db, 1)
	scored := seedResumes(t, db, job.ID, "Ana Silva")[0]
	prior := 88.0
	if err := db.Model(&model.Resume{}).Where("id = ?", scored.ID).Updates(map[string]interface{}{
		"match_score": prior, "recommendation": RecommendShortlist,
	}).Error; err != nil {
		t.Fatalf("seed score: %v", err)
	}

	svc := newScoringService(db, nil)
	rankings, err := svc.ScoreJob(ctx, recruiterClaims(1), job.ID, ScoreResumesRequest{})
	if err != nil {
		t.Fatalf("ScoreJob: %v", err)
	}
	for _, r := range rankings {
		if !r.Provisional || r.MatchScore != provisionalScore {
			t.Fatalf("ranking = %+v, want provisional", r)
		}
	}

	kept, _ := svc.Jobs.FindResumeByID(ctx, scored.ID)
	if kept.MatchScore == nil || *kept.MatchScore != prior || kept.Recommendation != RecommendShortlist {
		t.Fatalf("existing score overwritten: %v %q", kept.MatchScore, kept.Recommendation)
	}
	fresh, _ := svc.Jobs.FindResumeByID(ctx, resume.ID)
	if fresh.MatchScore == nil || *fresh.MatchScore != provisionalScore || fresh.MatchSummary != provisionalSummary {
		t.Fatalf("unscored resume = %v %q", fresh.MatchScore, fresh.MatchSummary)
	}
}

func TestScoreJobErrors(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	job, _ := seedJob(t, db, 1)
	svc := newScoringService(db, newStubCompleter())

	_, err := svc.ScoreJob(ctx, recruiterClaims(2), job.ID, ScoreResumesRequest{})
	requireKind(t, err, util.KindNotFound)

	_, err = svc.ScoreJob(ctx, recruiterClaims(1), "missing", ScoreResumesRequest{})
	requireKind(t, err, util.KindNotFound)

	_, err = svc.ScoreJob(ctx, recruiterClaims(1), job.ID, ScoreResumesRequest{ResumeIDs: []string{"other"}})
	requireKind(t, err, util.KindNotFound)

	empty := &model.JobPost{CompanyID: 1, Title: "Empty", Status: model.JobOpen}
	if err := db.Create(empty).Error; err != nil {
		t.Fatalf("create job: %v", err)
	}
	_, err = svc.ScoreJob(ctx, recruiterClaims(1), empty.ID, ScoreResumesRequest{})
	requireKind(t, err, util.KindValidation)
}

func TestParseResumeScore(t *testing.T) {
	score, err := ParseResumeScore(`{"match_score": -3, "recommendation": "maybe"}`)
	if err != nil {
		t.Fatalf("ParseResumeScore: %v", err)
	}
	if score.MatchScore != 0 || score.Recommendation != RecommendReject {
		t.Fatalf("score = %+v", score)
	}

	score, err = ParseResumeScore(`{"match_score": 55.556}`)
	if err != nil || score.MatchScore != 55.56 || score.Recommendation != RecommendConsider {
		t.Fatalf("score = %+v, %v", score, err)
	}

	if _, err := ParseResumeScore("no json here"); err == nil {
		t.Fatal("expected error for missing JSON")
	}
	if _, err := ParseResumeScore(`{"match_score": "high"}`); err == nil {
		t.Fatal("expected error for non-numeric score")
	}
}
