package service

import (
	"context"
	"errors"
	"hire_assessment_backend/internal/config"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/internal/util"
	"strings"
	"testing"
)

const sampleBank = `
category: golang
difficulty: easy
questions:
  - question: Which keyword starts a goroutine?
    options: [go, async, spawn, thread]
    answer: 0
  - question: Zero value of a map?
    options: ["empty map", "nil", "panic"]
    answer: 1
    points: 2
    difficulty: medium
`

func TestParseTemplateBank(t *testing.T) {
	inputs, err := ParseTemplateBank(strings.NewReader(sampleBank))
	if err != nil {
		t.Fatalf("ParseTemplateBank: %v", err)
	}
	if len(inputs) != 2 {
		t.Fatalf("got %d questions, want 2", len(inputs))
	}
	if inputs[0].Category != "golang" || inputs[0].Difficulty != "easy" {
		t.Fatalf("file defaults not applied: %+v", inputs[0])
	}
	if inputs[1].Difficulty != "medium" || inputs[1].Points != 2 || *inputs[1].CorrectAnswer != 1 {
		t.Fatalf("question overrides lost: %+v", inputs[1])
	}

	_, err = ParseTemplateBank(strings.NewReader("category: x\nquestions: []\n"))
	requireKind(t, err, util.KindValidation)

	_, err = ParseTemplateBank(strings.NewReader("questions: [unclosed"))
	requireKind(t, err, util.KindValidation)
}

func TestParseGeneratedQuestions(t *testing.T) {
	raw := "```json\n" + `[
  {"question": "What does defer do?", "options": ["a", "b", "c", "d"], "correctAnswer": 2, "points": 0},
  {"question": "Second", "options": ["x", "y"], "correctAnswer": 1, "points": 3},
  {"question": "Third", "options": ["x", "y"], "correctAnswer": 0}
]` + "\n```"

	questions, err := ParseGeneratedQuestions(raw, 2)
	if err != nil {
		t.Fatalf("ParseGeneratedQuestions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(questions))
	}
	if questions[0].Points != 1 || questions[1].Points != 3 {
		t.Fatalf("points = %d, %d", questions[0].Points, questions[1].Points)
	}

	wrapped := `{"questions": [{"question": "Q", "options": ["a", "b"], "correctAnswer": 0}]}`
	if qs, err := ParseGeneratedQuestions(wrapped, 0); err != nil || len(qs) != 1 {
		t.Fatalf("wrapped form: %v %v", qs, err)
	}

	bad := []string{
		`not json`,
		`[]`,
		`[{"question": "", "options": ["a", "b"], "correctAnswer": 0}]`,
		`[{"question": "Q", "options": ["a"], "correctAnswer": 0}]`,
		`[{"question": "Q", "options": ["a", "b"], "correctAnswer": 2}]`,
	}
	for _, b := range bad {
		if _, err := ParseGeneratedQuestions(b, 0); err == nil {
			t.Fatalf("expected error for %s", b)
		}
	}
}

type stubGenerator struct {
	questions []GeneratedQuestion
	err       error
}

func (g *stubGenerator) Generate(ctx context.Context, req GenerateRequest) ([]GeneratedQuestion, error) {
	return g.questions, g.err
}

func TestTemplateGenerate(t *testing.T) {
	db := newTestDB(t)
	gen := &stubGenerator{questions: []GeneratedQuestion{
		{Question: "Q1", Options: []string{"a", "b"}, CorrectAnswer: 1, Points: 1},
		{Question: "Q2", Options: []string{"a", "b"}, CorrectAnswer: 0, Points: 2, Category: "runtime"},
	}}
	svc := NewTemplateService(repository.NewMCQRepository(db), gen, testSettings(config.AssessmentConfig{MaxGeneratedQuestion: 5}))
	ctx := context.Background()

	templates, err := svc.Generate(ctx, recruiterClaims(1), GenerateRequest{Topic: "golang", Count: 2, Difficulty: "hard"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(templates) != 2 {
		t.Fatalf("got %d templates, want 2", len(templates))
	}
	if templates[0].Category != "golang" || templates[1].Category != "runtime" || templates[0].Difficulty != "hard" {
		t.Fatalf("defaults not applied: %+v", templates)
	}
	if templates[0].Source != TemplateSourceAI || templates[0].CompanyID != 1 || templates[0].ID == "" {
		t.Fatalf("template not stored for the caller: %+v", templates[0])
	}

	_, err = svc.Generate(ctx, recruiterClaims(1), GenerateRequest{Topic: "golang", Count: 6})
	requireKind(t, err, util.KindValidation)

	gen.err = errors.New("upstream 503")
	_, err = svc.Generate(ctx, recruiterClaims(1), GenerateRequest{Topic: "golang", Count: 1})
	requireKind(t, err, util.KindInternal)

	gen.err = ErrGeneratorDisabled
	_, err = svc.Generate(ctx, recruiterClaims(1), GenerateRequest{Topic: "golang", Count: 1})
	requireKind(t, err, util.KindValidation)
}

func TestTemplateGenerateWithoutGenerator(t *testing.T) {
	svc := NewTemplateService(nil, nil, testSettings(config.AssessmentConfig{}))
	_, err := svc.Generate(context.Background(), recruiterClaims(1), GenerateRequest{Topic: "go", Count: 3})
	requireKind(t, err, util.KindValidation)
}

func TestTemplateImport(t *testing.T) {
	db := newTestDB(t)
	svc := NewTemplateService(repository.NewMCQRepository(db), nil, testSettings(config.AssessmentConfig{}))

	templates, err := svc.Import(context.Background(), recruiterClaims(3), strings.NewReader(sampleBank))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(templates) != 2 || templates[0].Source != TemplateSourceImport || templates[0].CompanyID != 3 {
		t.Fatalf("unexpected templates %+v", templates)
	}
	if templates[0].Points != 1 {
		t.Fatalf("default points = %d, want 1", templates[0].Points)
	}
}
