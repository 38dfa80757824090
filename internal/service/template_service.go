package service

import (
	"context"
	"errors"
	"fmt"
	"hire_assessment_backend/internal/model"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/internal/util"
	"hire_assessment_backend/pkg/logger"
	"io"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	TemplateSourceManual = "MANUAL"
	TemplateSourceAI     = "AI"
	TemplateSourceImport = "IMPORT"
)

type TemplateService struct {
	Repo      *repository.MCQRepository
	Generator QuestionGenerator
	Settings  *AssessmentSettings
}

func NewTemplateService(repo *repository.MCQRepository, generator QuestionGenerator, settings *AssessmentSettings) *TemplateService {
	return &TemplateService{Repo: repo, Generator: generator, Settings: settings}
}

type TemplateListQuery struct {
	Category   string `form:"category"`
	Difficulty string `form:"difficulty"`
	Page       int    `form:"page"`
	Limit      int    `form:"limit"`
}

func (s *TemplateService) List(ctx context.Context, claims *util.Claims, q TemplateListQuery) (*util.PageResponse, error) {
	page, limit := util.ClampPage(q.Page, q.Limit)
	list, total, err := s.Repo.ListTemplates(ctx, repository.TemplateFilter{
		CompanyID:  companyScope(claims),
		Category:   q.Category,
		Difficulty: q.Difficulty,
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		return nil, util.NewInternalError("list templates", err)
	}
	return &util.PageResponse{List: list, Total: total, Page: page, Limit: limit}, nil
}

type CreateTemplatesRequest struct {
	Questions []MCQQuestionInput `json:"questions" binding:"required,min=1,dive"`
}

func (s *TemplateService) Create(ctx context.Context, claims *util.Claims, req CreateTemplatesRequest) ([]model.MCQTemplate, error) {
	questions, err := BuildMCQQuestions(req.Questions)
	if err != nil {
		return nil, err
	}
	templates := make([]model.MCQTemplate, 0, len(questions))
	for _, q := range questions {
		templates = append(templates, templateFrom(claims, q.Question, q.Options, q.CorrectAnswer, q.Points,
			q.Explanation, q.Difficulty, q.Category, TemplateSourceManual))
	}
	if err := s.Repo.CreateTemplates(ctx, templates); err != nil {
		return nil, util.NewInternalError("create templates", err)
	}
	return templates, nil
}

func (s *TemplateService) Delete(ctx context.Context, claims *util.Claims, id string) error {
	t, err := s.Repo.FindTemplate(ctx, id)
	if err != nil {
		return lookupError(err, "Template")
	}
	if err := ensureCompanyAccess(claims, t.CompanyID, "Template"); err != nil {
		return err
	}
	if err := s.Repo.DeleteTemplate(ctx, id); err != nil {
		return util.NewInternalError("delete template", err)
	}
	return nil
}

// Generate 调用外部出题服务，全部校验通过后才写入题库
func (s *TemplateService) Generate(ctx context.Context, claims *util.Claims, req GenerateRequest) ([]model.MCQTemplate, error) {
	max := s.Settings.Get().MaxGeneratedQuestion
	if req.Count > max {
		return nil, util.NewValidationError(fmt.Sprintf("count must not exceed %d", max))
	}

	if s.Generator == nil {
		return nil, util.NewValidationError("question generation is not configured")
	}
	generated, err := s.Generator.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, ErrGeneratorDisabled) {
			return nil, util.NewValidationError("question generation is not configured")
		}
		logger.Log.Error("question generation failed", zap.Error(err), zap.String("topic", req.Topic))
		return nil, util.NewInternalError("generate questions", err)
	}

	templates := make([]model.MCQTemplate, 0, len(generated))
	for _, g := range generated {
		difficulty := g.Difficulty
		if difficulty == "" {
			difficulty = req.Difficulty
		}
		category := g.Category
		if category == "" {
			category = req.Topic
		}
		templates = append(templates, templateFrom(claims, g.Question, g.Options, g.CorrectAnswer, g.Points,
			g.Explanation, difficulty, category, TemplateSourceAI))
	}
	if err := s.Repo.CreateTemplates(ctx, templates); err != nil {
		return nil, util.NewInternalError("save generated templates", err)
	}

	logger.Log.Info("questions generated",
		zap.String("topic", req.Topic),
		zap.Int("count", len(templates)),
		zap.Uint("by", claims.UserID),
	)
	return templates, nil
}

// TemplateBank YAML 题库文件格式
type TemplateBank struct {
	Category   string         `yaml:"category"`
	Difficulty string         `yaml:"difficulty"`
	Questions  []TemplateItem `yaml:"questions"`
}

type TemplateItem struct {
	Question    string   `yaml:"question"`
	Options     []string `yaml:"options"`
	Answer      int      `yaml:"answer"`
	Points      int      `yaml:"points"`
	Explanation string   `yaml:"explanation"`
	Difficulty  string   `yaml:"difficulty"`
	Category    string   `yaml:"category"`
}

// ParseTemplateBank 解析 YAML 题库，题目级字段覆盖文件级默认值
func ParseTemplateBank(r io.Reader) ([]MCQQuestionInput, error) {
	var bank TemplateBank
	if err := yaml.NewDecoder(r).Decode(&bank); err != nil {
		return nil, util.NewValidationError("invalid template file: " + err.Error())
	}
	if len(bank.Questions) == 0 {
		return nil, util.NewValidationError("template file has no questions")
	}

	inputs := make([]MCQQuestionInput, 0, len(bank.Questions))
	for _, item := range bank.Questions {
		answer := item.Answer
		in := MCQQuestionInput{
			Question:      item.Question,
			Options:       item.Options,
			CorrectAnswer: &answer,
			Points:        item.Points,
			Explanation:   item.Explanation,
			Difficulty:    item.Difficulty,
			Category:      item.Category,
		}
		if in.Difficulty == "" {
			in.Difficulty = bank.Difficulty
		}
		if in.Category == "" {
			in.Category = bank.Category
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func (s *TemplateService) Import(ctx context.Context, claims *util.Claims, r io.Reader) ([]model.MCQTemplate, error) {
	inputs, err := ParseTemplateBank(r)
	if err != nil {
		return nil, err
	}
	questions, err := BuildMCQQuestions(inputs)
	if err != nil {
		return nil, err
	}

	templates := make([]model.MCQTemplate, 0, len(questions))
	for _, q := range questions {
		templates = append(templates, templateFrom(claims, q.Question, q.Options, q.CorrectAnswer, q.Points,
			q.Explanation, q.Difficulty, q.Category, TemplateSourceImport))
	}
	if err := s.Repo.CreateTemplates(ctx, templates); err != nil {
		return nil, util.NewInternalError("import templates", err)
	}
	return templates, nil
}

func templateFrom(claims *util.Claims, question string, options []string, correct, points int,
	explanation, difficulty, category, source string) model.MCQTemplate {
	if points <= 0 {
		points = 1
	}
	return model.MCQTemplate{
		CompanyID:     claims.CompanyID,
		Question:      question,
		Options:       options,
		CorrectAnswer: correct,
		Points:        points,
		Explanation:   explanation,
		Difficulty:    difficulty,
		Category:      category,
		Source:        source,
		CreatedByID:   claims.UserID,
	}
}
