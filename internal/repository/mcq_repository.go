package repository

import (
	"context"
	"hire_assessment_backend/internal/model"

	"gorm.io/gorm"
)

type MCQRepository struct {
	DB *gorm.DB
}

func NewMCQRepository(db *gorm.DB) *MCQRepository {
	return &MCQRepository{DB: db}
}

func (r *MCQRepository) WithTx(tx *gorm.DB) *MCQRepository {
	return &MCQRepository{DB: tx}
}

func (r *MCQRepository) FindAssessment(ctx context.Context, id string) (*model.MCQAssessment, error) {
	var a model.MCQAssessment
	err := r.DB.WithContext(ctx).
		Preload("Stage").
		Preload("Stage.JobPost").
		First(&a, "id = ?", id).Error
	return &a, err
}

func (r *MCQRepository) FindByStageID(ctx context.Context, stageID string) (*model.MCQAssessment, error) {
	var a model.MCQAssessment
	err := r.DB.WithContext(ctx).First(&a, "stage_id = ?", stageID).Error
	return &a, err
}

func (r *MCQRepository) ListQuestions(ctx context.Context, assessmentID string) ([]model.MCQQuestion, error) {
	var qs []model.MCQQuestion
	err := r.DB.WithContext(ctx).
		Where("mcq_assessment_id = ?", assessmentID).
		Order("sort_order asc, created_at asc").
		Find(&qs).Error
	return qs, err
}

// ReplaceAnswers 删除旧作答后整批写入，需在事务内调用
func (r *MCQRepository) ReplaceAnswers(ctx context.Context, assessmentID string, answers []model.MCQAnswer) error {
	if err := r.DB.WithContext(ctx).Where("mcq_assessment_id = ?", assessmentID).Delete(&model.MCQAnswer{}).Error; err != nil {
		return err
	}
	if len(answers) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).CreateInBatches(answers, 100).Error
}

func (r *MCQRepository) ListAnswers(ctx context.Context, assessmentID string) ([]model.MCQAnswer, error) {
	var answers []model.MCQAnswer
	err := r.DB.WithContext(ctx).
		Where("mcq_assessment_id = ?", assessmentID).
		Order("id asc").
		Find(&answers).Error
	return answers, err
}

// ---- 题库模板 ----

func (r *MCQRepository) CreateTemplates(ctx context.Context, templates []model.MCQTemplate) error {
	if len(templates) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).CreateInBatches(templates, 100).Error
}

type TemplateFilter struct {
	CompanyID  *uint
	Category   string
	Difficulty string
	Page       int
	Limit      int
}

func (r *MCQRepository) ListTemplates(ctx context.Context, f TemplateFilter) ([]model.MCQTemplate, int64, error) {
	query := r.DB.WithContext(ctx).Model(&model.MCQTemplate{})
	if f.CompanyID != nil {
		query = query.Where("company_id = ?", *f.CompanyID)
	}
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if f.Difficulty != "" {
		query = query.Where("difficulty = ?", f.Difficulty)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var templates []model.MCQTemplate
	err := query.Order("created_at desc").Offset((f.Page - 1) * f.Limit).Limit(f.Limit).Find(&templates).Error
	return templates, total, err
}

func (r *MCQRepository) FindTemplatesByIDs(ctx context.Context, ids []string) ([]model.MCQTemplate, error) {
	var templates []model.MCQTemplate
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&templates).Error
	return templates, err
}

func (r *MCQRepository) FindTemplate(ctx context.Context, id string) (*model.MCQTemplate, error) {
	var t model.MCQTemplate
	err := r.DB.WithContext(ctx).First(&t, "id = ?", id).Error
	return &t, err
}

func (r *MCQRepository) DeleteTemplate(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Delete(&model.MCQTemplate{}, "id = ?", id).Error
}
