package repository

import (
	"context"
	"hire_assessment_backend/internal/model"

	"gorm.io/gorm"
)

type OfferRepository struct {
	DB *gorm.DB
}

func NewOfferRepository(db *gorm.DB) *OfferRepository {
	return &OfferRepository{DB: db}
}

func (r *OfferRepository) Create(ctx context.Context, offer *model.OfferLetter) error {
	return r.DB.WithContext(ctx).Create(offer).Error
}

func (r *OfferRepository) FindByID(ctx context.Context, id string) (*model.OfferLetter, error) {
	var offer model.OfferLetter
	err := r.DB.WithContext(ctx).
		Preload("JobPost").
		Preload("Resume").
		First(&offer, "id = ?", id).Error
	return &offer, err
}

// FindOpenForResume 同一候选人同时只能有一份未结束的录用通知
func (r *OfferRepository) FindOpenForResume(ctx context.Context, resumeID string) (*model.OfferLetter, error) {
	var offer model.OfferLetter
	err := r.DB.WithContext(ctx).
		Where("resume_id = ? AND status IN ?", resumeID, []model.OfferStatus{model.OfferPending, model.OfferSent}).
		First(&offer).Error
	return &offer, err
}

type OfferFilter struct {
	CompanyID *uint
	JobPostID string
	Status    model.OfferStatus
	Page      int
	Limit     int
}

func (r *OfferRepository) List(ctx context.Context, f OfferFilter) ([]model.OfferLetter, int64, error) {
	query := r.DB.WithContext(ctx).Model(&model.OfferLetter{})
	if f.CompanyID != nil {
		query = query.Where("company_id = ?", *f.CompanyID)
	}
	if f.JobPostID != "" {
		query = query.Where("job_post_id = ?", f.JobPostID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var offers []model.OfferLetter
	err := query.Preload("JobPost").Preload("Resume").
		Order("created_at desc").
		Offset((f.Page - 1) * f.Limit).Limit(f.Limit).
		Find(&offers).Error
	return offers, total, err
}

// UpdateIfStatus 仅当状态未被并发修改时更新
func (r *OfferRepository) UpdateIfStatus(ctx context.Context, id string, expected model.OfferStatus, updates map[string]interface{}) (int64, error) {
	result := r.DB.WithContext(ctx).Model(&model.OfferLetter{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *OfferRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Delete(&model.OfferLetter{}, "id = ?", id).Error
}
