package repository

import (
	"context"
	"hire_assessment_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type AvatarRepository struct {
	DB *gorm.DB
}

func NewAvatarRepository(db *gorm.DB) *AvatarRepository {
	return &AvatarRepository{DB: db}
}

func (r *AvatarRepository) FindByStageID(ctx context.Context, stageID string) (*model.AvatarAssessment, error) {
	var a model.AvatarAssessment
	err := r.DB.WithContext(ctx).First(&a, "stage_id = ?", stageID).Error
	return &a, err
}

func (r *AvatarRepository) FindByID(ctx context.Context, id string) (*model.AvatarAssessment, error) {
	var a model.AvatarAssessment
	err := r.DB.WithContext(ctx).First(&a, "id = ?", id).Error
	return &a, err
}

// SetSessionPassword 写入新摘要并清空历史明文
func (r *AvatarRepository) SetSessionPassword(ctx context.Context, id, digest string, invitedAt *time.Time) error {
	updates := map[string]interface{}{
		"session_password_hash": digest,
		"session_password":      "",
	}
	if invitedAt != nil {
		updates["invited_at"] = *invitedAt
	}
	return r.DB.WithContext(ctx).Model(&model.AvatarAssessment{}).Where("id = ?", id).Updates(updates).Error
}

// ListLegacyPasswords 仍保存明文口令的记录
func (r *AvatarRepository) ListLegacyPasswords(ctx context.Context) ([]model.AvatarAssessment, error) {
	var list []model.AvatarAssessment
	err := r.DB.WithContext(ctx).Where("session_password <> ''").Find(&list).Error
	return list, err
}

func (r *AvatarRepository) CreateRecording(ctx context.Context, rec *model.AvatarRecording) error {
	return r.DB.WithContext(ctx).Create(rec).Error
}

func (r *AvatarRepository) ListRecordings(ctx context.Context, avatarID string) ([]model.AvatarRecording, error) {
	var list []model.AvatarRecording
	err := r.DB.WithContext(ctx).
		Where("avatar_assessment_id = ?", avatarID).
		Order("question_index asc, created_at asc").
		Find(&list).Error
	return list, err
}
