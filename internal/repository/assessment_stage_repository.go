package repository

import (
	"context"
	"hire_assessment_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type AssessmentStageRepository struct {
	DB *gorm.DB
}

func NewAssessmentStageRepository(db *gorm.DB) *AssessmentStageRepository {
	return &AssessmentStageRepository{DB: db}
}

// WithTx 在事务内复用同一仓储
func (r *AssessmentStageRepository) WithTx(tx *gorm.DB) *AssessmentStageRepository {
	return &AssessmentStageRepository{DB: tx}
}

// StageDetails 按阶段类型创建的明细记录，只有与 Type 对应的字段会被写入
type StageDetails struct {
	MCQ    *model.MCQAssessment
	Avatar *model.AvatarAssessment
	Manual *model.ManualMeeting
}

// Create 阶段与明细在同一事务内写入
func (r *AssessmentStageRepository) Create(ctx context.Context, stage *model.AssessmentStage, details StageDetails) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(stage).Error; err != nil {
			return err
		}

		switch stage.Type {
		case model.StageMCQ:
			if details.MCQ != nil {
				details.MCQ.StageID = stage.ID
				if err := tx.Create(details.MCQ).Error; err != nil {
					return err
				}
				stage.MCQAssessment = details.MCQ
			}
		case model.StageAvatar:
			if details.Avatar != nil {
				details.Avatar.StageID = stage.ID
				if err := tx.Create(details.Avatar).Error; err != nil {
					return err
				}
				stage.AvatarAssessment = details.Avatar
			}
		case model.StageManual:
			if details.Manual != nil {
				details.Manual.StageID = stage.ID
				if err := tx.Create(details.Manual).Error; err != nil {
					return err
				}
				stage.ManualMeeting = details.Manual
			}
		}
		return nil
	})
}

func (r *AssessmentStageRepository) FindByID(ctx context.Context, id string) (*model.AssessmentStage, error) {
	var stage model.AssessmentStage
	err := r.DB.WithContext(ctx).
		Preload("JobPost").
		Preload("Resume").
		First(&stage, "id = ?", id).Error
	return &stage, err
}

func (r *AssessmentStageRepository) FindWithDetails(ctx context.Context, id string) (*model.AssessmentStage, error) {
	var stage model.AssessmentStage
	err := r.DB.WithContext(ctx).
		Preload("JobPost").
		Preload("Resume").
		Preload("MCQAssessment.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order asc, created_at asc")
		}).
		Preload("AvatarAssessment.Recordings").
		Preload("ManualMeeting").
		First(&stage, "id = ?", id).Error
	return &stage, err
}

type StageFilter struct {
	CompanyID     *uint
	JobPostID     string
	ResumeID      string
	InterviewerID *uint
	Type          model.StageType
	Status        model.StageStatus
	DateFrom      *time.Time
	DateTo        *time.Time
	Page          int
	Limit         int
}

func (r *AssessmentStageRepository) filtered(ctx context.Context, f StageFilter) *gorm.DB {
	query := r.DB.WithContext(ctx).Model(&model.AssessmentStage{})
	if f.CompanyID != nil {
		query = query.Joins("JOIN job_posts ON job_posts.id = assessment_stages.job_post_id").
			Where("job_posts.company_id = ?", *f.CompanyID)
	}
	if f.JobPostID != "" {
		query = query.Where("assessment_stages.job_post_id = ?", f.JobPostID)
	}
	if f.ResumeID != "" {
		query = query.Where("assessment_stages.resume_id = ?", f.ResumeID)
	}
	if f.InterviewerID != nil {
		query = query.Where("assessment_stages.interviewer_id = ?", *f.InterviewerID)
	}
	if f.Type != "" {
		query = query.Where("assessment_stages.type = ?", f.Type)
	}
	if f.Status != "" {
		query = query.Where("assessment_stages.status = ?", f.Status)
	}
	if f.DateFrom != nil {
		query = query.Where("assessment_stages.created_at >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		query = query.Where("assessment_stages.created_at <= ?", *f.DateTo)
	}
	return query
}

func (r *AssessmentStageRepository) List(ctx context.Context, f StageFilter) ([]model.AssessmentStage, int64, error) {
	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var stages []model.AssessmentStage
	query := r.filtered(ctx, f).
		Preload("Resume").
		Preload("JobPost").
		Order("assessment_stages.sequence_order asc, assessment_stages.created_at desc")
	if f.Limit > 0 {
		query = query.Offset((f.Page - 1) * f.Limit).Limit(f.Limit)
	}
	err := query.Find(&stages).Error
	return stages, total, err
}

// StageSnapshot 统计所需的只读投影
type StageSnapshot struct {
	ID            string
	Type          model.StageType
	Status        model.StageStatus
	ResultScore   *float64
	CreatedAt     time.Time
	CompletedAt   *time.Time
	ResumeID      string
	CandidateName string
	JobPostID     string
	JobTitle      string
}

func (r *AssessmentStageRepository) ListSnapshots(ctx context.Context, f StageFilter) ([]StageSnapshot, error) {
	query := r.filtered(ctx, f)
	if f.CompanyID == nil {
		query = query.Joins("LEFT JOIN job_posts ON job_posts.id = assessment_stages.job_post_id")
	}

	var rows []StageSnapshot
	err := query.
		Joins("LEFT JOIN resumes ON resumes.id = assessment_stages.resume_id").
		Select("assessment_stages.id AS id, assessment_stages.type AS type, assessment_stages.status AS status, " +
			"assessment_stages.result_score AS result_score, assessment_stages.created_at AS created_at, " +
			"assessment_stages.completed_at AS completed_at, assessment_stages.resume_id AS resume_id, " +
			"resumes.candidate_name AS candidate_name, assessment_stages.job_post_id AS job_post_id, " +
			"job_posts.title AS job_title").
		Order("assessment_stages.created_at asc").
		Scan(&rows).Error
	return rows, err
}

// UpdateIfStatus 仅当当前状态仍为 expected 时更新，返回受影响行数
func (r *AssessmentStageRepository) UpdateIfStatus(ctx context.Context, id string, expected model.StageStatus, updates map[string]interface{}) (int64, error) {
	result := r.DB.WithContext(ctx).Model(&model.AssessmentStage{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// CompleteIfOpen 将非终态阶段置为 COMPLETED；已是终态时返回 0 行
func (r *AssessmentStageRepository) CompleteIfOpen(ctx context.Context, id string, score float64, notes string, at time.Time) (int64, error) {
	result := r.DB.WithContext(ctx).Model(&model.AssessmentStage{}).
		Where("id = ? AND status NOT IN ?", id, model.StageTerminalStatuses).
		Updates(map[string]interface{}{
			"status":       model.StageCompleted,
			"result_score": score,
			"notes":        notes,
			"completed_at": at,
		})
	return result.RowsAffected, result.Error
}

// StartIfPending PENDING 阶段首次作答时置为 IN_PROGRESS
func (r *AssessmentStageRepository) StartIfPending(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Model(&model.AssessmentStage{}).
		Where("id = ? AND status = ?", id, model.StagePending).
		Update("status", model.StageInProgress).Error
}

// Delete 级联删除明细、题目、作答和录音
func (r *AssessmentStageRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var mcqIDs []string
		if err := tx.Model(&model.MCQAssessment{}).Where("stage_id = ?", id).Pluck("id", &mcqIDs).Error; err != nil {
			return err
		}
		if len(mcqIDs) > 0 {
			if err := tx.Where("mcq_assessment_id IN ?", mcqIDs).Delete(&model.MCQAnswer{}).Error; err != nil {
				return err
			}
			if err := tx.Where("mcq_assessment_id IN ?", mcqIDs).Delete(&model.MCQQuestion{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", mcqIDs).Delete(&model.MCQAssessment{}).Error; err != nil {
				return err
			}
		}

		var avatarIDs []string
		if err := tx.Model(&model.AvatarAssessment{}).Where("stage_id = ?", id).Pluck("id", &avatarIDs).Error; err != nil {
			return err
		}
		if len(avatarIDs) > 0 {
			if err := tx.Where("avatar_assessment_id IN ?", avatarIDs).Delete(&model.AvatarRecording{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", avatarIDs).Delete(&model.AvatarAssessment{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("stage_id = ?", id).Delete(&model.ManualMeeting{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.AssessmentStage{}, "id = ?", id).Error
	})
}

func (r *AssessmentStageRepository) UpdateManualMeeting(ctx context.Context, stageID string, updates map[string]interface{}) error {
	return r.DB.WithContext(ctx).Model(&model.ManualMeeting{}).Where("stage_id = ?", stageID).Updates(updates).Error
}
