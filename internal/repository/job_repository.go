package repository

import (
	"context"
	"hire_assessment_backend/internal/model"

	"gorm.io/gorm"
)

type JobRepository struct {
	DB *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{DB: db}
}

func (r *JobRepository) CreateJob(ctx context.Context, job *model.JobPost) error {
	return r.DB.WithContext(ctx).Create(job).Error
}

func (r *JobRepository) FindJobByID(ctx context.Context, id string) (*model.JobPost, error) {
	var job model.JobPost
	err := r.DB.WithContext(ctx).First(&job, "id = ?", id).Error
	return &job, err
}

// ListJobs companyID 为 nil 时不做租户过滤（管理员）
func (r *JobRepository) ListJobs(ctx context.Context, companyID *uint, page, limit int) ([]model.JobPost, int64, error) {
	query := r.DB.WithContext(ctx).Model(&model.JobPost{})
	if companyID != nil {
		query = query.Where("company_id = ?", *companyID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var jobs []model.JobPost
	err := query.Order("created_at desc").Offset((page - 1) * limit).Limit(limit).Find(&jobs).Error
	return jobs, total, err
}

func (r *JobRepository) CreateResume(ctx context.Context, resume *model.Resume) error {
	return r.DB.WithContext(ctx).Create(resume).Error
}

func (r *JobRepository) FindResumeByID(ctx context.Context, id string) (*model.Resume, error) {
	var resume model.Resume
	err := r.DB.WithContext(ctx).Preload("JobPost").First(&resume, "id = ?", id).Error
	return &resume, err
}

func (r *JobRepository) ListResumes(ctx context.Context, jobPostID string) ([]model.Resume, error) {
	var resumes []model.Resume
	err := r.DB.WithContext(ctx).Where("job_post_id = ?", jobPostID).Order("created_at desc").Find(&resumes).Error
	return resumes, err
}

// UpdateResumeScore 写入评分结果，覆盖上一次评分
func (r *JobRepository) UpdateResumeScore(ctx context.Context, id string, updates map[string]interface{}) error {
	return r.DB.WithContext(ctx).Model(&model.Resume{}).Where("id = ?", id).Updates(updates).Error
}
