package repository

import (
	"context"
	"errors"
	"hire_assessment_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrActiveAttemptExists 同一面试已有进行中的作答
var ErrActiveAttemptExists = errors.New("an attempt is already in progress for this interview")

type InterviewRepository struct {
	DB *gorm.DB
}

func NewInterviewRepository(db *gorm.DB) *InterviewRepository {
	return &InterviewRepository{DB: db}
}

func (r *InterviewRepository) WithTx(tx *gorm.DB) *InterviewRepository {
	return &InterviewRepository{DB: tx}
}

// Create 面试与题目一起写入
func (r *InterviewRepository) Create(ctx context.Context, interview *model.Interview) error {
	return r.DB.WithContext(ctx).Create(interview).Error
}

func (r *InterviewRepository) FindByID(ctx context.Context, id string) (*model.Interview, error) {
	var interview model.Interview
	err := r.DB.WithContext(ctx).First(&interview, "id = ?", id).Error
	return &interview, err
}

func (r *InterviewRepository) FindWithQuestions(ctx context.Context, id string) (*model.Interview, error) {
	var interview model.Interview
	err := r.DB.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index asc, created_at asc")
		}).
		First(&interview, "id = ?", id).Error
	return &interview, err
}

func (r *InterviewRepository) List(ctx context.Context, companyID *uint, page, limit int) ([]model.Interview, int64, error) {
	query := r.DB.WithContext(ctx).Model(&model.Interview{})
	if companyID != nil {
		query = query.Where("company_id = ?", *companyID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []model.Interview
	err := query.Order("created_at desc").Offset((page - 1) * limit).Limit(limit).Find(&list).Error
	return list, total, err
}

func (r *InterviewRepository) ListQuestions(ctx context.Context, interviewID string) ([]model.InterviewQuestion, error) {
	var qs []model.InterviewQuestion
	err := r.DB.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Order("order_index asc, created_at asc").
		Find(&qs).Error
	return qs, err
}

func (r *InterviewRepository) UpdateFields(ctx context.Context, id string, updates map[string]interface{}) error {
	return r.DB.WithContext(ctx).Model(&model.Interview{}).Where("id = ?", id).Updates(updates).Error
}

// SetSessionPassword 写入新摘要并清空历史明文
func (r *InterviewRepository) SetSessionPassword(ctx context.Context, id, digest string) error {
	return r.UpdateFields(ctx, id, map[string]interface{}{
		"session_password_hash": digest,
		"session_password":      "",
	})
}

func (r *InterviewRepository) ListLegacyPasswords(ctx context.Context) ([]model.Interview, error) {
	var list []model.Interview
	err := r.DB.WithContext(ctx).Where("session_password <> ''").Find(&list).Error
	return list, err
}

// ---- 作答记录 ----

// CreateAttempt 检查与创建放在同一事务里，存在进行中的作答时返回 ErrActiveAttemptExists
func (r *InterviewRepository) CreateAttempt(ctx context.Context, attempt *model.InterviewAttempt) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active int64
		if err := tx.Model(&model.InterviewAttempt{}).
			Where("interview_id = ? AND status = ?", attempt.InterviewID, model.AttemptInProgress).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrActiveAttemptExists
		}
		return tx.Create(attempt).Error
	})
}

func (r *InterviewRepository) FindAttempt(ctx context.Context, id string) (*model.InterviewAttempt, error) {
	var attempt model.InterviewAttempt
	err := r.DB.WithContext(ctx).Preload("Interview").First(&attempt, "id = ?", id).Error
	return &attempt, err
}

func (r *InterviewRepository) ListAttempts(ctx context.Context, interviewID string) ([]model.InterviewAttempt, error) {
	var list []model.InterviewAttempt
	err := r.DB.WithContext(ctx).Where("interview_id = ?", interviewID).Order("created_at desc").Find(&list).Error
	return list, err
}

// TransitionAttempt 条件更新：仅当状态仍为 from 时生效，返回受影响行数
func (r *InterviewRepository) TransitionAttempt(ctx context.Context, id string, from, to model.AttemptStatus, updates map[string]interface{}) (int64, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	result := r.DB.WithContext(ctx).Model(&model.InterviewAttempt{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// IncrementViolations 只对进行中的作答计数
func (r *InterviewRepository) IncrementViolations(ctx context.Context, id string) (int64, error) {
	result := r.DB.WithContext(ctx).Model(&model.InterviewAttempt{}).
		Where("id = ? AND status = ?", id, model.AttemptInProgress).
		UpdateColumn("violations", gorm.Expr("violations + ?", 1))
	return result.RowsAffected, result.Error
}

// UpsertAnswers 按 (attempt_id, question_id) 覆盖写入
func (r *InterviewRepository) UpsertAnswers(ctx context.Context, answers []model.InterviewAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"answer", "is_correct", "points_earned", "time_spent", "updated_at"}),
	}).Create(&answers).Error
}

func (r *InterviewRepository) ListAnswers(ctx context.Context, attemptID string) ([]model.InterviewAnswer, error) {
	var answers []model.InterviewAnswer
	err := r.DB.WithContext(ctx).Where("attempt_id = ?", attemptID).Order("id asc").Find(&answers).Error
	return answers, err
}

// AttemptSnapshot 统计用投影
type AttemptSnapshot struct {
	ID        string
	Status    model.AttemptStatus
	Score     int
	MaxScore  int
	CreatedAt time.Time
}

func (r *InterviewRepository) ListAttemptSnapshots(ctx context.Context, companyID *uint, interviewerID *uint, from, to *time.Time) ([]AttemptSnapshot, error) {
	query := r.DB.WithContext(ctx).Model(&model.InterviewAttempt{}).
		Joins("JOIN interviews ON interviews.id = interview_attempts.interview_id")
	if companyID != nil {
		query = query.Where("interviews.company_id = ?", *companyID)
	}
	if interviewerID != nil {
		query = query.Where("interview_attempts.interviewer_id = ?", *interviewerID)
	}
	if from != nil {
		query = query.Where("interview_attempts.created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("interview_attempts.created_at <= ?", *to)
	}

	var rows []AttemptSnapshot
	err := query.Select("interview_attempts.id AS id, interview_attempts.status AS status, " +
		"interview_attempts.score AS score, interview_attempts.max_score AS max_score, " +
		"interview_attempts.created_at AS created_at").
		Scan(&rows).Error
	return rows, err
}
