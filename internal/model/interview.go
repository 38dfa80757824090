package model

import (
	"time"

	"gorm.io/datatypes"
)

type InterviewStatus string

const (
	InterviewDraft     InterviewStatus = "DRAFT"
	InterviewPublished InterviewStatus = "PUBLISHED"
	InterviewArchived  InterviewStatus = "ARCHIVED"
)

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionEssay          QuestionType = "ESSAY"
	QuestionFillBlank      QuestionType = "FILL_BLANK"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionEssay, QuestionFillBlank:
		return true
	}
	return false
}

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	AttemptCompleted  AttemptStatus = "COMPLETED"
	AttemptSubmitted  AttemptStatus = "SUBMITTED"
	AttemptExpired    AttemptStatus = "EXPIRED"
	AttemptTerminated AttemptStatus = "TERMINATED"
)

func (s AttemptStatus) Valid() bool {
	switch s {
	case AttemptInProgress, AttemptCompleted, AttemptSubmitted, AttemptExpired, AttemptTerminated:
		return true
	}
	return false
}

// Terminal IN_PROGRESS 以外均为终态
func (s AttemptStatus) Terminal() bool {
	return s != AttemptInProgress
}

// swagger:model Interview
type Interview struct {
	UUIDBase
	CompanyID      uint            `gorm:"index;not null" json:"companyId"`
	JobPostID      *string         `gorm:"type:varchar(36);index" json:"jobPostId"`
	ResumeID       *string         `gorm:"type:varchar(36);index" json:"resumeId"`
	Title          string          `gorm:"size:200;not null" json:"title"`
	Description    string          `gorm:"type:text" json:"description"`
	CandidateName  string          `gorm:"size:200" json:"candidateName"`
	CandidateEmail string          `gorm:"size:200" json:"candidateEmail"`
	Duration       int             `gorm:"not null" json:"duration"` // 分钟
	Status         InterviewStatus `gorm:"size:20;default:'DRAFT'" json:"status"`
	CreatedByID    uint            `gorm:"index" json:"createdById"`
	// 新会话只写入摘要；SessionPassword 为历史明文，仅用于兼容和迁移
	SessionPasswordHash string `gorm:"size:100" json:"-"`
	SessionPassword     string `gorm:"size:50" json:"-"`

	Questions []InterviewQuestion `gorm:"foreignKey:InterviewID" json:"questions,omitempty"`
}

func (Interview) TableName() string {
	return "interviews"
}

// swagger:model InterviewQuestion
type InterviewQuestion struct {
	UUIDBase
	InterviewID   string                      `gorm:"type:varchar(36);index;not null" json:"interviewId"`
	Text          string                      `gorm:"type:text;not null" json:"text"`
	Type          QuestionType                `gorm:"size:30;not null" json:"type"`
	Options       datatypes.JSONSlice[string] `json:"options"`
	CorrectAnswer datatypes.JSON              `json:"correct"`
	Points        int                         `gorm:"default:1" json:"points"`
	OrderIndex    int                         `gorm:"default:0" json:"orderIndex"`
}

func (InterviewQuestion) TableName() string {
	return "interview_questions"
}

// swagger:model InterviewAttempt
type InterviewAttempt struct {
	UUIDBase
	InterviewID   string        `gorm:"type:varchar(36);index;not null" json:"interviewId"`
	Interview     *Interview    `gorm:"foreignKey:InterviewID" json:"interview,omitempty"`
	InterviewerID uint          `gorm:"index" json:"interviewerId"`
	Status        AttemptStatus `gorm:"size:20;default:'IN_PROGRESS';index" json:"status"`
	StartedAt     time.Time     `json:"startedAt"`
	CompletedAt   *time.Time    `json:"completedAt"`
	SubmittedAt   *time.Time    `json:"submittedAt"`
	Violations    int           `gorm:"default:0" json:"violations"`
	Score         int           `gorm:"default:0" json:"score"`
	MaxScore      int           `gorm:"default:0" json:"maxScore"`
	TimeSpent     int           `gorm:"default:0" json:"timeSpent"` // 秒
}

func (InterviewAttempt) TableName() string {
	return "interview_attempts"
}

// InterviewAnswer 按 (attempt, question) 唯一，重复提交走 upsert
type InterviewAnswer struct {
	ID           uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	AttemptID    string         `gorm:"type:varchar(36);not null;uniqueIndex:idx_attempt_question" json:"attemptId"`
	QuestionID   string         `gorm:"type:varchar(36);not null;uniqueIndex:idx_attempt_question" json:"questionId"`
	Answer       datatypes.JSON `json:"answer"`
	IsCorrect    bool           `json:"isCorrect"`
	PointsEarned int            `json:"pointsEarned"`
	TimeSpent    int            `json:"timeSpent"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (InterviewAnswer) TableName() string {
	return "interview_answers"
}
