package model

import (
	"time"

	"gorm.io/datatypes"
)

// swagger:model MCQAssessment
type MCQAssessment struct {
	UUIDBase
	StageID      string                      `gorm:"type:varchar(36);uniqueIndex;not null" json:"stageId"`
	Stage        *AssessmentStage            `gorm:"foreignKey:StageID" json:"stage,omitempty"`
	Title        string                      `gorm:"size:200" json:"title"`
	TimeLimit    int                         `gorm:"default:30" json:"timeLimit"` // 分钟
	PassingScore float64                     `gorm:"default:60" json:"passingScore"`
	Topics       datatypes.JSONSlice[string] `json:"topics"`
	Difficulty   string                      `gorm:"size:20" json:"difficulty"`
	Questions    []MCQQuestion               `gorm:"foreignKey:MCQAssessmentID" json:"questions,omitempty"`
}

func (MCQAssessment) TableName() string {
	return "mcq_assessments"
}

// swagger:model MCQQuestion
type MCQQuestion struct {
	UUIDBase
	MCQAssessmentID string                      `gorm:"type:varchar(36);index;not null" json:"mcqAssessmentId"`
	Question        string                      `gorm:"type:text;not null" json:"question"`
	Options         datatypes.JSONSlice[string] `json:"options"`
	CorrectAnswer   int                         `gorm:"not null" json:"correctAnswer"` // 选项下标
	Points          int                         `gorm:"default:1" json:"points"`
	Explanation     string                      `gorm:"type:text" json:"explanation"`
	Difficulty      string                      `gorm:"size:20" json:"difficulty"`
	Category        string                      `gorm:"size:100" json:"category"`
	SortOrder       int                         `gorm:"default:0" json:"sortOrder"`
}

func (MCQQuestion) TableName() string {
	return "mcq_questions"
}

// MCQAnswer 不做软删除，重新提交时整体替换
type MCQAnswer struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	MCQAssessmentID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_mcq_answer_question" json:"mcqAssessmentId"`
	QuestionID      string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_mcq_answer_question" json:"questionId"`
	SelectedAnswer  int       `json:"selectedAnswer"`
	IsCorrect       bool      `json:"isCorrect"`
	PointsEarned    int       `json:"pointsEarned"`
	TimeSpent       int       `json:"timeSpent"` // 秒
	CreatedAt       time.Time `json:"createdAt"`
}

func (MCQAnswer) TableName() string {
	return "mcq_answers"
}

// swagger:model MCQTemplate
type MCQTemplate struct {
	UUIDBase
	CompanyID     uint                        `gorm:"index" json:"companyId"`
	Question      string                      `gorm:"type:text;not null" json:"question"`
	Options       datatypes.JSONSlice[string] `json:"options"`
	CorrectAnswer int                         `json:"correctAnswer"`
	Points        int                         `gorm:"default:1" json:"points"`
	Explanation   string                      `gorm:"type:text" json:"explanation"`
	Difficulty    string                      `gorm:"size:20;index" json:"difficulty"`
	Category      string                      `gorm:"size:100;index" json:"category"`
	Source        string                      `gorm:"size:20;default:'MANUAL'" json:"source"` // MANUAL / AI / IMPORT
	CreatedByID   uint                        `json:"createdById"`
}

func (MCQTemplate) TableName() string {
	return "mcq_templates"
}
