package model

import (
	"time"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobOpen   JobStatus = "OPEN"
	JobClosed JobStatus = "CLOSED"
)

// swagger:model JobPost
type JobPost struct {
	UUIDBase
	CompanyID   uint      `gorm:"index;not null" json:"companyId"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Location    string    `gorm:"size:200" json:"location"`
	Status      JobStatus `gorm:"size:20;default:'OPEN'" json:"status"`
	CreatedByID uint      `gorm:"index" json:"createdById"`
}

func (JobPost) TableName() string {
	return "job_posts"
}

// swagger:model Resume
type Resume struct {
	UUIDBase
	JobPostID      string   `gorm:"type:varchar(36);index;not null" json:"jobPostId"`
	JobPost        *JobPost `gorm:"foreignKey:JobPostID" json:"jobPost,omitempty"`
	CandidateName  string   `gorm:"size:200;not null" json:"candidateName"`
	CandidateEmail string   `gorm:"size:200;index" json:"candidateEmail"`
	Phone          string   `gorm:"size:50" json:"phone"`
	FileURL        string   `gorm:"size:500" json:"fileUrl"`
	Content        string   `gorm:"type:text" json:"content,omitempty"` // 简历正文，供评分使用

	// 评分结果，未评分时为空
	MatchScore     *float64                    `gorm:"index" json:"matchScore"`
	MatchedSkills  datatypes.JSONSlice[string] `json:"matchedSkills,omitempty"`
	Recommendation string                      `gorm:"size:30" json:"recommendation,omitempty"`
	MatchSummary   string                      `gorm:"type:text" json:"matchSummary,omitempty"`
	ScoredAt       *time.Time                  `json:"scoredAt"`
}

func (Resume) TableName() string {
	return "resumes"
}
