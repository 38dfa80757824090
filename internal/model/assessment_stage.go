package model

import (
	"time"

	"gorm.io/datatypes"
)

type StageType string

const (
	StageMCQ    StageType = "MCQ"
	StageAvatar StageType = "AVATAR"
	StageManual StageType = "MANUAL"
)

func (t StageType) Valid() bool {
	switch t {
	case StageMCQ, StageAvatar, StageManual:
		return true
	}
	return false
}

type StageStatus string

const (
	StagePending    StageStatus = "PENDING"
	StageInProgress StageStatus = "IN_PROGRESS"
	StageCompleted  StageStatus = "COMPLETED"
	StageCancelled  StageStatus = "CANCELLED"
	StageNoShow     StageStatus = "NO_SHOW"
)

func (s StageStatus) Valid() bool {
	switch s {
	case StagePending, StageInProgress, StageCompleted, StageCancelled, StageNoShow:
		return true
	}
	return false
}

// Terminal 终态之后不允许再流转
func (s StageStatus) Terminal() bool {
	return s == StageCompleted || s == StageCancelled || s == StageNoShow
}

// CanTransitionTo 状态只能前进：PENDING -> IN_PROGRESS -> COMPLETED/NO_SHOW，非终态可取消
func (s StageStatus) CanTransitionTo(next StageStatus) bool {
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	switch next {
	case StageInProgress:
		return s == StagePending
	case StageCompleted, StageNoShow, StageCancelled:
		return true
	}
	return false
}

var StageTerminalStatuses = []StageStatus{StageCompleted, StageCancelled, StageNoShow}

// swagger:model AssessmentStage
type AssessmentStage struct {
	UUIDBase
	Type          StageType      `gorm:"size:20;not null;index" json:"type"`
	JobPostID     string         `gorm:"type:varchar(36);index;not null" json:"jobPostId"`
	JobPost       *JobPost       `gorm:"foreignKey:JobPostID" json:"jobPost,omitempty"`
	ResumeID      string         `gorm:"type:varchar(36);index;not null" json:"resumeId"`
	Resume        *Resume        `gorm:"foreignKey:ResumeID" json:"resume,omitempty"`
	InterviewerID *uint          `gorm:"index" json:"interviewerId"`
	Status        StageStatus    `gorm:"size:20;default:'PENDING';index" json:"status"`
	ResultScore   *float64       `json:"resultScore"`
	ScheduledAt   *time.Time     `json:"scheduledAt"`
	CompletedAt   *time.Time     `json:"completedAt"`
	Duration      int            `gorm:"default:0" json:"duration"` // 分钟
	SequenceOrder int            `gorm:"default:0" json:"sequenceOrder"`
	Notes         string         `gorm:"type:text" json:"notes"`
	Metadata      datatypes.JSON `json:"metadata,omitempty"`

	MCQAssessment    *MCQAssessment    `gorm:"foreignKey:StageID" json:"mcqAssessment,omitempty"`
	AvatarAssessment *AvatarAssessment `gorm:"foreignKey:StageID" json:"avatarAssessment,omitempty"`
	ManualMeeting    *ManualMeeting    `gorm:"foreignKey:StageID" json:"manualMeeting,omitempty"`
}

func (AssessmentStage) TableName() string {
	return "assessment_stages"
}

// swagger:model ManualMeeting
type ManualMeeting struct {
	UUIDBase
	StageID     string `gorm:"type:varchar(36);uniqueIndex;not null" json:"stageId"`
	MeetingType string `gorm:"size:20;default:'ONLINE'" json:"meetingType"`
	MeetingLink string `gorm:"size:500" json:"meetingLink"`
	Location    string `gorm:"size:300" json:"location"`
	Feedback    string `gorm:"type:text" json:"feedback"`
	Rating      *int   `json:"rating"`
}

func (ManualMeeting) TableName() string {
	return "manual_meetings"
}
