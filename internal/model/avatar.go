package model

import "time"

// swagger:model AvatarAssessment
type AvatarAssessment struct {
	UUIDBase
	StageID      string `gorm:"type:varchar(36);uniqueIndex;not null" json:"stageId"`
	AvatarType   string `gorm:"size:50;default:'PROFESSIONAL'" json:"avatarType"`
	Language     string `gorm:"size:10;default:'en'" json:"language"`
	Instructions string `gorm:"type:text" json:"instructions"`
	TimeLimit    int    `gorm:"default:30" json:"timeLimit"` // 分钟
	// 新会话只写入摘要；SessionPassword 为历史明文，仅用于兼容和迁移
	SessionPasswordHash string     `gorm:"size:100" json:"-"`
	SessionPassword     string     `gorm:"size:50" json:"-"`
	InvitedAt           *time.Time `json:"invitedAt"`

	Recordings []AvatarRecording `gorm:"foreignKey:AvatarAssessmentID" json:"recordings,omitempty"`
}

func (AvatarAssessment) TableName() string {
	return "avatar_assessments"
}

// HasSessionPassword 是否设置了会话口令（摘要或历史明文）
func (a *AvatarAssessment) HasSessionPassword() bool {
	return a.SessionPasswordHash != "" || a.SessionPassword != ""
}

// swagger:model AvatarRecording
type AvatarRecording struct {
	UUIDBase
	AvatarAssessmentID string  `gorm:"type:varchar(36);index;not null" json:"avatarAssessmentId"`
	QuestionIndex      int     `json:"questionIndex"`
	ObjectKey          string  `gorm:"size:500" json:"objectKey"`
	FileURL            string  `gorm:"size:500" json:"fileUrl"`
	ContentType        string  `gorm:"size:100" json:"contentType"`
	Size               int64   `json:"size"`
	Duration           float64 `json:"duration"` // 秒，探测失败为 0
}

func (AvatarRecording) TableName() string {
	return "avatar_recordings"
}
