package model

import "time"

type OfferStatus string

const (
	OfferPending   OfferStatus = "PENDING"
	OfferSent      OfferStatus = "SENT"
	OfferAccepted  OfferStatus = "ACCEPTED"
	OfferRejected  OfferStatus = "REJECTED"
	OfferExpired   OfferStatus = "EXPIRED"
	OfferWithdrawn OfferStatus = "WITHDRAWN"
)

func (s OfferStatus) Valid() bool {
	switch s {
	case OfferPending, OfferSent, OfferAccepted, OfferRejected, OfferExpired, OfferWithdrawn:
		return true
	}
	return false
}

func (s OfferStatus) Terminal() bool {
	return s == OfferAccepted || s == OfferRejected || s == OfferExpired || s == OfferWithdrawn
}

// CanTransitionTo PENDING -> SENT -> ACCEPTED/REJECTED/EXPIRED，未结束前可撤回
func (s OfferStatus) CanTransitionTo(next OfferStatus) bool {
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	switch next {
	case OfferSent:
		return s == OfferPending
	case OfferAccepted, OfferRejected, OfferExpired:
		return s == OfferSent
	case OfferWithdrawn:
		return true
	}
	return false
}

// swagger:model OfferLetter
type OfferLetter struct {
	UUIDBase
	CompanyID       uint        `gorm:"index;not null" json:"companyId"`
	JobPostID       string      `gorm:"type:varchar(36);index;not null" json:"jobPostId"`
	JobPost         *JobPost    `gorm:"foreignKey:JobPostID" json:"jobPost,omitempty"`
	ResumeID        string      `gorm:"type:varchar(36);index;not null" json:"resumeId"`
	Resume          *Resume     `gorm:"foreignKey:ResumeID" json:"resume,omitempty"`
	CreatedByID     uint        `gorm:"index" json:"createdById"`
	OfferedPosition string      `gorm:"size:200;not null" json:"offeredPosition"`
	Salary          string      `gorm:"size:100;not null" json:"salary"`
	JoiningDate     *time.Time  `json:"joiningDate"`
	OfferDate       time.Time   `json:"offerDate"`
	Notes           string      `gorm:"type:text" json:"notes"`
	Status          OfferStatus `gorm:"size:20;default:'PENDING';index" json:"status"`
	SentAt          *time.Time  `json:"sentAt"`
	RespondedAt     *time.Time  `json:"respondedAt"`
	ResponseNotes   string      `gorm:"type:text" json:"responseNotes"`
}

func (OfferLetter) TableName() string {
	return "offer_letters"
}
